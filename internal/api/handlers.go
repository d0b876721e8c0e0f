/**
 * @description
 * HTTP handlers for the gst-report service: the authenticated webhook and the
 * admin API.
 */
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pplcallmesatz/gst-auditor-report/internal/app"
	"github.com/pplcallmesatz/gst-auditor-report/internal/domain"
	"github.com/pplcallmesatz/gst-auditor-report/internal/observability"
	"github.com/pplcallmesatz/gst-auditor-report/internal/store"
)

// Trigger runs one report attempt.
type Trigger interface {
	Attempt(ctx context.Context, source app.Source, now time.Time) (app.AttemptResult, error)
}

// ReportService is the scheduling surface used by the admin API.
type ReportService interface {
	Trigger
	SendNow(ctx context.Context, period domain.Period, recipients []string) (*app.DispatchOutcome, error)
	Schedule(ctx context.Context) (*domain.ScheduleState, error)
	UpdateSchedule(ctx context.Context, in app.ScheduleInput, now time.Time) (*domain.ScheduleState, error)
	Location() *time.Location
}

// KeyService manages webhook keys.
type KeyService interface {
	CurrentKey(ctx context.Context) (*domain.AccessKey, error)
	Rotate(ctx context.Context) (*domain.AccessKey, error)
	Lookup(ctx context.Context, value string) (*domain.AccessKey, bool, error)
	History(ctx context.Context, limit int) ([]domain.AccessKey, error)
}

// AuditLog records and lists webhook access.
type AuditLog interface {
	Record(ctx context.Context, keyID *uuid.UUID, success bool, errMsg string, req app.RequestContext)
	Recent(ctx context.Context, limit int) ([]domain.AccessLogEntry, error)
}

// CodeService lists and edits classification codes.
type CodeService interface {
	List(ctx context.Context, page, perPage int) (app.Page[domain.ProductCode], error)
	Save(ctx context.Context, productID int64, code string) error
}

// RateLimiter limits webhook calls per subject.
type RateLimiter interface {
	Allow(ctx context.Context, scope, subject string, limit int, window time.Duration) (bool, int, error)
}

// Deps are the collaborators of the handlers. Limiter and Metrics may be nil.
type Deps struct {
	Reports       ReportService
	Builder       app.ReportBuilder
	Writer        app.ArtifactWriter
	Keys          KeyService
	Audit         AuditLog
	Codes         CodeService
	Limiter       RateLimiter
	Metrics       *observability.Metrics
	Logger        *slog.Logger
	PublicBaseURL string
	RatePerMinute int
}

// Handler holds the application services that handlers will interact with.
type Handler struct {
	reports       ReportService
	builder       app.ReportBuilder
	writer        app.ArtifactWriter
	keys          KeyService
	audit         AuditLog
	codes         CodeService
	limiter       RateLimiter
	metrics       *observability.Metrics
	logger        *slog.Logger
	baseURL       string
	ratePerMinute int
	now           func() time.Time
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(d Deps) *Handler {
	return &Handler{
		reports:       d.Reports,
		builder:       d.Builder,
		writer:        d.Writer,
		keys:          d.Keys,
		audit:         d.Audit,
		codes:         d.Codes,
		limiter:       d.Limiter,
		metrics:       d.Metrics,
		logger:        d.Logger,
		baseURL:       strings.TrimRight(d.PublicBaseURL, "/"),
		ratePerMinute: d.RatePerMinute,
		now:           time.Now,
	}
}

type scheduleResponse struct {
	Enabled        bool       `json:"enabled"`
	Recipients     []string   `json:"recipients"`
	DayOfMonth     int        `json:"day_of_month"`
	Time           string     `json:"time"`
	Timezone       string     `json:"timezone"`
	LastSentPeriod string     `json:"last_sent_period,omitempty"`
	NextRunAt      *time.Time `json:"next_run_at,omitempty"`
	WebhookURL     string     `json:"webhook_url,omitempty"`
}

func (h *Handler) webhookURL(ctx context.Context) string {
	key, err := h.keys.CurrentKey(ctx)
	if err != nil {
		h.logger.Warn("failed to load access key for webhook url", "error", err)
		return ""
	}
	return h.baseURL + "/webhooks/gst-report?trigger=1&key=" + key.Value
}

func (h *Handler) scheduleResponse(ctx context.Context, state *domain.ScheduleState) scheduleResponse {
	recipients := state.Config.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	return scheduleResponse{
		Enabled:        state.Config.Enabled,
		Recipients:     recipients,
		DayOfMonth:     state.Config.DayOfMonth,
		Time:           state.Config.TimeOfDay(),
		Timezone:       h.reports.Location().String(),
		LastSentPeriod: state.LastSentPeriod,
		NextRunAt:      state.NextRunAt,
		WebhookURL:     h.webhookURL(ctx),
	}
}

func (h *Handler) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	state, err := h.reports.Schedule(r.Context())
	if err != nil {
		h.logger.Error("failed to load schedule", "error", err)
		respondWithError(w, http.StatusInternalServerError, "failed to load schedule")
		return
	}
	respondWithJSON(w, http.StatusOK, h.scheduleResponse(r.Context(), state))
}

func (h *Handler) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var in app.ScheduleInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	state, err := h.reports.UpdateSchedule(r.Context(), in, h.now())
	if err != nil {
		h.logger.Error("failed to update schedule", "error", err)
		respondWithError(w, http.StatusInternalServerError, "failed to update schedule")
		return
	}
	respondWithJSON(w, http.StatusOK, h.scheduleResponse(r.Context(), state))
}

func (h *Handler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	result, err := h.reports.Attempt(context.WithoutCancel(r.Context()), app.SourceManual, h.now())
	if err != nil {
		respondWithJSON(w, http.StatusBadGateway, map[string]interface{}{
			"success": false,
			"message": err.Error(),
			"result":  result,
		})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": result.Message(),
		"result":  result,
	})
}

type sendNowRequest struct {
	Month      string   `json:"month"`
	Recipients []string `json:"recipients"`
}

func (h *Handler) handleSendNow(w http.ResponseWriter, r *http.Request) {
	var req sendNowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	period, err := h.periodParam(req.Month)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	recipients := app.NormalizeRecipients(req.Recipients)
	if len(req.Recipients) > 0 && len(recipients) == 0 {
		respondWithError(w, http.StatusBadRequest, "no valid recipient addresses")
		return
	}

	outcome, err := h.reports.SendNow(context.WithoutCancel(r.Context()), period, recipients)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, app.ErrNoRecipients) {
			status = http.StatusBadRequest
		}
		respondWithJSON(w, status, map[string]interface{}{
			"success":  false,
			"message":  err.Error(),
			"dispatch": outcome,
		})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"message":  "report for " + period.Label() + " sent",
		"dispatch": outcome,
	})
}

// periodParam parses YYYY-MM, defaulting to the month before the current one.
func (h *Handler) periodParam(value string) (domain.Period, error) {
	if strings.TrimSpace(value) == "" {
		return domain.PeriodOf(h.now().In(h.reports.Location())).Previous(), nil
	}
	return domain.ParsePeriod(value)
}

type previewResponse struct {
	Period  string             `json:"period"`
	Label   string             `json:"label"`
	Headers [][]string         `json:"headers"`
	Rows    app.Page[[]string] `json:"rows"`
	Groups  []domain.TaxGroup  `json:"groups"`
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	period, err := h.periodParam(r.URL.Query().Get("month"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := h.builder.Build(r.Context(), period)
	if err != nil {
		h.logger.Error("failed to build report preview", "period", period.String(), "error", err)
		respondWithError(w, http.StatusInternalServerError, "failed to build report")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	respondWithJSON(w, http.StatusOK, previewResponse{
		Period:  period.String(),
		Label:   period.Label(),
		Headers: report.HeaderRows(),
		Rows:    app.PageRows(report.DataRows(), page, perPage),
		Groups:  report.Layout.Groups(),
	})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	period, err := h.periodParam(r.URL.Query().Get("month"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := h.builder.Build(r.Context(), period)
	if err != nil {
		h.logger.Error("failed to build report export", "period", period.String(), "error", err)
		respondWithError(w, http.StatusInternalServerError, "failed to build report")
		return
	}
	artifact, err := h.writer.Write(report.HeaderRows(), report.DataRows(), report.GeneratedAt, report.Filename())
	if err != nil {
		h.logger.Error("failed to write report export", "period", period.String(), "error", err)
		respondWithError(w, http.StatusInternalServerError, "failed to write report")
		return
	}
	defer func() {
		if err := artifact.Remove(); err != nil {
			h.logger.Warn("failed to remove export artifact", "path", artifact.Path, "error", err)
		}
	}()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+artifact.Filename+`"`)
	http.ServeFile(w, r, artifact.Path)
}

func (h *Handler) handleGetAccessKey(w http.ResponseWriter, r *http.Request) {
	key, err := h.keys.CurrentKey(r.Context())
	if err != nil {
		h.logger.Error("failed to load access key", "error", err)
		respondWithError(w, http.StatusInternalServerError, "failed to load access key")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"key":         key,
		"webhook_url": h.baseURL + "/webhooks/gst-report?trigger=1&key=" + key.Value,
	})
}

func (h *Handler) handleRotateAccessKey(w http.ResponseWriter, r *http.Request) {
	key, err := h.keys.Rotate(r.Context())
	if err != nil {
		h.logger.Error("failed to rotate access key", "error", err)
		respondWithError(w, http.StatusInternalServerError, "failed to rotate access key")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"key":         key,
		"webhook_url": h.baseURL + "/webhooks/gst-report?trigger=1&key=" + key.Value,
	})
}

func (h *Handler) handleListAccessKeys(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	keys, err := h.keys.History(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list access keys", "error", err)
		respondWithError(w, http.StatusInternalServerError, "failed to list access keys")
		return
	}
	if keys == nil {
		keys = []domain.AccessKey{}
	}
	respondWithJSON(w, http.StatusOK, keys)
}

func (h *Handler) handleListAccessLogs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.audit.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list access logs", "error", err)
		respondWithError(w, http.StatusInternalServerError, "failed to list access logs")
		return
	}
	if entries == nil {
		entries = []domain.AccessLogEntry{}
	}
	respondWithJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleListCodes(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	result, err := h.codes.List(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("failed to list classification codes", "error", err)
		respondWithError(w, http.StatusInternalServerError, "failed to list classification codes")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSaveCode(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || productID <= 0 {
		respondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch err := h.codes.Save(r.Context(), productID, body.Code); {
	case err == nil:
		respondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true, "product_id": productID, "code": strings.TrimSpace(body.Code)})
	case errors.Is(err, app.ErrInvalidCode):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrProductNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("failed to save classification code", "product_id", productID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "failed to save classification code")
	}
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]interface{}{"success": false, "message": message})
}
