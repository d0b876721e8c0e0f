package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pplcallmesatz/gst-auditor-report/internal/app"
)

const (
	webhookRateScope  = "gst_webhook"
	webhookRateWindow = time.Minute
)

type webhookResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Timestamp string      `json:"timestamp"`
	Outcome   app.Outcome `json:"outcome,omitempty"`
}

// handleWebhook lets an external scheduler trigger an attempt. Each call that
// reaches it writes exactly one access log entry.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := app.RequestContext{IP: getClientIP(r), UserAgent: r.UserAgent()}
	now := h.now()

	reply := func(status int, keyID *uuid.UUID, success bool, message string, outcome app.Outcome) {
		errMsg := ""
		if !success {
			errMsg = message
		}
		h.audit.Record(ctx, keyID, success, errMsg, req)
		respondWithJSON(w, status, webhookResponse{
			Success:   success,
			Message:   message,
			Timestamp: now.In(h.reports.Location()).Format(time.RFC3339),
			Outcome:   outcome,
		})
	}

	if h.limiter != nil && h.ratePerMinute > 0 {
		allowed, retryAfter, err := h.limiter.Allow(ctx, webhookRateScope, req.IP, h.ratePerMinute, webhookRateWindow)
		if err != nil {
			h.logger.Warn("webhook rate limiter unavailable", "ip", req.IP, "error", err)
		} else if !allowed {
			h.metrics.Webhook("rate_limited")
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			reply(http.StatusTooManyRequests, nil, false, "too many requests", "")
			return
		}
	}

	if r.URL.Query().Get("trigger") != "1" {
		h.metrics.Webhook("bad_request")
		reply(http.StatusBadRequest, nil, false, "missing or invalid trigger parameter", "")
		return
	}

	key, ok, err := h.keys.Lookup(ctx, r.URL.Query().Get("key"))
	if err != nil {
		h.logger.Error("failed to look up webhook key", "error", err)
		h.metrics.Webhook("error")
		reply(http.StatusInternalServerError, nil, false, "failed to validate access key", "")
		return
	}
	if !ok {
		h.metrics.Webhook("unauthorized")
		reply(http.StatusUnauthorized, nil, false, "invalid or inactive access key", "")
		return
	}

	// A disconnecting caller must not abort a send halfway through the recipient
	// list; the arbiter's own timeout bounds the attempt.
	keyID := key.ID
	result, err := h.reports.Attempt(context.WithoutCancel(ctx), app.SourceWebhook, now)
	if err != nil {
		h.logger.Error("webhook-triggered report attempt failed", "error", err)
		h.metrics.Webhook("failed")
		reply(http.StatusOK, &keyID, false, err.Error(), result.Outcome)
		return
	}

	h.metrics.Webhook("ok")
	reply(http.StatusOK, &keyID, true, result.Message(), result.Outcome)
}
