/**
 * @description
 * Trigger arbitration. Every trigger path funnels into Attempt, which sends the
 * previous month's report at most once per period.
 */
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pplcallmesatz/gst-auditor-report/internal/domain"
	"github.com/pplcallmesatz/gst-auditor-report/internal/observability"
)

// Source names the trigger path that started an attempt.
type Source string

const (
	SourceTimer    Source = "timer"
	SourceHourly   Source = "hourly_check"
	SourceFast     Source = "fast_check"
	SourceActivity Source = "activity"
	SourceWebhook  Source = "webhook"
	SourceManual   Source = "manual"
	SourceCLI      Source = "cli"
)

// Outcome is the result of one attempt.
type Outcome string

const (
	OutcomeDisabled     Outcome = "disabled"
	OutcomeNoRecipients Outcome = "no_recipients"
	OutcomeAlreadySent  Outcome = "already_sent"
	OutcomeNotDue       Outcome = "not_due"
	OutcomeClaimed      Outcome = "claimed"
	OutcomeSent         Outcome = "sent"
	OutcomeFailed       Outcome = "failed"
)

// AttemptResult describes what an attempt did.
type AttemptResult struct {
	Outcome      Outcome          `json:"outcome"`
	Period       string           `json:"period,omitempty"`
	ReportPeriod string           `json:"report_period,omitempty"`
	NextRunAt    *time.Time       `json:"next_run_at,omitempty"`
	Dispatch     *DispatchOutcome `json:"dispatch,omitempty"`
}

// Message is a short human-readable summary.
func (r AttemptResult) Message() string {
	switch r.Outcome {
	case OutcomeDisabled:
		return "scheduled sending is disabled"
	case OutcomeNoRecipients:
		return "no recipients configured"
	case OutcomeAlreadySent:
		return fmt.Sprintf("report already sent for %s", r.Period)
	case OutcomeNotDue:
		return "report is not due yet"
	case OutcomeClaimed:
		return "report is being sent by another trigger"
	case OutcomeSent:
		return fmt.Sprintf("report for %s sent", r.ReportPeriod)
	default:
		return "report send failed"
	}
}

const claimMargin = 30 * time.Second

// Arbiter decides whether an attempt sends the report and guards against double sends
// through the settings store claim.
type Arbiter struct {
	settings SettingsStore
	builder  ReportBuilder
	sender   ReportSender
	waker    Waker
	events   EventPublisher
	metrics  *observability.Metrics
	logger   *slog.Logger
	loc      *time.Location
	timeout  time.Duration
}

func NewArbiter(settings SettingsStore, builder ReportBuilder, sender ReportSender, waker Waker, events EventPublisher, metrics *observability.Metrics, logger *slog.Logger, loc *time.Location, timeout time.Duration) *Arbiter {
	if loc == nil {
		loc = time.UTC
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Arbiter{
		settings: settings,
		builder:  builder,
		sender:   sender,
		waker:    waker,
		events:   events,
		metrics:  metrics,
		logger:   logger,
		loc:      loc,
		timeout:  timeout,
	}
}

// Location is the business timezone used for periods.
func (a *Arbiter) Location() *time.Location { return a.loc }

// Attempt runs one trigger. It is safe to call concurrently from every path.
func (a *Arbiter) Attempt(ctx context.Context, source Source, now time.Time) (result AttemptResult, err error) {
	now = now.In(a.loc)
	current := domain.PeriodOf(now)
	result.Period = current.String()

	state, err := a.settings.GetSchedule(ctx)
	if err != nil {
		result.Outcome = OutcomeFailed
		a.finish(source, result, err)
		return result, fmt.Errorf("load schedule: %w", err)
	}
	cfg := state.Config.Normalized()

	defer func() {
		result.NextRunAt = a.rearm(ctx, cfg, now)
		a.finish(source, result, err)
	}()

	if !cfg.Enabled {
		result.Outcome = OutcomeDisabled
		return result, nil
	}
	if len(cfg.Recipients) == 0 {
		result.Outcome = OutcomeNoRecipients
		return result, nil
	}
	if state.LastSentPeriod == current.String() {
		result.Outcome = OutcomeAlreadySent
		return result, nil
	}
	if now.Before(domain.DueAt(cfg, current, a.loc)) {
		result.Outcome = OutcomeNotDue
		return result, nil
	}

	claimed, err := a.settings.ClaimPeriod(ctx, current.String(), now, a.timeout+claimMargin)
	if err != nil {
		result.Outcome = OutcomeFailed
		return result, fmt.Errorf("claim period: %w", err)
	}
	if !claimed {
		result.Outcome = OutcomeClaimed
		return result, nil
	}

	reportPeriod := current.Previous()
	result.ReportPeriod = reportPeriod.String()

	dispatch, err := a.buildAndSend(ctx, reportPeriod, cfg.Recipients)
	result.Dispatch = dispatch
	event := ReportEvent{
		Period:       current.String(),
		ReportPeriod: reportPeriod.String(),
		Source:       string(source),
		Recipients:   len(cfg.Recipients),
		OccurredAt:   time.Now().UTC(),
	}
	if dispatch != nil {
		event.Rows = dispatch.Rows
	}

	if err != nil {
		if relErr := a.settings.ReleaseClaim(context.WithoutCancel(ctx), current.String()); relErr != nil {
			a.logger.Error("failed to release report claim", "period", current.String(), "error", relErr)
		}
		event.Error = err.Error()
		publishEvent(ctx, a.events, a.logger, EventReportFailed, event)
		result.Outcome = OutcomeFailed
		return result, err
	}

	if doneErr := a.settings.CompleteClaim(context.WithoutCancel(ctx), current.String()); doneErr != nil {
		a.logger.Error("report sent but marker not recorded", "period", current.String(), "error", doneErr)
	}
	publishEvent(ctx, a.events, a.logger, EventReportDispatched, event)
	result.Outcome = OutcomeSent
	return result, nil
}

func (a *Arbiter) buildAndSend(ctx context.Context, period domain.Period, recipients []string) (*DispatchOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	started := time.Now()
	defer func() { a.metrics.Dispatch(time.Since(started)) }()

	report, err := a.builder.Build(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("build report: %w", err)
	}
	return a.sender.Send(ctx, report, recipients)
}

// SendNow builds and mails the report for period without consulting or touching the
// send marker. Empty recipients fall back to the configured list.
func (a *Arbiter) SendNow(ctx context.Context, period domain.Period, recipients []string) (*DispatchOutcome, error) {
	if len(recipients) == 0 {
		state, err := a.settings.GetSchedule(ctx)
		if err != nil {
			return nil, fmt.Errorf("load schedule: %w", err)
		}
		recipients = state.Config.Recipients
	}
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}
	outcome, err := a.buildAndSend(ctx, period, recipients)
	if err != nil {
		a.logger.Error("manual report send failed", "period", period.String(), "error", err)
		return outcome, err
	}
	a.logger.Info("manual report sent", "period", period.String(), "recipients", len(recipients))
	return outcome, nil
}

// EnsureArmed loads the schedule and arms or disarms the wake-up timer to match it.
func (a *Arbiter) EnsureArmed(ctx context.Context, now time.Time) (*time.Time, error) {
	state, err := a.settings.GetSchedule(ctx)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	return a.rearm(ctx, state.Config.Normalized(), now.In(a.loc)), nil
}

func (a *Arbiter) rearm(ctx context.Context, cfg domain.ScheduleConfig, now time.Time) *time.Time {
	ctx = context.WithoutCancel(ctx)
	if !cfg.Enabled || len(cfg.Recipients) == 0 {
		if _, armed := a.waker.Armed(); armed {
			a.waker.Disarm()
			a.logger.Info("report wake-up disarmed")
		}
		a.metrics.NextRun(time.Time{})
		if err := a.settings.SetNextRun(ctx, nil); err != nil {
			a.logger.Warn("failed to clear next run", "error", err)
		}
		return nil
	}

	next := domain.NextRun(cfg, now)
	if at, armed := a.waker.Armed(); armed && at.Equal(next) {
		return &next
	}
	a.waker.Arm(next)
	a.metrics.NextRun(next)
	if err := a.settings.SetNextRun(ctx, &next); err != nil {
		a.logger.Warn("failed to persist next run", "next_run_at", next, "error", err)
	}
	a.logger.Info("report wake-up armed", "next_run_at", next)
	return &next
}

func (a *Arbiter) finish(source Source, result AttemptResult, err error) {
	a.metrics.Attempt(string(source), string(result.Outcome))
	attrs := []any{"source", source, "outcome", result.Outcome, "period", result.Period}
	switch {
	case err != nil:
		a.logger.Error("report attempt failed", append(attrs, "error", err)...)
	case result.Outcome == OutcomeSent:
		a.logger.Info("report attempt sent", append(attrs, "report_period", result.ReportPeriod)...)
	default:
		a.logger.Debug("report attempt skipped", attrs...)
	}
}
