/**
 * @description
 * Scheduled job implementations. Each job is a trigger path into the arbiter.
 */
package app

import (
	"context"
	"log/slog"
	"time"
)

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	arbiter *Arbiter
	logger  *slog.Logger
	now     func() time.Time
}

// NewJobs creates a new Jobs runner.
func NewJobs(arbiter *Arbiter, logger *slog.Logger) *Jobs {
	return &Jobs{arbiter: arbiter, logger: logger, now: time.Now}
}

func (j *Jobs) run(source Source) {
	ctx := context.Background()
	result, err := j.arbiter.Attempt(ctx, source, j.now())
	if err != nil {
		j.logger.Error("scheduled report attempt failed", "source", source, "error", err)
		return
	}
	if result.Outcome == OutcomeSent {
		j.logger.Info("scheduled report attempt finished", "source", source, "report_period", result.ReportPeriod)
	}
}

// PrimaryWake runs when the single-shot timer fires.
func (j *Jobs) PrimaryWake() { j.run(SourceTimer) }

// HourlyHealthCheck is the slow fallback trigger.
func (j *Jobs) HourlyHealthCheck() { j.run(SourceHourly) }

// FastHealthCheck catches missed wake-ups shortly after they were due.
func (j *Jobs) FastHealthCheck() { j.run(SourceFast) }

// Arm arms the wake-up timer from the stored schedule.
func (j *Jobs) Arm() {
	next, err := j.arbiter.EnsureArmed(context.Background(), j.now())
	if err != nil {
		j.logger.Error("failed to arm report wake-up", "error", err)
		return
	}
	if next == nil {
		j.logger.Info("report schedule disabled, wake-up not armed")
	}
}
