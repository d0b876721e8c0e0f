package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pplcallmesatz/gst-auditor-report/internal/domain"
)

// GetSchedule loads the schedule and the send marker.
func (r *Repository) GetSchedule(ctx context.Context) (*domain.ScheduleState, error) {
	query := `
		SELECT enabled, recipients, day_of_month, send_hour, send_minute,
		       COALESCE(last_sent_period, ''), next_run_at, updated_at
		FROM gst_report_settings
		WHERE id = 1
	`
	var state domain.ScheduleState
	err := r.db.QueryRow(ctx, query).Scan(
		&state.Config.Enabled,
		&state.Config.Recipients,
		&state.Config.DayOfMonth,
		&state.Config.Hour,
		&state.Config.Minute,
		&state.LastSentPeriod,
		&state.NextRunAt,
		&state.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrSettingsNotFound
		}
		return nil, err
	}
	return &state, nil
}

// SaveSchedule persists an already normalised schedule.
func (r *Repository) SaveSchedule(ctx context.Context, cfg domain.ScheduleConfig) error {
	recipients := cfg.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	query := `
		INSERT INTO gst_report_settings (id, enabled, recipients, day_of_month, send_hour, send_minute, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE
		SET enabled = EXCLUDED.enabled,
		    recipients = EXCLUDED.recipients,
		    day_of_month = EXCLUDED.day_of_month,
		    send_hour = EXCLUDED.send_hour,
		    send_minute = EXCLUDED.send_minute,
		    updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, cfg.Enabled, recipients, cfg.DayOfMonth, cfg.Hour, cfg.Minute)
	return err
}

// ClaimPeriod takes the in-flight claim for period in a single conditional update.
// It returns false when the period was already sent or another caller holds an
// unexpired claim on it.
func (r *Repository) ClaimPeriod(ctx context.Context, period string, now time.Time, lease time.Duration) (bool, error) {
	query := `
		UPDATE gst_report_settings
		SET claim_period = $1,
		    claim_expires_at = $2,
		    updated_at = NOW()
		WHERE id = 1
		  AND (last_sent_period IS NULL OR last_sent_period <> $1)
		  AND (claim_period IS NULL OR claim_period <> $1 OR claim_expires_at IS NULL OR claim_expires_at <= $3)
		RETURNING claim_period
	`
	var claimed string
	if err := r.db.QueryRow(ctx, query, period, now.Add(lease), now).Scan(&claimed); err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CompleteClaim records period as sent and clears the claim.
func (r *Repository) CompleteClaim(ctx context.Context, period string) error {
	query := `
		UPDATE gst_report_settings
		SET last_sent_period = $1,
		    claim_period = NULL,
		    claim_expires_at = NULL,
		    updated_at = NOW()
		WHERE id = 1
	`
	_, err := r.db.Exec(ctx, query, period)
	return err
}

// ReleaseClaim drops the claim on period without touching the marker.
func (r *Repository) ReleaseClaim(ctx context.Context, period string) error {
	query := `
		UPDATE gst_report_settings
		SET claim_period = NULL,
		    claim_expires_at = NULL,
		    updated_at = NOW()
		WHERE id = 1 AND claim_period = $1
	`
	_, err := r.db.Exec(ctx, query, period)
	return err
}

// SetNextRun stores the armed wake-up time. A nil value clears it.
func (r *Repository) SetNextRun(ctx context.Context, at *time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE gst_report_settings SET next_run_at = $1 WHERE id = 1`, at)
	return err
}
