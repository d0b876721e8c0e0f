package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pplcallmesatz/gst-auditor-report/internal/domain"
)

var validate = validator.New()

// ScheduleInput is an unvalidated schedule update.
type ScheduleInput struct {
	Enabled    bool     `json:"enabled"`
	Recipients []string `json:"recipients"`
	DayOfMonth int      `json:"day_of_month"`
	Time       string   `json:"time"`
}

// NormalizeRecipients trims entries, splits comma or newline separated lists, drops
// invalid addresses and removes case-insensitive duplicates keeping first-seen order.
func NormalizeRecipients(raw []string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, entry := range raw {
		for _, candidate := range strings.FieldsFunc(entry, func(r rune) bool {
			return r == ',' || r == '\n' || r == '\r' || r == ';'
		}) {
			candidate = strings.TrimSpace(candidate)
			if candidate == "" {
				continue
			}
			if err := validate.Var(candidate, "required,email"); err != nil {
				continue
			}
			key := strings.ToLower(candidate)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, candidate)
		}
	}
	return out
}

// NormalizeSchedule turns an input into a valid ScheduleConfig.
func NormalizeSchedule(in ScheduleInput) domain.ScheduleConfig {
	cfg := domain.ScheduleConfig{
		Enabled:    in.Enabled,
		Recipients: NormalizeRecipients(in.Recipients),
		DayOfMonth: in.DayOfMonth,
		Hour:       domain.DefaultHour,
		Minute:     domain.DefaultMinute,
	}
	if h, m, ok := domain.ParseTimeOfDay(in.Time); ok {
		cfg.Hour, cfg.Minute = h, m
	}
	return cfg.Normalized()
}

// Schedule returns the stored schedule state.
func (a *Arbiter) Schedule(ctx context.Context) (*domain.ScheduleState, error) {
	state, err := a.settings.GetSchedule(ctx)
	if err != nil {
		return nil, err
	}
	state.Config = state.Config.Normalized()
	return state, nil
}

// UpdateSchedule normalises and stores a schedule, then re-arms the wake-up.
func (a *Arbiter) UpdateSchedule(ctx context.Context, in ScheduleInput, now time.Time) (*domain.ScheduleState, error) {
	cfg := NormalizeSchedule(in)
	if err := a.settings.SaveSchedule(ctx, cfg); err != nil {
		return nil, fmt.Errorf("save schedule: %w", err)
	}
	a.logger.Info("report schedule updated",
		"enabled", cfg.Enabled,
		"recipients", len(cfg.Recipients),
		"day_of_month", cfg.DayOfMonth,
		"time", cfg.TimeOfDay(),
	)
	a.rearm(ctx, cfg, now.In(a.loc))
	return a.Schedule(ctx)
}
