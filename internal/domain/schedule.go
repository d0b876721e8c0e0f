/**
 * @description
 * Schedule configuration, reporting periods and the pure next-run arithmetic
 * used by every trigger path.
 */
package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultDayOfMonth = 1
	DefaultHour       = 9
	DefaultMinute     = 0

	// MaxDayOfMonth keeps the configured day valid in every month.
	MaxDayOfMonth = 28

	periodLayout = "2006-01"
)

// ScheduleConfig describes when the monthly report is sent and to whom.
type ScheduleConfig struct {
	Enabled    bool     `json:"enabled"`
	Recipients []string `json:"recipients"`
	DayOfMonth int      `json:"day_of_month"`
	Hour       int      `json:"hour"`
	Minute     int      `json:"minute"`
}

// ScheduleState is the persisted schedule together with the send marker.
type ScheduleState struct {
	Config         ScheduleConfig `json:"config"`
	LastSentPeriod string         `json:"last_sent_period,omitempty"`
	NextRunAt      *time.Time     `json:"next_run_at,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Normalized clamps an out-of-range day to 1 and an out-of-range time to 09:00.
// Recipients are left untouched.
func (c ScheduleConfig) Normalized() ScheduleConfig {
	if c.DayOfMonth < 1 || c.DayOfMonth > MaxDayOfMonth {
		c.DayOfMonth = DefaultDayOfMonth
	}
	if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 {
		c.Hour = DefaultHour
		c.Minute = DefaultMinute
	}
	return c
}

// TimeOfDay renders the configured time as HH:MM.
func (c ScheduleConfig) TimeOfDay() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseTimeOfDay parses "HH:MM". ok is false for anything else.
func ParseTimeOfDay(value string) (hour, minute int, ok bool) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

// Period is a calendar month, the unit of reporting and of send idempotency.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the period containing t, in t's location.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod parses a "YYYY-MM" string.
func ParsePeriod(value string) (Period, error) {
	t, err := time.Parse(periodLayout, strings.TrimSpace(value))
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q: expected YYYY-MM", value)
	}
	return PeriodOf(t), nil
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Label renders the period for humans, e.g. "March 2024".
func (p Period) Label() string {
	return fmt.Sprintf("%s %d", p.Month.String(), p.Year)
}

func (p Period) Previous() Period {
	return PeriodOf(time.Date(p.Year, p.Month-1, 1, 0, 0, 0, 0, time.UTC))
}

func (p Period) Next() Period {
	return PeriodOf(time.Date(p.Year, p.Month+1, 1, 0, 0, 0, 0, time.UTC))
}

// DateRange is the half-open interval [Start, End).
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Range returns the period in loc, from its first instant up to the first
// instant of the next month.
func (p Period) Range(loc *time.Location) DateRange {
	start := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, loc)
	return DateRange{Start: start, End: start.AddDate(0, 1, 0)}
}

// DueAt is the configured send moment inside period p.
func DueAt(cfg ScheduleConfig, p Period, loc *time.Location) time.Time {
	cfg = cfg.Normalized()
	return time.Date(p.Year, p.Month, cfg.DayOfMonth, cfg.Hour, cfg.Minute, 0, 0, loc)
}

// NextRun returns the next send moment strictly after now: this month's
// configured day and time if still ahead, otherwise next month's.
func NextRun(cfg ScheduleConfig, now time.Time) time.Time {
	current := PeriodOf(now)
	candidate := DueAt(cfg, current, now.Location())
	if !candidate.After(now) {
		candidate = DueAt(cfg, current.Next(), now.Location())
	}
	return candidate
}
