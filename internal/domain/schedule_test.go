package domain

import (
	"testing"
	"time"
)

func TestNextRun_StrictlyAfterNowOnConfiguredDay(t *testing.T) {
	cfg := ScheduleConfig{Enabled: true, DayOfMonth: 15, Hour: 6, Minute: 30}
	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before this month", time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC), time.Date(2024, 3, 15, 6, 30, 0, 0, time.UTC)},
		{"exactly due", time.Date(2024, 3, 15, 6, 30, 0, 0, time.UTC), time.Date(2024, 4, 15, 6, 30, 0, 0, time.UTC)},
		{"after this month", time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC), time.Date(2024, 4, 15, 6, 30, 0, 0, time.UTC)},
		{"december rolls year", time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC), time.Date(2025, 1, 15, 6, 30, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextRun(cfg, tc.now)
			if !got.Equal(tc.want) {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
			if !got.After(tc.now) {
				t.Fatalf("expected next run after %s, got %s", tc.now, got)
			}
		})
	}
}

func TestNextRun_PropertyOverAYear(t *testing.T) {
	cfg := ScheduleConfig{DayOfMonth: 28, Hour: 23, Minute: 59}
	now := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 365*4; i++ {
		now = now.Add(6 * time.Hour)
		got := NextRun(cfg, now)
		if !got.After(now) {
			t.Fatalf("next run %s not after %s", got, now)
		}
		if got.Day() != 28 || got.Hour() != 23 || got.Minute() != 59 {
			t.Fatalf("next run %s not on configured day and time", got)
		}
		if got.Sub(now) > 32*24*time.Hour {
			t.Fatalf("next run %s more than a month after %s", got, now)
		}
	}
}

func TestNextRun_UsesLocationOfNow(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, loc)
	got := NextRun(ScheduleConfig{DayOfMonth: 1, Hour: 9}, now)
	want := time.Date(2024, 3, 1, 9, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestNormalized_ClampsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		in   ScheduleConfig
		want ScheduleConfig
	}{
		{"day zero", ScheduleConfig{DayOfMonth: 0, Hour: 10, Minute: 5}, ScheduleConfig{DayOfMonth: 1, Hour: 10, Minute: 5}},
		{"day 29", ScheduleConfig{DayOfMonth: 29, Hour: 10, Minute: 5}, ScheduleConfig{DayOfMonth: 1, Hour: 10, Minute: 5}},
		{"hour 25", ScheduleConfig{DayOfMonth: 5, Hour: 25, Minute: 0}, ScheduleConfig{DayOfMonth: 5, Hour: 9, Minute: 0}},
		{"minute 60", ScheduleConfig{DayOfMonth: 5, Hour: 3, Minute: 60}, ScheduleConfig{DayOfMonth: 5, Hour: 9, Minute: 0}},
		{"valid", ScheduleConfig{DayOfMonth: 28, Hour: 0, Minute: 59}, ScheduleConfig{DayOfMonth: 28, Hour: 0, Minute: 59}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.in.Normalized()
			if got.DayOfMonth != tc.want.DayOfMonth || got.Hour != tc.want.Hour || got.Minute != tc.want.Minute {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	if h, m, ok := ParseTimeOfDay("07:45"); !ok || h != 7 || m != 45 {
		t.Fatalf("expected 07:45, got %d:%d ok=%v", h, m, ok)
	}
	for _, bad := range []string{"25:00", "12:60", "noon", "", "1:2:3"} {
		if _, _, ok := ParseTimeOfDay(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestPeriod_RangeAndNeighbours(t *testing.T) {
	p, err := ParsePeriod("2024-02")
	if err != nil {
		t.Fatalf("ParsePeriod returned error: %v", err)
	}
	r := p.Range(time.UTC)
	if !r.Start.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected range start %s", r.Start)
	}
	if !r.End.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected range end %s", r.End)
	}
	if got := p.Previous().String(); got != "2024-01" {
		t.Fatalf("expected previous 2024-01, got %s", got)
	}
	if got := (Period{Year: 2024, Month: time.January}).Previous().String(); got != "2023-12" {
		t.Fatalf("expected previous 2023-12, got %s", got)
	}
	if got := p.Label(); got != "February 2024" {
		t.Fatalf("unexpected label %q", got)
	}
	if _, err := ParsePeriod("2024/02"); err == nil {
		t.Fatal("expected invalid period error")
	}
}

func TestPeriod_RangeCoversSubSecondMonthEnd(t *testing.T) {
	march := Period{Year: 2024, Month: time.March}
	april := march.Next()

	tests := []struct {
		name    string
		at      time.Time
		inMarch bool
		inApril bool
	}{
		{name: "half second before midnight", at: time.Date(2024, 3, 31, 23, 59, 59, 500_000_000, time.UTC), inMarch: true},
		{name: "last nanosecond", at: time.Date(2024, 3, 31, 23, 59, 59, 999_999_999, time.UTC), inMarch: true},
		{name: "midnight", at: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), inApril: true},
		{name: "first instant", at: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), inMarch: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := march.Range(time.UTC).Contains(tt.at); got != tt.inMarch {
				t.Fatalf("march contains %s: expected %v, got %v", tt.at, tt.inMarch, got)
			}
			if got := april.Range(time.UTC).Contains(tt.at); got != tt.inApril {
				t.Fatalf("april contains %s: expected %v, got %v", tt.at, tt.inApril, got)
			}
		})
	}
}

func TestPeriod_RangeIsContiguous(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	p := Period{Year: 2023, Month: time.January}
	for i := 0; i < 24; i++ {
		if !p.Range(loc).End.Equal(p.Next().Range(loc).Start) {
			t.Fatalf("gap between %s and %s", p, p.Next())
		}
		p = p.Next()
	}
}
