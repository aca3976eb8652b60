package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseUnit(t *testing.T) {
	for _, in := range []string{"file", "WAFER", " wafer "} {
		if _, err := ParseUnit(in); err != nil {
			t.Fatalf("ParseUnit(%q) failed: %v", in, err)
		}
	}
	_, err := ParseUnit("lot")
	if !errors.Is(err, ErrInvalidUnit) {
		t.Fatalf("expected ErrInvalidUnit, got %v", err)
	}
}

func TestTimeFunctionTruncate(t *testing.T) {
	loc := time.UTC
	ts := time.Date(2026, 2, 12, 15, 4, 5, 0, loc) // Thursday

	tests := []struct {
		fn   TimeFunction
		want string
	}{
		{TimeDay, "20260212"},
		{"", "20260212"},
		{TimeWeek, "20260209"},
		{TimeMonth, "20260201"},
	}
	for _, tt := range tests {
		got := tt.fn.Truncate(ts)
		if got.Format("20060102") != tt.want {
			t.Fatalf("%q.Truncate = %s, want %s", tt.fn, got.Format("20060102"), tt.want)
		}
		if got.Hour() != 0 || got.Minute() != 0 {
			t.Fatalf("%q.Truncate kept time of day: %v", tt.fn, got)
		}
	}
}

func TestWeekRangeAtSunday(t *testing.T) {
	sunday := time.Date(2026, 2, 15, 23, 0, 0, 0, time.UTC)
	from, to := WeekRangeAt(sunday)
	if from.Format("20060102") != "20260209" || to.Format("20060102") != "20260216" {
		t.Fatalf("unexpected week for Sunday: %s -> %s", from.Format("20060102"), to.Format("20060102"))
	}
}

func TestParseTimeFunctionRejectsUnknown(t *testing.T) {
	if _, err := ParseTimeFunction("quarter"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
