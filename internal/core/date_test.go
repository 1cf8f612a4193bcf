package core

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-09-01")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.String() != "2026-09-01" {
		t.Errorf("round trip = %q", d.String())
	}
	if d.Hour() != 12 {
		t.Errorf("anchor hour = %d, want noon", d.Hour())
	}

	zero, err := ParseDate("")
	if err != nil {
		t.Fatalf("empty input should not error: %v", err)
	}
	if !zero.IsZero() {
		t.Error("empty input should yield the zero date")
	}
	if zero.String() != "" {
		t.Errorf("zero date renders %q, want empty", zero.String())
	}

	if _, err := ParseDate("01/09/2026"); err == nil {
		t.Error("expected error for wrong layout")
	}
}

func TestDaysUntil(t *testing.T) {
	tests := []struct {
		from, to Date
		want     int
	}{
		{NewDate(2026, 9, 1), NewDate(2026, 9, 1), 0},
		{NewDate(2026, 9, 1), NewDate(2026, 9, 8), 7},
		{NewDate(2026, 9, 1), NewDate(2026, 10, 1), 30},
		{NewDate(2026, 9, 1), NewDate(2026, 8, 31), -1},
		// Across the late-October DST transition the day count must stay
		// whole; that is what the noon anchor buys.
		{NewDate(2026, 10, 20), NewDate(2026, 11, 3), 14},
	}
	for _, tt := range tests {
		if got := tt.from.DaysUntil(tt.to); got != tt.want {
			t.Errorf("DaysUntil(%s, %s) = %d, want %d", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestDaysUntilAcrossSpringForward(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	prev := time.Local
	time.Local = loc
	defer func() { time.Local = prev }()

	// Clocks jump forward on 2026-03-08, leaving only 23h between the
	// two noon anchors. The count must still land on a whole day in
	// both directions.
	before := NewDate(2026, 3, 7)
	after := NewDate(2026, 3, 8)
	if got := after.DaysUntil(before); got != -1 {
		t.Errorf("backward across transition = %d, want -1", got)
	}
	if got := before.DaysUntil(after); got != 1 {
		t.Errorf("forward across transition = %d, want 1", got)
	}
}

func TestMonthKeyAndAddMonths(t *testing.T) {
	d := NewDate(2026, 9, 15)
	if d.MonthKey() != "2026-09" {
		t.Errorf("month key = %q", d.MonthKey())
	}

	tests := []struct {
		n    int
		want string
	}{
		{0, "2026-09-01"},
		{-5, "2026-04-01"},
		{-9, "2025-12-01"}, // year rollover
		{4, "2027-01-01"},
	}
	for _, tt := range tests {
		if got := d.AddMonths(tt.n).String(); got != tt.want {
			t.Errorf("AddMonths(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestToday(t *testing.T) {
	now := time.Date(2026, 9, 1, 23, 45, 0, 0, time.Local)
	d := Today(now)
	if d.String() != "2026-09-01" {
		t.Errorf("today = %q", d.String())
	}
	if d.Hour() != 12 {
		t.Errorf("anchor hour = %d", d.Hour())
	}
}
