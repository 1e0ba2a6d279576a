package app

import (
	"errors"
	"testing"
	"time"

	"stock-ledger/internal/core"
)

func TestDateRange_Period(t *testing.T) {
	p, err := DateRange{From: "2026-10-01", To: "2026-10-17"}.period()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantFrom := time.Date(2026, 10, 1, 0, 0, 0, 0, time.Local)
	if !p.From.Equal(wantFrom) {
		t.Errorf("From = %v, want %v", p.From, wantFrom)
	}
	// A date-only upper bound covers the whole day.
	lastInstant := time.Date(2026, 10, 17, 23, 59, 59, 999999999, time.Local)
	if !p.To.Equal(lastInstant) {
		t.Errorf("To = %v, want %v", p.To, lastInstant)
	}
}

func TestDateRange_RFC3339(t *testing.T) {
	p, err := DateRange{To: "2026-10-17T12:30:00Z"}.period()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.From.IsZero() {
		t.Errorf("From = %v, want unbounded", p.From)
	}
	if want := time.Date(2026, 10, 17, 12, 30, 0, 0, time.UTC); !p.To.Equal(want) {
		t.Errorf("To = %v, want %v", p.To, want)
	}
}

func TestDateRange_Empty(t *testing.T) {
	p, err := DateRange{}.period()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.From.IsZero() || !p.To.IsZero() {
		t.Errorf("period = %+v, want unbounded", p)
	}
}

func TestDateRange_Invalid(t *testing.T) {
	for _, r := range []DateRange{{From: "yesterday"}, {To: "17/10/2026"}} {
		_, err := r.period()
		if !errors.Is(err, core.ErrValidation) {
			t.Errorf("%+v: expected validation error, got %v", r, err)
		}
	}
}
