package handlers

import (
	"testing"
	"time"
)

func TestUsageWindow(t *testing.T) {
	now := time.Date(2026, 8, 29, 14, 30, 0, 0, time.UTC)

	start, end := usageWindow(now, 60)
	if !end.Equal(time.Date(2026, 8, 28, 14, 30, 0, 0, time.UTC)) {
		t.Fatalf("expected window to end yesterday, got %s", end)
	}
	if !start.Equal(time.Date(2026, 6, 30, 14, 30, 0, 0, time.UTC)) {
		t.Fatalf("expected 60-day window start 2026-06-30, got %s", start)
	}

	start, end = usageWindow(now, 7)
	days := int(end.Sub(start).Hours()/24) + 1
	if days != 7 {
		t.Fatalf("expected 7-day window, got %d days", days)
	}

	// Invalid history falls back to the 60-day default.
	start, end = usageWindow(now, 0)
	days = int(end.Sub(start).Hours()/24) + 1
	if days != 60 {
		t.Fatalf("expected 60-day default window, got %d days", days)
	}
}
