package payroll

import (
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 8, 3, hour, minute, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func entry(in, out *time.Time) TimesheetEntry {
	return TimesheetEntry{
		Date:           at(0, 0),
		ScheduledStart: at(8, 0),
		ScheduledEnd:   at(16, 0),
		ClockIn:        in,
		ClockOut:       out,
		HourlyRate:     20000,
	}
}

func TestComputeDay(t *testing.T) {
	cases := []struct {
		name     string
		entry    TimesheetEntry
		expected DayResult
	}{
		{
			name:  "full shift on time",
			entry: entry(ptr(at(8, 0)), ptr(at(16, 0))),
			expected: DayResult{
				WorkedHours:  8,
				RegularHours: 8,
				Pay:          160000,
			},
		},
		{
			name:  "two hours overtime",
			entry: entry(ptr(at(8, 0)), ptr(at(18, 0))),
			expected: DayResult{
				WorkedHours:   10,
				RegularHours:  8,
				OvertimeHours: 2,
				Pay:           160000 + 60000,
			},
		},
		{
			name:  "late past grace",
			entry: entry(ptr(at(8, 30)), ptr(at(16, 0))),
			expected: DayResult{
				WorkedHours:  7.5,
				RegularHours: 7.5,
				Late:         true,
				LateMinutes:  30,
				Pay:          150000,
			},
		},
		{
			name:  "within grace is not late",
			entry: entry(ptr(at(8, 9)), ptr(at(16, 0))),
			expected: DayResult{
				WorkedHours:  7.85,
				RegularHours: 7.85,
				Pay:          157000,
			},
		},
		{
			name:  "left early",
			entry: entry(ptr(at(8, 0)), ptr(at(14, 0))),
			expected: DayResult{
				WorkedHours:  6,
				RegularHours: 6,
				LeftEarly:    true,
				Pay:          120000,
			},
		},
		{
			name:     "missing clock out is absent",
			entry:    entry(ptr(at(8, 0)), nil),
			expected: DayResult{Absent: true},
		},
		{
			name:     "no punches is absent",
			entry:    entry(nil, nil),
			expected: DayResult{Absent: true},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeDay(tc.entry, 10, 1.5)
			tc.expected.Date = tc.entry.Date
			if got != tc.expected {
				t.Fatalf("expected %+v, got %+v", tc.expected, got)
			}
		})
	}
}

func TestComputeDayClockOutBeforeIn(t *testing.T) {
	got := ComputeDay(entry(ptr(at(16, 0)), ptr(at(8, 0))), 10, 1.5)
	if got.WorkedHours != 0 || got.Pay != 0 {
		t.Fatalf("expected zero hours for inverted punches, got %+v", got)
	}
}

func TestComputePeriod(t *testing.T) {
	entries := []TimesheetEntry{
		entry(ptr(at(8, 0)), ptr(at(16, 0))),  // 8h regular
		entry(ptr(at(8, 0)), ptr(at(18, 0))),  // 8h + 2h overtime
		entry(ptr(at(8, 30)), ptr(at(16, 0))), // 7.5h, late
		entry(nil, nil),                       // absent
	}

	summary := ComputePeriod(entries, 10, 1.5)

	if summary.DaysWorked != 3 {
		t.Fatalf("expected 3 days worked, got %d", summary.DaysWorked)
	}
	if summary.DaysAbsent != 1 {
		t.Fatalf("expected 1 absent day, got %d", summary.DaysAbsent)
	}
	if summary.LateCount != 1 {
		t.Fatalf("expected 1 late day, got %d", summary.LateCount)
	}
	if summary.WorkedHours != 25.5 {
		t.Fatalf("expected 25.5 worked hours, got %v", summary.WorkedHours)
	}
	if summary.OvertimeHours != 2 {
		t.Fatalf("expected 2 overtime hours, got %v", summary.OvertimeHours)
	}
	// 160000 + 220000 + 150000
	if summary.GrossPay != 530000 {
		t.Fatalf("expected gross pay 530000, got %v", summary.GrossPay)
	}
	if len(summary.Days) != 4 {
		t.Fatalf("expected 4 day results, got %d", len(summary.Days))
	}
}
