package payroll

import (
	"math"
	"time"
)

// TimesheetEntry pairs one day's shift assignment with its attendance
// record. ClockIn/ClockOut are nil when the employee never punched.
type TimesheetEntry struct {
	Date           time.Time
	ScheduledStart time.Time
	ScheduledEnd   time.Time
	ClockIn        *time.Time
	ClockOut       *time.Time
	HourlyRate     float64
}

type DayResult struct {
	Date          time.Time `json:"date"`
	WorkedHours   float64   `json:"workedHours"`
	RegularHours  float64   `json:"regularHours"`
	OvertimeHours float64   `json:"overtimeHours"`
	LateMinutes   int       `json:"lateMinutes"`
	Late          bool      `json:"late"`
	LeftEarly     bool      `json:"leftEarly"`
	Absent        bool      `json:"absent"`
	Pay           float64   `json:"pay"`
}

type Summary struct {
	WorkedHours   float64     `json:"workedHours"`
	RegularHours  float64     `json:"regularHours"`
	OvertimeHours float64     `json:"overtimeHours"`
	GrossPay      float64     `json:"grossPay"`
	DaysWorked    int         `json:"daysWorked"`
	DaysAbsent    int         `json:"daysAbsent"`
	LateCount     int         `json:"lateCount"`
	Days          []DayResult `json:"days"`
}

// ComputeDay settles a single day. Hours beyond the scheduled shift length
// are overtime at the overtime multiple; lateness and leaving early already
// shrink the clocked hours, so they only set flags. A day without both
// punches counts as absent and pays nothing.
func ComputeDay(entry TimesheetEntry, graceMinutes int, overtimeMultiple float64) DayResult {
	result := DayResult{Date: entry.Date}

	if entry.ClockIn == nil || entry.ClockOut == nil {
		result.Absent = true
		return result
	}
	if overtimeMultiple < 1 {
		overtimeMultiple = 1
	}
	if graceMinutes < 0 {
		graceMinutes = 0
	}

	worked := entry.ClockOut.Sub(*entry.ClockIn).Hours()
	if worked < 0 {
		worked = 0
	}
	scheduled := entry.ScheduledEnd.Sub(entry.ScheduledStart).Hours()
	if scheduled < 0 {
		scheduled = 0
	}

	regular := worked
	overtime := 0.0
	if scheduled > 0 && worked > scheduled {
		regular = scheduled
		overtime = worked - scheduled
	}

	if entry.ClockIn.After(entry.ScheduledStart.Add(time.Duration(graceMinutes) * time.Minute)) {
		result.Late = true
		result.LateMinutes = int(math.Round(entry.ClockIn.Sub(entry.ScheduledStart).Minutes()))
	}
	if entry.ClockOut.Before(entry.ScheduledEnd.Add(-time.Duration(graceMinutes) * time.Minute)) {
		result.LeftEarly = true
	}

	result.WorkedHours = round2(worked)
	result.RegularHours = round2(regular)
	result.OvertimeHours = round2(overtime)
	result.Pay = round2(entry.HourlyRate*regular + entry.HourlyRate*overtimeMultiple*overtime)
	return result
}

// ComputePeriod settles every entry in a payroll period.
func ComputePeriod(entries []TimesheetEntry, graceMinutes int, overtimeMultiple float64) Summary {
	summary := Summary{Days: make([]DayResult, 0, len(entries))}

	for _, entry := range entries {
		day := ComputeDay(entry, graceMinutes, overtimeMultiple)
		summary.Days = append(summary.Days, day)

		if day.Absent {
			summary.DaysAbsent++
			continue
		}
		summary.DaysWorked++
		summary.WorkedHours += day.WorkedHours
		summary.RegularHours += day.RegularHours
		summary.OvertimeHours += day.OvertimeHours
		summary.GrossPay += day.Pay
		if day.Late {
			summary.LateCount++
		}
	}

	summary.WorkedHours = round2(summary.WorkedHours)
	summary.RegularHours = round2(summary.RegularHours)
	summary.OvertimeHours = round2(summary.OvertimeHours)
	summary.GrossPay = round2(summary.GrossPay)
	return summary
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
