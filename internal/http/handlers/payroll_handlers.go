package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cafe-ops-service/internal/middleware"
	"cafe-ops-service/internal/payroll"
	"cafe-ops-service/internal/reports"
	"cafe-ops-service/internal/utils"
	"cafe-ops-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

type payrollRunRequest struct {
	PeriodStart string `json:"periodStart"`
	PeriodEnd   string `json:"periodEnd"`
}

type employeeTimesheet struct {
	employeeID int64
	name       string
	role       string
	entries    []payroll.TimesheetEntry
}

type settledEmployee struct {
	sheet   employeeTimesheet
	summary payroll.Summary
}

// PayrollRun settles a period for every employee, persists the run and
// uploads the report PDF when object storage is configured.
func (h *Handler) PayrollRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}
	cafeID := *authCtx.CafeID

	var body payrollRunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	periodStart, err := parseDateInput(body.PeriodStart)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "periodStart must be YYYY-MM-DD")
		return
	}
	periodEnd, err := parseDateInput(body.PeriodEnd)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "periodEnd must be YYYY-MM-DD")
		return
	}
	if periodEnd.Before(periodStart) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "periodEnd must not precede periodStart")
		return
	}
	if periodEnd.Sub(periodStart) > 62*24*time.Hour {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Payroll period may span at most two months")
		return
	}

	timesheets, err := h.loadTimesheets(ctx, cafeID, periodStart, periodEnd)
	if err != nil {
		h.Logger.Error("timesheet load failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to run payroll")
		return
	}
	if len(timesheets) == 0 {
		response.Error(w, http.StatusConflict, "NO_SHIFTS_IN_PERIOD", "No shift assignments in the period")
		return
	}

	grace := h.Config.AttendanceGraceMin
	overtime := h.Config.OvertimeRateMultiple

	settled := make([]settledEmployee, 0, len(timesheets))
	totalGross := 0.0
	for _, sheet := range timesheets {
		summary := payroll.ComputePeriod(sheet.entries, grace, overtime)
		totalGross += summary.GrossPay
		settled = append(settled, settledEmployee{sheet: sheet, summary: summary})
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		h.Logger.Error("payroll run begin failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to run payroll")
		return
	}
	defer tx.Rollback(ctx)

	var runID int64
	err = tx.QueryRow(ctx, `
		insert into payroll_runs (cafe_id, period_start, period_end, total_gross, created_by)
		values ($1, $2::date, $3::date, $4, $5)
		returning id
	`, cafeID, periodStart.Format("2006-01-02"), periodEnd.Format("2006-01-02"), totalGross, authCtx.UserID).Scan(&runID)
	if err != nil {
		h.Logger.Error("payroll run insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to run payroll")
		return
	}

	for _, emp := range settled {
		if _, err := tx.Exec(ctx, `
			insert into payroll_run_items
				(run_id, employee_id, worked_hours, regular_hours, overtime_hours,
				 days_worked, days_absent, late_count, gross_pay)
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, runID, emp.sheet.employeeID, emp.summary.WorkedHours, emp.summary.RegularHours,
			emp.summary.OvertimeHours, emp.summary.DaysWorked, emp.summary.DaysAbsent,
			emp.summary.LateCount, emp.summary.GrossPay); err != nil {
			h.Logger.Error("payroll item insert failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to run payroll")
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		h.Logger.Error("payroll run commit failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to run payroll")
		return
	}

	reportURL := ""
	if h.Store != nil {
		url, err := h.uploadPayrollReport(ctx, cafeID, runID, periodStart, periodEnd, settledRows(settled), totalGross)
		if err != nil {
			// The run itself stands, report upload is retryable.
			h.Logger.Warn("payroll report upload failed", zapError(err), zap.Int64("runId", runID))
		} else {
			reportURL = url
			_, _ = h.DB.Exec(ctx, `update payroll_runs set report_url = $2 where id = $1`, runID, url)
		}
	}

	items := make([]map[string]any, 0, len(settled))
	for _, emp := range settled {
		items = append(items, map[string]any{
			"employeeId":    emp.sheet.employeeID,
			"employeeName":  emp.sheet.name,
			"workedHours":   emp.summary.WorkedHours,
			"overtimeHours": emp.summary.OvertimeHours,
			"daysWorked":    emp.summary.DaysWorked,
			"daysAbsent":    emp.summary.DaysAbsent,
			"lateCount":     emp.summary.LateCount,
			"grossPay":      emp.summary.GrossPay,
		})
	}

	response.Created(w, map[string]any{
		"runId":       runID,
		"periodStart": periodStart.Format("2006-01-02"),
		"periodEnd":   periodEnd.Format("2006-01-02"),
		"totalGross":  totalGross,
		"reportUrl":   nullableString(reportURL),
		"items":       items,
	})
}

func (h *Handler) PayrollRunsList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}

	rows, err := h.DB.Query(ctx, `
		select id, period_start, period_end, total_gross, report_url, created_at
		from payroll_runs
		where cafe_id = $1
		order by created_at desc
		limit 50
	`, *authCtx.CafeID)
	if err != nil {
		h.Logger.Error("payroll runs query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve payroll runs")
		return
	}
	defer rows.Close()

	runs := make([]map[string]any, 0)
	for rows.Next() {
		var (
			id          int64
			periodStart time.Time
			periodEnd   time.Time
			totalGross  pgtype.Numeric
			reportURL   pgtype.Text
			createdAt   time.Time
		)
		if err := rows.Scan(&id, &periodStart, &periodEnd, &totalGross, &reportURL, &createdAt); err != nil {
			h.Logger.Error("payroll runs scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve payroll runs")
			return
		}
		runs = append(runs, map[string]any{
			"id":          id,
			"periodStart": periodStart.Format("2006-01-02"),
			"periodEnd":   periodEnd.Format("2006-01-02"),
			"totalGross":  utils.NumericToFloat64(totalGross),
			"reportUrl":   nullableText(reportURL),
			"createdAt":   createdAt,
		})
	}

	response.Success(w, map[string]any{"runs": runs})
}

func (h *Handler) PayrollRunDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}

	id, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid run id")
		return
	}

	var (
		periodStart time.Time
		periodEnd   time.Time
		totalGross  pgtype.Numeric
		reportURL   pgtype.Text
		createdAt   time.Time
	)
	err = h.DB.QueryRow(ctx, `
		select period_start, period_end, total_gross, report_url, created_at
		from payroll_runs
		where id = $1 and cafe_id = $2
	`, id, *authCtx.CafeID).Scan(&periodStart, &periodEnd, &totalGross, &reportURL, &createdAt)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusNotFound, "RUN_NOT_FOUND", "Payroll run not found")
		return
	}
	if err != nil {
		h.Logger.Error("payroll run query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve payroll run")
		return
	}

	rows, err := h.DB.Query(ctx, `
		select pri.employee_id, e.name, e.role, pri.worked_hours, pri.regular_hours,
		       pri.overtime_hours, pri.days_worked, pri.days_absent, pri.late_count, pri.gross_pay
		from payroll_run_items pri
		join employees e on e.id = pri.employee_id
		where pri.run_id = $1
		order by e.name
	`, id)
	if err != nil {
		h.Logger.Error("payroll items query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve payroll run")
		return
	}
	defer rows.Close()

	items := make([]map[string]any, 0)
	for rows.Next() {
		var (
			employeeID    int64
			name          string
			role          string
			workedHours   pgtype.Numeric
			regularHours  pgtype.Numeric
			overtimeHours pgtype.Numeric
			daysWorked    int32
			daysAbsent    int32
			lateCount     int32
			grossPay      pgtype.Numeric
		)
		if err := rows.Scan(&employeeID, &name, &role, &workedHours, &regularHours, &overtimeHours, &daysWorked, &daysAbsent, &lateCount, &grossPay); err != nil {
			h.Logger.Error("payroll items scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve payroll run")
			return
		}
		items = append(items, map[string]any{
			"employeeId":    employeeID,
			"employeeName":  name,
			"role":          role,
			"workedHours":   utils.NumericToFloat64(workedHours),
			"regularHours":  utils.NumericToFloat64(regularHours),
			"overtimeHours": utils.NumericToFloat64(overtimeHours),
			"daysWorked":    daysWorked,
			"daysAbsent":    daysAbsent,
			"lateCount":     lateCount,
			"grossPay":      utils.NumericToFloat64(grossPay),
		})
	}

	response.Success(w, map[string]any{
		"id":          id,
		"periodStart": periodStart.Format("2006-01-02"),
		"periodEnd":   periodEnd.Format("2006-01-02"),
		"totalGross":  utils.NumericToFloat64(totalGross),
		"reportUrl":   nullableText(reportURL),
		"createdAt":   createdAt,
		"items":       items,
	})
}

// loadTimesheets joins assignments with attendance per employee per day.
func (h *Handler) loadTimesheets(ctx context.Context, cafeID int64, periodStart, periodEnd time.Time) ([]employeeTimesheet, error) {
	rows, err := h.DB.Query(ctx, `
		select e.id, e.name, e.role, e.hourly_rate,
		       sa.work_date, t.start_time, t.end_time, ar.clock_in, ar.clock_out
		from shift_assignments sa
		join employees e on e.id = sa.employee_id and e.deleted_at is null
		join shift_templates t on t.id = sa.template_id
		left join attendance_records ar
		  on ar.employee_id = sa.employee_id and ar.work_date = sa.work_date
		where sa.cafe_id = $1
		  and sa.work_date >= $2::date and sa.work_date <= $3::date
		order by e.id, sa.work_date
	`, cafeID, periodStart.Format("2006-01-02"), periodEnd.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	timesheets := make([]employeeTimesheet, 0)
	var current *employeeTimesheet
	for rows.Next() {
		var (
			employeeID int64
			name       string
			role       string
			hourlyRate pgtype.Numeric
			workDate   time.Time
			startTime  pgtype.Time
			endTime    pgtype.Time
			clockIn    pgtype.Timestamptz
			clockOut   pgtype.Timestamptz
		)
		if err := rows.Scan(&employeeID, &name, &role, &hourlyRate, &workDate, &startTime, &endTime, &clockIn, &clockOut); err != nil {
			return nil, err
		}

		if current == nil || current.employeeID != employeeID {
			timesheets = append(timesheets, employeeTimesheet{employeeID: employeeID, name: name, role: role})
			current = &timesheets[len(timesheets)-1]
		}
		current.entries = append(current.entries, payroll.TimesheetEntry{
			Date:           workDate,
			ScheduledStart: clockFromParts(workDate, startTime),
			ScheduledEnd:   clockFromParts(workDate, endTime),
			ClockIn:        timePtr(clockIn),
			ClockOut:       timePtr(clockOut),
			HourlyRate:     utils.NumericToFloat64(hourlyRate),
		})
	}
	return timesheets, rows.Err()
}

func settledRows(settled []settledEmployee) []reports.PayrollRow {
	rows := make([]reports.PayrollRow, 0, len(settled))
	for _, emp := range settled {
		rows = append(rows, reports.PayrollRow{
			EmployeeName:  emp.sheet.name,
			Role:          emp.sheet.role,
			DaysWorked:    emp.summary.DaysWorked,
			DaysAbsent:    emp.summary.DaysAbsent,
			LateCount:     emp.summary.LateCount,
			WorkedHours:   emp.summary.WorkedHours,
			OvertimeHours: emp.summary.OvertimeHours,
			GrossPay:      emp.summary.GrossPay,
		})
	}
	return rows
}

func (h *Handler) uploadPayrollReport(ctx context.Context, cafeID, runID int64, periodStart, periodEnd time.Time, rows []reports.PayrollRow, totalGross float64) (string, error) {
	var cafeName string
	if err := h.DB.QueryRow(ctx, `select name from cafes where id = $1`, cafeID).Scan(&cafeName); err != nil {
		return "", err
	}

	buf, err := reports.RenderPayrollPDF(reports.PayrollReportData{
		CafeName:    cafeName,
		PeriodStart: periodStart.Format("2006-01-02"),
		PeriodEnd:   periodEnd.Format("2006-01-02"),
		GeneratedAt: time.Now().Format("2006-01-02 15:04"),
		Rows:        rows,
		TotalGross:  totalGross,
	})
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("reports/%d/payroll/run-%d.pdf", cafeID, runID)
	return h.Store.PutObject(ctx, key, buf.Bytes(), "application/pdf")
}
