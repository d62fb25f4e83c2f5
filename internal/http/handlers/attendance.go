package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"cafe-ops-service/internal/middleware"
	"cafe-ops-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type attendancePunchRequest struct {
	EmployeeID int64  `json:"employeeId"`
	Pin        string `json:"pin"`
}

func (h *Handler) verifyEmployeePin(ctx context.Context, cafeID, employeeID int64, pin string) (bool, error) {
	var pinHash string
	err := h.DB.QueryRow(ctx, `
		select pin_hash from employees
		where id = $1 and cafe_id = $2 and deleted_at is null and is_active = true
	`, employeeID, cafeID).Scan(&pinHash)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return bcrypt.CompareHashAndPassword([]byte(pinHash), []byte(pin)) == nil, nil
}

// AttendanceClockIn opens the attendance record for today's assigned shift.
func (h *Handler) AttendanceClockIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}
	cafeID := *authCtx.CafeID

	var body attendancePunchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	okPin, err := h.verifyEmployeePin(ctx, cafeID, body.EmployeeID, body.Pin)
	if err != nil {
		h.Logger.Error("pin verify failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to clock in")
		return
	}
	if !okPin {
		response.Error(w, http.StatusUnauthorized, "INVALID_PIN", "Employee or pin is not valid")
		return
	}

	// Today's assignment anchors the punch to a scheduled shift.
	var assignmentID int64
	err = h.DB.QueryRow(ctx, `
		select id from shift_assignments
		where cafe_id = $1 and employee_id = $2 and work_date = current_date
		order by id limit 1
	`, cafeID, body.EmployeeID).Scan(&assignmentID)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusConflict, "NO_SHIFT_TODAY", "Employee has no shift scheduled today")
		return
	}
	if err != nil {
		h.Logger.Error("assignment lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to clock in")
		return
	}

	now := time.Now()
	var recordID int64
	err = h.DB.QueryRow(ctx, `
		insert into attendance_records (cafe_id, employee_id, assignment_id, work_date, clock_in)
		values ($1, $2, $3, current_date, $4)
		on conflict (employee_id, work_date) do nothing
		returning id
	`, cafeID, body.EmployeeID, assignmentID, now).Scan(&recordID)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusConflict, "ALREADY_CLOCKED_IN", "Employee already clocked in today")
		return
	}
	if err != nil {
		h.Logger.Error("clock in insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to clock in")
		return
	}

	h.Logger.Info("employee clocked in",
		zap.Int64("employeeId", body.EmployeeID),
		zap.Int64("recordId", recordID))

	response.Success(w, map[string]any{
		"recordId": recordID,
		"clockIn":  now,
	})
}

// AttendanceClockOut closes today's open attendance record.
func (h *Handler) AttendanceClockOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}
	cafeID := *authCtx.CafeID

	var body attendancePunchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	okPin, err := h.verifyEmployeePin(ctx, cafeID, body.EmployeeID, body.Pin)
	if err != nil {
		h.Logger.Error("pin verify failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to clock out")
		return
	}
	if !okPin {
		response.Error(w, http.StatusUnauthorized, "INVALID_PIN", "Employee or pin is not valid")
		return
	}

	now := time.Now()
	var recordID int64
	err = h.DB.QueryRow(ctx, `
		update attendance_records
		set clock_out = $3
		where cafe_id = $1 and employee_id = $2 and work_date = current_date and clock_out is null
		returning id
	`, cafeID, body.EmployeeID, now).Scan(&recordID)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusConflict, "NOT_CLOCKED_IN", "Employee has no open attendance record today")
		return
	}
	if err != nil {
		h.Logger.Error("clock out update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to clock out")
		return
	}

	response.Success(w, map[string]any{
		"recordId": recordID,
		"clockOut": now,
	})
}

// AttendanceList shows the punches of one day next to the scheduled shift
// windows, with the late and left-early flags applied.
func (h *Handler) AttendanceList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}

	day, err := parseDateInput(defaultString(r.URL.Query().Get("date"), time.Now().Format("2006-01-02")))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid date")
		return
	}

	rows, err := h.DB.Query(ctx, `
		select e.id, e.name, t.start_time, t.end_time, ar.clock_in, ar.clock_out
		from shift_assignments sa
		join employees e on e.id = sa.employee_id
		join shift_templates t on t.id = sa.template_id
		left join attendance_records ar
		  on ar.employee_id = sa.employee_id and ar.work_date = sa.work_date
		where sa.cafe_id = $1 and sa.work_date = $2::date
		order by t.start_time, e.name
	`, *authCtx.CafeID, day.Format("2006-01-02"))
	if err != nil {
		h.Logger.Error("attendance list query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve attendance")
		return
	}
	defer rows.Close()

	grace := time.Duration(h.Config.AttendanceGraceMin) * time.Minute
	records := make([]map[string]any, 0)
	for rows.Next() {
		var (
			employeeID   int64
			employeeName string
			startTime    pgtype.Time
			endTime      pgtype.Time
			clockIn      pgtype.Timestamptz
			clockOut     pgtype.Timestamptz
		)
		if err := rows.Scan(&employeeID, &employeeName, &startTime, &endTime, &clockIn, &clockOut); err != nil {
			h.Logger.Error("attendance list scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve attendance")
			return
		}

		scheduledStart := clockFromParts(day, startTime)
		scheduledEnd := clockFromParts(day, endTime)
		late := clockIn.Valid && clockIn.Time.After(scheduledStart.Add(grace))
		leftEarly := clockOut.Valid && clockOut.Time.Before(scheduledEnd.Add(-grace))
		absent := !clockIn.Valid && !clockOut.Valid

		records = append(records, map[string]any{
			"employeeId":     employeeID,
			"employeeName":   employeeName,
			"scheduledStart": scheduledStart.Format("15:04"),
			"scheduledEnd":   scheduledEnd.Format("15:04"),
			"clockIn":        nullableTime(clockIn),
			"clockOut":       nullableTime(clockOut),
			"late":           late,
			"leftEarly":      leftEarly,
			"absent":         absent,
		})
	}

	response.Success(w, map[string]any{
		"date":    day.Format("2006-01-02"),
		"records": records,
	})
}

func clockFromParts(day time.Time, clock pgtype.Time) time.Time {
	total := clock.Microseconds / 1_000_000
	return time.Date(day.Year(), day.Month(), day.Day(), int(total/3600), int(total%3600/60), 0, 0, time.Local)
}
