package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"cafe-ops-service/internal/middleware"
	"cafe-ops-service/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
)

type shiftTemplateRequest struct {
	Name      string `json:"name"`
	Weekday   int    `json:"weekday"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type shiftAssignRequest struct {
	EmployeeID int64  `json:"employeeId"`
	TemplateID int64  `json:"templateId"`
	WorkDate   string `json:"workDate"`
}

func parseClock(value string) (time.Time, error) {
	return time.Parse("15:04", strings.TrimSpace(value))
}

func (h *Handler) ShiftTemplatesList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}

	rows, err := h.DB.Query(ctx, `
		select id, name, weekday, start_time, end_time
		from shift_templates
		where cafe_id = $1 and deleted_at is null
		order by weekday, start_time
	`, *authCtx.CafeID)
	if err != nil {
		h.Logger.Error("shift templates query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve shift templates")
		return
	}
	defer rows.Close()

	templates := make([]map[string]any, 0)
	for rows.Next() {
		var (
			id        int64
			name      string
			weekday   int32
			startTime pgtype.Time
			endTime   pgtype.Time
		)
		if err := rows.Scan(&id, &name, &weekday, &startTime, &endTime); err != nil {
			h.Logger.Error("shift templates scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve shift templates")
			return
		}
		templates = append(templates, map[string]any{
			"id":        id,
			"name":      name,
			"weekday":   weekday,
			"startTime": formatClock(startTime),
			"endTime":   formatClock(endTime),
		})
	}

	response.Success(w, map[string]any{"templates": templates})
}

func (h *Handler) ShiftTemplatesCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}

	var body shiftTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Name is required")
		return
	}
	if body.Weekday < 0 || body.Weekday > 6 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Weekday must be 0 (Sunday) to 6 (Saturday)")
		return
	}
	start, err := parseClock(body.StartTime)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "startTime must be HH:MM")
		return
	}
	end, err := parseClock(body.EndTime)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "endTime must be HH:MM")
		return
	}
	if !end.After(start) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "endTime must be after startTime")
		return
	}

	var id int64
	err = h.DB.QueryRow(ctx, `
		insert into shift_templates (cafe_id, name, weekday, start_time, end_time)
		values ($1, $2, $3, $4::time, $5::time)
		returning id
	`, *authCtx.CafeID, name, body.Weekday, start.Format("15:04"), end.Format("15:04")).Scan(&id)
	if err != nil {
		h.Logger.Error("shift template create failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create shift template")
		return
	}

	response.Created(w, map[string]any{"id": id})
}

func (h *Handler) ShiftTemplatesDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}

	id, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid template id")
		return
	}

	tag, err := h.DB.Exec(ctx, `
		update shift_templates set deleted_at = now()
		where id = $1 and cafe_id = $2 and deleted_at is null
	`, id, *authCtx.CafeID)
	if err != nil {
		h.Logger.Error("shift template delete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete shift template")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "TEMPLATE_NOT_FOUND", "Shift template not found")
		return
	}

	response.Success(w, map[string]any{"deleted": true})
}

// ShiftAssign schedules an employee on a template for a concrete date. The
// template weekday has to match the date.
func (h *Handler) ShiftAssign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}
	cafeID := *authCtx.CafeID

	var body shiftAssignRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	workDate, err := parseDateInput(body.WorkDate)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "workDate must be YYYY-MM-DD")
		return
	}

	var weekday int32
	err = h.DB.QueryRow(ctx, `
		select weekday from shift_templates
		where id = $1 and cafe_id = $2 and deleted_at is null
	`, body.TemplateID, cafeID).Scan(&weekday)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "TEMPLATE_NOT_FOUND", "Shift template not found")
		return
	}
	if int(workDate.Weekday()) != int(weekday) {
		response.Error(w, http.StatusBadRequest, "WEEKDAY_MISMATCH", "Date does not fall on the template weekday")
		return
	}

	var employeeActive bool
	err = h.DB.QueryRow(ctx, `
		select is_active from employees
		where id = $1 and cafe_id = $2 and deleted_at is null
	`, body.EmployeeID, cafeID).Scan(&employeeActive)
	if err != nil || !employeeActive {
		response.Error(w, http.StatusBadRequest, "EMPLOYEE_NOT_FOUND", "Employee not found or inactive")
		return
	}

	var id int64
	err = h.DB.QueryRow(ctx, `
		insert into shift_assignments (cafe_id, employee_id, template_id, work_date)
		values ($1, $2, $3, $4::date)
		on conflict (employee_id, work_date, template_id) do update set updated_at = now()
		returning id
	`, cafeID, body.EmployeeID, body.TemplateID, workDate.Format("2006-01-02")).Scan(&id)
	if err != nil {
		h.Logger.Error("shift assign failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to assign shift")
		return
	}

	response.Success(w, map[string]any{"id": id})
}

// ShiftSchedule returns the assignments for a date range, one row per
// employee per shift.
func (h *Handler) ShiftSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}

	from, err := parseDateInput(defaultString(r.URL.Query().Get("from"), time.Now().Format("2006-01-02")))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid from date")
		return
	}
	to := from.AddDate(0, 0, 7)
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := parseDateInput(raw)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid to date")
			return
		}
		to = parsed
	}

	rows, err := h.DB.Query(ctx, `
		select sa.id, sa.work_date, e.id, e.name, t.id, t.name, t.start_time, t.end_time
		from shift_assignments sa
		join employees e on e.id = sa.employee_id
		join shift_templates t on t.id = sa.template_id
		where sa.cafe_id = $1 and sa.work_date >= $2::date and sa.work_date <= $3::date
		order by sa.work_date, t.start_time, e.name
	`, *authCtx.CafeID, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		h.Logger.Error("shift schedule query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve schedule")
		return
	}
	defer rows.Close()

	assignments := make([]map[string]any, 0)
	for rows.Next() {
		var (
			id           int64
			workDate     time.Time
			employeeID   int64
			employeeName string
			templateID   int64
			templateName string
			startTime    pgtype.Time
			endTime      pgtype.Time
		)
		if err := rows.Scan(&id, &workDate, &employeeID, &employeeName, &templateID, &templateName, &startTime, &endTime); err != nil {
			h.Logger.Error("shift schedule scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve schedule")
			return
		}
		assignments = append(assignments, map[string]any{
			"id":           id,
			"workDate":     workDate.Format("2006-01-02"),
			"employeeId":   employeeID,
			"employeeName": employeeName,
			"templateId":   templateID,
			"templateName": templateName,
			"startTime":    formatClock(startTime),
			"endTime":      formatClock(endTime),
		})
	}

	response.Success(w, map[string]any{"assignments": assignments})
}

func formatClock(v pgtype.Time) string {
	if !v.Valid {
		return ""
	}
	total := v.Microseconds / 1_000_000
	return time.Date(0, 1, 1, int(total/3600), int(total%3600/60), 0, 0, time.UTC).Format("15:04")
}
