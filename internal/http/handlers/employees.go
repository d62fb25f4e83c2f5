package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"cafe-ops-service/internal/middleware"
	"cafe-ops-service/internal/utils"
	"cafe-ops-service/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"
)

type employeeCreateRequest struct {
	Name       string  `json:"name"`
	Role       string  `json:"role"`
	Phone      string  `json:"phone"`
	HourlyRate float64 `json:"hourlyRate"`
	Pin        string  `json:"pin"`
}

type employeeUpdateRequest struct {
	Name       *string  `json:"name"`
	Role       *string  `json:"role"`
	Phone      *string  `json:"phone"`
	HourlyRate *float64 `json:"hourlyRate"`
	Pin        *string  `json:"pin"`
	IsActive   *bool    `json:"isActive"`
}

var employeeRoles = map[string]bool{"BARISTA": true, "CASHIER": true, "KITCHEN": true, "SUPERVISOR": true}

func validPin(pin string) bool {
	if len(pin) < 4 || len(pin) > 8 {
		return false
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func (h *Handler) EmployeesList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}

	includeInactive := r.URL.Query().Get("includeInactive") == "true"
	rows, err := h.DB.Query(ctx, `
		select id, name, role, phone, hourly_rate, is_active, created_at
		from employees
		where cafe_id = $1 and deleted_at is null
		  and ($2 or is_active = true)
		order by name
	`, *authCtx.CafeID, includeInactive)
	if err != nil {
		h.Logger.Error("employees list query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve employees")
		return
	}
	defer rows.Close()

	employees := make([]map[string]any, 0)
	for rows.Next() {
		var (
			id         int64
			name       string
			role       string
			phone      pgtype.Text
			hourlyRate pgtype.Numeric
			isActive   bool
			createdAt  time.Time
		)
		if err := rows.Scan(&id, &name, &role, &phone, &hourlyRate, &isActive, &createdAt); err != nil {
			h.Logger.Error("employees list scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve employees")
			return
		}
		employees = append(employees, map[string]any{
			"id":         id,
			"name":       name,
			"role":       role,
			"phone":      nullableText(phone),
			"hourlyRate": utils.NumericToFloat64(hourlyRate),
			"isActive":   isActive,
			"createdAt":  createdAt,
		})
	}

	response.Success(w, map[string]any{"employees": employees})
}

func (h *Handler) EmployeesCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}

	var body employeeCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	name := strings.TrimSpace(body.Name)
	role := strings.ToUpper(strings.TrimSpace(body.Role))
	if name == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Name is required")
		return
	}
	if !employeeRoles[role] {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Role must be BARISTA, CASHIER, KITCHEN or SUPERVISOR")
		return
	}
	if body.HourlyRate < 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Hourly rate must not be negative")
		return
	}
	if !validPin(body.Pin) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Pin must be 4 to 8 digits")
		return
	}

	pinHash, err := bcrypt.GenerateFromPassword([]byte(body.Pin), bcrypt.DefaultCost)
	if err != nil {
		h.Logger.Error("pin hash failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create employee")
		return
	}

	var id int64
	err = h.DB.QueryRow(ctx, `
		insert into employees (cafe_id, name, role, phone, hourly_rate, pin_hash, is_active)
		values ($1, $2, $3, $4, $5, $6, true)
		returning id
	`, *authCtx.CafeID, name, role, nullableString(strings.TrimSpace(body.Phone)), body.HourlyRate, string(pinHash)).Scan(&id)
	if err != nil {
		h.Logger.Error("employee create failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create employee")
		return
	}

	response.Created(w, map[string]any{"id": id})
}

func (h *Handler) EmployeesUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}

	id, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid employee id")
		return
	}

	var body employeeUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	if body.Role != nil {
		role := strings.ToUpper(strings.TrimSpace(*body.Role))
		if !employeeRoles[role] {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Role must be BARISTA, CASHIER, KITCHEN or SUPERVISOR")
			return
		}
		*body.Role = role
	}
	if body.HourlyRate != nil && *body.HourlyRate < 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Hourly rate must not be negative")
		return
	}

	var pinHash *string
	if body.Pin != nil {
		if !validPin(*body.Pin) {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Pin must be 4 to 8 digits")
			return
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(*body.Pin), bcrypt.DefaultCost)
		if err != nil {
			h.Logger.Error("pin hash failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update employee")
			return
		}
		s := string(hashed)
		pinHash = &s
	}

	tag, err := h.DB.Exec(ctx, `
		update employees set
			name = coalesce($3, name),
			role = coalesce($4, role),
			phone = coalesce($5, phone),
			hourly_rate = coalesce($6, hourly_rate),
			pin_hash = coalesce($7, pin_hash),
			is_active = coalesce($8, is_active),
			updated_at = now()
		where id = $1 and cafe_id = $2 and deleted_at is null
	`, id, *authCtx.CafeID, body.Name, body.Role, body.Phone, body.HourlyRate, pinHash, body.IsActive)
	if err != nil {
		h.Logger.Error("employee update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update employee")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "EMPLOYEE_NOT_FOUND", "Employee not found")
		return
	}

	response.Success(w, map[string]any{"id": id})
}

func (h *Handler) EmployeesDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}
	if !authCtx.IsOwner {
		response.Error(w, http.StatusForbidden, "FORBIDDEN", "Owner access required")
		return
	}

	id, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid employee id")
		return
	}

	tag, err := h.DB.Exec(ctx, `
		update employees set deleted_at = now(), is_active = false
		where id = $1 and cafe_id = $2 and deleted_at is null
	`, id, *authCtx.CafeID)
	if err != nil {
		h.Logger.Error("employee delete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete employee")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "EMPLOYEE_NOT_FOUND", "Employee not found")
		return
	}

	response.Success(w, map[string]any{"deleted": true})
}
