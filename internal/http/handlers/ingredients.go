package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"cafe-ops-service/internal/middleware"
	"cafe-ops-service/internal/utils"
	"cafe-ops-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type ingredientCreateRequest struct {
	Name         string  `json:"name"`
	Unit         string  `json:"unit"`
	PackSize     float64 `json:"packSize"`
	UnitCost     float64 `json:"unitCost"`
	CurrentStock float64 `json:"currentStock"`
	LeadTimeDays int     `json:"leadTimeDays"`
	SafetyDays   int     `json:"safetyDays"`
	MinSafety    float64 `json:"minSafety"`
}

type ingredientUpdateRequest struct {
	Name         *string  `json:"name"`
	Unit         *string  `json:"unit"`
	PackSize     *float64 `json:"packSize"`
	UnitCost     *float64 `json:"unitCost"`
	LeadTimeDays *int     `json:"leadTimeDays"`
	SafetyDays   *int     `json:"safetyDays"`
	MinSafety    *float64 `json:"minSafety"`
	IsActive     *bool    `json:"isActive"`
}

type stockAdjustRequest struct {
	Type     string  `json:"type"`
	Quantity float64 `json:"quantity"`
	Reason   string  `json:"reason"`
}

var validUnits = map[string]bool{"g": true, "kg": true, "ml": true, "l": true, "pcs": true}

var adjustmentTypes = map[string]bool{"RESTOCK": true, "WASTE": true, "CORRECTION": true}

func (h *Handler) IngredientsList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}

	search := strings.TrimSpace(r.URL.Query().Get("search"))
	includeInactive := r.URL.Query().Get("includeInactive") == "true"

	rows, err := h.DB.Query(ctx, `
		select id, name, unit, pack_size, unit_cost, current_stock,
		       lead_time_days, safety_days, min_safety, is_active, created_at
		from ingredients
		where cafe_id = $1
		  and deleted_at is null
		  and ($2 = '' or name ilike '%' || $2 || '%')
		  and ($3 or is_active = true)
		order by name
	`, *authCtx.CafeID, search, includeInactive)
	if err != nil {
		h.Logger.Error("ingredients list query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve ingredients")
		return
	}
	defer rows.Close()

	ingredients := make([]map[string]any, 0)
	for rows.Next() {
		var (
			id           int64
			name         string
			unit         string
			packSize     pgtype.Numeric
			unitCost     pgtype.Numeric
			currentStock pgtype.Numeric
			leadTimeDays int32
			safetyDays   int32
			minSafety    pgtype.Numeric
			isActive     bool
			createdAt    time.Time
		)
		if err := rows.Scan(&id, &name, &unit, &packSize, &unitCost, &currentStock, &leadTimeDays, &safetyDays, &minSafety, &isActive, &createdAt); err != nil {
			h.Logger.Error("ingredients list scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve ingredients")
			return
		}
		ingredients = append(ingredients, map[string]any{
			"id":           id,
			"name":         name,
			"unit":         unit,
			"packSize":     utils.NumericToFloat64(packSize),
			"unitCost":     utils.NumericToFloat64(unitCost),
			"currentStock": utils.NumericToFloat64(currentStock),
			"leadTimeDays": leadTimeDays,
			"safetyDays":   safetyDays,
			"minSafety":    utils.NumericToFloat64(minSafety),
			"isActive":     isActive,
			"createdAt":    createdAt,
		})
	}

	response.Success(w, map[string]any{"ingredients": ingredients})
}

func (h *Handler) IngredientsCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}

	var body ingredientCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	name := strings.TrimSpace(body.Name)
	unit := strings.ToLower(strings.TrimSpace(body.Unit))
	if name == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Name is required")
		return
	}
	if !validUnits[unit] {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unit must be one of g, kg, ml, l, pcs")
		return
	}
	if body.UnitCost < 0 || body.CurrentStock < 0 || body.PackSize < 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Costs and quantities must not be negative")
		return
	}
	if body.LeadTimeDays < 0 {
		body.LeadTimeDays = 0
	}
	if body.SafetyDays < 0 {
		body.SafetyDays = 0
	}

	var id int64
	err := h.DB.QueryRow(ctx, `
		insert into ingredients
			(cafe_id, name, unit, pack_size, unit_cost, current_stock, lead_time_days, safety_days, min_safety, is_active)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, true)
		returning id
	`, *authCtx.CafeID, name, unit, body.PackSize, body.UnitCost, body.CurrentStock, body.LeadTimeDays, body.SafetyDays, body.MinSafety).Scan(&id)
	if err != nil {
		h.Logger.Error("ingredient create failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create ingredient")
		return
	}

	if body.CurrentStock > 0 {
		_, _ = h.DB.Exec(ctx, `
			insert into ingredient_movements (cafe_id, ingredient_id, movement_type, quantity, reason)
			values ($1, $2, 'RESTOCK', $3, 'Initial stock')
		`, *authCtx.CafeID, id, body.CurrentStock)
	}

	invalidateForecastCacheForCafe(*authCtx.CafeID)
	response.Created(w, map[string]any{"id": id})
}

func (h *Handler) IngredientsDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}

	id, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid ingredient id")
		return
	}

	var (
		name         string
		unit         string
		packSize     pgtype.Numeric
		unitCost     pgtype.Numeric
		currentStock pgtype.Numeric
		leadTimeDays int32
		safetyDays   int32
		minSafety    pgtype.Numeric
		isActive     bool
		createdAt    time.Time
	)
	err = h.DB.QueryRow(ctx, `
		select name, unit, pack_size, unit_cost, current_stock, lead_time_days, safety_days, min_safety, is_active, created_at
		from ingredients
		where id = $1 and cafe_id = $2 and deleted_at is null
	`, id, *authCtx.CafeID).Scan(&name, &unit, &packSize, &unitCost, &currentStock, &leadTimeDays, &safetyDays, &minSafety, &isActive, &createdAt)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusNotFound, "INGREDIENT_NOT_FOUND", "Ingredient not found")
		return
	}
	if err != nil {
		h.Logger.Error("ingredient detail query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve ingredient")
		return
	}

	movements, err := h.loadRecentMovements(ctx, *authCtx.CafeID, id, 20)
	if err != nil {
		h.Logger.Error("ingredient movements query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve ingredient")
		return
	}

	response.Success(w, map[string]any{
		"id":              id,
		"name":            name,
		"unit":            unit,
		"packSize":        utils.NumericToFloat64(packSize),
		"unitCost":        utils.NumericToFloat64(unitCost),
		"currentStock":    utils.NumericToFloat64(currentStock),
		"leadTimeDays":    leadTimeDays,
		"safetyDays":      safetyDays,
		"minSafety":       utils.NumericToFloat64(minSafety),
		"isActive":        isActive,
		"createdAt":       createdAt,
		"recentMovements": movements,
	})
}

func (h *Handler) IngredientsUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}

	id, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid ingredient id")
		return
	}

	var body ingredientUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	if body.Unit != nil {
		unit := strings.ToLower(strings.TrimSpace(*body.Unit))
		if !validUnits[unit] {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unit must be one of g, kg, ml, l, pcs")
			return
		}
		*body.Unit = unit
	}
	if body.Name != nil && strings.TrimSpace(*body.Name) == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Name must not be empty")
		return
	}
	if body.UnitCost != nil && *body.UnitCost < 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unit cost must not be negative")
		return
	}

	tag, err := h.DB.Exec(ctx, `
		update ingredients set
			name = coalesce($3, name),
			unit = coalesce($4, unit),
			pack_size = coalesce($5, pack_size),
			unit_cost = coalesce($6, unit_cost),
			lead_time_days = coalesce($7, lead_time_days),
			safety_days = coalesce($8, safety_days),
			min_safety = coalesce($9, min_safety),
			is_active = coalesce($10, is_active),
			updated_at = now()
		where id = $1 and cafe_id = $2 and deleted_at is null
	`, id, *authCtx.CafeID, body.Name, body.Unit, body.PackSize, body.UnitCost, body.LeadTimeDays, body.SafetyDays, body.MinSafety, body.IsActive)
	if err != nil {
		h.Logger.Error("ingredient update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update ingredient")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "INGREDIENT_NOT_FOUND", "Ingredient not found")
		return
	}

	invalidateForecastCacheForCafe(*authCtx.CafeID)
	response.Success(w, map[string]any{"id": id})
}

func (h *Handler) IngredientsDelete(w http.ResponseWriter, r *http.Request) {
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
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid ingredient id")
		return
	}

	var recipeCount int64
	if err := h.DB.QueryRow(ctx, `
		select count(*)
		from menu_recipes mr
		join menu_items mi on mi.id = mr.menu_item_id and mi.deleted_at is null
		where mr.ingredient_id = $1
	`, id).Scan(&recipeCount); err != nil {
		h.Logger.Error("ingredient recipe check failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete ingredient")
		return
	}
	if recipeCount > 0 {
		response.Error(w, http.StatusConflict, "INGREDIENT_IN_USE", "Ingredient is used by menu recipes")
		return
	}

	tag, err := h.DB.Exec(ctx, `
		update ingredients set deleted_at = now(), is_active = false
		where id = $1 and cafe_id = $2 and deleted_at is null
	`, id, *authCtx.CafeID)
	if err != nil {
		h.Logger.Error("ingredient delete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete ingredient")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "INGREDIENT_NOT_FOUND", "Ingredient not found")
		return
	}

	invalidateForecastCacheForCafe(*authCtx.CafeID)
	response.Success(w, map[string]any{"deleted": true})
}

func (h *Handler) IngredientsAdjustStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}

	id, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid ingredient id")
		return
	}

	var body stockAdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	movementType := strings.ToUpper(strings.TrimSpace(body.Type))
	if !adjustmentTypes[movementType] {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Type must be RESTOCK, WASTE or CORRECTION")
		return
	}
	if body.Quantity == 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Quantity must not be zero")
		return
	}
	if movementType != "CORRECTION" && body.Quantity < 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Quantity must be positive")
		return
	}

	// RESTOCK adds, WASTE subtracts, CORRECTION applies the signed delta.
	delta := body.Quantity
	if movementType == "WASTE" {
		delta = -body.Quantity
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		h.Logger.Error("stock adjust begin failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to adjust stock")
		return
	}
	defer tx.Rollback(ctx)

	var newStock pgtype.Numeric
	err = tx.QueryRow(ctx, `
		update ingredients
		set current_stock = greatest(current_stock + $3, 0), updated_at = now()
		where id = $1 and cafe_id = $2 and deleted_at is null
		returning current_stock
	`, id, *authCtx.CafeID, delta).Scan(&newStock)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusNotFound, "INGREDIENT_NOT_FOUND", "Ingredient not found")
		return
	}
	if err != nil {
		h.Logger.Error("stock adjust update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to adjust stock")
		return
	}

	if _, err := tx.Exec(ctx, `
		insert into ingredient_movements (cafe_id, ingredient_id, movement_type, quantity, reason)
		values ($1, $2, $3, $4, $5)
	`, *authCtx.CafeID, id, movementType, delta, strings.TrimSpace(body.Reason)); err != nil {
		h.Logger.Error("stock movement insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to adjust stock")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		h.Logger.Error("stock adjust commit failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to adjust stock")
		return
	}

	invalidateForecastCacheForCafe(*authCtx.CafeID)
	response.Success(w, map[string]any{
		"id":           id,
		"currentStock": utils.NumericToFloat64(newStock),
	})
}

func (h *Handler) StockOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}

	rows, err := h.DB.Query(ctx, `
		select i.id, i.name, i.unit, i.current_stock, i.min_safety,
		       coalesce(avg(u.quantity), 0)
		from ingredients i
		left join ingredient_usage_daily u
		  on u.ingredient_id = i.id and u.usage_date >= current_date - interval '7 days'
		where i.cafe_id = $1 and i.deleted_at is null and i.is_active = true
		group by i.id, i.name, i.unit, i.current_stock, i.min_safety
		order by i.name
	`, *authCtx.CafeID)
	if err != nil {
		h.Logger.Error("stock overview query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve stock overview")
		return
	}
	defer rows.Close()

	items := make([]map[string]any, 0)
	lowCount := 0
	for rows.Next() {
		var (
			id           int64
			name         string
			unit         string
			currentStock pgtype.Numeric
			minSafety    pgtype.Numeric
			weekAvg      pgtype.Numeric
		)
		if err := rows.Scan(&id, &name, &unit, &currentStock, &minSafety, &weekAvg); err != nil {
			h.Logger.Error("stock overview scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve stock overview")
			return
		}

		stock := utils.NumericToFloat64(currentStock)
		safety := utils.NumericToFloat64(minSafety)
		avgUse := utils.NumericToFloat64(weekAvg)
		low := stock <= safety || (avgUse > 0 && stock < avgUse*3)
		if low {
			lowCount++
		}

		items = append(items, map[string]any{
			"id":           id,
			"name":         name,
			"unit":         unit,
			"currentStock": stock,
			"minSafety":    safety,
			"weekAvgUsage": avgUse,
			"lowStock":     low,
		})
	}

	response.Success(w, map[string]any{
		"items":    items,
		"lowStock": lowCount,
	})
}

func (h *Handler) loadRecentMovements(ctx context.Context, cafeID, ingredientID int64, limit int) ([]map[string]any, error) {
	rows, err := h.DB.Query(ctx, `
		select movement_type, quantity, reason, created_at
		from ingredient_movements
		where cafe_id = $1 and ingredient_id = $2
		order by created_at desc
		limit $3
	`, cafeID, ingredientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := make([]map[string]any, 0)
	for rows.Next() {
		var (
			movementType string
			quantity     pgtype.Numeric
			reason       pgtype.Text
			createdAt    time.Time
		)
		if err := rows.Scan(&movementType, &quantity, &reason, &createdAt); err != nil {
			return nil, err
		}
		movements = append(movements, map[string]any{
			"type":      movementType,
			"quantity":  utils.NumericToFloat64(quantity),
			"reason":    nullableText(reason),
			"createdAt": createdAt,
		})
	}
	return movements, nil
}
