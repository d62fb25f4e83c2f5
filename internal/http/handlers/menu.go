package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"cafe-ops-service/internal/middleware"
	"cafe-ops-service/internal/utils"
	"cafe-ops-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type menuItemRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	IsAvailable *bool   `json:"isAvailable"`
}

type recipeLineRequest struct {
	IngredientID int64   `json:"ingredientId"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit"`
}

type recipeUpdateRequest struct {
	Lines []recipeLineRequest `json:"lines"`
}

func (h *Handler) MenuList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}

	category := strings.TrimSpace(r.URL.Query().Get("category"))
	rows, err := h.DB.Query(ctx, `
		select id, name, description, category, price, is_available
		from menu_items
		where cafe_id = $1 and deleted_at is null
		  and ($2 = '' or category = $2)
		order by category, name
	`, *authCtx.CafeID, category)
	if err != nil {
		h.Logger.Error("menu list query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve menu")
		return
	}
	defer rows.Close()

	items := make([]map[string]any, 0)
	for rows.Next() {
		var (
			id          int64
			name        string
			description pgtype.Text
			cat         pgtype.Text
			price       pgtype.Numeric
			isAvailable bool
		)
		if err := rows.Scan(&id, &name, &description, &cat, &price, &isAvailable); err != nil {
			h.Logger.Error("menu list scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve menu")
			return
		}
		items = append(items, map[string]any{
			"id":          id,
			"name":        name,
			"description": nullableText(description),
			"category":    nullableText(cat),
			"price":       utils.NumericToFloat64(price),
			"isAvailable": isAvailable,
		})
	}

	response.Success(w, map[string]any{"items": items})
}

func (h *Handler) MenuCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}

	var body menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Name is required")
		return
	}
	if body.Price < 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Price must not be negative")
		return
	}

	available := true
	if body.IsAvailable != nil {
		available = *body.IsAvailable
	}

	var id int64
	err := h.DB.QueryRow(ctx, `
		insert into menu_items (cafe_id, name, description, category, price, is_available)
		values ($1, $2, $3, $4, $5, $6)
		returning id
	`, *authCtx.CafeID, name, nullableString(strings.TrimSpace(body.Description)), nullableString(strings.TrimSpace(body.Category)), body.Price, available).Scan(&id)
	if err != nil {
		h.Logger.Error("menu create failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create menu item")
		return
	}

	response.Created(w, map[string]any{"id": id})
}

func (h *Handler) MenuUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}

	id, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid menu item id")
		return
	}

	var body struct {
		Name        *string  `json:"name"`
		Description *string  `json:"description"`
		Category    *string  `json:"category"`
		Price       *float64 `json:"price"`
		IsAvailable *bool    `json:"isAvailable"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if body.Price != nil && *body.Price < 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Price must not be negative")
		return
	}

	tag, err := h.DB.Exec(ctx, `
		update menu_items set
			name = coalesce($3, name),
			description = coalesce($4, description),
			category = coalesce($5, category),
			price = coalesce($6, price),
			is_available = coalesce($7, is_available),
			updated_at = now()
		where id = $1 and cafe_id = $2 and deleted_at is null
	`, id, *authCtx.CafeID, body.Name, body.Description, body.Category, body.Price, body.IsAvailable)
	if err != nil {
		h.Logger.Error("menu update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update menu item")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "MENU_ITEM_NOT_FOUND", "Menu item not found")
		return
	}

	response.Success(w, map[string]any{"id": id})
}

func (h *Handler) MenuDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}

	id, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid menu item id")
		return
	}

	tag, err := h.DB.Exec(ctx, `
		update menu_items set deleted_at = now(), is_available = false
		where id = $1 and cafe_id = $2 and deleted_at is null
	`, id, *authCtx.CafeID)
	if err != nil {
		h.Logger.Error("menu delete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete menu item")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "MENU_ITEM_NOT_FOUND", "Menu item not found")
		return
	}

	response.Success(w, map[string]any{"deleted": true})
}

// RecipeGet returns the ingredient lines for one menu item.
func (h *Handler) RecipeGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}

	id, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid menu item id")
		return
	}

	if err := h.ensureMenuItem(ctx, id, *authCtx.CafeID); err != nil {
		if err == pgx.ErrNoRows {
			response.Error(w, http.StatusNotFound, "MENU_ITEM_NOT_FOUND", "Menu item not found")
			return
		}
		h.Logger.Error("menu item lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve recipe")
		return
	}

	rows, err := h.DB.Query(ctx, `
		select mr.ingredient_id, i.name, mr.quantity, mr.unit, i.unit
		from menu_recipes mr
		join ingredients i on i.id = mr.ingredient_id
		where mr.menu_item_id = $1
		order by i.name
	`, id)
	if err != nil {
		h.Logger.Error("recipe query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve recipe")
		return
	}
	defer rows.Close()

	lines := make([]map[string]any, 0)
	for rows.Next() {
		var (
			ingredientID int64
			name         string
			quantity     pgtype.Numeric
			unit         string
			purchaseUnit string
		)
		if err := rows.Scan(&ingredientID, &name, &quantity, &unit, &purchaseUnit); err != nil {
			h.Logger.Error("recipe scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve recipe")
			return
		}
		lines = append(lines, map[string]any{
			"ingredientId": ingredientID,
			"name":         name,
			"quantity":     utils.NumericToFloat64(quantity),
			"unit":         unit,
			"purchaseUnit": purchaseUnit,
		})
	}

	response.Success(w, map[string]any{
		"menuItemId": id,
		"lines":      lines,
	})
}

// RecipeUpdate replaces the full recipe of a menu item in one transaction.
func (h *Handler) RecipeUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}

	id, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid menu item id")
		return
	}

	var body recipeUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	seen := map[int64]bool{}
	for _, line := range body.Lines {
		if line.IngredientID <= 0 || line.Quantity <= 0 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Each line needs an ingredient and a positive quantity")
			return
		}
		if !validUnits[strings.ToLower(strings.TrimSpace(line.Unit))] {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unit must be one of g, kg, ml, l, pcs")
			return
		}
		if seen[line.IngredientID] {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Duplicate ingredient in recipe")
			return
		}
		seen[line.IngredientID] = true
	}

	if err := h.ensureMenuItem(ctx, id, *authCtx.CafeID); err != nil {
		if err == pgx.ErrNoRows {
			response.Error(w, http.StatusNotFound, "MENU_ITEM_NOT_FOUND", "Menu item not found")
			return
		}
		h.Logger.Error("menu item lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update recipe")
		return
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		h.Logger.Error("recipe update begin failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update recipe")
		return
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `delete from menu_recipes where menu_item_id = $1`, id); err != nil {
		h.Logger.Error("recipe clear failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update recipe")
		return
	}

	for _, line := range body.Lines {
		tag, err := tx.Exec(ctx, `
			insert into menu_recipes (menu_item_id, ingredient_id, quantity, unit)
			select $1, id, $3, $4 from ingredients
			where id = $2 and cafe_id = $5 and deleted_at is null
		`, id, line.IngredientID, line.Quantity, strings.ToLower(strings.TrimSpace(line.Unit)), *authCtx.CafeID)
		if err != nil {
			h.Logger.Error("recipe insert failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update recipe")
			return
		}
		if tag.RowsAffected() == 0 {
			response.Error(w, http.StatusBadRequest, "INGREDIENT_NOT_FOUND", "Recipe references an unknown ingredient")
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		h.Logger.Error("recipe update commit failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update recipe")
		return
	}

	response.Success(w, map[string]any{
		"menuItemId": id,
		"lines":      len(body.Lines),
	})
}

func (h *Handler) ensureMenuItem(ctx context.Context, menuItemID, cafeID int64) error {
	var one int
	return h.DB.QueryRow(ctx, `
		select 1 from menu_items where id = $1 and cafe_id = $2 and deleted_at is null
	`, menuItemID, cafeID).Scan(&one)
}
