package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"cafe-ops-service/internal/middleware"
	"cafe-ops-service/internal/pricing"
	"cafe-ops-service/internal/utils"
	"cafe-ops-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type priceSuggestionRequest struct {
	OverheadPct  *float64 `json:"overheadPct"`
	TargetMargin *float64 `json:"targetMargin"`
	RoundingStep *float64 `json:"roundingStep"`
}

// resolveSuggestionParams applies request overrides on top of the configured
// defaults. Overhead and rounding step are validated here; the margin range
// is checked by pricing.Suggest.
func resolveSuggestionParams(body priceSuggestionRequest, defaultMargin, defaultStep float64) (overheadPct, targetMargin, roundingStep float64, err error) {
	overheadPct = 0.0
	if body.OverheadPct != nil {
		overheadPct = *body.OverheadPct
	}
	if overheadPct < 0 || overheadPct > 1 {
		return 0, 0, 0, errors.New("overheadPct must be between 0 and 1")
	}

	targetMargin = defaultMargin
	if body.TargetMargin != nil {
		targetMargin = *body.TargetMargin
	}

	roundingStep = defaultStep
	if body.RoundingStep != nil {
		roundingStep = *body.RoundingStep
	}
	if roundingStep < 0 {
		return 0, 0, 0, errors.New("roundingStep must be zero or positive")
	}
	return overheadPct, targetMargin, roundingStep, nil
}

// PriceSuggestion rolls up the recipe cost of a menu item and derives a
// selling price from the target margin.
func (h *Handler) PriceSuggestion(w http.ResponseWriter, r *http.Request) {
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

	var body priceSuggestionRequest
	if r.Body != nil {
		// Body is optional, defaults come from config.
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	overheadPct, targetMargin, roundingStep, err := resolveSuggestionParams(body, h.Config.DefaultTargetMargin, h.Config.PriceRoundingStep)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	var (
		name         string
		currentPrice pgtype.Numeric
	)
	err = h.DB.QueryRow(ctx, `
		select name, price from menu_items
		where id = $1 and cafe_id = $2 and deleted_at is null
	`, id, *authCtx.CafeID).Scan(&name, &currentPrice)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusNotFound, "MENU_ITEM_NOT_FOUND", "Menu item not found")
		return
	}
	if err != nil {
		h.Logger.Error("menu item query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to suggest price")
		return
	}

	lines, err := h.loadRecipeLines(ctx, id)
	if err != nil {
		h.Logger.Error("recipe lines query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to suggest price")
		return
	}
	if len(lines) == 0 {
		response.Error(w, http.StatusConflict, "RECIPE_EMPTY", "Menu item has no recipe")
		return
	}

	suggestion, err := pricing.Suggest(lines, overheadPct, targetMargin, roundingStep)
	if err != nil {
		if errors.Is(err, pricing.ErrInvalidMargin) {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "targetMargin must be between 0 and 0.95")
			return
		}
		response.Error(w, http.StatusConflict, "RECIPE_INVALID", err.Error())
		return
	}

	response.Success(w, map[string]any{
		"menuItemId":   id,
		"name":         name,
		"currentPrice": utils.NumericToFloat64(currentPrice),
		"suggestion":   suggestion,
	})
}

// PriceReview reports the margin of every menu item at its current price
// and flags items selling at or below cost.
func (h *Handler) PriceReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}

	rows, err := h.DB.Query(ctx, `
		select id, name, price from menu_items
		where cafe_id = $1 and deleted_at is null
		order by name
	`, *authCtx.CafeID)
	if err != nil {
		h.Logger.Error("price review query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to review prices")
		return
	}

	type menuRow struct {
		id    int64
		name  string
		price float64
	}
	menuRows := make([]menuRow, 0)
	for rows.Next() {
		var (
			row   menuRow
			price pgtype.Numeric
		)
		if err := rows.Scan(&row.id, &row.name, &price); err != nil {
			rows.Close()
			h.Logger.Error("price review scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to review prices")
			return
		}
		row.price = utils.NumericToFloat64(price)
		menuRows = append(menuRows, row)
	}
	rows.Close()

	items := make([]map[string]any, 0, len(menuRows))
	belowCost := 0
	for _, row := range menuRows {
		lines, err := h.loadRecipeLines(ctx, row.id)
		if err != nil {
			h.Logger.Error("recipe lines query failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to review prices")
			return
		}
		if len(lines) == 0 {
			items = append(items, map[string]any{
				"menuItemId": row.id,
				"name":       row.name,
				"price":      row.price,
				"hasRecipe":  false,
			})
			continue
		}

		cost, _, err := pricing.RecipeCost(lines)
		if err != nil {
			items = append(items, map[string]any{
				"menuItemId":  row.id,
				"name":        row.name,
				"price":       row.price,
				"hasRecipe":   true,
				"recipeError": err.Error(),
			})
			continue
		}

		report := pricing.Review(cost, row.price)
		if report.BelowCost {
			belowCost++
		}
		items = append(items, map[string]any{
			"menuItemId": row.id,
			"name":       row.name,
			"hasRecipe":  true,
			"report":     report,
		})
	}

	response.Success(w, map[string]any{
		"items":     items,
		"belowCost": belowCost,
	})
}

func (h *Handler) loadRecipeLines(ctx context.Context, menuItemID int64) ([]pricing.RecipeLine, error) {
	rows, err := h.DB.Query(ctx, `
		select mr.ingredient_id, i.name, mr.quantity, mr.unit, i.unit, i.unit_cost
		from menu_recipes mr
		join ingredients i on i.id = mr.ingredient_id and i.deleted_at is null
		where mr.menu_item_id = $1
		order by i.name
	`, menuItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make([]pricing.RecipeLine, 0)
	for rows.Next() {
		var (
			line     pricing.RecipeLine
			quantity pgtype.Numeric
			unitCost pgtype.Numeric
		)
		if err := rows.Scan(&line.IngredientID, &line.Name, &quantity, &line.RecipeUnit, &line.PurchaseUnit, &unitCost); err != nil {
			return nil, err
		}
		line.Quantity = utils.NumericToFloat64(quantity)
		line.UnitCost = utils.NumericToFloat64(unitCost)
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
