package handlers

import (
	"net/http"
	"time"

	"cafe-ops-service/internal/forecast"
	"cafe-ops-service/internal/middleware"
	"cafe-ops-service/internal/utils"
	"cafe-ops-service/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
)

const dashboardCacheTTL = 2 * time.Minute

// DashboardStats aggregates today's trading numbers with the current stock
// risk picture for the owner home screen.
func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}
	cafeID := *authCtx.CafeID

	cacheKey := forecastCacheKey("dashboard", cafeID)
	if cached, ok := getForecastCache(cacheKey); ok {
		response.Success(w, cached)
		return
	}

	var (
		ordersToday     int64
		revenueToday    pgtype.Numeric
		activeOrders    int64
		pendingPayments int64
	)
	err := h.DB.QueryRow(ctx, `
		select
			count(*) filter (where created_at::date = current_date),
			coalesce(sum(total_amount) filter (where created_at::date = current_date and status = 'COMPLETED'), 0),
			count(*) filter (where status in ('PENDING', 'ACCEPTED', 'IN_PROGRESS', 'READY'))
		from orders
		where cafe_id = $1
	`, cafeID).Scan(&ordersToday, &revenueToday, &activeOrders)
	if err != nil {
		h.Logger.Error("dashboard orders query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve dashboard")
		return
	}

	if err := h.DB.QueryRow(ctx, `
		select count(*) from payments where cafe_id = $1 and status = 'PENDING'
	`, cafeID).Scan(&pendingPayments); err != nil {
		h.Logger.Error("dashboard payments query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve dashboard")
		return
	}

	inputs, err := h.loadPredictionInputs(ctx, cafeID)
	if err != nil {
		h.Logger.Error("prediction inputs query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve dashboard")
		return
	}
	seriesByIngredient, err := h.loadUsageSeries(ctx, cafeID, h.Config.ForecastHistoryDays)
	if err != nil {
		h.Logger.Error("usage series query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve dashboard")
		return
	}

	opts := h.forecastOptions()
	atRisk := make([]map[string]any, 0)
	for _, in := range inputs {
		pred := forecast.Predict(seriesByIngredient[in.ID], in.CurrentStock, in.LeadTimeDays, in.SafetyDays, opts)
		if pred.Risk != forecast.RiskCritical && pred.Risk != forecast.RiskHigh {
			continue
		}
		atRisk = append(atRisk, map[string]any{
			"ingredientId":      in.ID,
			"name":              in.Name,
			"risk":              pred.Risk,
			"daysUntilStockout": pred.DaysUntilStockout,
		})
	}

	payload := map[string]any{
		"ordersToday":     ordersToday,
		"revenueToday":    utils.NumericToFloat64(revenueToday),
		"activeOrders":    activeOrders,
		"pendingPayments": pendingPayments,
		"stockAtRisk":     atRisk,
	}
	setForecastCache(cacheKey, payload, dashboardCacheTTL)
	response.Success(w, payload)
}
