package handlers

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"time"

	"cafe-ops-service/internal/forecast"
	"cafe-ops-service/internal/middleware"
	"cafe-ops-service/internal/utils"
	"cafe-ops-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

const predictionCacheTTL = 10 * time.Minute

type predictionInput struct {
	ID           int64
	Name         string
	Unit         string
	PackSize     float64
	CurrentStock float64
	LeadTimeDays int
	SafetyDays   int
	MinSafety    float64
}

func (h *Handler) forecastOptions() forecast.Options {
	opts := forecast.DefaultOptions()
	if h.Config.ForecastHorizonDays > 0 {
		opts.HorizonDays = h.Config.ForecastHorizonDays
	}
	return opts
}

// StockPredictionsList runs the consumption forecast for every active
// ingredient and returns a summary row per ingredient, ordered by risk.
func (h *Handler) StockPredictionsList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}
	cafeID := *authCtx.CafeID

	horizonDays := 0
	if raw := r.URL.Query().Get("horizonDays"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 90 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "horizonDays must be between 1 and 90")
			return
		}
		horizonDays = parsed
	}

	cacheKey := forecastCacheKey("stock_predictions", cafeID, strconv.Itoa(horizonDays))
	if cached, ok := getForecastCache(cacheKey); ok {
		response.Success(w, cached)
		return
	}

	inputs, err := h.loadPredictionInputs(ctx, cafeID)
	if err != nil {
		h.Logger.Error("prediction inputs query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build predictions")
		return
	}

	seriesByIngredient, err := h.loadUsageSeries(ctx, cafeID, h.Config.ForecastHistoryDays)
	if err != nil {
		h.Logger.Error("usage series query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build predictions")
		return
	}

	opts := h.forecastOptions()
	if horizonDays > 0 {
		opts.HorizonDays = horizonDays
	}
	predictions := make([]map[string]any, 0, len(inputs))
	riskCounts := map[forecast.RiskLevel]int{}
	for _, in := range inputs {
		pred := forecast.Predict(seriesByIngredient[in.ID], in.CurrentStock, in.LeadTimeDays, in.SafetyDays, opts)
		riskCounts[pred.Risk]++
		predictions = append(predictions, map[string]any{
			"ingredientId":      in.ID,
			"name":              in.Name,
			"unit":              in.Unit,
			"currentStock":      in.CurrentStock,
			"dailyRate":         pred.DailyRate,
			"trend":             pred.Trend,
			"daysUntilStockout": pred.DaysUntilStockout,
			"stockoutDate":      pred.StockoutDate,
			"risk":              pred.Risk,
			"confidence":        pred.Confidence,
			"historyDays":       pred.HistoryDays,
			"anomalyCount":      len(pred.Anomalies),
		})
	}

	sortPredictionRows(predictions)

	payload := map[string]any{
		"predictions": predictions,
		"horizonDays": opts.HorizonDays,
		"summary": map[string]any{
			"critical": riskCounts[forecast.RiskCritical],
			"high":     riskCounts[forecast.RiskHigh],
			"medium":   riskCounts[forecast.RiskMedium],
			"low":      riskCounts[forecast.RiskLow],
		},
	}
	setForecastCache(cacheKey, payload, predictionCacheTTL)
	response.Success(w, payload)
}

// StockPredictionDetail returns the full forecast for one ingredient,
// including day-by-day projections and detected anomalies.
func (h *Handler) StockPredictionDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}
	cafeID := *authCtx.CafeID

	id, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid ingredient id")
		return
	}

	var (
		name         string
		unit         string
		currentStock pgtype.Numeric
		leadTimeDays int32
		safetyDays   int32
		minSafety    pgtype.Numeric
	)
	err = h.DB.QueryRow(ctx, `
		select name, unit, current_stock, lead_time_days, safety_days, min_safety
		from ingredients
		where id = $1 and cafe_id = $2 and deleted_at is null
	`, id, cafeID).Scan(&name, &unit, &currentStock, &leadTimeDays, &safetyDays, &minSafety)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusNotFound, "INGREDIENT_NOT_FOUND", "Ingredient not found")
		return
	}
	if err != nil {
		h.Logger.Error("prediction detail query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build prediction")
		return
	}

	series, err := h.loadUsageSeriesForIngredient(ctx, id, h.Config.ForecastHistoryDays)
	if err != nil {
		h.Logger.Error("usage series query failed", zapError(err), zap.Int64("ingredientId", id))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build prediction")
		return
	}

	pred := forecast.Predict(series, utils.NumericToFloat64(currentStock), int(leadTimeDays), int(safetyDays), h.forecastOptions())

	response.Success(w, map[string]any{
		"ingredientId": id,
		"name":         name,
		"unit":         unit,
		"currentStock": utils.NumericToFloat64(currentStock),
		"leadTimeDays": leadTimeDays,
		"safetyDays":   safetyDays,
		"minSafety":    utils.NumericToFloat64(minSafety),
		"prediction":   pred,
	})
}

func (h *Handler) loadPredictionInputs(ctx context.Context, cafeID int64) ([]predictionInput, error) {
	rows, err := h.DB.Query(ctx, `
		select id, name, unit, pack_size, current_stock, lead_time_days, safety_days, min_safety
		from ingredients
		where cafe_id = $1 and deleted_at is null and is_active = true
		order by name
	`, cafeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	inputs := make([]predictionInput, 0)
	for rows.Next() {
		var (
			in           predictionInput
			packSize     pgtype.Numeric
			currentStock pgtype.Numeric
			leadTime     int32
			safety       int32
			minSafety    pgtype.Numeric
		)
		if err := rows.Scan(&in.ID, &in.Name, &in.Unit, &packSize, &currentStock, &leadTime, &safety, &minSafety); err != nil {
			return nil, err
		}
		in.PackSize = utils.NumericToFloat64(packSize)
		in.CurrentStock = utils.NumericToFloat64(currentStock)
		in.LeadTimeDays = int(leadTime)
		in.SafetyDays = int(safety)
		in.MinSafety = utils.NumericToFloat64(minSafety)
		inputs = append(inputs, in)
	}
	return inputs, rows.Err()
}

// usageWindow returns the trailing query window for the daily usage rollup.
// The window ends yesterday: today's rollup is still accumulating and would
// enter the smoother as a partial day.
func usageWindow(now time.Time, historyDays int) (start, end time.Time) {
	if historyDays <= 0 {
		historyDays = 60
	}
	end = now.AddDate(0, 0, -1)
	start = end.AddDate(0, 0, -(historyDays - 1))
	return start, end
}

// loadUsageSeries loads the daily usage rollup for every active ingredient
// of the cafe over the trailing history window, zero-filled per ingredient.
func (h *Handler) loadUsageSeries(ctx context.Context, cafeID int64, historyDays int) (map[int64]forecast.Series, error) {
	start, end := usageWindow(time.Now(), historyDays)

	rows, err := h.DB.Query(ctx, `
		select u.ingredient_id, u.usage_date, u.quantity
		from ingredient_usage_daily u
		join ingredients i on i.id = u.ingredient_id
		where i.cafe_id = $1 and i.deleted_at is null
		  and u.usage_date >= $2::date and u.usage_date <= $3::date
		order by u.ingredient_id, u.usage_date
	`, cafeID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pointsByIngredient := map[int64][]forecast.UsagePoint{}
	for rows.Next() {
		var (
			ingredientID int64
			usageDate    time.Time
			quantity     pgtype.Numeric
		)
		if err := rows.Scan(&ingredientID, &usageDate, &quantity); err != nil {
			return nil, err
		}
		pointsByIngredient[ingredientID] = append(pointsByIngredient[ingredientID], forecast.UsagePoint{
			Date:     usageDate,
			Quantity: utils.NumericToFloat64(quantity),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	seriesByIngredient := make(map[int64]forecast.Series, len(pointsByIngredient))
	for id, points := range pointsByIngredient {
		seriesByIngredient[id] = forecast.BuildDailySeries(points, points[0].Date, end)
	}
	return seriesByIngredient, nil
}

func (h *Handler) loadUsageSeriesForIngredient(ctx context.Context, ingredientID int64, historyDays int) (forecast.Series, error) {
	start, end := usageWindow(time.Now(), historyDays)

	rows, err := h.DB.Query(ctx, `
		select usage_date, quantity
		from ingredient_usage_daily
		where ingredient_id = $1 and usage_date >= $2::date and usage_date <= $3::date
		order by usage_date
	`, ingredientID, start, end)
	if err != nil {
		return forecast.Series{}, err
	}
	defer rows.Close()

	points := make([]forecast.UsagePoint, 0)
	for rows.Next() {
		var (
			usageDate time.Time
			quantity  pgtype.Numeric
		)
		if err := rows.Scan(&usageDate, &quantity); err != nil {
			return forecast.Series{}, err
		}
		points = append(points, forecast.UsagePoint{Date: usageDate, Quantity: utils.NumericToFloat64(quantity)})
	}
	if err := rows.Err(); err != nil {
		return forecast.Series{}, err
	}
	if len(points) == 0 {
		return forecast.Series{}, nil
	}
	return forecast.BuildDailySeries(points, points[0].Date, end), nil
}

var riskSortOrder = map[forecast.RiskLevel]int{
	forecast.RiskCritical: 0,
	forecast.RiskHigh:     1,
	forecast.RiskMedium:   2,
	forecast.RiskLow:      3,
}

func sortPredictionRows(rows []map[string]any) {
	sort.SliceStable(rows, func(i, j int) bool {
		return predictionRowLess(rows[i], rows[j])
	})
}

func predictionRowLess(a, b map[string]any) bool {
	ra := riskSortOrder[a["risk"].(forecast.RiskLevel)]
	rb := riskSortOrder[b["risk"].(forecast.RiskLevel)]
	if ra != rb {
		return ra < rb
	}
	da := a["daysUntilStockout"].(int)
	db := b["daysUntilStockout"].(int)
	if da != db {
		if da < 0 {
			return false
		}
		if db < 0 {
			return true
		}
		return da < db
	}
	return a["name"].(string) < b["name"].(string)
}
