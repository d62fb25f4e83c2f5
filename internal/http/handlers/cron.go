package handlers

import (
	"context"
	"net/http"
	"time"

	"cafe-ops-service/internal/forecast"
	"cafe-ops-service/internal/queue"
	"cafe-ops-service/pkg/response"

	"go.uber.org/zap"
)

// CronStockSnapshot walks every active cafe, reruns the stock forecasts and
// raises a stock.low event for each ingredient at CRITICAL or HIGH risk.
// Scheduled nightly, idempotent per run.
func (h *Handler) CronStockSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	started := time.Now()

	rows, err := h.DB.Query(ctx, `select id from cafes where deleted_at is null`)
	if err != nil {
		h.Logger.Error("cron cafes query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to run snapshot")
		return
	}

	cafeIDs := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			h.Logger.Error("cron cafes scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to run snapshot")
			return
		}
		cafeIDs = append(cafeIDs, id)
	}
	rows.Close()

	totalAlerts := 0
	failedCafes := 0
	for _, cafeID := range cafeIDs {
		alerts, err := h.snapshotCafe(ctx, cafeID)
		if err != nil {
			failedCafes++
			h.Logger.Error("cron snapshot failed for cafe", zapError(err), zap.Int64("cafeId", cafeID))
			continue
		}
		totalAlerts += alerts
		invalidateForecastCacheForCafe(cafeID)
	}

	h.Logger.Info("stock snapshot finished",
		zap.Int("cafes", len(cafeIDs)),
		zap.Int("alerts", totalAlerts),
		zap.Int("failed", failedCafes),
		zap.Duration("took", time.Since(started)))

	response.Success(w, map[string]any{
		"cafes":  len(cafeIDs),
		"alerts": totalAlerts,
		"failed": failedCafes,
	})
}

func (h *Handler) snapshotCafe(ctx context.Context, cafeID int64) (int, error) {
	inputs, err := h.loadPredictionInputs(ctx, cafeID)
	if err != nil {
		return 0, err
	}
	seriesByIngredient, err := h.loadUsageSeries(ctx, cafeID, h.Config.ForecastHistoryDays)
	if err != nil {
		return 0, err
	}

	opts := h.forecastOptions()
	alerts := 0
	for _, in := range inputs {
		pred := forecast.Predict(seriesByIngredient[in.ID], in.CurrentStock, in.LeadTimeDays, in.SafetyDays, opts)
		if pred.Risk != forecast.RiskCritical && pred.Risk != forecast.RiskHigh {
			continue
		}
		alerts++
		h.publishStockLowEvent(cafeID, in.ID, string(pred.Risk), pred.DaysUntilStockout)
	}
	return alerts, nil
}

func (h *Handler) publishStockLowEvent(cafeID, ingredientID int64, risk string, daysLeft int) {
	if h.Queue == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload := map[string]any{
		"type":         "stock.low",
		"cafeId":       cafeID,
		"ingredientId": ingredientID,
		"risk":         risk,
		"daysLeft":     daysLeft,
		"detectedAt":   time.Now(),
	}
	if err := h.Queue.PublishJSON(ctx, queue.EventsExchange, "stock.low", payload); err != nil {
		h.Logger.Warn("stock low event publish failed", zapError(err), zap.Int64("ingredientId", ingredientID))
	}
}
