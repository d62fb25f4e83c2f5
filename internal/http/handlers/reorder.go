package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"cafe-ops-service/internal/forecast"
	"cafe-ops-service/internal/middleware"
	"cafe-ops-service/internal/reports"
	"cafe-ops-service/pkg/response"

	"go.uber.org/zap"
)

const reorderCacheTTL = 10 * time.Minute

// ReorderRecommendations combines the per-ingredient forecasts with pack
// sizes and lead times into a purchasing list.
func (h *Handler) ReorderRecommendations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}
	cafeID := *authCtx.CafeID

	coverageDays := 0
	if raw := r.URL.Query().Get("coverageDays"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 90 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "coverageDays must be between 1 and 90")
			return
		}
		coverageDays = parsed
	}

	cacheKey := forecastCacheKey("reorder", cafeID, strconv.Itoa(coverageDays))
	if cached, ok := getForecastCache(cacheKey); ok {
		response.Success(w, cached)
		return
	}

	recs, horizonDays, err := h.buildRecommendations(ctx, cafeID, coverageDays)
	if err != nil {
		h.Logger.Error("reorder recommendations failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build recommendations")
		return
	}

	needReorder := 0
	for _, rec := range recs {
		if rec.Reorder {
			needReorder++
		}
	}

	payload := map[string]any{
		"recommendations": recs,
		"needReorder":     needReorder,
		"horizonDays":     horizonDays,
	}
	setForecastCache(cacheKey, payload, reorderCacheTTL)
	response.Success(w, payload)
}

// StockReport renders the forecast and reorder advice as a PDF, uploads it
// to object storage and returns the public URL.
func (h *Handler) StockReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}
	cafeID := *authCtx.CafeID

	if h.Store == nil {
		response.Error(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Object storage is not configured")
		return
	}

	var cafeName string
	if err := h.DB.QueryRow(ctx, `select name from cafes where id = $1`, cafeID).Scan(&cafeName); err != nil {
		h.Logger.Error("cafe lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate report")
		return
	}

	inputs, err := h.loadPredictionInputs(ctx, cafeID)
	if err != nil {
		h.Logger.Error("prediction inputs query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate report")
		return
	}
	seriesByIngredient, err := h.loadUsageSeries(ctx, cafeID, h.Config.ForecastHistoryDays)
	if err != nil {
		h.Logger.Error("usage series query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate report")
		return
	}

	opts := h.forecastOptions()
	now := time.Now()
	data := reports.StockReportData{
		CafeName:    cafeName,
		GeneratedAt: now.Format("2006-01-02 15:04"),
		HorizonDays: opts.HorizonDays,
		Rows:        make([]reports.StockRow, 0, len(inputs)),
	}
	for _, in := range inputs {
		pred := forecast.Predict(seriesByIngredient[in.ID], in.CurrentStock, in.LeadTimeDays, in.SafetyDays, opts)
		rec := forecast.Recommend(forecast.Item{
			IngredientID: in.ID,
			Name:         in.Name,
			Unit:         in.Unit,
			PackSize:     in.PackSize,
			CurrentStock: in.CurrentStock,
			LeadTimeDays: in.LeadTimeDays,
			SafetyDays:   in.SafetyDays,
			MinSafety:    in.MinSafety,
		}, pred)
		data.Rows = append(data.Rows, reports.StockRow{
			Ingredient:        in.Name,
			Unit:              in.Unit,
			CurrentStock:      in.CurrentStock,
			DailyRate:         pred.DailyRate,
			DaysUntilStockout: pred.DaysUntilStockout,
			Risk:              string(pred.Risk),
			RecommendedQty:    rec.RecommendedQty,
		})
	}

	buf, err := reports.RenderStockPDF(data)
	if err != nil {
		h.Logger.Error("stock report render failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate report")
		return
	}

	key := stockReportPrefix(cafeID) + now.Format("20060102-150405") + ".pdf"
	url, err := h.Store.PutObject(ctx, key, buf.Bytes(), "application/pdf")
	if err != nil {
		h.Logger.Error("stock report upload failed", zapError(err), zap.String("key", key))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to upload report")
		return
	}

	h.pruneStockReports(ctx, cafeID)

	response.Success(w, map[string]any{
		"reportUrl":   url,
		"generatedAt": now,
	})
}

// StockReportsList returns the stored stock report PDFs for the cafe,
// newest first.
func (h *Handler) StockReportsList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.CafeID == nil {
		response.Error(w, http.StatusBadRequest, "CAFE_REQUIRED", "Cafe context required")
		return
	}
	cafeID := *authCtx.CafeID

	if h.Store == nil {
		response.Error(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Object storage is not configured")
		return
	}

	keys, err := h.Store.ListKeys(ctx, stockReportPrefix(cafeID))
	if err != nil {
		h.Logger.Error("stock report listing failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list reports")
		return
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	items := make([]map[string]any, 0, len(keys))
	for _, key := range keys {
		items = append(items, map[string]any{
			"key": key,
			"url": h.Store.PublicURL(key),
		})
	}
	response.Success(w, map[string]any{"reports": items})
}

const stockReportKeep = 10

func stockReportPrefix(cafeID int64) string {
	return fmt.Sprintf("reports/%d/stock/", cafeID)
}

// staleReportKeys returns the keys beyond the keep newest. Report keys embed
// a timestamp, so lexicographic order is chronological.
func staleReportKeys(keys []string, keep int) []string {
	if keep < 0 {
		keep = 0
	}
	if len(keys) <= keep {
		return nil
	}
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)
	return sorted[:len(sorted)-keep]
}

func (h *Handler) pruneStockReports(ctx context.Context, cafeID int64) {
	keys, err := h.Store.ListKeys(ctx, stockReportPrefix(cafeID))
	if err != nil {
		h.Logger.Warn("stock report listing failed", zapError(err), zap.Int64("cafeId", cafeID))
		return
	}
	for _, key := range staleReportKeys(keys, stockReportKeep) {
		if err := h.Store.DeleteKey(ctx, key); err != nil {
			h.Logger.Warn("stock report prune failed", zapError(err), zap.String("key", key))
		}
	}
}

func (h *Handler) buildRecommendations(ctx context.Context, cafeID int64, coverageDays int) ([]forecast.Recommendation, int, error) {
	inputs, err := h.loadPredictionInputs(ctx, cafeID)
	if err != nil {
		return nil, 0, err
	}
	seriesByIngredient, err := h.loadUsageSeries(ctx, cafeID, h.Config.ForecastHistoryDays)
	if err != nil {
		return nil, 0, err
	}

	opts := h.forecastOptions()
	recs := make([]forecast.Recommendation, 0, len(inputs))
	for _, in := range inputs {
		pred := forecast.Predict(seriesByIngredient[in.ID], in.CurrentStock, in.LeadTimeDays, in.SafetyDays, opts)
		item := forecast.Item{
			IngredientID: in.ID,
			Name:         in.Name,
			Unit:         in.Unit,
			PackSize:     in.PackSize,
			CurrentStock: in.CurrentStock,
			LeadTimeDays: in.LeadTimeDays,
			SafetyDays:   in.SafetyDays,
			CoverageDays: coverageDays,
			MinSafety:    in.MinSafety,
		}
		recs = append(recs, forecast.Recommend(item, pred))
	}

	forecast.SortRecommendations(recs)
	return recs, opts.HorizonDays, nil
}
