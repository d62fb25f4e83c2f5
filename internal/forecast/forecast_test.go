package forecast

import (
	"math"
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func constantSeries(start string, days int, value float64) Series {
	values := make([]float64, days)
	for i := range values {
		values[i] = value
	}
	return Series{Start: day(start), Values: values}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}

func TestBuildDailySeries(t *testing.T) {
	start := day("2026-08-01")
	end := day("2026-08-05")

	points := []UsagePoint{
		{Date: day("2026-08-01"), Quantity: 3},
		{Date: day("2026-08-01"), Quantity: 2},
		{Date: day("2026-08-03"), Quantity: 5},
		{Date: day("2026-08-04"), Quantity: -4},
		{Date: day("2026-08-10"), Quantity: 9},
	}

	s := BuildDailySeries(points, start, end)
	if s.Len() != 5 {
		t.Fatalf("expected 5 days, got %d", s.Len())
	}

	expected := []float64{5, 0, 5, 0, 0}
	for i, want := range expected {
		if s.Values[i] != want {
			t.Fatalf("day %d: expected %v, got %v", i, want, s.Values[i])
		}
	}

	empty := BuildDailySeries(points, end, start)
	if empty.Len() != 0 {
		t.Fatalf("expected empty series for inverted range, got %d days", empty.Len())
	}
}

func TestSmoothedRate(t *testing.T) {
	constant := []float64{10, 10, 10, 10, 10, 10, 10, 10}
	if got := smoothedRate(constant, 0.35); !approx(got, 10) {
		t.Fatalf("expected 10 for constant series, got %v", got)
	}

	if got := smoothedRate(nil, 0.35); got != 0 {
		t.Fatalf("expected 0 for empty series, got %v", got)
	}

	if got := smoothedRate([]float64{7}, 0.35); got != 7 {
		t.Fatalf("expected single value passthrough, got %v", got)
	}

	// Invalid alpha falls back to the default instead of exploding.
	if got := smoothedRate(constant, -3); !approx(got, 10) {
		t.Fatalf("expected default alpha fallback, got %v", got)
	}
}

func TestLinearSlope(t *testing.T) {
	if got := linearSlope([]float64{1, 2, 3, 4}); !approx(got, 1) {
		t.Fatalf("expected slope 1, got %v", got)
	}
	if got := linearSlope([]float64{5, 5, 5, 5}); !approx(got, 0) {
		t.Fatalf("expected slope 0, got %v", got)
	}
	if got := linearSlope([]float64{4}); got != 0 {
		t.Fatalf("expected 0 for single point, got %v", got)
	}
}

func TestClassifyTrend(t *testing.T) {
	cases := []struct {
		name     string
		slope    float64
		meanRate float64
		expected Trend
	}{
		{name: "clearly rising", slope: 1, meanRate: 10, expected: TrendRising},
		{name: "clearly falling", slope: -1, meanRate: 10, expected: TrendFalling},
		{name: "noise stays stable", slope: 0.3, meanRate: 10, expected: TrendStable},
		{name: "zero mean rising", slope: 0.5, meanRate: 0, expected: TrendRising},
		{name: "zero mean flat", slope: 0, meanRate: 0, expected: TrendStable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyTrend(tc.slope, tc.meanRate); got != tc.expected {
				t.Fatalf("expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func TestWeekdayIndices(t *testing.T) {
	// Four full weeks starting on a Monday; Saturdays run double.
	start := day("2026-08-03")
	values := make([]float64, 28)
	s := Series{Start: start}
	for i := range values {
		if start.AddDate(0, 0, i).Weekday() == time.Saturday {
			values[i] = 20
		} else {
			values[i] = 10
		}
	}
	s.Values = values

	indices := weekdayIndices(s, 2)
	if !approx(indices[int(time.Saturday)], 1.75) {
		t.Fatalf("expected saturday index 1.75, got %v", indices[int(time.Saturday)])
	}
	if !approx(indices[int(time.Tuesday)], 0.875) {
		t.Fatalf("expected tuesday index 0.875, got %v", indices[int(time.Tuesday)])
	}

	flat := weekdayIndices(constantSeries("2026-08-03", 28, 0), 2)
	for wd, idx := range flat {
		if idx != 1 {
			t.Fatalf("weekday %d: expected neutral index for zero series, got %v", wd, idx)
		}
	}
}

func TestWeekdayIndicesDamping(t *testing.T) {
	// A single week: one sample per weekday, below the two-week minimum,
	// so each index is pulled halfway back toward 1.
	start := day("2026-08-03")
	values := make([]float64, 7)
	for i := range values {
		if start.AddDate(0, 0, i).Weekday() == time.Saturday {
			values[i] = 20
		} else {
			values[i] = 10
		}
	}
	s := Series{Start: start, Values: values}

	indices := weekdayIndices(s, 2)
	// Raw saturday index is 1.75, damped to 1 + 0.75/2.
	if !approx(indices[int(time.Saturday)], 1.375) {
		t.Fatalf("expected damped saturday index 1.375, got %v", indices[int(time.Saturday)])
	}
	// Raw tuesday index is 0.875, damped to 1 - 0.125/2.
	if !approx(indices[int(time.Tuesday)], 0.9375) {
		t.Fatalf("expected damped tuesday index 0.9375, got %v", indices[int(time.Tuesday)])
	}
}

func TestWeekdayIndicesClamps(t *testing.T) {
	// Two full weeks with an extreme saturday spike; indices stay inside
	// the [0.25, 3] band.
	start := day("2026-08-03")
	values := make([]float64, 14)
	for i := range values {
		if start.AddDate(0, 0, i).Weekday() == time.Saturday {
			values[i] = 100
		} else {
			values[i] = 1
		}
	}
	s := Series{Start: start, Values: values}

	indices := weekdayIndices(s, 2)
	if indices[int(time.Saturday)] != 3 {
		t.Fatalf("expected saturday clamped to 3, got %v", indices[int(time.Saturday)])
	}
	if indices[int(time.Monday)] != 0.25 {
		t.Fatalf("expected monday clamped to 0.25, got %v", indices[int(time.Monday)])
	}
}

func TestDetectAnomalies(t *testing.T) {
	s := constantSeries("2026-08-01", 14, 10)
	s.Values[6] = 100

	anomalies := detectAnomalies(s, 2.5)
	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(anomalies))
	}
	if !anomalies[0].Date.Equal(day("2026-08-07")) {
		t.Fatalf("expected anomaly on 2026-08-07, got %s", anomalies[0].Date)
	}
	if anomalies[0].ZScore <= 2.5 {
		t.Fatalf("expected z-score above threshold, got %v", anomalies[0].ZScore)
	}

	if got := detectAnomalies(constantSeries("2026-08-01", 5, 10), 2.5); got != nil {
		t.Fatalf("expected no anomalies for short series, got %d", len(got))
	}
	if got := detectAnomalies(constantSeries("2026-08-01", 14, 10), 2.5); got != nil {
		t.Fatalf("expected no anomalies for flat series, got %d", len(got))
	}
}

func TestSanitizeSeries(t *testing.T) {
	s := constantSeries("2026-08-01", 14, 10)
	s.Values[6] = 100

	anomalies := detectAnomalies(s, 2.5)
	clean := sanitizeSeries(s, anomalies)

	if clean.Values[6] == 100 {
		t.Fatalf("expected anomalous day to be replaced")
	}
	if s.Values[6] != 100 {
		t.Fatalf("expected original series untouched")
	}
	if clean.Values[0] != 10 {
		t.Fatalf("expected normal days untouched, got %v", clean.Values[0])
	}
}

func TestPredictConstantConsumption(t *testing.T) {
	s := constantSeries("2026-07-01", 28, 10)
	pred := Predict(s, 35, 2, 2, DefaultOptions())

	if !approx(pred.DailyRate, 10) {
		t.Fatalf("expected rate 10, got %v", pred.DailyRate)
	}
	if pred.Trend != TrendStable {
		t.Fatalf("expected stable trend, got %s", pred.Trend)
	}
	if pred.DaysUntilStockout != 3 {
		t.Fatalf("expected stockout on day 3, got %d", pred.DaysUntilStockout)
	}
	if pred.Risk != RiskHigh {
		t.Fatalf("expected HIGH risk, got %s", pred.Risk)
	}
	if pred.StockoutDate == nil || !pred.StockoutDate.Equal(day("2026-08-01")) {
		t.Fatalf("expected stockout date 2026-08-01, got %v", pred.StockoutDate)
	}
	if !approx(pred.Confidence, 1) {
		t.Fatalf("expected full confidence for long flat history, got %v", pred.Confidence)
	}
	if len(pred.Projections) != DefaultOptions().HorizonDays {
		t.Fatalf("expected %d projection days, got %d", DefaultOptions().HorizonDays, len(pred.Projections))
	}
	if pred.Projections[0].ProjectedStock != 25 {
		t.Fatalf("expected 25 left after day one, got %v", pred.Projections[0].ProjectedStock)
	}
}

func TestPredictEdgeCases(t *testing.T) {
	t.Run("empty series", func(t *testing.T) {
		pred := Predict(Series{}, 50, 3, 2, DefaultOptions())
		if pred.DailyRate != 0 || pred.Risk != RiskLow || pred.Confidence != 0 {
			t.Fatalf("expected zero prediction, got rate=%v risk=%s conf=%v", pred.DailyRate, pred.Risk, pred.Confidence)
		}
		if pred.DaysUntilStockout != -1 {
			t.Fatalf("expected no stockout, got %d", pred.DaysUntilStockout)
		}
	})

	t.Run("all zero series", func(t *testing.T) {
		pred := Predict(constantSeries("2026-08-01", 30, 0), 50, 3, 2, DefaultOptions())
		if pred.DailyRate != 0 || pred.Risk != RiskLow {
			t.Fatalf("expected zero prediction, got rate=%v risk=%s", pred.DailyRate, pred.Risk)
		}
	})

	t.Run("already out of stock", func(t *testing.T) {
		pred := Predict(constantSeries("2026-07-01", 28, 10), 0, 2, 2, DefaultOptions())
		if pred.DaysUntilStockout != 0 {
			t.Fatalf("expected stockout today, got %d", pred.DaysUntilStockout)
		}
		if pred.Risk != RiskCritical {
			t.Fatalf("expected CRITICAL risk, got %s", pred.Risk)
		}
	})

	t.Run("negative stock clamps", func(t *testing.T) {
		pred := Predict(constantSeries("2026-07-01", 28, 10), -5, 2, 2, DefaultOptions())
		if pred.DaysUntilStockout != 0 {
			t.Fatalf("expected stockout today, got %d", pred.DaysUntilStockout)
		}
	})

	t.Run("plentiful stock", func(t *testing.T) {
		pred := Predict(constantSeries("2026-07-01", 28, 1), 1000, 2, 2, DefaultOptions())
		if pred.DaysUntilStockout != -1 {
			t.Fatalf("expected no stockout within horizon, got %d", pred.DaysUntilStockout)
		}
		if pred.Risk != RiskLow {
			t.Fatalf("expected LOW risk, got %s", pred.Risk)
		}
	})
}

func TestRiskLevel(t *testing.T) {
	cases := []struct {
		name     string
		days     int
		lead     int
		safety   int
		expected RiskLevel
	}{
		{name: "no stockout", days: -1, lead: 3, safety: 2, expected: RiskLow},
		{name: "before delivery", days: 2, lead: 3, safety: 2, expected: RiskCritical},
		{name: "inside safety window", days: 5, lead: 3, safety: 2, expected: RiskHigh},
		{name: "within horizon", days: 10, lead: 3, safety: 2, expected: RiskMedium},
		{name: "negative lead clamps", days: 0, lead: -1, safety: 0, expected: RiskCritical},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := riskLevel(tc.days, tc.lead, tc.safety); got != tc.expected {
				t.Fatalf("expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func TestRecommend(t *testing.T) {
	pred := Prediction{DailyRate: 10, Risk: RiskHigh, DaysUntilStockout: 3, Confidence: 0.9}
	item := Item{
		IngredientID: 1,
		Name:         "Arabica beans",
		Unit:         "kg",
		PackSize:     25,
		CurrentStock: 35,
		LeadTimeDays: 2,
		SafetyDays:   2,
		CoverageDays: 14,
	}

	rec := Recommend(item, pred)
	if !rec.Reorder {
		t.Fatalf("expected reorder recommendation")
	}
	if rec.SafetyStock != 20 {
		t.Fatalf("expected safety stock 20, got %v", rec.SafetyStock)
	}
	if rec.ReorderPoint != 40 {
		t.Fatalf("expected reorder point 40, got %v", rec.ReorderPoint)
	}
	if rec.ProjectedAtDelivery != 15 {
		t.Fatalf("expected 15 projected at delivery, got %v", rec.ProjectedAtDelivery)
	}
	if rec.Packs != 6 || rec.RecommendedQty != 150 {
		t.Fatalf("expected 6 packs / 150, got %d / %v", rec.Packs, rec.RecommendedQty)
	}
}

func TestRecommendNoReorderNeeded(t *testing.T) {
	pred := Prediction{DailyRate: 2, Risk: RiskLow, DaysUntilStockout: -1, Confidence: 0.8}
	item := Item{
		IngredientID: 2,
		Name:         "Sugar",
		Unit:         "kg",
		CurrentStock: 100,
		LeadTimeDays: 2,
		SafetyDays:   1,
		CoverageDays: 14,
	}

	rec := Recommend(item, pred)
	if rec.Reorder {
		t.Fatalf("expected no reorder, got qty %v", rec.RecommendedQty)
	}
	if rec.RecommendedQty != 0 {
		t.Fatalf("expected zero quantity, got %v", rec.RecommendedQty)
	}
}

func TestRecommendZeroRate(t *testing.T) {
	pred := Prediction{DailyRate: 0, Risk: RiskCritical, DaysUntilStockout: 0}
	rec := Recommend(Item{IngredientID: 3, Name: "Seasonal syrup"}, pred)
	if rec.Reorder {
		t.Fatalf("expected no reorder for zero consumption rate")
	}
}

func TestSortRecommendations(t *testing.T) {
	recs := []Recommendation{
		{Name: "c", Risk: RiskLow, DaysUntilStockout: -1},
		{Name: "a", Risk: RiskCritical, DaysUntilStockout: 2},
		{Name: "b", Risk: RiskCritical, DaysUntilStockout: 1},
		{Name: "d", Risk: RiskHigh, DaysUntilStockout: 4},
	}

	SortRecommendations(recs)

	expected := []string{"b", "a", "d", "c"}
	for i, name := range expected {
		if recs[i].Name != name {
			t.Fatalf("position %d: expected %s, got %s", i, name, recs[i].Name)
		}
	}
}
