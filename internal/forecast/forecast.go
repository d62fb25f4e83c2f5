package forecast

import (
	"math"
	"time"
)

const (
	defaultAlpha            = 0.35
	defaultAnomalyThreshold = 2.5
	defaultHorizonDays      = 14
	defaultTrendWindow      = 28
	defaultSeasonalityWeeks = 2
)

type RiskLevel string

const (
	RiskCritical RiskLevel = "CRITICAL"
	RiskHigh     RiskLevel = "HIGH"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskLow      RiskLevel = "LOW"
)

type Options struct {
	// Alpha is the exponential smoothing factor in (0, 1].
	Alpha float64
	// TrendWindow is the number of trailing days fed to the regression.
	TrendWindow int
	// AnomalyThreshold is the z-score beyond which a day is flagged.
	AnomalyThreshold float64
	// HorizonDays is how far ahead stock levels are projected.
	HorizonDays int
	// SeasonalityWeeks is the minimum samples per weekday before the
	// weekday indices are applied undamped.
	SeasonalityWeeks int
}

func DefaultOptions() Options {
	return Options{
		Alpha:            defaultAlpha,
		TrendWindow:      defaultTrendWindow,
		AnomalyThreshold: defaultAnomalyThreshold,
		HorizonDays:      defaultHorizonDays,
		SeasonalityWeeks: defaultSeasonalityWeeks,
	}
}

func (o Options) normalized() Options {
	if o.Alpha <= 0 || o.Alpha > 1 {
		o.Alpha = defaultAlpha
	}
	if o.TrendWindow <= 0 {
		o.TrendWindow = defaultTrendWindow
	}
	if o.AnomalyThreshold <= 0 {
		o.AnomalyThreshold = defaultAnomalyThreshold
	}
	if o.HorizonDays <= 0 {
		o.HorizonDays = defaultHorizonDays
	}
	if o.SeasonalityWeeks < 0 {
		o.SeasonalityWeeks = defaultSeasonalityWeeks
	}
	return o
}

// DayProjection is one horizon day of the stock projection.
type DayProjection struct {
	Date           time.Time `json:"date"`
	ExpectedUsage  float64   `json:"expectedUsage"`
	ProjectedStock float64   `json:"projectedStock"`
}

// Prediction is the full forecast output for a single ingredient.
type Prediction struct {
	DailyRate         float64         `json:"dailyRate"`
	Trend             Trend           `json:"trend"`
	TrendSlope        float64         `json:"trendSlope"`
	WeekdayIndex      [7]float64      `json:"weekdayIndex"`
	Anomalies         []Anomaly       `json:"anomalies"`
	Projections       []DayProjection `json:"projections"`
	DaysUntilStockout int             `json:"daysUntilStockout"`
	StockoutDate      *time.Time      `json:"stockoutDate"`
	Risk              RiskLevel       `json:"risk"`
	Confidence        float64         `json:"confidence"`
	HistoryDays       int             `json:"historyDays"`
}

// Predict runs the consumption model over a daily series and projects stock
// across the horizon. DaysUntilStockout is -1 when the horizon ends with
// stock remaining; 0 means the ingredient is already out (or out today).
func Predict(s Series, currentStock float64, leadTimeDays, safetyDays int, opts Options) Prediction {
	opts = opts.normalized()

	pred := Prediction{
		Trend:             TrendStable,
		DaysUntilStockout: -1,
		Risk:              RiskLow,
		HistoryDays:       s.Len(),
		Anomalies:         []Anomaly{},
		Projections:       []DayProjection{},
	}
	for i := range pred.WeekdayIndex {
		pred.WeekdayIndex[i] = 1
	}

	if currentStock < 0 {
		currentStock = 0
	}

	if s.Len() == 0 || mean(s.Values) == 0 {
		// No consumption evidence at all: nothing to predict.
		pred.Confidence = 0
		return pred
	}

	anomalies := detectAnomalies(s, opts.AnomalyThreshold)
	clean := sanitizeSeries(s, anomalies)

	rate := smoothedRate(clean.Values, opts.Alpha)
	slope, trend := trendOverWindow(clean.Values, opts.TrendWindow)
	indices := weekdayIndices(clean, opts.SeasonalityWeeks)

	pred.DailyRate = round2(rate)
	pred.TrendSlope = round4(slope)
	pred.Trend = trend
	pred.WeekdayIndex = indices
	pred.Anomalies = anomalies

	// Project stock day by day from the day after the series ends.
	horizonStart := clean.DateAt(clean.Len())
	stock := currentStock
	for day := 0; day < opts.HorizonDays; day++ {
		date := horizonStart.AddDate(0, 0, day)
		expected := rate * indexFor(indices, date)
		if expected < 0 {
			expected = 0
		}
		stock -= expected
		if stock <= 0 && pred.DaysUntilStockout < 0 && expected > 0 {
			pred.DaysUntilStockout = day
			d := date
			pred.StockoutDate = &d
		}
		if stock < 0 {
			stock = 0
		}
		pred.Projections = append(pred.Projections, DayProjection{
			Date:           date,
			ExpectedUsage:  round2(expected),
			ProjectedStock: round2(stock),
		})
	}
	if currentStock == 0 && rate > 0 {
		pred.DaysUntilStockout = 0
		d := horizonStart
		pred.StockoutDate = &d
	}

	pred.Risk = riskLevel(pred.DaysUntilStockout, leadTimeDays, safetyDays)
	pred.Confidence = confidenceScore(clean, len(anomalies))
	return pred
}

func riskLevel(daysUntilStockout, leadTimeDays, safetyDays int) RiskLevel {
	if daysUntilStockout < 0 {
		return RiskLow
	}
	if leadTimeDays < 0 {
		leadTimeDays = 0
	}
	if safetyDays < 0 {
		safetyDays = 0
	}
	switch {
	case daysUntilStockout <= leadTimeDays:
		return RiskCritical
	case daysUntilStockout <= leadTimeDays+safetyDays:
		return RiskHigh
	default:
		return RiskMedium
	}
}

// confidenceScore degrades with short history, high relative variance and
// anomaly count. Range [0, 1], two decimals.
func confidenceScore(s Series, anomalyCount int) float64 {
	if s.Len() == 0 {
		return 0
	}

	historyFactor := float64(s.Len()) / 28.0
	if historyFactor > 1 {
		historyFactor = 1
	}

	avg := mean(s.Values)
	varianceFactor := 1.0
	if avg > 0 {
		cv := stddev(s.Values, avg) / avg
		varianceFactor = 1 / (1 + cv)
	}

	anomalyPenalty := 0.05 * float64(anomalyCount)
	if anomalyPenalty > 0.2 {
		anomalyPenalty = 0.2
	}

	score := historyFactor*varianceFactor - anomalyPenalty
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return round2(score)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
