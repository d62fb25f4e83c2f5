package forecast

import "math"

type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendStable  Trend = "stable"
)

// linearSlope fits y = a + b*x over the values by least squares, with x as
// the day index, and returns b (units per day).
func linearSlope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// classifyTrend labels the regression slope relative to the mean daily
// consumption. A slope below 5% of the mean per day counts as stable, which
// keeps noisy but flat series from flapping between labels.
func classifyTrend(slope float64, meanRate float64) Trend {
	if meanRate <= 0 {
		if slope > 0 {
			return TrendRising
		}
		return TrendStable
	}

	relative := slope / meanRate
	switch {
	case relative > 0.05:
		return TrendRising
	case relative < -0.05:
		return TrendFalling
	default:
		return TrendStable
	}
}

// trendOverWindow computes slope and label over the trailing window days.
func trendOverWindow(values []float64, window int) (float64, Trend) {
	if window <= 0 || window > len(values) {
		window = len(values)
	}
	recent := values[len(values)-window:]
	slope := linearSlope(recent)
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		slope = 0
	}
	return slope, classifyTrend(slope, mean(recent))
}
