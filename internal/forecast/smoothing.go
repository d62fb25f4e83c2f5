package forecast

import "math"

// movingAverage returns the mean of the trailing window values, or of the
// whole slice when it is shorter than the window.
func movingAverage(values []float64, window int) float64 {
	if len(values) == 0 {
		return 0
	}
	if window <= 0 || window > len(values) {
		window = len(values)
	}
	sum := 0.0
	for _, v := range values[len(values)-window:] {
		sum += v
	}
	return sum / float64(window)
}

// exponentialSmooth runs simple exponential smoothing over the series and
// returns the final smoothed level. The first value seeds the level.
func exponentialSmooth(values []float64, alpha float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if alpha <= 0 || alpha > 1 {
		alpha = defaultAlpha
	}
	level := values[0]
	for _, v := range values[1:] {
		level = alpha*v + (1-alpha)*level
	}
	return level
}

// smoothedRate blends the exponentially smoothed level with a short moving
// average so one quiet day does not collapse the forecast rate.
func smoothedRate(values []float64, alpha float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if len(values) == 1 {
		return math.Max(0, values[0])
	}
	es := exponentialSmooth(values, alpha)
	ma := movingAverage(values, 7)
	rate := 0.7*es + 0.3*ma
	if rate < 0 {
		return 0
	}
	return rate
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64, avg float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - avg
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
