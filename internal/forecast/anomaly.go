package forecast

import "time"

// Anomaly is a day whose consumption sits outside the z-score threshold.
type Anomaly struct {
	Date     time.Time `json:"date"`
	Quantity float64   `json:"quantity"`
	ZScore   float64   `json:"zScore"`
}

// detectAnomalies flags days whose value deviates from the series mean by
// more than threshold standard deviations. Requires at least 7 days of
// history; below that everything passes.
func detectAnomalies(s Series, threshold float64) []Anomaly {
	if s.Len() < 7 {
		return nil
	}
	if threshold <= 0 {
		threshold = defaultAnomalyThreshold
	}

	avg := mean(s.Values)
	sd := stddev(s.Values, avg)
	if sd == 0 {
		return nil
	}

	anomalies := make([]Anomaly, 0)
	for i, v := range s.Values {
		z := (v - avg) / sd
		if z > threshold || z < -threshold {
			anomalies = append(anomalies, Anomaly{
				Date:     s.DateAt(i),
				Quantity: v,
				ZScore:   z,
			})
		}
	}
	return anomalies
}

// sanitizeSeries replaces anomalous days with the series mean so spikes
// (a bulk catering day, a data-entry slip) do not leak into the smoothing
// input. The original series is left untouched.
func sanitizeSeries(s Series, anomalies []Anomaly) Series {
	if len(anomalies) == 0 {
		return s
	}

	flagged := make(map[int64]struct{}, len(anomalies))
	for _, a := range anomalies {
		flagged[truncateDay(a.Date).Unix()] = struct{}{}
	}

	avg := mean(s.Values)
	values := make([]float64, s.Len())
	copy(values, s.Values)
	for i := range values {
		if _, ok := flagged[s.DateAt(i).Unix()]; ok {
			values[i] = avg
		}
	}
	return Series{Start: s.Start, Values: values}
}
