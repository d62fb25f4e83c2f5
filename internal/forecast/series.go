package forecast

import "time"

// UsagePoint is one day of recorded consumption for an ingredient.
type UsagePoint struct {
	Date     time.Time
	Quantity float64
}

// Series is a contiguous daily consumption series. Values[0] is the
// consumption on Start; one entry per calendar day after that.
type Series struct {
	Start  time.Time
	Values []float64
}

func (s Series) Len() int {
	return len(s.Values)
}

func (s Series) DateAt(index int) time.Time {
	return s.Start.AddDate(0, 0, index)
}

// BuildDailySeries turns sparse usage rows into a contiguous daily series
// between start and end inclusive. Days without a row count as zero
// consumption; duplicate rows for a day are summed. Negative quantities
// (corrections) clamp to zero.
func BuildDailySeries(points []UsagePoint, start, end time.Time) Series {
	start = truncateDay(start)
	end = truncateDay(end)
	if end.Before(start) {
		return Series{Start: start}
	}

	days := int(end.Sub(start).Hours()/24) + 1
	values := make([]float64, days)
	for _, p := range points {
		day := truncateDay(p.Date)
		idx := int(day.Sub(start).Hours() / 24)
		if idx < 0 || idx >= days {
			continue
		}
		if p.Quantity > 0 {
			values[idx] += p.Quantity
		}
	}

	return Series{Start: start, Values: values}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
