package forecast

import "time"

// weekdayIndices returns a multiplicative index per weekday (Sunday = 0):
// the mean consumption on that weekday divided by the overall mean. With
// fewer than minWeeks full weeks of history the indices are damped halfway
// toward 1 so thin evidence does not swing the horizon.
func weekdayIndices(s Series, minWeeks int) [7]float64 {
	var indices [7]float64
	for i := range indices {
		indices[i] = 1
	}

	if s.Len() == 0 {
		return indices
	}

	overall := mean(s.Values)
	if overall <= 0 {
		return indices
	}

	var sums [7]float64
	var counts [7]int
	for i, v := range s.Values {
		wd := int(s.DateAt(i).Weekday())
		sums[wd] += v
		counts[wd]++
	}

	damp := false
	if minWeeks > 0 {
		for _, c := range counts {
			if c < minWeeks {
				damp = true
				break
			}
		}
	}

	for wd := range indices {
		if counts[wd] == 0 {
			continue
		}
		idx := (sums[wd] / float64(counts[wd])) / overall
		if damp {
			idx = 1 + (idx-1)/2
		}
		// Clamp runaway indices from short, spiky histories.
		if idx < 0.25 {
			idx = 0.25
		}
		if idx > 3 {
			idx = 3
		}
		indices[wd] = idx
	}

	return indices
}

func indexFor(indices [7]float64, date time.Time) float64 {
	return indices[int(date.Weekday())]
}
