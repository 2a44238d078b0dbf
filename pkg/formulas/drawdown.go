package formulas

// MaxDrawdown calculates the maximum peak-to-trough decline of a value series.
//
// Drawdown Formula:
//
//	Drawdown(t) = 1 − Value(t) / RunningPeak(t)
//	Max Drawdown = maximum over all t
//
// Returns a positive fraction (0.25 = 25% loss from peak); 0 for series
// shorter than two points.
func MaxDrawdown(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	maxDrawdown := 0.0
	peak := values[0]

	for _, v := range values {
		if v > peak {
			peak = v
		}

		if peak > 0 {
			drawdown := 1 - v/peak
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}

	return maxDrawdown
}

// RunningPeaks returns the running maximum of a value series.
// RunningPeaks(values)[t] is the highest value seen up to and including t.
func RunningPeaks(values []float64) []float64 {
	peaks := make([]float64, len(values))
	peak := 0.0
	for i, v := range values {
		if i == 0 || v > peak {
			peak = v
		}
		peaks[i] = peak
	}
	return peaks
}
