package forecast

import (
	"math"
)

// Resample fits a source series to exactly totalSteps values. Matching
// lengths pass through untouched; otherwise values are linearly interpolated
// over a normalized axis. An empty source yields all zeros and outputs are
// clamped non-negative.
func Resample(values []float64, totalSteps int) []float64 {
	if totalSteps < 1 {
		return nil
	}
	out := make([]float64, totalSteps)
	if len(values) == 0 {
		return out
	}
	if len(values) == totalSteps {
		for i, v := range values {
			out[i] = math.Max(0, v)
		}
		return out
	}
	if len(values) == 1 || totalSteps == 1 {
		v := math.Max(0, values[0])
		for i := range out {
			out[i] = v
		}
		return out
	}

	scale := float64(len(values)-1) / float64(totalSteps-1)
	for i := range out {
		pos := float64(i) * scale
		lo := int(pos)
		if lo >= len(values)-1 {
			out[i] = math.Max(0, values[len(values)-1])
			continue
		}
		frac := pos - float64(lo)
		out[i] = math.Max(0, values[lo]*(1-frac)+values[lo+1]*frac)
	}
	return out
}
