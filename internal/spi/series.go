package spi

import "math"

// BridgeGaps fills NaN runs in a per-second series by linear interpolation
// between the neighbouring valid samples; leading and trailing gaps take the
// nearest valid value. A series with no valid samples is returned unchanged.
func BridgeGaps(series []float32) []float32 {
	out := make([]float32, len(series))
	copy(out, series)

	valid := make([]int, 0, len(series))
	for i, v := range series {
		if !math.IsNaN(float64(v)) {
			valid = append(valid, i)
		}
	}
	if len(valid) == 0 {
		return out
	}

	vi := 0
	for i := range out {
		if !math.IsNaN(float64(out[i])) {
			continue
		}
		for vi+1 < len(valid) && valid[vi+1] < i {
			vi++
		}
		switch {
		case i < valid[0]:
			out[i] = series[valid[0]]
		case i > valid[len(valid)-1]:
			out[i] = series[valid[len(valid)-1]]
		default:
			lo, hi := valid[vi], valid[vi+1]
			t := float64(i-lo) / float64(hi-lo)
			out[i] = float32(float64(series[lo]) + t*(float64(series[hi])-float64(series[lo])))
		}
	}
	return out
}

// Summary returns the mean and minimum of a series, ignoring NaN. Both are
// NaN when no valid sample exists.
func Summary(series []float32) (mean, min float64) {
	sum := 0.0
	count := 0
	min = math.NaN()
	for _, v := range series {
		f := float64(v)
		if math.IsNaN(f) {
			continue
		}
		sum += f
		count++
		if math.IsNaN(min) || f < min {
			min = f
		}
	}
	if count == 0 {
		return math.NaN(), math.NaN()
	}
	return sum / float64(count), min
}
