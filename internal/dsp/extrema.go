package dsp

// LocalMaxima returns the indices of strict interior local maxima. A flat
// plateau counts as one maximum at its midpoint when the samples on both
// sides are strictly lower. Endpoints are never maxima.
func LocalMaxima(x []float64) []int {
	var peaks []int
	i := 1
	for i < len(x)-1 {
		if x[i] <= x[i-1] {
			i++
			continue
		}
		// Possible peak or left edge of a plateau.
		j := i
		for j < len(x)-1 && x[j+1] == x[i] {
			j++
		}
		if j < len(x)-1 && x[j+1] < x[i] {
			peaks = append(peaks, (i+j)/2)
		}
		i = j + 1
	}
	return peaks
}

// LocalMinima returns the indices of strict interior local minima, the
// mirror of LocalMaxima.
func LocalMinima(x []float64) []int {
	neg := make([]float64, len(x))
	for i, v := range x {
		neg[i] = -v
	}
	return LocalMaxima(neg)
}
