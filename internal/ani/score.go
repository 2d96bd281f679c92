package ani

import (
	"gonum.org/v1/gonum/integrate"

	"github.com/nistring/VitalRecoder-ANI/pkg/config"
)

// ScoreWindow integrates the area between the upper and lower envelopes over
// the whole window with the trapezoidal rule and maps it onto the index
// scale via the empirical calibration constant (area 12.8 corresponds to a
// score of 100). No clamping is applied here; display layers may clamp to
// [0, 100].
func ScoreWindow(upper, lower []float64, cfg config.SignalConfig) float64 {
	x := make([]float64, len(upper))
	diff := make([]float64, len(upper))
	for i := range upper {
		x[i] = float64(i) / cfg.InterpolationRate
		diff[i] = upper[i] - lower[i]
	}
	area := integrate.Trapezoidal(x, diff)
	return 100 * area / cfg.AreaCalibration
}
