package ethylene

import (
	"fmt"
	"math"
)

// Converter maps a smoothed voltage to ppm with a fixed linear calibration.
type Converter struct {
	Slope float64
}

func (c Converter) Convert(v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: voltage %v", ErrInvalidNumeric, v)
	}
	ppm := v * c.Slope
	if math.IsNaN(ppm) || math.IsInf(ppm, 0) {
		return 0, fmt.Errorf("%w: concentration %v from %v V", ErrInvalidNumeric, ppm, v)
	}
	return ppm, nil
}
