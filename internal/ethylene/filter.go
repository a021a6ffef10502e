package ethylene

import (
	"fmt"
	"math"
)

// Filter drops voltages that indicate a disconnected sensor.
type Filter struct {
	Floor float64
}

// Check returns nil when v may enter the smoothing window. Non-finite voltages
// fail with ErrInvalidNumeric, voltages below the floor with ErrDisconnected.
func (f Filter) Check(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: voltage %v", ErrInvalidNumeric, v)
	}
	if v < f.Floor {
		return fmt.Errorf("%w: %.3f V below floor %.3f V", ErrDisconnected, v, f.Floor)
	}
	return nil
}
