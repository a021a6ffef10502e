package alert

// Threshold is the concentration above which a reading is high.
type Threshold float64

// IsHigh reports ppm > t. A reading exactly at the threshold is not high.
func (t Threshold) IsHigh(ppm float64) bool {
	return ppm > float64(t)
}
