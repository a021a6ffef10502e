package ethylene

import "fmt"

// Smoother is a moving average over the last N accepted voltages.
// It is owned by a single ingest loop and is not safe for concurrent use.
type Smoother struct {
	size    int
	samples []float64
}

func NewSmoother(size int) (*Smoother, error) {
	if size < 1 {
		return nil, fmt.Errorf("window size must be >= 1, got %d", size)
	}
	return &Smoother{size: size, samples: make([]float64, 0, size)}, nil
}

// Add appends v, evicting the oldest sample when the window is full, and
// returns the mean of the samples now in the window.
func (s *Smoother) Add(v float64) float64 {
	if len(s.samples) == s.size {
		copy(s.samples, s.samples[1:])
		s.samples = s.samples[:s.size-1]
	}
	s.samples = append(s.samples, v)
	return s.Mean()
}

// Mean is the arithmetic mean of the window, or 0 when it is empty.
func (s *Smoother) Mean() float64 {
	if len(s.samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s.samples {
		sum += v
	}
	return sum / float64(len(s.samples))
}

func (s *Smoother) Len() int { return len(s.samples) }

// Samples returns a copy of the window, oldest first.
func (s *Smoother) Samples() []float64 {
	out := make([]float64, len(s.samples))
	copy(out, s.samples)
	return out
}
