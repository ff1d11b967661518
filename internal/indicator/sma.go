// Package indicator provides streaming calculators consumed by strategies.
// Each instance is stateful and owned by exactly one strategy; none of them
// are safe for concurrent use.
package indicator

import "fmt"

// SMA is a streaming simple moving average over a fixed window.
// It keeps a ring buffer of the last `window` samples plus a running sum,
// so Update is O(1) regardless of window size.
type SMA struct {
	window int
	values []float64
	head   int // next write position; oldest sample when full
	count  int
	sum    float64
}

// NewSMA creates a rolling mean over the given window.
// A non-positive window is a fatal configuration error.
func NewSMA(window int) *SMA {
	if window <= 0 {
		panic(fmt.Sprintf("indicator: SMA window must be > 0, got %d", window))
	}
	return &SMA{
		window: window,
		values: make([]float64, window),
	}
}

// Update feeds one sample and returns the current mean.
// ok is false until the window has seen `window` samples; the returned
// value is meaningless while ok is false.
func (s *SMA) Update(x float64) (value float64, ok bool) {
	if s.count == s.window {
		s.sum -= s.values[s.head]
	}

	s.values[s.head] = x
	s.sum += x
	s.head = (s.head + 1) % s.window

	if s.count < s.window {
		s.count++
	}
	if s.count < s.window {
		return 0, false
	}
	return s.sum / float64(s.window), true
}

// Value returns the current mean without feeding a sample.
func (s *SMA) Value() (float64, bool) {
	if s.count < s.window {
		return 0, false
	}
	return s.sum / float64(s.window), true
}

// Window returns the configured window size.
func (s *SMA) Window() int { return s.window }
