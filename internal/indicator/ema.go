package indicator

import "fmt"

// EMA is a streaming exponential moving average with smoothing constant
// alpha = 2 / (period + 1). The first sample seeds the value, so the EMA
// is ready from the first Update onward.
type EMA struct {
	period int
	alpha  float64
	value  float64
	seeded bool
}

// NewEMA creates an exponential mean for the given period.
// A non-positive period is a fatal configuration error.
func NewEMA(period int) *EMA {
	if period <= 0 {
		panic(fmt.Sprintf("indicator: EMA period must be > 0, got %d", period))
	}
	return &EMA{
		period: period,
		alpha:  2.0 / (float64(period) + 1.0),
	}
}

// Update feeds one sample and returns the new value.
func (e *EMA) Update(x float64) float64 {
	if !e.seeded {
		e.value = x
		e.seeded = true
		return e.value
	}
	e.value = e.alpha*x + (1-e.alpha)*e.value
	return e.value
}

// Value returns the current value; ok is false before the first sample.
func (e *EMA) Value() (float64, bool) {
	return e.value, e.seeded
}

// Period returns the configured period.
func (e *EMA) Period() int { return e.period }
