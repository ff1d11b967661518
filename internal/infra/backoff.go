package infra

import (
	"time"
)

const (
	backoffBase = 1 * time.Second
	backoffMax  = 60 * time.Second
)

// Backoff returns the exponential reconnect delay for a retry count:
// base * 2^retry, capped at the maximum. Negative counts get the base.
func Backoff(retry int) time.Duration {
	if retry < 0 {
		return backoffBase
	}

	// 2^31s already exceeds the cap; guard the shift before it overflows.
	if retry > 30 {
		return backoffMax
	}

	delay := backoffBase * time.Duration(1<<retry)
	if delay > backoffMax {
		return backoffMax
	}
	return delay
}
