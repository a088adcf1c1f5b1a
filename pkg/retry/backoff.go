package retry

import (
	"math"
	"time"
)

// Backoff computes the wait between retry attempts
type Backoff struct {
	policy Policy
}

// NewBackoff creates a backoff calculator for the policy
func NewBackoff(policy Policy) *Backoff {
	return &Backoff{policy: policy}
}

// Calculate returns the delay before the given attempt. Attempts are
// numbered from 1.
func (b *Backoff) Calculate(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var delay time.Duration
	if b.policy.linear {
		delay = time.Duration(attempt) * b.policy.BaseDelay
	} else {
		factor := math.Pow(b.policy.Multiplier, float64(attempt-1))
		delay = time.Duration(float64(b.policy.BaseDelay) * factor)
	}

	if b.policy.MaxDelay > 0 && delay > b.policy.MaxDelay {
		delay = b.policy.MaxDelay
	}
	return delay
}
