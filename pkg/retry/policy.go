package retry

import (
	"fmt"
	"time"
)

// Policy configures retry behavior
type Policy struct {
	// MaxRetries is the number of retries after the initial attempt
	MaxRetries int

	// BaseDelay is the delay before the first retry
	BaseDelay time.Duration

	// MaxDelay caps the computed backoff. Zero means no cap.
	MaxDelay time.Duration

	// Multiplier scales the delay between consecutive retries.
	// 1.0 gives a constant delay, 2.0 doubles it each attempt.
	Multiplier float64

	// linear switches Calculate from geometric to attempt*BaseDelay growth
	linear bool
}

// DefaultPolicy returns a conservative policy for transient network failures
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
	}
}

// LinearPolicy returns a policy whose n-th retry waits n*baseDelay
func LinearPolicy(maxRetries int, baseDelay time.Duration) Policy {
	return Policy{
		MaxRetries: maxRetries,
		BaseDelay:  baseDelay,
		Multiplier: 1.0,
		linear:     true,
	}
}

// Validate checks the policy for usable values
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0, got %d", p.MaxRetries)
	}
	if p.BaseDelay <= 0 {
		return fmt.Errorf("base delay must be positive, got %s", p.BaseDelay)
	}
	if p.Multiplier < 1.0 {
		return fmt.Errorf("multiplier must be >= 1.0, got %f", p.Multiplier)
	}
	return nil
}
