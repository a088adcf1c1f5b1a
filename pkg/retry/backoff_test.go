package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_GeometricGrowth(t *testing.T) {
	b := NewBackoff(Policy{
		MaxRetries: 5,
		BaseDelay:  time.Second,
		Multiplier: 2.0,
	})

	assert.Equal(t, 1*time.Second, b.Calculate(1))
	assert.Equal(t, 2*time.Second, b.Calculate(2))
	assert.Equal(t, 4*time.Second, b.Calculate(3))
	assert.Equal(t, 8*time.Second, b.Calculate(4))
}

func TestBackoff_LinearGrowth(t *testing.T) {
	b := NewBackoff(LinearPolicy(3, 5*time.Second))

	assert.Equal(t, 5*time.Second, b.Calculate(1))
	assert.Equal(t, 10*time.Second, b.Calculate(2))
	assert.Equal(t, 15*time.Second, b.Calculate(3))
}

func TestBackoff_MaxDelayCap(t *testing.T) {
	b := NewBackoff(Policy{
		MaxRetries: 10,
		BaseDelay:  time.Second,
		MaxDelay:   5 * time.Second,
		Multiplier: 2.0,
	})

	assert.Equal(t, 4*time.Second, b.Calculate(3))
	assert.Equal(t, 5*time.Second, b.Calculate(4))
	assert.Equal(t, 5*time.Second, b.Calculate(10))
}

func TestBackoff_ClampsAttemptBelowOne(t *testing.T) {
	b := NewBackoff(LinearPolicy(3, time.Second))

	assert.Equal(t, time.Second, b.Calculate(0))
	assert.Equal(t, time.Second, b.Calculate(-3))
}

func TestPolicy_Validate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())
	assert.NoError(t, LinearPolicy(3, 5*time.Second).Validate())

	assert.Error(t, Policy{MaxRetries: -1, BaseDelay: time.Second, Multiplier: 1.0}.Validate())
	assert.Error(t, Policy{MaxRetries: 3, BaseDelay: 0, Multiplier: 1.0}.Validate())
	assert.Error(t, Policy{MaxRetries: 3, BaseDelay: time.Second, Multiplier: 0.5}.Validate())
}
