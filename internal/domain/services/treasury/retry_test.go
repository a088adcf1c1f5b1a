package treasury

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umoja-exchange/settlement-service/pkg/logger"
	"github.com/umoja-exchange/settlement-service/pkg/retry"
)

func testLogger() *logger.Logger {
	return logger.New("error", "test")
}

func testScheduler(baseDelay time.Duration) *retryScheduler {
	return newRetryScheduler(retry.LinearPolicy(3, baseDelay), testLogger())
}

func TestRetryScheduler_DelayGrowsWithAttempt(t *testing.T) {
	rs := testScheduler(5 * time.Second)
	defer rs.Stop()

	noop := func(int) {}

	assert.Equal(t, 5*time.Second, rs.Schedule("tx-1", 1, noop))
	assert.Equal(t, 10*time.Second, rs.Schedule("tx-2", 2, noop))
	assert.Equal(t, 15*time.Second, rs.Schedule("tx-3", 3, noop))
	assert.Equal(t, 3, rs.Size())
}

func TestRetryScheduler_FiresWithScheduledAttempt(t *testing.T) {
	rs := testScheduler(10 * time.Millisecond)
	defer rs.Stop()

	fired := make(chan int, 1)
	rs.Schedule("tx-1", 2, func(attempt int) {
		fired <- attempt
	})

	select {
	case attempt := <-fired:
		assert.Equal(t, 2, attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("retry callback never fired")
	}
}

func TestRetryScheduler_ReschedulingSupersedesPendingTimer(t *testing.T) {
	rs := testScheduler(20 * time.Millisecond)
	defer rs.Stop()

	fired := make(chan int, 2)
	record := func(attempt int) { fired <- attempt }

	// The second schedule replaces the first before it can fire; only the
	// newer attempt may run.
	rs.Schedule("tx-1", 1, record)
	rs.Schedule("tx-1", 2, record)

	select {
	case attempt := <-fired:
		assert.Equal(t, 2, attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("superseding retry never fired")
	}

	select {
	case attempt := <-fired:
		t.Fatalf("stale timer fired with attempt %d", attempt)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRetryScheduler_ClearCancelsPendingRetry(t *testing.T) {
	rs := testScheduler(30 * time.Millisecond)
	defer rs.Stop()

	fired := make(chan int, 1)
	rs.Schedule("tx-1", 1, func(attempt int) { fired <- attempt })
	require.Equal(t, 1, rs.Size())

	rs.Clear("tx-1")
	assert.Equal(t, 0, rs.Size())

	select {
	case <-fired:
		t.Fatal("cleared retry still fired")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestRetryScheduler_StopCancelsEverything(t *testing.T) {
	rs := testScheduler(30 * time.Millisecond)

	fired := make(chan int, 2)
	record := func(attempt int) { fired <- attempt }
	rs.Schedule("tx-1", 1, record)
	rs.Schedule("tx-2", 1, record)

	rs.Stop()
	assert.Equal(t, 0, rs.Size())

	// Scheduling after stop is rejected
	assert.Equal(t, time.Duration(0), rs.Schedule("tx-3", 1, record))

	select {
	case <-fired:
		t.Fatal("retry fired after scheduler stop")
	case <-time.After(150 * time.Millisecond):
	}
}
