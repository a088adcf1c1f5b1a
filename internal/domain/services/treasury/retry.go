package treasury

import (
	"sync"
	"time"

	"github.com/umoja-exchange/settlement-service/pkg/logger"
	"github.com/umoja-exchange/settlement-service/pkg/retry"
)

type retryState struct {
	attempt int
	timer   *time.Timer
}

// retryScheduler tracks one pending retry timer per user transaction id.
// Re-scheduling an id supersedes its previous timer; a superseded timer that
// still fires finds its attempt number out of date and does nothing.
type retryScheduler struct {
	backoff *retry.Backoff
	logger  *logger.Logger

	mu      sync.Mutex
	pending map[string]*retryState
	stopped bool
}

func newRetryScheduler(policy retry.Policy, logger *logger.Logger) *retryScheduler {
	return &retryScheduler{
		backoff: retry.NewBackoff(policy),
		logger:  logger,
		pending: make(map[string]*retryState),
	}
}

// Schedule arms the retry timer for an id. The delay comes from the backoff
// policy; attempt n of a linear policy fires after n*baseDelay. Returns the
// armed delay.
func (rs *retryScheduler) Schedule(id string, attempt int, fn func(attempt int)) time.Duration {
	delay := rs.backoff.Calculate(attempt)

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.stopped {
		return 0
	}

	state, ok := rs.pending[id]
	if !ok {
		state = &retryState{}
		rs.pending[id] = state
	}
	if state.timer != nil {
		state.timer.Stop()
	}
	state.attempt = attempt
	state.timer = time.AfterFunc(delay, func() {
		rs.fire(id, attempt, fn)
	})
	return delay
}

func (rs *retryScheduler) fire(id string, attempt int, fn func(attempt int)) {
	rs.mu.Lock()
	state, ok := rs.pending[id]
	if !ok || state.attempt != attempt || rs.stopped {
		rs.mu.Unlock()
		rs.logger.Debug("Ignoring stale retry timer",
			"user_transaction_id", id,
			"attempt", attempt)
		return
	}
	rs.mu.Unlock()

	fn(attempt)
}

// Clear drops the pending retry for an id, stopping its timer
func (rs *retryScheduler) Clear(id string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if state, ok := rs.pending[id]; ok {
		if state.timer != nil {
			state.timer.Stop()
		}
		delete(rs.pending, id)
	}
}

// Size reports how many ids have a retry pending
func (rs *retryScheduler) Size() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.pending)
}

// Stop cancels every pending timer and rejects further scheduling
func (rs *retryScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.stopped = true
	for id, state := range rs.pending {
		if state.timer != nil {
			state.timer.Stop()
		}
		delete(rs.pending, id)
	}
}
