package confirmation_tracker

import (
	"context"
	"time"

	"github.com/umoja-exchange/settlement-service/internal/domain/services/deposit"
	"github.com/umoja-exchange/settlement-service/pkg/logger"
	"github.com/umoja-exchange/settlement-service/pkg/metrics"
)

// DepositRefresher drives one confirmation sweep over pending deposits
type DepositRefresher interface {
	RefreshPendingDeposits(ctx context.Context, source deposit.ConfirmationSource) (checked, credited int, err error)
}

// Worker periodically re-checks pending deposits against their chains and
// promotes the ones that have collected enough confirmations. It is the
// safety net behind the listeners: a deposit detected while its chain
// adapter later goes down still gets credited by this loop.
type Worker struct {
	refresher    DepositRefresher
	source       deposit.ConfirmationSource
	interval     time.Duration
	batchTimeout time.Duration
	logger       *logger.Logger
	stopCh       chan struct{}
}

// Config holds worker configuration
type Config struct {
	Interval     time.Duration
	BatchTimeout time.Duration
}

// DefaultConfig returns default worker configuration
func DefaultConfig() *Config {
	return &Config{
		Interval:     30 * time.Second,
		BatchTimeout: 2 * time.Minute,
	}
}

// NewWorker creates a new confirmation tracker worker
func NewWorker(refresher DepositRefresher, source deposit.ConfirmationSource, config *Config, logger *logger.Logger) *Worker {
	if config == nil {
		config = DefaultConfig()
	}
	return &Worker{
		refresher:    refresher,
		source:       source,
		interval:     config.Interval,
		batchTimeout: config.BatchTimeout,
		logger:       logger,
		stopCh:       make(chan struct{}),
	}
}

// Start begins the tracker loop
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Starting confirmation tracker",
		"interval", w.interval.String(),
		"batch_timeout", w.batchTimeout.String())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run immediately on start
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Confirmation tracker stopped (context cancelled)")
			return
		case <-w.stopCh:
			w.logger.Info("Confirmation tracker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// Stop stops the worker
func (w *Worker) Stop() {
	close(w.stopCh)
}

// sweep runs one pass over the pending deposits
func (w *Worker) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, w.batchTimeout)
	defer cancel()

	start := time.Now()
	checked, credited, err := w.refresher.RefreshPendingDeposits(sweepCtx, w.source)
	metrics.ConfirmationSweepDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		w.logger.Error("Confirmation sweep failed",
			"checked", checked,
			"credited", credited,
			"error", err)
		return
	}
	if checked == 0 {
		w.logger.Debug("No pending deposits to check")
		return
	}
	w.logger.Info("Confirmation sweep completed",
		"checked", checked,
		"credited", credited,
		"duration", time.Since(start).String())
}

// RunOnce runs a single sweep (for testing or manual trigger)
func (w *Worker) RunOnce(ctx context.Context) {
	w.sweep(ctx)
}
