package deposit_sweep

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/umoja-exchange/settlement-service/internal/domain/entities"
	"github.com/umoja-exchange/settlement-service/pkg/logger"
	"github.com/umoja-exchange/settlement-service/pkg/metrics"
)

// DepositRepository interface for deposit operations
type DepositRepository interface {
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*entities.Deposit, error)
}

// Worker flags deposits that have sat pending past the staleness threshold.
// It never changes their status: a stuck deposit usually means a chain node
// problem, and resolving it is an operator decision.
type Worker struct {
	depositRepo DepositRepository
	schedule    string
	staleAfter  time.Duration
	cron        *cron.Cron
	logger      *logger.Logger
}

// NewWorker creates a new stale-deposit sweep worker
func NewWorker(depositRepo DepositRepository, schedule string, staleAfterHours int, logger *logger.Logger) *Worker {
	return &Worker{
		depositRepo: depositRepo,
		schedule:    schedule,
		staleAfter:  time.Duration(staleAfterHours) * time.Hour,
		cron:        cron.New(),
		logger:      logger,
	}
}

// Start schedules the sweep
func (w *Worker) Start() error {
	_, err := w.cron.AddFunc(w.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		w.sweep(ctx)
	})
	if err != nil {
		return err
	}

	w.cron.Start()
	w.logger.Info("Deposit sweep worker started",
		"schedule", w.schedule,
		"stale_after", w.staleAfter.String())
	return nil
}

// Stop stops the worker
func (w *Worker) Stop() {
	w.cron.Stop()
	w.logger.Info("Deposit sweep worker stopped")
}

// sweep reports every pending deposit older than the cutoff
func (w *Worker) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)

	deposits, err := w.depositRepo.ListPendingOlderThan(ctx, cutoff)
	if err != nil {
		w.logger.Error("Failed to list stale pending deposits", "error", err)
		return
	}

	metrics.StalePendingDeposits.Set(float64(len(deposits)))

	if len(deposits) == 0 {
		w.logger.Debug("No stale pending deposits found")
		return
	}

	for _, deposit := range deposits {
		w.logger.Warn("Deposit stuck in pending",
			"deposit_id", deposit.ID,
			"tx_hash", deposit.TxHash,
			"token", deposit.TokenSymbol,
			"chain", deposit.Chain,
			"confirmations", deposit.Confirmations,
			"age", time.Since(deposit.DetectedAt).Round(time.Minute).String())
	}

	w.logger.Warn("Stale pending deposits need attention",
		"count", len(deposits),
		"cutoff", cutoff.Format(time.RFC3339))
}

// RunOnce runs a single sweep (for testing or manual trigger)
func (w *Worker) RunOnce(ctx context.Context) {
	w.sweep(ctx)
}
