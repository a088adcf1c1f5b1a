package treasury

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/umoja-exchange/settlement-service/internal/domain/entities"
	domainerrors "github.com/umoja-exchange/settlement-service/internal/domain/errors"
	"github.com/umoja-exchange/settlement-service/internal/infrastructure/config"
	"github.com/umoja-exchange/settlement-service/internal/infrastructure/repositories"
	"github.com/umoja-exchange/settlement-service/pkg/logger"
	"github.com/umoja-exchange/settlement-service/pkg/metrics"
	"github.com/umoja-exchange/settlement-service/pkg/retry"
)

// executeTimeout bounds one posting attempt against the database
const executeTimeout = 30 * time.Second

// Service maintains the exchange's internal treasury ledger. Movement sets
// are posted fire-and-forget: ProcessTransaction validates and returns, the
// database write happens in the background and is retried with a linearly
// growing delay when it fails.
type Service struct {
	treasuryRepo *repositories.TreasuryRepository
	db           *sqlx.DB
	cfg          config.TreasuryConfig
	logger       *logger.Logger
	retries      *retryScheduler

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewService creates a new treasury service
func NewService(
	treasuryRepo *repositories.TreasuryRepository,
	db *sqlx.DB,
	cfg config.TreasuryConfig,
	logger *logger.Logger,
) *Service {
	policy := retry.LinearPolicy(cfg.MaxRetries, time.Duration(cfg.BaseDelaySeconds)*time.Second)
	return &Service{
		treasuryRepo: treasuryRepo,
		db:           db,
		cfg:          cfg,
		logger:       logger,
		retries:      newRetryScheduler(policy, logger),
	}
}

// ProcessTransaction validates the movement set and queues it for posting.
// The call returns as soon as validation passes; posting failures are
// retried up to max_retries times and logged terminally after that.
func (s *Service) ProcessTransaction(ctx context.Context, req *entities.TreasuryTransactionRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("validate request: %w", err)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("treasury service is shutting down")
	}
	s.mu.Unlock()

	s.post(req, 0)
	return nil
}

// ReverseTransaction posts the compensating movement set for a previously
// posted transaction under "<id>_reversal"
func (s *Service) ReverseTransaction(ctx context.Context, req *entities.TreasuryTransactionRequest) error {
	original, err := s.treasuryRepo.GetTransactionsByUserTransactionID(ctx, req.UserTransactionID)
	if err != nil {
		return fmt.Errorf("load original transaction: %w", err)
	}
	if len(original) == 0 {
		return fmt.Errorf("transaction %s has no posted movements: %w",
			req.UserTransactionID, domainerrors.ErrNotFound)
	}

	return s.ProcessTransaction(ctx, req.Reversed())
}

// GetBalance returns the balance of one treasury account
func (s *Service) GetBalance(ctx context.Context, accountType entities.TreasuryAccountType, assetSymbol string) (decimal.Decimal, error) {
	if err := accountType.Validate(); err != nil {
		return decimal.Zero, fmt.Errorf("validate account type: %w", err)
	}
	return s.treasuryRepo.GetBalance(ctx, accountType, assetSymbol)
}

// GetAllBalances returns every treasury account balance
func (s *Service) GetAllBalances(ctx context.Context) ([]*entities.TreasuryBalance, error) {
	return s.treasuryRepo.GetAllBalances(ctx)
}

// GetTransactionHistory returns journal rows newest first. Empty filters
// match everything.
func (s *Service) GetTransactionHistory(ctx context.Context, accountType entities.TreasuryAccountType, assetSymbol string, limit int) ([]*entities.TreasuryTransaction, error) {
	return s.treasuryRepo.GetTransactionHistory(ctx, accountType, assetSymbol, limit)
}

// GetTransactionsByUserTransactionID returns the journal rows posted under
// one user transaction id
func (s *Service) GetTransactionsByUserTransactionID(ctx context.Context, userTransactionID string) ([]*entities.TreasuryTransaction, error) {
	return s.treasuryRepo.GetTransactionsByUserTransactionID(ctx, userTransactionID)
}

// PendingRetries reports how many movement sets are waiting on a retry timer
func (s *Service) PendingRetries() int {
	return s.retries.Size()
}

// Stop cancels pending retries and waits for in-flight postings to finish
func (s *Service) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.retries.Stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("Treasury service stopped")
	case <-time.After(30 * time.Second):
		s.logger.Warn("Treasury service stop timeout, postings may be in flight")
	}
}

// post runs one posting attempt in the background. The attempt number is
// zero for the initial execution and 1..max_retries for retries.
func (s *Service) post(req *entities.TreasuryTransactionRequest, attempt int) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		// Posting outlives the caller's request, so it runs on a
		// detached context.
		ctx, cancel := context.WithTimeout(context.Background(), executeTimeout)
		defer cancel()

		err := s.executeTransaction(ctx, req)
		if err == nil {
			metrics.TreasuryPostings.WithLabelValues("success").Inc()
			s.retries.Clear(req.UserTransactionID)
			return
		}

		metrics.TreasuryPostings.WithLabelValues("failure").Inc()
		s.logger.Error("Treasury posting failed",
			"user_transaction_id", req.UserTransactionID,
			"type", req.TransactionType,
			"attempt", attempt,
			"error", err)

		s.scheduleRetry(req, attempt)
	}()
}

func (s *Service) scheduleRetry(req *entities.TreasuryTransactionRequest, failedAttempt int) {
	if failedAttempt >= s.cfg.MaxRetries {
		metrics.TreasuryTerminalFailures.Inc()
		s.retries.Clear(req.UserTransactionID)
		s.logger.Error("Treasury posting abandoned after max retries",
			"user_transaction_id", req.UserTransactionID,
			"type", req.TransactionType,
			"max_retries", s.cfg.MaxRetries)
		return
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	next := failedAttempt + 1
	delay := s.retries.Schedule(req.UserTransactionID, next, func(attempt int) {
		s.post(req, attempt)
	})
	metrics.TreasuryRetries.Inc()
	s.logger.Warn("Treasury posting retry scheduled",
		"user_transaction_id", req.UserTransactionID,
		"attempt", next,
		"delay", delay)
}

// executeTransaction applies the whole movement set in one database
// transaction. Either every account balance moves and every journal row
// lands, or none do.
func (s *Service) executeTransaction(ctx context.Context, req *entities.TreasuryTransactionRequest) error {
	// A movement set that already committed must not post twice; retries
	// and replays short-circuit here.
	existing, err := s.treasuryRepo.GetTransactionsByUserTransactionID(ctx, req.UserTransactionID)
	if err != nil {
		return fmt.Errorf("check idempotency: %w", err)
	}
	if len(existing) > 0 {
		s.logger.Info("Treasury transaction already posted (idempotent)",
			"user_transaction_id", req.UserTransactionID)
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, movement := range req.Movements {
		account, err := s.treasuryRepo.GetOrCreateAccountTx(ctx, tx, movement.AccountType, movement.AssetSymbol)
		if err != nil {
			return fmt.Errorf("load account: %w", err)
		}

		newBalance := account.Balance.Add(movement.Amount)
		if err := s.checkBalancePolicy(&movement, newBalance); err != nil {
			return err
		}

		if err := s.treasuryRepo.UpdateBalanceTx(ctx, tx, account.ID, newBalance); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}

		journal := &entities.TreasuryTransaction{
			ID:                uuid.New(),
			UserTransactionID: req.UserTransactionID,
			TreasuryAccountID: account.ID,
			TransactionType:   req.TransactionType,
			Amount:            movement.Amount,
			BalanceBefore:     account.Balance,
			BalanceAfter:      newBalance,
			Description:       movement.Description,
			CreatedAt:         now,
		}
		if err := s.treasuryRepo.InsertJournalTx(ctx, tx, journal); err != nil {
			return fmt.Errorf("insert journal row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.logger.Info("Treasury transaction posted",
		"user_transaction_id", req.UserTransactionID,
		"type", req.TransactionType,
		"movements", len(req.Movements))
	return nil
}

// checkBalancePolicy rejects movements that would take an account below
// zero. FIAT accounts are strictly non-negative. CRYPTO accounts track net
// issuance against on-chain custody and may run negative unless the strict
// flag is set.
func (s *Service) checkBalancePolicy(movement *entities.TreasuryMovement, newBalance decimal.Decimal) error {
	if newBalance.Sign() >= 0 {
		return nil
	}

	switch movement.AccountType {
	case entities.TreasuryAccountFiat:
		return fmt.Errorf("fiat treasury account %s would go negative (%s): %w",
			movement.AssetSymbol, newBalance.String(), domainerrors.ErrInvalidInput)
	case entities.TreasuryAccountCrypto:
		if s.cfg.EnforceCryptoNonNegative {
			return fmt.Errorf("crypto treasury account %s would go negative (%s): %w",
				movement.AssetSymbol, newBalance.String(), domainerrors.ErrInvalidInput)
		}
		return nil
	default:
		return fmt.Errorf("unknown treasury account type %s: %w",
			movement.AccountType, domainerrors.ErrInvalidInput)
	}
}
