package deposit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/umoja-exchange/settlement-service/internal/domain/entities"
	domainerrors "github.com/umoja-exchange/settlement-service/internal/domain/errors"
	"github.com/umoja-exchange/settlement-service/internal/infrastructure/config"
	"github.com/umoja-exchange/settlement-service/internal/infrastructure/database"
	"github.com/umoja-exchange/settlement-service/pkg/logger"
	"github.com/umoja-exchange/settlement-service/pkg/metrics"
)

// ConfirmationSource resolves the current confirmation count of a pending
// deposit's transaction. The chain monitor implements it by dispatching to
// the listener that owns the token.
type ConfirmationSource interface {
	Confirmations(ctx context.Context, tokenSymbol, txHash string) (int64, error)
}

// DepositStore persists deposit records. The production implementation is
// repositories.DepositRepository.
type DepositStore interface {
	Create(ctx context.Context, deposit *entities.Deposit) error
	GetByTxHash(ctx context.Context, txHash string) (*entities.Deposit, error)
	ListByStatus(ctx context.Context, status entities.DepositStatus) ([]*entities.Deposit, error)
	ListRecent(ctx context.Context, status entities.DepositStatus, limit int) ([]*entities.Deposit, error)
	UpdateConfirmations(ctx context.Context, id uuid.UUID, confirmations int64) (bool, error)
	MarkConfirmedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, confirmedAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID) error
}

// WalletStore resolves deposit addresses to owners and credits balances
type WalletStore interface {
	GetAddressOwner(ctx context.Context, tokenSymbol, address string) (*entities.UserWallet, error)
	CreditBalanceTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, tokenSymbol string, amount decimal.Decimal) error
}

// Notifier emits deposit lifecycle events
type Notifier interface {
	NotifyDepositDetected(ctx context.Context, deposit *entities.Deposit)
	NotifyDepositConfirmed(ctx context.Context, deposit *entities.Deposit)
	NotifyDepositFailed(ctx context.Context, deposit *entities.Deposit)
}

// Service turns raw chain events into exactly-once balance credits. A
// transaction hash is recorded at most once; crediting happens in the same
// database transaction as the pending-to-confirmed status flip, so a deposit
// can never be credited twice no matter how often its event is replayed.
type Service struct {
	depositRepo DepositStore
	walletRepo  WalletStore
	db          *sqlx.DB
	chains      config.ChainsConfig
	notifier    Notifier
	logger      *logger.Logger
}

// NewService creates a new deposit service
func NewService(
	depositRepo DepositStore,
	walletRepo WalletStore,
	db *sqlx.DB,
	chains config.ChainsConfig,
	notifier Notifier,
	logger *logger.Logger,
) *Service {
	return &Service{
		depositRepo: depositRepo,
		walletRepo:  walletRepo,
		db:          db,
		chains:      chains,
		notifier:    notifier,
		logger:      logger,
	}
}

// ProcessDeposit handles one detected chain event: dedup by transaction
// hash, resolve the receiving address to its owner, record the deposit as
// pending, and promote it immediately when the chain already reports enough
// confirmations.
func (s *Service) ProcessDeposit(ctx context.Context, event *entities.DepositEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("validate event: %w", err)
	}

	// Listeners re-emit transactions whenever poll windows overlap, so
	// dedup comes before everything else.
	existing, err := s.depositRepo.GetByTxHash(ctx, event.TxHash)
	if err != nil && !domainerrors.IsNotFound(err) {
		return fmt.Errorf("check duplicate: %w", err)
	}
	if existing != nil {
		metrics.DepositsDuplicate.WithLabelValues(event.TokenSymbol).Inc()
		s.logger.Debug("Duplicate deposit event ignored",
			"tx_hash", event.TxHash,
			"status", existing.Status)
		return nil
	}

	wallet, err := s.walletRepo.GetAddressOwner(ctx, event.TokenSymbol, event.ToAddress)
	if err != nil {
		if domainerrors.IsNotFound(err) {
			s.logger.Warn("Deposit to unregistered address ignored",
				"address", event.ToAddress,
				"token", event.TokenSymbol,
				"tx_hash", event.TxHash)
			return nil
		}
		return fmt.Errorf("resolve address owner: %w", err)
	}

	deposit := &entities.Deposit{
		ID:            uuid.New(),
		UserID:        wallet.UserID,
		UserAddress:   event.ToAddress,
		FromAddress:   event.FromAddress,
		TokenSymbol:   event.TokenSymbol,
		Chain:         event.Chain,
		Amount:        event.Amount,
		TxHash:        event.TxHash,
		BlockNumber:   event.BlockNumber,
		Confirmations: event.Confirmations,
		Status:        entities.DepositStatusPending,
		DetectedAt:    time.Now(),
	}
	if err := s.depositRepo.Create(ctx, deposit); err != nil {
		if domainerrors.IsAlreadyExists(err) {
			// Lost an insert race with a concurrent event for the
			// same transaction; the winner owns the deposit.
			metrics.DepositsDuplicate.WithLabelValues(event.TokenSymbol).Inc()
			s.logger.Debug("Concurrent deposit event ignored", "tx_hash", event.TxHash)
			return nil
		}
		return fmt.Errorf("create deposit: %w", err)
	}

	s.logger.Info("Deposit recorded",
		"tx_hash", deposit.TxHash,
		"user_id", deposit.UserID,
		"token", deposit.TokenSymbol,
		"chain", deposit.Chain,
		"amount", deposit.Amount.String(),
		"confirmations", deposit.Confirmations)
	s.notifier.NotifyDepositDetected(ctx, deposit)

	if deposit.Confirmations >= s.requiredConfirmations(deposit) {
		if _, err := s.promote(ctx, deposit); err != nil {
			return err
		}
	}
	return nil
}

// RefreshPendingDeposits walks every pending deposit, refreshes its
// confirmation count from the chain and promotes the ones that have reached
// their threshold. Returns how many deposits were checked and credited.
func (s *Service) RefreshPendingDeposits(ctx context.Context, source ConfirmationSource) (checked, credited int, err error) {
	pending, err := s.depositRepo.ListByStatus(ctx, entities.DepositStatusPending)
	if err != nil {
		return 0, 0, fmt.Errorf("list pending deposits: %w", err)
	}

	for _, deposit := range pending {
		select {
		case <-ctx.Done():
			return checked, credited, ctx.Err()
		default:
		}
		checked++

		confirmations, err := source.Confirmations(ctx, deposit.TokenSymbol, deposit.TxHash)
		if err != nil {
			s.logger.Warn("Failed to refresh confirmations",
				"tx_hash", deposit.TxHash,
				"token", deposit.TokenSymbol,
				"error", err)
			continue
		}

		// Confirmations only move forward; the repository enforces the
		// same rule, so a lagging node can never roll a count back.
		if confirmations > deposit.Confirmations {
			updated, err := s.depositRepo.UpdateConfirmations(ctx, deposit.ID, confirmations)
			if err != nil {
				s.logger.Warn("Failed to persist confirmations",
					"tx_hash", deposit.TxHash,
					"error", err)
				continue
			}
			if updated {
				deposit.Confirmations = confirmations
			}
		}

		if deposit.Confirmations >= s.requiredConfirmations(deposit) {
			didCredit, err := s.promote(ctx, deposit)
			if err != nil {
				s.logger.Error("Failed to promote deposit",
					"tx_hash", deposit.TxHash,
					"error", err)
				continue
			}
			if didCredit {
				credited++
			}
		}
	}
	return checked, credited, nil
}

// GetByTxHash returns the deposit recorded for a transaction hash
func (s *Service) GetByTxHash(ctx context.Context, txHash string) (*entities.Deposit, error) {
	return s.depositRepo.GetByTxHash(ctx, txHash)
}

// ListRecent returns recent deposits, optionally filtered by status
func (s *Service) ListRecent(ctx context.Context, status entities.DepositStatus, limit int) ([]*entities.Deposit, error) {
	return s.depositRepo.ListRecent(ctx, status, limit)
}

func (s *Service) requiredConfirmations(deposit *entities.Deposit) int64 {
	return s.chains.RequiredConfirmations(deposit.TokenSymbol, string(deposit.Chain))
}

// promote flips the deposit to confirmed and credits the user's balance in
// one database transaction. The status flip is guarded on the row still
// being pending, so exactly one caller wins; everyone else sees a no-op.
// Reports whether this call performed the credit.
func (s *Service) promote(ctx context.Context, deposit *entities.Deposit) (bool, error) {
	var credited bool
	err := database.WithTransaction(ctx, s.db, func(tx *sqlx.Tx) error {
		confirmedAt := time.Now()
		won, err := s.depositRepo.MarkConfirmedTx(ctx, tx, deposit.ID, confirmedAt)
		if err != nil {
			return fmt.Errorf("mark confirmed: %w", err)
		}
		if !won {
			return nil
		}
		if err := s.walletRepo.CreditBalanceTx(ctx, tx, deposit.UserID, deposit.TokenSymbol, deposit.Amount); err != nil {
			return fmt.Errorf("credit balance: %w", err)
		}
		deposit.ConfirmedAt = &confirmedAt
		credited = true
		return nil
	})
	if err != nil {
		return false, s.failDeposit(ctx, deposit, err)
	}

	if credited {
		deposit.Status = entities.DepositStatusConfirmed
		metrics.DepositsCredited.WithLabelValues(deposit.TokenSymbol).Inc()
		s.logger.Info("Deposit credited",
			"tx_hash", deposit.TxHash,
			"user_id", deposit.UserID,
			"token", deposit.TokenSymbol,
			"amount", deposit.Amount.String())
		s.notifier.NotifyDepositConfirmed(ctx, deposit)
	}
	return credited, nil
}

// failDeposit records a crediting failure. The balance write rolled back
// with the status flip, so the row is still pending; the guarded update
// moves it to failed for manual review.
func (s *Service) failDeposit(ctx context.Context, deposit *entities.Deposit, cause error) error {
	if err := s.depositRepo.MarkFailed(ctx, deposit.ID); err != nil {
		s.logger.Error("Failed to mark deposit failed",
			"tx_hash", deposit.TxHash,
			"error", err)
	} else {
		deposit.Status = entities.DepositStatusFailed
		metrics.DepositsFailed.WithLabelValues(deposit.TokenSymbol).Inc()
		s.notifier.NotifyDepositFailed(ctx, deposit)
	}
	return fmt.Errorf("credit deposit %s: %w", deposit.TxHash, cause)
}
