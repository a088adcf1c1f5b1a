package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/umoja-exchange/settlement-service/internal/domain/entities"
	domainerrors "github.com/umoja-exchange/settlement-service/internal/domain/errors"
)

// DepositRepository persists deposit records
type DepositRepository struct {
	db *sqlx.DB
}

// NewDepositRepository creates a new deposit repository
func NewDepositRepository(db *sqlx.DB) *DepositRepository {
	return &DepositRepository{db: db}
}

const depositColumns = `
	id, user_id, user_address, from_address, token_symbol, chain, amount,
	tx_hash, block_number, confirmations, status, detected_at, confirmed_at`

// Create inserts a new deposit record. A concurrent insert for the same
// tx hash surfaces as ErrAlreadyExists so the caller can re-read the
// winning record.
func (r *DepositRepository) Create(ctx context.Context, deposit *entities.Deposit) error {
	query := `
		INSERT INTO deposit_transactions (
			id, user_id, user_address, from_address, token_symbol, chain,
			amount, tx_hash, block_number, confirmations, status, detected_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		deposit.ID,
		deposit.UserID,
		deposit.UserAddress,
		deposit.FromAddress,
		deposit.TokenSymbol,
		deposit.Chain,
		deposit.Amount,
		deposit.TxHash,
		deposit.BlockNumber,
		deposit.Confirmations,
		deposit.Status,
		deposit.DetectedAt,
	)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("deposit for tx %s: %w", deposit.TxHash, domainerrors.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create deposit: %w", err)
	}

	return nil
}

// GetByID retrieves a deposit by ID
func (r *DepositRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Deposit, error) {
	query := `SELECT` + depositColumns + `
		FROM deposit_transactions
		WHERE id = $1
	`

	var deposit entities.Deposit
	err := r.db.GetContext(ctx, &deposit, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("deposit %s: %w", id, domainerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get deposit: %w", err)
	}

	return &deposit, nil
}

// GetByTxHash retrieves a deposit by transaction hash
func (r *DepositRepository) GetByTxHash(ctx context.Context, txHash string) (*entities.Deposit, error) {
	query := `SELECT` + depositColumns + `
		FROM deposit_transactions
		WHERE tx_hash = $1
	`

	var deposit entities.Deposit
	err := r.db.GetContext(ctx, &deposit, query, txHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("deposit for tx %s: %w", txHash, domainerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get deposit: %w", err)
	}

	return &deposit, nil
}

// ListByStatus retrieves all deposits with the given status, oldest first
func (r *DepositRepository) ListByStatus(ctx context.Context, status entities.DepositStatus) ([]*entities.Deposit, error) {
	query := `SELECT` + depositColumns + `
		FROM deposit_transactions
		WHERE status = $1
		ORDER BY detected_at ASC
	`

	var deposits []*entities.Deposit
	err := r.db.SelectContext(ctx, &deposits, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list deposits by status: %w", err)
	}

	return deposits, nil
}

// ListRecent retrieves the most recent deposits, optionally filtered by status
func (r *DepositRepository) ListRecent(ctx context.Context, status entities.DepositStatus, limit int) ([]*entities.Deposit, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT` + depositColumns + `
		FROM deposit_transactions
	`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY detected_at DESC LIMIT %d`, limit)

	var deposits []*entities.Deposit
	err := r.db.SelectContext(ctx, &deposits, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent deposits: %w", err)
	}

	return deposits, nil
}

// ListPendingOlderThan retrieves pending deposits detected before the cutoff
func (r *DepositRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*entities.Deposit, error) {
	query := `SELECT` + depositColumns + `
		FROM deposit_transactions
		WHERE status = $1 AND detected_at < $2
		ORDER BY detected_at ASC
	`

	var deposits []*entities.Deposit
	err := r.db.SelectContext(ctx, &deposits, query, entities.DepositStatusPending, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pending deposits: %w", err)
	}

	return deposits, nil
}

// UpdateConfirmations raises the stored confirmation count for a
// deposit. The update only applies when the new count is higher, so a
// stale or reordered poll can never move a deposit backward.
func (r *DepositRepository) UpdateConfirmations(ctx context.Context, id uuid.UUID, confirmations int64) (bool, error) {
	query := `
		UPDATE deposit_transactions
		SET confirmations = $2
		WHERE id = $1 AND confirmations < $2
	`

	result, err := r.db.ExecContext(ctx, query, id, confirmations)
	if err != nil {
		return false, fmt.Errorf("failed to update confirmations: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// MarkConfirmedTx flips a deposit from pending to confirmed inside the
// given transaction. Returns false when the deposit was no longer
// pending, which makes concurrent promotion attempts a no-op rather
// than a double credit.
func (r *DepositRepository) MarkConfirmedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, confirmedAt time.Time) (bool, error) {
	query := `
		UPDATE deposit_transactions
		SET status = $2, confirmed_at = $3
		WHERE id = $1 AND status = $4
	`

	result, err := tx.ExecContext(ctx, query, id, entities.DepositStatusConfirmed, confirmedAt, entities.DepositStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to mark deposit confirmed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// MarkFailed flips a deposit from pending to failed. Records already in
// a terminal state are left untouched.
func (r *DepositRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE deposit_transactions
		SET status = $2
		WHERE id = $1 AND status = $3
	`

	_, err := r.db.ExecContext(ctx, query, id, entities.DepositStatusFailed, entities.DepositStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark deposit failed: %w", err)
	}

	return nil
}
