package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/umoja-exchange/settlement-service/internal/domain/entities"
)

// TreasuryRepository handles treasury ledger database operations
type TreasuryRepository struct {
	db *sqlx.DB
}

// NewTreasuryRepository creates a new treasury repository
func NewTreasuryRepository(db *sqlx.DB) *TreasuryRepository {
	return &TreasuryRepository{db: db}
}

// GetOrCreateAccountTx loads the treasury account for (accountType, assetSymbol)
// inside the caller's transaction, creating it with a zero balance on first use.
// The returned row is locked FOR UPDATE so concurrent movement sets against the
// same account serialize at the database.
func (r *TreasuryRepository) GetOrCreateAccountTx(ctx context.Context, tx *sqlx.Tx, accountType entities.TreasuryAccountType, assetSymbol string) (*entities.TreasuryAccount, error) {
	selectQuery := `
		SELECT id, account_type, asset_symbol, balance, reserved_balance, created_at, updated_at
		FROM treasury_accounts
		WHERE account_type = $1 AND asset_symbol = $2
		FOR UPDATE
	`

	var account entities.TreasuryAccount
	err := tx.GetContext(ctx, &account, selectQuery, accountType, assetSymbol)
	if err == nil {
		return &account, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get treasury account: %w", err)
	}

	// First movement against this account. ON CONFLICT DO NOTHING covers the
	// race where another transaction inserts between our select and insert;
	// whoever loses the insert still picks the row up in the re-select.
	insertQuery := `
		INSERT INTO treasury_accounts (
			id, account_type, asset_symbol, balance, reserved_balance, created_at, updated_at
		) VALUES (
			$1, $2, $3, 0, 0, NOW(), NOW()
		)
		ON CONFLICT (account_type, asset_symbol) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, insertQuery, uuid.New(), accountType, assetSymbol); err != nil {
		return nil, fmt.Errorf("failed to create treasury account: %w", err)
	}

	if err := tx.GetContext(ctx, &account, selectQuery, accountType, assetSymbol); err != nil {
		return nil, fmt.Errorf("failed to reload treasury account: %w", err)
	}
	return &account, nil
}

// UpdateBalanceTx sets the account balance inside the caller's transaction
func (r *TreasuryRepository) UpdateBalanceTx(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, newBalance decimal.Decimal) error {
	query := `
		UPDATE treasury_accounts
		SET balance = $2, updated_at = NOW()
		WHERE id = $1
	`
	result, err := tx.ExecContext(ctx, query, accountID, newBalance)
	if err != nil {
		return fmt.Errorf("failed to update treasury balance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("treasury account %s not found", accountID)
	}
	return nil
}

// InsertJournalTx appends a journal row inside the caller's transaction
func (r *TreasuryRepository) InsertJournalTx(ctx context.Context, tx *sqlx.Tx, journal *entities.TreasuryTransaction) error {
	query := `
		INSERT INTO treasury_transactions (
			id, user_transaction_id, treasury_account_id, transaction_type,
			amount, balance_before, balance_after, description, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9
		)
	`
	if journal.ID == uuid.Nil {
		journal.ID = uuid.New()
	}
	if journal.CreatedAt.IsZero() {
		journal.CreatedAt = time.Now()
	}

	_, err := tx.ExecContext(ctx, query,
		journal.ID, journal.UserTransactionID, journal.TreasuryAccountID, journal.TransactionType,
		journal.Amount, journal.BalanceBefore, journal.BalanceAfter, journal.Description, journal.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert treasury journal row: %w", err)
	}
	return nil
}

// GetBalance returns the current balance for (accountType, assetSymbol),
// zero when the account has never been touched
func (r *TreasuryRepository) GetBalance(ctx context.Context, accountType entities.TreasuryAccountType, assetSymbol string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(
			(SELECT balance FROM treasury_accounts WHERE account_type = $1 AND asset_symbol = $2),
			0
		)
	`
	var balance decimal.Decimal
	if err := r.db.GetContext(ctx, &balance, query, accountType, assetSymbol); err != nil {
		return decimal.Zero, fmt.Errorf("failed to get treasury balance: %w", err)
	}
	return balance, nil
}

// GetAllBalances returns every treasury account balance
func (r *TreasuryRepository) GetAllBalances(ctx context.Context) ([]*entities.TreasuryBalance, error) {
	query := `
		SELECT account_type, asset_symbol, balance, reserved_balance, updated_at
		FROM treasury_accounts
		ORDER BY account_type ASC, asset_symbol ASC
	`
	var balances []*entities.TreasuryBalance
	if err := r.db.SelectContext(ctx, &balances, query); err != nil {
		return nil, fmt.Errorf("failed to list treasury balances: %w", err)
	}
	return balances, nil
}

// GetTransactionsByUserTransactionID returns all journal rows recorded under a
// caller-supplied transaction id, oldest first
func (r *TreasuryRepository) GetTransactionsByUserTransactionID(ctx context.Context, userTransactionID string) ([]*entities.TreasuryTransaction, error) {
	query := `
		SELECT id, user_transaction_id, treasury_account_id, transaction_type,
			amount, balance_before, balance_after, description, created_at
		FROM treasury_transactions
		WHERE user_transaction_id = $1
		ORDER BY created_at ASC
	`
	var transactions []*entities.TreasuryTransaction
	if err := r.db.SelectContext(ctx, &transactions, query, userTransactionID); err != nil {
		return nil, fmt.Errorf("failed to get transactions for %s: %w", userTransactionID, err)
	}
	return transactions, nil
}

// GetTransactionHistory returns journal rows newest first, optionally filtered
// by account type and asset symbol. Empty filter values match everything.
func (r *TreasuryRepository) GetTransactionHistory(ctx context.Context, accountType entities.TreasuryAccountType, assetSymbol string, limit int) ([]*entities.TreasuryTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT tt.id, tt.user_transaction_id, tt.treasury_account_id, tt.transaction_type,
			tt.amount, tt.balance_before, tt.balance_after, tt.description, tt.created_at
		FROM treasury_transactions tt
		JOIN treasury_accounts ta ON ta.id = tt.treasury_account_id
		WHERE ($1 = '' OR ta.account_type = $1)
		  AND ($2 = '' OR ta.asset_symbol = $2)
		ORDER BY tt.created_at DESC
		LIMIT $3
	`
	var transactions []*entities.TreasuryTransaction
	if err := r.db.SelectContext(ctx, &transactions, query, string(accountType), assetSymbol, limit); err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	return transactions, nil
}
