package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/umoja-exchange/settlement-service/internal/domain/entities"
	domainerrors "github.com/umoja-exchange/settlement-service/internal/domain/errors"
	"github.com/umoja-exchange/settlement-service/internal/infrastructure/cache"
)

// WalletRepository handles user wallet and balance database operations
type WalletRepository struct {
	db        *sqlx.DB
	addrCache *cache.AddressCache
}

// NewWalletRepository creates a new wallet repository. The address cache is
// optional; when nil every address lookup goes straight to the database.
func NewWalletRepository(db *sqlx.DB, addrCache *cache.AddressCache) *WalletRepository {
	return &WalletRepository{db: db, addrCache: addrCache}
}

// CreateWallet registers a deposit address for a user
func (r *WalletRepository) CreateWallet(ctx context.Context, wallet *entities.UserWallet) error {
	query := `
		INSERT INTO user_wallets (
			id, user_id, token_symbol, chain, address, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`
	if wallet.ID == uuid.Nil {
		wallet.ID = uuid.New()
	}
	if wallet.CreatedAt.IsZero() {
		wallet.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		wallet.ID, wallet.UserID, wallet.TokenSymbol, wallet.Chain,
		wallet.Address, wallet.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				return fmt.Errorf("wallet address %s for %s: %w", wallet.Address, wallet.TokenSymbol, domainerrors.ErrAlreadyExists)
			}
		}
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	if r.addrCache != nil {
		// Best effort: the watcher set changed, drop the cached copy.
		_ = r.addrCache.Invalidate(ctx, wallet.TokenSymbol)
	}
	return nil
}

// GetAddressOwner resolves a deposit address to the owning user. Address
// comparison is case-insensitive because EVM addresses arrive in mixed case.
func (r *WalletRepository) GetAddressOwner(ctx context.Context, tokenSymbol, address string) (*entities.UserWallet, error) {
	query := `
		SELECT id, user_id, token_symbol, chain, address, created_at
		FROM user_wallets
		WHERE token_symbol = $1 AND LOWER(address) = LOWER($2)
	`
	var wallet entities.UserWallet
	err := r.db.GetContext(ctx, &wallet, query, tokenSymbol, address)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no wallet for address %s: %w", address, domainerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get address owner: %w", err)
	}
	return &wallet, nil
}

// GetAllAddressesForToken returns every watched deposit address for a token.
// Chain adapters call this on startup and on their refresh ticks, so results
// are served from the cache when available.
func (r *WalletRepository) GetAllAddressesForToken(ctx context.Context, tokenSymbol string) ([]entities.UserAddress, error) {
	if r.addrCache != nil {
		if addresses, err := r.addrCache.Get(ctx, tokenSymbol); err == nil {
			return addresses, nil
		}
	}

	query := `
		SELECT user_id, address
		FROM user_wallets
		WHERE token_symbol = $1
	`
	var addresses []entities.UserAddress
	if err := r.db.SelectContext(ctx, &addresses, query, tokenSymbol); err != nil {
		return nil, fmt.Errorf("failed to list addresses for %s: %w", tokenSymbol, err)
	}

	if r.addrCache != nil {
		_ = r.addrCache.Put(ctx, tokenSymbol, addresses)
	}
	return addresses, nil
}

// ListWalletsByUser returns all deposit addresses registered for a user
func (r *WalletRepository) ListWalletsByUser(ctx context.Context, userID uuid.UUID) ([]*entities.UserWallet, error) {
	query := `
		SELECT id, user_id, token_symbol, chain, address, created_at
		FROM user_wallets
		WHERE user_id = $1
		ORDER BY created_at ASC
	`
	var wallets []*entities.UserWallet
	if err := r.db.SelectContext(ctx, &wallets, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list wallets for user %s: %w", userID, err)
	}
	return wallets, nil
}

// CreditBalanceTx adds amount to a user's token balance inside the caller's
// transaction. The row is created on first credit.
func (r *WalletRepository) CreditBalanceTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, tokenSymbol string, amount decimal.Decimal) error {
	query := `
		INSERT INTO wallet_balances (user_id, token_symbol, balance, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, token_symbol)
		DO UPDATE SET
			balance = wallet_balances.balance + EXCLUDED.balance,
			updated_at = NOW()
	`
	if _, err := tx.ExecContext(ctx, query, userID, tokenSymbol, amount); err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}
	return nil
}

// GetBalance returns a user's balance for a token, zero when no row exists
func (r *WalletRepository) GetBalance(ctx context.Context, userID uuid.UUID, tokenSymbol string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(
			(SELECT balance FROM wallet_balances WHERE user_id = $1 AND token_symbol = $2),
			0
		)
	`
	var balance decimal.Decimal
	if err := r.db.GetContext(ctx, &balance, query, userID, tokenSymbol); err != nil {
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// GetBalancesForUser returns all non-zero token balances for a user
func (r *WalletRepository) GetBalancesForUser(ctx context.Context, userID uuid.UUID) ([]*entities.WalletBalance, error) {
	query := `
		SELECT user_id, token_symbol, balance, updated_at
		FROM wallet_balances
		WHERE user_id = $1
		ORDER BY token_symbol ASC
	`
	var balances []*entities.WalletBalance
	if err := r.db.SelectContext(ctx, &balances, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list balances for user %s: %w", userID, err)
	}
	return balances, nil
}
