package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UserWallet maps a user to their deposit address for one token
type UserWallet struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	TokenSymbol string    `json:"token_symbol" db:"token_symbol"`
	Chain       Chain     `json:"chain" db:"chain"`
	Address     string    `json:"address" db:"address"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Validate validates the wallet
func (w *UserWallet) Validate() error {
	if w.UserID == uuid.Nil {
		return fmt.Errorf("user ID is required")
	}
	if w.TokenSymbol == "" {
		return fmt.Errorf("token symbol is required")
	}
	if w.Address == "" {
		return fmt.Errorf("address is required")
	}
	return w.Chain.Validate()
}

// WalletBalance is a user's spendable balance for one token
type WalletBalance struct {
	UserID      uuid.UUID       `json:"user_id" db:"user_id"`
	TokenSymbol string          `json:"token_symbol" db:"token_symbol"`
	Balance     decimal.Decimal `json:"balance" db:"balance"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// UserAddress pairs a user with one of their watched deposit addresses
type UserAddress struct {
	UserID  uuid.UUID `json:"user_id" db:"user_id"`
	Address string    `json:"address" db:"address"`
}
