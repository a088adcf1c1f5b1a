package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DepositEvent is the normalized transfer notification emitted by a
// chain adapter when it detects an inbound transfer to a watched address.
type DepositEvent struct {
	TxHash        string          `json:"tx_hash"`
	ToAddress     string          `json:"to_address"`
	FromAddress   string          `json:"from_address"`
	Amount        decimal.Decimal `json:"amount"`
	TokenSymbol   string          `json:"token_symbol"`
	Chain         Chain           `json:"chain"`
	BlockNumber   int64           `json:"block_number"`
	Confirmations int64           `json:"confirmations"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Validate checks the event carries the fields without which it cannot
// be attributed to a user or deduplicated.
func (e *DepositEvent) Validate() error {
	if e.TxHash == "" {
		return fmt.Errorf("tx hash is required")
	}
	if e.ToAddress == "" {
		return fmt.Errorf("to address is required")
	}
	if e.FromAddress == "" {
		return fmt.Errorf("from address is required")
	}
	if e.TokenSymbol == "" {
		return fmt.Errorf("token symbol is required")
	}
	if !e.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}
	return nil
}

// Deposit is the persisted record of an on-chain deposit. The tx hash is
// the natural key: one record per transaction, across all chains.
// Records are never deleted; they form the deposit audit trail.
type Deposit struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	UserID        uuid.UUID       `json:"user_id" db:"user_id"`
	UserAddress   string          `json:"user_address" db:"user_address"`
	FromAddress   string          `json:"from_address" db:"from_address"`
	TokenSymbol   string          `json:"token_symbol" db:"token_symbol"`
	Chain         Chain           `json:"chain" db:"chain"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	TxHash        string          `json:"tx_hash" db:"tx_hash"`
	BlockNumber   int64           `json:"block_number" db:"block_number"`
	Confirmations int64           `json:"confirmations" db:"confirmations"`
	Status        DepositStatus   `json:"status" db:"status"`
	DetectedAt    time.Time       `json:"detected_at" db:"detected_at"`
	ConfirmedAt   *time.Time      `json:"confirmed_at,omitempty" db:"confirmed_at"`
}

// Validate validates the deposit record
func (d *Deposit) Validate() error {
	if d.UserID == uuid.Nil {
		return fmt.Errorf("user ID is required")
	}
	if d.TxHash == "" {
		return fmt.Errorf("tx hash is required")
	}
	if d.UserAddress == "" {
		return fmt.Errorf("user address is required")
	}
	if d.TokenSymbol == "" {
		return fmt.Errorf("token symbol is required")
	}
	if !d.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}
	if !d.Status.IsValid() {
		return fmt.Errorf("invalid deposit status: %s", d.Status)
	}
	return nil
}
