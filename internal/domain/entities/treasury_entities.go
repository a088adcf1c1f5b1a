package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TreasuryAccountType distinguishes pooled crypto custody from fiat float
type TreasuryAccountType string

const (
	TreasuryAccountCrypto TreasuryAccountType = "CRYPTO"
	TreasuryAccountFiat   TreasuryAccountType = "FIAT"
)

// Validate checks if the account type is valid
func (t TreasuryAccountType) Validate() error {
	switch t {
	case TreasuryAccountCrypto, TreasuryAccountFiat:
		return nil
	default:
		return fmt.Errorf("invalid treasury account type: %s", t)
	}
}

// TreasuryTransactionType classifies the business transaction behind a
// movement set.
type TreasuryTransactionType string

const (
	TreasuryTxOnRamp     TreasuryTransactionType = "ON_RAMP"
	TreasuryTxOffRamp    TreasuryTransactionType = "OFF_RAMP"
	TreasuryTxReversal   TreasuryTransactionType = "REVERSAL"
	TreasuryTxAdjustment TreasuryTransactionType = "ADJUSTMENT"
)

// Validate checks if the transaction type is valid
func (t TreasuryTransactionType) Validate() error {
	switch t {
	case TreasuryTxOnRamp, TreasuryTxOffRamp, TreasuryTxReversal, TreasuryTxAdjustment:
		return nil
	default:
		return fmt.Errorf("invalid treasury transaction type: %s", t)
	}
}

// TreasuryAccount is a pooled platform balance for one
// (account type, asset) pair. Balances are only ever mutated inside the
// atomic application of a movement set.
type TreasuryAccount struct {
	ID              uuid.UUID           `json:"id" db:"id"`
	AccountType     TreasuryAccountType `json:"account_type" db:"account_type"`
	AssetSymbol     string              `json:"asset_symbol" db:"asset_symbol"`
	Balance         decimal.Decimal     `json:"balance" db:"balance"`
	ReservedBalance decimal.Decimal     `json:"reserved_balance" db:"reserved_balance"`
	CreatedAt       time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at" db:"updated_at"`
}

// TreasuryMovement is one signed balance change within a movement set.
// Positive amounts credit the account, negative amounts debit it.
type TreasuryMovement struct {
	AccountType TreasuryAccountType `json:"account_type"`
	AssetSymbol string              `json:"asset_symbol"`
	Amount      decimal.Decimal     `json:"amount"`
	Description string              `json:"description"`
}

// Validate validates the movement
func (m *TreasuryMovement) Validate() error {
	if err := m.AccountType.Validate(); err != nil {
		return err
	}
	if m.AssetSymbol == "" {
		return fmt.Errorf("asset symbol is required")
	}
	if m.Amount.IsZero() {
		return fmt.Errorf("movement amount cannot be zero")
	}
	return nil
}

// TreasuryTransaction is one append-only journal row: a single applied
// movement with its before/after balance snapshot. Rows are never
// mutated after insert.
type TreasuryTransaction struct {
	ID                uuid.UUID               `json:"id" db:"id"`
	UserTransactionID string                  `json:"user_transaction_id" db:"user_transaction_id"`
	TreasuryAccountID uuid.UUID               `json:"treasury_account_id" db:"treasury_account_id"`
	TransactionType   TreasuryTransactionType `json:"transaction_type" db:"transaction_type"`
	Amount            decimal.Decimal         `json:"amount" db:"amount"`
	BalanceBefore     decimal.Decimal         `json:"balance_before" db:"balance_before"`
	BalanceAfter      decimal.Decimal         `json:"balance_after" db:"balance_after"`
	Description       string                  `json:"description" db:"description"`
	CreatedAt         time.Time               `json:"created_at" db:"created_at"`
}

// TreasuryBalance is the read-side view of one treasury account
type TreasuryBalance struct {
	AccountType     TreasuryAccountType `json:"account_type" db:"account_type"`
	AssetSymbol     string              `json:"asset_symbol" db:"asset_symbol"`
	Balance         decimal.Decimal     `json:"balance" db:"balance"`
	ReservedBalance decimal.Decimal     `json:"reserved_balance" db:"reserved_balance"`
}

// TreasuryTransactionRequest is one movement set to be applied
// atomically. The user transaction id correlates the set to the
// originating business transaction and keys retry bookkeeping.
type TreasuryTransactionRequest struct {
	UserTransactionID string                  `json:"user_transaction_id"`
	TransactionType   TreasuryTransactionType `json:"transaction_type"`
	Movements         []TreasuryMovement      `json:"movements"`
}

// Validate validates the request
func (r *TreasuryTransactionRequest) Validate() error {
	if r.UserTransactionID == "" {
		return fmt.Errorf("user transaction ID is required")
	}
	if err := r.TransactionType.Validate(); err != nil {
		return err
	}
	if len(r.Movements) == 0 {
		return fmt.Errorf("at least one movement is required")
	}
	for i := range r.Movements {
		if err := r.Movements[i].Validate(); err != nil {
			return fmt.Errorf("movement %d: %w", i, err)
		}
	}
	return nil
}

// Reversed returns a request posting the exact negation of every
// movement, keyed by the original id with a reversal suffix.
func (r *TreasuryTransactionRequest) Reversed() *TreasuryTransactionRequest {
	reversed := &TreasuryTransactionRequest{
		UserTransactionID: r.UserTransactionID + "_reversal",
		TransactionType:   TreasuryTxReversal,
		Movements:         make([]TreasuryMovement, len(r.Movements)),
	}
	for i, m := range r.Movements {
		reversed.Movements[i] = TreasuryMovement{
			AccountType: m.AccountType,
			AssetSymbol: m.AssetSymbol,
			Amount:      m.Amount.Neg(),
			Description: "reversal: " + m.Description,
		}
	}
	return reversed
}
