package entities

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreasuryTransactionRequest_Validate(t *testing.T) {
	valid := func() *TreasuryTransactionRequest {
		return &TreasuryTransactionRequest{
			UserTransactionID: "tx-1",
			TransactionType:   TreasuryTxOnRamp,
			Movements: []TreasuryMovement{
				{AccountType: TreasuryAccountFiat, AssetSymbol: "KES", Amount: decimal.NewFromInt(1000)},
				{AccountType: TreasuryAccountCrypto, AssetSymbol: "USDT", Amount: decimal.NewFromInt(-50)},
			},
		}
	}

	assert.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*TreasuryTransactionRequest)
	}{
		{"empty id", func(r *TreasuryTransactionRequest) { r.UserTransactionID = "" }},
		{"bad type", func(r *TreasuryTransactionRequest) { r.TransactionType = "PAYOUT" }},
		{"no movements", func(r *TreasuryTransactionRequest) { r.Movements = nil }},
		{"bad account type", func(r *TreasuryTransactionRequest) { r.Movements[0].AccountType = "VAULT" }},
		{"empty asset", func(r *TreasuryTransactionRequest) { r.Movements[1].AssetSymbol = "" }},
		{"zero amount", func(r *TreasuryTransactionRequest) { r.Movements[0].Amount = decimal.Zero }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(req)
			assert.Error(t, req.Validate())
		})
	}
}

func TestTreasuryTransactionRequest_Reversed(t *testing.T) {
	original := &TreasuryTransactionRequest{
		UserTransactionID: "tx-42",
		TransactionType:   TreasuryTxOnRamp,
		Movements: []TreasuryMovement{
			{AccountType: TreasuryAccountFiat, AssetSymbol: "KES", Amount: decimal.NewFromInt(1000), Description: "on-ramp"},
			{AccountType: TreasuryAccountCrypto, AssetSymbol: "USDT", Amount: decimal.NewFromFloat(-50.5), Description: "issuance"},
		},
	}

	reversed := original.Reversed()

	assert.Equal(t, "tx-42_reversal", reversed.UserTransactionID)
	assert.Equal(t, TreasuryTxReversal, reversed.TransactionType)
	require.Len(t, reversed.Movements, 2)

	assert.True(t, reversed.Movements[0].Amount.Equal(decimal.NewFromInt(-1000)))
	assert.True(t, reversed.Movements[1].Amount.Equal(decimal.NewFromFloat(50.5)))
	assert.Equal(t, TreasuryAccountFiat, reversed.Movements[0].AccountType)
	assert.Equal(t, "KES", reversed.Movements[0].AssetSymbol)
	assert.Equal(t, "reversal: on-ramp", reversed.Movements[0].Description)
	assert.Equal(t, "reversal: issuance", reversed.Movements[1].Description)

	// The reversal is itself a valid movement set
	assert.NoError(t, reversed.Validate())

	// The original is untouched
	assert.True(t, original.Movements[0].Amount.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, "tx-42", original.UserTransactionID)
}

func TestTreasuryAccountType_Validate(t *testing.T) {
	assert.NoError(t, TreasuryAccountCrypto.Validate())
	assert.NoError(t, TreasuryAccountFiat.Validate())
	assert.Error(t, TreasuryAccountType("MARGIN").Validate())
	assert.Error(t, TreasuryAccountType("").Validate())
}

func TestTreasuryTransactionType_Validate(t *testing.T) {
	for _, valid := range []TreasuryTransactionType{
		TreasuryTxOnRamp, TreasuryTxOffRamp, TreasuryTxReversal, TreasuryTxAdjustment,
	} {
		assert.NoError(t, valid.Validate())
	}
	assert.Error(t, TreasuryTransactionType("SWAP").Validate())
}
