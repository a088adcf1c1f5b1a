package entities

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDepositEvent_Validate(t *testing.T) {
	valid := func() *DepositEvent {
		return &DepositEvent{
			TxHash:      "0xabc",
			ToAddress:   "0xdead",
			FromAddress: "0xbeef",
			Amount:      decimal.NewFromInt(100),
			TokenSymbol: "USDC",
			Chain:       ChainEVM,
		}
	}

	assert.NoError(t, valid().Validate())

	tests := []struct {
		name    string
		mutate  func(*DepositEvent)
		wantErr string
	}{
		{"missing tx hash", func(e *DepositEvent) { e.TxHash = "" }, "tx hash is required"},
		{"missing to address", func(e *DepositEvent) { e.ToAddress = "" }, "to address is required"},
		{"missing from address", func(e *DepositEvent) { e.FromAddress = "" }, "from address is required"},
		{"missing token symbol", func(e *DepositEvent) { e.TokenSymbol = "" }, "token symbol is required"},
		{"zero amount", func(e *DepositEvent) { e.Amount = decimal.Zero }, "amount must be positive"},
		{"negative amount", func(e *DepositEvent) { e.Amount = decimal.NewFromInt(-5) }, "amount must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := valid()
			tt.mutate(event)
			err := event.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDeposit_Validate(t *testing.T) {
	deposit := &Deposit{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		UserAddress: "addr1",
		TokenSymbol: "SOL",
		Chain:       ChainSolana,
		Amount:      decimal.NewFromFloat(1.5),
		TxHash:      "sig1",
		Status:      DepositStatusPending,
	}
	assert.NoError(t, deposit.Validate())

	deposit.Status = "settled"
	assert.Error(t, deposit.Validate())

	deposit.Status = DepositStatusPending
	deposit.UserID = uuid.Nil
	assert.Error(t, deposit.Validate())
}

func TestDepositStatus_Transitions(t *testing.T) {
	assert.True(t, DepositStatusPending.CanTransitionTo(DepositStatusConfirmed))
	assert.True(t, DepositStatusPending.CanTransitionTo(DepositStatusFailed))
	assert.False(t, DepositStatusConfirmed.CanTransitionTo(DepositStatusPending))
	assert.False(t, DepositStatusConfirmed.CanTransitionTo(DepositStatusFailed))
	assert.False(t, DepositStatusFailed.CanTransitionTo(DepositStatusConfirmed))

	assert.NoError(t, DepositStatusPending.ValidateTransition(DepositStatusConfirmed))
	assert.Error(t, DepositStatusConfirmed.ValidateTransition(DepositStatusPending))
	assert.Error(t, DepositStatusPending.ValidateTransition("settled"))
}

func TestDepositStatus_Terminal(t *testing.T) {
	assert.False(t, DepositStatusPending.IsTerminal())
	assert.True(t, DepositStatusPending.IsPending())
	assert.True(t, DepositStatusConfirmed.IsTerminal())
	assert.True(t, DepositStatusFailed.IsTerminal())
	assert.False(t, DepositStatusFailed.IsPending())
}

func TestChain_IsValid(t *testing.T) {
	for _, chain := range AllChains {
		assert.True(t, chain.IsValid())
	}
	assert.False(t, Chain("tron").IsValid())
	assert.False(t, Chain("").IsValid())
}
