package treasury

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umoja-exchange/settlement-service/internal/domain/entities"
	"github.com/umoja-exchange/settlement-service/internal/infrastructure/config"
)

func newTestService(cfg config.TreasuryConfig) *Service {
	return NewService(nil, nil, cfg, testLogger())
}

func onRampRequest() *entities.TreasuryTransactionRequest {
	return &entities.TreasuryTransactionRequest{
		UserTransactionID: "tx-onramp-1",
		TransactionType:   entities.TreasuryTxOnRamp,
		Movements: []entities.TreasuryMovement{
			{
				AccountType: entities.TreasuryAccountFiat,
				AssetSymbol: "KES",
				Amount:      decimal.NewFromInt(1000),
				Description: "customer on-ramp",
			},
			{
				AccountType: entities.TreasuryAccountCrypto,
				AssetSymbol: "USDT",
				Amount:      decimal.NewFromInt(-50),
				Description: "crypto issued to customer",
			},
		},
	}
}

func TestProcessTransaction_RejectsInvalidRequests(t *testing.T) {
	s := newTestService(config.TreasuryConfig{MaxRetries: 3, BaseDelaySeconds: 5})
	defer s.Stop()

	tests := []struct {
		name    string
		mutate  func(*entities.TreasuryTransactionRequest)
		wantErr string
	}{
		{
			name:    "missing user transaction id",
			mutate:  func(r *entities.TreasuryTransactionRequest) { r.UserTransactionID = "" },
			wantErr: "user transaction ID is required",
		},
		{
			name:    "unknown transaction type",
			mutate:  func(r *entities.TreasuryTransactionRequest) { r.TransactionType = "TRANSFER" },
			wantErr: "invalid treasury transaction type",
		},
		{
			name:    "no movements",
			mutate:  func(r *entities.TreasuryTransactionRequest) { r.Movements = nil },
			wantErr: "at least one movement is required",
		},
		{
			name: "zero amount movement",
			mutate: func(r *entities.TreasuryTransactionRequest) {
				r.Movements[1].Amount = decimal.Zero
			},
			wantErr: "movement amount cannot be zero",
		},
		{
			name: "movement without asset",
			mutate: func(r *entities.TreasuryTransactionRequest) {
				r.Movements[0].AssetSymbol = ""
			},
			wantErr: "asset symbol is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := onRampRequest()
			tt.mutate(req)

			err := s.ProcessTransaction(context.Background(), req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestProcessTransaction_RejectsAfterStop(t *testing.T) {
	s := newTestService(config.TreasuryConfig{MaxRetries: 3, BaseDelaySeconds: 5})
	s.Stop()

	err := s.ProcessTransaction(context.Background(), onRampRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shutting down")
}

func TestCheckBalancePolicy(t *testing.T) {
	tests := []struct {
		name         string
		accountType  entities.TreasuryAccountType
		newBalance   decimal.Decimal
		strictCrypto bool
		wantErr      bool
	}{
		{
			name:        "fiat stays positive",
			accountType: entities.TreasuryAccountFiat,
			newBalance:  decimal.NewFromInt(1000),
		},
		{
			name:        "fiat reaches zero",
			accountType: entities.TreasuryAccountFiat,
			newBalance:  decimal.Zero,
		},
		{
			name:        "fiat would go negative",
			accountType: entities.TreasuryAccountFiat,
			newBalance:  decimal.NewFromInt(-1),
			wantErr:     true,
		},
		{
			name:        "crypto may run negative by default",
			accountType: entities.TreasuryAccountCrypto,
			newBalance:  decimal.NewFromInt(-50),
		},
		{
			name:         "crypto negative rejected when strict",
			accountType:  entities.TreasuryAccountCrypto,
			newBalance:   decimal.NewFromInt(-50),
			strictCrypto: true,
			wantErr:      true,
		},
		{
			name:        "unknown account type negative",
			accountType: "MARGIN",
			newBalance:  decimal.NewFromInt(-1),
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(config.TreasuryConfig{
				MaxRetries:               3,
				BaseDelaySeconds:         5,
				EnforceCryptoNonNegative: tt.strictCrypto,
			})
			defer s.Stop()

			movement := &entities.TreasuryMovement{
				AccountType: tt.accountType,
				AssetSymbol: "USDT",
				Amount:      decimal.NewFromInt(-50),
			}

			err := s.checkBalancePolicy(movement, tt.newBalance)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
