package solana

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/umoja-exchange/settlement-service/internal/domain/entities"
	"github.com/umoja-exchange/settlement-service/internal/infrastructure/config"
	"github.com/umoja-exchange/settlement-service/pkg/logger"
)

func TestIsValidAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		valid   bool
	}{
		{"system program", "11111111111111111111111111111111", true},
		{"wrapped sol mint", "So11111111111111111111111111111111111111112", true},
		{"evm style address", "0x742d35Cc6634C0532925a3b844Bc454e4438f44e", false},
		{"too short", "abc", false},
		{"empty", "", false},
		{"invalid characters", "O0l1!", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, isValidAddress(tt.address))
		})
	}
}

func TestListener_ChainIdentity(t *testing.T) {
	l := NewListener(config.SolanaConfig{RPCURL: "http://localhost:8899"}, nil, nil, logger.New("error", "test"))

	assert.Equal(t, entities.ChainSolana, l.Chain())
	assert.Equal(t, []string{"SOL"}, l.SupportedTokens())
	assert.False(t, l.IsRunning())
}

func TestListener_StopBeforeStart(t *testing.T) {
	l := NewListener(config.SolanaConfig{}, nil, nil, logger.New("error", "test"))
	assert.NoError(t, l.Stop())
}
