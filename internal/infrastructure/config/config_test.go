package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(12), cfg.Chains.EVM.RequiredConfirmations)
	assert.Equal(t, int64(32), cfg.Chains.Solana.RequiredConfirmations)
	assert.Equal(t, int64(6), cfg.Chains.Bitcoin.RequiredConfirmations)
	assert.Equal(t, int64(15), cfg.Chains.Cardano.RequiredConfirmations)
	assert.Equal(t, "mainnet", cfg.Chains.Bitcoin.Network)

	assert.Equal(t, 3, cfg.Treasury.MaxRetries)
	assert.Equal(t, 5, cfg.Treasury.BaseDelaySeconds)
	assert.False(t, cfg.Treasury.EnforceCryptoNonNegative)

	assert.Equal(t, 30, cfg.Tracker.IntervalSeconds)
	assert.Equal(t, "0 * * * *", cfg.Sweep.Schedule)
	assert.Equal(t, "settlement.events", cfg.AMQP.Exchange)
}

func TestRequiredConfirmations_PerChain(t *testing.T) {
	chains := &ChainsConfig{
		EVM:     EVMConfig{RequiredConfirmations: 12},
		Solana:  SolanaConfig{RequiredConfirmations: 32},
		Bitcoin: BitcoinConfig{RequiredConfirmations: 6},
		Cardano: CardanoConfig{RequiredConfirmations: 15},
	}

	assert.Equal(t, int64(12), chains.RequiredConfirmations("USDC", "evm"))
	assert.Equal(t, int64(32), chains.RequiredConfirmations("SOL", "solana"))
	assert.Equal(t, int64(6), chains.RequiredConfirmations("BTC", "bitcoin"))
	assert.Equal(t, int64(15), chains.RequiredConfirmations("ADA", "cardano"))
	assert.Equal(t, int64(0), chains.RequiredConfirmations("XRP", "ripple"))
}

func TestRequiredConfirmations_OverrideWins(t *testing.T) {
	chains := &ChainsConfig{
		EVM:                   EVMConfig{RequiredConfirmations: 12},
		ConfirmationOverrides: map[string]int64{"USDT": 20},
	}

	assert.Equal(t, int64(20), chains.RequiredConfirmations("USDT", "evm"))
	// Override lookup is case-insensitive on the token symbol
	assert.Equal(t, int64(20), chains.RequiredConfirmations("usdt", "evm"))
	assert.Equal(t, int64(12), chains.RequiredConfirmations("USDC", "evm"))
}
