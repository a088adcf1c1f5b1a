package monitor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umoja-exchange/settlement-service/internal/domain/entities"
	domainerrors "github.com/umoja-exchange/settlement-service/internal/domain/errors"
	"github.com/umoja-exchange/settlement-service/internal/infrastructure/config"
	"github.com/umoja-exchange/settlement-service/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New("error", "test")
}

func TestService_NoChainsConfigured(t *testing.T) {
	svc := NewService(config.ChainsConfig{}, nil, nil, testLogger())

	err := svc.Start(context.Background())
	require.Error(t, err)

	assert.Empty(t, svc.Status())
	assert.Empty(t, svc.SupportedTokens())
}

func TestService_UnconfiguredChainIsNotFound(t *testing.T) {
	svc := NewService(config.ChainsConfig{}, nil, nil, testLogger())

	err := svc.StartChain(context.Background(), entities.ChainEVM)
	assert.True(t, domainerrors.IsNotFound(err))

	err = svc.StopChain(entities.ChainBitcoin)
	assert.True(t, domainerrors.IsNotFound(err))

	_, err = svc.Confirmations(context.Background(), "BTC", "txhash")
	assert.True(t, domainerrors.IsNotFound(err))
}

func TestService_RegistersConfiguredChains(t *testing.T) {
	cfg := config.ChainsConfig{
		Solana: config.SolanaConfig{
			RPCURL:                "http://localhost:8899",
			RequiredConfirmations: 32,
			PollInterval:          30,
		},
	}
	svc := NewService(cfg, nil, nil, testLogger())

	status := svc.Status()
	require.Contains(t, status, "solana")
	assert.False(t, status["solana"])
	assert.Equal(t, []string{"SOL"}, svc.SupportedTokens())

	// Stopping a configured but idle listener is a no-op
	assert.NoError(t, svc.StopChain(entities.ChainSolana))
}
