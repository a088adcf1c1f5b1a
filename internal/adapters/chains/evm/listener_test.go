package evm

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umoja-exchange/settlement-service/internal/domain/entities"
	"github.com/umoja-exchange/settlement-service/internal/infrastructure/config"
	"github.com/umoja-exchange/settlement-service/pkg/logger"
)

type staticAddressSource struct {
	addresses []entities.UserAddress
}

func (s *staticAddressSource) GetAllAddressesForToken(ctx context.Context, tokenSymbol string) ([]entities.UserAddress, error) {
	return s.addresses, nil
}

func TestWatchedSet_NormalizesHexCasing(t *testing.T) {
	source := &staticAddressSource{addresses: []entities.UserAddress{
		{Address: "0x742d35cc6634c0532925a3b844bc454e4438f44e"},
		{Address: "0xDE0B295669A9FD93D5F28D9EC85E40F4CB697BAE"},
	}}
	l := NewListener(config.EVMConfig{NativeSymbol: "ETH"}, source, nil, logger.New("error", "test"))

	set, err := l.watchedSet(context.Background(), "ETH")
	require.NoError(t, err)
	require.Len(t, set, 2)

	// A checksummed variant of a lowercase entry must still match
	_, ok := set[common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc454e4438f44e")]
	assert.True(t, ok)
	_, ok = set[common.HexToAddress("0xde0b295669a9fd93d5f28d9ec85e40f4cb697bae")]
	assert.True(t, ok)
}

func TestSupportedTokens_UppercasesKeyWhenSymbolMissing(t *testing.T) {
	l := NewListener(config.EVMConfig{
		NativeSymbol: "ETH",
		Tokens: map[string]config.EVMTokenConfig{
			"usdc": {Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6},
		},
	}, nil, nil, logger.New("error", "test"))

	tokens := l.SupportedTokens()
	assert.Contains(t, tokens, "ETH")
	assert.Contains(t, tokens, "USDC")
}

func TestListener_ChainIdentity(t *testing.T) {
	l := NewListener(config.EVMConfig{NativeSymbol: "ETH"}, nil, nil, logger.New("error", "test"))

	assert.Equal(t, entities.ChainEVM, l.Chain())
	assert.False(t, l.IsRunning())
	assert.NoError(t, l.Stop())
}
