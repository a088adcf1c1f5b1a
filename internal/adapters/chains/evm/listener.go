package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/umoja-exchange/settlement-service/internal/adapters/chains"
	"github.com/umoja-exchange/settlement-service/internal/domain/entities"
	"github.com/umoja-exchange/settlement-service/internal/infrastructure/config"
	"github.com/umoja-exchange/settlement-service/pkg/logger"
	"github.com/umoja-exchange/settlement-service/pkg/metrics"
	"github.com/umoja-exchange/settlement-service/pkg/retry"
)

// maxCatchUpBlocks bounds how far behind the tip a reconnecting listener will
// backfill. Larger gaps skip to the tip; the stale-deposit sweep surfaces
// anything lost in between.
const maxCatchUpBlocks = 64

var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// Listener watches an EVM chain for native and ERC-20 deposits. It prefers a
// websocket new-head subscription and falls back to polling when no websocket
// endpoint is configured.
type Listener struct {
	cfg       config.EVMConfig
	addresses chains.AddressSource
	onDeposit chains.DepositCallback
	logger    *logger.Logger

	client  *ethclient.Client
	chainID *big.Int

	mu        sync.Mutex
	running   bool
	lastBlock uint64
	stopCh    chan struct{}
	done      chan struct{}
}

// NewListener creates an EVM listener
func NewListener(cfg config.EVMConfig, addresses chains.AddressSource, onDeposit chains.DepositCallback, logger *logger.Logger) *Listener {
	return &Listener{
		cfg:       cfg,
		addresses: addresses,
		onDeposit: onDeposit,
		logger:    logger,
	}
}

// Chain identifies the watched blockchain
func (l *Listener) Chain() entities.Chain {
	return entities.ChainEVM
}

// SupportedTokens lists the native symbol plus every configured ERC-20
func (l *Listener) SupportedTokens() []string {
	tokens := []string{l.cfg.NativeSymbol}
	for key, token := range l.cfg.Tokens {
		symbol := token.Symbol
		if symbol == "" {
			symbol = strings.ToUpper(key)
		}
		tokens = append(tokens, symbol)
	}
	return tokens
}

// IsRunning reports whether the listener is watching
func (l *Listener) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Start dials the RPC endpoint and begins watching for deposits
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return fmt.Errorf("evm listener already running")
	}

	client, err := ethclient.Dial(l.cfg.RPCURL)
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("failed to dial EVM rpc endpoint: %w", err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		l.mu.Unlock()
		return fmt.Errorf("failed to get EVM chain id: %w", err)
	}

	l.client = client
	l.chainID = chainID
	l.running = true
	l.lastBlock = 0
	l.stopCh = make(chan struct{})
	l.done = make(chan struct{})
	l.mu.Unlock()

	go l.run(ctx)

	l.logger.Info("EVM listener started",
		"chain_id", chainID.String(),
		"native_symbol", l.cfg.NativeSymbol,
		"tokens", len(l.cfg.Tokens))
	return nil
}

// Stop halts the listener and waits for the watch loop to exit
func (l *Listener) Stop() error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = false
	close(l.stopCh)
	done := l.done
	l.mu.Unlock()

	<-done
	l.client.Close()
	l.logger.Info("EVM listener stopped")
	return nil
}

// Confirmations returns tip - txBlock + 1 for a mined transaction, zero for
// a transaction still in the mempool
func (l *Listener) Confirmations(ctx context.Context, txHash string) (int64, error) {
	l.mu.Lock()
	client := l.client
	l.mu.Unlock()
	if client == nil {
		return 0, fmt.Errorf("evm listener not started")
	}

	receipt, err := client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		return 0, fmt.Errorf("failed to get receipt for %s: %w", txHash, err)
	}
	if receipt.BlockNumber == nil {
		return 0, nil
	}

	tip, err := client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get EVM tip height: %w", err)
	}

	confirmations := int64(tip) - receipt.BlockNumber.Int64() + 1
	if confirmations < 0 {
		confirmations = 0
	}
	return confirmations, nil
}

// run keeps the listener connected until Stop. The websocket path reconnects
// with geometric backoff whenever the subscription drops; a subscription
// that held for a while resets the backoff.
func (l *Listener) run(ctx context.Context) {
	defer close(l.done)
	defer metrics.ChainAdapterUp.WithLabelValues(string(entities.ChainEVM)).Set(0)

	if l.cfg.WSURL == "" {
		l.logger.Warn("No EVM websocket endpoint configured, falling back to polling")
		l.poll(ctx)
		return
	}

	backoff := retry.NewBackoff(retry.Policy{
		BaseDelay:  time.Duration(l.cfg.ReconnectDelay) * time.Second,
		MaxDelay:   2 * time.Minute,
		Multiplier: 2.0,
	})
	attempt := 0
	for {
		started := time.Now()
		err := l.subscribe(ctx)
		if time.Since(started) > time.Minute {
			attempt = 0
		}
		attempt++

		delay := backoff.Calculate(attempt)
		if err != nil {
			metrics.ChainPollErrors.WithLabelValues(string(entities.ChainEVM)).Inc()
			l.logger.Warn("EVM head subscription dropped, reconnecting",
				"error", err,
				"delay", delay)
		}

		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		case <-time.After(delay):
		}
	}
}

// subscribe streams new heads over websocket and processes each block range
// as it arrives
func (l *Listener) subscribe(ctx context.Context) error {
	wsClient, err := ethclient.Dial(l.cfg.WSURL)
	if err != nil {
		return fmt.Errorf("failed to dial EVM websocket endpoint: %w", err)
	}
	defer wsClient.Close()

	headers := make(chan *types.Header, 16)
	sub, err := wsClient.SubscribeNewHead(ctx, headers)
	if err != nil {
		return fmt.Errorf("failed to subscribe to new heads: %w", err)
	}
	defer sub.Unsubscribe()

	metrics.ChainAdapterUp.WithLabelValues(string(entities.ChainEVM)).Set(1)
	l.logger.Info("Subscribed to EVM new heads", "ws_url", l.cfg.WSURL)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.stopCh:
			return nil
		case err := <-sub.Err():
			return err
		case header := <-headers:
			l.processUpTo(ctx, header.Number.Uint64())
		}
	}
}

// poll scans for new blocks on a fixed interval when no websocket is available
func (l *Listener) poll(ctx context.Context) {
	metrics.ChainAdapterUp.WithLabelValues(string(entities.ChainEVM)).Set(1)

	interval := time.Duration(l.cfg.PollInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		case <-ticker.C:
			tip, err := l.client.BlockNumber(ctx)
			if err != nil {
				metrics.ChainPollErrors.WithLabelValues(string(entities.ChainEVM)).Inc()
				l.logger.Warn("Failed to get EVM tip height", "error", err)
				continue
			}
			l.processUpTo(ctx, tip)
		}
	}
}

// processUpTo scans every block from the cursor to tip. The first call seeds
// the cursor at the tip so historical blocks are never replayed; gaps wider
// than maxCatchUpBlocks skip ahead.
func (l *Listener) processUpTo(ctx context.Context, tip uint64) {
	l.mu.Lock()
	from := l.lastBlock + 1
	if l.lastBlock == 0 || tip >= from+maxCatchUpBlocks {
		if l.lastBlock != 0 {
			l.logger.Warn("EVM listener too far behind tip, skipping ahead",
				"cursor", l.lastBlock,
				"tip", tip)
		}
		from = tip
	}
	l.mu.Unlock()

	for number := from; number <= tip; number++ {
		l.processBlock(ctx, new(big.Int).SetUint64(number))
		l.mu.Lock()
		l.lastBlock = number
		l.mu.Unlock()
	}
}

func (l *Listener) processBlock(ctx context.Context, number *big.Int) {
	blockCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	l.scanNativeTransfers(blockCtx, number)
	l.scanTokenTransfers(blockCtx, number)
}

// scanNativeTransfers walks the block body for value transfers to watched
// addresses
func (l *Listener) scanNativeTransfers(ctx context.Context, number *big.Int) {
	watched, err := l.watchedSet(ctx, l.cfg.NativeSymbol)
	if err != nil {
		l.logger.Warn("Failed to load watched addresses", "token", l.cfg.NativeSymbol, "error", err)
		return
	}
	if len(watched) == 0 {
		return
	}

	block, err := l.client.BlockByNumber(ctx, number)
	if err != nil {
		metrics.ChainPollErrors.WithLabelValues(string(entities.ChainEVM)).Inc()
		l.logger.Warn("Failed to fetch EVM block", "block", number.String(), "error", err)
		return
	}

	signer := types.LatestSignerForChainID(l.chainID)
	for _, tx := range block.Transactions() {
		if tx.To() == nil || tx.Value().Sign() <= 0 {
			continue
		}
		if _, ok := watched[*tx.To()]; !ok {
			continue
		}

		// Reverted transactions keep their value, so check the receipt
		// before emitting.
		receipt, err := l.client.TransactionReceipt(ctx, tx.Hash())
		if err != nil {
			l.logger.Warn("Failed to fetch receipt for matched deposit",
				"tx_hash", tx.Hash().Hex(), "error", err)
			continue
		}
		if receipt.Status != types.ReceiptStatusSuccessful {
			continue
		}

		sender, err := types.Sender(signer, tx)
		if err != nil {
			l.logger.Warn("Failed to derive sender for matched deposit",
				"tx_hash", tx.Hash().Hex(), "error", err)
			continue
		}

		l.emit(ctx, &entities.DepositEvent{
			TxHash:        tx.Hash().Hex(),
			ToAddress:     tx.To().Hex(),
			FromAddress:   sender.Hex(),
			Amount:        decimal.NewFromBigInt(tx.Value(), -int32(l.cfg.NativeDecimals)),
			TokenSymbol:   l.cfg.NativeSymbol,
			Chain:         entities.ChainEVM,
			BlockNumber:   number.Int64(),
			Confirmations: 1,
			Timestamp:     time.Unix(int64(block.Time()), 0),
		})
	}
}

// scanTokenTransfers queries the log index for Transfer events on every
// configured ERC-20 contract
func (l *Listener) scanTokenTransfers(ctx context.Context, number *big.Int) {
	for key, token := range l.cfg.Tokens {
		symbol := token.Symbol
		if symbol == "" {
			symbol = strings.ToUpper(key)
		}

		watched, err := l.watchedSet(ctx, symbol)
		if err != nil {
			l.logger.Warn("Failed to load watched addresses", "token", symbol, "error", err)
			continue
		}
		if len(watched) == 0 {
			continue
		}

		query := ethereum.FilterQuery{
			FromBlock: number,
			ToBlock:   number,
			Addresses: []common.Address{common.HexToAddress(token.Address)},
			Topics:    [][]common.Hash{{transferTopic}},
		}
		logs, err := l.client.FilterLogs(ctx, query)
		if err != nil {
			metrics.ChainPollErrors.WithLabelValues(string(entities.ChainEVM)).Inc()
			l.logger.Warn("Failed to filter transfer logs",
				"token", symbol, "block", number.String(), "error", err)
			continue
		}

		for _, lg := range logs {
			// Transfer(address indexed from, address indexed to, uint256 value)
			if len(lg.Topics) < 3 || lg.Removed {
				continue
			}
			to := common.BytesToAddress(lg.Topics[2].Bytes())
			if _, ok := watched[to]; !ok {
				continue
			}

			from := common.BytesToAddress(lg.Topics[1].Bytes())
			value := new(big.Int).SetBytes(lg.Data)
			if value.Sign() <= 0 {
				continue
			}

			l.emit(ctx, &entities.DepositEvent{
				TxHash:        lg.TxHash.Hex(),
				ToAddress:     to.Hex(),
				FromAddress:   from.Hex(),
				Amount:        decimal.NewFromBigInt(value, -int32(token.Decimals)),
				TokenSymbol:   symbol,
				Chain:         entities.ChainEVM,
				BlockNumber:   int64(lg.BlockNumber),
				Confirmations: 1,
				Timestamp:     time.Now(),
			})
		}
	}
}

// watchedSet loads the deposit addresses for a token as a lookup set.
// common.Address normalizes hex casing, making the match case-insensitive.
func (l *Listener) watchedSet(ctx context.Context, tokenSymbol string) (map[common.Address]struct{}, error) {
	addresses, err := l.addresses.GetAllAddressesForToken(ctx, tokenSymbol)
	if err != nil {
		return nil, err
	}
	set := make(map[common.Address]struct{}, len(addresses))
	for _, a := range addresses {
		set[common.HexToAddress(a.Address)] = struct{}{}
	}
	return set, nil
}

func (l *Listener) emit(ctx context.Context, event *entities.DepositEvent) {
	l.logger.Debug("EVM deposit detected",
		"tx_hash", event.TxHash,
		"token", event.TokenSymbol,
		"amount", event.Amount.String())
	l.onDeposit(ctx, event)
}
