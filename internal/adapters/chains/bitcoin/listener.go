package bitcoin

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/umoja-exchange/settlement-service/internal/adapters/chains"
	"github.com/umoja-exchange/settlement-service/internal/domain/entities"
	"github.com/umoja-exchange/settlement-service/internal/infrastructure/config"
	"github.com/umoja-exchange/settlement-service/pkg/logger"
	"github.com/umoja-exchange/settlement-service/pkg/metrics"
)

const (
	tokenSymbol     = "BTC"
	satoshiDecimals = 8
)

// Listener watches Bitcoin for deposits through an esplora-compatible HTTP
// API (blockstream.info or a self-hosted electrs). Deposits are emitted once
// the funding transaction is in a block; mempool transactions are ignored
// until then.
type Listener struct {
	cfg       config.BitcoinConfig
	addresses chains.AddressSource
	onDeposit chains.DepositCallback
	logger    *logger.Logger

	http   *resty.Client
	params *chaincfg.Params

	mu          sync.Mutex
	running     bool
	lastHeights map[string]int64 // address -> highest processed block height
	stopCh      chan struct{}
	done        chan struct{}
}

type addressTx struct {
	TxID   string `json:"txid"`
	Vin    []vin  `json:"vin"`
	Vout   []vout `json:"vout"`
	Status struct {
		Confirmed   bool  `json:"confirmed"`
		BlockHeight int64 `json:"block_height"`
		BlockTime   int64 `json:"block_time"`
	} `json:"status"`
}

type vin struct {
	Prevout *vout `json:"prevout"`
}

type vout struct {
	ScriptPubKeyAddress string `json:"scriptpubkey_address"`
	Value               int64  `json:"value"` // satoshis
}

type txStatus struct {
	Confirmed   bool  `json:"confirmed"`
	BlockHeight int64 `json:"block_height"`
}

// NewListener creates a Bitcoin listener
func NewListener(cfg config.BitcoinConfig, addresses chains.AddressSource, onDeposit chains.DepositCallback, logger *logger.Logger) *Listener {
	params := &chaincfg.MainNetParams
	if cfg.Network == "testnet" {
		params = &chaincfg.TestNet3Params
	}
	return &Listener{
		cfg:       cfg,
		addresses: addresses,
		onDeposit: onDeposit,
		logger:    logger,
		http:      resty.New().SetTimeout(30 * time.Second).SetBaseURL(strings.TrimRight(cfg.APIURL, "/")),
		params:    params,
	}
}

// Chain identifies the watched blockchain
func (l *Listener) Chain() entities.Chain {
	return entities.ChainBitcoin
}

// SupportedTokens lists the tokens this listener can detect
func (l *Listener) SupportedTokens() []string {
	return []string{tokenSymbol}
}

// IsRunning reports whether the listener is watching
func (l *Listener) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Start begins polling for deposits
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return fmt.Errorf("bitcoin listener already running")
	}
	l.running = true
	l.lastHeights = make(map[string]int64)
	l.stopCh = make(chan struct{})
	l.done = make(chan struct{})
	l.mu.Unlock()

	if _, err := l.tipHeight(ctx); err != nil {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
		return fmt.Errorf("failed to reach bitcoin api: %w", err)
	}

	go l.run(ctx)

	l.logger.Info("Bitcoin listener started",
		"api_url", l.cfg.APIURL,
		"network", l.cfg.Network)
	return nil
}

// Stop halts the listener and waits for the poll loop to exit
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
	l.logger.Info("Bitcoin listener stopped")
	return nil
}

// Confirmations returns tip - txHeight + 1 for a mined transaction, zero
// while it sits in the mempool
func (l *Listener) Confirmations(ctx context.Context, txHash string) (int64, error) {
	var status txStatus
	resp, err := l.http.R().
		SetContext(ctx).
		SetResult(&status).
		Get("/tx/" + txHash + "/status")
	if err != nil {
		return 0, fmt.Errorf("failed to get tx status for %s: %w", txHash, err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("tx status for %s returned %d", txHash, resp.StatusCode())
	}
	if !status.Confirmed {
		return 0, nil
	}

	tip, err := l.tipHeight(ctx)
	if err != nil {
		return 0, err
	}

	confirmations := tip - status.BlockHeight + 1
	if confirmations < 0 {
		confirmations = 0
	}
	return confirmations, nil
}

func (l *Listener) run(ctx context.Context) {
	defer close(l.done)
	defer metrics.ChainAdapterUp.WithLabelValues(string(entities.ChainBitcoin)).Set(0)
	metrics.ChainAdapterUp.WithLabelValues(string(entities.ChainBitcoin)).Set(1)

	interval := time.Duration(l.cfg.PollInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.pollOnce(ctx)
		}
	}
}

func (l *Listener) pollOnce(ctx context.Context) {
	watched, err := l.addresses.GetAllAddressesForToken(ctx, tokenSymbol)
	if err != nil {
		metrics.ChainPollErrors.WithLabelValues(string(entities.ChainBitcoin)).Inc()
		l.logger.Warn("Failed to load watched addresses", "token", tokenSymbol, "error", err)
		return
	}
	if len(watched) == 0 {
		return
	}

	tip, err := l.tipHeight(ctx)
	if err != nil {
		metrics.ChainPollErrors.WithLabelValues(string(entities.ChainBitcoin)).Inc()
		l.logger.Warn("Failed to get bitcoin tip height", "error", err)
		return
	}

	for _, account := range watched {
		if _, err := btcutil.DecodeAddress(account.Address, l.params); err != nil {
			l.logger.Warn("Skipping invalid bitcoin address",
				"address", account.Address,
				"network", l.cfg.Network)
			continue
		}
		l.pollAddress(ctx, account.Address, tip)
	}
}

func (l *Listener) pollAddress(ctx context.Context, address string, tip int64) {
	l.mu.Lock()
	cursor, seen := l.lastHeights[address]
	l.mu.Unlock()

	var txs []addressTx
	resp, err := l.http.R().
		SetContext(ctx).
		SetResult(&txs).
		Get("/address/" + address + "/txs")
	if err != nil {
		metrics.ChainPollErrors.WithLabelValues(string(entities.ChainBitcoin)).Inc()
		l.logger.Warn("Failed to list address transactions", "address", address, "error", err)
		return
	}
	if resp.IsError() {
		metrics.ChainPollErrors.WithLabelValues(string(entities.ChainBitcoin)).Inc()
		l.logger.Warn("Address transactions returned error status",
			"address", address, "status", resp.StatusCode())
		return
	}

	// First sight of an address seeds the cursor at the tip so balance
	// history is not replayed as fresh deposits.
	if !seen {
		l.setCursor(address, tip)
		return
	}

	highest := cursor
	for _, tx := range txs {
		if !tx.Status.Confirmed || tx.Status.BlockHeight <= cursor {
			continue
		}

		received := int64(0)
		for _, out := range tx.Vout {
			if out.ScriptPubKeyAddress == address {
				received += out.Value
			}
		}
		if received <= 0 {
			// The address appears only on the spending side.
			if tx.Status.BlockHeight > highest {
				highest = tx.Status.BlockHeight
			}
			continue
		}

		fromAddress := "coinbase"
		for _, in := range tx.Vin {
			if in.Prevout != nil && in.Prevout.ScriptPubKeyAddress != "" {
				fromAddress = in.Prevout.ScriptPubKeyAddress
				break
			}
		}

		confirmations := tip - tx.Status.BlockHeight + 1
		if confirmations < 1 {
			confirmations = 1
		}

		l.onDeposit(ctx, &entities.DepositEvent{
			TxHash:        tx.TxID,
			ToAddress:     address,
			FromAddress:   fromAddress,
			Amount:        decimal.New(received, -satoshiDecimals),
			TokenSymbol:   tokenSymbol,
			Chain:         entities.ChainBitcoin,
			BlockNumber:   tx.Status.BlockHeight,
			Confirmations: confirmations,
			Timestamp:     time.Unix(tx.Status.BlockTime, 0),
		})

		if tx.Status.BlockHeight > highest {
			highest = tx.Status.BlockHeight
		}
	}

	if highest > cursor {
		l.setCursor(address, highest)
	}
}

func (l *Listener) setCursor(address string, height int64) {
	l.mu.Lock()
	l.lastHeights[address] = height
	l.mu.Unlock()
}

// tipHeight fetches the current chain tip. Esplora returns it as plain text.
func (l *Listener) tipHeight(ctx context.Context) (int64, error) {
	resp, err := l.http.R().SetContext(ctx).Get("/blocks/tip/height")
	if err != nil {
		return 0, fmt.Errorf("failed to get tip height: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("tip height returned status %d", resp.StatusCode())
	}

	height, err := strconv.ParseInt(strings.TrimSpace(string(resp.Body())), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse tip height: %w", err)
	}
	return height, nil
}
