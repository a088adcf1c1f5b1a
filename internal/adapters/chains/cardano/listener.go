package cardano

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/umoja-exchange/settlement-service/internal/adapters/chains"
	"github.com/umoja-exchange/settlement-service/internal/domain/entities"
	"github.com/umoja-exchange/settlement-service/internal/infrastructure/config"
	"github.com/umoja-exchange/settlement-service/pkg/logger"
	"github.com/umoja-exchange/settlement-service/pkg/metrics"
)

const (
	tokenSymbol      = "ADA"
	lovelaceUnit     = "lovelace"
	lovelaceDecimals = 6

	// txPageSize caps how many recent transactions one poll inspects per
	// address
	txPageSize = 25
)

// Listener watches Cardano for ADA deposits through the Blockfrost API.
type Listener struct {
	cfg       config.CardanoConfig
	addresses chains.AddressSource
	onDeposit chains.DepositCallback
	logger    *logger.Logger

	http *resty.Client

	mu          sync.Mutex
	running     bool
	lastHeights map[string]int64 // address -> highest processed block height
	stopCh      chan struct{}
	done        chan struct{}
}

type blockInfo struct {
	Height int64  `json:"height"`
	Hash   string `json:"hash"`
}

type addressTx struct {
	TxHash      string `json:"tx_hash"`
	TxIndex     int    `json:"tx_index"`
	BlockHeight int64  `json:"block_height"`
	BlockTime   int64  `json:"block_time"`
}

type txUTxOs struct {
	Inputs  []utxo `json:"inputs"`
	Outputs []utxo `json:"outputs"`
}

type utxo struct {
	Address string       `json:"address"`
	Amount  []assetValue `json:"amount"`
}

type assetValue struct {
	Unit     string `json:"unit"`
	Quantity string `json:"quantity"`
}

// NewListener creates a Cardano listener
func NewListener(cfg config.CardanoConfig, addresses chains.AddressSource, onDeposit chains.DepositCallback, logger *logger.Logger) *Listener {
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetBaseURL(strings.TrimRight(cfg.APIURL, "/")).
		SetHeader("project_id", cfg.ProjectID)
	return &Listener{
		cfg:       cfg,
		addresses: addresses,
		onDeposit: onDeposit,
		logger:    logger,
		http:      client,
	}
}

// Chain identifies the watched blockchain
func (l *Listener) Chain() entities.Chain {
	return entities.ChainCardano
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
		return fmt.Errorf("cardano listener already running")
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
		return fmt.Errorf("failed to reach cardano api: %w", err)
	}

	go l.run(ctx)

	l.logger.Info("Cardano listener started", "api_url", l.cfg.APIURL)
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
	l.logger.Info("Cardano listener stopped")
	return nil
}

// Confirmations returns tip - txHeight + 1 for a transaction in a block
func (l *Listener) Confirmations(ctx context.Context, txHash string) (int64, error) {
	var tx struct {
		BlockHeight int64 `json:"block_height"`
	}
	resp, err := l.http.R().
		SetContext(ctx).
		SetResult(&tx).
		Get("/txs/" + txHash)
	if err != nil {
		return 0, fmt.Errorf("failed to get tx %s: %w", txHash, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return 0, nil
	}
	if resp.IsError() {
		return 0, fmt.Errorf("tx %s returned status %d", txHash, resp.StatusCode())
	}

	tip, err := l.tipHeight(ctx)
	if err != nil {
		return 0, err
	}

	confirmations := tip - tx.BlockHeight + 1
	if confirmations < 0 {
		confirmations = 0
	}
	return confirmations, nil
}

func (l *Listener) run(ctx context.Context) {
	defer close(l.done)
	defer metrics.ChainAdapterUp.WithLabelValues(string(entities.ChainCardano)).Set(0)
	metrics.ChainAdapterUp.WithLabelValues(string(entities.ChainCardano)).Set(1)

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
		metrics.ChainPollErrors.WithLabelValues(string(entities.ChainCardano)).Inc()
		l.logger.Warn("Failed to load watched addresses", "token", tokenSymbol, "error", err)
		return
	}
	if len(watched) == 0 {
		return
	}

	tip, err := l.tipHeight(ctx)
	if err != nil {
		metrics.ChainPollErrors.WithLabelValues(string(entities.ChainCardano)).Inc()
		l.logger.Warn("Failed to get cardano tip height", "error", err)
		return
	}

	for _, account := range watched {
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
		SetQueryParam("order", "desc").
		SetQueryParam("count", fmt.Sprintf("%d", txPageSize)).
		SetResult(&txs).
		Get("/addresses/" + address + "/transactions")
	if err != nil {
		metrics.ChainPollErrors.WithLabelValues(string(entities.ChainCardano)).Inc()
		l.logger.Warn("Failed to list address transactions", "address", address, "error", err)
		return
	}
	// Blockfrost answers 404 for addresses that have never been used.
	if resp.StatusCode() == http.StatusNotFound {
		if !seen {
			l.setCursor(address, tip)
		}
		return
	}
	if resp.IsError() {
		metrics.ChainPollErrors.WithLabelValues(string(entities.ChainCardano)).Inc()
		l.logger.Warn("Address transactions returned error status",
			"address", address, "status", resp.StatusCode())
		return
	}

	if !seen {
		l.setCursor(address, tip)
		return
	}

	// Newest first from the API; replay oldest first.
	highest := cursor
	for i := len(txs) - 1; i >= 0; i-- {
		tx := txs[i]
		if tx.BlockHeight <= cursor {
			continue
		}
		l.processTx(ctx, address, tx, tip)
		if tx.BlockHeight > highest {
			highest = tx.BlockHeight
		}
	}

	if highest > cursor {
		l.setCursor(address, highest)
	}
}

// processTx sums the lovelace outputs paying the watched address and emits a
// deposit when the transaction delivered value to it
func (l *Listener) processTx(ctx context.Context, address string, tx addressTx, tip int64) {
	var utxos txUTxOs
	resp, err := l.http.R().
		SetContext(ctx).
		SetResult(&utxos).
		Get("/txs/" + tx.TxHash + "/utxos")
	if err != nil {
		metrics.ChainPollErrors.WithLabelValues(string(entities.ChainCardano)).Inc()
		l.logger.Warn("Failed to fetch tx utxos", "tx_hash", tx.TxHash, "error", err)
		return
	}
	if resp.IsError() {
		metrics.ChainPollErrors.WithLabelValues(string(entities.ChainCardano)).Inc()
		l.logger.Warn("Tx utxos returned error status",
			"tx_hash", tx.TxHash, "status", resp.StatusCode())
		return
	}

	received := decimal.Zero
	for _, out := range utxos.Outputs {
		if out.Address != address {
			continue
		}
		for _, asset := range out.Amount {
			if asset.Unit != lovelaceUnit {
				continue
			}
			quantity, err := decimal.NewFromString(asset.Quantity)
			if err != nil {
				l.logger.Warn("Unparseable output quantity",
					"tx_hash", tx.TxHash, "quantity", asset.Quantity)
				continue
			}
			received = received.Add(quantity)
		}
	}
	if received.Sign() <= 0 {
		// Address shows up on the spending side only.
		return
	}

	fromAddress := ""
	for _, in := range utxos.Inputs {
		if in.Address != "" && in.Address != address {
			fromAddress = in.Address
			break
		}
	}
	if fromAddress == "" && len(utxos.Inputs) > 0 {
		fromAddress = utxos.Inputs[0].Address
	}

	confirmations := tip - tx.BlockHeight + 1
	if confirmations < 1 {
		confirmations = 1
	}

	l.onDeposit(ctx, &entities.DepositEvent{
		TxHash:        tx.TxHash,
		ToAddress:     address,
		FromAddress:   fromAddress,
		Amount:        received.Shift(-lovelaceDecimals),
		TokenSymbol:   tokenSymbol,
		Chain:         entities.ChainCardano,
		BlockNumber:   tx.BlockHeight,
		Confirmations: confirmations,
		Timestamp:     time.Unix(tx.BlockTime, 0),
	})
}

func (l *Listener) setCursor(address string, height int64) {
	l.mu.Lock()
	l.lastHeights[address] = height
	l.mu.Unlock()
}

func (l *Listener) tipHeight(ctx context.Context) (int64, error) {
	var block blockInfo
	resp, err := l.http.R().
		SetContext(ctx).
		SetResult(&block).
		Get("/blocks/latest")
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("latest block returned status %d", resp.StatusCode())
	}
	return block.Height, nil
}
