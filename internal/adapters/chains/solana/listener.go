package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	"github.com/umoja-exchange/settlement-service/internal/adapters/chains"
	"github.com/umoja-exchange/settlement-service/internal/domain/entities"
	"github.com/umoja-exchange/settlement-service/internal/infrastructure/config"
	"github.com/umoja-exchange/settlement-service/pkg/logger"
	"github.com/umoja-exchange/settlement-service/pkg/metrics"
)

const (
	nativeSymbol   = "SOL"
	lamportsPerSol = 9 // decimal places

	// signatureBatchLimit caps how many signatures one poll fetches per
	// address
	signatureBatchLimit = 50
)

// Listener watches Solana for native SOL deposits. Detection is driven by
// polling getSignaturesForAddress per watched address; when a websocket
// endpoint is configured, accountSubscribe notifications wake the poll loop
// early so deposits surface without waiting out the interval.
type Listener struct {
	cfg       config.SolanaConfig
	addresses chains.AddressSource
	onDeposit chains.DepositCallback
	logger    *logger.Logger

	http   *resty.Client
	wakeCh chan struct{}

	mu       sync.Mutex
	running  bool
	lastSigs map[string]string // address -> newest processed signature
	stopCh   chan struct{}
	done     chan struct{}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type signatureInfo struct {
	Signature string      `json:"signature"`
	Slot      uint64      `json:"slot"`
	Err       interface{} `json:"err"`
	BlockTime *int64      `json:"blockTime"`
}

type transactionResult struct {
	Slot        uint64  `json:"slot"`
	BlockTime   *int64  `json:"blockTime"`
	Meta        *txMeta `json:"meta"`
	Transaction struct {
		Message txMessage `json:"message"`
	} `json:"transaction"`
}

type txMeta struct {
	Err          interface{} `json:"err"`
	PreBalances  []uint64    `json:"preBalances"`
	PostBalances []uint64    `json:"postBalances"`
}

type txMessage struct {
	AccountKeys []accountKey `json:"accountKeys"`
}

type accountKey struct {
	Pubkey string `json:"pubkey"`
}

type signatureStatus struct {
	Slot               uint64      `json:"slot"`
	Confirmations      *uint64     `json:"confirmations"`
	Err                interface{} `json:"err"`
	ConfirmationStatus string      `json:"confirmationStatus"`
}

// NewListener creates a Solana listener
func NewListener(cfg config.SolanaConfig, addresses chains.AddressSource, onDeposit chains.DepositCallback, logger *logger.Logger) *Listener {
	return &Listener{
		cfg:       cfg,
		addresses: addresses,
		onDeposit: onDeposit,
		logger:    logger,
		http:      resty.New().SetTimeout(30 * time.Second),
		wakeCh:    make(chan struct{}, 1),
	}
}

// Chain identifies the watched blockchain
func (l *Listener) Chain() entities.Chain {
	return entities.ChainSolana
}

// SupportedTokens lists the tokens this listener can detect
func (l *Listener) SupportedTokens() []string {
	return []string{nativeSymbol}
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
		return fmt.Errorf("solana listener already running")
	}
	l.running = true
	l.lastSigs = make(map[string]string)
	l.stopCh = make(chan struct{})
	l.done = make(chan struct{})
	l.mu.Unlock()

	if err := l.checkEndpoint(ctx); err != nil {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
		return err
	}

	go l.run(ctx)
	if l.cfg.WSURL != "" {
		go l.watchAccounts(ctx)
	}

	l.logger.Info("Solana listener started", "rpc_url", l.cfg.RPCURL)
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
	l.logger.Info("Solana listener stopped")
	return nil
}

// Confirmations resolves a signature's confirmation count. Rooted signatures
// report the required count so promotion is never blocked on a value the
// cluster no longer exposes.
func (l *Listener) Confirmations(ctx context.Context, txHash string) (int64, error) {
	params := []interface{}{
		[]string{txHash},
		map[string]interface{}{"searchTransactionHistory": true},
	}
	var result struct {
		Value []*signatureStatus `json:"value"`
	}
	if err := l.rpcCall(ctx, "getSignatureStatuses", params, &result); err != nil {
		return 0, fmt.Errorf("failed to get signature status for %s: %w", txHash, err)
	}
	if len(result.Value) == 0 || result.Value[0] == nil {
		return 0, nil
	}

	status := result.Value[0]
	if status.Confirmations == nil || status.ConfirmationStatus == "finalized" {
		return l.cfg.RequiredConfirmations, nil
	}
	return int64(*status.Confirmations), nil
}

func (l *Listener) checkEndpoint(ctx context.Context) error {
	var slot uint64
	if err := l.rpcCall(ctx, "getSlot", []interface{}{}, &slot); err != nil {
		return fmt.Errorf("failed to reach solana rpc endpoint: %w", err)
	}
	return nil
}

func (l *Listener) run(ctx context.Context) {
	defer close(l.done)
	defer metrics.ChainAdapterUp.WithLabelValues(string(entities.ChainSolana)).Set(0)
	metrics.ChainAdapterUp.WithLabelValues(string(entities.ChainSolana)).Set(1)

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
		case <-l.wakeCh:
			l.pollOnce(ctx)
		}
	}
}

// pollOnce scans every watched address for new signatures
func (l *Listener) pollOnce(ctx context.Context) {
	watched, err := l.addresses.GetAllAddressesForToken(ctx, nativeSymbol)
	if err != nil {
		metrics.ChainPollErrors.WithLabelValues(string(entities.ChainSolana)).Inc()
		l.logger.Warn("Failed to load watched addresses", "token", nativeSymbol, "error", err)
		return
	}

	var currentSlot uint64
	if err := l.rpcCall(ctx, "getSlot", []interface{}{}, &currentSlot); err != nil {
		metrics.ChainPollErrors.WithLabelValues(string(entities.ChainSolana)).Inc()
		l.logger.Warn("Failed to get current slot", "error", err)
		return
	}

	for _, account := range watched {
		if !isValidAddress(account.Address) {
			l.logger.Warn("Skipping invalid solana address", "address", account.Address)
			continue
		}
		l.pollAddress(ctx, account.Address, currentSlot)
	}
}

func (l *Listener) pollAddress(ctx context.Context, address string, currentSlot uint64) {
	l.mu.Lock()
	lastSig, seen := l.lastSigs[address]
	l.mu.Unlock()

	opts := map[string]interface{}{"limit": signatureBatchLimit}
	if lastSig != "" {
		opts["until"] = lastSig
	}

	var signatures []signatureInfo
	if err := l.rpcCall(ctx, "getSignaturesForAddress", []interface{}{address, opts}, &signatures); err != nil {
		metrics.ChainPollErrors.WithLabelValues(string(entities.ChainSolana)).Inc()
		l.logger.Warn("Failed to list signatures", "address", address, "error", err)
		return
	}
	if len(signatures) == 0 {
		return
	}

	// First sight of an address seeds the cursor without replaying history.
	if !seen {
		l.setCursor(address, signatures[0].Signature)
		return
	}

	// Results are newest first; process oldest first so the cursor only
	// moves past signatures that have been handled.
	for i := len(signatures) - 1; i >= 0; i-- {
		sig := signatures[i]
		if sig.Err == nil {
			l.processSignature(ctx, address, sig, currentSlot)
		}
		l.setCursor(address, sig.Signature)
	}
}

// processSignature fetches the transaction and emits a deposit when the
// watched account's balance increased
func (l *Listener) processSignature(ctx context.Context, address string, sig signatureInfo, currentSlot uint64) {
	params := []interface{}{
		sig.Signature,
		map[string]interface{}{
			"encoding":                       "jsonParsed",
			"maxSupportedTransactionVersion": 0,
		},
	}
	var tx *transactionResult
	if err := l.rpcCall(ctx, "getTransaction", params, &tx); err != nil {
		metrics.ChainPollErrors.WithLabelValues(string(entities.ChainSolana)).Inc()
		l.logger.Warn("Failed to fetch transaction", "signature", sig.Signature, "error", err)
		return
	}
	if tx == nil || tx.Meta == nil || tx.Meta.Err != nil {
		return
	}

	accountIndex := -1
	for i, key := range tx.Transaction.Message.AccountKeys {
		if key.Pubkey == address {
			accountIndex = i
			break
		}
	}
	if accountIndex < 0 ||
		accountIndex >= len(tx.Meta.PreBalances) ||
		accountIndex >= len(tx.Meta.PostBalances) {
		return
	}

	received := int64(tx.Meta.PostBalances[accountIndex]) - int64(tx.Meta.PreBalances[accountIndex])
	if received <= 0 {
		return
	}

	fromAddress := ""
	if len(tx.Transaction.Message.AccountKeys) > 0 {
		fromAddress = tx.Transaction.Message.AccountKeys[0].Pubkey
	}

	confirmations := int64(currentSlot) - int64(sig.Slot) + 1
	if confirmations < 1 {
		confirmations = 1
	}

	timestamp := time.Now()
	if tx.BlockTime != nil {
		timestamp = time.Unix(*tx.BlockTime, 0)
	}

	l.onDeposit(ctx, &entities.DepositEvent{
		TxHash:        sig.Signature,
		ToAddress:     address,
		FromAddress:   fromAddress,
		Amount:        decimal.New(received, -lamportsPerSol),
		TokenSymbol:   nativeSymbol,
		Chain:         entities.ChainSolana,
		BlockNumber:   int64(sig.Slot),
		Confirmations: confirmations,
		Timestamp:     timestamp,
	})
}

// watchAccounts holds a websocket account subscription for every watched
// address and wakes the poll loop whenever one of them changes. Polling is
// the source of truth, so any subscription failure degrades to interval
// polling rather than stopping detection.
func (l *Listener) watchAccounts(ctx context.Context) {
	retryDelay := time.Duration(l.cfg.PollInterval) * time.Second
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		default:
		}

		if err := l.subscribeAccounts(ctx); err != nil {
			l.logger.Warn("Solana account subscription dropped", "error", err, "retry_in", retryDelay)
		}

		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		case <-time.After(retryDelay):
		}
	}
}

func (l *Listener) subscribeAccounts(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, l.cfg.WSURL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial solana websocket: %w", err)
	}
	defer conn.Close()

	watched, err := l.addresses.GetAllAddressesForToken(ctx, nativeSymbol)
	if err != nil {
		return fmt.Errorf("failed to load watched addresses: %w", err)
	}

	for i, account := range watched {
		if !isValidAddress(account.Address) {
			continue
		}
		req := rpcRequest{
			JSONRPC: "2.0",
			ID:      i + 1,
			Method:  "accountSubscribe",
			Params: []interface{}{
				account.Address,
				map[string]interface{}{"commitment": "confirmed"},
			},
		}
		if err := conn.WriteJSON(req); err != nil {
			return fmt.Errorf("failed to subscribe account %s: %w", account.Address, err)
		}
	}
	l.logger.Info("Subscribed to solana account notifications", "accounts", len(watched))

	// Close the socket when the listener stops so the read below unblocks.
	readerDone := make(chan struct{})
	defer close(readerDone)
	go func() {
		select {
		case <-ctx.Done():
		case <-l.stopCh:
		case <-readerDone:
		}
		conn.Close()
	}()

	for {
		var msg struct {
			Method string `json:"method"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			select {
			case <-l.stopCh:
				return nil
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		if msg.Method == "accountNotification" {
			select {
			case l.wakeCh <- struct{}{}:
			default:
			}
		}
	}
}

func (l *Listener) setCursor(address, signature string) {
	l.mu.Lock()
	l.lastSigs[address] = signature
	l.mu.Unlock()
}

// rpcCall performs one JSON-RPC request against the configured endpoint
func (l *Listener) rpcCall(ctx context.Context, method string, params []interface{}, out interface{}) error {
	var envelope rpcResponse
	resp, err := l.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params}).
		SetResult(&envelope).
		Post(l.cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("rpc %s failed: %w", method, err)
	}
	if resp.IsError() {
		return fmt.Errorf("rpc %s returned status %d", method, resp.StatusCode())
	}
	if envelope.Error != nil {
		return fmt.Errorf("rpc %s error %d: %s", method, envelope.Error.Code, envelope.Error.Message)
	}
	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}

// isValidAddress checks that the address is base58 for a 32 byte public key
func isValidAddress(address string) bool {
	decoded, err := base58.Decode(address)
	return err == nil && len(decoded) == 32
}
