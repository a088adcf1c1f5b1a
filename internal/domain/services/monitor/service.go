package monitor

import (
	"context"
	"fmt"
	"sort"

	"github.com/umoja-exchange/settlement-service/internal/adapters/chains"
	"github.com/umoja-exchange/settlement-service/internal/adapters/chains/bitcoin"
	"github.com/umoja-exchange/settlement-service/internal/adapters/chains/cardano"
	"github.com/umoja-exchange/settlement-service/internal/adapters/chains/evm"
	"github.com/umoja-exchange/settlement-service/internal/adapters/chains/solana"
	"github.com/umoja-exchange/settlement-service/internal/domain/entities"
	domainerrors "github.com/umoja-exchange/settlement-service/internal/domain/errors"
	"github.com/umoja-exchange/settlement-service/internal/infrastructure/config"
	"github.com/umoja-exchange/settlement-service/pkg/logger"
	"github.com/umoja-exchange/settlement-service/pkg/metrics"
)

// DepositProcessor consumes deposit events fanned in from all chain listeners.
// Implementations must tolerate duplicate events for the same transaction.
type DepositProcessor interface {
	ProcessDeposit(ctx context.Context, event *entities.DepositEvent) error
}

// Service owns the chain listeners. It constructs one listener per chain
// whose configuration is present, fans their events into a single processor
// and exposes per-chain start/stop for operational control.
type Service struct {
	processor DepositProcessor
	logger    *logger.Logger
	listeners map[entities.Chain]chains.Listener
	tokens    map[string]entities.Chain
}

// NewService builds listeners for every configured chain. Chains without
// the config they need are skipped with a warning so a partial deployment
// still monitors what it can.
func NewService(cfg config.ChainsConfig, addresses chains.AddressSource, processor DepositProcessor, logger *logger.Logger) *Service {
	s := &Service{
		processor: processor,
		logger:    logger,
		listeners: make(map[entities.Chain]chains.Listener),
		tokens:    make(map[string]entities.Chain),
	}

	if cfg.EVM.RPCURL != "" {
		s.register(evm.NewListener(cfg.EVM, addresses, s.handleDeposit, logger))
	} else {
		logger.Warn("EVM listener disabled: no RPC URL configured")
	}
	if cfg.Solana.RPCURL != "" {
		s.register(solana.NewListener(cfg.Solana, addresses, s.handleDeposit, logger))
	} else {
		logger.Warn("Solana listener disabled: no RPC URL configured")
	}
	if cfg.Bitcoin.APIURL != "" {
		s.register(bitcoin.NewListener(cfg.Bitcoin, addresses, s.handleDeposit, logger))
	} else {
		logger.Warn("Bitcoin listener disabled: no API URL configured")
	}
	if cfg.Cardano.APIURL != "" && cfg.Cardano.ProjectID != "" {
		s.register(cardano.NewListener(cfg.Cardano, addresses, s.handleDeposit, logger))
	} else {
		logger.Warn("Cardano listener disabled: API URL or project ID missing")
	}

	return s
}

func (s *Service) register(l chains.Listener) {
	s.listeners[l.Chain()] = l
	for _, token := range l.SupportedTokens() {
		s.tokens[token] = l.Chain()
	}
}

// handleDeposit is the fan-in point for every listener
func (s *Service) handleDeposit(ctx context.Context, event *entities.DepositEvent) {
	metrics.DepositsDetected.WithLabelValues(string(event.Chain), event.TokenSymbol).Inc()
	if err := s.processor.ProcessDeposit(ctx, event); err != nil {
		s.logger.Error("Failed to process deposit event",
			"tx_hash", event.TxHash,
			"chain", event.Chain,
			"token", event.TokenSymbol,
			"error", err)
	}
}

// Start brings up every configured listener. A chain that fails to start is
// logged and skipped; one unreachable node must not take down monitoring of
// the other chains.
func (s *Service) Start(ctx context.Context) error {
	if len(s.listeners) == 0 {
		return fmt.Errorf("no chain listeners configured")
	}
	for chain, l := range s.listeners {
		if err := l.Start(ctx); err != nil {
			s.logger.Error("Failed to start chain listener",
				"chain", chain,
				"error", err)
			continue
		}
		s.logger.Info("Chain listener started", "chain", chain)
	}
	return nil
}

// Stop stops every running listener
func (s *Service) Stop() {
	for chain, l := range s.listeners {
		if !l.IsRunning() {
			continue
		}
		if err := l.Stop(); err != nil {
			s.logger.Warn("Failed to stop chain listener",
				"chain", chain,
				"error", err)
		}
	}
}

// StartChain starts a single chain's listener
func (s *Service) StartChain(ctx context.Context, chain entities.Chain) error {
	l, ok := s.listeners[chain]
	if !ok {
		return fmt.Errorf("chain %s is not configured: %w", chain, domainerrors.ErrNotFound)
	}
	if err := l.Start(ctx); err != nil {
		return fmt.Errorf("start %s listener: %w", chain, err)
	}
	s.logger.Info("Chain listener started", "chain", chain)
	return nil
}

// StopChain stops a single chain's listener
func (s *Service) StopChain(chain entities.Chain) error {
	l, ok := s.listeners[chain]
	if !ok {
		return fmt.Errorf("chain %s is not configured: %w", chain, domainerrors.ErrNotFound)
	}
	if err := l.Stop(); err != nil {
		return fmt.Errorf("stop %s listener: %w", chain, err)
	}
	s.logger.Info("Chain listener stopped", "chain", chain)
	return nil
}

// Status reports each configured chain and whether its listener is running
func (s *Service) Status() map[string]bool {
	status := make(map[string]bool, len(s.listeners))
	for chain, l := range s.listeners {
		status[string(chain)] = l.IsRunning()
	}
	return status
}

// SupportedTokens returns every token symbol covered by a configured
// listener, sorted for stable output.
func (s *Service) SupportedTokens() []string {
	tokens := make([]string, 0, len(s.tokens))
	for token := range s.tokens {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}

// Confirmations asks the listener that owns the token how many
// confirmations a transaction has. Listeners answer this from their HTTP
// clients, so it works even while the streaming side is down.
func (s *Service) Confirmations(ctx context.Context, tokenSymbol, txHash string) (int64, error) {
	chain, ok := s.tokens[tokenSymbol]
	if !ok {
		return 0, fmt.Errorf("no listener for token %s: %w", tokenSymbol, domainerrors.ErrNotFound)
	}
	return s.listeners[chain].Confirmations(ctx, txHash)
}
