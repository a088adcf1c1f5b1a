// Package metrics exposes Prometheus collectors shared across the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts API requests by method, path and status
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_http_requests_total",
		Help: "Total number of HTTP requests processed",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration observes API latency by method and path
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_http_request_duration_seconds",
		Help:    "HTTP request latency distribution",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// DatabaseConnectionsGauge tracks pool state by connection state
	DatabaseConnectionsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "settlement_database_connections",
		Help: "Database connection pool state",
	}, []string{"state"})

	// DepositsDetected counts deposit events received per chain
	DepositsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_deposits_detected_total",
		Help: "Deposit events received from chain adapters",
	}, []string{"chain", "token"})

	// DepositsCredited counts confirmed deposits credited to users
	DepositsCredited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_deposits_credited_total",
		Help: "Deposits promoted to confirmed and credited",
	}, []string{"token"})

	// DepositsFailed counts deposits that entered the failed state
	DepositsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_deposits_failed_total",
		Help: "Deposits marked failed during promotion",
	}, []string{"token"})

	// DepositsDuplicate counts events dropped by tx-hash dedup
	DepositsDuplicate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_deposits_duplicate_total",
		Help: "Deposit events ignored because the tx hash was already recorded",
	}, []string{"token"})

	// StalePendingDeposits reports pending deposits older than the sweep threshold
	StalePendingDeposits = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "settlement_stale_pending_deposits",
		Help: "Deposits pending longer than the configured stale threshold",
	})

	// ChainAdapterUp reports adapter liveness per chain
	ChainAdapterUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "settlement_chain_adapter_up",
		Help: "Whether a chain adapter is currently running (1) or stopped (0)",
	}, []string{"chain"})

	// ChainPollErrors counts per-chain polling or subscription errors
	ChainPollErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_chain_poll_errors_total",
		Help: "Errors encountered while polling or subscribing to a chain",
	}, []string{"chain"})

	// TreasuryPostings counts treasury transaction outcomes
	TreasuryPostings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_treasury_postings_total",
		Help: "Treasury movement sets applied, by outcome",
	}, []string{"outcome"})

	// TreasuryRetries counts scheduled treasury posting retries
	TreasuryRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_treasury_retries_total",
		Help: "Treasury posting retries scheduled",
	})

	// TreasuryTerminalFailures counts postings abandoned after retry exhaustion
	TreasuryTerminalFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_treasury_terminal_failures_total",
		Help: "Treasury postings abandoned after exhausting retries",
	})

	// ConfirmationSweepDuration observes tracker sweep latency
	ConfirmationSweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "settlement_confirmation_sweep_duration_seconds",
		Help:    "Duration of confirmation tracker sweeps",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	})
)
