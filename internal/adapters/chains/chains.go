// Package chains defines the contract between blockchain listeners and the
// deposit pipeline. Each supported chain implements Listener in its own
// subpackage; the monitor service owns their lifecycle and routes detected
// deposits into the processor.
package chains

import (
	"context"

	"github.com/umoja-exchange/settlement-service/internal/domain/entities"
)

// DepositCallback receives every deposit a listener detects. Implementations
// must be safe for concurrent calls; listeners invoke it from their own
// goroutines.
type DepositCallback func(ctx context.Context, event *entities.DepositEvent)

// AddressSource supplies the watched deposit addresses for a token.
// Listeners refresh from it on startup and on every poll cycle so newly
// registered wallets are picked up without a restart.
type AddressSource interface {
	GetAllAddressesForToken(ctx context.Context, tokenSymbol string) ([]entities.UserAddress, error)
}

// Listener watches one blockchain for deposits to registered addresses.
type Listener interface {
	// Start begins watching. It returns an error when the listener cannot
	// reach its data source; transient failures after startup are retried
	// internally.
	Start(ctx context.Context) error

	// Stop halts watching and waits for in-flight work to finish.
	Stop() error

	// IsRunning reports whether the listener is actively watching.
	IsRunning() bool

	// Chain identifies the blockchain this listener watches.
	Chain() entities.Chain

	// SupportedTokens lists the token symbols this listener can detect.
	SupportedTokens() []string

	// Confirmations returns the current confirmation count for a
	// transaction, computed as tip height minus transaction height plus
	// one. Transactions not yet in a block report zero.
	Confirmations(ctx context.Context, txHash string) (int64, error)
}
