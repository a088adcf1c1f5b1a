package entities

import "fmt"

// Chain identifies a supported blockchain family
type Chain string

const (
	ChainEVM     Chain = "evm"
	ChainSolana  Chain = "solana"
	ChainBitcoin Chain = "bitcoin"
	ChainCardano Chain = "cardano"
)

// AllChains lists every chain family the service can monitor
var AllChains = []Chain{ChainEVM, ChainSolana, ChainBitcoin, ChainCardano}

// Validate checks if the chain is supported
func (c Chain) Validate() error {
	switch c {
	case ChainEVM, ChainSolana, ChainBitcoin, ChainCardano:
		return nil
	default:
		return fmt.Errorf("unsupported chain: %s", c)
	}
}

// IsValid checks if the chain is supported
func (c Chain) IsValid() bool {
	return c.Validate() == nil
}

func (c Chain) String() string {
	return string(c)
}
