package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/umoja-exchange/settlement-service/internal/domain/entities"
)

// ErrCacheMiss is returned when a key is absent from the cache
var ErrCacheMiss = errors.New("cache miss")

// AddressCache is a short-TTL read-through cache for watched-address
// sets. Four chain adapters re-resolve their address sets every poll
// cycle; the cache bounds the resulting database load. A cache failure
// is never fatal, callers fall through to the database.
type AddressCache struct {
	client RedisClient
	ttl    time.Duration
}

// NewAddressCache creates an address cache with the given TTL
func NewAddressCache(client RedisClient, ttl time.Duration) *AddressCache {
	return &AddressCache{client: client, ttl: ttl}
}

func addressKey(tokenSymbol string) string {
	return fmt.Sprintf("watched_addresses:%s", tokenSymbol)
}

// Get returns the cached address set for a token, or ErrCacheMiss
func (c *AddressCache) Get(ctx context.Context, tokenSymbol string) ([]entities.UserAddress, error) {
	var addresses []entities.UserAddress
	if err := c.client.Get(ctx, addressKey(tokenSymbol), &addresses); err != nil {
		return nil, err
	}
	return addresses, nil
}

// Put stores the address set for a token
func (c *AddressCache) Put(ctx context.Context, tokenSymbol string, addresses []entities.UserAddress) error {
	return c.client.Set(ctx, addressKey(tokenSymbol), addresses, c.ttl)
}

// Invalidate drops the cached set for a token
func (c *AddressCache) Invalidate(ctx context.Context, tokenSymbol string) error {
	return c.client.Del(ctx, addressKey(tokenSymbol))
}
