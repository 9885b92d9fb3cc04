// Package cache provides a read-through LRU+TTL cache (L1, in-process) with
// an optional Redis-backed L2 tier, scoped to the five cache families the
// engine actually needs: markets, positions, trade history, OHLCV, and
// market stats.
package cache

import (
	"context"
	"errors"
	"time"
)

// Store is the Get/Set/Delete/Clear/Stats shape the single tiers
// (MemoryCache, RedisCache) implement; MultiTierCache and Manager do not.
type Store interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Stats() Stats
}

// Stats holds cache performance counters.
type Stats struct {
	Hits       int64
	Misses     int64
	Sets       int64
	Deletes    int64
	Evictions  int64
	Size       int64
	HitRate    float64
	AvgGetTime time.Duration
	AvgSetTime time.Duration
}

// Key builds a namespaced cache key.
func Key(namespace, key string) string {
	return namespace + ":" + key
}

// Namespaces and their TTLs, one per cache family the engine reads through.
const (
	NamespaceMarkets      = "markets"
	NamespacePositions    = "positions"
	NamespaceTradeHistory = "trades"
	NamespaceOHLCV        = "ohlcv"
	NamespaceMarketStats  = "market_stats"
)

const (
	TTLMarkets      = 3600 * time.Second
	TTLPositions    = 5 * time.Second
	TTLTradeHistory = 60 * time.Second
	TTLOHLCV        = 60 * time.Second
	TTLMarketStats  = 60 * time.Second
)

var ErrMiss = errors.New("cache: miss")
