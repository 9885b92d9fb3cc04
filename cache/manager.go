package cache

import (
	"context"
	"log"
	"sync"
	"time"
)

// Manager is the read-through cache httpapi's GET /markets/{id} reads through: L1
// (in-process LRU) backed by an optional L2 (Redis), with a per-namespace
// TTL table and an explicit invalidate-on-write API.
type Manager struct {
	tiers *MultiTierCache

	mu               sync.RWMutex
	invalidations    int64
	lastInvalidation time.Time
	onInvalidate     func(key string)
}

// ManagerConfig configures the L1/L2 tiers.
type ManagerConfig struct {
	L1Size      int64 // bytes, 0 = unlimited
	L1MaxItems  int
	RedisConfig *RedisConfig // nil disables L2
}

// DefaultManagerConfig sizes L1 for a single process and disables L2.
func DefaultManagerConfig() *ManagerConfig {
	return &ManagerConfig{
		L1Size:     64 * 1024 * 1024,
		L1MaxItems: 50_000,
	}
}

// NewManager constructs a Manager. loader is invoked on an L1+L2 miss to
// fetch from the authoritative store; it may be nil if callers always
// populate the cache themselves via Set.
func NewManager(cfg *ManagerConfig, loader LoaderFunc) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultManagerConfig()
	}
	tiers, err := NewMultiTierCache(cfg.L1Size, cfg.L1MaxItems, cfg.RedisConfig, loader)
	if err != nil {
		return nil, err
	}
	return &Manager{tiers: tiers}, nil
}

// ttlFor returns the configured TTL for a namespace, defaulting to 60s for
// any namespace not in the table.
func ttlFor(namespace string) time.Duration {
	switch namespace {
	case NamespaceMarkets:
		return TTLMarkets
	case NamespacePositions:
		return TTLPositions
	case NamespaceTradeHistory:
		return TTLTradeHistory
	case NamespaceOHLCV:
		return TTLOHLCV
	case NamespaceMarketStats:
		return TTLMarketStats
	default:
		return 60 * time.Second
	}
}

// Get reads namespace:key using that namespace's configured TTL to decide
// L1 freshness.
func (m *Manager) Get(ctx context.Context, namespace, key string) (interface{}, error) {
	return m.tiers.GetWithTTL(ctx, Key(namespace, key), ttlFor(namespace))
}

// Set writes namespace:key using that namespace's configured TTL.
func (m *Manager) Set(ctx context.Context, namespace, key string, value interface{}) error {
	return m.tiers.Set(ctx, Key(namespace, key), value, ttlFor(namespace))
}

// Invalidate removes namespace:key from every tier. Called after every
// write path that could affect a cached value — market/position mutation,
// a new trade row, a new OHLCV bucket.
func (m *Manager) Invalidate(ctx context.Context, namespace, key string) error {
	full := Key(namespace, key)
	err := m.tiers.Delete(ctx, full)

	m.mu.Lock()
	m.invalidations++
	m.lastInvalidation = time.Now()
	handler := m.onInvalidate
	m.mu.Unlock()

	if handler != nil {
		go handler(full)
	}
	return err
}

// OnInvalidate registers a callback fired (async) after every Invalidate.
func (m *Manager) OnInvalidate(fn func(key string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onInvalidate = fn
}

// Stats returns the underlying multi-tier hit/miss counters.
func (m *Manager) Stats() map[string]interface{} {
	return m.tiers.Stats()
}

// Close releases the Redis connection, if any.
func (m *Manager) Close() error {
	if m.tiers.l2 != nil {
		if err := m.tiers.l2.Close(); err != nil {
			log.Printf("cache: error closing redis connection: %v", err)
			return err
		}
	}
	return nil
}
