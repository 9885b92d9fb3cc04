// Package oracle provides live price lookups for markets and for the two
// collateral assets, with a bounded staleness window and single-flight
// collapsing of concurrent duplicate fetches.
package oracle

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rtxlabs/vperp/decimalx"
	"github.com/rtxlabs/vperp/ledger"
	"github.com/rtxlabs/vperp/logging"
)

// ErrUnavailable is returned when no quote has been fetched successfully
// within the staleness budget.
var ErrUnavailable = errors.New("oracle: price unavailable, stale beyond budget")

// Source fetches a fresh quote for a market symbol or asset ticker from
// wherever prices actually come from (an exchange feed, a DEX pool reader,
// a vendor API). Implementations are expected to do their own network
// retries; Source returning an error means "give up for this attempt."
type Source interface {
	FetchMarketPrice(ctx context.Context, marketID string) (decimalx.Decimal, error)
	FetchAssetPrice(ctx context.Context, asset ledger.Asset) (decimalx.Decimal, error)
}

type quote struct {
	price     decimalx.Decimal
	fetchedAt time.Time
}

// Config tunes retry and staleness behavior.
type Config struct {
	// StaleBudget is how long a last-known price may be served after the
	// most recent successful fetch before Price starts returning
	// ErrUnavailable.
	StaleBudget time.Duration

	// Retries is how many additional attempts refresh makes against
	// Source after the first failure, with RetryBackoff between attempts.
	Retries      int
	RetryBackoff time.Duration
}

// DefaultConfig mirrors the engine-wide default staleness budget.
func DefaultConfig() Config {
	return Config{
		StaleBudget:  30 * time.Second,
		Retries:      2,
		RetryBackoff: 100 * time.Millisecond,
	}
}

// Oracle is the PriceOracle collaborator: every lookup fetches a fresh quote
// from Source, collapsing concurrent fetches of the same key into one Source
// call, and the last-known good quote per key is kept and served, within the
// staleness budget, when a fetch fails.
type Oracle struct {
	cfg    Config
	source Source
	log    *logging.Logger

	mu     sync.RWMutex
	quotes map[string]quote

	group singleflight.Group
}

// New constructs an Oracle backed by source.
func New(source Source, cfg Config, log *logging.Logger) *Oracle {
	return &Oracle{
		cfg:    cfg,
		source: source,
		log:    log,
		quotes: make(map[string]quote),
	}
}

func marketKey(marketID string) string { return "market:" + marketID }
func assetKey(asset ledger.Asset) string { return "asset:" + string(asset) }

// MarketPrice returns the current price for a market, fetching it from
// Source on every call. Within StaleBudget of a prior success, a failed
// refresh falls back to the last-known quote rather than erroring.
func (o *Oracle) MarketPrice(ctx context.Context, marketID string) (decimalx.Decimal, error) {
	return o.price(ctx, marketKey(marketID), func(ctx context.Context) (decimalx.Decimal, error) {
		return o.source.FetchMarketPrice(ctx, marketID)
	})
}

// AssetPrice returns the current USD price for a collateral asset.
func (o *Oracle) AssetPrice(ctx context.Context, asset ledger.Asset) (decimalx.Decimal, error) {
	return o.price(ctx, assetKey(asset), func(ctx context.Context) (decimalx.Decimal, error) {
		return o.source.FetchAssetPrice(ctx, asset)
	})
}

func (o *Oracle) price(ctx context.Context, key string, fetch func(context.Context) (decimalx.Decimal, error)) (decimalx.Decimal, error) {
	fresh, err := o.refresh(ctx, key, fetch)
	if err == nil {
		return fresh, nil
	}

	o.mu.RLock()
	q, ok := o.quotes[key]
	o.mu.RUnlock()
	if !ok {
		return decimalx.Zero, ErrUnavailable
	}
	if time.Since(q.fetchedAt) > o.cfg.StaleBudget {
		return decimalx.Zero, ErrUnavailable
	}

	o.log.Warn("oracle: serving stale price",
		logging.String("key", key),
		logging.String("age", time.Since(q.fetchedAt).String()),
		logging.String("err", err.Error()),
	)
	return q.price, nil
}

// refresh fetches a new quote, retrying cfg.Retries times, collapsing
// concurrent callers for the same key into a single Source round trip.
func (o *Oracle) refresh(ctx context.Context, key string, fetch func(context.Context) (decimalx.Decimal, error)) (decimalx.Decimal, error) {
	v, err, _ := o.group.Do(key, func() (interface{}, error) {
		var lastErr error
		for attempt := 0; attempt <= o.cfg.Retries; attempt++ {
			if attempt > 0 {
				select {
				case <-time.After(o.cfg.RetryBackoff):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			p, fetchErr := fetch(ctx)
			if fetchErr == nil {
				o.mu.Lock()
				o.quotes[key] = quote{price: p, fetchedAt: time.Now()}
				o.mu.Unlock()
				return p, nil
			}
			lastErr = fetchErr
		}
		return nil, lastErr
	})
	if err != nil {
		return decimalx.Zero, err
	}
	return v.(decimalx.Decimal), nil
}

// Seed installs a quote directly, bypassing Source — used by tests and by
// feed listeners that push quotes rather than being polled.
func (o *Oracle) Seed(key string, price decimalx.Decimal, at time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.quotes[key] = quote{price: price, fetchedAt: at}
}

// SeedMarket is Seed for a market symbol key.
func (o *Oracle) SeedMarket(marketID string, price decimalx.Decimal) {
	o.Seed(marketKey(marketID), price, time.Now())
}

// SeedAsset is Seed for a collateral-asset key.
func (o *Oracle) SeedAsset(asset ledger.Asset, price decimalx.Decimal) {
	o.Seed(assetKey(asset), price, time.Now())
}
