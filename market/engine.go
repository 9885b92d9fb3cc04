package market

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rtxlabs/vperp/decimalx"
	"github.com/rtxlabs/vperp/ledger"
)

// entry pairs a market with its own lock so that mutations to different
// markets never contend, while a single market is serialized against
// itself (trade, fee-accrual, and liquidation all touch reserves and OI).
type entry struct {
	mu sync.Mutex
	m  *Market
}

// Engine holds every market's vAMM state in memory, guarded by a map-level
// RWMutex plus a per-market mutex for the reserve/OI/fee mutations that
// must be serialized.
type Engine struct {
	mapMu   sync.RWMutex
	entries map[string]*entry
	bySym   map[string]string // symbol -> id
}

// NewEngine returns an empty Engine.
func NewEngine() *Engine {
	return &Engine{
		entries: make(map[string]*entry),
		bySym:   make(map[string]string),
	}
}

// CreateMarket seeds a new market at the given oracle price.
func (e *Engine) CreateMarket(id, symbol, tokenAddress string, seedPrice decimalx.Decimal, now time.Time) (*Market, error) {
	e.mapMu.Lock()
	defer e.mapMu.Unlock()

	if _, ok := e.bySym[symbol]; ok {
		return nil, ErrDuplicateSymbol
	}

	m, err := New(id, symbol, tokenAddress, seedPrice, now)
	if err != nil {
		return nil, err
	}

	e.entries[id] = &entry{m: m}
	e.bySym[symbol] = id
	return m.clone(), nil
}

func (e *Engine) lookup(id string) (*entry, error) {
	e.mapMu.RLock()
	defer e.mapMu.RUnlock()
	ent, ok := e.entries[id]
	if !ok {
		return nil, ErrMarketNotFound
	}
	return ent, nil
}

// GetByID returns a snapshot copy of the market.
func (e *Engine) GetByID(id string) (*Market, error) {
	ent, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	return ent.m.clone(), nil
}

// GetBySymbol resolves a symbol to its market snapshot.
func (e *Engine) GetBySymbol(symbol string) (*Market, error) {
	e.mapMu.RLock()
	id, ok := e.bySym[symbol]
	e.mapMu.RUnlock()
	if !ok {
		return nil, ErrMarketNotFound
	}
	return e.GetByID(id)
}

// List returns a snapshot of every market, sorted by ID — the stable order
// cross-market jobs (funding, convergence) iterate in to avoid deadlock
// when a job also needs to touch more than one market's lock.
func (e *Engine) List() []*Market {
	e.mapMu.RLock()
	ids := make([]string, 0, len(e.entries))
	for id := range e.entries {
		ids = append(ids, id)
	}
	e.mapMu.RUnlock()
	sort.Strings(ids)

	out := make([]*Market, 0, len(ids))
	for _, id := range ids {
		if m, err := e.GetByID(id); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// WithMarket runs fn against the live market under its per-market lock,
// giving the caller a chance to preview, commit, and update OI/fees as one
// atomic step. fn mutates m in place; a returned error aborts the mutation
// (m is not persisted back by the caller in that case since the lock still
// held the pre-fn value, which WithMarket restores).
func (e *Engine) WithMarket(id string, fn func(m *Market) error) error {
	ent, err := e.lookup(id)
	if err != nil {
		return err
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()

	working := ent.m.clone()
	if err := fn(working); err != nil {
		return err
	}
	working.UpdatedAt = time.Now()
	ent.m = working
	return nil
}

// ExecuteOrder previews and commits an order of USD size sizeUSD on side
// against market id, updating reserves and open interest atomically under
// the market's lock. closing indicates whether this motion is reducing an
// existing position rather than opening new exposure.
func (e *Engine) ExecuteOrder(id string, sizeUSD decimalx.Decimal, side Side, closing bool) (PreviewResult, error) {
	var result PreviewResult
	err := e.WithMarket(id, func(m *Market) error {
		result = m.Preview(sizeUSD, side, closing)
		if err := m.Commit(result.NewBaseReserve); err != nil {
			return err
		}
		// OI always tracks the position's own side, not the order's buy/sell
		// direction against reserves.
		delta := sizeUSD
		if closing {
			delta = sizeUSD.Neg()
		}
		return m.ApplyOpenInterest(side, delta)
	})
	return result, err
}

// AddTradingFees credits the fee pot for id.
func (e *Engine) AddTradingFees(id string, amount decimalx.Decimal, asset ledger.Asset) error {
	return e.WithMarket(id, func(m *Market) error {
		m.AddTradingFees(asset, amount)
		return nil
	})
}

// ClaimFees zeros and returns the unclaimed pot for id, asset.
func (e *Engine) ClaimFees(id string, asset ledger.Asset) (decimalx.Decimal, error) {
	var claimed decimalx.Decimal
	err := e.WithMarket(id, func(m *Market) error {
		claimed = m.ClaimFees(asset)
		return nil
	})
	return claimed, err
}

// RunFundingTick re-seeds funding rate/velocity for every market from its
// current open-interest skew. Intended to be invoked once a minute by the
// scheduler.
func (e *Engine) RunFundingTick(now time.Time) {
	for _, snapshot := range e.List() {
		id := snapshot.ID
		_ = e.WithMarket(id, func(m *Market) error {
			rate, velocity := m.FundingUpdate(now)
			m.FundingRate = rate
			m.FundingRateVelocity = velocity
			m.LastUpdatedTimestamp = now
			return nil
		})
	}
}

// OraclePrice is the narrow slice of oracle.Oracle this package depends on,
// so market stays independent of the oracle package's retry/staleness
// machinery.
type OraclePrice interface {
	MarketPrice(ctx context.Context, marketID string) (decimalx.Decimal, error)
}

// RunConvergenceTick walks every market whose virtual price has drifted
// from its oracle price by at least the convergence threshold back toward
// that oracle price. Intended to run every 10s. A per-market oracle
// failure is skipped, not fatal to the tick.
func (e *Engine) RunConvergenceTick(ctx context.Context, oracle OraclePrice) {
	for _, snapshot := range e.List() {
		id := snapshot.ID
		oraclePrice, err := oracle.MarketPrice(ctx, id)
		if err != nil {
			continue
		}
		_ = e.WithMarket(id, func(m *Market) error {
			if m.NeedsConvergence(oraclePrice) {
				m.ConvergeReserves(oraclePrice)
			}
			return nil
		})
	}
}
