// Package circuitbreaker watches each market's virtual price for
// short-window volatility spikes and auto-pauses trading on it until the
// move cools off, the way an exchange halts a symbol rather than letting a
// bad print or a thin-liquidity swing cascade into liquidations.
package circuitbreaker

import (
	"context"
	"sync"
	"time"

	"github.com/rtxlabs/vperp/decimalx"
	"github.com/rtxlabs/vperp/logging"
	"github.com/rtxlabs/vperp/market"
)

// MarketsView is the slice of market.Engine this package reads and pauses.
type MarketsView interface {
	List() []*market.Market
	WithMarket(id string, fn func(m *market.Market) error) error
}

// Notifier is the event sink for halt/resume transitions.
type Notifier interface {
	Notify(ctx context.Context, topic string, payload interface{})
}

// Config bundles Engine's collaborators and thresholds.
type Config struct {
	Markets MarketsView
	Notify  Notifier
	Log     *logging.Logger

	// Window is how far back price samples are kept for the volatility
	// calculation. Defaults to 5 minutes.
	Window time.Duration
	// ThresholdPct is the fraction move within Window that trips the
	// breaker (e.g. 0.10 for 10%). Defaults to 0.10.
	ThresholdPct decimalx.Decimal
	// CoolDown is how long a market stays paused before Engine resumes it
	// automatically. Defaults to 2 minutes.
	CoolDown time.Duration
}

type sample struct {
	price decimalx.Decimal
	at    time.Time
}

type breakerState struct {
	samples  []sample
	tripped  bool
	trippedAt time.Time
}

// Engine is the per-market volatility circuit breaker. One instance covers
// every market in MarketsView.
type Engine struct {
	markets MarketsView
	notify  Notifier
	log     *logging.Logger

	window    time.Duration
	threshold decimalx.Decimal
	coolDown  time.Duration

	mu    sync.Mutex
	state map[string]*breakerState
}

// New constructs an Engine, applying defaults for any zero-value threshold
// in cfg.
func New(cfg Config) *Engine {
	window := cfg.Window
	if window <= 0 {
		window = 5 * time.Minute
	}
	threshold := cfg.ThresholdPct
	if threshold.IsZero() {
		threshold = decimalx.MustParse("0.10")
	}
	coolDown := cfg.CoolDown
	if coolDown <= 0 {
		coolDown = 2 * time.Minute
	}
	return &Engine{
		markets:   cfg.Markets,
		notify:    cfg.Notify,
		log:       cfg.Log,
		window:    window,
		threshold: threshold,
		coolDown:  coolDown,
		state:     make(map[string]*breakerState),
	}
}

// Tick records each market's current virtual price, trips the breaker
// (pausing the market) on a move past the threshold within the window, and
// resumes any previously tripped market whose cool-down has elapsed.
// Intended to run from the scheduler at a short, fixed interval.
func (e *Engine) Tick(ctx context.Context, now time.Time) {
	for _, m := range e.markets.List() {
		e.check(ctx, m, now)
	}
}

func (e *Engine) check(ctx context.Context, m *market.Market, now time.Time) {
	e.mu.Lock()
	st, ok := e.state[m.ID]
	if !ok {
		st = &breakerState{}
		e.state[m.ID] = st
	}

	current := m.VirtualPrice()
	st.samples = append(st.samples, sample{price: current, at: now})
	cutoff := now.Add(-e.window)
	kept := st.samples[:0]
	for _, s := range st.samples {
		if s.at.After(cutoff) {
			kept = append(kept, s)
		}
	}
	st.samples = kept

	if st.tripped {
		if now.Sub(st.trippedAt) >= e.coolDown {
			st.tripped = false
			e.mu.Unlock()
			e.resume(ctx, m.ID)
			return
		}
		e.mu.Unlock()
		return
	}

	oldest := st.samples[0].price
	e.mu.Unlock()

	if oldest.IsZero() {
		return
	}
	move := current.Sub(oldest).Abs().Div(oldest)
	if !move.GreaterThan(e.threshold) {
		return
	}

	e.mu.Lock()
	st.tripped = true
	st.trippedAt = now
	e.mu.Unlock()
	e.trip(ctx, m.ID, move)
}

func (e *Engine) trip(ctx context.Context, marketID string, move decimalx.Decimal) {
	err := e.markets.WithMarket(marketID, func(m *market.Market) error {
		m.Status = market.StatusPaused
		return nil
	})
	if err != nil {
		e.log.Warn("circuitbreaker: failed to pause market",
			logging.MarketID(marketID),
			logging.String("err", err.Error()),
		)
		return
	}
	e.log.Warn("circuitbreaker: tripped, market paused",
		logging.MarketID(marketID),
		logging.String("move", move.String()),
	)
	e.notify.Notify(ctx, "circuit_breaker_tripped", marketID)
}

func (e *Engine) resume(ctx context.Context, marketID string) {
	err := e.markets.WithMarket(marketID, func(m *market.Market) error {
		if m.Status == market.StatusPaused {
			m.Status = market.StatusActive
		}
		return nil
	})
	if err != nil {
		e.log.Warn("circuitbreaker: failed to resume market",
			logging.MarketID(marketID),
			logging.String("err", err.Error()),
		)
		return
	}
	e.log.Info("circuitbreaker: cool-down elapsed, market resumed", logging.MarketID(marketID))
	e.notify.Notify(ctx, "circuit_breaker_reset", marketID)
}
