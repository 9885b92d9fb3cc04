// Package trigger scans open positions for stop-loss/take-profit hits and
// closes them through the trade engine when the current price crosses.
package trigger

import (
	"context"
	"time"

	"github.com/rtxlabs/vperp/decimalx"
	"github.com/rtxlabs/vperp/logging"
	"github.com/rtxlabs/vperp/market"
	"github.com/rtxlabs/vperp/trade"
)

// PositionAccessor is the slice of trade.Engine this package reads and
// closes through.
type PositionAccessor interface {
	ListOpenPositionIDs() []string
	GetPosition(id string) (*trade.Position, error)
	Close(ctx context.Context, positionID, userID string, sizeDelta decimalx.Decimal, now time.Time) (*trade.Trade, error)
}

// MarketsView resolves a market's current virtual price.
type MarketsView interface {
	GetByID(id string) (*market.Market, error)
}

// Notifier is the event sink for stop-loss/take-profit fires.
type Notifier interface {
	Notify(ctx context.Context, topic string, payload interface{})
}

// Config bundles Engine's collaborators.
type Config struct {
	Positions PositionAccessor
	Markets   MarketsView
	Notify    Notifier
	Log       *logging.Logger
}

// Engine scans open positions for stop-loss/take-profit execution.
type Engine struct {
	positions PositionAccessor
	markets   MarketsView
	notify    Notifier
	log       *logging.Logger
}

// New constructs an Engine.
func New(cfg Config) *Engine {
	return &Engine{
		positions: cfg.Positions,
		markets:   cfg.Markets,
		notify:    cfg.Notify,
		log:       cfg.Log,
	}
}

// Tick scans every open position with a set stop-loss or take-profit and
// closes any whose trigger the current virtual price has crossed. Intended
// to run every 10s from the scheduler.
func (e *Engine) Tick(ctx context.Context, now time.Time) {
	for _, id := range e.positions.ListOpenPositionIDs() {
		if err := e.checkPosition(ctx, id, now); err != nil {
			e.log.Warn("trigger: check failed for position",
				logging.PositionID(id),
				logging.String("err", err.Error()),
			)
		}
	}
}

func (e *Engine) checkPosition(ctx context.Context, positionID string, now time.Time) error {
	p, err := e.positions.GetPosition(positionID)
	if err != nil {
		return err
	}
	if p.Status != trade.StatusOpen {
		return nil
	}
	if p.StopLossPrice == nil && p.TakeProfitPrice == nil {
		return nil
	}

	m, err := e.markets.GetByID(p.MarketID)
	if err != nil {
		return err
	}
	current := m.VirtualPrice()

	if !p.StopLossTriggered(current) && !p.TakeProfitTriggered(current) {
		return nil
	}

	if _, err := e.positions.Close(ctx, positionID, p.UserID, p.Size, now); err != nil {
		return err
	}
	e.notify.Notify(ctx, "stop_triggers", p.UserID)
	return nil
}
