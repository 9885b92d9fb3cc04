// Package liquidation scans every open position for under-collateralization
// and force-closes any that fall below the maintenance margin requirement.
package liquidation

import (
	"context"
	"time"

	"github.com/rtxlabs/vperp/decimalx"
	"github.com/rtxlabs/vperp/ledger"
	"github.com/rtxlabs/vperp/logging"
	"github.com/rtxlabs/vperp/market"
	"github.com/rtxlabs/vperp/trade"
)

// PositionAccessor is the slice of trade.Engine this package reads and
// force-closes through.
type PositionAccessor interface {
	ListOpenPositionIDs() []string
	GetPosition(id string) (*trade.Position, error)
	Liquidate(ctx context.Context, positionID string, now time.Time) (*trade.Trade, error)
}

// MarketsView resolves a market's maintenance margin rate.
type MarketsView interface {
	GetByID(id string) (*market.Market, error)
}

// PriceSource resolves a market's oracle price and a collateral asset's USD
// price.
type PriceSource interface {
	MarketPrice(ctx context.Context, marketID string) (decimalx.Decimal, error)
	AssetPrice(ctx context.Context, asset ledger.Asset) (decimalx.Decimal, error)
}

// Notifier is the event sink for liquidation events.
type Notifier interface {
	Notify(ctx context.Context, topic string, payload interface{})
}

// Config bundles Engine's collaborators.
type Config struct {
	Positions PositionAccessor
	Markets   MarketsView
	Oracle    PriceSource
	Notify    Notifier
	Log       *logging.Logger
}

// Engine scans open positions for liquidation eligibility.
type Engine struct {
	positions PositionAccessor
	markets   MarketsView
	oracle    PriceSource
	notify    Notifier
	log       *logging.Logger
}

// New constructs an Engine.
func New(cfg Config) *Engine {
	return &Engine{
		positions: cfg.Positions,
		markets:   cfg.Markets,
		oracle:    cfg.Oracle,
		notify:    cfg.Notify,
		log:       cfg.Log,
	}
}

// Tick scans every open position and liquidates any that are
// under-collateralized. Intended to run every 5s from the scheduler.
func (e *Engine) Tick(ctx context.Context, now time.Time) {
	for _, id := range e.positions.ListOpenPositionIDs() {
		if err := e.checkPosition(ctx, id, now); err != nil {
			e.log.Warn("liquidation: check failed for position",
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

	liquidatable, err := e.isLiquidatable(ctx, p)
	if err != nil {
		return err
	}
	if !liquidatable {
		return nil
	}

	if _, err := e.positions.Liquidate(ctx, positionID, now); err != nil {
		return err
	}
	e.notify.Notify(ctx, "liquidations", p.UserID)
	return nil
}

// isLiquidatable checks remaining collateral (locked margin plus unrealized
// PnL, both in USD) against the market's maintenance-margin requirement on
// the locked collateral.
func (e *Engine) isLiquidatable(ctx context.Context, p *trade.Position) (bool, error) {
	m, err := e.markets.GetByID(p.MarketID)
	if err != nil {
		return false, err
	}
	currentPrice, err := e.oracle.MarketPrice(ctx, m.ID)
	if err != nil {
		return false, err
	}

	priceC1, err := e.oracle.AssetPrice(ctx, ledger.C1)
	if err != nil {
		return false, err
	}

	collateralUSD := p.LockedMarginC1.Mul(priceC1).Add(p.LockedMarginC2)
	pnlUSD := p.PnlFraction(p.Size, currentPrice)
	remaining := collateralUSD.Add(pnlUSD)
	required := collateralUSD.Mul(m.MaintenanceMargin)

	return remaining.LessThan(required), nil
}

// LiquidationPrice returns the closed-form price at which positionID
// becomes liquidatable, solving remaining == required for price directly
// rather than re-deriving it from the primary collateral check. Exposed so
// the boundary is independently testable and so clients can display it.
func (e *Engine) LiquidationPrice(ctx context.Context, positionID string) (decimalx.Decimal, error) {
	p, err := e.positions.GetPosition(positionID)
	if err != nil {
		return decimalx.Zero, err
	}
	m, err := e.markets.GetByID(p.MarketID)
	if err != nil {
		return decimalx.Zero, err
	}
	priceC1, err := e.oracle.AssetPrice(ctx, ledger.C1)
	if err != nil {
		return decimalx.Zero, err
	}

	collateralUSD := p.LockedMarginC1.Mul(priceC1).Add(p.LockedMarginC2)
	allowedLossUSD := collateralUSD.Sub(collateralUSD.Mul(m.MaintenanceMargin))
	if p.Size.IsZero() {
		return decimalx.Zero, nil
	}
	priceDelta := p.EntryPrice.Mul(allowedLossUSD).Div(p.Size)

	if p.Side == market.Long {
		return p.EntryPrice.Sub(priceDelta), nil
	}
	return p.EntryPrice.Add(priceDelta), nil
}

