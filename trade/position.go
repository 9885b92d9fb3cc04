// Package trade implements position lifecycle: opening, closing (full and
// partial), margin and stop-loss/take-profit edits, and the PnL and
// collateral-split arithmetic that ties a position to the margin ledger.
package trade

import (
	"time"

	"github.com/rtxlabs/vperp/decimalx"
	"github.com/rtxlabs/vperp/ledger"
	"github.com/rtxlabs/vperp/market"
)

// Status is a position's lifecycle state.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusClosed     Status = "CLOSED"
	StatusLiquidated Status = "LIQUIDATED"
)

// TradingFeeRate is the default taker fee, expressed as a fraction of
// notional, charged on open. Closes and liquidations charge no fee and
// record a zero Trade.Fee.
var TradingFeeRate = decimalx.MustParse("0.001")

// Position is one row of user exposure against a market.
type Position struct {
	ID       string
	UserID   string
	MarketID string
	Symbol   string
	Side     market.Side

	Size       decimalx.Decimal // USD notional
	EntryPrice decimalx.Decimal
	Leverage   decimalx.Decimal
	Margin     decimalx.Decimal // USD, = size/leverage at open
	Token      ledger.Asset

	LockedMarginC1 decimalx.Decimal
	LockedMarginC2 decimalx.Decimal

	StopLossPrice   *decimalx.Decimal
	TakeProfitPrice *decimalx.Decimal

	AccumulatedFunding   decimalx.Decimal
	AccumulatedBorrowing decimalx.Decimal
	LastFundingUpdate    time.Time
	LastBorrowingUpdate  time.Time

	Status Status

	ClosedAt     *time.Time
	ClosingPrice *decimalx.Decimal
	RealizedPnl  *decimalx.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Position) clone() *Position {
	cp := *p
	if p.StopLossPrice != nil {
		v := *p.StopLossPrice
		cp.StopLossPrice = &v
	}
	if p.TakeProfitPrice != nil {
		v := *p.TakeProfitPrice
		cp.TakeProfitPrice = &v
	}
	if p.ClosedAt != nil {
		v := *p.ClosedAt
		cp.ClosedAt = &v
	}
	if p.ClosingPrice != nil {
		v := *p.ClosingPrice
		cp.ClosingPrice = &v
	}
	if p.RealizedPnl != nil {
		v := *p.RealizedPnl
		cp.RealizedPnl = &v
	}
	return &cp
}

// CurrentLeverage is size/margin, recomputed from locked state rather than
// stored redundantly after an editMargin.
func (p *Position) CurrentLeverage() decimalx.Decimal {
	return p.Size.Div(p.Margin)
}

// PnlFraction computes signed realized PnL in USD for a
// close of sizeDelta at executionPrice: for LONG,
// sizeDelta*(executionPrice-entryPrice)/entryPrice; SHORT is the negation.
func (p *Position) PnlFraction(sizeDelta, executionPrice decimalx.Decimal) decimalx.Decimal {
	delta := executionPrice.Sub(p.EntryPrice).Div(p.EntryPrice)
	pnl := sizeDelta.Mul(delta)
	if p.Side == market.Short {
		return pnl.Neg()
	}
	return pnl
}

// ValidateStopLoss checks a candidate SL against side/entry ordering; nil
// (clearing the trigger) is always valid.
func (p *Position) ValidateStopLoss(sl *decimalx.Decimal) bool {
	if sl == nil {
		return true
	}
	if p.Side == market.Long {
		return sl.LessThan(p.EntryPrice)
	}
	return sl.GreaterThan(p.EntryPrice)
}

// ValidateTakeProfit checks a candidate TP against side/entry ordering;
// nil (clearing the trigger) is always valid.
func (p *Position) ValidateTakeProfit(tp *decimalx.Decimal) bool {
	if tp == nil {
		return true
	}
	if p.Side == market.Long {
		return tp.GreaterThan(p.EntryPrice)
	}
	return tp.LessThan(p.EntryPrice)
}

// StopLossTriggered reports whether current price has crossed the SL.
func (p *Position) StopLossTriggered(current decimalx.Decimal) bool {
	if p.StopLossPrice == nil {
		return false
	}
	if p.Side == market.Long {
		return current.LessThanOrEqual(*p.StopLossPrice)
	}
	return current.GreaterThanOrEqual(*p.StopLossPrice)
}

// TakeProfitTriggered reports whether current price has crossed the TP.
func (p *Position) TakeProfitTriggered(current decimalx.Decimal) bool {
	if p.TakeProfitPrice == nil {
		return false
	}
	if p.Side == market.Long {
		return current.GreaterThanOrEqual(*p.TakeProfitPrice)
	}
	return current.LessThanOrEqual(*p.TakeProfitPrice)
}

// CollateralSplit apportions a USD pnl amount across the position's two
// locked-margin assets, weighted by each asset's USD value among the
// released amounts. When the total released USD value is zero, both
// shares are zero rather than dividing by zero.
func CollateralSplit(pnlUSD, releaseC1, releaseC2, priceC1 decimalx.Decimal) (shareC1, shareC2 decimalx.Decimal) {
	valueC1 := releaseC1.Mul(priceC1)
	total := valueC1.Add(releaseC2)
	if total.IsZero() {
		return decimalx.Zero, decimalx.Zero
	}
	shareC1 = pnlUSD.Mul(valueC1.Div(total)).Div(priceC1)
	shareC2 = pnlUSD.Mul(releaseC2.Div(total))
	return shareC1, shareC2
}
