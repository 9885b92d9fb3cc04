// Package feeaccrual periodically advances every open position's
// accumulated funding and borrowing fees, moving value between locked
// margin and the owning market's fee pots.
package feeaccrual

import (
	"context"
	"time"

	"github.com/rtxlabs/vperp/decimalx"
	"github.com/rtxlabs/vperp/ledger"
	"github.com/rtxlabs/vperp/logging"
	"github.com/rtxlabs/vperp/market"
	"github.com/rtxlabs/vperp/trade"
)

const secondsPerDay = 86400

var oneSecond = decimalx.NewFromInt(1)

// PositionAccessor is the slice of trade.Engine this package mutates.
type PositionAccessor interface {
	ListOpenPositionIDs() []string
	MutatePosition(id string, fn func(p *trade.Position) error) error
}

// MarketsView is the slice of market.Engine this package reads/writes.
type MarketsView interface {
	GetByID(id string) (*market.Market, error)
	AddTradingFees(id string, amount decimalx.Decimal, asset ledger.Asset) error
}

// PriceSource resolves a collateral asset's USD price.
type PriceSource interface {
	AssetPrice(ctx context.Context, asset ledger.Asset) (decimalx.Decimal, error)
}

// Notifier is the event sink for fee-charged events.
type Notifier interface {
	Notify(ctx context.Context, topic string, payload interface{})
}

// Config bundles Engine's collaborators.
type Config struct {
	Positions PositionAccessor
	Markets   MarketsView
	Ledger    ledger.Ledger
	Oracle    PriceSource
	Notify    Notifier
	Log       *logging.Logger
}

// Engine ticks every open position's funding and borrowing accrual.
type Engine struct {
	positions PositionAccessor
	markets   MarketsView
	ledger    ledger.Ledger
	oracle    PriceSource
	notify    Notifier
	log       *logging.Logger
}

// New constructs an Engine.
func New(cfg Config) *Engine {
	return &Engine{
		positions: cfg.Positions,
		markets:   cfg.Markets,
		ledger:    cfg.Ledger,
		oracle:    cfg.Oracle,
		notify:    cfg.Notify,
		log:       cfg.Log,
	}
}

// Tick charges funding and borrowing fees for every open position. Intended
// to run every 5s from the scheduler.
func (e *Engine) Tick(ctx context.Context, now time.Time) {
	for _, id := range e.positions.ListOpenPositionIDs() {
		if err := e.accruePosition(ctx, id, now); err != nil {
			e.log.Warn("feeaccrual: tick failed for position",
				logging.PositionID(id),
				logging.String("err", err.Error()),
			)
		}
	}
}

func (e *Engine) accruePosition(ctx context.Context, positionID string, now time.Time) error {
	return e.positions.MutatePosition(positionID, func(p *trade.Position) error {
		m, err := e.markets.GetByID(p.MarketID)
		if err != nil {
			return err
		}
		price, err := e.priceOf(ctx, p.Token)
		if err != nil {
			return err
		}

		if err := e.accrueBorrowing(ctx, p, m, price, now); err != nil {
			return err
		}
		return e.accrueFunding(ctx, p, m, price, now)
	})
}

// accrueBorrowing charges a position's borrowing fee — always a cost to the
// holder, regardless of side — from locked margin into the market's fee
// pot. lastBorrowingUpdate advances even when the computed fee is zero, so
// a later rate change integrates over the correct interval.
func (e *Engine) accrueBorrowing(ctx context.Context, p *trade.Position, m *market.Market, price decimalx.Decimal, now time.Time) error {
	elapsed := elapsedSeconds(p.LastBorrowingUpdate, now)
	if elapsed.LessThan(oneSecond) {
		return nil
	}

	feeUSD := p.Size.Mul(m.BorrowingRate).Mul(elapsed.Div(decimalx.NewFromInt(secondsPerDay)))
	feeToken := feeUSD.Div(price)

	if feeToken.IsPositive() {
		if err := e.reduceLocked(ctx, p, feeToken); err != nil {
			return err
		}
		if err := e.markets.AddTradingFees(p.MarketID, feeToken, p.Token); err != nil {
			return err
		}
	}

	p.AccumulatedBorrowing = p.AccumulatedBorrowing.Add(feeToken)
	p.LastBorrowingUpdate = now
	e.notify.Notify(ctx, "borrowingFeeCharged", p.ID)
	return nil
}

// accrueFunding applies the funding payment: LONG pays when the market's
// funding rate is positive, SHORT receives. lastFundingUpdate advances even
// when signedFee is zero, for the same reason as accrueBorrowing.
func (e *Engine) accrueFunding(ctx context.Context, p *trade.Position, m *market.Market, price decimalx.Decimal, now time.Time) error {
	elapsed := elapsedSeconds(p.LastFundingUpdate, now)
	if elapsed.LessThan(oneSecond) {
		return nil
	}

	rate := m.CurrentFundingRate(now)
	fundingUSD := p.Size.Mul(rate).Mul(elapsed.Div(decimalx.NewFromInt(secondsPerDay)))

	signedFee := fundingUSD
	if p.Side == market.Short {
		signedFee = fundingUSD.Neg()
	}
	feeToken := signedFee.Div(price)

	switch {
	case signedFee.IsPositive():
		if err := e.reduceLocked(ctx, p, feeToken); err != nil {
			return err
		}
		if err := e.markets.AddTradingFees(p.MarketID, feeToken, p.Token); err != nil {
			return err
		}
	case signedFee.IsNegative():
		if err := e.addLocked(ctx, p, feeToken.Neg()); err != nil {
			return err
		}
	}

	p.AccumulatedFunding = p.AccumulatedFunding.Add(feeToken)
	p.LastFundingUpdate = now
	e.notify.Notify(ctx, "fundingFeeCharged", p.ID)
	return nil
}

// reduceLocked pulls amount of p's locked margin (native token units) out of
// the user's ledger entry and mirrors the reduction onto p's own
// locked-margin snapshot, keeping the two in sync.
func (e *Engine) reduceLocked(ctx context.Context, p *trade.Position, amount decimalx.Decimal) error {
	if err := e.ledger.ReduceLocked(ctx, p.UserID, p.Token, amount); err != nil {
		return err
	}
	if p.Token == ledger.C1 {
		p.LockedMarginC1 = p.LockedMarginC1.Sub(amount)
	} else {
		p.LockedMarginC2 = p.LockedMarginC2.Sub(amount)
	}
	return nil
}

// addLocked credits amount of p's locked margin back — used when a
// position receives a funding payment rather than paying one.
func (e *Engine) addLocked(ctx context.Context, p *trade.Position, amount decimalx.Decimal) error {
	if err := e.ledger.AddLocked(ctx, p.UserID, p.Token, amount); err != nil {
		return err
	}
	if p.Token == ledger.C1 {
		p.LockedMarginC1 = p.LockedMarginC1.Add(amount)
	} else {
		p.LockedMarginC2 = p.LockedMarginC2.Add(amount)
	}
	return nil
}

func (e *Engine) priceOf(ctx context.Context, asset ledger.Asset) (decimalx.Decimal, error) {
	if asset == ledger.C2 {
		return decimalx.NewFromInt(1), nil
	}
	return e.oracle.AssetPrice(ctx, asset)
}

func elapsedSeconds(last, now time.Time) decimalx.Decimal {
	return decimalx.MustParse(formatSeconds(now.Sub(last).Seconds()))
}

// formatSeconds renders elapsed wall-clock seconds without scientific
// notation; sub-millisecond precision doesn't matter to fee accrual.
func formatSeconds(s float64) string {
	return decimalx.NewFromInt(int64(s * 1000)).Div(decimalx.NewFromInt(1000)).String()
}
