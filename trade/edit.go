package trade

import (
	"context"
	"time"

	"github.com/rtxlabs/vperp/decimalx"
	"github.com/rtxlabs/vperp/ledger"
)

// EditStopLoss validates and sets (or clears, if sl is nil) a position's
// stop-loss trigger. Only callable on OPEN positions.
func (e *Engine) EditStopLoss(ctx context.Context, positionID, userID string, sl *decimalx.Decimal, now time.Time) error {
	return e.positions.withPosition(positionID, userID, func(p *Position) error {
		if p.Status != StatusOpen {
			return ErrInvalidParams
		}
		if !p.ValidateStopLoss(sl) {
			return ErrInvalidParams
		}
		p.StopLossPrice = sl
		p.UpdatedAt = now
		return nil
	})
}

// EditTakeProfit validates and sets (or clears) a position's take-profit
// trigger. Only callable on OPEN positions.
func (e *Engine) EditTakeProfit(ctx context.Context, positionID, userID string, tp *decimalx.Decimal, now time.Time) error {
	return e.positions.withPosition(positionID, userID, func(p *Position) error {
		if p.Status != StatusOpen {
			return ErrInvalidParams
		}
		if !p.ValidateTakeProfit(tp) {
			return ErrInvalidParams
		}
		p.TakeProfitPrice = tp
		p.UpdatedAt = now
		return nil
	})
}

// EditMargin applies marginDelta (USD, signed) to a position's margin,
// apportioning the change across C1/C2 by the position's current
// locked-USD proportion.
func (e *Engine) EditMargin(ctx context.Context, positionID, userID string, marginDelta decimalx.Decimal, now time.Time) error {
	ent, p, err := e.positions.acquire(positionID, userID)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			ent.mu.Unlock()
		}
	}()

	if p.Status != StatusOpen {
		return ErrInvalidParams
	}

	newMargin := p.Margin.Add(marginDelta)
	if !newMargin.IsPositive() {
		return ErrLeverageOutOfBounds
	}
	newLeverage := p.Size.Div(newMargin)

	m, err := e.markets.GetByID(p.MarketID)
	if err != nil {
		return err
	}

	if marginDelta.IsNegative() && newLeverage.GreaterThan(m.MaxLeverage) {
		return ErrLeverageOutOfBounds
	}
	if marginDelta.IsPositive() && newLeverage.LessThan(decimalx.NewFromInt(1)) {
		return ErrLeverageOutOfBounds
	}

	priceC1, err := e.oracle.AssetPrice(ctx, ledger.C1)
	if err != nil {
		return err
	}
	valueC1 := p.LockedMarginC1.Mul(priceC1)
	totalLockedUSD := valueC1.Add(p.LockedMarginC2)

	var fracC1 decimalx.Decimal
	if totalLockedUSD.IsZero() {
		fracC1 = decimalx.Zero
	} else {
		fracC1 = valueC1.Div(totalLockedUSD)
	}
	deltaC1USD := marginDelta.Mul(fracC1)
	deltaC2USD := marginDelta.Sub(deltaC1USD)

	if marginDelta.IsNegative() {
		if err := e.withdrawMargin(ctx, p, priceC1, deltaC1USD, deltaC2USD); err != nil {
			return err
		}
	} else if marginDelta.IsPositive() {
		if err := e.depositMargin(ctx, p, priceC1, deltaC1USD, deltaC2USD); err != nil {
			return err
		}
	}

	p.Margin = newMargin
	p.UpdatedAt = now
	e.positions.commit(ent, p)
	committed = true
	return nil
}

func (e *Engine) withdrawMargin(ctx context.Context, p *Position, priceC1, deltaC1USD, deltaC2USD decimalx.Decimal) error {
	amountC1 := deltaC1USD.Abs().Div(priceC1)
	amountC2 := deltaC2USD.Abs()
	if amountC1.IsPositive() {
		if err := e.ledger.Release(ctx, p.UserID, ledger.C1, amountC1, decimalx.Zero); err != nil {
			return err
		}
		p.LockedMarginC1 = p.LockedMarginC1.Sub(amountC1)
	}
	if amountC2.IsPositive() {
		if err := e.ledger.Release(ctx, p.UserID, ledger.C2, amountC2, decimalx.Zero); err != nil {
			return err
		}
		p.LockedMarginC2 = p.LockedMarginC2.Sub(amountC2)
	}
	return nil
}

func (e *Engine) depositMargin(ctx context.Context, p *Position, priceC1, deltaC1USD, deltaC2USD decimalx.Decimal) error {
	amountC1 := deltaC1USD.Div(priceC1)
	amountC2 := deltaC2USD

	if amountC1.IsPositive() {
		if err := e.ledger.Lock(ctx, p.UserID, ledger.C1, amountC1); err != nil {
			return ErrInsufficientFunds
		}
		p.LockedMarginC1 = p.LockedMarginC1.Add(amountC1)
	}
	if amountC2.IsPositive() {
		if err := e.ledger.Lock(ctx, p.UserID, ledger.C2, amountC2); err != nil {
			return ErrInsufficientFunds
		}
		p.LockedMarginC2 = p.LockedMarginC2.Add(amountC2)
	}
	return nil
}
