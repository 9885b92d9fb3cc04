package trade

import (
	"context"
	"time"

	"github.com/rtxlabs/vperp/decimalx"
	"github.com/rtxlabs/vperp/ledger"
)

// Liquidate force-closes positionID at the market's current execution
// price. Unlike Close, the entire remaining collateral is retained by the
// market's fee pots rather than credited back to the user — realizedPnl is
// recorded as zero. Callable by the liquidation scan only; there is no
// ownership check (the caller is the system, not the position's owner).
func (e *Engine) Liquidate(ctx context.Context, positionID string, now time.Time) (*Trade, error) {
	ent, current, err := e.positions.acquire(positionID, "")
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			ent.mu.Unlock()
		}
	}()

	if current.Status != StatusOpen {
		return nil, ErrInvalidParams
	}

	originalSize := current.Size

	preview, err := e.markets.ExecuteOrder(current.MarketID, current.Size, current.Side, true)
	if err != nil {
		return nil, err
	}
	executionPrice := preview.ExecutionPrice

	if current.LockedMarginC1.IsPositive() {
		if err := e.ledger.ReduceLocked(ctx, current.UserID, ledger.C1, current.LockedMarginC1); err != nil {
			return nil, err
		}
		if err := e.markets.AddTradingFees(current.MarketID, current.LockedMarginC1, ledger.C1); err != nil {
			return nil, err
		}
	}
	if current.LockedMarginC2.IsPositive() {
		if err := e.ledger.ReduceLocked(ctx, current.UserID, ledger.C2, current.LockedMarginC2); err != nil {
			return nil, err
		}
		if err := e.markets.AddTradingFees(current.MarketID, current.LockedMarginC2, ledger.C2); err != nil {
			return nil, err
		}
	}

	zeroPnl := decimalx.Zero
	t := now
	cp := executionPrice

	current.RealizedPnl = &zeroPnl
	current.ClosedAt = &t
	current.ClosingPrice = &cp
	current.LockedMarginC1 = decimalx.Zero
	current.LockedMarginC2 = decimalx.Zero
	current.Size = decimalx.Zero
	current.Status = StatusLiquidated
	current.UpdatedAt = now

	e.positions.commit(ent, current)
	committed = true

	tr := &Trade{
		ID:          e.newID(),
		PositionID:  positionID,
		UserID:      current.UserID,
		MarketID:    current.MarketID,
		Side:        current.Side,
		Size:        originalSize,
		Price:       executionPrice,
		Leverage:    current.Leverage,
		RealizedPnl: &zeroPnl,
		Fee:         decimalx.Zero,
		CreatedAt:   now,
	}

	e.notify.Notify(ctx, "liquidations", current.UserID)
	e.recordTrade(tr)
	return tr, nil
}
