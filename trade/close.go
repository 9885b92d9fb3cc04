package trade

import (
	"context"
	"time"

	"github.com/rtxlabs/vperp/decimalx"
	"github.com/rtxlabs/vperp/ledger"
)

// Close closes sizeDelta of positionID's notional (full if sizeDelta
// equals the remaining size), realizing PnL and releasing margin
// proportionally.
func (e *Engine) Close(ctx context.Context, positionID, userID string, sizeDelta decimalx.Decimal, now time.Time) (*Trade, error) {
	ent, current, err := e.positions.acquire(positionID, userID)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			ent.mu.Unlock()
		}
	}()

	if sizeDelta.IsZero() || sizeDelta.IsNegative() || sizeDelta.GreaterThan(current.Size) {
		return nil, ErrInvalidParams
	}

	isFull := sizeDelta.Equal(current.Size)

	preview, err := e.markets.ExecuteOrder(current.MarketID, sizeDelta, current.Side, true)
	if err != nil {
		return nil, err
	}
	executionPrice := preview.ExecutionPrice

	realizedPnlUSD := current.PnlFraction(sizeDelta, executionPrice)

	priceC1, err := e.oracle.AssetPrice(ctx, ledger.C1)
	if err != nil {
		return nil, err
	}

	fraction := sizeDelta.Div(current.Size)
	releaseC1 := current.LockedMarginC1.Mul(fraction)
	releaseC2 := current.LockedMarginC2.Mul(fraction)
	shareC1, shareC2 := CollateralSplit(realizedPnlUSD, releaseC1, releaseC2, priceC1)

	if err := e.settleRelease(ctx, current.UserID, ledger.C1, current.LockedMarginC1, releaseC1, shareC1, isFull); err != nil {
		return nil, err
	}
	if err := e.settleRelease(ctx, current.UserID, ledger.C2, current.LockedMarginC2, releaseC2, shareC2, isFull); err != nil {
		return nil, err
	}

	var realizedPnl *decimalx.Decimal
	var closedAt *time.Time
	var closingPrice *decimalx.Decimal
	newStatus := current.Status
	newSize := current.Size.Sub(sizeDelta)
	newLockedC1 := current.LockedMarginC1.Sub(releaseC1)
	newLockedC2 := current.LockedMarginC2.Sub(releaseC2)

	if isFull {
		pnl := realizedPnlUSD
		realizedPnl = &pnl
		t := now
		closedAt = &t
		cp := executionPrice
		closingPrice = &cp
		newStatus = StatusClosed
		newLockedC1 = decimalx.Zero
		newLockedC2 = decimalx.Zero
		newSize = decimalx.Zero
	}

	current.Size = newSize
	current.LockedMarginC1 = newLockedC1
	current.LockedMarginC2 = newLockedC2
	current.Status = newStatus
	current.ClosedAt = closedAt
	current.ClosingPrice = closingPrice
	current.RealizedPnl = realizedPnl
	current.UpdatedAt = now

	e.positions.commit(ent, current)
	committed = true

	tr := &Trade{
		ID:             e.newID(),
		PositionID:     positionID,
		UserID:         current.UserID,
		MarketID:       current.MarketID,
		Side:           current.Side,
		Size:           sizeDelta,
		Price:          executionPrice,
		Leverage:       current.Leverage,
		RealizedPnl:    &realizedPnlUSD,
		Fee:            decimalx.Zero,
		IsPartialClose: !isFull,
		CreatedAt:      now,
	}

	e.stats.RecordVolume(ctx, current.MarketID, sizeDelta.Mul(decimalx.NewFromInt(2)))
	e.notify.Notify(ctx, "positions", current.UserID)
	e.recordTrade(tr)

	return tr, nil
}

// settleRelease applies a close's margin release for one asset. On a full
// close the entire original lock is released with its PnL share applied.
// On a partial close the entire original lock is released the same way,
// then originalLock-release is re-locked — net effect: the proportional
// release plus its PnL share lands in available, and the untouched
// remainder stays locked.
func (e *Engine) settleRelease(ctx context.Context, userID string, asset ledger.Asset, originalLock, release, pnlShare decimalx.Decimal, isFull bool) error {
	if originalLock.IsZero() && pnlShare.IsZero() {
		return nil
	}
	if err := e.ledger.Release(ctx, userID, asset, originalLock, pnlShare); err != nil {
		return err
	}
	if isFull {
		return nil
	}
	remainder := originalLock.Sub(release)
	if remainder.IsZero() {
		return nil
	}
	return e.ledger.Lock(ctx, userID, asset, remainder)
}
