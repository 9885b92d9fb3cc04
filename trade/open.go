package trade

import (
	"context"
	"time"

	"github.com/rtxlabs/vperp/apperror"
	"github.com/rtxlabs/vperp/decimalx"
	"github.com/rtxlabs/vperp/ledger"
	"github.com/rtxlabs/vperp/market"
)

var (
	ErrInvalidParams        = apperror.New(apperror.Validation, "InvalidParams", "invalid order parameters")
	ErrInsufficientMargin   = apperror.New(apperror.Validation, "InsufficientMargin", "available balance cannot cover required margin")
	ErrSlippageExceeded     = apperror.New(apperror.Validation, "SlippageExceeded", "price impact exceeds the requested slippage bound")
	ErrLeverageOutOfBounds  = apperror.New(apperror.Validation, "LeverageOutOfBounds", "resulting leverage is out of bounds")
	ErrInsufficientFunds    = apperror.New(apperror.Validation, "InsufficientFunds", "insufficient funds for margin deposit")
	ErrOrderNotCancellable  = apperror.New(apperror.Conflict, "OrderNotCancellable", "order is not in a cancellable state")
)

// OpenRequest is the openPosition input.
type OpenRequest struct {
	UserID          string
	MarketID        string
	Side            market.Side
	Size            decimalx.Decimal // USD notional
	Leverage        decimalx.Decimal
	Token           ledger.Asset
	MaxSlippage     decimalx.Decimal
	StopLossPrice   *decimalx.Decimal
	TakeProfitPrice *decimalx.Decimal
}

// Open opens a new position per req, following the pipeline: validate →
// preview execution price → check slippage → size margin → check user
// balance → deduct fee → lock margin → commit reserves/OI → insert
// position → notify.
func (e *Engine) Open(ctx context.Context, req OpenRequest, now time.Time) (*Position, error) {
	if req.Size.IsZero() || req.Leverage.IsZero() {
		return nil, ErrInvalidParams
	}

	m, err := e.markets.GetByID(req.MarketID)
	if err != nil {
		return nil, err
	}
	if req.Leverage.GreaterThan(m.MaxLeverage) {
		return nil, ErrLeverageOutOfBounds
	}
	if req.Size.Add(m.LongOpenInterest).Add(m.ShortOpenInterest).GreaterThan(m.AvailableLiquidity) {
		return nil, market.ErrLiquidityCap
	}

	preview := m.Preview(req.Size, req.Side, false)
	if preview.PriceImpact.Abs().GreaterThan(req.MaxSlippage) {
		return nil, ErrSlippageExceeded
	}

	requiredMarginUSD := req.Size.Div(req.Leverage)

	availableUSD, err := e.availableBalanceUSD(ctx, req.UserID, req.Token)
	if err != nil {
		return nil, err
	}
	if availableUSD.LessThan(requiredMarginUSD) {
		return nil, ErrInsufficientMargin
	}

	tokenPrice, err := e.priceOf(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	amountToLock := requiredMarginUSD
	if req.Token == ledger.C1 {
		amountToLock = requiredMarginUSD.Div(tokenPrice)
	}

	feeUSD := req.Size.Mul(TradingFeeRate)
	feeInToken, err := e.feeInAsset(ctx, feeUSD, req.Token)
	if err != nil {
		return nil, err
	}
	amountToLock = amountToLock.Sub(feeInToken)

	if err := e.ledger.Deduct(ctx, req.UserID, req.Token, feeInToken); err != nil {
		return nil, err
	}
	if err := e.markets.AddTradingFees(req.MarketID, feeInToken, req.Token); err != nil {
		return nil, err
	}
	if err := e.ledger.Lock(ctx, req.UserID, req.Token, amountToLock); err != nil {
		return nil, err
	}

	if _, err := e.markets.ExecuteOrder(req.MarketID, req.Size, req.Side, false); err != nil {
		return nil, err
	}

	p := &Position{
		ID:         e.newID(),
		UserID:     req.UserID,
		MarketID:   req.MarketID,
		Symbol:     m.Symbol,
		Side:       req.Side,
		Size:       req.Size,
		EntryPrice: preview.ExecutionPrice,
		Leverage:   req.Leverage,
		Margin:     requiredMarginUSD,
		Token:      req.Token,

		StopLossPrice:   req.StopLossPrice,
		TakeProfitPrice: req.TakeProfitPrice,

		AccumulatedFunding:   decimalx.Zero,
		AccumulatedBorrowing: decimalx.Zero,
		LastFundingUpdate:    now,
		LastBorrowingUpdate:  now,

		Status: StatusOpen,

		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Token == ledger.C1 {
		p.LockedMarginC1 = amountToLock
		p.LockedMarginC2 = decimalx.Zero
	} else {
		p.LockedMarginC1 = decimalx.Zero
		p.LockedMarginC2 = amountToLock
	}

	if !p.ValidateStopLoss(p.StopLossPrice) || !p.ValidateTakeProfit(p.TakeProfitPrice) {
		return nil, ErrInvalidParams
	}

	e.positions.insert(p)
	e.notify.Notify(ctx, "positions", p.UserID)

	return p.clone(), nil
}

// availableBalanceUSD converts a user's available token balance to USD,
// using PriceOf(C1) when token is C1 and the $1 peg when token is C2.
func (e *Engine) availableBalanceUSD(ctx context.Context, userID string, token ledger.Asset) (decimalx.Decimal, error) {
	bal, err := e.ledger.Balance(ctx, userID, token)
	if err != nil {
		return decimalx.Zero, err
	}
	if token == ledger.C2 {
		return bal.Available, nil
	}
	price, err := e.oracle.AssetPrice(ctx, ledger.C1)
	if err != nil {
		return decimalx.Zero, err
	}
	return bal.Available.Mul(price), nil
}
