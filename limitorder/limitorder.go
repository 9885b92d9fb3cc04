// Package limitorder holds resting limit orders and fires them through the
// trade engine once the market's virtual price crosses their trigger.
package limitorder

import (
	"context"
	"sync"
	"time"

	"github.com/rtxlabs/vperp/apperror"
	"github.com/rtxlabs/vperp/decimalx"
	"github.com/rtxlabs/vperp/ledger"
	"github.com/rtxlabs/vperp/logging"
	"github.com/rtxlabs/vperp/market"
	"github.com/rtxlabs/vperp/trade"
)

// Status is a LimitOrder's lifecycle state.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusFilled    Status = "FILLED"
	StatusCancelled Status = "CANCELLED"
)

var (
	ErrInvalidParams = apperror.New(apperror.Validation, "InvalidParams", "invalid limit order parameters")
	ErrMarketNotFound = apperror.New(apperror.NotFound, "MarketNotFound", "no market for that symbol")
	ErrOrderNotFound  = apperror.New(apperror.NotFound, "OrderNotFound", "limit order not found")
	ErrNotOrderOwner  = apperror.New(apperror.Unauthorized, "NotOrderOwner", "caller does not own this limit order")
	ErrOrderNotOpen   = apperror.New(apperror.Conflict, "OrderNotOpen", "limit order is not OPEN")
)

// LimitOrder is a resting order that fires when price crosses LimitPrice.
type LimitOrder struct {
	ID             string
	UserID         string
	MarketID       string
	Symbol         string
	Side           market.Side
	Size           decimalx.Decimal // USD notional
	LimitPrice     decimalx.Decimal
	Leverage       decimalx.Decimal
	Token          ledger.Asset
	MaxSlippage    decimalx.Decimal
	RequiredMargin decimalx.Decimal // USD, snapshotted at creation

	Status      Status
	CreatedAt   time.Time
	TriggeredAt *time.Time
}

func (o *LimitOrder) clone() *LimitOrder {
	c := *o
	if o.TriggeredAt != nil {
		t := *o.TriggeredAt
		c.TriggeredAt = &t
	}
	return &c
}

// PositionOpener is the trade.Engine slice this package opens fills through.
type PositionOpener interface {
	Open(ctx context.Context, req trade.OpenRequest, now time.Time) (*trade.Position, error)
}

// MarketsView resolves a market by ID or symbol and its current virtual price.
type MarketsView interface {
	GetByID(id string) (*market.Market, error)
	GetBySymbol(symbol string) (*market.Market, error)
}

// LedgerView is used to re-validate a user's balance at creation time.
type LedgerView interface {
	Balance(ctx context.Context, userID string, asset ledger.Asset) (ledger.Balance, error)
}

// PriceSource converts a collateral asset to its USD price.
type PriceSource interface {
	AssetPrice(ctx context.Context, asset ledger.Asset) (decimalx.Decimal, error)
}

// Notifier is the event sink for order lifecycle events.
type Notifier interface {
	Notify(ctx context.Context, topic string, payload interface{})
}

// IDGenerator mints new order IDs.
type IDGenerator func() string

// Config bundles Engine's collaborators.
type Config struct {
	Positions PositionOpener
	Markets   MarketsView
	Ledger    LedgerView
	Oracle    PriceSource
	Notify    Notifier
	NewID     IDGenerator
	Log       *logging.Logger
}

// Engine holds resting limit orders and scans them for execution.
type Engine struct {
	positions PositionOpener
	markets   MarketsView
	ledger    LedgerView
	oracle    PriceSource
	notify    Notifier
	newID     IDGenerator
	log       *logging.Logger

	mu     sync.RWMutex
	orders map[string]*LimitOrder
}

// New constructs an Engine over an empty in-memory order store.
func New(cfg Config) *Engine {
	return &Engine{
		positions: cfg.Positions,
		markets:   cfg.Markets,
		ledger:    cfg.Ledger,
		oracle:    cfg.Oracle,
		notify:    cfg.Notify,
		newID:     cfg.NewID,
		log:       cfg.Log,
		orders:    make(map[string]*LimitOrder),
	}
}

// CreateRequest is the Create input.
type CreateRequest struct {
	UserID      string
	Symbol      string
	Side        market.Side
	Size        decimalx.Decimal
	LimitPrice  decimalx.Decimal
	Leverage    decimalx.Decimal
	Token       ledger.Asset
	MaxSlippage decimalx.Decimal
}

// Create validates req, looks up the market by symbol, and inserts an OPEN
// resting order. Mirrors TradeEngine.Open's validate → balance-check shape,
// but stops short of touching the ledger — funds are only locked when the
// order actually fires.
func (e *Engine) Create(ctx context.Context, req CreateRequest, now time.Time) (*LimitOrder, error) {
	if req.Size.IsZero() || req.Leverage.IsZero() || !req.Leverage.IsPositive() || req.LimitPrice.IsZero() {
		return nil, ErrInvalidParams
	}

	m, err := e.markets.GetBySymbol(req.Symbol)
	if err != nil {
		return nil, ErrMarketNotFound
	}
	if req.Leverage.GreaterThan(m.MaxLeverage) {
		return nil, ErrInvalidParams
	}

	requiredMarginUSD := req.Size.Div(req.Leverage)

	availableUSD, err := e.availableBalanceUSD(ctx, req.UserID, req.Token)
	if err != nil {
		return nil, err
	}
	if availableUSD.LessThan(requiredMarginUSD) {
		return nil, trade.ErrInsufficientMargin
	}

	o := &LimitOrder{
		ID:             e.newID(),
		UserID:         req.UserID,
		MarketID:       m.ID,
		Symbol:         m.Symbol,
		Side:           req.Side,
		Size:           req.Size,
		LimitPrice:     req.LimitPrice,
		Leverage:       req.Leverage,
		Token:          req.Token,
		MaxSlippage:    req.MaxSlippage,
		RequiredMargin: requiredMarginUSD,
		Status:         StatusOpen,
		CreatedAt:      now,
	}

	e.mu.Lock()
	e.orders[o.ID] = o
	e.mu.Unlock()

	e.notify.Notify(ctx, "limit_orders", o.UserID)
	return o.clone(), nil
}

// Get returns a snapshot of orderID.
func (e *Engine) Get(orderID string) (*LimitOrder, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	o, ok := e.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return o.clone(), nil
}

// Cancel transitions an OPEN order owned by userID to CANCELLED.
func (e *Engine) Cancel(orderID, userID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if o.UserID != userID {
		return ErrNotOrderOwner
	}
	if o.Status != StatusOpen {
		return ErrOrderNotOpen
	}
	o.Status = StatusCancelled
	return nil
}

func (e *Engine) availableBalanceUSD(ctx context.Context, userID string, token ledger.Asset) (decimalx.Decimal, error) {
	bal, err := e.ledger.Balance(ctx, userID, token)
	if err != nil {
		return decimalx.Zero, err
	}
	if token == ledger.C2 {
		return bal.Available, nil
	}
	price, err := e.oracle.AssetPrice(ctx, token)
	if err != nil {
		return decimalx.Zero, err
	}
	return bal.Available.Mul(price), nil
}

// ListByUser returns a snapshot of every order (any status) belonging to
// userID, for the user's order-history view.
func (e *Engine) ListByUser(userID string) []*LimitOrder {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []*LimitOrder
	for _, o := range e.orders {
		if o.UserID == userID {
			out = append(out, o.clone())
		}
	}
	return out
}

// ListByMarket returns a snapshot of every order (any status) resting
// against marketID.
func (e *Engine) ListByMarket(marketID string) []*LimitOrder {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []*LimitOrder
	for _, o := range e.orders {
		if o.MarketID == marketID {
			out = append(out, o.clone())
		}
	}
	return out
}

// openOrderIDs snapshots the IDs of every OPEN order under the map lock.
func (e *Engine) openOrderIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.orders))
	for id, o := range e.orders {
		if o.Status == StatusOpen {
			ids = append(ids, id)
		}
	}
	return ids
}

// Tick scans every OPEN order and fires any whose trigger condition the
// current virtual price satisfies. Intended to run every 10s from the
// scheduler.
func (e *Engine) Tick(ctx context.Context, now time.Time) {
	for _, id := range e.openOrderIDs() {
		if err := e.checkOrder(ctx, id, now); err != nil {
			e.log.Warn("limitorder: check failed for order",
				logging.String("order_id", id),
				logging.String("err", err.Error()),
			)
		}
	}
}

func (e *Engine) checkOrder(ctx context.Context, orderID string, now time.Time) error {
	e.mu.RLock()
	o, ok := e.orders[orderID]
	e.mu.RUnlock()
	if !ok || o.Status != StatusOpen {
		return nil
	}

	m, err := e.markets.GetByID(o.MarketID)
	if err != nil {
		return err
	}
	price := m.VirtualPrice()

	triggered := false
	switch o.Side {
	case market.Long:
		triggered = price.LessThanOrEqual(o.LimitPrice)
	case market.Short:
		triggered = price.GreaterThanOrEqual(o.LimitPrice)
	}
	if !triggered {
		return nil
	}

	_, err = e.positions.Open(ctx, trade.OpenRequest{
		UserID:      o.UserID,
		MarketID:    o.MarketID,
		Side:        o.Side,
		Size:        o.Size,
		Leverage:    o.Leverage,
		Token:       o.Token,
		MaxSlippage: o.MaxSlippage,
	}, now)

	e.mu.Lock()
	defer e.mu.Unlock()
	live, ok := e.orders[orderID]
	if !ok || live.Status != StatusOpen {
		return nil
	}

	if err != nil {
		if err == trade.ErrInsufficientMargin {
			live.Status = StatusCancelled
			t := now
			live.TriggeredAt = &t
			e.notify.Notify(ctx, "limit_orders", live.UserID)
			return nil
		}
		return err
	}

	live.Status = StatusFilled
	t := now
	live.TriggeredAt = &t
	e.notify.Notify(ctx, "limit_orders", live.UserID)
	return nil
}
