package trade

import (
	"context"
	"sync"
	"time"

	"github.com/rtxlabs/vperp/decimalx"
	"github.com/rtxlabs/vperp/ledger"
	"github.com/rtxlabs/vperp/market"
)

// Trade is an immutable record of a close, partial close, or liquidation.
// Opening a position records no Trade.
type Trade struct {
	ID             string
	PositionID     string
	UserID         string
	MarketID       string
	Side           market.Side
	Size           decimalx.Decimal
	Price          decimalx.Decimal
	Leverage       decimalx.Decimal
	RealizedPnl    *decimalx.Decimal
	Fee            decimalx.Decimal
	IsPartialClose bool
	CreatedAt      time.Time
}

// PriceSource is the slice of the oracle this package depends on.
type PriceSource interface {
	MarketPrice(ctx context.Context, marketID string) (decimalx.Decimal, error)
	AssetPrice(ctx context.Context, asset ledger.Asset) (decimalx.Decimal, error)
}

// Notifier is the event sink collaborator (component: Notify).
type Notifier interface {
	Notify(ctx context.Context, topic string, payload interface{})
}

// VolumeRecorder is the narrow stats-service slice TradeEngine emits
// trading volume to on every close.
type VolumeRecorder interface {
	RecordVolume(ctx context.Context, marketID string, amountUSD decimalx.Decimal)
}

// MarketsView is the slice of market.Engine the trade engine drives.
type MarketsView interface {
	GetByID(id string) (*market.Market, error)
	ExecuteOrder(id string, sizeUSD decimalx.Decimal, side market.Side, closing bool) (market.PreviewResult, error)
	AddTradingFees(id string, amount decimalx.Decimal, asset ledger.Asset) error
}

// IDGenerator produces new position/trade IDs; satisfied by
// func() string { return uuid.New().String() }.
type IDGenerator func() string

// Engine is the TradeEngine: open/close/edit, serialized per position.
type Engine struct {
	markets  MarketsView
	ledger   ledger.Ledger
	oracle   PriceSource
	notify   Notifier
	stats    VolumeRecorder
	newID    IDGenerator

	positions *positionStore

	tradesMu sync.RWMutex
	trades   []*Trade
}

// Config bundles Engine's collaborators.
type Config struct {
	Markets MarketsView
	Ledger  ledger.Ledger
	Oracle  PriceSource
	Notify  Notifier
	Stats   VolumeRecorder
	NewID   IDGenerator
}

// New constructs a trade Engine over an empty in-memory position store.
func New(cfg Config) *Engine {
	return &Engine{
		markets:   cfg.Markets,
		ledger:    cfg.Ledger,
		oracle:    cfg.Oracle,
		notify:    cfg.Notify,
		stats:     cfg.Stats,
		newID:     cfg.NewID,
		positions: newPositionStore(),
	}
}

// GetPosition returns a snapshot of a position.
func (e *Engine) GetPosition(id string) (*Position, error) {
	return e.positions.get(id)
}

// ListPositionsByUser returns every position (open or terminal) owned by
// userID.
func (e *Engine) ListPositionsByUser(userID string) []*Position {
	return e.positions.listByUser(userID)
}

// recordTrade appends tr to the in-memory trade log. Close and Liquidate
// call this after committing their position mutation, so the log only ever
// holds trades that actually landed.
func (e *Engine) recordTrade(tr *Trade) {
	e.tradesMu.Lock()
	e.trades = append(e.trades, tr)
	e.tradesMu.Unlock()
}

// ListTradesByUser returns every trade (close or liquidation) recorded for
// userID, oldest first.
func (e *Engine) ListTradesByUser(userID string) []*Trade {
	e.tradesMu.RLock()
	defer e.tradesMu.RUnlock()
	var out []*Trade
	for _, tr := range e.trades {
		if tr.UserID == userID {
			cp := *tr
			out = append(out, &cp)
		}
	}
	return out
}

func (e *Engine) feeInAsset(ctx context.Context, feeUSD decimalx.Decimal, asset ledger.Asset) (decimalx.Decimal, error) {
	price, err := e.priceOf(ctx, asset)
	if err != nil {
		return decimalx.Zero, err
	}
	return feeUSD.Div(price), nil
}

func (e *Engine) priceOf(ctx context.Context, asset ledger.Asset) (decimalx.Decimal, error) {
	if asset == ledger.C2 {
		return decimalx.NewFromInt(1), nil
	}
	return e.oracle.AssetPrice(ctx, asset)
}
