// Package store is the abstract select/insert/update/upsert persistence
// layer: a typed row interface per table, covering the six tables backing
// this engine's durable state, with both an in-memory reference
// implementation and a Postgres-backed one (backend/database/migrate.go's
// table shapes, pgxpool.Pool in place of its database/sql+lib/pq driver).
package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// Row is the capability every table's row type provides so the generic
// Store implementations can select, insert, update, and upsert it without
// table-specific SQL or field-switch code. Columns/Get/Set/Args/ScanDest
// all iterate the same field list a row type exposes via fields(); see
// reflectrow.go.
type Row interface {
	TableName() string
	Columns() []string
	Get(column string) interface{}
	Set(column string, value interface{})
	Args() []interface{}
	ScanDest() []interface{}
}

// RowPtr pins the pointer-receiver relationship generic Store
// implementations need: T is the plain struct stored by value, PT is its
// pointer type which actually implements Row.
type RowPtr[T any] interface {
	*T
	Row
}

// MarketRow is the markets table row.
type MarketRow struct {
	ID           string
	Symbol       string
	TokenAddress string

	MaxLeverage       decimal.Decimal
	MaintenanceMargin decimal.Decimal
	TakerFee          decimal.Decimal
	MakerFee          decimal.Decimal

	FundingRate         decimal.Decimal
	FundingRateVelocity decimal.Decimal
	MaxFundingRate      decimal.Decimal
	MaxFundingVelocity  decimal.Decimal
	BorrowingRate       decimal.Decimal

	LongOpenInterest   decimal.Decimal
	ShortOpenInterest  decimal.Decimal
	AvailableLiquidity decimal.Decimal

	VirtualBaseReserve  decimal.Decimal
	VirtualQuoteReserve decimal.Decimal
	VirtualK            decimal.Decimal

	CumulativeFeesC1 decimal.Decimal
	CumulativeFeesC2 decimal.Decimal
	UnclaimedFeesC1  decimal.Decimal
	UnclaimedFeesC2  decimal.Decimal

	Status               string
	LastUpdatedTimestamp int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (r *MarketRow) fields() []fieldRef {
	return []fieldRef{
		{"id", &r.ID},
		{"symbol", &r.Symbol},
		{"token_address", &r.TokenAddress},
		{"max_leverage", &r.MaxLeverage},
		{"maintainance_margin", &r.MaintenanceMargin},
		{"taker_fee", &r.TakerFee},
		{"maker_fee", &r.MakerFee},
		{"funding_rate", &r.FundingRate},
		{"funding_rate_velocity", &r.FundingRateVelocity},
		{"max_funding_rate", &r.MaxFundingRate},
		{"max_funding_velocity", &r.MaxFundingVelocity},
		{"borrowing_rate", &r.BorrowingRate},
		{"long_open_interest", &r.LongOpenInterest},
		{"short_open_interest", &r.ShortOpenInterest},
		{"available_liquidity", &r.AvailableLiquidity},
		{"virtual_base_reserve", &r.VirtualBaseReserve},
		{"virtual_quote_reserve", &r.VirtualQuoteReserve},
		{"virtual_k", &r.VirtualK},
		{"cumulative_fees_c1", &r.CumulativeFeesC1},
		{"cumulative_fees_c2", &r.CumulativeFeesC2},
		{"unclaimed_fees_c1", &r.UnclaimedFeesC1},
		{"unclaimed_fees_c2", &r.UnclaimedFeesC2},
		{"status", &r.Status},
		{"last_updated_timestamp", &r.LastUpdatedTimestamp},
		{"created_at", &r.CreatedAt},
		{"updated_at", &r.UpdatedAt},
	}
}

func (r *MarketRow) TableName() string                      { return "markets" }
func (r *MarketRow) Columns() []string                      { return columnsOf(r.fields()) }
func (r *MarketRow) Get(column string) interface{}           { return getField(r.fields(), column) }
func (r *MarketRow) Set(column string, value interface{})   { setField(r.fields(), column, value) }
func (r *MarketRow) Args() []interface{}                    { return argsOf(r.fields()) }
func (r *MarketRow) ScanDest() []interface{}                { return scanDestOf(r.fields()) }

// PositionRow is the positions table row.
type PositionRow struct {
	ID       string
	UserID   string
	MarketID string
	Symbol   string
	Side     string

	Size       decimal.Decimal
	EntryPrice decimal.Decimal
	Leverage   decimal.Decimal
	Token      string

	LockedMarginC1 decimal.Decimal
	LockedMarginC2 decimal.Decimal

	StopLossPrice   *decimal.Decimal
	TakeProfitPrice *decimal.Decimal

	Margin               decimal.Decimal
	AccumulatedFunding   decimal.Decimal
	AccumulatedBorrowing decimal.Decimal

	LastFundingUpdate      int64
	LastBorrowingFeeUpdate int64

	Status       string
	ClosingPrice *decimal.Decimal
	ClosedAt     *time.Time
	RealizedPnl  *decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *PositionRow) fields() []fieldRef {
	return []fieldRef{
		{"id", &r.ID},
		{"user_id", &r.UserID},
		{"market_id", &r.MarketID},
		{"symbol", &r.Symbol},
		{"side", &r.Side},
		{"size", &r.Size},
		{"entry_price", &r.EntryPrice},
		{"leverage", &r.Leverage},
		{"token", &r.Token},
		{"locked_margin_c1", &r.LockedMarginC1},
		{"locked_margin_c2", &r.LockedMarginC2},
		{"stop_loss_price", &r.StopLossPrice},
		{"take_profit_price", &r.TakeProfitPrice},
		{"margin", &r.Margin},
		{"accumulated_funding", &r.AccumulatedFunding},
		{"accumulated_borrowing", &r.AccumulatedBorrowing},
		{"last_funding_update", &r.LastFundingUpdate},
		{"last_borrowing_fee_update", &r.LastBorrowingFeeUpdate},
		{"status", &r.Status},
		{"closing_price", &r.ClosingPrice},
		{"closed_at", &r.ClosedAt},
		{"realized_pnl", &r.RealizedPnl},
		{"created_at", &r.CreatedAt},
		{"updated_at", &r.UpdatedAt},
	}
}

func (r *PositionRow) TableName() string                    { return "positions" }
func (r *PositionRow) Columns() []string                    { return columnsOf(r.fields()) }
func (r *PositionRow) Get(column string) interface{}        { return getField(r.fields(), column) }
func (r *PositionRow) Set(column string, value interface{}) { setField(r.fields(), column, value) }
func (r *PositionRow) Args() []interface{}                  { return argsOf(r.fields()) }
func (r *PositionRow) ScanDest() []interface{}               { return scanDestOf(r.fields()) }

// TradeRow is the trades table row.
type TradeRow struct {
	ID         string
	PositionID string
	UserID     string
	MarketID   string
	Side       string

	Size     decimal.Decimal
	Price    decimal.Decimal
	Leverage decimal.Decimal

	RealizedPnl *decimal.Decimal
	Fee         decimal.Decimal

	IsPartialClose *bool
	CreatedAt      time.Time
}

func (r *TradeRow) fields() []fieldRef {
	return []fieldRef{
		{"id", &r.ID},
		{"position_id", &r.PositionID},
		{"user_id", &r.UserID},
		{"market_id", &r.MarketID},
		{"side", &r.Side},
		{"size", &r.Size},
		{"price", &r.Price},
		{"leverage", &r.Leverage},
		{"realized_pnl", &r.RealizedPnl},
		{"fee", &r.Fee},
		{"is_partial_close", &r.IsPartialClose},
		{"created_at", &r.CreatedAt},
	}
}

func (r *TradeRow) TableName() string                    { return "trades" }
func (r *TradeRow) Columns() []string                    { return columnsOf(r.fields()) }
func (r *TradeRow) Get(column string) interface{}        { return getField(r.fields(), column) }
func (r *TradeRow) Set(column string, value interface{}) { setField(r.fields(), column, value) }
func (r *TradeRow) Args() []interface{}                  { return argsOf(r.fields()) }
func (r *TradeRow) ScanDest() []interface{}              { return scanDestOf(r.fields()) }

// LimitOrderRow is the limit_orders table row.
type LimitOrderRow struct {
	ID       string
	UserID   string
	MarketID string
	Symbol   string
	Side     string

	Size           decimal.Decimal
	Price          decimal.Decimal
	Leverage       decimal.Decimal
	Token          string
	RequiredMargin decimal.Decimal

	Status string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *LimitOrderRow) fields() []fieldRef {
	return []fieldRef{
		{"id", &r.ID},
		{"user_id", &r.UserID},
		{"market_id", &r.MarketID},
		{"symbol", &r.Symbol},
		{"side", &r.Side},
		{"size", &r.Size},
		{"price", &r.Price},
		{"leverage", &r.Leverage},
		{"token", &r.Token},
		{"required_margin", &r.RequiredMargin},
		{"status", &r.Status},
		{"created_at", &r.CreatedAt},
		{"updated_at", &r.UpdatedAt},
	}
}

func (r *LimitOrderRow) TableName() string                    { return "limit_orders" }
func (r *LimitOrderRow) Columns() []string                    { return columnsOf(r.fields()) }
func (r *LimitOrderRow) Get(column string) interface{}        { return getField(r.fields(), column) }
func (r *LimitOrderRow) Set(column string, value interface{}) { setField(r.fields(), column, value) }
func (r *LimitOrderRow) Args() []interface{}                  { return argsOf(r.fields()) }
func (r *LimitOrderRow) ScanDest() []interface{}              { return scanDestOf(r.fields()) }

// OHLCVRow is the ohlcv_data table row; its primary key is the composite
// (market_id, timeframe, timestamp).
type OHLCVRow struct {
	MarketID  string
	Timeframe string
	Timestamp int64

	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

func (r *OHLCVRow) fields() []fieldRef {
	return []fieldRef{
		{"market_id", &r.MarketID},
		{"timeframe", &r.Timeframe},
		{"timestamp", &r.Timestamp},
		{"open", &r.Open},
		{"high", &r.High},
		{"low", &r.Low},
		{"close", &r.Close},
		{"volume", &r.Volume},
	}
}

func (r *OHLCVRow) TableName() string                    { return "ohlcv_data" }
func (r *OHLCVRow) Columns() []string                    { return columnsOf(r.fields()) }
func (r *OHLCVRow) Get(column string) interface{}        { return getField(r.fields(), column) }
func (r *OHLCVRow) Set(column string, value interface{}) { setField(r.fields(), column, value) }
func (r *OHLCVRow) Args() []interface{}                  { return argsOf(r.fields()) }
func (r *OHLCVRow) ScanDest() []interface{}              { return scanDestOf(r.fields()) }

// MarketStatsRow is the market_stats table row.
type MarketStatsRow struct {
	ID       string
	MarketID string

	AllTimeVolume decimal.Decimal
	Volume24h     decimal.Decimal

	LastUpdatedTimestamp int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (r *MarketStatsRow) fields() []fieldRef {
	return []fieldRef{
		{"id", &r.ID},
		{"market_id", &r.MarketID},
		{"all_time_volume", &r.AllTimeVolume},
		{"volume24h", &r.Volume24h},
		{"last_updated_timestamp", &r.LastUpdatedTimestamp},
		{"created_at", &r.CreatedAt},
		{"updated_at", &r.UpdatedAt},
	}
}

func (r *MarketStatsRow) TableName() string                    { return "market_stats" }
func (r *MarketStatsRow) Columns() []string                    { return columnsOf(r.fields()) }
func (r *MarketStatsRow) Get(column string) interface{}        { return getField(r.fields(), column) }
func (r *MarketStatsRow) Set(column string, value interface{}) { setField(r.fields(), column, value) }
func (r *MarketStatsRow) Args() []interface{}                  { return argsOf(r.fields()) }
func (r *MarketStatsRow) ScanDest() []interface{}              { return scanDestOf(r.fields()) }
