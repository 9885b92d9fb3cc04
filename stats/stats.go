// Package stats rolls up OHLCV candles and running volume totals per
// market. Named in the scheduling table as a 10s background job but
// specified only where the trade engine must emit volume — built out
// fully here against the ohlcv_data/market_stats schema: Engine.Tick
// samples the live vAMM price into the current candle for every
// configured timeframe, while RecordVolume (called by TradeEngine on
// every close) feeds both the candle's volume field and the running
// all-time/24h totals.
package stats

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rtxlabs/vperp/decimalx"
	"github.com/rtxlabs/vperp/market"
)

// Timeframe is one of the candle bucket widths this engine maintains.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// DefaultTimeframes is the candle set rolled up for every market.
var DefaultTimeframes = []Timeframe{Timeframe1m, Timeframe5m, Timeframe15m, Timeframe1h, Timeframe4h, Timeframe1d}

var timeframeDuration = map[Timeframe]time.Duration{
	Timeframe1m:  time.Minute,
	Timeframe5m:  5 * time.Minute,
	Timeframe15m: 15 * time.Minute,
	Timeframe1h:  time.Hour,
	Timeframe4h:  4 * time.Hour,
	Timeframe1d:  24 * time.Hour,
}

func bucketStart(tf Timeframe, t time.Time) time.Time {
	d, ok := timeframeDuration[tf]
	if !ok {
		d = time.Minute
	}
	return t.Truncate(d)
}

// Candle is a single OHLCV row: (marketId, timeframe, timestamp) is the
// primary key.
type Candle struct {
	MarketID  string
	Timeframe Timeframe
	Timestamp time.Time
	Open      decimalx.Decimal
	High      decimalx.Decimal
	Low       decimalx.Decimal
	Close     decimalx.Decimal
	Volume    decimalx.Decimal
}

func (c Candle) clone() Candle { return c }

// MarketStats is the running-total row keyed uniquely by marketId.
type MarketStats struct {
	MarketID             string
	AllTimeVolume        decimalx.Decimal
	Volume24h            decimalx.Decimal
	LastUpdatedTimestamp time.Time
}

// MarketsView is the narrow market-lookup slice this engine depends on.
type MarketsView interface {
	List() []*market.Market
}

type volumeEntry struct {
	at     time.Time
	amount decimalx.Decimal
}

type candleSeries struct {
	candles []Candle // ascending by Timestamp
}

type marketState struct {
	mu       sync.Mutex
	series   map[Timeframe]*candleSeries
	volEntries []volumeEntry
	allTime  decimalx.Decimal
	updated  time.Time
}

// Engine maintains OHLCV candles and running volume totals for every
// market, in memory.
type Engine struct {
	markets MarketsView

	mu    sync.Mutex
	state map[string]*marketState

	maxCandlesPerSeries int
}

// Config wires Engine's collaborators.
type Config struct {
	Markets MarketsView
}

// New constructs an Engine.
func New(cfg Config) *Engine {
	return &Engine{
		markets:             cfg.Markets,
		state:               make(map[string]*marketState),
		maxCandlesPerSeries: 1000,
	}
}

func (e *Engine) stateFor(marketID string) *marketState {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.state[marketID]
	if !ok {
		st = &marketState{series: make(map[Timeframe]*candleSeries), allTime: decimalx.Zero}
		e.state[marketID] = st
	}
	return st
}

// RecordVolume implements trade.VolumeRecorder. It is called once per
// closed trade with the round-trip USD notional, and folds that amount
// into the market's all-time total, its 24h rolling window, and the
// volume field of whichever candle is currently open for every
// configured timeframe.
func (e *Engine) RecordVolume(ctx context.Context, marketID string, amountUSD decimalx.Decimal) {
	st := e.stateFor(marketID)
	now := time.Now()

	st.mu.Lock()
	defer st.mu.Unlock()

	st.allTime = st.allTime.Add(amountUSD)
	st.volEntries = append(st.volEntries, volumeEntry{at: now, amount: amountUSD})
	st.updated = now

	for _, tf := range DefaultTimeframes {
		series := st.series[tf]
		if series == nil {
			series = &candleSeries{}
			st.series[tf] = series
		}
		if n := len(series.candles); n > 0 {
			last := &series.candles[n-1]
			if last.Timestamp.Equal(bucketStart(tf, now)) {
				last.Volume = last.Volume.Add(amountUSD)
			}
		}
	}
}

// Tick samples the live price of every known market into the currently
// open candle for each timeframe, opening a new candle whenever the
// bucket boundary has rolled over, and trims volume entries older than
// 24h from the rolling-window total. Driven by scheduler.Supervisor at
// the 10s interval the scheduling model specifies.
func (e *Engine) Tick(ctx context.Context, now time.Time) {
	for _, m := range e.markets.List() {
		e.sampleMarket(m.ID, m.VirtualPrice(), now)
	}
}

func (e *Engine) sampleMarket(marketID string, price decimalx.Decimal, now time.Time) {
	st := e.stateFor(marketID)

	st.mu.Lock()
	defer st.mu.Unlock()

	cutoff := now.Add(-24 * time.Hour)
	kept := st.volEntries[:0]
	for _, v := range st.volEntries {
		if v.at.After(cutoff) {
			kept = append(kept, v)
		}
	}
	st.volEntries = kept

	for _, tf := range DefaultTimeframes {
		series := st.series[tf]
		if series == nil {
			series = &candleSeries{}
			st.series[tf] = series
		}
		start := bucketStart(tf, now)
		n := len(series.candles)
		if n > 0 && series.candles[n-1].Timestamp.Equal(start) {
			c := &series.candles[n-1]
			if price.GreaterThan(c.High) {
				c.High = price
			}
			if price.LessThan(c.Low) {
				c.Low = price
			}
			c.Close = price
			continue
		}
		series.candles = append(series.candles, Candle{
			MarketID:  marketID,
			Timeframe: tf,
			Timestamp: start,
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    decimalx.Zero,
		})
		if len(series.candles) > e.maxCandlesPerSeries {
			series.candles = series.candles[len(series.candles)-e.maxCandlesPerSeries:]
		}
	}
}

// OHLCV returns candles for marketID/timeframe within [startTime, endTime],
// oldest first, capped at limit (0 means unlimited).
func (e *Engine) OHLCV(marketID string, timeframe Timeframe, startTime, endTime time.Time, limit int) []Candle {
	st := e.stateFor(marketID)
	st.mu.Lock()
	defer st.mu.Unlock()

	series := st.series[timeframe]
	if series == nil {
		return nil
	}
	var out []Candle
	for _, c := range series.candles {
		if c.Timestamp.Before(startTime) || c.Timestamp.After(endTime) {
			continue
		}
		out = append(out, c.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Stats returns the running volume totals for a market.
func (e *Engine) Stats(marketID string) MarketStats {
	st := e.stateFor(marketID)
	st.mu.Lock()
	defer st.mu.Unlock()

	vol24h := decimalx.Zero
	for _, v := range st.volEntries {
		vol24h = vol24h.Add(v.amount)
	}
	return MarketStats{
		MarketID:             marketID,
		AllTimeVolume:        st.allTime,
		Volume24h:            vol24h,
		LastUpdatedTimestamp: st.updated,
	}
}
