package stats

import (
	"context"
	"testing"
	"time"

	"github.com/rtxlabs/vperp/decimalx"
	"github.com/rtxlabs/vperp/market"
)

func setup(t *testing.T) (*market.Engine, *Engine) {
	t.Helper()
	markets := market.NewEngine()
	if _, err := markets.CreateMarket("m1", "BTC-PERP", "0xtoken", decimalx.MustParse("100"), time.Now()); err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	return markets, New(Config{Markets: markets})
}

func TestTickOpensAndUpdatesCandleAcrossTimeframes(t *testing.T) {
	markets, s := setup(t)
	base := time.Date(2026, 1, 1, 10, 0, 30, 0, time.UTC)

	s.Tick(context.Background(), base)

	candles := s.OHLCV("m1", Timeframe1m, base.Add(-time.Hour), base.Add(time.Hour), 0)
	if len(candles) != 1 {
		t.Fatalf("len(candles) = %d, want 1", len(candles))
	}
	if !candles[0].Open.Equal(decimalx.MustParse("100")) {
		t.Errorf("Open = %s, want 100", candles[0].Open)
	}

	if _, err := markets.ExecuteOrder("m1", decimalx.MustParse("500000"), market.Long, false); err != nil {
		t.Fatalf("ExecuteOrder: %v", err)
	}

	s.Tick(context.Background(), base.Add(10*time.Second))

	candles = s.OHLCV("m1", Timeframe1m, base.Add(-time.Hour), base.Add(time.Hour), 0)
	if len(candles) != 1 {
		t.Fatalf("len(candles) = %d, want 1 (same 1m bucket)", len(candles))
	}
	c := candles[0]
	if c.High.LessThan(c.Open) || c.Close.Equal(c.Open) {
		t.Errorf("expected High/Close to move off Open after the buy, got %+v", c)
	}
}

func TestTickOpensNewCandleOnBucketRollover(t *testing.T) {
	_, s := setup(t)
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	s.Tick(context.Background(), base)
	s.Tick(context.Background(), base.Add(time.Minute))

	candles := s.OHLCV("m1", Timeframe1m, base.Add(-time.Hour), base.Add(time.Hour), 0)
	if len(candles) != 2 {
		t.Fatalf("len(candles) = %d, want 2", len(candles))
	}
}

func TestRecordVolumeAccumulatesIntoTotals(t *testing.T) {
	_, s := setup(t)
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	s.Tick(context.Background(), base)

	s.RecordVolume(context.Background(), "m1", decimalx.MustParse("1000"))
	s.RecordVolume(context.Background(), "m1", decimalx.MustParse("2000"))

	ms := s.Stats("m1")
	if !ms.AllTimeVolume.Equal(decimalx.MustParse("3000")) {
		t.Errorf("AllTimeVolume = %s, want 3000", ms.AllTimeVolume)
	}
	if !ms.Volume24h.Equal(decimalx.MustParse("3000")) {
		t.Errorf("Volume24h = %s, want 3000", ms.Volume24h)
	}
}

func TestOHLCVFiltersByTimeRangeAndLimit(t *testing.T) {
	_, s := setup(t)
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.Tick(context.Background(), base.Add(time.Duration(i)*time.Minute))
	}

	all := s.OHLCV("m1", Timeframe1m, base.Add(-time.Hour), base.Add(time.Hour), 0)
	if len(all) != 5 {
		t.Fatalf("len(all) = %d, want 5", len(all))
	}

	limited := s.OHLCV("m1", Timeframe1m, base.Add(-time.Hour), base.Add(time.Hour), 2)
	if len(limited) != 2 {
		t.Fatalf("len(limited) = %d, want 2", len(limited))
	}
	if !limited[len(limited)-1].Timestamp.Equal(all[len(all)-1].Timestamp) {
		t.Errorf("limit should keep the most recent candles")
	}
}
