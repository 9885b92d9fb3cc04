package feeaccrual

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/rtxlabs/vperp/decimalx"
	"github.com/rtxlabs/vperp/ledger"
	"github.com/rtxlabs/vperp/logging"
	"github.com/rtxlabs/vperp/market"
	"github.com/rtxlabs/vperp/trade"
)

type fakeOracle struct{ c1 decimalx.Decimal }

func (o fakeOracle) MarketPrice(_ context.Context, _ string) (decimalx.Decimal, error) {
	return decimalx.Zero, fmt.Errorf("not used")
}

func (o fakeOracle) AssetPrice(_ context.Context, asset ledger.Asset) (decimalx.Decimal, error) {
	if asset == ledger.C2 {
		return decimalx.NewFromInt(1), nil
	}
	return o.c1, nil
}

type noopNotifier struct{}

func (noopNotifier) Notify(_ context.Context, _ string, _ interface{}) {}

type noopStats struct{}

func (noopStats) RecordVolume(_ context.Context, _ string, _ decimalx.Decimal) {}

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.ERROR, io.Discard)
}

func setup(t *testing.T) (*trade.Engine, *market.Engine, *ledger.InMemory, *Engine) {
	t.Helper()
	markets := market.NewEngine()
	if _, err := markets.CreateMarket("m1", "BTC-PERP", "0xtoken", decimalx.MustParse("100"), time.Now()); err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	l := ledger.NewInMemory()
	l.Deposit("u1", ledger.C2, decimalx.MustParse("100000"))

	oracle := fakeOracle{c1: decimalx.MustParse("100")}
	te := trade.New(trade.Config{
		Markets: markets,
		Ledger:  l,
		Oracle:  oracle,
		Notify:  noopNotifier{},
		Stats:   noopStats{},
		NewID:   func() string { return "pos-1" },
	})

	fa := New(Config{
		Positions: te,
		Markets:   markets,
		Ledger:    l,
		Oracle:    oracle,
		Notify:    noopNotifier{},
		Log:       testLogger(),
	})
	return te, markets, l, fa
}

func TestTickChargesBorrowingFeeAfterOneDay(t *testing.T) {
	te, _, l, fa := setup(t)
	start := time.Now()

	p, err := te.Open(context.Background(), trade.OpenRequest{
		UserID:      "u1",
		MarketID:    "m1",
		Side:        market.Long,
		Size:        decimalx.MustParse("1000"),
		Leverage:    decimalx.MustParse("10"),
		Token:       ledger.C2,
		MaxSlippage: decimalx.MustParse("0.5"),
	}, start)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	before, _ := l.Balance(context.Background(), "u1", ledger.C2)

	oneDayLater := start.Add(24 * time.Hour)
	fa.Tick(context.Background(), oneDayLater)

	after, _ := l.Balance(context.Background(), "u1", ledger.C2)
	if !after.Locked.LessThan(before.Locked) {
		t.Errorf("locked balance did not decrease: before=%s after=%s", before.Locked, after.Locked)
	}

	updated, err := te.GetPosition(p.ID)
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if updated.AccumulatedBorrowing.IsZero() {
		t.Errorf("expected non-zero accumulated borrowing after 1 day")
	}
	if !updated.LastBorrowingUpdate.Equal(oneDayLater) {
		t.Errorf("LastBorrowingUpdate = %v, want %v", updated.LastBorrowingUpdate, oneDayLater)
	}
}

func TestTickSkipsSubSecondElapsed(t *testing.T) {
	te, _, _, fa := setup(t)
	start := time.Now()

	p, err := te.Open(context.Background(), trade.OpenRequest{
		UserID:      "u1",
		MarketID:    "m1",
		Side:        market.Long,
		Size:        decimalx.MustParse("1000"),
		Leverage:    decimalx.MustParse("10"),
		Token:       ledger.C2,
		MaxSlippage: decimalx.MustParse("0.5"),
	}, start)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	fa.Tick(context.Background(), start.Add(200*time.Millisecond))

	updated, _ := te.GetPosition(p.ID)
	if !updated.LastBorrowingUpdate.Equal(start) {
		t.Errorf("LastBorrowingUpdate moved on a sub-second tick: %v", updated.LastBorrowingUpdate)
	}
}

func TestTickAdvancesTimestampEvenAtZeroRate(t *testing.T) {
	te, markets, _, fa := setup(t)
	start := time.Now()

	if err := markets.WithMarket("m1", func(m *market.Market) error {
		m.BorrowingRate = decimalx.Zero
		return nil
	}); err != nil {
		t.Fatalf("WithMarket: %v", err)
	}

	p, err := te.Open(context.Background(), trade.OpenRequest{
		UserID:      "u1",
		MarketID:    "m1",
		Side:        market.Long,
		Size:        decimalx.MustParse("1000"),
		Leverage:    decimalx.MustParse("10"),
		Token:       ledger.C2,
		MaxSlippage: decimalx.MustParse("0.5"),
	}, start)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	later := start.Add(2 * time.Second)
	fa.Tick(context.Background(), later)

	updated, _ := te.GetPosition(p.ID)
	if !updated.LastBorrowingUpdate.Equal(later) {
		t.Errorf("LastBorrowingUpdate did not advance despite zero fee: %v", updated.LastBorrowingUpdate)
	}
}
