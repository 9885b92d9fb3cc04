package trigger

import (
	"context"
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
	return decimalx.Zero, nil
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

func setup(t *testing.T) (*market.Engine, *trade.Engine, *Engine) {
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

	tr := New(Config{
		Positions: te,
		Markets:   markets,
		Notify:    noopNotifier{},
		Log:       testLogger(),
	})
	return markets, te, tr
}

func TestTickClosesLongOnStopLossHit(t *testing.T) {
	markets, te, tr := setup(t)
	sl := decimalx.MustParse("90")

	p, err := te.Open(context.Background(), trade.OpenRequest{
		UserID:        "u1",
		MarketID:      "m1",
		Side:          market.Long,
		Size:          decimalx.MustParse("1000"),
		Leverage:      decimalx.MustParse("10"),
		Token:         ledger.C2,
		MaxSlippage:   decimalx.MustParse("0.5"),
		StopLossPrice: &sl,
	}, time.Now())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	tr.Tick(context.Background(), time.Now())
	untouched, _ := te.GetPosition(p.ID)
	if untouched.Status != trade.StatusOpen {
		t.Fatalf("position closed before stop was crossed: %s", untouched.Status)
	}

	if _, err := markets.ExecuteOrder("m1", decimalx.MustParse("500000"), market.Short, false); err != nil {
		t.Fatalf("ExecuteOrder: %v", err)
	}

	tr.Tick(context.Background(), time.Now())
	closed, err := te.GetPosition(p.ID)
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if closed.Status != trade.StatusClosed {
		t.Fatalf("status = %s, want CLOSED", closed.Status)
	}
}

func TestTickIgnoresPositionsWithoutTriggers(t *testing.T) {
	markets, te, tr := setup(t)

	p, err := te.Open(context.Background(), trade.OpenRequest{
		UserID:      "u1",
		MarketID:    "m1",
		Side:        market.Long,
		Size:        decimalx.MustParse("1000"),
		Leverage:    decimalx.MustParse("10"),
		Token:       ledger.C2,
		MaxSlippage: decimalx.MustParse("0.5"),
	}, time.Now())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := markets.ExecuteOrder("m1", decimalx.MustParse("500000"), market.Short, false); err != nil {
		t.Fatalf("ExecuteOrder: %v", err)
	}

	tr.Tick(context.Background(), time.Now())
	still, err := te.GetPosition(p.ID)
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if still.Status != trade.StatusOpen {
		t.Errorf("status = %s, want still OPEN (no SL/TP set)", still.Status)
	}
}
