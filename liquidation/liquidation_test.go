package liquidation

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

type fakeOracle struct {
	marketPrice decimalx.Decimal
	c1          decimalx.Decimal
}

func (o *fakeOracle) MarketPrice(_ context.Context, _ string) (decimalx.Decimal, error) {
	return o.marketPrice, nil
}

func (o *fakeOracle) AssetPrice(_ context.Context, asset ledger.Asset) (decimalx.Decimal, error) {
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

func setup(t *testing.T) (*trade.Engine, *market.Engine, *fakeOracle, *Engine) {
	t.Helper()
	markets := market.NewEngine()
	if _, err := markets.CreateMarket("m1", "BTC-PERP", "0xtoken", decimalx.MustParse("100"), time.Now()); err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}

	l := ledger.NewInMemory()
	l.Deposit("u1", ledger.C2, decimalx.MustParse("100000"))

	oracle := &fakeOracle{marketPrice: decimalx.MustParse("100"), c1: decimalx.MustParse("100")}
	te := trade.New(trade.Config{
		Markets: markets,
		Ledger:  l,
		Oracle:  oracle,
		Notify:  noopNotifier{},
		Stats:   noopStats{},
		NewID:   func() string { return "pos-1" },
	})

	le := New(Config{
		Positions: te,
		Markets:   markets,
		Oracle:    oracle,
		Notify:    noopNotifier{},
		Log:       testLogger(),
	})
	return te, markets, oracle, le
}

func openLong(t *testing.T, te *trade.Engine, leverage string) *trade.Position {
	t.Helper()
	p, err := te.Open(context.Background(), trade.OpenRequest{
		UserID:      "u1",
		MarketID:    "m1",
		Side:        market.Long,
		Size:        decimalx.MustParse("1000"),
		Leverage:    decimalx.MustParse(leverage),
		Token:       ledger.C2,
		MaxSlippage: decimalx.MustParse("0.5"),
	}, time.Now())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return p
}

func TestTickLiquidatesUnderwaterLongPosition(t *testing.T) {
	te, _, oracle, le := setup(t)
	p := openLong(t, te, "10") // 10% margin, 5% maintenance

	// Crash the price hard enough that the loss exceeds maintenance margin.
	oracle.marketPrice = decimalx.MustParse("50")

	le.Tick(context.Background(), time.Now())

	after, err := te.GetPosition(p.ID)
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if after.Status != trade.StatusLiquidated {
		t.Errorf("status = %s, want LIQUIDATED", after.Status)
	}
}

func TestTickLeavesHealthyPositionOpen(t *testing.T) {
	te, _, oracle, le := setup(t)
	p := openLong(t, te, "5") // low leverage, big cushion

	oracle.marketPrice = decimalx.MustParse("99") // tiny adverse move

	le.Tick(context.Background(), time.Now())

	after, err := te.GetPosition(p.ID)
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if after.Status != trade.StatusOpen {
		t.Errorf("status = %s, want still OPEN", after.Status)
	}
}

func TestLiquidationPriceMatchesPrimaryCheckBoundary(t *testing.T) {
	te, _, oracle, le := setup(t)
	p := openLong(t, te, "10")

	liqPrice, err := le.LiquidationPrice(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("LiquidationPrice: %v", err)
	}

	// Just above the closed-form boundary: should NOT be liquidatable.
	oracle.marketPrice = liqPrice.Add(decimalx.MustParse("1"))
	le.Tick(context.Background(), time.Now())
	still, err := te.GetPosition(p.ID)
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if still.Status != trade.StatusOpen {
		t.Errorf("expected position to survive 1 unit above the liquidation price, got %s", still.Status)
	}

	// At or below the boundary: should be liquidatable.
	oracle.marketPrice = liqPrice.Sub(decimalx.MustParse("1"))
	le.Tick(context.Background(), time.Now())
	gone, err := te.GetPosition(p.ID)
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if gone.Status != trade.StatusLiquidated {
		t.Errorf("expected position liquidated 1 unit below the liquidation price, got %s", gone.Status)
	}
}
