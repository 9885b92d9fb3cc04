package trade

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rtxlabs/vperp/decimalx"
	"github.com/rtxlabs/vperp/ledger"
	"github.com/rtxlabs/vperp/market"
)

type fakeOracle struct {
	c1 decimalx.Decimal
}

func (o fakeOracle) MarketPrice(_ context.Context, _ string) (decimalx.Decimal, error) {
	return decimalx.Zero, fmt.Errorf("not used in these tests")
}

func (o fakeOracle) AssetPrice(_ context.Context, asset ledger.Asset) (decimalx.Decimal, error) {
	if asset == ledger.C2 {
		return decimalx.NewFromInt(1), nil
	}
	return o.c1, nil
}

type fakeNotifier struct{ calls atomic.Int64 }

func (n *fakeNotifier) Notify(_ context.Context, _ string, _ interface{}) { n.calls.Add(1) }

type fakeStats struct{ total decimalx.Decimal }

func (s *fakeStats) RecordVolume(_ context.Context, _ string, amt decimalx.Decimal) {
	s.total = s.total.Add(amt)
}

func newTestEngine(t *testing.T) (*Engine, *market.Engine, *ledger.InMemory) {
	t.Helper()
	markets := market.NewEngine()
	if _, err := markets.CreateMarket("m1", "BTC-PERP", "0xtoken", decimalx.MustParse("100"), time.Now()); err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	l := ledger.NewInMemory()

	var counter atomic.Int64
	engine := New(Config{
		Markets: markets,
		Ledger:  l,
		Oracle:  fakeOracle{c1: decimalx.MustParse("100")},
		Notify:  &fakeNotifier{},
		Stats:   &fakeStats{},
		NewID: func() string {
			return fmt.Sprintf("id-%d", counter.Add(1))
		},
	})
	return engine, markets, l
}

func TestOpenLongLocksMarginAndChargesFee(t *testing.T) {
	engine, _, l := newTestEngine(t)
	l.Deposit("u1", ledger.C2, decimalx.MustParse("1000"))

	p, err := engine.Open(context.Background(), OpenRequest{
		UserID:      "u1",
		MarketID:    "m1",
		Side:        market.Long,
		Size:        decimalx.MustParse("1000"),
		Leverage:    decimalx.MustParse("10"),
		Token:       ledger.C2,
		MaxSlippage: decimalx.MustParse("0.1"),
	}, time.Now())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if p.Status != StatusOpen {
		t.Errorf("status = %s, want OPEN", p.Status)
	}

	bal, _ := l.Balance(context.Background(), "u1", ledger.C2)
	// required margin = 1000/10 = 100, fee = 1000*0.001 = 1, locked = 99
	if !bal.Locked.Equal(decimalx.MustParse("99")) {
		t.Errorf("locked = %s, want 99", bal.Locked)
	}
	wantAvailable := decimalx.MustParse("1000").Sub(decimalx.MustParse("1")).Sub(decimalx.MustParse("99"))
	if !bal.Available.Equal(wantAvailable) {
		t.Errorf("available = %s, want %s", bal.Available, wantAvailable)
	}
}

func TestOpenRejectsZeroSize(t *testing.T) {
	engine, _, l := newTestEngine(t)
	l.Deposit("u1", ledger.C2, decimalx.MustParse("1000"))

	_, err := engine.Open(context.Background(), OpenRequest{
		UserID:      "u1",
		MarketID:    "m1",
		Side:        market.Long,
		Size:        decimalx.Zero,
		Leverage:    decimalx.MustParse("10"),
		Token:       ledger.C2,
		MaxSlippage: decimalx.MustParse("0.1"),
	}, time.Now())
	if err != ErrInvalidParams {
		t.Fatalf("err = %v, want ErrInvalidParams", err)
	}
}

func TestOpenRejectsLeverageAboveMax(t *testing.T) {
	engine, _, l := newTestEngine(t)
	l.Deposit("u1", ledger.C2, decimalx.MustParse("1000"))

	_, err := engine.Open(context.Background(), OpenRequest{
		UserID:      "u1",
		MarketID:    "m1",
		Side:        market.Long,
		Size:        decimalx.MustParse("1000"),
		Leverage:    decimalx.MustParse("100"),
		Token:       ledger.C2,
		MaxSlippage: decimalx.MustParse("0.5"),
	}, time.Now())
	if err != ErrLeverageOutOfBounds {
		t.Fatalf("err = %v, want ErrLeverageOutOfBounds", err)
	}
}

func TestOpenRejectsSlippageExceeded(t *testing.T) {
	engine, _, l := newTestEngine(t)
	l.Deposit("u1", ledger.C2, decimalx.MustParse("100000"))

	_, err := engine.Open(context.Background(), OpenRequest{
		UserID:      "u1",
		MarketID:    "m1",
		Side:        market.Long,
		Size:        decimalx.MustParse("500000"),
		Leverage:    decimalx.MustParse("5"),
		Token:       ledger.C2,
		MaxSlippage: decimalx.MustParse("0.0001"),
	}, time.Now())
	if err != ErrSlippageExceeded {
		t.Fatalf("err = %v, want ErrSlippageExceeded", err)
	}
}

func TestOpenThenFullCloseAtUnchangedPriceYieldsNearZeroPnl(t *testing.T) {
	engine, _, l := newTestEngine(t)
	l.Deposit("u1", ledger.C2, decimalx.MustParse("10000"))

	p, err := engine.Open(context.Background(), OpenRequest{
		UserID:      "u1",
		MarketID:    "m1",
		Side:        market.Long,
		Size:        decimalx.MustParse("100"),
		Leverage:    decimalx.MustParse("10"),
		Token:       ledger.C2,
		MaxSlippage: decimalx.MustParse("0.5"),
	}, time.Now())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	tr, err := engine.Close(context.Background(), p.ID, "u1", p.Size, time.Now())
	if err != nil {
		t.Fatalf("Close: %v", err)
	}

	if tr.RealizedPnl.Abs().GreaterThan(decimalx.MustParse("0.01")) {
		t.Errorf("expected near-zero realized pnl for round trip, got %s", tr.RealizedPnl)
	}

	closed, err := engine.GetPosition(p.ID)
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if closed.Status != StatusClosed {
		t.Errorf("status = %s, want CLOSED", closed.Status)
	}
}

func TestPartialCloseKeepsPositionOpen(t *testing.T) {
	engine, _, l := newTestEngine(t)
	l.Deposit("u1", ledger.C2, decimalx.MustParse("10000"))

	p, err := engine.Open(context.Background(), OpenRequest{
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

	_, err = engine.Close(context.Background(), p.ID, "u1", decimalx.MustParse("400"), time.Now())
	if err != nil {
		t.Fatalf("Close: %v", err)
	}

	after, _ := engine.GetPosition(p.ID)
	if after.Status != StatusOpen {
		t.Errorf("status = %s, want still OPEN after partial close", after.Status)
	}
	if !after.Size.Equal(decimalx.MustParse("600")) {
		t.Errorf("size = %s, want 600", after.Size)
	}
}

func TestCloseRejectsNonOwner(t *testing.T) {
	engine, _, l := newTestEngine(t)
	l.Deposit("u1", ledger.C2, decimalx.MustParse("10000"))

	p, _ := engine.Open(context.Background(), OpenRequest{
		UserID:      "u1",
		MarketID:    "m1",
		Side:        market.Long,
		Size:        decimalx.MustParse("100"),
		Leverage:    decimalx.MustParse("10"),
		Token:       ledger.C2,
		MaxSlippage: decimalx.MustParse("0.5"),
	}, time.Now())

	_, err := engine.Close(context.Background(), p.ID, "someone-else", p.Size, time.Now())
	if err != ErrNotPositionOwner {
		t.Fatalf("err = %v, want ErrNotPositionOwner", err)
	}
}

func TestEditStopLossValidatesOrdering(t *testing.T) {
	engine, _, l := newTestEngine(t)
	l.Deposit("u1", ledger.C2, decimalx.MustParse("10000"))

	p, _ := engine.Open(context.Background(), OpenRequest{
		UserID:      "u1",
		MarketID:    "m1",
		Side:        market.Long,
		Size:        decimalx.MustParse("100"),
		Leverage:    decimalx.MustParse("10"),
		Token:       ledger.C2,
		MaxSlippage: decimalx.MustParse("0.5"),
	}, time.Now())

	aboveEntry := p.EntryPrice.Add(decimalx.MustParse("1"))
	if err := engine.EditStopLoss(context.Background(), p.ID, "u1", &aboveEntry, time.Now()); err != ErrInvalidParams {
		t.Fatalf("err = %v, want ErrInvalidParams for SL above entry on a LONG", err)
	}

	belowEntry := p.EntryPrice.Sub(decimalx.MustParse("1"))
	if err := engine.EditStopLoss(context.Background(), p.ID, "u1", &belowEntry, time.Now()); err != nil {
		t.Fatalf("EditStopLoss: %v", err)
	}
}

func TestEditMarginWithdrawalRejectsOverLeverage(t *testing.T) {
	engine, _, l := newTestEngine(t)
	l.Deposit("u1", ledger.C2, decimalx.MustParse("10000"))

	p, _ := engine.Open(context.Background(), OpenRequest{
		UserID:      "u1",
		MarketID:    "m1",
		Side:        market.Long,
		Size:        decimalx.MustParse("1000"),
		Leverage:    decimalx.MustParse("10"),
		Token:       ledger.C2,
		MaxSlippage: decimalx.MustParse("0.5"),
	}, time.Now())

	err := engine.EditMargin(context.Background(), p.ID, "u1", decimalx.MustParse("-99"), time.Now())
	if err != ErrLeverageOutOfBounds {
		t.Fatalf("err = %v, want ErrLeverageOutOfBounds", err)
	}
}
