package market

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rtxlabs/vperp/decimalx"
)

func TestCreateMarketRejectsDuplicateSymbol(t *testing.T) {
	e := NewEngine()
	if _, err := e.CreateMarket("m1", "BTC-PERP", "0xtoken", decimalFromString(t, "100"), time.Now()); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := e.CreateMarket("m2", "BTC-PERP", "0xtoken2", decimalFromString(t, "100"), time.Now()); err != ErrDuplicateSymbol {
		t.Fatalf("err = %v, want ErrDuplicateSymbol", err)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	e := NewEngine()
	if _, err := e.GetByID("missing"); err != ErrMarketNotFound {
		t.Fatalf("err = %v, want ErrMarketNotFound", err)
	}
}

func TestExecuteOrderUpdatesReservesAndOI(t *testing.T) {
	e := NewEngine()
	e.CreateMarket("m1", "BTC-PERP", "0xtoken", decimalFromString(t, "100"), time.Now())

	_, err := e.ExecuteOrder("m1", decimalFromString(t, "10000"), Long, false)
	if err != nil {
		t.Fatalf("ExecuteOrder: %v", err)
	}

	m, _ := e.GetByID("m1")
	if !m.LongOpenInterest.Equal(decimalFromString(t, "10000")) {
		t.Errorf("long OI = %s, want 10000", m.LongOpenInterest)
	}
}

func TestExecuteOrderCloseReducesOI(t *testing.T) {
	e := NewEngine()
	e.CreateMarket("m1", "BTC-PERP", "0xtoken", decimalFromString(t, "100"), time.Now())
	e.ExecuteOrder("m1", decimalFromString(t, "10000"), Long, false)

	if _, err := e.ExecuteOrder("m1", decimalFromString(t, "10000"), Long, true); err != nil {
		t.Fatalf("ExecuteOrder close: %v", err)
	}

	m, _ := e.GetByID("m1")
	if !m.LongOpenInterest.IsZero() {
		t.Errorf("long OI after full close = %s, want 0", m.LongOpenInterest)
	}
}

func TestConcurrentExecuteOrderSameMarketSerializes(t *testing.T) {
	e := NewEngine()
	e.CreateMarket("m1", "BTC-PERP", "0xtoken", decimalFromString(t, "100"), time.Now())
	m0, _ := e.GetByID("m1")
	m0.AvailableLiquidity = decimalFromString(t, "10000000")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.ExecuteOrder("m1", decimalFromString(t, "1000"), Long, false)
		}()
	}
	wg.Wait()

	m, _ := e.GetByID("m1")
	if !m.LongOpenInterest.Equal(decimalFromString(t, "50000")) {
		t.Errorf("long OI after 50 concurrent opens = %s, want 50000", m.LongOpenInterest)
	}
}

func TestRunFundingTickClampsAcrossAllMarkets(t *testing.T) {
	e := NewEngine()
	e.CreateMarket("m1", "BTC-PERP", "0xtoken", decimalFromString(t, "100"), time.Now())
	e.CreateMarket("m2", "ETH-PERP", "0xtoken2", decimalFromString(t, "100"), time.Now())

	e.RunFundingTick(time.Now())

	for _, id := range []string{"m1", "m2"} {
		m, _ := e.GetByID(id)
		if m.FundingRate.GreaterThan(m.MaxFundingRate) || m.FundingRate.LessThan(m.MaxFundingRate.Neg()) {
			t.Errorf("%s funding rate %s out of bounds", id, m.FundingRate)
		}
	}
}

type stubOracle struct{ price decimalx.Decimal }

func (s stubOracle) MarketPrice(_ context.Context, _ string) (decimalx.Decimal, error) {
	return s.price, nil
}

func TestRunConvergenceTickMovesPriceTowardOracle(t *testing.T) {
	e := NewEngine()
	e.CreateMarket("m1", "BTC-PERP", "0xtoken", decimalFromString(t, "100"), time.Now())

	before, _ := e.GetByID("m1")
	beforePrice := before.VirtualPrice()

	e.RunConvergenceTick(context.Background(), stubOracle{price: decimalFromString(t, "90")})

	after, _ := e.GetByID("m1")
	afterPrice := after.VirtualPrice()

	if afterPrice.GreaterThanOrEqual(beforePrice) {
		t.Errorf("convergence tick should move price down toward oracle: before=%s after=%s", beforePrice, afterPrice)
	}
}
