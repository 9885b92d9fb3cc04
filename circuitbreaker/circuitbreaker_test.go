package circuitbreaker

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rtxlabs/vperp/decimalx"
	"github.com/rtxlabs/vperp/logging"
	"github.com/rtxlabs/vperp/market"
)

type noopNotifier struct{ events []string }

func (n *noopNotifier) Notify(_ context.Context, topic string, _ interface{}) {
	n.events = append(n.events, topic)
}

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.ERROR, io.Discard)
}

func newTestMarket(t *testing.T) (*market.Engine, string) {
	t.Helper()
	markets := market.NewEngine()
	m, err := markets.CreateMarket("btc-perp", "BTC-PERP", "0xBTC", decimalx.NewFromInt(60000), time.Now())
	if err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	return markets, m.ID
}

func TestEngineTripsOnLargeMove(t *testing.T) {
	markets, id := newTestMarket(t)
	notify := &noopNotifier{}
	e := New(Config{Markets: markets, Notify: notify, Log: testLogger(), Window: time.Minute, ThresholdPct: decimalx.MustParse("0.10")})

	now := time.Now()
	e.Tick(context.Background(), now)

	markets.WithMarket(id, func(m *market.Market) error {
		m.QuoteReserve = m.QuoteReserve.Sub(m.QuoteReserve.Div(decimalx.NewFromInt(2)))
		return nil
	})

	e.Tick(context.Background(), now.Add(10*time.Second))

	m, err := markets.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if m.Status != market.StatusPaused {
		t.Fatalf("status = %s, want PAUSED", m.Status)
	}
	if len(notify.events) != 1 || notify.events[0] != "circuit_breaker_tripped" {
		t.Fatalf("events = %v, want [circuit_breaker_tripped]", notify.events)
	}
}

func TestEngineResumesAfterCoolDown(t *testing.T) {
	markets, id := newTestMarket(t)
	notify := &noopNotifier{}
	e := New(Config{
		Markets:      markets,
		Notify:       notify,
		Log:          testLogger(),
		Window:       time.Minute,
		ThresholdPct: decimalx.MustParse("0.10"),
		CoolDown:     30 * time.Second,
	})

	now := time.Now()
	e.Tick(context.Background(), now)
	markets.WithMarket(id, func(m *market.Market) error {
		m.QuoteReserve = m.QuoteReserve.Sub(m.QuoteReserve.Div(decimalx.NewFromInt(2)))
		return nil
	})
	e.Tick(context.Background(), now.Add(10*time.Second))

	m, _ := markets.GetByID(id)
	if m.Status != market.StatusPaused {
		t.Fatalf("status = %s, want PAUSED before cool-down", m.Status)
	}

	e.Tick(context.Background(), now.Add(50*time.Second))

	m, _ = markets.GetByID(id)
	if m.Status != market.StatusActive {
		t.Fatalf("status = %s, want ACTIVE after cool-down", m.Status)
	}
}

func TestEngineDoesNotTripOnSmallMove(t *testing.T) {
	markets, id := newTestMarket(t)
	notify := &noopNotifier{}
	e := New(Config{Markets: markets, Notify: notify, Log: testLogger(), Window: time.Minute, ThresholdPct: decimalx.MustParse("0.10")})

	now := time.Now()
	e.Tick(context.Background(), now)
	e.Tick(context.Background(), now.Add(10*time.Second))

	m, err := markets.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if m.Status != market.StatusActive {
		t.Fatalf("status = %s, want ACTIVE", m.Status)
	}
	if len(notify.events) != 0 {
		t.Fatalf("events = %v, want none", notify.events)
	}
}
