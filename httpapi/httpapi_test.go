package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/rtxlabs/vperp/auth"
	"github.com/rtxlabs/vperp/decimalx"
	"github.com/rtxlabs/vperp/ledger"
	"github.com/rtxlabs/vperp/limitorder"
	"github.com/rtxlabs/vperp/logging"
	"github.com/rtxlabs/vperp/market"
	"github.com/rtxlabs/vperp/notify"
	"github.com/rtxlabs/vperp/stats"
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

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.ERROR, io.Discard)
}

const testPIN = "1234"

func setup(t *testing.T) (*Server, *market.Engine, *trade.Engine, *ledger.InMemory) {
	t.Helper()

	markets := market.NewEngine()
	if _, err := markets.CreateMarket("m1", "BTC-PERP", "0xtoken", decimalx.MustParse("100"), time.Now()); err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	l := ledger.NewInMemory()

	var counter atomic.Int64
	newID := func() string { return fmt.Sprintf("id-%d", counter.Add(1)) }

	sink := notify.New(testLogger())
	statsEngine := stats.New(stats.Config{Markets: markets})

	tradeEngine := trade.New(trade.Config{
		Markets: markets,
		Ledger:  l,
		Oracle:  fakeOracle{c1: decimalx.MustParse("100")},
		Notify:  sink,
		Stats:   statsEngine,
		NewID:   newID,
	})

	limitEngine := limitorder.New(limitorder.Config{
		Positions: tradeEngine,
		Markets:   markets,
		Ledger:    l,
		Oracle:    fakeOracle{c1: decimalx.MustParse("100")},
		Notify:    sink,
		NewID:     newID,
		Log:       testLogger(),
	})

	pinHash, err := bcrypt.GenerateFromPassword([]byte(testPIN), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword: %v", err)
	}
	authSvc := auth.NewService(string(pinHash), "test-secret")

	srv := NewServer(Config{
		Trade:       tradeEngine,
		LimitOrders: limitEngine,
		Markets:     markets,
		Stats:       statsEngine,
		Auth:        authSvc,
		Notify:      sink,
		Log:         testLogger(),
	})
	return srv, markets, tradeEngine, l
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		reader = strings.NewReader(string(data))
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestListAndGetMarket(t *testing.T) {
	srv, _, _, _ := setup(t)
	routes := srv.Routes()

	rec := doRequest(t, routes, http.MethodGet, "/markets", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /markets status = %d", rec.Code)
	}
	var list []marketView
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(list) != 1 || list[0].ID != "m1" {
		t.Fatalf("list = %+v", list)
	}

	rec = doRequest(t, routes, http.MethodGet, "/markets/m1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /markets/m1 status = %d", rec.Code)
	}

	rec = doRequest(t, routes, http.MethodGet, "/markets/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("GET /markets/nope status = %d, want 404", rec.Code)
	}
}

func TestCreateMarketRequiresAdminPin(t *testing.T) {
	srv, _, _, _ := setup(t)
	routes := srv.Routes()

	rec := doRequest(t, routes, http.MethodPost, "/markets", createMarketRequest{
		ID: "m2", Symbol: "ETH-PERP", TokenAddress: "0xeth", SeedPrice: "10",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("POST /markets without PIN status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/markets", strings.NewReader(
		`{"id":"m2","symbol":"ETH-PERP","tokenAddress":"0xeth","seedPrice":"10"}`))
	req.Header.Set(adminPinHeader, testPIN)
	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /markets with PIN status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestOpenAndClosePositionRoundTrip(t *testing.T) {
	srv, _, _, l := setup(t)
	routes := srv.Routes()

	l.Deposit("u1", ledger.C2, decimalx.MustParse("1000"))

	rec := doRequest(t, routes, http.MethodPost, "/trade", openTradeRequest{
		UserID: "u1", MarketID: "m1", Side: "LONG",
		Size: "1000", Leverage: "5", Token: "C2", MaxSlippage: "1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /trade status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var pos positionView
	if err := json.Unmarshal(rec.Body.Bytes(), &pos); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if pos.UserID != "u1" || pos.Status != "OPEN" {
		t.Fatalf("pos = %+v", pos)
	}

	rec = doRequest(t, routes, http.MethodGet, "/trade/positions?userId=u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /trade/positions status = %d", rec.Code)
	}

	rec = doRequest(t, routes, http.MethodPost, "/trade/position/"+pos.ID+"/close?userId=u1", closeTradeRequest{
		SizeDelta: "1000",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST close status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, routes, http.MethodGet, "/trade/trades?userId=u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /trade/trades status = %d", rec.Code)
	}
	var trades []tradeView
	if err := json.Unmarshal(rec.Body.Bytes(), &trades); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("trades = %+v, want 1", trades)
	}
}

func TestCreateAndCancelLimitOrder(t *testing.T) {
	srv, _, _, l := setup(t)
	routes := srv.Routes()

	l.Deposit("u1", ledger.C2, decimalx.MustParse("1000"))

	rec := doRequest(t, routes, http.MethodPost, "/limit-orders", createLimitOrderRequest{
		UserID: "u1", Symbol: "BTC-PERP", Side: "LONG",
		Size: "1000", Price: "90", Leverage: "5", Token: "C2", MaxSlippage: "1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /limit-orders status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var order limitOrderView
	if err := json.Unmarshal(rec.Body.Bytes(), &order); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	rec = doRequest(t, routes, http.MethodGet, "/limit-orders/user?userId=u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /limit-orders/user status = %d", rec.Code)
	}

	rec = doRequest(t, routes, http.MethodDelete, "/limit-orders/"+order.ID+"?userId=u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("DELETE /limit-orders/{id} status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestPriceEndpoints(t *testing.T) {
	srv, _, _, _ := setup(t)
	routes := srv.Routes()

	rec := doRequest(t, routes, http.MethodGet, "/price/virtual-price/m1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /price/virtual-price/m1 status = %d", rec.Code)
	}

	rec = doRequest(t, routes, http.MethodGet, "/price/ohlcv?marketId=m1&timeframe=1m", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /price/ohlcv status = %d, body = %s", rec.Code, rec.Body.String())
	}
}
