package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSettersAndRecordersDoNotPanic(t *testing.T) {
	SetOpenInterest("m1", "LONG", 1000)
	SetVirtualPrice("m1", 101.5)
	SetFundingRate("m1", 0.0001)
	SetBorrowingRate("m1", 0.00005)
	SetFeePot("m1", "C1", "unclaimed", 42)
	RecordPositionOpened("m1", "LONG")
	RecordPositionClosed("m1", "LONG")
	RecordLiquidation("m1")
	RecordTradeVolume("m1", 2000)
	RecordLimitOrderFill("m1")
	RecordStopTriggerFire("m1")
	RecordBorrowingFeeCharged("m1", 1.5)
	RecordFundingFeeCharged("m1", 0.75)
	SetWebsocketConnections(3)
	RecordWebsocketMessage("positions")
	RecordAPIRequest("/markets", "GET", "200", 12.3)
}

func TestMiddlewarePreservesResponse(t *testing.T) {
	handler := Middleware("/markets", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("ok"))
	})

	req := httptest.NewRequest(http.MethodPost, "/markets", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q, want ok", rec.Body.String())
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
