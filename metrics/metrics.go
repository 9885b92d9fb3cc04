// Package metrics exposes Prometheus instrumentation for the vAMM engine,
// grounded on backend/monitoring/prometheus.go's promauto-vars-plus-
// setter-functions shape, renamed from an LP/account/order-book metric set
// to the domain this engine actually runs: open interest,
// funding/borrowing rates, fee pots, liquidations, and the trade/limit-
// order/trigger lifecycle counters each background engine can report
// through.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	openInterest = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vamm_open_interest_usd",
			Help: "Open interest in USD notional by market and side",
		},
		[]string{"market_id", "side"},
	)

	virtualPrice = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vamm_virtual_price_usd",
			Help: "Current vAMM virtual price by market",
		},
		[]string{"market_id"},
	)

	fundingRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vamm_funding_rate",
			Help: "Current per-period funding rate by market",
		},
		[]string{"market_id"},
	)

	borrowingRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vamm_borrowing_rate",
			Help: "Current per-period borrowing rate by market",
		},
		[]string{"market_id"},
	)

	feePot = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vamm_fee_pot_usd",
			Help: "Fee pot balance by market, collateral asset, and pot (unclaimed or cumulative)",
		},
		[]string{"market_id", "asset", "pot"},
	)

	positionsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vamm_positions_opened_total",
			Help: "Total positions opened by market and side",
		},
		[]string{"market_id", "side"},
	)

	positionsClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vamm_positions_closed_total",
			Help: "Total positions closed by market and side",
		},
		[]string{"market_id", "side"},
	)

	liquidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vamm_liquidations_total",
			Help: "Total forced liquidations by market",
		},
		[]string{"market_id"},
	)

	tradeVolumeUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vamm_trade_volume_usd_total",
			Help: "Round-trip trade volume in USD notional by market",
		},
		[]string{"market_id"},
	)

	limitOrderFills = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vamm_limit_order_fills_total",
			Help: "Total limit orders filled by market",
		},
		[]string{"market_id"},
	)

	stopTriggerFires = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vamm_stop_trigger_fires_total",
			Help: "Total stop-loss/take-profit closes by market",
		},
		[]string{"market_id"},
	)

	borrowingFeeChargedUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vamm_borrowing_fee_charged_usd_total",
			Help: "Total borrowing fee charged by market",
		},
		[]string{"market_id"},
	)

	fundingFeeChargedUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vamm_funding_fee_charged_usd_total",
			Help: "Total funding fee charged by market",
		},
		[]string{"market_id"},
	)

	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vamm_websocket_connections",
			Help: "Current number of active push-stream websocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vamm_websocket_messages_total",
			Help: "Total websocket messages sent by topic",
		},
		[]string{"topic"},
	)

	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vamm_api_requests_total",
			Help: "Total HTTP requests by endpoint, method, and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vamm_api_request_duration_milliseconds",
			Help:    "HTTP request duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"endpoint", "method"},
	)
)

// Handler returns the HTTP handler for the /metrics scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetOpenInterest records a market's current open interest on one side.
func SetOpenInterest(marketID, side string, usd float64) {
	openInterest.WithLabelValues(marketID, side).Set(usd)
}

// SetVirtualPrice records a market's current vAMM price.
func SetVirtualPrice(marketID string, price float64) {
	virtualPrice.WithLabelValues(marketID).Set(price)
}

// SetFundingRate records a market's current funding rate.
func SetFundingRate(marketID string, rate float64) {
	fundingRate.WithLabelValues(marketID).Set(rate)
}

// SetBorrowingRate records a market's current borrowing rate.
func SetBorrowingRate(marketID string, rate float64) {
	borrowingRate.WithLabelValues(marketID).Set(rate)
}

// SetFeePot records the balance of one fee pot (e.g. unclaimed/C1).
func SetFeePot(marketID, asset, pot string, usd float64) {
	feePot.WithLabelValues(marketID, asset, pot).Set(usd)
}

// RecordPositionOpened increments the opened-position counter.
func RecordPositionOpened(marketID, side string) {
	positionsOpened.WithLabelValues(marketID, side).Inc()
}

// RecordPositionClosed increments the closed-position counter.
func RecordPositionClosed(marketID, side string) {
	positionsClosed.WithLabelValues(marketID, side).Inc()
}

// RecordLiquidation increments the liquidation counter.
func RecordLiquidation(marketID string) {
	liquidationsTotal.WithLabelValues(marketID).Inc()
}

// RecordTradeVolume adds to the running trade-volume counter.
func RecordTradeVolume(marketID string, usd float64) {
	tradeVolumeUSD.WithLabelValues(marketID).Add(usd)
}

// RecordLimitOrderFill increments the limit-order-fill counter.
func RecordLimitOrderFill(marketID string) {
	limitOrderFills.WithLabelValues(marketID).Inc()
}

// RecordStopTriggerFire increments the stop/take-profit-fire counter.
func RecordStopTriggerFire(marketID string) {
	stopTriggerFires.WithLabelValues(marketID).Inc()
}

// RecordBorrowingFeeCharged adds to the running borrowing-fee counter.
func RecordBorrowingFeeCharged(marketID string, usd float64) {
	borrowingFeeChargedUSD.WithLabelValues(marketID).Add(usd)
}

// RecordFundingFeeCharged adds to the running funding-fee counter.
func RecordFundingFeeCharged(marketID string, usd float64) {
	fundingFeeChargedUSD.WithLabelValues(marketID).Add(usd)
}

// SetWebsocketConnections records the current push-stream connection count.
func SetWebsocketConnections(count int) {
	websocketConnections.Set(float64(count))
}

// RecordWebsocketMessage increments the websocket message counter for topic.
func RecordWebsocketMessage(topic string) {
	websocketMessagesTotal.WithLabelValues(topic).Inc()
}

// RecordAPIRequest records one completed HTTP request.
func RecordAPIRequest(endpoint, method, status string, durationMs float64) {
	apiRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
	apiRequestDuration.WithLabelValues(endpoint, method).Observe(durationMs)
}

// Middleware wraps an HTTP handler to record RecordAPIRequest automatically.
func Middleware(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		handler(wrapped, r)
		RecordAPIRequest(endpoint, r.Method, http.StatusText(wrapped.statusCode), float64(time.Since(start).Milliseconds()))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
