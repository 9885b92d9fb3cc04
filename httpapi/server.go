// Package httpapi is the illustrative HTTP transport layer over the vAMM
// engines: markets, price/OHLCV, trade (open/close/edit), limit orders,
// and an admin-PIN-gated market-management surface, plus a websocket
// push stream for position/fill/liquidation events. Grounded on
// backend/api/server.go's per-route-handler-method shape (one unexported
// handle* method per route, JSON in/out via encoding/json; no CORS headers
// are set) collapsed from a much larger FX/LP/order-book surface
// down to the routes this engine actually serves. Transport is
// explicitly out of core scope (illustrative only) — this package exists
// to give every other package's exported operation a caller.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rtxlabs/vperp/auth"
	"github.com/rtxlabs/vperp/cache"
	"github.com/rtxlabs/vperp/limitorder"
	"github.com/rtxlabs/vperp/logging"
	"github.com/rtxlabs/vperp/market"
	"github.com/rtxlabs/vperp/metrics"
	"github.com/rtxlabs/vperp/notify"
	"github.com/rtxlabs/vperp/stats"
	"github.com/rtxlabs/vperp/trade"
)

// Server bundles every collaborator a route handler needs. All fields are
// shared, long-lived instances constructed once at process start.
type Server struct {
	trade       *trade.Engine
	limitOrders *limitorder.Engine
	markets     *market.Engine
	stats       *stats.Engine
	auth        *auth.Service
	notify      *notify.Sink
	log         *logging.Logger
	audit       *logging.AuditLogger
	cache       *cache.Manager
}

// Config bundles Server's collaborators.
type Config struct {
	Trade       *trade.Engine
	LimitOrders *limitorder.Engine
	Markets     *market.Engine
	Stats       *stats.Engine
	Auth        *auth.Service
	Notify      *notify.Sink
	Log         *logging.Logger
	// Audit records admin-authentication attempts. Optional: nil disables
	// audit logging (e.g. when the audit directory couldn't be created).
	Audit *logging.AuditLogger
	// Cache read-throughs GET /markets/{id}. Optional: nil disables caching
	// and every request hits markets directly.
	Cache *cache.Manager
}

// NewServer constructs a Server over cfg's collaborators.
func NewServer(cfg Config) *Server {
	return &Server{
		trade:       cfg.Trade,
		limitOrders: cfg.LimitOrders,
		markets:     cfg.Markets,
		stats:       cfg.Stats,
		auth:        cfg.Auth,
		notify:      cfg.Notify,
		log:         cfg.Log,
		audit:       cfg.Audit,
		cache:       cfg.Cache,
	}
}

// Routes builds the full mux: every handler is wrapped in
// metrics.Middleware so request counts/durations are recorded regardless
// of which route served them.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /markets", metrics.Middleware("/markets", s.handleListMarkets))
	mux.HandleFunc("GET /markets/{id}", metrics.Middleware("/markets/{id}", s.handleGetMarket))
	mux.HandleFunc("GET /markets/{id}/funding-rate", metrics.Middleware("/markets/{id}/funding-rate", s.handleFundingRate))
	mux.HandleFunc("GET /markets/{id}/stats", metrics.Middleware("/markets/{id}/stats", s.handleMarketStats))
	mux.HandleFunc("POST /markets", metrics.Middleware("/markets", s.requireAdmin(s.handleCreateMarket)))
	mux.HandleFunc("PUT /markets/{id}", metrics.Middleware("/markets/{id}", s.requireAdmin(s.handleUpdateMarket)))

	mux.HandleFunc("GET /price/market/{id}", metrics.Middleware("/price/market/{id}", s.handleGetMarket))
	mux.HandleFunc("GET /price/virtual-price/{id}", metrics.Middleware("/price/virtual-price/{id}", s.handleVirtualPrice))
	mux.HandleFunc("GET /price/ohlcv", metrics.Middleware("/price/ohlcv", s.handleOHLCV))

	mux.HandleFunc("POST /trade", metrics.Middleware("/trade", s.handleOpenTrade))
	mux.HandleFunc("POST /trade/position/{id}/close", metrics.Middleware("/trade/position/{id}/close", s.handleClosePosition))
	mux.HandleFunc("POST /trade/position/{id}/stop-loss", metrics.Middleware("/trade/position/{id}/stop-loss", s.handleEditStopLoss))
	mux.HandleFunc("POST /trade/position/{id}/take-profit", metrics.Middleware("/trade/position/{id}/take-profit", s.handleEditTakeProfit))
	mux.HandleFunc("POST /trade/position/{id}/margin", metrics.Middleware("/trade/position/{id}/margin", s.handleEditMargin))
	mux.HandleFunc("GET /trade/positions", metrics.Middleware("/trade/positions", s.handleListPositions))
	mux.HandleFunc("GET /trade/position/{id}", metrics.Middleware("/trade/position/{id}", s.handleGetPosition))
	mux.HandleFunc("GET /trade/trades", metrics.Middleware("/trade/trades", s.handleListTrades))

	mux.HandleFunc("POST /limit-orders", metrics.Middleware("/limit-orders", s.handleCreateLimitOrder))
	mux.HandleFunc("DELETE /limit-orders/{id}", metrics.Middleware("/limit-orders/{id}", s.handleCancelLimitOrder))
	mux.HandleFunc("GET /limit-orders/user", metrics.Middleware("/limit-orders/user", s.handleLimitOrdersByUser))
	mux.HandleFunc("GET /limit-orders/market/{id}", metrics.Middleware("/limit-orders/market/{id}", s.handleLimitOrdersByMarket))

	mux.HandleFunc("POST /auth/login", metrics.Middleware("/auth/login", s.handleAdminLogin))
	mux.HandleFunc("GET /stream", s.handleStream)
	mux.Handle("GET /metrics", metrics.Handler())

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func writeErrorJSON(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

// decodeJSON decodes r's body into v, rejecting an empty body rather than
// silently leaving v at its zero value.
func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return io.EOF
	}
	return json.NewDecoder(r.Body).Decode(v)
}
