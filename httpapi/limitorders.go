package httpapi

import (
	"net/http"
	"time"

	"github.com/rtxlabs/vperp/decimalx"
	"github.com/rtxlabs/vperp/ledger"
	"github.com/rtxlabs/vperp/limitorder"
	"github.com/rtxlabs/vperp/market"
)

type limitOrderView struct {
	ID             string `json:"id"`
	UserID         string `json:"userId"`
	MarketID       string `json:"marketId"`
	Symbol         string `json:"symbol"`
	Side           string `json:"side"`
	Size           string `json:"size"`
	LimitPrice     string `json:"price"`
	Leverage       string `json:"leverage"`
	Token          string `json:"token"`
	RequiredMargin string `json:"requiredMargin"`
	Status         string `json:"status"`
}

func toLimitOrderView(o *limitorder.LimitOrder) limitOrderView {
	return limitOrderView{
		ID:             o.ID,
		UserID:         o.UserID,
		MarketID:       o.MarketID,
		Symbol:         o.Symbol,
		Side:           string(o.Side),
		Size:           o.Size.String(),
		LimitPrice:     o.LimitPrice.String(),
		Leverage:       o.Leverage.String(),
		Token:          string(o.Token),
		RequiredMargin: o.RequiredMargin.String(),
		Status:         string(o.Status),
	}
}

type createLimitOrderRequest struct {
	UserID      string `json:"userId"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	Size        string `json:"size"`
	Price       string `json:"price"`
	Leverage    string `json:"leverage"`
	Token       string `json:"token"`
	MaxSlippage string `json:"maxSlippage"`
}

func (s *Server) handleCreateLimitOrder(w http.ResponseWriter, r *http.Request) {
	var req createLimitOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "InvalidBody", err.Error())
		return
	}

	size, err := decimalx.ParseFromString(req.Size)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "InvalidParams", "size must be a decimal string")
		return
	}
	price, err := decimalx.ParseFromString(req.Price)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "InvalidParams", "price must be a decimal string")
		return
	}
	leverage, err := decimalx.ParseFromString(req.Leverage)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "InvalidParams", "leverage must be a decimal string")
		return
	}
	maxSlippage, err := decimalx.ParseFromString(req.MaxSlippage)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "InvalidParams", "maxSlippage must be a decimal string")
		return
	}

	o, err := s.limitOrders.Create(r.Context(), limitorder.CreateRequest{
		UserID:      req.UserID,
		Symbol:      req.Symbol,
		Side:        market.Side(req.Side),
		Size:        size,
		LimitPrice:  price,
		Leverage:    leverage,
		Token:       ledger.Asset(req.Token),
		MaxSlippage: maxSlippage,
	}, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLimitOrderView(o))
}

func (s *Server) handleCancelLimitOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	userID := r.URL.Query().Get("userId")

	if err := s.limitOrders.Cancel(id, userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleLimitOrdersByUser(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeErrorJSON(w, http.StatusBadRequest, "InvalidParams", "userId is required")
		return
	}
	orders := s.limitOrders.ListByUser(userID)
	out := make([]limitOrderView, len(orders))
	for i, o := range orders {
		out[i] = toLimitOrderView(o)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLimitOrdersByMarket(w http.ResponseWriter, r *http.Request) {
	orders := s.limitOrders.ListByMarket(r.PathValue("id"))
	out := make([]limitOrderView, len(orders))
	for i, o := range orders {
		out[i] = toLimitOrderView(o)
	}
	writeJSON(w, http.StatusOK, out)
}
