package httpapi

import (
	"net/http"
	"time"

	"github.com/rtxlabs/vperp/decimalx"
	"github.com/rtxlabs/vperp/ledger"
	"github.com/rtxlabs/vperp/market"
	"github.com/rtxlabs/vperp/trade"
)

type positionView struct {
	ID              string  `json:"id"`
	UserID          string  `json:"userId"`
	MarketID        string  `json:"marketId"`
	Symbol          string  `json:"symbol"`
	Side            string  `json:"side"`
	Size            string  `json:"size"`
	EntryPrice      string  `json:"entryPrice"`
	Leverage        string  `json:"leverage"`
	Token           string  `json:"token"`
	Margin          string  `json:"margin"`
	StopLossPrice   *string `json:"stopLossPrice,omitempty"`
	TakeProfitPrice *string `json:"takeProfitPrice,omitempty"`
	Status          string  `json:"status"`
	RealizedPnl     *string `json:"realizedPnl,omitempty"`
}

func toPositionView(p *trade.Position) positionView {
	v := positionView{
		ID:         p.ID,
		UserID:     p.UserID,
		MarketID:   p.MarketID,
		Symbol:     p.Symbol,
		Side:       string(p.Side),
		Size:       p.Size.String(),
		EntryPrice: p.EntryPrice.String(),
		Leverage:   p.Leverage.String(),
		Token:      string(p.Token),
		Margin:     p.Margin.String(),
		Status:     string(p.Status),
	}
	if p.StopLossPrice != nil {
		s := p.StopLossPrice.String()
		v.StopLossPrice = &s
	}
	if p.TakeProfitPrice != nil {
		s := p.TakeProfitPrice.String()
		v.TakeProfitPrice = &s
	}
	if p.RealizedPnl != nil {
		s := p.RealizedPnl.String()
		v.RealizedPnl = &s
	}
	return v
}

type tradeView struct {
	ID             string  `json:"id"`
	PositionID     string  `json:"positionId"`
	UserID         string  `json:"userId"`
	MarketID       string  `json:"marketId"`
	Side           string  `json:"side"`
	Size           string  `json:"size"`
	Price          string  `json:"price"`
	Leverage       string  `json:"leverage"`
	RealizedPnl    *string `json:"realizedPnl,omitempty"`
	Fee            string  `json:"fee"`
	IsPartialClose bool    `json:"isPartialClose"`
}

func toTradeView(t *trade.Trade) tradeView {
	v := tradeView{
		ID:             t.ID,
		PositionID:     t.PositionID,
		UserID:         t.UserID,
		MarketID:       t.MarketID,
		Side:           string(t.Side),
		Size:           t.Size.String(),
		Price:          t.Price.String(),
		Leverage:       t.Leverage.String(),
		Fee:            t.Fee.String(),
		IsPartialClose: t.IsPartialClose,
	}
	if t.RealizedPnl != nil {
		s := t.RealizedPnl.String()
		v.RealizedPnl = &s
	}
	return v
}

type openTradeRequest struct {
	UserID          string  `json:"userId"`
	MarketID        string  `json:"marketId"`
	Side            string  `json:"side"`
	Size            string  `json:"size"`
	Leverage        string  `json:"leverage"`
	Token           string  `json:"token"`
	MaxSlippage     string  `json:"maxSlippage"`
	StopLossPrice   *string `json:"stopLossPrice,omitempty"`
	TakeProfitPrice *string `json:"takeProfitPrice,omitempty"`
}

func (s *Server) handleOpenTrade(w http.ResponseWriter, r *http.Request) {
	var req openTradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "InvalidBody", err.Error())
		return
	}

	size, err := decimalx.ParseFromString(req.Size)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "InvalidParams", "size must be a decimal string")
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

	var sl, tp *decimalx.Decimal
	if req.StopLossPrice != nil {
		v, err := decimalx.ParseFromString(*req.StopLossPrice)
		if err != nil {
			writeErrorJSON(w, http.StatusBadRequest, "InvalidParams", "stopLossPrice must be a decimal string")
			return
		}
		sl = &v
	}
	if req.TakeProfitPrice != nil {
		v, err := decimalx.ParseFromString(*req.TakeProfitPrice)
		if err != nil {
			writeErrorJSON(w, http.StatusBadRequest, "InvalidParams", "takeProfitPrice must be a decimal string")
			return
		}
		tp = &v
	}

	p, err := s.trade.Open(r.Context(), trade.OpenRequest{
		UserID:          req.UserID,
		MarketID:        req.MarketID,
		Side:            market.Side(req.Side),
		Size:            size,
		Leverage:        leverage,
		Token:           ledger.Asset(req.Token),
		MaxSlippage:     maxSlippage,
		StopLossPrice:   sl,
		TakeProfitPrice: tp,
	}, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPositionView(p))
}

type closeTradeRequest struct {
	SizeDelta string `json:"sizeDelta"`
}

func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	userID := r.URL.Query().Get("userId")

	var req closeTradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "InvalidBody", err.Error())
		return
	}
	sizeDelta, err := decimalx.ParseFromString(req.SizeDelta)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "InvalidParams", "sizeDelta must be a decimal string")
		return
	}

	tr, err := s.trade.Close(r.Context(), id, userID, sizeDelta, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTradeView(tr))
}

func (s *Server) handleEditStopLoss(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	userID := r.URL.Query().Get("userId")

	var req struct {
		StopLossPrice *string `json:"stopLossPrice"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "InvalidBody", err.Error())
		return
	}

	var sl *decimalx.Decimal
	if req.StopLossPrice != nil {
		v, err := decimalx.ParseFromString(*req.StopLossPrice)
		if err != nil {
			writeErrorJSON(w, http.StatusBadRequest, "InvalidParams", "stopLossPrice must be a decimal string")
			return
		}
		sl = &v
	}

	if err := s.trade.EditStopLoss(r.Context(), id, userID, sl, time.Now()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleEditTakeProfit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	userID := r.URL.Query().Get("userId")

	var req struct {
		TakeProfitPrice *string `json:"takeProfitPrice"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "InvalidBody", err.Error())
		return
	}

	var tp *decimalx.Decimal
	if req.TakeProfitPrice != nil {
		v, err := decimalx.ParseFromString(*req.TakeProfitPrice)
		if err != nil {
			writeErrorJSON(w, http.StatusBadRequest, "InvalidParams", "takeProfitPrice must be a decimal string")
			return
		}
		tp = &v
	}

	if err := s.trade.EditTakeProfit(r.Context(), id, userID, tp, time.Now()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleEditMargin(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	userID := r.URL.Query().Get("userId")

	var req struct {
		MarginDelta string `json:"marginDelta"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "InvalidBody", err.Error())
		return
	}
	delta, err := decimalx.ParseFromString(req.MarginDelta)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "InvalidParams", "marginDelta must be a decimal string")
		return
	}

	if err := s.trade.EditMargin(r.Context(), id, userID, delta, time.Now()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeErrorJSON(w, http.StatusBadRequest, "InvalidParams", "userId is required")
		return
	}
	positions := s.trade.ListPositionsByUser(userID)
	out := make([]positionView, len(positions))
	for i, p := range positions {
		out[i] = toPositionView(p)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	p, err := s.trade.GetPosition(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPositionView(p))
}

func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeErrorJSON(w, http.StatusBadRequest, "InvalidParams", "userId is required")
		return
	}
	trades := s.trade.ListTradesByUser(userID)
	out := make([]tradeView, len(trades))
	for i, t := range trades {
		out[i] = toTradeView(t)
	}
	writeJSON(w, http.StatusOK, out)
}
