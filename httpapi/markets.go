package httpapi

import (
	"net/http"
	"time"

	"github.com/rtxlabs/vperp/cache"
	"github.com/rtxlabs/vperp/decimalx"
	"github.com/rtxlabs/vperp/ledger"
	"github.com/rtxlabs/vperp/market"
)

// marketView is the wire shape for a market, field names matching the
// persisted-state schema's markets table.
type marketView struct {
	ID                  string `json:"id"`
	Symbol              string `json:"symbol"`
	TokenAddress        string `json:"tokenAddress"`
	MaxLeverage         string `json:"maxLeverage"`
	MaintenanceMargin   string `json:"maintenanceMargin"`
	TakerFee            string `json:"takerFee"`
	MakerFee            string `json:"makerFee"`
	FundingRate         string `json:"fundingRate"`
	FundingRateVelocity string `json:"fundingRateVelocity"`
	BorrowingRate       string `json:"borrowingRate"`
	LongOpenInterest    string `json:"longOpenInterest"`
	ShortOpenInterest   string `json:"shortOpenInterest"`
	AvailableLiquidity  string `json:"availableLiquidity"`
	VirtualPrice        string `json:"virtualPrice"`
	Status              string `json:"status"`
}

func toMarketView(m *market.Market) marketView {
	return marketView{
		ID:                  m.ID,
		Symbol:              m.Symbol,
		TokenAddress:        m.TokenAddress,
		MaxLeverage:         m.MaxLeverage.String(),
		MaintenanceMargin:   m.MaintenanceMargin.String(),
		TakerFee:            m.TakerFee.String(),
		MakerFee:            m.MakerFee.String(),
		FundingRate:         m.FundingRate.String(),
		FundingRateVelocity: m.FundingRateVelocity.String(),
		BorrowingRate:       m.BorrowingRate.String(),
		LongOpenInterest:    m.LongOpenInterest.String(),
		ShortOpenInterest:   m.ShortOpenInterest.String(),
		AvailableLiquidity:  m.AvailableLiquidity.String(),
		VirtualPrice:        m.VirtualPrice().String(),
		Status:              string(m.Status),
	}
}

func (s *Server) handleListMarkets(w http.ResponseWriter, r *http.Request) {
	list := s.markets.List()
	out := make([]marketView, len(list))
	for i, m := range list {
		out[i] = toMarketView(m)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if s.cache != nil {
		if cached, err := s.cache.Get(r.Context(), cache.NamespaceMarkets, id); err == nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	m, err := s.markets.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	view := toMarketView(m)
	if s.cache != nil {
		s.cache.Set(r.Context(), cache.NamespaceMarkets, id, view)
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleFundingRate(w http.ResponseWriter, r *http.Request) {
	m, err := s.markets.GetByID(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"marketId":    m.ID,
		"fundingRate": m.CurrentFundingRate(time.Now()).String(),
		"velocity":    m.FundingRateVelocity.String(),
	})
}

func (s *Server) handleMarketStats(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.markets.GetByID(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.stats.Stats(id))
}

type createMarketRequest struct {
	ID           string `json:"id"`
	Symbol       string `json:"symbol"`
	TokenAddress string `json:"tokenAddress"`
	SeedPrice    string `json:"seedPrice"`
}

func (s *Server) handleCreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "InvalidBody", err.Error())
		return
	}

	seedPrice, err := decimalx.ParseFromString(req.SeedPrice)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "InvalidParams", "seedPrice must be a decimal string")
		return
	}

	m, err := s.markets.CreateMarket(req.ID, req.Symbol, req.TokenAddress, seedPrice, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	if s.audit != nil {
		s.audit.LogAdminAction(r.Context(), "admin", "create_market", "market", m.ID, nil, map[string]interface{}{
			"symbol":    m.Symbol,
			"seedPrice": req.SeedPrice,
		})
	}
	writeJSON(w, http.StatusCreated, toMarketView(m))
}

// updateMarketRequest is a sparse patch: only non-nil fields are applied.
type updateMarketRequest struct {
	MaxLeverage       *string `json:"maxLeverage"`
	MaintenanceMargin *string `json:"maintenanceMargin"`
	TakerFee          *string `json:"takerFee"`
	MakerFee          *string `json:"makerFee"`
	MaxFundingRate    *string `json:"maxFundingRate"`
	BorrowingRate     *string `json:"borrowingRate"`
	Status            *string `json:"status"`
	ClaimFeesC1       bool    `json:"claimFeesC1"`
	ClaimFeesC2       bool    `json:"claimFeesC2"`
}

func (s *Server) handleUpdateMarket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateMarketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "InvalidBody", err.Error())
		return
	}

	err := s.markets.WithMarket(id, func(m *market.Market) error {
		if req.MaxLeverage != nil {
			v, err := decimalx.ParseFromString(*req.MaxLeverage)
			if err != nil {
				return err
			}
			m.MaxLeverage = v
		}
		if req.MaintenanceMargin != nil {
			v, err := decimalx.ParseFromString(*req.MaintenanceMargin)
			if err != nil {
				return err
			}
			m.MaintenanceMargin = v
		}
		if req.TakerFee != nil {
			v, err := decimalx.ParseFromString(*req.TakerFee)
			if err != nil {
				return err
			}
			m.TakerFee = v
		}
		if req.MakerFee != nil {
			v, err := decimalx.ParseFromString(*req.MakerFee)
			if err != nil {
				return err
			}
			m.MakerFee = v
		}
		if req.MaxFundingRate != nil {
			v, err := decimalx.ParseFromString(*req.MaxFundingRate)
			if err != nil {
				return err
			}
			m.MaxFundingRate = v
		}
		if req.BorrowingRate != nil {
			v, err := decimalx.ParseFromString(*req.BorrowingRate)
			if err != nil {
				return err
			}
			m.BorrowingRate = v
		}
		if req.Status != nil {
			m.Status = market.Status(*req.Status)
		}
		if req.ClaimFeesC1 {
			m.ClaimFees(ledger.C1)
		}
		if req.ClaimFeesC2 {
			m.ClaimFees(ledger.C2)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if s.audit != nil {
		s.audit.LogAdminAction(r.Context(), "admin", "update_market", "market", id, nil, nil)
	}
	if s.cache != nil {
		s.cache.Invalidate(r.Context(), cache.NamespaceMarkets, id)
	}

	m, err := s.markets.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarketView(m))
}
