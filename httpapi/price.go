package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rtxlabs/vperp/stats"
)

func (s *Server) handleVirtualPrice(w http.ResponseWriter, r *http.Request) {
	m, err := s.markets.GetByID(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"marketId":     m.ID,
		"virtualPrice": m.VirtualPrice().String(),
	})
}

type candleView struct {
	Timestamp int64  `json:"timestamp"`
	Open      string `json:"open"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Close     string `json:"close"`
	Volume    string `json:"volume"`
}

func (s *Server) handleOHLCV(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	marketID := q.Get("marketId")
	if marketID == "" {
		writeErrorJSON(w, http.StatusBadRequest, "InvalidParams", "marketId is required")
		return
	}
	if _, err := s.markets.GetByID(marketID); err != nil {
		writeError(w, err)
		return
	}

	timeframe := stats.Timeframe(q.Get("timeframe"))
	if timeframe == "" {
		timeframe = stats.Timeframe1m
	}

	startTime := parseUnixOrZero(q.Get("startTime"))
	endTime := parseUnixOrZero(q.Get("endTime"))
	if endTime.IsZero() {
		endTime = time.Now()
	}

	limit := 500
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 {
		limit = l
	}

	candles := s.stats.OHLCV(marketID, timeframe, startTime, endTime, limit)
	out := make([]candleView, len(candles))
	for i, c := range candles {
		out[i] = candleView{
			Timestamp: c.Timestamp.Unix(),
			Open:      c.Open.String(),
			High:      c.High.String(),
			Low:       c.Low.String(),
			Close:     c.Close.String(),
			Volume:    c.Volume.String(),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func parseUnixOrZero(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
