package binance

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rtxlabs/vperp/decimalx"
	"github.com/rtxlabs/vperp/ledger"
)

// Source adapts Client's book-ticker stream into an oracle.Source: a
// market's price is the mid of the latest cached bid/ask for its mapped
// symbol, and the C1 collateral asset's USD price tracks a single
// configured symbol (its "index" instrument). C2 is pegged to $1 and never
// touches the network.
//
// BinanceWSURL only actually subscribes the btcusdt/ethusdt book-ticker
// streams (a fixed combined-stream URL, not built from Connect's symbols
// argument), so the only keys Quote.Symbol ever produces are "BTCUSD" and
// "ETHUSD" (USDT suffix rewritten to USD by handleMessage) — marketSymbols
// and c1Symbol must be drawn from that pair until BinanceWSURL is made to
// subscribe a caller-supplied symbol list.
type Source struct {
	client *Client

	marketSymbols map[string]string // marketID -> normalized symbol ("BTCUSD", "ETHUSD")
	c1Symbol      string            // normalized symbol backing the C1 collateral asset's USD price

	mu     sync.RWMutex
	quotes map[string]Quote // normalized symbol -> latest quote
}

// NewSource constructs a Source. marketSymbols maps engine market IDs to
// normalized symbols (e.g. {"btc-perp": "BTCUSD"}); c1Symbol is the
// normalized symbol whose mid price is reported for ledger.C1.
func NewSource(marketSymbols map[string]string, c1Symbol string) *Source {
	return &Source{
		client:        NewClient(),
		marketSymbols: marketSymbols,
		c1Symbol:      c1Symbol,
		quotes:        make(map[string]Quote),
	}
}

// Run connects to the Binance stream and pumps quotes into the cache until
// ctx is cancelled. Intended to run on its own goroutine for the process
// lifetime; a dropped connection reconnects on its own (Client.reconnect).
func (s *Source) Run(ctx context.Context) error {
	symbols := make([]string, 0, len(s.marketSymbols)+1)
	seen := make(map[string]bool)
	for _, sym := range s.marketSymbols {
		if !seen[sym] {
			symbols = append(symbols, sym)
			seen[sym] = true
		}
	}
	if s.c1Symbol != "" && !seen[s.c1Symbol] {
		symbols = append(symbols, s.c1Symbol)
	}

	if err := s.client.Connect(symbols); err != nil {
		return fmt.Errorf("binance: connect: %w", err)
	}

	go func() {
		<-ctx.Done()
		s.client.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case q, ok := <-s.client.GetQuotesChan():
			if !ok {
				return nil
			}
			s.mu.Lock()
			s.quotes[q.Symbol] = q
			s.mu.Unlock()
		}
	}
}

func (s *Source) mid(symbol string) (decimalx.Decimal, error) {
	s.mu.RLock()
	q, ok := s.quotes[symbol]
	s.mu.RUnlock()
	if !ok {
		return decimalx.Zero, fmt.Errorf("binance: no quote cached for %s", symbol)
	}
	bid := decimalx.FromInner(decimal.NewFromFloat(q.Bid))
	ask := decimalx.FromInner(decimal.NewFromFloat(q.Ask))
	return bid.Add(ask).Div(decimalx.NewFromInt(2)), nil
}

// FetchMarketPrice implements oracle.Source.
func (s *Source) FetchMarketPrice(_ context.Context, marketID string) (decimalx.Decimal, error) {
	symbol, ok := s.marketSymbols[marketID]
	if !ok {
		return decimalx.Zero, fmt.Errorf("binance: no symbol mapping for market %q", marketID)
	}
	return s.mid(symbol)
}

// FetchAssetPrice implements oracle.Source.
func (s *Source) FetchAssetPrice(_ context.Context, asset ledger.Asset) (decimalx.Decimal, error) {
	if asset == ledger.C2 {
		return decimalx.NewFromInt(1), nil
	}
	if s.c1Symbol == "" {
		return decimalx.Zero, fmt.Errorf("binance: no symbol configured for C1")
	}
	return s.mid(s.c1Symbol)
}
