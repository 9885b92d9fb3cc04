package binance

import (
	"context"
	"testing"

	"github.com/rtxlabs/vperp/ledger"
)

func TestSourceFetchMarketPriceUsesMid(t *testing.T) {
	src := NewSource(map[string]string{"btc-perp": "BTCUSD"}, "BTCUSD")
	src.quotes["BTCUSD"] = Quote{Symbol: "BTCUSD", Bid: 59999, Ask: 60001}

	price, err := src.FetchMarketPrice(context.Background(), "btc-perp")
	if err != nil {
		t.Fatalf("FetchMarketPrice: %v", err)
	}
	if price.String() != "60000" {
		t.Fatalf("price = %s, want 60000", price.String())
	}
}

func TestSourceFetchMarketPriceUnknownMarket(t *testing.T) {
	src := NewSource(map[string]string{"btc-perp": "BTCUSD"}, "BTCUSD")
	if _, err := src.FetchMarketPrice(context.Background(), "eth-perp"); err == nil {
		t.Fatal("expected error for unmapped market")
	}
}

func TestSourceFetchAssetPriceC2IsPegged(t *testing.T) {
	src := NewSource(nil, "")
	price, err := src.FetchAssetPrice(context.Background(), ledger.C2)
	if err != nil {
		t.Fatalf("FetchAssetPrice(C2): %v", err)
	}
	if price.String() != "1" {
		t.Fatalf("C2 price = %s, want 1", price.String())
	}
}

func TestSourceFetchAssetPriceC1TracksIndexSymbol(t *testing.T) {
	src := NewSource(nil, "BTCUSD")
	src.quotes["BTCUSD"] = Quote{Symbol: "BTCUSD", Bid: 100, Ask: 102}

	price, err := src.FetchAssetPrice(context.Background(), ledger.C1)
	if err != nil {
		t.Fatalf("FetchAssetPrice(C1): %v", err)
	}
	if price.String() != "101" {
		t.Fatalf("C1 price = %s, want 101", price.String())
	}
}

func TestSourceFetchAssetPriceC1NoSymbolConfigured(t *testing.T) {
	src := NewSource(nil, "")
	if _, err := src.FetchAssetPrice(context.Background(), ledger.C1); err == nil {
		t.Fatal("expected error when no C1 symbol is configured")
	}
}
