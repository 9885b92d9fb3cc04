package cache

import (
	"context"
	"testing"
	"time"
)

func TestManagerSetGetRoundTrip(t *testing.T) {
	m, err := NewManager(&ManagerConfig{L1Size: 0, L1MaxItems: 100}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()

	if err := m.Set(ctx, NamespaceMarkets, "m1", "BTC-PERP"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := m.Get(ctx, NamespaceMarkets, "m1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "BTC-PERP" {
		t.Errorf("Get = %v, want BTC-PERP", got)
	}
}

func TestManagerInvalidateRemovesEntry(t *testing.T) {
	m, err := NewManager(&ManagerConfig{L1Size: 0, L1MaxItems: 100}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()

	if err := m.Set(ctx, NamespacePositions, "p1", "open"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := m.Invalidate(ctx, NamespacePositions, "p1"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	if _, err := m.Get(ctx, NamespacePositions, "p1"); err == nil {
		t.Errorf("expected a miss after invalidation")
	}
}

func TestManagerInvalidateFiresCallback(t *testing.T) {
	m, err := NewManager(&ManagerConfig{L1Size: 0, L1MaxItems: 100}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()

	fired := make(chan string, 1)
	m.OnInvalidate(func(key string) { fired <- key })

	if err := m.Set(ctx, NamespaceOHLCV, "m1:1m", "bucket"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := m.Invalidate(ctx, NamespaceOHLCV, "m1:1m"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	select {
	case key := <-fired:
		if key != Key(NamespaceOHLCV, "m1:1m") {
			t.Errorf("callback key = %s, want %s", key, Key(NamespaceOHLCV, "m1:1m"))
		}
	case <-time.After(time.Second):
		t.Errorf("onInvalidate callback did not fire within 1s")
	}
}
