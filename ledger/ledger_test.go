package ledger

import (
	"context"
	"testing"

	"github.com/rtxlabs/vperp/decimalx"
)

func TestLockMovesAvailableToLocked(t *testing.T) {
	ctx := context.Background()
	l := NewInMemory()
	l.Deposit("u1", C1, decimalx.MustParse("100"))

	if err := l.Lock(ctx, "u1", C1, decimalx.MustParse("40")); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	bal, err := l.Balance(ctx, "u1", C1)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if !bal.Available.Equal(decimalx.MustParse("60")) {
		t.Errorf("available = %s, want 60", bal.Available)
	}
	if !bal.Locked.Equal(decimalx.MustParse("40")) {
		t.Errorf("locked = %s, want 40", bal.Locked)
	}
}

func TestLockInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	l := NewInMemory()
	l.Deposit("u1", C1, decimalx.MustParse("10"))

	if err := l.Lock(ctx, "u1", C1, decimalx.MustParse("40")); err != ErrInsufficientBalance {
		t.Fatalf("Lock error = %v, want ErrInsufficientBalance", err)
	}
}

func TestReleaseAppliesPnl(t *testing.T) {
	ctx := context.Background()
	l := NewInMemory()
	l.Deposit("u1", C2, decimalx.MustParse("100"))
	if err := l.Lock(ctx, "u1", C2, decimalx.MustParse("50")); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	if err := l.Release(ctx, "u1", C2, decimalx.MustParse("50"), decimalx.MustParse("-5")); err != nil {
		t.Fatalf("Release: %v", err)
	}

	bal, _ := l.Balance(ctx, "u1", C2)
	if !bal.Available.Equal(decimalx.MustParse("95")) {
		t.Errorf("available = %s, want 95", bal.Available)
	}
	if !bal.Locked.IsZero() {
		t.Errorf("locked = %s, want 0", bal.Locked)
	}
}

func TestAssetsAreIsolated(t *testing.T) {
	ctx := context.Background()
	l := NewInMemory()
	l.Deposit("u1", C1, decimalx.MustParse("10"))

	bal, _ := l.Balance(ctx, "u1", C2)
	if !bal.Available.IsZero() {
		t.Errorf("C2 balance leaked from C1 deposit: %s", bal.Available)
	}
}
