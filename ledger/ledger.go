// Package ledger models the per-(user, collateral) margin account. Balances
// live outside the engine in production (a wallet or custodial ledger); this
// package defines the collaborator interface the engine depends on plus an
// in-memory reference implementation for tests and single-process
// deployments.
package ledger

import (
	"context"
	"errors"
	"sync"

	"github.com/rtxlabs/vperp/decimalx"
)

// Asset is one of the two collateral currencies the engine trades against.
type Asset string

const (
	C1 Asset = "C1"
	C2 Asset = "C2"
)

// ErrInsufficientBalance is returned when a lock/deduct would drive the
// available balance negative.
var ErrInsufficientBalance = errors.New("ledger: insufficient available balance")

// Balance is a snapshot of one (user, asset) account.
type Balance struct {
	Available decimalx.Decimal
	Locked    decimalx.Decimal
}

// Ledger is the margin-account collaborator. All amounts are denominated in
// the given asset's native units, not USD.
type Ledger interface {
	// Balance returns the current available/locked split.
	Balance(ctx context.Context, userID string, asset Asset) (Balance, error)

	// Lock moves amount from available to locked. Fails with
	// ErrInsufficientBalance if available < amount.
	Lock(ctx context.Context, userID string, asset Asset, amount decimalx.Decimal) error

	// Release moves amount out of locked back to available, then applies
	// pnl (which may be negative) directly to available. Used on full close.
	Release(ctx context.Context, userID string, asset Asset, amount, pnl decimalx.Decimal) error

	// Deduct removes amount directly from available (fees).
	Deduct(ctx context.Context, userID string, asset Asset, amount decimalx.Decimal) error

	// AddLocked increases locked balance directly, without touching
	// available — used when a position's locked margin grows via fee/funding
	// credit rather than a fresh lock from available.
	AddLocked(ctx context.Context, userID string, asset Asset, amount decimalx.Decimal) error

	// ReduceLocked decreases locked balance directly, without returning the
	// funds to available — used when fees/funding are charged out of the
	// position's locked margin into the market's fee pots.
	ReduceLocked(ctx context.Context, userID string, asset Asset, amount decimalx.Decimal) error
}

type account struct {
	available decimalx.Decimal
	locked    decimalx.Decimal
}

// InMemory is a reference Ledger backed by an in-process map, guarded by a
// single RWMutex. Accounts are small and this is a reference implementation;
// production deployments back Ledger with an external wallet/custodial system.
type InMemory struct {
	mu       sync.RWMutex
	accounts map[string]*account
}

// NewInMemory creates an empty ledger. Deposit seeds starting balances.
func NewInMemory() *InMemory {
	return &InMemory{accounts: make(map[string]*account)}
}

func key(userID string, asset Asset) string { return userID + "|" + string(asset) }

// Deposit credits available balance; used by tests and by an external wallet
// bridge (out of scope here) to seed or top up an account.
func (l *InMemory) Deposit(userID string, asset Asset, amount decimalx.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.get(userID, asset)
	a.available = a.available.Add(amount)
}

func (l *InMemory) get(userID string, asset Asset) *account {
	k := key(userID, asset)
	a, ok := l.accounts[k]
	if !ok {
		a = &account{available: decimalx.Zero, locked: decimalx.Zero}
		l.accounts[k] = a
	}
	return a
}

func (l *InMemory) Balance(_ context.Context, userID string, asset Asset) (Balance, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.accounts[key(userID, asset)]
	if !ok {
		return Balance{Available: decimalx.Zero, Locked: decimalx.Zero}, nil
	}
	return Balance{Available: a.available, Locked: a.locked}, nil
}

func (l *InMemory) Lock(_ context.Context, userID string, asset Asset, amount decimalx.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.get(userID, asset)
	if a.available.LessThan(amount) {
		return ErrInsufficientBalance
	}
	a.available = a.available.Sub(amount)
	a.locked = a.locked.Add(amount)
	return nil
}

func (l *InMemory) Release(_ context.Context, userID string, asset Asset, amount, pnl decimalx.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.get(userID, asset)
	a.locked = a.locked.Sub(amount)
	a.available = a.available.Add(amount).Add(pnl)
	return nil
}

func (l *InMemory) Deduct(_ context.Context, userID string, asset Asset, amount decimalx.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.get(userID, asset)
	if a.available.LessThan(amount) {
		return ErrInsufficientBalance
	}
	a.available = a.available.Sub(amount)
	return nil
}

func (l *InMemory) AddLocked(_ context.Context, userID string, asset Asset, amount decimalx.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.get(userID, asset)
	a.locked = a.locked.Add(amount)
	return nil
}

func (l *InMemory) ReduceLocked(_ context.Context, userID string, asset Asset, amount decimalx.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.get(userID, asset)
	a.locked = a.locked.Sub(amount)
	return nil
}

var _ Ledger = (*InMemory)(nil)
