package trade

import (
	"sync"

	"github.com/rtxlabs/vperp/apperror"
)

var ErrPositionNotFound = apperror.New(apperror.NotFound, "PositionNotFound", "position not found")
var ErrNotPositionOwner = apperror.New(apperror.Unauthorized, "NotPositionOwner", "position belongs to another user")

// posEntry pairs a position with its own lock, so that edits to different
// positions never contend while a single position is serialized against
// itself — fee accrual, liquidation, and client RPCs all mutate it.
type posEntry struct {
	mu sync.Mutex
	p  *Position
}

// positionStore is the in-memory reference position table. Keyed by
// position ID, with a secondary user index for listing.
type positionStore struct {
	mapMu   sync.RWMutex
	entries map[string]*posEntry
	byUser  map[string][]string
}

func newPositionStore() *positionStore {
	return &positionStore{
		entries: make(map[string]*posEntry),
		byUser:  make(map[string][]string),
	}
}

func (s *positionStore) insert(p *Position) {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	s.entries[p.ID] = &posEntry{p: p}
	s.byUser[p.UserID] = append(s.byUser[p.UserID], p.ID)
}

func (s *positionStore) get(id string) (*Position, error) {
	ent, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	return ent.p.clone(), nil
}

func (s *positionStore) lookup(id string) (*posEntry, error) {
	s.mapMu.RLock()
	defer s.mapMu.RUnlock()
	ent, ok := s.entries[id]
	if !ok {
		return nil, ErrPositionNotFound
	}
	return ent, nil
}

func (s *positionStore) listByUser(userID string) []*Position {
	s.mapMu.RLock()
	ids := append([]string(nil), s.byUser[userID]...)
	s.mapMu.RUnlock()

	out := make([]*Position, 0, len(ids))
	for _, id := range ids {
		if p, err := s.get(id); err == nil {
			out = append(out, p)
		}
	}
	return out
}

// listOpenIDs returns the IDs of every OPEN position, snapshotted under the
// map lock. Background jobs (fee accrual, liquidation, trigger scans) walk
// this list and then acquire each position's own lock individually, so a
// long scan never holds the map lock for the duration of a tick.
func (s *positionStore) listOpenIDs() []string {
	s.mapMu.RLock()
	defer s.mapMu.RUnlock()
	ids := make([]string, 0, len(s.entries))
	for id, ent := range s.entries {
		ent.mu.Lock()
		if ent.p.Status == StatusOpen {
			ids = append(ids, id)
		}
		ent.mu.Unlock()
	}
	return ids
}

// withPosition runs fn against the live position under its own lock,
// ownership-checked against userID first when userID is non-empty.
func (s *positionStore) withPosition(id, userID string, fn func(p *Position) error) error {
	ent, working, err := s.acquire(id, userID)
	if err != nil {
		return err
	}
	defer ent.mu.Unlock()

	if err := fn(working); err != nil {
		return err
	}
	ent.p = working
	return nil
}

// acquire locks position id for the duration of a multi-step operation
// (open/close/edit each span several collaborator calls that must observe
// a consistent snapshot and commit atomically). Callers MUST unlock
// ent.mu exactly once, via commit or direct Unlock on early exit.
func (s *positionStore) acquire(id, userID string) (ent *posEntry, working *Position, err error) {
	ent, err = s.lookup(id)
	if err != nil {
		return nil, nil, err
	}
	ent.mu.Lock()
	if userID != "" && ent.p.UserID != userID {
		ent.mu.Unlock()
		return nil, nil, ErrNotPositionOwner
	}
	return ent, ent.p.clone(), nil
}

// commit installs working as the new value for ent and releases its lock.
func (s *positionStore) commit(ent *posEntry, working *Position) {
	ent.p = working
	ent.mu.Unlock()
}
