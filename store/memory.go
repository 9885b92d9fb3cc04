package store

import (
	"context"
	"errors"
	"reflect"
	"sync"
)

// ErrNotFound is returned when a lookup expecting exactly one row finds
// none. Shared with the Postgres implementation so callers can use
// errors.Is regardless of which backend is wired in.
var ErrNotFound = errors.New("store: row not found")

// MemoryStore is the in-memory reference implementation of Store — the
// default for tests and for any table that doesn't need to survive a
// process restart.
type MemoryStore[T any, PT RowPtr[T]] struct {
	mu   sync.Mutex
	rows []T
}

// NewMemoryStore constructs an empty MemoryStore for row type T.
func NewMemoryStore[T any, PT RowPtr[T]]() *MemoryStore[T, PT] {
	return &MemoryStore[T, PT]{}
}

func matches(row PT, predicate Predicate) bool {
	for col, want := range predicate {
		if !reflect.DeepEqual(row.Get(col), want) {
			return false
		}
	}
	return true
}

// Select returns every row matching predicate. An empty predicate
// matches every row.
func (s *MemoryStore[T, PT]) Select(ctx context.Context, predicate Predicate) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []T
	for i := range s.rows {
		if matches(PT(&s.rows[i]), predicate) {
			out = append(out, s.rows[i])
		}
	}
	return out, nil
}

// Insert appends row and returns the stored copy.
func (s *MemoryStore[T, PT]) Insert(ctx context.Context, row T) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows = append(s.rows, row)
	return s.rows[len(s.rows)-1], nil
}

// Update applies delta to every row matching predicate and returns the
// updated rows.
func (s *MemoryStore[T, PT]) Update(ctx context.Context, delta Delta, predicate Predicate) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []T
	for i := range s.rows {
		p := PT(&s.rows[i])
		if !matches(p, predicate) {
			continue
		}
		for col, val := range delta {
			p.Set(col, val)
		}
		out = append(out, s.rows[i])
	}
	return out, nil
}

// Upsert looks up an existing row by conflictKeys (taken from row's own
// column values) and either updates it in place or inserts row as new.
func (s *MemoryStore[T, PT]) Upsert(ctx context.Context, row T, conflictKeys []string) (T, error) {
	s.mu.Lock()

	conflict := Predicate{}
	rp := PT(&row)
	for _, col := range conflictKeys {
		conflict[col] = rp.Get(col)
	}

	for i := range s.rows {
		if matches(PT(&s.rows[i]), conflict) {
			for _, col := range rp.Columns() {
				PT(&s.rows[i]).Set(col, rp.Get(col))
			}
			result := s.rows[i]
			s.mu.Unlock()
			return result, nil
		}
	}

	s.rows = append(s.rows, row)
	result := s.rows[len(s.rows)-1]
	s.mu.Unlock()
	return result, nil
}
