package store

import "context"

// Predicate is an AND-ed set of column equality constraints; the typed
// replacement for the source system's dynamic filter objects.
type Predicate map[string]interface{}

// Delta is a partial set of column assignments applied to every row a
// Predicate matches.
type Delta map[string]interface{}

// Store is the generic select/insert/update/upsert abstraction every
// table's persistence goes through. T is the row struct stored by value;
// PT is its pointer type, which is what actually implements Row.
type Store[T any, PT RowPtr[T]] interface {
	Select(ctx context.Context, predicate Predicate) ([]T, error)
	Insert(ctx context.Context, row T) (T, error)
	Update(ctx context.Context, delta Delta, predicate Predicate) ([]T, error)
	Upsert(ctx context.Context, row T, conflictKeys []string) (T, error)
}
