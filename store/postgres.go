package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the durable Store implementation backed by a
// pgxpool.Pool, built against the six tables of the persisted-state
// schema. The generic Row capability (Columns/Args/ScanDest) lets one
// implementation serve every table instead of one hand-written file per
// table, at the cost of predicates/deltas needing column names instead of
// arbitrary SQL.
type PostgresStore[T any, PT RowPtr[T]] struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresStore constructs a PostgresStore for row type T, deriving
// its table name from a zero-value instance's TableName().
func NewPostgresStore[T any, PT RowPtr[T]](pool *pgxpool.Pool) *PostgresStore[T, PT] {
	var zero T
	return &PostgresStore[T, PT]{pool: pool, table: PT(&zero).TableName()}
}

// whereClause renders predicate as a deterministic "col1 = $1 AND col2 =
// $2" fragment (sorted by column name so generated SQL is stable across
// calls with the same predicate, which matters for logging and for
// prepared-statement caching), returning the fragment and its args in
// placeholder order. argOffset lets callers append this after other
// placeholders.
func whereClause(predicate Predicate, argOffset int) (string, []interface{}) {
	if len(predicate) == 0 {
		return "", nil
	}
	cols := make([]string, 0, len(predicate))
	for c := range predicate {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	parts := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%s = $%d", c, argOffset+i+1)
		args[i] = predicate[c]
	}
	return "WHERE " + strings.Join(parts, " AND "), args
}

func (s *PostgresStore[T, PT]) scanRows(rows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
}) ([]T, error) {
	var out []T
	for rows.Next() {
		var t T
		if err := rows.Scan(PT(&t).ScanDest()...); err != nil {
			return nil, fmt.Errorf("store: scan %s: %w", s.table, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Select runs a column-equality SELECT against the table.
func (s *PostgresStore[T, PT]) Select(ctx context.Context, predicate Predicate) ([]T, error) {
	var zero T
	cols := PT(&zero).Columns()
	where, args := whereClause(predicate, 0)

	sql := fmt.Sprintf("SELECT %s FROM %s %s", strings.Join(cols, ", "), s.table, where)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("store: select %s: %w", s.table, err)
	}
	defer rows.Close()
	return s.scanRows(rows)
}

// Insert runs an INSERT ... RETURNING for row and returns the stored copy.
func (s *PostgresStore[T, PT]) Insert(ctx context.Context, row T) (T, error) {
	var zero T
	rp := PT(&row)
	cols := rp.Columns()
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		s.table, strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(cols, ", "))

	var out T
	if err := s.pool.QueryRow(ctx, sql, rp.Args()...).Scan(PT(&out).ScanDest()...); err != nil {
		return zero, fmt.Errorf("store: insert %s: %w", s.table, err)
	}
	return out, nil
}

// Update runs an UPDATE ... RETURNING applying delta to every row
// predicate matches.
func (s *PostgresStore[T, PT]) Update(ctx context.Context, delta Delta, predicate Predicate) ([]T, error) {
	var zero T
	cols := PT(&zero).Columns()

	setCols := make([]string, 0, len(delta))
	for c := range delta {
		setCols = append(setCols, c)
	}
	sort.Strings(setCols)

	setParts := make([]string, len(setCols))
	args := make([]interface{}, len(setCols))
	for i, c := range setCols {
		setParts[i] = fmt.Sprintf("%s = $%d", c, i+1)
		args[i] = delta[c]
	}

	where, whereArgs := whereClause(predicate, len(setCols))
	args = append(args, whereArgs...)

	sql := fmt.Sprintf("UPDATE %s SET %s %s RETURNING %s",
		s.table, strings.Join(setParts, ", "), where, strings.Join(cols, ", "))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("store: update %s: %w", s.table, err)
	}
	defer rows.Close()
	return s.scanRows(rows)
}

// Upsert runs an INSERT ... ON CONFLICT (conflictKeys) DO UPDATE.
func (s *PostgresStore[T, PT]) Upsert(ctx context.Context, row T, conflictKeys []string) (T, error) {
	var zero T
	rp := PT(&row)
	cols := rp.Columns()
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	updateParts := make([]string, 0, len(cols))
	conflict := make(map[string]bool, len(conflictKeys))
	for _, k := range conflictKeys {
		conflict[k] = true
	}
	for _, c := range cols {
		if conflict[c] {
			continue
		}
		updateParts = append(updateParts, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}

	sql := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s RETURNING %s",
		s.table,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(conflictKeys, ", "),
		strings.Join(updateParts, ", "),
		strings.Join(cols, ", "),
	)

	var out T
	if err := s.pool.QueryRow(ctx, sql, rp.Args()...).Scan(PT(&out).ScanDest()...); err != nil {
		return zero, fmt.Errorf("store: upsert %s: %w", s.table, err)
	}
	return out, nil
}
