package query

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/armature-app/armature/internal/visibility"
)

// Store executes the composed statements against the storage layer.
type Store interface {
	Count(ctx context.Context, sql string, args []any) (int, error)
	Select(ctx context.Context, sql string, args []any) ([]visibility.Record, error)
}

// PGStore is the pgx-backed Store.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Count implements Store.
func (s *PGStore) Count(ctx context.Context, sql string, args []any) (int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// Select implements Store.
func (s *PGStore) Select(ctx context.Context, sql string, args []any) ([]visibility.Record, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var records []visibility.Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		record := make(visibility.Record, len(fields))
		for i, field := range fields {
			record[field.Name] = values[i]
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
