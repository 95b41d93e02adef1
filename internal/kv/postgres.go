package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS kv_store (
		key        TEXT PRIMARY KEY,
		value      JSONB NOT NULL,
		version    BIGINT NOT NULL DEFAULT 1,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// PostgresStore keeps entries in a single kv_store table
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new postgres-backed store
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the kv_store table if needed
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to create kv_store table: %w", err)
	}
	return nil
}

// Get retrieves an entry by key
func (s *PostgresStore) Get(ctx context.Context, key string) (*Entry, error) {
	query := `SELECT value, version FROM kv_store WHERE key = $1`
	e := Entry{Key: key}
	err := s.db.QueryRow(ctx, query, key).Scan(&e.Value, &e.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get key %q: %w", key, err)
	}
	return &e, nil
}

// MGet retrieves several keys in one round trip
func (s *PostgresStore) MGet(ctx context.Context, keys []string) ([]*Entry, error) {
	out := make([]*Entry, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	query := `SELECT key, value, version FROM kv_store WHERE key = ANY($1)`
	rows, err := s.db.Query(ctx, query, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to get keys: %w", err)
	}
	defer rows.Close()

	found := make(map[string]*Entry, len(keys))
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value, &e.Version); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		found[e.Key] = &e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}

	for i, k := range keys {
		out[i] = found[k]
	}
	return out, nil
}

// Set upserts a value and bumps its version
func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv_store (key, value, version, updated_at)
		VALUES ($1, $2::jsonb, 1, now())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, version = kv_store.version + 1, updated_at = now()
	`
	if _, err := s.db.Exec(ctx, query, key, string(value)); err != nil {
		return fmt.Errorf("failed to set key %q: %w", key, err)
	}
	return nil
}

// CompareAndSwap writes only when the stored version matches expected
func (s *PostgresStore) CompareAndSwap(ctx context.Context, key string, value []byte, expected int64) (int64, error) {
	if expected == 0 {
		query := `
			INSERT INTO kv_store (key, value, version, updated_at)
			VALUES ($1, $2::jsonb, 1, now())
			ON CONFLICT (key) DO NOTHING
		`
		result, err := s.db.Exec(ctx, query, key, string(value))
		if err != nil {
			return 0, fmt.Errorf("failed to insert key %q: %w", key, err)
		}
		if result.RowsAffected() == 0 {
			return 0, ErrConflict
		}
		return 1, nil
	}

	query := `
		UPDATE kv_store
		SET value = $2::jsonb, version = version + 1, updated_at = now()
		WHERE key = $1 AND version = $3
		RETURNING version
	`
	var next int64
	err := s.db.QueryRow(ctx, query, key, string(value), expected).Scan(&next)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrConflict
		}
		return 0, fmt.Errorf("failed to update key %q: %w", key, err)
	}
	return next, nil
}

// Delete removes a key; deleting an absent key is not an error
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM kv_store WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}

// Scan returns every entry under prefix
func (s *PostgresStore) Scan(ctx context.Context, prefix string) ([]*Entry, error) {
	query := `
		SELECT key, value, version
		FROM kv_store
		WHERE starts_with(key, $1)
		ORDER BY key
	`
	rows, err := s.db.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to scan prefix %q: %w", prefix, err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value, &e.Version); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}
	return out, nil
}

// Close releases the pool
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
