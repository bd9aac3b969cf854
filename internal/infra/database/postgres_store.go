// internal/infra/database/postgres_store.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq" // For pq.Array
)

const schema = `
CREATE TABLE IF NOT EXISTS record_fields (
    key   TEXT NOT NULL,
    field TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (key, field)
);
CREATE TABLE IF NOT EXISTS category_index (
    index_key TEXT   NOT NULL,
    member    TEXT   NOT NULL,
    score     BIGINT NOT NULL,
    PRIMARY KEY (index_key, member)
);
CREATE INDEX IF NOT EXISTS category_index_score_idx ON category_index (index_key, score);`

// PostgresStore is the relational stand-in for the Redis layout: one row per
// hash field and one row per sorted set member.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the tables when they do not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("error creating store schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetFields(ctx context.Context, key string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT field, value FROM record_fields WHERE key = $1`, key)
	if err != nil {
		return nil, fmt.Errorf("error getting fields of %s: %w", key, err)
	}
	defer rows.Close()

	fields := make(map[string]string)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, fmt.Errorf("error scanning field of %s: %w", key, err)
		}
		fields[field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fields of %s: %w", key, err)
	}
	return fields, nil
}

func (s *PostgresStore) SetFields(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction for %s: %w", key, err)
	}
	defer tx.Rollback() // no-op after commit

	query := `INSERT INTO record_fields (key, field, value) VALUES ($1, $2, $3)
              ON CONFLICT (key, field) DO UPDATE SET value = EXCLUDED.value`
	for field, value := range fields {
		if _, err := tx.ExecContext(ctx, query, key, field, value); err != nil {
			return fmt.Errorf("error setting %s.%s: %w", key, field, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing fields of %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) AddToIndex(ctx context.Context, index, member string, score int64) error {
	query := `INSERT INTO category_index (index_key, member, score) VALUES ($1, $2, $3)
              ON CONFLICT (index_key, member) DO UPDATE SET score = EXCLUDED.score`
	if _, err := s.db.ExecContext(ctx, query, index, member, score); err != nil {
		return fmt.Errorf("error adding %s to %s: %w", member, index, err)
	}
	return nil
}

func (s *PostgresStore) RemoveFromIndex(ctx context.Context, index, member string) error {
	query := `DELETE FROM category_index WHERE index_key = $1 AND member = $2`
	if _, err := s.db.ExecContext(ctx, query, index, member); err != nil {
		return fmt.Errorf("error removing %s from %s: %w", member, index, err)
	}
	return nil
}

// RemoveFromIndexes drops member from all given indexes in one statement.
func (s *PostgresStore) RemoveFromIndexes(ctx context.Context, indexes []string, member string) error {
	query := `DELETE FROM category_index WHERE member = $1 AND index_key = ANY($2)`
	if _, err := s.db.ExecContext(ctx, query, member, pq.Array(indexes)); err != nil {
		return fmt.Errorf("error removing %s from indexes: %w", member, err)
	}
	return nil
}

func (s *PostgresStore) ScanIndex(ctx context.Context, index string) ([]string, error) {
	query := `SELECT member FROM category_index WHERE index_key = $1 ORDER BY score ASC, member ASC`
	return s.queryStrings(ctx, query, index)
}

func (s *PostgresStore) IndexContains(ctx context.Context, index, member string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM category_index WHERE index_key = $1 AND member = $2)`
	if err := s.db.QueryRowContext(ctx, query, index, member).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking %s for %s: %w", index, member, err)
	}
	return exists, nil
}

func (s *PostgresStore) ScanKeys(ctx context.Context, prefix string) ([]string, error) {
	query := `SELECT DISTINCT key FROM record_fields WHERE starts_with(key, $1) ORDER BY key`
	return s.queryStrings(ctx, query, prefix)
}

func (s *PostgresStore) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying store: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}
