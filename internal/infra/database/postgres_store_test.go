package database

import (
	"context"
	"os"
	"testing"
	"time"

	"explain_yourself_bot/internal/domain/post"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real server only when TEST_DATABASE_URL is set.
func newTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := Open(context.Background(), dsn, DefaultPool())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewPostgresStore(db)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))
	_, err = db.ExecContext(ctx, `TRUNCATE record_fields, category_index`)
	require.NoError(t, err)
	return s
}

func TestPostgresStore_Fields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetFields(ctx, "post:t3_a", map[string]string{"author": "alice", "category": "active"}))
	require.NoError(t, s.SetFields(ctx, "post:t3_a", map[string]string{"category": "safe"}))

	fields, err := s.GetFields(ctx, "post:t3_a")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"author": "alice", "category": "safe"}, fields)

	keys, err := s.ScanKeys(ctx, "post:")
	require.NoError(t, err)
	assert.Equal(t, []string{"post:t3_a"}, keys)
}

func TestPostgresStore_WithRepository(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	repo := post.NewRepository(s)

	older := post.NewRecord("t3_old", "bob", time.UnixMilli(1_000))
	newer := post.NewRecord("t3_new", "alice", time.UnixMilli(2_000))
	require.NoError(t, repo.SetCategory(ctx, newer, post.CategoryPendingResponse))
	require.NoError(t, repo.SetCategory(ctx, older, post.CategoryPendingResponse))
	require.NoError(t, repo.SetCategory(ctx, newer, post.CategoryActive))

	ids, err := repo.ListCategory(ctx, post.CategoryPendingResponse)
	require.NoError(t, err)
	assert.Equal(t, []string{"t3_old"}, ids)

	ok, err := repo.InCategory(ctx, post.CategoryActive, "t3_new")
	require.NoError(t, err)
	assert.True(t, ok)
}
