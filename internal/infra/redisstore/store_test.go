package redisstore

import (
	"context"
	"sort"
	"testing"
	"time"

	"explain_yourself_bot/internal/domain/post"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewStore(rdb), mr
}

func TestStore_Fields(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	fields, err := s.GetFields(ctx, "post:t3_missing")
	require.NoError(t, err)
	assert.Empty(t, fields)

	require.NoError(t, s.SetFields(ctx, "post:t3_a", map[string]string{"author": "alice", "category": "active"}))
	require.NoError(t, s.SetFields(ctx, "post:t3_a", map[string]string{"commentId": "t1_x"}))

	fields, err = s.GetFields(ctx, "post:t3_a")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"author": "alice", "category": "active", "commentId": "t1_x"}, fields)
	assert.Equal(t, "alice", mr.HGet("post:t3_a", "author"))
}

func TestStore_Indexes(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddToIndex(ctx, "posts:active", "t3_new", 2000))
	require.NoError(t, s.AddToIndex(ctx, "posts:active", "t3_old", 1000))
	require.NoError(t, s.AddToIndex(ctx, "posts:safe", "t3_new", 2000))

	ids, err := s.ScanIndex(ctx, "posts:active")
	require.NoError(t, err)
	assert.Equal(t, []string{"t3_old", "t3_new"}, ids)

	ok, err := s.IndexContains(ctx, "posts:safe", "t3_new")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.IndexContains(ctx, "posts:removed", "t3_new")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.RemoveFromIndexes(ctx, []string{"posts:active", "posts:safe"}, "t3_new"))
	ids, err = s.ScanIndex(ctx, "posts:active")
	require.NoError(t, err)
	assert.Equal(t, []string{"t3_old"}, ids)

	require.NoError(t, s.RemoveFromIndex(ctx, "posts:active", "t3_old"))
	ids, err = s.ScanIndex(ctx, "posts:active")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStore_ScanKeys(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	for _, k := range []string{"post:t3_a", "post:t3_b", "conversation:c1"} {
		require.NoError(t, s.SetFields(ctx, k, map[string]string{"x": "1"}))
	}
	keys, err := s.ScanKeys(ctx, "post:")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"post:t3_a", "post:t3_b"}, keys)
}

func TestStore_WithRepository(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	repo := post.NewRepository(s)

	rec := post.NewRecord("t3_abc", "alice", time.UnixMilli(1_700_000_000_000))
	require.NoError(t, repo.SetCategory(ctx, rec, post.CategoryPendingResponse))
	require.NoError(t, repo.SetCategory(ctx, rec, post.CategoryActive))

	members, err := mr.ZMembers("posts:active")
	require.NoError(t, err)
	assert.Equal(t, []string{"t3_abc"}, members)
	assert.False(t, mr.Exists("posts:pendingResponse"))

	loaded, err := repo.Load(ctx, "t3_abc")
	require.NoError(t, err)
	assert.Equal(t, post.CategoryActive, loaded.Category)
	assert.Equal(t, rec.CreatedAt, loaded.CreatedAt)
}
