package app

import (
	"testing"
	"time"

	"explain_yourself_bot/internal/domain/post"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminID int64 = 1001

func TestAdminService_Authorization(t *testing.T) {
	f := newFixture(t, nil)
	admin := NewAdminService(f.svc, new(MockScheduler), adminID)

	_, err := admin.Lookup(f.ctx, 1, "t3_a")
	assert.ErrorIs(t, err, ErrAdminNotAuthorized)
	_, err = admin.CategoryCounts(f.ctx, 1)
	assert.ErrorIs(t, err, ErrAdminNotAuthorized)
	_, err = admin.RebuildIndexes(f.ctx, 1)
	assert.ErrorIs(t, err, ErrAdminNotAuthorized)
	_, err = admin.Jobs(1)
	assert.ErrorIs(t, err, ErrAdminNotAuthorized)
}

func TestAdminService_LookupAndCounts(t *testing.T) {
	f := newFixture(t, nil)
	admin := NewAdminService(f.svc, new(MockScheduler), adminID)
	f.create("t3_a", "alice")
	f.create("t3_b", "bob")
	f.at(11 * time.Minute)
	require.NoError(t, f.svc.CheckResponses(f.ctx))

	status, err := admin.Lookup(f.ctx, adminID, "t3_a")
	require.NoError(t, err)
	assert.Equal(t, post.CategoryNoResponse, status.Record.Category)
	assert.Equal(t, []post.Category{post.CategoryNoResponse}, status.Indexes)

	_, err = admin.Lookup(f.ctx, adminID, "t3_missing")
	assert.ErrorIs(t, err, ErrPostNotTracked)

	counts, err := admin.CategoryCounts(f.ctx, adminID)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[post.CategoryNoResponse])
	assert.Zero(t, counts[post.CategoryPendingResponse])
}

func TestAdminService_RebuildIndexes(t *testing.T) {
	f := newFixture(t, nil)
	admin := NewAdminService(f.svc, new(MockScheduler), adminID)
	f.create("t3_a", "alice")
	// Leftover membership from an interrupted transition.
	require.NoError(t, f.store.AddToIndex(f.ctx, post.CategoryRemoved.IndexKey(), "t3_a", t0.UnixMilli()))
	require.Len(t, f.indexesOf("t3_a"), 2)

	n, err := admin.RebuildIndexes(f.ctx, adminID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []post.Category{post.CategoryPendingResponse}, f.indexesOf("t3_a"))
}

func TestAdminService_Jobs(t *testing.T) {
	f := newFixture(t, nil)
	sched := new(MockScheduler)
	sched.On("ListJobs").Return([]string{JobWatcher, JobCommentWatcher})
	admin := NewAdminService(f.svc, sched, adminID)

	jobs, err := admin.Jobs(adminID)
	require.NoError(t, err)
	assert.Equal(t, []string{JobCommentWatcher, JobWatcher}, jobs)
}
