package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(spec string) *JobScheduler {
	l, _ := test.NewNullLogger()
	return NewJobScheduler(logrus.NewEntry(l), spec)
}

func TestJobScheduler_RunListCancel(t *testing.T) {
	s := newTestScheduler("*/5 * * * * *")
	noop := func(context.Context) error { return nil }
	s.Register("comment_watcher", noop)
	s.Register("job_watcher", noop)

	require.NoError(t, s.RunJob("job_watcher"))
	require.NoError(t, s.RunJob("comment_watcher"))
	require.NoError(t, s.RunJob("comment_watcher"), "scheduling twice is a no-op")
	assert.Equal(t, []string{"comment_watcher", "job_watcher"}, s.ListJobs())
	assert.Len(t, s.cronEngine.Entries(), 2)

	s.Cancel("comment_watcher")
	assert.Equal(t, []string{"job_watcher"}, s.ListJobs())

	s.CancelAll()
	assert.Empty(t, s.ListJobs())
	assert.Empty(t, s.cronEngine.Entries())
}

func TestJobScheduler_UnknownJob(t *testing.T) {
	s := newTestScheduler("*/5 * * * * *")
	assert.Error(t, s.RunJob("post_watcher"))
}

func TestJobScheduler_InvalidSpec(t *testing.T) {
	s := newTestScheduler("not a cron spec")
	s.Register("post_watcher", func(context.Context) error { return nil })
	assert.Error(t, s.RunJob("post_watcher"))
	assert.Empty(t, s.ListJobs())
}

func TestJobScheduler_RunsJobs(t *testing.T) {
	s := newTestScheduler("* * * * * *")
	var runs atomic.Int32
	s.Register("response_watcher", func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		runs.Add(1)
		return nil
	})
	require.NoError(t, s.RunJob("response_watcher"))

	s.Start()
	defer s.Stop()
	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}
