package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"explain_yourself_bot/internal/domain/moderation"
	"explain_yourself_bot/internal/domain/post"
	"explain_yourself_bot/internal/infra/config"
	"explain_yourself_bot/internal/infra/memstore"
	"explain_yourself_bot/internal/infra/modapi"
	"explain_yourself_bot/internal/infra/retry"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

var botUser = moderation.User{ID: "t2_bot", Name: "explainbot"}

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []string
}

func (a *recordingAlerter) Alert(_ context.Context, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, text)
	return nil
}

func (a *recordingAlerter) sent() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.alerts...)
}

type MockScheduler struct {
	mock.Mock
}

func (m *MockScheduler) ListJobs() []string {
	return m.Called().Get(0).([]string)
}

func (m *MockScheduler) RunJob(name string) error {
	return m.Called(name).Error(0)
}

func (m *MockScheduler) CancelAll() {
	m.Called()
}

type fixture struct {
	t      *testing.T
	ctx    context.Context
	svc    *Service
	store  *memstore.Store
	repo   *post.Repository
	api    *modapi.Memory
	alerts *recordingAlerter
	now    time.Time
}

// newFixture builds a service over in-memory backends. mutate adjusts the
// default policy.
func newFixture(t *testing.T, mutate func(p *config.Policy)) *fixture {
	t.Helper()
	p := config.DefaultPolicy()
	if mutate != nil {
		mutate(&p)
	}
	l, _ := test.NewNullLogger()
	f := &fixture{
		t:      t,
		ctx:    context.Background(),
		store:  memstore.New(),
		alerts: &recordingAlerter{},
		now:    t0,
	}
	f.repo = post.NewRepository(f.store)
	f.api = modapi.NewMemory(botUser, modapi.WithLogger(l.WithField("component", "modapi")))
	f.svc = NewService(f.repo, f.api, config.StaticPolicy(p), "pics",
		WithLogger(l),
		WithAlerter(f.alerts),
		WithRetry(retry.Policy{Retries: 0, Unit: time.Millisecond}),
		WithClock(func() time.Time { return f.now }),
	)
	return f
}

func (f *fixture) at(d time.Duration) {
	f.now = t0.Add(d)
}

// seedPost adds a live post created at t0.
func (f *fixture) seedPost(id, author, title string) {
	f.api.AddPost(moderation.Post{
		ID:            id,
		AuthorName:    author,
		SubredditName: "pics",
		Title:         title,
		URL:           "https://i.redd.it/" + id + ".jpg",
		Permalink:     "/r/pics/comments/" + id + "/",
		CreatedAt:     t0,
	})
}

// create seeds a post and runs the creation handler for it.
func (f *fixture) create(id, author string) *post.Record {
	f.t.Helper()
	f.seedPost(id, author, "My cat")
	require.NoError(f.t, f.svc.HandlePostCreate(f.ctx, moderation.PostCreated{PostID: id, AuthorName: author}))
	return f.record(id)
}

func (f *fixture) record(id string) *post.Record {
	f.t.Helper()
	rec, err := f.repo.Load(f.ctx, id)
	require.NoError(f.t, err)
	return rec
}

func (f *fixture) tracked(id string) bool {
	_, err := f.repo.Load(f.ctx, id)
	return err == nil
}

// indexesOf lists every category index holding id.
func (f *fixture) indexesOf(id string) []post.Category {
	var out []post.Category
	for _, c := range post.Categories {
		ok, err := f.repo.InCategory(f.ctx, c, id)
		require.NoError(f.t, err)
		if ok {
			out = append(out, c)
		}
	}
	return out
}
