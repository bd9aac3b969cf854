// internal/app/service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"explain_yourself_bot/internal/domain/moderation"
	"explain_yourself_bot/internal/domain/post"
	"explain_yourself_bot/internal/infra/config"
	"explain_yourself_bot/internal/infra/logger"
	"explain_yourself_bot/internal/infra/metrics"
	"explain_yourself_bot/internal/infra/retry"

	"github.com/sirupsen/logrus"
)

// commentRetries is used for posting new comments, which fail more often
// right after a post is created.
const commentRetries = 5

// Alerter notifies moderators out of band about removals and reports.
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

// Service runs the explanation workflow. Event handlers and watcher jobs are
// its methods; each call snapshots the policy once and works with it until it
// returns.
type Service struct {
	repo      *post.Repository
	api       moderation.API
	policies  config.PolicySource
	subreddit string

	alerts Alerter
	log    *logrus.Logger
	retry  retry.Policy
	now    func() time.Time

	botMu sync.Mutex
	bot   *moderation.User
}

type Option func(*Service)

func WithAlerter(a Alerter) Option {
	return func(s *Service) { s.alerts = a }
}

func WithLogger(l *logrus.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithRetry(p retry.Policy) Option {
	return func(s *Service) { s.retry = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(
	repo *post.Repository,
	api moderation.API,
	policies config.PolicySource,
	subreddit string,
	opts ...Option,
) *Service {
	s := &Service{
		repo:      repo,
		api:       api,
		policies:  policies,
		subreddit: subreddit,
		log:       logger.Log,
		retry:     retry.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// invocation is the state shared by everything done for one event or job run.
type invocation struct {
	svc    *Service
	policy config.Policy
	log    *logrus.Entry
	now    time.Time
}

func (s *Service) begin(handler string, fields logrus.Fields) (*invocation, error) {
	entry := logger.Invocation(s.log, handler).WithFields(fields)
	policy, err := s.policies.Snapshot()
	if err != nil {
		entry.WithError(err).Error("Failed to load policy")
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}
	return &invocation{svc: s, policy: policy, log: entry, now: s.now()}, nil
}

// call runs an API operation with the service retry policy. Not-found errors
// are not retried.
func (inv *invocation) call(ctx context.Context, op string, fn func() error) error {
	return inv.callN(ctx, op, inv.svc.retry, fn)
}

func (inv *invocation) callN(ctx context.Context, op string, p retry.Policy, fn func() error) error {
	err := p.Do(ctx, func() error {
		err := fn()
		if errors.Is(err, moderation.ErrNotFound) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil && !errors.Is(err, moderation.ErrNotFound) {
		metrics.APIFailures.WithLabelValues(op).Inc()
	}
	return err
}

// botUser returns the account the bot acts as, fetched once per process.
func (inv *invocation) botUser(ctx context.Context) (moderation.User, error) {
	s := inv.svc
	s.botMu.Lock()
	defer s.botMu.Unlock()
	if s.bot != nil {
		return *s.bot, nil
	}
	var u moderation.User
	err := inv.call(ctx, "AppUser", func() error {
		var err error
		u, err = s.api.AppUser(ctx)
		return err
	})
	if err != nil {
		return moderation.User{}, fmt.Errorf("failed to resolve bot user: %w", err)
	}
	s.bot = &u
	return u, nil
}

func (inv *invocation) isModerator(ctx context.Context, name string) (bool, error) {
	var mods []string
	err := inv.call(ctx, "GetModerators", func() error {
		var err error
		mods, err = inv.svc.api.GetModerators(ctx, inv.svc.subreddit)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to list moderators: %w", err)
	}
	for _, m := range mods {
		if m == name {
			return true, nil
		}
	}
	return false, nil
}

func (inv *invocation) getPost(ctx context.Context, postID string) (*moderation.Post, error) {
	var p *moderation.Post
	err := inv.call(ctx, "GetPost", func() error {
		var err error
		p, err = inv.svc.api.GetPost(ctx, postID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get post %s: %w", postID, err)
	}
	return p, nil
}

// load returns nil without error for untracked posts.
func (inv *invocation) load(ctx context.Context, postID string) (*post.Record, error) {
	rec, err := inv.svc.repo.Load(ctx, postID)
	if errors.Is(err, post.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (inv *invocation) alert(ctx context.Context, text string) {
	if inv.svc.alerts == nil {
		return
	}
	if err := inv.svc.alerts.Alert(ctx, text); err != nil {
		inv.log.WithError(err).Warn("Failed to send moderator alert")
	}
}
