// internal/app/sweeps.go
package app

import (
	"context"
	"errors"
	"time"

	"explain_yourself_bot/internal/domain/post"
	"explain_yourself_bot/internal/infra/config"
	"explain_yourself_bot/internal/infra/metrics"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	JobCommentWatcher  = "comment_watcher"
	JobPostWatcher     = "post_watcher"
	JobResponseWatcher = "response_watcher"
	JobWatcher         = "job_watcher"

	sweepParallelism = 8
)

// RequiredJobs must always be scheduled; the job watcher restores any that
// are missing.
var RequiredJobs = []string{JobCommentWatcher, JobPostWatcher, JobResponseWatcher, JobWatcher}

// Scheduler is the job runner the watchers live in.
type Scheduler interface {
	ListJobs() []string
	RunJob(name string) error
	CancelAll()
}

type sweepFunc func(ctx context.Context, t *tracked) (outcome string, err error)

func (s *Service) sweep(ctx context.Context, job string, fn func(ctx context.Context, inv *invocation) error) error {
	inv, err := s.begin(job, logrus.Fields{"job": job})
	if err != nil {
		return err
	}
	start := time.Now()
	defer func() {
		metrics.SweepDuration.WithLabelValues(job).Observe(time.Since(start).Seconds())
	}()
	return fn(ctx, inv)
}

// fetch loads the records of a category. Ids whose record is missing or
// belongs to another category are skipped and their stale index entry dropped.
func (inv *invocation) fetch(ctx context.Context, c post.Category) ([]*post.Record, error) {
	repo := inv.svc.repo
	ids, err := repo.ListCategory(ctx, c)
	if err != nil {
		return nil, err
	}
	recs := make([]*post.Record, len(ids))
	var g errgroup.Group
	g.SetLimit(sweepParallelism)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			logCtx := inv.log.WithField("post_id", id)
			rec, err := repo.Load(ctx, id)
			switch {
			case errors.Is(err, post.ErrRecordNotFound):
				logCtx.Warn("Index entry without record")
				return nil
			case err != nil:
				logCtx.WithError(err).Error("Failed to load record")
				return nil
			case rec.Category != c:
				logCtx.WithField("category", rec.Category).Warn("Dropping stale index entry")
				if err := repo.DropFromCategory(ctx, c, id); err != nil {
					logCtx.WithError(err).Error("Failed to drop stale index entry")
				}
				return nil
			}
			recs[i] = rec
			return nil
		})
	}
	_ = g.Wait()

	out := recs[:0]
	for _, r := range recs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

// each runs fn for every record concurrently. A failing record is logged and
// never stops the others.
func (inv *invocation) each(ctx context.Context, job string, recs []*post.Record, fn sweepFunc) {
	var g errgroup.Group
	g.SetLimit(sweepParallelism)
	for _, rec := range recs {
		rec := rec
		g.Go(func() error {
			t := inv.track(rec)
			outcome, err := fn(ctx, t)
			if err != nil {
				t.log.WithError(err).Error("Failed to process record")
				outcome = "error"
			}
			if outcome != "" {
				metrics.SweepRecords.WithLabelValues(job, outcome).Inc()
			}
			return nil
		})
	}
	_ = g.Wait()
}

// commentDecision is the result of scoring the bot comment of an active post.
type commentDecision struct {
	safe    bool
	approve bool
	remove  bool
	report  bool
}

// decideComment applies the comment score rules in precedence order:
// mark safe, then remove/report, then approve.
func decideComment(p config.Policy, score, removalScore int) commentDecision {
	if p.MarkSafeWithCommentScore && score >= p.CommentSafeScore {
		return commentDecision{safe: true}
	}
	if score <= removalScore {
		return commentDecision{
			remove: p.RemoveWithCommentScore,
			report: p.ReportWithCommentScore && p.Texts.ReportReason != "",
		}
	}
	if p.ApproveWithCommentScore && score >= p.CommentApproveScore {
		return commentDecision{approve: true}
	}
	return commentDecision{}
}

// CheckComments scores the bot comment of every active post inside the
// comment age window. Posts past commentMaxAge are marked safe.
func (s *Service) CheckComments(ctx context.Context) error {
	return s.sweep(ctx, JobCommentWatcher, func(ctx context.Context, inv *invocation) error {
		recs, err := inv.fetch(ctx, post.CategoryActive)
		if err != nil {
			return err
		}
		p := inv.policy
		minAge := time.Duration(p.CommentMinAge) * time.Minute
		maxAge := time.Duration(p.CommentMaxAge) * time.Minute
		rule := p.ScoreRule()

		inv.each(ctx, JobCommentWatcher, recs, func(ctx context.Context, t *tracked) (string, error) {
			if t.rec.OlderThan(p.CommentMaxAge, inv.now) {
				return "safe_max_age", t.markSafe(ctx)
			}
			age := t.rec.Age(inv.now)
			if age < minAge || age > maxAge {
				return "", nil
			}
			c, err := t.resolveComment(ctx)
			if err != nil {
				return "", err
			}
			if c == nil {
				return "no_comment", nil
			}
			if _, err := t.resolvePost(ctx); err != nil {
				return "", err
			}

			removal := post.RemovalScore(rule, age)
			d := decideComment(p, c.Score, removal)
			logCtx := t.log.WithFields(logrus.Fields{"comment_score": c.Score, "removal_score": removal})
			switch {
			case d.safe:
				logCtx.Info("Marking safe due to comment score")
				return "safe", t.markSafe(ctx)
			case d.remove:
				logCtx.Info("Removing due to comment score")
				if err := t.markRemoved(ctx, true); err != nil {
					return "", err
				}
				if d.report {
					return "removed_reported", t.report(ctx)
				}
				return "removed", nil
			case d.report:
				logCtx.Info("Reporting due to comment score")
				if err := t.report(ctx); err != nil {
					return "", err
				}
				return "reported", t.setCategory(ctx, post.CategoryRemoved)
			case d.approve:
				logCtx.Info("Approving due to comment score")
				if err := t.approvePost(ctx); err != nil {
					return "", err
				}
				return "approved", t.markApproved(ctx)
			}
			return "kept", nil
		})
		return nil
	})
}

// CheckPosts approves or marks safe active posts whose own score is high enough.
func (s *Service) CheckPosts(ctx context.Context) error {
	return s.sweep(ctx, JobPostWatcher, func(ctx context.Context, inv *invocation) error {
		p := inv.policy
		if !p.MarkSafeWithPostScore && !p.ApproveWithPostScore {
			inv.log.Debug("No post score actions enabled")
			return nil
		}
		recs, err := inv.fetch(ctx, post.CategoryActive)
		if err != nil {
			return err
		}
		inv.each(ctx, JobPostWatcher, recs, func(ctx context.Context, t *tracked) (string, error) {
			live, err := t.resolvePost(ctx)
			if err != nil {
				return "", err
			}
			switch {
			case p.ApproveWithPostScore && live.Score >= p.PostApproveScore:
				t.log.WithField("post_score", live.Score).Info("Approving due to post score")
				if err := t.approvePost(ctx); err != nil {
					return "", err
				}
				return "approved", t.markApproved(ctx)
			case p.MarkSafeWithPostScore && live.Score >= p.PostSafeScore:
				t.log.WithField("post_score", live.Score).Info("Marking safe due to post score")
				return "safe", t.markSafe(ctx)
			}
			return "kept", nil
		})
		return nil
	})
}

// CheckResponses times out explanation requests: PendingResponse posts past
// replyDuration are removed (NoResponse, or straight to Removed without a late
// window) and NoResponse posts past lateReplyDuration end up Removed.
func (s *Service) CheckResponses(ctx context.Context) error {
	return s.sweep(ctx, JobResponseWatcher, func(ctx context.Context, inv *invocation) error {
		p := inv.policy
		pending, err := inv.fetch(ctx, post.CategoryPendingResponse)
		if err != nil {
			return err
		}
		var expired []*post.Record
		for _, rec := range pending {
			if p.ReplyDuration > 0 && rec.OlderThan(p.ReplyDuration, inv.now) && rec.AwaitingResponse() {
				expired = append(expired, rec)
			}
		}
		inv.each(ctx, JobResponseWatcher, expired, func(ctx context.Context, t *tracked) (string, error) {
			if p.LateReplyDuration < 1 {
				t.log.Info("No reply in time, removing post")
				return "removed", t.markRemoved(ctx, true)
			}
			t.log.Info("No reply in time, hiding post until late reply window closes")
			return "no_response", t.markNoResponse(ctx)
		})

		late, err := inv.fetch(ctx, post.CategoryNoResponse)
		if err != nil {
			return err
		}
		var lateExpired []*post.Record
		for _, rec := range late {
			if rec.OlderThan(p.LateReplyDuration, inv.now) {
				lateExpired = append(lateExpired, rec)
			}
		}
		inv.each(ctx, JobResponseWatcher, lateExpired, func(ctx context.Context, t *tracked) (string, error) {
			t.log.Info("No late reply in time, removing post")
			return "removed", t.markRemoved(ctx, true)
		})
		return nil
	})
}

// EnsureJobs re-schedules any required job that is not running.
func (s *Service) EnsureJobs(ctx context.Context, sched Scheduler) error {
	return s.sweep(ctx, JobWatcher, func(ctx context.Context, inv *invocation) error {
		running := make(map[string]bool)
		for _, name := range sched.ListJobs() {
			running[name] = true
		}
		var errs []error
		for _, name := range RequiredJobs {
			if running[name] {
				continue
			}
			inv.log.WithField("missing_job", name).Info("Scheduling missing job")
			if err := sched.RunJob(name); err != nil {
				inv.log.WithError(err).WithField("missing_job", name).Error("Failed to schedule job")
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// OnInstall resets scheduling: every job is cancelled and only the job
// watcher is started, which brings up the others on its first run.
func (s *Service) OnInstall(ctx context.Context, sched Scheduler) error {
	inv, err := s.begin("app_install", nil)
	if err != nil {
		return err
	}
	if inv.policy.Texts.ExplanationPendingComment == "" && !inv.policy.AllowExplanation {
		inv.log.Warn("Pending comment and explanations are both disabled; new posts will only be watched by score")
	}
	sched.CancelAll()
	if err := sched.RunJob(JobWatcher); err != nil {
		inv.log.WithError(err).Error("Failed to schedule job watcher")
		return err
	}
	inv.log.Info("Scheduled job watcher")
	return nil
}
