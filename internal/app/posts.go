// internal/app/posts.go
package app

import (
	"context"
	"errors"

	"explain_yourself_bot/internal/domain/moderation"
	"explain_yourself_bot/internal/domain/post"
	"explain_yourself_bot/internal/infra/config"
	"explain_yourself_bot/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

// exclusionReason explains why a post is not tracked, or returns "" when it is.
func exclusionReason(p config.Policy, live *moderation.Post, log *logrus.Entry) string {
	re, err := p.ExclusionPattern()
	if err != nil {
		log.WithError(err).Warn("Ignoring invalid exclusion regex")
	}
	if re != nil {
		if p.ExcludesField("title") && re.MatchString(live.Title) {
			return "title matches exclusion regex"
		}
		if p.ExcludesField("body") && re.MatchString(live.Body) {
			return "body matches exclusion regex"
		}
	}

	flairs := p.FlairIDs()
	if len(flairs) > 0 {
		listed := false
		for _, id := range flairs {
			if id == live.FlairTemplate {
				listed = true
				break
			}
		}
		if p.FlairInclusion() && !listed {
			return "flair not in inclusion list"
		}
		if !p.FlairInclusion() && listed {
			return "flair in exclusion list"
		}
	}
	return ""
}

// HandlePostCreate starts tracking a new post: pending comment, explanation
// request, then the record is saved in PendingResponse (or Active when
// explanations are disabled).
func (s *Service) HandlePostCreate(ctx context.Context, ev moderation.PostCreated) error {
	inv, err := s.begin("post_create", logrus.Fields{"post_id": ev.PostID, "author": ev.AuthorName})
	if err != nil {
		return err
	}
	err = inv.handlePostCreate(ctx, ev)
	recordEvent("post_create", err)
	return err
}

func (inv *invocation) handlePostCreate(ctx context.Context, ev moderation.PostCreated) error {
	rec, err := inv.load(ctx, ev.PostID)
	if err != nil {
		return err
	}
	if rec != nil && rec.Category != post.CategoryNone {
		inv.log.WithField("category", rec.Category).Info("Post already tracked, ignoring creation")
		return nil
	}

	live, err := inv.getPost(ctx, ev.PostID)
	if err != nil {
		if errors.Is(err, moderation.ErrNotFound) {
			inv.log.Warn("Created post no longer exists")
			return nil
		}
		return err
	}
	if live.AuthorName == "" {
		live.AuthorName = ev.AuthorName
	}
	logCtx := inv.log.WithField("title", live.Title)

	if reason := exclusionReason(inv.policy, live, logCtx); reason != "" {
		logCtx.WithField("reason", reason).Info("Post excluded")
		return nil
	}

	if rec == nil {
		rec = post.NewRecord(live.ID, live.AuthorName, live.CreatedAt)
	} else {
		logCtx.Info("Resuming interrupted initialisation")
		if rec.Author == "" {
			rec.Author = live.AuthorName
		}
	}
	t := inv.track(rec)
	t.post = live

	mod, err := inv.isModerator(ctx, live.AuthorName)
	if err != nil {
		return err
	}
	if mod {
		logCtx.Info("Author is a moderator, marking post safe")
		return t.setCategory(ctx, post.CategorySafe)
	}

	if err := t.initializeSession(ctx); err != nil {
		logCtx.WithError(err).Error("Failed to initialise post session")
		return err
	}
	logCtx.WithField("category", rec.Category).Info("Tracking post")
	return nil
}

// HandlePostDelete records author deletions. Deletions by moderators or the
// platform arrive as mod actions and are ignored here.
func (s *Service) HandlePostDelete(ctx context.Context, ev moderation.PostDeleted) error {
	inv, err := s.begin("post_delete", logrus.Fields{"post_id": ev.PostID, "source": ev.Source})
	if err != nil {
		return err
	}
	err = inv.handlePostDelete(ctx, ev)
	recordEvent("post_delete", err)
	return err
}

func (inv *invocation) handlePostDelete(ctx context.Context, ev moderation.PostDeleted) error {
	if ev.Source != moderation.DeletedByUser {
		inv.log.Info("Ignoring non-user deletion")
		return nil
	}
	rec, err := inv.load(ctx, ev.PostID)
	if err != nil {
		return err
	}
	if rec == nil {
		inv.log.Info("Deleted post is not tracked")
		return nil
	}
	return inv.track(rec).markDeleted(ctx)
}

// HandleFilter moves a post held by AutoModerator into Filtered.
func (s *Service) HandleFilter(ctx context.Context, ev moderation.PostFiltered) error {
	inv, err := s.begin("filter", logrus.Fields{"post_id": ev.PostID})
	if err != nil {
		return err
	}
	err = inv.handleFilter(ctx, ev.PostID)
	recordEvent("filter", err)
	return err
}

func (inv *invocation) handleFilter(ctx context.Context, postID string) error {
	rec, err := inv.load(ctx, postID)
	if err != nil {
		return err
	}
	if rec == nil {
		live, err := inv.getPost(ctx, postID)
		if err != nil {
			return err
		}
		rec = post.NewRecord(live.ID, live.AuthorName, live.CreatedAt)
	}
	switch rec.Category {
	case post.CategoryFiltered:
		inv.log.Debug("Post already filtered")
		return nil
	case post.CategorySafe, post.CategoryDeleted:
		inv.log.WithField("category", rec.Category).Info("Ignoring filter of finished post")
		return nil
	}
	return inv.track(rec).markFiltered(ctx)
}

func recordEvent(event string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.Events.WithLabelValues(event, result).Inc()
}
