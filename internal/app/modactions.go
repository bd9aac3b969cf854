// internal/app/modactions.go
package app

import (
	"context"
	"errors"

	"explain_yourself_bot/internal/domain/moderation"
	"explain_yourself_bot/internal/domain/post"

	"github.com/sirupsen/logrus"
)

// HandleModAction reacts to moderator approvals, removals and filters on
// tracked posts and on the bot's own comments. Actions taken by the bot
// itself are ignored.
func (s *Service) HandleModAction(ctx context.Context, ev moderation.ModAction) error {
	inv, err := s.begin("mod_action", logrus.Fields{
		"action":     ev.Kind,
		"target":     ev.Target,
		"actor":      ev.ActorName,
		"post_id":    ev.PostID,
		"comment_id": ev.CommentID,
	})
	if err != nil {
		return err
	}
	err = inv.handleModAction(ctx, ev)
	recordEvent("mod_action", err)
	return err
}

func (inv *invocation) handleModAction(ctx context.Context, ev moderation.ModAction) error {
	bot, err := inv.botUser(ctx)
	if err != nil {
		return err
	}
	if ev.ActorName == bot.Name {
		inv.log.Debug("Ignoring own action")
		return nil
	}

	postID := ev.PostID
	onComment := ev.Target == moderation.TargetComment
	if onComment {
		if ev.CommentAuthorID != bot.ID {
			inv.log.Debug("Ignoring action on a comment not written by the bot")
			return nil
		}
		postID, err = inv.postForComment(ctx, ev.CommentID)
		if err != nil {
			return err
		}
		if postID == "" {
			inv.log.Warn("No post found for bot comment")
			return nil
		}
	}
	if postID == "" {
		inv.log.Warn("Mod action without a target post")
		return nil
	}

	switch ev.Kind {
	case moderation.ActionFilter:
		return inv.handleFilter(ctx, postID)
	case moderation.ActionApprove:
		return inv.handleApprove(ctx, postID)
	case moderation.ActionRemove:
		return inv.handleRemove(ctx, postID, onComment)
	default:
		inv.log.Debug("Ignoring unwatched action")
		return nil
	}
}

// postForComment resolves a bot comment to its post through the stored
// mapping, falling back to the live comment.
func (inv *invocation) postForComment(ctx context.Context, commentID string) (string, error) {
	id, err := inv.svc.repo.PostIDForComment(ctx, commentID)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, post.ErrRecordNotFound) {
		return "", err
	}
	var c *moderation.Comment
	err = inv.call(ctx, "GetComment", func() error {
		var err error
		c, err = inv.svc.api.GetComment(ctx, commentID)
		return err
	})
	if errors.Is(err, moderation.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return c.PostID, nil
}

func (inv *invocation) handleApprove(ctx context.Context, postID string) error {
	rec, err := inv.load(ctx, postID)
	if err != nil {
		return err
	}
	wasFiltered := rec != nil && rec.Category == post.CategoryFiltered
	if rec == nil {
		inFiltered, err := inv.svc.repo.InCategory(ctx, post.CategoryFiltered, postID)
		if err != nil {
			return err
		}
		if !inFiltered {
			inv.log.Info("Approved post is not tracked")
			return nil
		}
		live, err := inv.getPost(ctx, postID)
		if err != nil {
			return err
		}
		inv.log.Info("Rebuilding record for approved filtered post")
		rec = post.NewRecord(live.ID, live.AuthorName, live.CreatedAt)
		rec.Category = post.CategoryFiltered
		wasFiltered = true
	}

	t := inv.track(rec)
	if rec.Category.Terminal() {
		t.log.WithField("category", rec.Category).Debug("Ignoring approval of finished post")
		return nil
	}

	mod, err := inv.isModerator(ctx, rec.Author)
	if err != nil {
		return err
	}
	if mod {
		t.log.Info("Author is a moderator, marking approved")
		return t.markApproved(ctx)
	}

	if wasFiltered {
		return t.reopenFiltered(ctx)
	}

	if rec.Category == post.CategoryPendingResponse && rec.AwaitingResponse() {
		t.log.Info("Post still awaiting explanation, keeping it pending")
		return nil
	}
	return t.markApproved(ctx)
}

// reopenFiltered re-runs the exclusion rules against the live post. Excluded
// posts become safe; the rest get a fresh explanation window.
func (t *tracked) reopenFiltered(ctx context.Context) error {
	live, err := t.resolvePost(ctx)
	if err != nil {
		return err
	}
	if reason := exclusionReason(t.inv.policy, live, t.log); reason != "" {
		t.log.WithField("reason", reason).Info("Approved filtered post is excluded, marking approved")
		return t.markApproved(ctx)
	}
	if !t.rec.AwaitingResponse() {
		return t.markApproved(ctx)
	}

	t.rec.Rearm(t.inv.now)
	if t.rec.SentConversationID == "" {
		t.log.Info("Starting explanation workflow for approved filtered post")
		return t.initializeSession(ctx)
	}
	t.log.Info("Re-opening explanation window for approved filtered post")
	return t.setCategory(ctx, post.CategoryPendingResponse)
}

func (inv *invocation) handleRemove(ctx context.Context, postID string, onComment bool) error {
	rec, err := inv.load(ctx, postID)
	if err != nil {
		return err
	}
	if rec == nil {
		inv.log.Info("Removed post is not tracked")
		return nil
	}
	t := inv.track(rec)
	switch {
	case rec.Category == post.CategoryFiltered:
		t.log.Debug("Ignoring removal of filtered post")
		return nil
	case rec.Category.Terminal():
		t.log.WithField("category", rec.Category).Debug("Ignoring removal of finished post")
		return nil
	case onComment:
		t.log.Info("Bot comment removed, marking post safe")
		return t.markSafe(ctx)
	default:
		return t.markRemoved(ctx, false)
	}
}
