// internal/app/tracked.go
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"explain_yourself_bot/internal/domain/moderation"
	"explain_yourself_bot/internal/domain/post"
	"explain_yourself_bot/internal/infra/metrics"
	"explain_yourself_bot/internal/infra/render"

	"github.com/sirupsen/logrus"
)

// PrivateNote is the internal moderator note left on the explanation
// conversation when a post changes state.
type PrivateNote string

const (
	NoteApproved   PrivateNote = "The post/comment was approved by a moderator. This can include approvals performed by the bot itself."
	NoteDeleted    PrivateNote = "The post was deleted by the author."
	NoteFiltered   PrivateNote = "The post/comment was filtered by AutoModerator. Responses will be allowed after moderator approval."
	NoteRemoved    PrivateNote = "The post/comment was removed by a moderator. This can include removals for the following reasons:\n\n- a moderator (other than this bot) removed the post/comment\n- this bot removed the post for failing to meet defined requirements\n- author failed to respond with an explanation within the required time\n- spam"
	NoteSafe       PrivateNote = "The post has marked as safe. It will no longer be monitored."
	NoteNoResponse PrivateNote = "The explanation request was not responded to by the author."
)

type commentKind string

const (
	commentAccepted commentKind = "accepted"
	commentPending  commentKind = "pending"
	commentRemoved  commentKind = "removed"
	commentSafe     commentKind = "safe"
)

const (
	maxSubjectLength = 100
	maxReportLength  = 100
)

var errNoComment = errors.New("bot comment was not posted")

// tracked binds a post record to one invocation and caches the live post and
// bot comment it resolves along the way.
type tracked struct {
	inv     *invocation
	rec     *post.Record
	post    *moderation.Post
	comment *moderation.Comment
	log     *logrus.Entry
}

func (inv *invocation) track(rec *post.Record) *tracked {
	entry := inv.log.WithField("post_id", rec.PostID)
	if inv.policy.DebugMode {
		entry = entry.WithFields(logrus.Fields{
			"author":          rec.Author,
			"category":        rec.Category,
			"comment_id":      rec.CommentID,
			"conversation_id": rec.SentConversationID,
		})
	}
	return &tracked{inv: inv, rec: rec, log: entry}
}

func (t *tracked) api() moderation.API { return t.inv.svc.api }

func (t *tracked) repo() *post.Repository { return t.inv.svc.repo }

func (t *tracked) resolvePost(ctx context.Context) (*moderation.Post, error) {
	if t.post != nil {
		return t.post, nil
	}
	p, err := t.inv.getPost(ctx, t.rec.PostID)
	if err != nil {
		return nil, err
	}
	if p.AuthorName == "" {
		p.AuthorName = t.rec.Author
	}
	t.post = p
	return p, nil
}

// resolveComment returns nil without error when the record has no comment or
// the comment no longer exists.
func (t *tracked) resolveComment(ctx context.Context) (*moderation.Comment, error) {
	if t.comment != nil || t.rec.CommentID == "" {
		return t.comment, nil
	}
	var c *moderation.Comment
	err := t.inv.call(ctx, "GetComment", func() error {
		var err error
		c, err = t.api().GetComment(ctx, t.rec.CommentID)
		return err
	})
	if errors.Is(err, moderation.ErrNotFound) {
		t.log.WithField("comment_id", t.rec.CommentID).Warn("Bot comment no longer exists")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comment %s: %w", t.rec.CommentID, err)
	}
	t.comment = c
	return c, nil
}

func (t *tracked) save(ctx context.Context) error {
	return t.repo().Save(ctx, t.rec)
}

func (t *tracked) setCategory(ctx context.Context, c post.Category) error {
	from := t.rec.Category
	if err := t.repo().SetCategory(ctx, t.rec, c); err != nil {
		return err
	}
	metrics.Transitions.WithLabelValues(string(from), string(c)).Inc()
	t.log.WithFields(logrus.Fields{"from": from, "to": c}).Info("Moved post to category")
	return nil
}

// values collects placeholder values. The live post is optional; without it
// only record data is filled in.
func (t *tracked) values() render.Values {
	p := t.inv.policy
	v := render.Values{
		Subreddit:         t.inv.svc.subreddit,
		Author:            t.rec.Author,
		ReplyDuration:     p.ReplyDuration,
		LateReplyDuration: p.LateReplyDuration,
	}
	if t.post != nil {
		if t.post.SubredditName != "" {
			v.Subreddit = t.post.SubredditName
		}
		v.Author = t.post.AuthorName
		v.Title = t.post.Title
		v.Permalink = t.post.Permalink
		v.Link = t.post.URL
		v.Score = t.post.Score
	}
	if t.comment != nil {
		v.CommentPermalink = t.comment.Permalink
	}
	return v
}

func (t *tracked) formatExplanation(explanation string) string {
	if t.inv.policy.SpoilerExplanation {
		return render.Spoiler(explanation)
	}
	return render.Quote(explanation)
}

// amend prepends header to the existing comment body unless it is already there.
func amend(header string, existing *moderation.Comment) (string, bool) {
	if header == "" || existing == nil {
		return "", false
	}
	if strings.HasPrefix(existing.Body, header) {
		return "", false
	}
	return header + "\n" + existing.Body, true
}

// commentReply posts or edits the bot comment. It returns nil without error
// when the configuration leaves nothing to write.
func (t *tracked) commentReply(ctx context.Context, kind commentKind, explanation string) (*moderation.Comment, error) {
	existing, err := t.resolveComment(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := t.resolvePost(ctx); err != nil {
		return nil, err
	}

	texts := t.inv.policy.Texts
	vals := t.values()
	var text string
	var write bool
	switch kind {
	case commentAccepted:
		if explanation != "" {
			vals.Explanation = t.formatExplanation(explanation)
			text = render.Render(texts.ExplanationAcceptedComment, vals)
			write = text != ""
		}
	case commentPending:
		text = render.Render(texts.ExplanationPendingComment, vals)
		write = text != ""
	case commentRemoved:
		text, write = amend(render.Render(texts.PostRemovalCommentHeader, vals), existing)
	case commentSafe:
		text, write = amend(render.Render(texts.PostMarkedSafeCommentHeader, vals), existing)
	default:
		return nil, fmt.Errorf("unhandled comment kind %q", kind)
	}
	logCtx := t.log.WithField("comment_kind", kind)
	if !write {
		logCtx.Debug("Comment was not added or modified")
		return nil, nil
	}

	var c *moderation.Comment
	switch {
	case existing != nil && existing.Body == text:
		c = existing
	case existing != nil:
		logCtx.Info("Editing bot comment")
		err = t.inv.call(ctx, "EditComment", func() error {
			var err error
			c, err = t.api().EditComment(ctx, existing.ID, text)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to edit comment %s: %w", existing.ID, err)
		}
	default:
		logCtx.Info("Adding bot comment")
		err = t.inv.callN(ctx, "AddComment", t.inv.svc.retry.WithRetries(commentRetries), func() error {
			var err error
			c, err = t.api().AddComment(ctx, t.rec.PostID, text)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to add comment: %w", err)
		}
		if err := t.inv.call(ctx, "DistinguishComment", func() error {
			return t.api().DistinguishComment(ctx, c.ID)
		}); err != nil {
			logCtx.WithError(err).Warn("Failed to distinguish comment")
		}
		t.rec.CommentID = c.ID
		if err := t.save(ctx); err != nil {
			return nil, err
		}
		if err := t.repo().LinkComment(ctx, c.ID, t.rec.PostID); err != nil {
			return nil, err
		}
	}
	t.comment = c

	if t.inv.policy.LockComment {
		if err := t.inv.call(ctx, "LockComment", func() error {
			return t.api().LockComment(ctx, c.ID)
		}); err != nil {
			logCtx.WithError(err).Warn("Failed to lock comment")
		}
	}
	return c, nil
}

// leaveNote adds an internal note to the explanation conversation and archives
// it. Failures are logged only.
func (t *tracked) leaveNote(ctx context.Context, note PrivateNote) {
	convID := t.rec.SentConversationID
	if convID == "" {
		t.log.Debug("No conversation to leave a note on")
		return
	}
	logCtx := t.log.WithField("conversation_id", convID)
	if err := t.inv.call(ctx, "ReplyToConversation", func() error {
		return t.api().ReplyToConversation(ctx, convID, string(note), true)
	}); err != nil {
		logCtx.WithError(err).Error("Failed to leave private moderator note")
		return
	}
	t.archive(ctx, convID)
}

func (t *tracked) archive(ctx context.Context, convID string) {
	if err := t.inv.call(ctx, "ArchiveConversation", func() error {
		return t.api().ArchiveConversation(ctx, convID)
	}); err != nil {
		t.log.WithError(err).WithField("conversation_id", convID).Warn("Failed to archive conversation")
	}
}

// sendMessage sends the explanation request once per record.
func (t *tracked) sendMessage(ctx context.Context) error {
	if t.rec.SentConversationID != "" {
		t.log.Debug("Explanation request already sent")
		return nil
	}
	if _, err := t.resolvePost(ctx); err != nil {
		return err
	}
	texts := t.inv.policy.Texts
	vals := t.values()
	prefix := fmt.Sprintf("[%s]: ", t.rec.PostID)
	subject := prefix + render.Truncate(render.Render(texts.MessageSubject, vals), maxSubjectLength-len([]rune(prefix)))
	body := render.Render(texts.MessageBody, vals)

	var convID string
	err := t.inv.call(ctx, "SendConversation", func() error {
		var err error
		convID, err = t.api().SendConversation(ctx, t.rec.Author, subject, body)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to send explanation request: %w", err)
	}
	t.rec.SentConversationID = convID
	if err := t.repo().LinkConversation(ctx, convID, t.rec.PostID); err != nil {
		return err
	}
	if err := t.save(ctx); err != nil {
		return err
	}
	t.log.WithField("conversation_id", convID).Info("Sent explanation request")
	t.archive(ctx, convID)
	return nil
}

// initializeSession runs pending comment, explanation request and save in
// that order. A failing step stops the rest; a retry edits the existing
// comment and skips a request that was already sent.
func (t *tracked) initializeSession(ctx context.Context) error {
	p := t.inv.policy
	if p.Texts.ExplanationPendingComment != "" {
		c, err := t.commentReply(ctx, commentPending, "")
		if err != nil {
			return err
		}
		if c == nil {
			return errNoComment
		}
	}
	if p.AllowExplanation {
		if err := t.sendMessage(ctx); err != nil {
			return err
		}
		return t.setCategory(ctx, post.CategoryPendingResponse)
	}
	return t.setCategory(ctx, post.CategoryActive)
}

// toSafe is the shared path of markSafe and markApproved.
func (t *tracked) toSafe(ctx context.Context, note PrivateNote) error {
	if t.rec.Category == post.CategorySafe {
		t.log.Debug("Post already safe")
		return nil
	}
	if err := t.setCategory(ctx, post.CategorySafe); err != nil {
		return err
	}
	if _, err := t.commentReply(ctx, commentSafe, ""); err != nil {
		t.log.WithError(err).Error("Failed to mark bot comment safe")
	}
	t.leaveNote(ctx, note)
	return nil
}

func (t *tracked) markSafe(ctx context.Context) error {
	return t.toSafe(ctx, NoteSafe)
}

func (t *tracked) markApproved(ctx context.Context) error {
	return t.toSafe(ctx, NoteApproved)
}

func (t *tracked) removePost(ctx context.Context) error {
	if err := t.inv.call(ctx, "RemovePost", func() error {
		return t.api().RemovePost(ctx, t.rec.PostID)
	}); err != nil {
		return fmt.Errorf("failed to remove post %s: %w", t.rec.PostID, err)
	}
	return nil
}

func (t *tracked) approvePost(ctx context.Context) error {
	if err := t.inv.call(ctx, "ApprovePost", func() error {
		return t.api().ApprovePost(ctx, t.rec.PostID)
	}); err != nil {
		return fmt.Errorf("failed to approve post %s: %w", t.rec.PostID, err)
	}
	return nil
}

// markRemoved moves the post to Removed. removeFromSite is false when a
// moderator already removed it.
func (t *tracked) markRemoved(ctx context.Context, removeFromSite bool) error {
	if t.rec.Category == post.CategoryRemoved {
		t.log.Debug("Post already removed")
		return nil
	}
	if removeFromSite {
		if err := t.removePost(ctx); err != nil {
			return err
		}
	}
	if err := t.setCategory(ctx, post.CategoryRemoved); err != nil {
		return err
	}
	if _, err := t.commentReply(ctx, commentRemoved, ""); err != nil {
		t.log.WithError(err).Error("Failed to mark bot comment removed")
	}
	t.leaveNote(ctx, NoteRemoved)
	if removeFromSite {
		t.inv.alert(ctx, fmt.Sprintf("Removed post %s by u/%s (%s)", t.rec.PostID, t.rec.Author, post.HumanAge(t.rec.Age(t.inv.now))))
	}
	return nil
}

// markNoResponse hides the post until the late reply window closes.
func (t *tracked) markNoResponse(ctx context.Context) error {
	if t.rec.Category == post.CategoryNoResponse {
		return nil
	}
	if err := t.removePost(ctx); err != nil {
		return err
	}
	if err := t.setCategory(ctx, post.CategoryNoResponse); err != nil {
		return err
	}
	t.leaveNote(ctx, NoteNoResponse)
	return nil
}

func (t *tracked) markFiltered(ctx context.Context) error {
	if t.rec.Category == post.CategoryFiltered {
		return nil
	}
	if err := t.setCategory(ctx, post.CategoryFiltered); err != nil {
		return err
	}
	t.leaveNote(ctx, NoteFiltered)
	return nil
}

func (t *tracked) markDeleted(ctx context.Context) error {
	if t.rec.Category == post.CategoryDeleted {
		return nil
	}
	if err := t.setCategory(ctx, post.CategoryDeleted); err != nil {
		return err
	}
	t.leaveNote(ctx, NoteDeleted)
	return nil
}

// report reports the bot comment. A blank report reason disables reporting.
func (t *tracked) report(ctx context.Context) error {
	if t.rec.CommentID == "" {
		return errNoComment
	}
	reason := render.Truncate(render.Render(t.inv.policy.Texts.ReportReason, t.values()), maxReportLength)
	if reason == "" {
		t.log.Warn("Report reason is blank, not reporting")
		return nil
	}
	if err := t.inv.call(ctx, "ReportComment", func() error {
		return t.api().ReportComment(ctx, t.rec.CommentID, reason)
	}); err != nil {
		return fmt.Errorf("failed to report comment %s: %w", t.rec.CommentID, err)
	}
	t.log.WithField("comment_id", t.rec.CommentID).Info("Reported bot comment")
	t.inv.alert(ctx, fmt.Sprintf("Reported post %s by u/%s: %s", t.rec.PostID, t.rec.Author, reason))
	return nil
}
