// internal/infra/modapi/ratelimited.go
package modapi

import (
	"context"

	"explain_yourself_bot/internal/domain/moderation"

	"go.uber.org/ratelimit"
)

var _ moderation.API = (*RateLimited)(nil)

// RateLimited paces every call to the wrapped API. Sweeps fan out over many
// records at once and the platform enforces a request budget per client.
type RateLimited struct {
	next    moderation.API
	limiter ratelimit.Limiter
}

func NewRateLimited(next moderation.API, perSecond int) *RateLimited {
	if perSecond <= 0 {
		return &RateLimited{next: next, limiter: ratelimit.NewUnlimited()}
	}
	return &RateLimited{next: next, limiter: ratelimit.New(perSecond)}
}

func (r *RateLimited) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.limiter.Take()
	return nil
}

func (r *RateLimited) AppUser(ctx context.Context) (moderation.User, error) {
	if err := r.wait(ctx); err != nil {
		return moderation.User{}, err
	}
	return r.next.AppUser(ctx)
}

func (r *RateLimited) GetPost(ctx context.Context, postID string) (*moderation.Post, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.GetPost(ctx, postID)
}

func (r *RateLimited) GetComment(ctx context.Context, commentID string) (*moderation.Comment, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.GetComment(ctx, commentID)
}

func (r *RateLimited) GetModerators(ctx context.Context, subreddit string) ([]string, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.GetModerators(ctx, subreddit)
}

func (r *RateLimited) ApprovePost(ctx context.Context, postID string) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.ApprovePost(ctx, postID)
}

func (r *RateLimited) RemovePost(ctx context.Context, postID string) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.RemovePost(ctx, postID)
}

func (r *RateLimited) AddComment(ctx context.Context, postID, text string) (*moderation.Comment, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.AddComment(ctx, postID, text)
}

func (r *RateLimited) EditComment(ctx context.Context, commentID, text string) (*moderation.Comment, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.EditComment(ctx, commentID, text)
}

func (r *RateLimited) DistinguishComment(ctx context.Context, commentID string) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.DistinguishComment(ctx, commentID)
}

func (r *RateLimited) LockComment(ctx context.Context, commentID string) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.LockComment(ctx, commentID)
}

func (r *RateLimited) ReportComment(ctx context.Context, commentID, reason string) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.ReportComment(ctx, commentID, reason)
}

func (r *RateLimited) SendConversation(ctx context.Context, to, subject, body string) (string, error) {
	if err := r.wait(ctx); err != nil {
		return "", err
	}
	return r.next.SendConversation(ctx, to, subject, body)
}

func (r *RateLimited) ReplyToConversation(ctx context.Context, conversationID, body string, internal bool) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.ReplyToConversation(ctx, conversationID, body, internal)
}

func (r *RateLimited) ArchiveConversation(ctx context.Context, conversationID string) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.ArchiveConversation(ctx, conversationID)
}

func (r *RateLimited) GetConversation(ctx context.Context, conversationID string) (*moderation.Conversation, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.GetConversation(ctx, conversationID)
}
