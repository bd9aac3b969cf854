// internal/domain/moderation/api.go
package moderation

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("moderation object not found")

// User identifies an account on the platform.
type User struct {
	ID   string
	Name string
}

type Post struct {
	ID            string
	AuthorName    string
	SubredditName string
	Title         string
	Body          string
	URL           string
	Permalink     string
	FlairTemplate string
	Score         int
	CreatedAt     time.Time
}

type Comment struct {
	ID        string
	PostID    string
	AuthorID  string
	Body      string
	Permalink string
	Score     int
}

type Message struct {
	ID           string
	AuthorName   string
	BodyHTML     string
	BodyMarkdown string
}

type Conversation struct {
	ID       string
	Messages map[string]Message
}

// API is the moderation command surface of the platform. Every call may fail
// transiently; callers retry.
type API interface {
	AppUser(ctx context.Context) (User, error)
	GetPost(ctx context.Context, postID string) (*Post, error)
	GetComment(ctx context.Context, commentID string) (*Comment, error)
	GetModerators(ctx context.Context, subreddit string) ([]string, error)

	ApprovePost(ctx context.Context, postID string) error
	RemovePost(ctx context.Context, postID string) error

	AddComment(ctx context.Context, postID, text string) (*Comment, error)
	EditComment(ctx context.Context, commentID, text string) (*Comment, error)
	DistinguishComment(ctx context.Context, commentID string) error
	LockComment(ctx context.Context, commentID string) error
	ReportComment(ctx context.Context, commentID, reason string) error

	// SendConversation opens a private conversation with a user and returns its id.
	SendConversation(ctx context.Context, to, subject, body string) (string, error)
	// ReplyToConversation posts into a conversation. Internal replies are only
	// visible to moderators.
	ReplyToConversation(ctx context.Context, conversationID, body string, internal bool) error
	ArchiveConversation(ctx context.Context, conversationID string) error
	GetConversation(ctx context.Context, conversationID string) (*Conversation, error)
}
