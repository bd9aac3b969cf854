// internal/domain/moderation/events.go
package moderation

// ActionKind is the normalized moderator action.
type ActionKind string

const (
	ActionApprove ActionKind = "approve"
	ActionRemove  ActionKind = "remove"
	ActionFilter  ActionKind = "filter"
)

// TargetType says whether a mod action hit a post or a comment.
type TargetType string

const (
	TargetPost    TargetType = "post"
	TargetComment TargetType = "comment"
)

// watchedActions maps mod log action names to what the bot reacts to.
var watchedActions = map[string]struct {
	kind   ActionKind
	target TargetType
}{
	"approvelink":    {ActionApprove, TargetPost},
	"approvecomment": {ActionApprove, TargetComment},
	"removelink":     {ActionRemove, TargetPost},
	"removecomment":  {ActionRemove, TargetComment},
	"spamlink":       {ActionRemove, TargetPost},
	"spamcomment":    {ActionRemove, TargetComment},
}

// ParseModLogAction converts a mod log action name. ok is false for actions
// the bot does not watch.
func ParseModLogAction(action string) (kind ActionKind, target TargetType, ok bool) {
	w, ok := watchedActions[action]
	return w.kind, w.target, ok
}

// ModAction is a moderator action observed on the subreddit.
type ModAction struct {
	Kind            ActionKind `json:"kind"`
	Target          TargetType `json:"target"`
	ActorName       string     `json:"actorName"`
	PostID          string     `json:"postId,omitempty"`
	CommentID       string     `json:"commentId,omitempty"`
	CommentAuthorID string     `json:"commentAuthorId,omitempty"`
}

type PostCreated struct {
	PostID     string `json:"postId"`
	AuthorName string `json:"authorName"`
}

// DeletionSource tells who removed a post from the site.
type DeletionSource string

const (
	DeletedByUser      DeletionSource = "user"
	DeletedByModerator DeletionSource = "moderator"
)

type PostDeleted struct {
	PostID string         `json:"postId"`
	Source DeletionSource `json:"source"`
}

// PostFiltered is emitted when AutoModerator holds a post for review.
type PostFiltered struct {
	PostID string `json:"postId"`
}

// InboundReply is a message posted by a user into a conversation the bot
// started. Bodies may be empty, in which case the conversation is fetched.
type InboundReply struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	AuthorName     string `json:"authorName"`
	BodyHTML       string `json:"bodyHtml,omitempty"`
	BodyMarkdown   string `json:"bodyMarkdown,omitempty"`
}
