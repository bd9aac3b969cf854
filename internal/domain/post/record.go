// internal/domain/post/record.go
package post

import (
	"fmt"
	"strings"
	"time"
)

// Record is the persistent state kept for every tracked post.
type Record struct {
	PostID             string
	Author             string
	Category           Category
	CreatedAt          time.Time // millisecond precision, re-armed when a filtered post re-enters PendingResponse
	CommentID          string    // bot comment on the post
	SentConversationID string    // explanation request sent to the author
	ResponseID         string    // accepted reply, set at most once
	Deleted            bool
	Filtered           bool
	Removed            bool
	Safe               bool
}

// NewRecord creates an untracked record for a post. It has no category until
// the first SetCategory.
func NewRecord(postID, author string, createdAt time.Time) *Record {
	return &Record{
		PostID:    postID,
		Author:    author,
		CreatedAt: time.UnixMilli(createdAt.UnixMilli()),
	}
}

// Age is the time elapsed since CreatedAt.
func (r *Record) Age(now time.Time) time.Duration {
	return now.Sub(r.CreatedAt)
}

// OlderThan reports whether the record is older than the given number of minutes.
// A zero threshold disables the check.
func (r *Record) OlderThan(minutes int, now time.Time) bool {
	if minutes == 0 {
		return false
	}
	return r.Age(now).Milliseconds() > int64(minutes)*60_000
}

// AwaitingResponse is true until an explanation has been accepted.
func (r *Record) AwaitingResponse() bool {
	return r.ResponseID == ""
}

// Rearm resets CreatedAt so reply and age windows start over.
func (r *Record) Rearm(now time.Time) {
	r.CreatedAt = time.UnixMilli(now.UnixMilli())
}

func (r *Record) applyCategory(c Category) {
	r.Category = c
	r.Deleted = c == CategoryDeleted
	r.Filtered = c == CategoryFiltered
	r.Removed = c == CategoryRemoved
	r.Safe = c == CategorySafe
}

// HumanAge renders an age the way moderator-facing texts show it.
func HumanAge(d time.Duration) string {
	return HumanMinutes(int(d / time.Minute))
}

// HumanMinutes renders a number of minutes as "X days Y hours Z minutes",
// leaving out zero parts.
func HumanMinutes(minutes int) string {
	if minutes <= 0 {
		return "0 minutes"
	}
	days := minutes / (24 * 60)
	hours := (minutes % (24 * 60)) / 60
	mins := minutes % 60

	var parts []string
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if mins > 0 {
		parts = append(parts, plural(mins, "minute"))
	}
	return strings.Join(parts, " ")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
