package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"explain_yourself_bot/internal/app"
	"explain_yourself_bot/internal/domain/post"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const msgUnauthorized = "Error: you are not allowed to run this command."

// RegisterAdminHandlers registers the moderator inspection commands.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, adminTelegramID int64, baseLogger *logrus.Entry) {
	handle := func(command string, reply func(senderID int64, args []string, logCtx *logrus.Entry) string) {
		b.Handle(command, func(c telebot.Context) error {
			handlerLogger := baseLogger.WithFields(logrus.Fields{
				"handler":   command,
				"sender_id": c.Sender().ID,
			})
			handlerLogger.Info("Command received")

			if c.Sender().ID != adminTelegramID {
				handlerLogger.Warn("Unauthorized access attempt")
				return c.Send(msgUnauthorized)
			}
			return c.Send(reply(c.Sender().ID, c.Args(), handlerLogger), &telebot.SendOptions{DisableWebPagePreview: true})
		})
	}

	handle("/lookup", func(senderID int64, args []string, logCtx *logrus.Entry) string {
		return lookupReply(ctx, adminService, senderID, args, logCtx)
	})
	handle("/stats", func(senderID int64, _ []string, logCtx *logrus.Entry) string {
		return statsReply(ctx, adminService, senderID, logCtx)
	})
	handle("/reindex", func(senderID int64, _ []string, logCtx *logrus.Entry) string {
		return reindexReply(ctx, adminService, senderID, logCtx)
	})
	handle("/jobs", func(senderID int64, _ []string, logCtx *logrus.Entry) string {
		return jobsReply(adminService, senderID, logCtx)
	})
}

func errorReply(err error, action string, logCtx *logrus.Entry) string {
	logWithError := logCtx.WithError(err)
	if errors.Is(err, app.ErrAdminNotAuthorized) {
		logWithError.Warn("Admin not authorized (service level)")
		return msgUnauthorized
	}
	logWithError.Errorf("Failed to %s", action)
	return fmt.Sprintf("An error occurred while trying to %s: %s", action, err.Error())
}

// lookupReply expects /lookup <postId>. A bare base36 id gets the t3_ prefix.
func lookupReply(ctx context.Context, adminService *app.AdminService, senderID int64, args []string, logCtx *logrus.Entry) string {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "Invalid command format. Use: /lookup <postId>"
	}
	postID := strings.TrimSpace(args[0])
	if !strings.HasPrefix(postID, "t3_") {
		postID = "t3_" + postID
	}
	logCtx = logCtx.WithField("post_id", postID)

	status, err := adminService.Lookup(ctx, senderID, postID)
	if errors.Is(err, app.ErrPostNotTracked) {
		logCtx.Info("Lookup of untracked post")
		return fmt.Sprintf("Post %s is not tracked.", postID)
	}
	if err != nil {
		return errorReply(err, "look up the post", logCtx)
	}

	rec := status.Record
	var sb strings.Builder
	fmt.Fprintf(&sb, "Post %s\n", rec.PostID)
	fmt.Fprintf(&sb, "Author: u/%s\n", rec.Author)
	fmt.Fprintf(&sb, "Category: %s\n", orDash(string(rec.Category)))
	fmt.Fprintf(&sb, "Created: %s\n", rec.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "Comment: %s\n", orDash(rec.CommentID))
	fmt.Fprintf(&sb, "Conversation: %s\n", orDash(rec.SentConversationID))
	fmt.Fprintf(&sb, "Response: %s\n", orDash(rec.ResponseID))

	indexes := make([]string, len(status.Indexes))
	for i, c := range status.Indexes {
		indexes[i] = string(c)
	}
	fmt.Fprintf(&sb, "Indexes: %s", orDash(strings.Join(indexes, ", ")))
	if len(status.Indexes) != 1 || status.Indexes[0] != rec.Category {
		sb.WriteString("\nIndex entries do not match the category, run /reindex.")
	}
	return sb.String()
}

func statsReply(ctx context.Context, adminService *app.AdminService, senderID int64, logCtx *logrus.Entry) string {
	counts, err := adminService.CategoryCounts(ctx, senderID)
	if err != nil {
		return errorReply(err, "count posts", logCtx)
	}
	var sb strings.Builder
	sb.WriteString("Tracked posts by category:\n")
	total := 0
	for _, c := range post.Categories {
		fmt.Fprintf(&sb, "%s: %d\n", c, counts[c])
		total += counts[c]
	}
	fmt.Fprintf(&sb, "Total: %d", total)
	return sb.String()
}

func reindexReply(ctx context.Context, adminService *app.AdminService, senderID int64, logCtx *logrus.Entry) string {
	n, err := adminService.RebuildIndexes(ctx, senderID)
	if err != nil {
		return errorReply(err, "rebuild the indexes", logCtx)
	}
	logCtx.WithField("records", n).Info("Indexes rebuilt")
	return fmt.Sprintf("Rebuilt index entries for %d posts.", n)
}

func jobsReply(adminService *app.AdminService, senderID int64, logCtx *logrus.Entry) string {
	jobs, err := adminService.Jobs(senderID)
	if err != nil {
		return errorReply(err, "list jobs", logCtx)
	}
	if len(jobs) == 0 {
		return "No jobs are scheduled."
	}
	return "Scheduled jobs:\n" + strings.Join(jobs, "\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
