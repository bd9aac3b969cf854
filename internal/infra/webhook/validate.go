package webhook

import (
	"errors"
	"fmt"

	"explain_yourself_bot/internal/domain/moderation"
)

var errMissingPostID = errors.New("postId is required")

func validatePostCreated(ev moderation.PostCreated) error {
	if ev.PostID == "" {
		return errMissingPostID
	}
	return nil
}

func validatePostDeleted(ev moderation.PostDeleted) error {
	if ev.PostID == "" {
		return errMissingPostID
	}
	switch ev.Source {
	case moderation.DeletedByUser, moderation.DeletedByModerator:
		return nil
	default:
		return fmt.Errorf("unknown deletion source %q", ev.Source)
	}
}

func validatePostFiltered(ev moderation.PostFiltered) error {
	if ev.PostID == "" {
		return errMissingPostID
	}
	return nil
}

func validateInboundReply(ev moderation.InboundReply) error {
	if ev.ConversationID == "" || ev.MessageID == "" {
		return errors.New("conversationId and messageId are required")
	}
	if ev.AuthorName == "" {
		return errors.New("authorName is required")
	}
	return nil
}

func validateModAction(ev moderation.ModAction) error {
	switch ev.Kind {
	case moderation.ActionApprove, moderation.ActionRemove, moderation.ActionFilter:
	default:
		return fmt.Errorf("unknown action kind %q", ev.Kind)
	}
	switch ev.Target {
	case moderation.TargetPost:
		if ev.PostID == "" {
			return errMissingPostID
		}
	case moderation.TargetComment:
		if ev.CommentID == "" {
			return errors.New("commentId is required for comment actions")
		}
	default:
		return fmt.Errorf("unknown action target %q", ev.Target)
	}
	return nil
}
