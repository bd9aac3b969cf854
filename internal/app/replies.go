// internal/app/replies.go
package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"explain_yourself_bot/internal/domain/moderation"
	"explain_yourself_bot/internal/domain/post"
	"explain_yourself_bot/internal/infra/metrics"
	"explain_yourself_bot/internal/infra/render"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

// ResponseType is the answer sent to an author replying to an explanation request.
type ResponseType string

const (
	ResponseAccepted        ResponseType = "accepted"
	ResponseAlreadyAccepted ResponseType = "alreadyAccepted"
	ResponseError           ResponseType = "error"
	ResponseIneligible      ResponseType = "ineligible"
	ResponseInvalid         ResponseType = "invalid"
	ResponseTooLate         ResponseType = "tooLate"
	ResponseTooShort        ResponseType = "tooShort"
)

var (
	urlPattern = regexp.MustCompile("\\b((?:https?://|www\\d{0,3}[.]|[a-z0-9.-]+[.][a-z]{2,4}/)(?:[^\\s()<>]+|\\(([^\\s()<>]+|(\\([^\\s()<>]+\\)))*\\))+(?:\\(([^\\s()<>]+|(\\([^\\s()<>]+\\)))*\\)|[^\\s`!()\\[\\]{};:'\".,<>?«»“”‘’]))")
	nonWord    = regexp.MustCompile(`\W`)
)

// HandleReply validates an author's reply to the explanation request and, if
// it qualifies, publishes it as the bot comment and re-activates the post.
func (s *Service) HandleReply(ctx context.Context, ev moderation.InboundReply) error {
	inv, err := s.begin("reply", logrus.Fields{
		"conversation_id": ev.ConversationID,
		"message_id":      ev.MessageID,
		"author":          ev.AuthorName,
	})
	if err != nil {
		return err
	}
	err = inv.handleReply(ctx, ev)
	recordEvent("reply", err)
	return err
}

func (inv *invocation) handleReply(ctx context.Context, ev moderation.InboundReply) error {
	bot, err := inv.botUser(ctx)
	if err != nil {
		return err
	}
	if ev.AuthorName == bot.Name {
		return nil
	}

	postID, err := inv.svc.repo.PostIDForConversation(ctx, ev.ConversationID)
	if errors.Is(err, post.ErrRecordNotFound) {
		inv.log.Info("Reply to a conversation the bot does not track")
		return nil
	}
	if err != nil {
		return err
	}
	rec, err := inv.load(ctx, postID)
	if err != nil {
		return err
	}
	if rec == nil {
		inv.log.Error("No post record found for conversation")
		return nil
	}
	t := inv.track(rec)
	if ev.AuthorName != rec.Author {
		t.log.WithField("record_author", rec.Author).Info("Reply is not from the post author, ignoring")
		return nil
	}

	r := &replyContext{t: t, conversationID: ev.ConversationID}
	if _, err := t.resolvePost(ctx); err != nil {
		t.log.WithError(err).Error("Failed to resolve post for reply")
		r.respond(ctx, ResponseError, 0)
		return err
	}
	if !rec.AwaitingResponse() {
		t.log.WithField("response_id", rec.ResponseID).Info("Explanation already accepted")
		r.respond(ctx, ResponseAlreadyAccepted, 0)
		return nil
	}

	bodyHTML, body := ev.BodyHTML, ev.BodyMarkdown
	if bodyHTML == "" || body == "" {
		msg, err := inv.fetchMessage(ctx, ev.ConversationID, ev.MessageID)
		if err != nil {
			t.log.WithError(err).Error("No message found")
			r.respond(ctx, ResponseError, 0)
			return nil
		}
		bodyHTML, body = msg.BodyHTML, msg.BodyMarkdown
	}
	if bodyHTML == "" || body == "" {
		t.log.Error("Reply has no body")
		r.respond(ctx, ResponseError, 0)
		return nil
	}

	p := inv.policy
	age := post.HumanAge(rec.Age(inv.now))
	lateReply := p.ReplyDuration > 0 && rec.OlderThan(p.ReplyDuration, inv.now)
	tooLate := p.LateReplyDuration > 0 && rec.OlderThan(p.LateReplyDuration, inv.now)
	if tooLate {
		t.log.WithField("age", age).Info("Reply too late")
		r.respond(ctx, ResponseTooLate, 0)
		return nil
	}
	if lateReply {
		t.log.WithField("age", age).Info("Late reply")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(bodyHTML))
	if err != nil {
		t.log.WithError(err).Error("Failed to parse reply HTML")
		r.respond(ctx, ResponseError, 0)
		return nil
	}
	hasURL := doc.Find("a").Length() > 0 || urlPattern.MatchString(body)
	if p.BlockURLsInExplanation && hasURL {
		t.log.Info("Reply contains a URL, rejecting")
		r.respond(ctx, ResponseInvalid, 0)
		return nil
	}
	if p.RequireURLInExplanation && !hasURL {
		t.log.Info("Reply has no URL, rejecting")
		r.respond(ctx, ResponseInvalid, 0)
		return nil
	}

	cleaned := nonWord.ReplaceAllString(doc.Text(), "")
	if len(cleaned) < p.MessageRequiredLength {
		t.log.WithField("length", len(cleaned)).Info("Reply too short")
		r.respond(ctx, ResponseTooShort, len(cleaned))
		return nil
	}
	if rec.Category != post.CategoryPendingResponse && rec.Category != post.CategoryNoResponse {
		t.log.WithField("category", rec.Category).Info("Post is not eligible for an explanation")
		r.respond(ctx, ResponseIneligible, 0)
		return nil
	}
	return r.accept(ctx, ev.MessageID, body)
}

func (inv *invocation) fetchMessage(ctx context.Context, conversationID, messageID string) (moderation.Message, error) {
	var conv *moderation.Conversation
	err := inv.call(ctx, "GetConversation", func() error {
		var err error
		conv, err = inv.svc.api.GetConversation(ctx, conversationID)
		return err
	})
	if err != nil {
		return moderation.Message{}, err
	}
	msg, ok := conv.Messages[messageID]
	if !ok {
		return moderation.Message{}, fmt.Errorf("message %s: %w", messageID, moderation.ErrNotFound)
	}
	return msg, nil
}

type replyContext struct {
	t              *tracked
	conversationID string
}

// accept publishes the explanation. responseId is persisted right after the
// comment so a repeated reply is answered with AlreadyAccepted.
func (r *replyContext) accept(ctx context.Context, messageID, body string) error {
	t := r.t
	wasNoResponse := t.rec.Category == post.CategoryNoResponse

	c, err := t.commentReply(ctx, commentAccepted, body)
	if err != nil || c == nil {
		t.log.WithError(err).Error("Failed to comment explanation")
		r.respond(ctx, ResponseError, 0)
		return err
	}
	t.rec.ResponseID = messageID
	if err := t.save(ctx); err != nil {
		return err
	}
	t.log.Info("Reply accepted")
	r.respond(ctx, ResponseAccepted, 0)

	if wasNoResponse {
		if err := t.approvePost(ctx); err != nil {
			return err
		}
	}
	return t.setCategory(ctx, post.CategoryActive)
}

// respond answers the author and archives the conversation. A blank template
// only archives.
func (r *replyContext) respond(ctx context.Context, rt ResponseType, replyLength int) {
	t := r.t
	texts := t.inv.policy.Texts
	vals := t.values()
	var body string
	switch rt {
	case ResponseAccepted:
		body = render.Render(texts.ExplanationAcceptedMessageBody, vals)
	case ResponseAlreadyAccepted:
		body = render.Render(texts.ExplanationAlreadyAcceptedMessageBody, vals)
	case ResponseError:
		body = fmt.Sprintf("An error occurred while processing your response. Please try again or send a [message](https://www.reddit.com/message/compose/?to=r/%s) to the subreddit moderators.", vals.Subreddit)
	case ResponseIneligible:
		body = "Your post is not eligible for a response. Please ensure that you are responding to an eligible post."
	case ResponseInvalid:
		body = render.Render(texts.ExplanationInvalidMessageBody, vals)
	case ResponseTooLate:
		body = render.Render(texts.ExplanationTooLateMessageBody, vals)
	case ResponseTooShort:
		vals.ReplyLength = &replyLength
		body = render.Render(texts.ExplanationTooShortMessageBody, vals)
	}
	metrics.Responses.WithLabelValues(string(rt)).Inc()

	if body != "" {
		if err := t.inv.call(ctx, "ReplyToConversation", func() error {
			return t.api().ReplyToConversation(ctx, r.conversationID, body, false)
		}); err != nil {
			t.log.WithError(err).WithField("response", rt).Error("Failed to respond to author")
		}
	}
	t.archive(ctx, r.conversationID)
}
