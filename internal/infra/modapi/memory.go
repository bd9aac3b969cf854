// internal/infra/modapi/memory.go
package modapi

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"explain_yourself_bot/internal/domain/moderation"

	"github.com/sirupsen/logrus"
)

var _ moderation.API = (*Memory)(nil)

// Memory is an in-process moderation API. It backs dry runs, where every
// command is logged instead of sent, and the service tests.
type Memory struct {
	mu sync.Mutex

	bot        moderation.User
	moderators map[string]bool
	autoCreate bool
	logger     *logrus.Entry
	seq        int
	failures   map[string]int

	posts         map[string]*moderation.Post
	approved      map[string]int
	removed       map[string]int
	comments      map[string]*moderation.Comment
	locked        map[string]bool
	distinguished map[string]bool
	reports       map[string][]string
	conversations map[string]*conversationLog
}

type conversationLog struct {
	to       string
	subject  string
	messages map[string]moderation.Message
	replies  []string
	notes    []string
	archived int
}

type MemoryOption func(*Memory)

// WithAutoCreatePosts makes unknown post ids resolve to an empty post instead
// of ErrNotFound. Used in dry runs where nothing seeds the posts.
func WithAutoCreatePosts() MemoryOption {
	return func(m *Memory) { m.autoCreate = true }
}

func WithLogger(l *logrus.Entry) MemoryOption {
	return func(m *Memory) { m.logger = l }
}

func NewMemory(bot moderation.User, opts ...MemoryOption) *Memory {
	m := &Memory{
		bot:           bot,
		moderators:    make(map[string]bool),
		failures:      make(map[string]int),
		posts:         make(map[string]*moderation.Post),
		approved:      make(map[string]int),
		removed:       make(map[string]int),
		comments:      make(map[string]*moderation.Comment),
		locked:        make(map[string]bool),
		distinguished: make(map[string]bool),
		reports:       make(map[string][]string),
		conversations: make(map[string]*conversationLog),
		logger:        logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Seeding and inspection helpers.

func (m *Memory) AddPost(p moderation.Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[p.ID] = &p
}

func (m *Memory) AddModerator(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.moderators[name] = true
}

func (m *Memory) SetPostScore(postID string, score int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.posts[postID]; ok {
		p.Score = score
	}
}

func (m *Memory) SetCommentScore(commentID string, score int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.comments[commentID]; ok {
		c.Score = score
	}
}

// SeedComment stores a comment that was not written by the bot.
func (m *Memory) SeedComment(c moderation.Comment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comments[c.ID] = &c
}

// AddMessage stores a message in a conversation as if a user sent it.
func (m *Memory) AddMessage(conversationID string, msg moderation.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv := m.conversation(conversationID)
	conv.messages[msg.ID] = msg
}

// FailNext makes the next n calls of op fail.
func (m *Memory) FailNext(op string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = n
}

func (m *Memory) CommentsOn(postID string) []moderation.Comment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []moderation.Comment
	for _, c := range m.comments {
		if c.PostID == postID && c.AuthorID == m.bot.ID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) Comment(id string) (moderation.Comment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return moderation.Comment{}, false
	}
	return *c, true
}

func (m *Memory) Locked(commentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked[commentID]
}

func (m *Memory) Reports(commentID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.reports[commentID]...)
}

func (m *Memory) ApproveCount(postID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.approved[postID]
}

func (m *Memory) RemoveCount(postID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removed[postID]
}

// Conversations returns the ids of conversations opened with a user.
func (m *Memory) Conversations(to string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, c := range m.conversations {
		if c.to == to {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (m *Memory) Subject(conversationID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conversation(conversationID).subject
}

func (m *Memory) Replies(conversationID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.conversation(conversationID).replies...)
}

func (m *Memory) Notes(conversationID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.conversation(conversationID).notes...)
}

func (m *Memory) ArchiveCount(conversationID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conversation(conversationID).archived
}

// API implementation.

func (m *Memory) AppUser(context.Context) (moderation.User, error) {
	return m.bot, nil
}

func (m *Memory) GetPost(_ context.Context, postID string) (*moderation.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetPost"); err != nil {
		return nil, err
	}
	p, ok := m.posts[postID]
	if !ok {
		if !m.autoCreate {
			return nil, fmt.Errorf("post %s: %w", postID, moderation.ErrNotFound)
		}
		p = &moderation.Post{ID: postID, CreatedAt: time.Now()}
		m.posts[postID] = p
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) GetComment(_ context.Context, commentID string) (*moderation.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetComment"); err != nil {
		return nil, err
	}
	c, ok := m.comments[commentID]
	if !ok {
		return nil, fmt.Errorf("comment %s: %w", commentID, moderation.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (m *Memory) GetModerators(_ context.Context, _ string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetModerators"); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(m.moderators))
	for name := range m.moderators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) ApprovePost(_ context.Context, postID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ApprovePost"); err != nil {
		return err
	}
	m.approved[postID]++
	m.logger.WithField("post_id", postID).Info("approve post")
	return nil
}

func (m *Memory) RemovePost(_ context.Context, postID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("RemovePost"); err != nil {
		return err
	}
	m.removed[postID]++
	m.logger.WithField("post_id", postID).Info("remove post")
	return nil
}

func (m *Memory) AddComment(_ context.Context, postID, text string) (*moderation.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("AddComment"); err != nil {
		return nil, err
	}
	m.seq++
	c := &moderation.Comment{
		ID:        fmt.Sprintf("t1_%d", m.seq),
		PostID:    postID,
		AuthorID:  m.bot.ID,
		Body:      text,
		Permalink: fmt.Sprintf("/comments/%s/_/%d/", postID, m.seq),
	}
	m.comments[c.ID] = c
	m.logger.WithFields(logrus.Fields{"post_id": postID, "comment_id": c.ID}).Info("add comment")
	cp := *c
	return &cp, nil
}

func (m *Memory) EditComment(_ context.Context, commentID, text string) (*moderation.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("EditComment"); err != nil {
		return nil, err
	}
	c, ok := m.comments[commentID]
	if !ok {
		return nil, fmt.Errorf("comment %s: %w", commentID, moderation.ErrNotFound)
	}
	c.Body = text
	m.logger.WithField("comment_id", commentID).Info("edit comment")
	cp := *c
	return &cp, nil
}

func (m *Memory) DistinguishComment(_ context.Context, commentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("DistinguishComment"); err != nil {
		return err
	}
	m.distinguished[commentID] = true
	return nil
}

func (m *Memory) LockComment(_ context.Context, commentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("LockComment"); err != nil {
		return err
	}
	m.locked[commentID] = true
	return nil
}

func (m *Memory) ReportComment(_ context.Context, commentID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReportComment"); err != nil {
		return err
	}
	m.reports[commentID] = append(m.reports[commentID], reason)
	m.logger.WithFields(logrus.Fields{"comment_id": commentID, "reason": reason}).Info("report comment")
	return nil
}

func (m *Memory) SendConversation(_ context.Context, to, subject, body string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("SendConversation"); err != nil {
		return "", err
	}
	m.seq++
	id := fmt.Sprintf("conv%d", m.seq)
	conv := m.conversation(id)
	conv.to = to
	conv.subject = subject
	conv.messages[fmt.Sprintf("msg%d", m.seq)] = moderation.Message{
		ID:           fmt.Sprintf("msg%d", m.seq),
		AuthorName:   m.bot.Name,
		BodyMarkdown: body,
	}
	m.logger.WithFields(logrus.Fields{"to": to, "conversation_id": id, "subject": subject}).Info("send conversation")
	return id, nil
}

func (m *Memory) ReplyToConversation(_ context.Context, conversationID, body string, internal bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReplyToConversation"); err != nil {
		return err
	}
	conv := m.conversation(conversationID)
	if internal {
		conv.notes = append(conv.notes, body)
	} else {
		conv.replies = append(conv.replies, body)
	}
	m.logger.WithFields(logrus.Fields{"conversation_id": conversationID, "internal": internal}).Info("reply to conversation")
	return nil
}

func (m *Memory) ArchiveConversation(_ context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ArchiveConversation"); err != nil {
		return err
	}
	m.conversation(conversationID).archived++
	return nil
}

func (m *Memory) GetConversation(_ context.Context, conversationID string) (*moderation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetConversation"); err != nil {
		return nil, err
	}
	conv, ok := m.conversations[conversationID]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, moderation.ErrNotFound)
	}
	out := &moderation.Conversation{ID: conversationID, Messages: make(map[string]moderation.Message, len(conv.messages))}
	for id, msg := range conv.messages {
		out.Messages[id] = msg
	}
	return out, nil
}

// conversation must be called with mu held.
func (m *Memory) conversation(id string) *conversationLog {
	conv, ok := m.conversations[id]
	if !ok {
		conv = &conversationLog{messages: make(map[string]moderation.Message)}
		m.conversations[id] = conv
	}
	return conv
}

// fail must be called with mu held.
func (m *Memory) fail(op string) error {
	if m.failures[op] > 0 {
		m.failures[op]--
		return fmt.Errorf("%s: simulated outage", op)
	}
	return nil
}
