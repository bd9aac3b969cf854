package modapi

import (
	"context"
	"testing"

	"explain_yourself_bot/internal/domain/moderation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bot = moderation.User{ID: "t2_bot", Name: "explain-bot"}

func TestMemory_CommentLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(bot)
	m.AddPost(moderation.Post{ID: "t3_a", AuthorName: "alice"})

	c, err := m.AddComment(ctx, "t3_a", "pending")
	require.NoError(t, err)
	assert.Equal(t, bot.ID, c.AuthorID)

	_, err = m.EditComment(ctx, c.ID, "edited")
	require.NoError(t, err)
	require.NoError(t, m.LockComment(ctx, c.ID))

	got, ok := m.Comment(c.ID)
	require.True(t, ok)
	assert.Equal(t, "edited", got.Body)
	assert.True(t, m.Locked(c.ID))
	assert.Len(t, m.CommentsOn("t3_a"), 1)
}

func TestMemory_NotFoundAndFailures(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(bot)

	_, err := m.GetPost(ctx, "t3_missing")
	assert.ErrorIs(t, err, moderation.ErrNotFound)

	m.FailNext("RemovePost", 1)
	assert.Error(t, m.RemovePost(ctx, "t3_a"))
	assert.NoError(t, m.RemovePost(ctx, "t3_a"))
	assert.Equal(t, 1, m.RemoveCount("t3_a"))

	auto := NewMemory(bot, WithAutoCreatePosts())
	p, err := auto.GetPost(ctx, "t3_new")
	require.NoError(t, err)
	assert.Equal(t, "t3_new", p.ID)
}

func TestMemory_Conversations(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(bot)

	id, err := m.SendConversation(ctx, "alice", "subject", "body")
	require.NoError(t, err)
	require.NoError(t, m.ReplyToConversation(ctx, id, "note", true))
	require.NoError(t, m.ReplyToConversation(ctx, id, "hello", false))
	require.NoError(t, m.ArchiveConversation(ctx, id))

	assert.Equal(t, []string{id}, m.Conversations("alice"))
	assert.Equal(t, []string{"note"}, m.Notes(id))
	assert.Equal(t, []string{"hello"}, m.Replies(id))
	assert.Equal(t, 1, m.ArchiveCount(id))

	m.AddMessage(id, moderation.Message{ID: "m2", AuthorName: "alice", BodyMarkdown: "because"})
	conv, err := m.GetConversation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "because", conv.Messages["m2"].BodyMarkdown)
}

func TestRateLimited_DelegatesAndHonoursContext(t *testing.T) {
	m := NewMemory(bot)
	m.AddPost(moderation.Post{ID: "t3_a"})
	api := NewRateLimited(m, 1000)

	p, err := api.GetPost(context.Background(), "t3_a")
	require.NoError(t, err)
	assert.Equal(t, "t3_a", p.ID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, api.ApprovePost(ctx, "t3_a"), context.Canceled)
	assert.Zero(t, m.ApproveCount("t3_a"))
}
