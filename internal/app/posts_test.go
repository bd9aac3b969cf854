package app

import (
	"strings"
	"testing"

	"explain_yourself_bot/internal/domain/moderation"
	"explain_yourself_bot/internal/domain/post"
	"explain_yourself_bot/internal/infra/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withPendingComment(p *config.Policy) {
	p.Texts.ExplanationPendingComment = "Waiting for u/{author} to explain [this post]({url})."
}

func TestHandlePostCreate_StartsSession(t *testing.T) {
	f := newFixture(t, withPendingComment)
	rec := f.create("t3_a", "alice")

	assert.Equal(t, post.CategoryPendingResponse, rec.Category)
	assert.Equal(t, []post.Category{post.CategoryPendingResponse}, f.indexesOf("t3_a"))
	assert.Equal(t, t0.UnixMilli(), rec.CreatedAt.UnixMilli())

	comments := f.api.CommentsOn("t3_a")
	require.Len(t, comments, 1)
	assert.Equal(t, rec.CommentID, comments[0].ID)
	assert.Equal(t, "Waiting for u/alice to explain [this post](https://www.reddit.com/r/pics/comments/t3_a/).", comments[0].Body)
	assert.True(t, f.api.Locked(rec.CommentID))

	convs := f.api.Conversations("alice")
	require.Len(t, convs, 1)
	assert.Equal(t, convs[0], rec.SentConversationID)
	assert.Equal(t, "[t3_a]: Regarding your recent post to r/pics", f.api.Subject(convs[0]))
	assert.Equal(t, 1, f.api.ArchiveCount(convs[0]))

	id, err := f.repo.PostIDForConversation(f.ctx, convs[0])
	require.NoError(t, err)
	assert.Equal(t, "t3_a", id)
	id, err = f.repo.PostIDForComment(f.ctx, rec.CommentID)
	require.NoError(t, err)
	assert.Equal(t, "t3_a", id)
}

func TestHandlePostCreate_SubjectIsTruncated(t *testing.T) {
	f := newFixture(t, func(p *config.Policy) {
		p.Texts.MessageSubject = strings.Repeat("x", 200)
	})
	rec := f.create("t3_a", "alice")
	subject := f.api.Subject(rec.SentConversationID)
	assert.True(t, strings.HasPrefix(subject, "[t3_a]: xxx"))
	assert.Len(t, []rune(subject), maxSubjectLength)
}

func TestHandlePostCreate_WithoutExplanations(t *testing.T) {
	f := newFixture(t, func(p *config.Policy) {
		withPendingComment(p)
		p.AllowExplanation = false
	})
	rec := f.create("t3_a", "alice")
	assert.Equal(t, post.CategoryActive, rec.Category)
	assert.Empty(t, rec.SentConversationID)
	assert.Empty(t, f.api.Conversations("alice"))
	assert.Len(t, f.api.CommentsOn("t3_a"), 1)
}

func TestHandlePostCreate_IsIdempotent(t *testing.T) {
	f := newFixture(t, withPendingComment)
	first := f.create("t3_a", "alice")

	require.NoError(t, f.svc.HandlePostCreate(f.ctx, moderation.PostCreated{PostID: "t3_a", AuthorName: "alice"}))
	assert.Len(t, f.api.Conversations("alice"), 1)
	assert.Len(t, f.api.CommentsOn("t3_a"), 1)
	assert.Equal(t, first, f.record("t3_a"))
}

func TestHandlePostCreate_ResumesInterruptedSession(t *testing.T) {
	f := newFixture(t, withPendingComment)
	f.seedPost("t3_a", "alice", "My cat")
	f.api.FailNext("SendConversation", 1)

	err := f.svc.HandlePostCreate(f.ctx, moderation.PostCreated{PostID: "t3_a", AuthorName: "alice"})
	require.Error(t, err)
	rec := f.record("t3_a")
	assert.Equal(t, post.CategoryNone, rec.Category)
	assert.NotEmpty(t, rec.CommentID)

	require.NoError(t, f.svc.HandlePostCreate(f.ctx, moderation.PostCreated{PostID: "t3_a", AuthorName: "alice"}))
	rec = f.record("t3_a")
	assert.Equal(t, post.CategoryPendingResponse, rec.Category)
	assert.Len(t, f.api.CommentsOn("t3_a"), 1, "the pending comment is reused")
	assert.Len(t, f.api.Conversations("alice"), 1)
}

func TestHandlePostCreate_RetriesComment(t *testing.T) {
	f := newFixture(t, withPendingComment)
	f.api.FailNext("AddComment", commentRetries)
	rec := f.create("t3_a", "alice")
	assert.Equal(t, post.CategoryPendingResponse, rec.Category)
	assert.Len(t, f.api.CommentsOn("t3_a"), 1)
}

func TestHandlePostCreate_Exclusions(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(p *config.Policy)
		title  string
		flair  string
		body   string
	}{
		{
			name:   "title regex",
			mutate: func(p *config.Policy) { p.ExclusionRegex = `\bmeta\b` },
			title:  "[META] New rules",
		},
		{
			name: "body regex",
			mutate: func(p *config.Policy) {
				p.ExclusionRegex = "announcement"
				p.ExclusionTypes = []string{"title", "body"}
			},
			title: "Hello",
			body:  "An Announcement from the team",
		},
		{
			name:   "flair in exclusion list",
			mutate: func(p *config.Policy) { p.PostFlairIDs = "flair-a\nflair-b\n" },
			title:  "Hello",
			flair:  "flair-b",
		},
		{
			name: "flair missing from inclusion list",
			mutate: func(p *config.Policy) {
				p.PostFlairIDs = "flair-a"
				p.PostFlairListType = "inclusion"
			},
			title: "Hello",
			flair: "flair-c",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.mutate)
			f.api.AddPost(moderation.Post{ID: "t3_x", AuthorName: "alice", Title: tc.title, Body: tc.body, FlairTemplate: tc.flair, CreatedAt: t0})
			require.NoError(t, f.svc.HandlePostCreate(f.ctx, moderation.PostCreated{PostID: "t3_x", AuthorName: "alice"}))
			assert.False(t, f.tracked("t3_x"))
			assert.Empty(t, f.api.Conversations("alice"))
		})
	}
}

func TestHandlePostCreate_RegexOnlyAppliesToConfiguredFields(t *testing.T) {
	f := newFixture(t, func(p *config.Policy) { p.ExclusionRegex = "announcement" })
	f.api.AddPost(moderation.Post{ID: "t3_x", AuthorName: "alice", Title: "Hi", Body: "announcement", CreatedAt: t0})
	require.NoError(t, f.svc.HandlePostCreate(f.ctx, moderation.PostCreated{PostID: "t3_x", AuthorName: "alice"}))
	assert.Equal(t, post.CategoryPendingResponse, f.record("t3_x").Category)
}

func TestHandlePostCreate_ModeratorIsSafe(t *testing.T) {
	f := newFixture(t, withPendingComment)
	f.api.AddModerator("alice")
	rec := f.create("t3_a", "alice")
	assert.Equal(t, post.CategorySafe, rec.Category)
	assert.True(t, rec.Safe)
	assert.Empty(t, f.api.CommentsOn("t3_a"))
	assert.Empty(t, f.api.Conversations("alice"))
}

func TestHandlePostCreate_MissingPost(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.svc.HandlePostCreate(f.ctx, moderation.PostCreated{PostID: "t3_gone", AuthorName: "alice"}))
	assert.False(t, f.tracked("t3_gone"))
}

func TestHandlePostDelete(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.create("t3_a", "alice")

	require.NoError(t, f.svc.HandlePostDelete(f.ctx, moderation.PostDeleted{PostID: "t3_a", Source: moderation.DeletedByModerator}))
	assert.Equal(t, post.CategoryPendingResponse, f.record("t3_a").Category)

	require.NoError(t, f.svc.HandlePostDelete(f.ctx, moderation.PostDeleted{PostID: "t3_a", Source: moderation.DeletedByUser}))
	got := f.record("t3_a")
	assert.Equal(t, post.CategoryDeleted, got.Category)
	assert.True(t, got.Deleted)
	assert.Equal(t, []post.Category{post.CategoryDeleted}, f.indexesOf("t3_a"))
	assert.Equal(t, []string{string(NoteDeleted)}, f.api.Notes(rec.SentConversationID))

	require.NoError(t, f.svc.HandlePostDelete(f.ctx, moderation.PostDeleted{PostID: "t3_unknown", Source: moderation.DeletedByUser}))
	assert.False(t, f.tracked("t3_unknown"))
}

func TestHandleFilter(t *testing.T) {
	f := newFixture(t, nil)
	f.seedPost("t3_new", "bob", "Hello")
	require.NoError(t, f.svc.HandleFilter(f.ctx, moderation.PostFiltered{PostID: "t3_new"}))
	rec := f.record("t3_new")
	assert.Equal(t, post.CategoryFiltered, rec.Category)
	assert.True(t, rec.Filtered)
	assert.Equal(t, "bob", rec.Author)

	pending := f.create("t3_a", "alice")
	require.NoError(t, f.svc.HandleFilter(f.ctx, moderation.PostFiltered{PostID: "t3_a"}))
	assert.Equal(t, post.CategoryFiltered, f.record("t3_a").Category)
	assert.Equal(t, []string{string(NoteFiltered)}, f.api.Notes(pending.SentConversationID))

	require.NoError(t, f.svc.HandleFilter(f.ctx, moderation.PostFiltered{PostID: "t3_a"}))
	assert.Len(t, f.api.Notes(pending.SentConversationID), 1, "refiltering is a no-op")
}
