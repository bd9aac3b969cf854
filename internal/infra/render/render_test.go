package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	n := 7
	v := Values{
		Subreddit:         "pics",
		Author:            "alice",
		Title:             "My {author} cat",
		Permalink:         "/r/pics/comments/abc/",
		Link:              "https://i.example/cat.png",
		Score:             12,
		ReplyDuration:     10,
		LateReplyDuration: 240,
		CommentPermalink:  "/r/pics/comments/abc/_/c1/",
		ReplyLength:       &n,
	}

	got := Render("u/{author} posted \"{title}\" ({url}) to r/{subreddit}, score {score}, link {link}", v)
	assert.Equal(t, `u/alice posted "My {author} cat" (https://www.reddit.com/r/pics/comments/abc/) to r/pics, score 12, link https://i.example/cat.png`, got)

	assert.Equal(t, "reply within 10 minutes or 4 hours", Render("reply within {replyDuration} or {lateReplyDuration}", v))
	assert.Equal(t, "see https://www.reddit.com/r/pics/comments/abc/_/c1/", Render("see {commentUrl}", v))
	assert.Equal(t, "only 7 characters", Render("only {replyLength} characters", v))
	assert.Equal(t, "{explanation}", Render("{explanation}", v), "unset explanation is left alone")
	assert.Equal(t, "", Render("", v))
}

func TestSpoiler(t *testing.T) {
	assert.Equal(t, ">!first!<\n\n>!second!<", Spoiler("first\n\nsecond"))
	assert.Equal(t, `>!a \>\!b\!\< c!<`, Spoiler("a >!b!< c"))
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "> line one\n> line two", Quote("line one\nline two"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abcdef", 3))
	assert.Equal(t, "ab", Truncate("ab", 3))
	assert.Equal(t, "", Truncate("ab", 0))
}
