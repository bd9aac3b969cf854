// internal/infra/render/render.go
package render

import (
	"strconv"
	"strings"

	"explain_yourself_bot/internal/domain/post"
)

const siteURL = "https://www.reddit.com"

// Values feeds the placeholders of a template. Explanation and ReplyLength
// are only substituted when set.
type Values struct {
	Subreddit         string
	Author            string
	Title             string
	Permalink         string
	Link              string
	Score             int
	ReplyDuration     int // minutes
	LateReplyDuration int // minutes
	CommentPermalink  string
	Explanation       string
	ReplyLength       *int
}

// Render substitutes every placeholder in one pass, so placeholder-like text
// inside substituted values is left alone.
func Render(template string, v Values) string {
	if template == "" {
		return ""
	}
	pairs := []string{
		"{subreddit}", v.Subreddit,
		"{author}", v.Author,
		"{title}", v.Title,
		"{url}", absolute(v.Permalink),
		"{link}", v.Link,
		"{score}", strconv.Itoa(v.Score),
		"{replyDuration}", post.HumanMinutes(v.ReplyDuration),
		"{lateReplyDuration}", post.HumanMinutes(v.LateReplyDuration),
		"{commentUrl}", absolute(v.CommentPermalink),
	}
	if v.Explanation != "" {
		pairs = append(pairs, "{explanation}", v.Explanation)
	}
	if v.ReplyLength != nil {
		pairs = append(pairs, "{replyLength}", strconv.Itoa(*v.ReplyLength))
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

func absolute(permalink string) string {
	if permalink == "" {
		return ""
	}
	return siteURL + permalink
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Spoiler hides every paragraph of text behind spoiler markup. Markup already
// present in the text is escaped first.
func Spoiler(text string) string {
	text = strings.ReplaceAll(text, ">!", `\>\!`)
	text = strings.ReplaceAll(text, "!<", `\!\<`)
	parts := strings.Split(text, "\n\n")
	for i, p := range parts {
		parts[i] = ">!" + p + "!<"
	}
	return strings.Join(parts, "\n\n")
}

// Quote renders text as a markdown block quote.
func Quote(text string) string {
	return "> " + strings.ReplaceAll(text, "\n", "\n> ")
}
