package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilePolicySource_DefaultsWithoutFile(t *testing.T) {
	p, err := NewFilePolicySource("").Snapshot()
	require.NoError(t, err)

	assert.True(t, p.AllowExplanation)
	assert.Equal(t, 10, p.ReplyDuration)
	assert.Equal(t, 240, p.LateReplyDuration)
	assert.Equal(t, []string{"title"}, p.ExclusionTypes)
	assert.Equal(t, "Regarding your recent post to r/{subreddit}", p.Texts.MessageSubject)
}

func TestFilePolicySource_OverridesKeepDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
replyDuration: 30
lateReplyDuration: 0
postFlairIds: |
  flair-a

  flair-b
postFlairListType: inclusion
texts:
  explanationPendingComment: "Vote on this post"
`), 0o600))

	p, err := NewFilePolicySource(path).Snapshot()
	require.NoError(t, err)

	assert.Equal(t, 30, p.ReplyDuration)
	assert.Equal(t, 0, p.LateReplyDuration)
	assert.Equal(t, 480, p.CommentMaxAge, "untouched keys keep their default")
	assert.Equal(t, []string{"flair-a", "flair-b"}, p.FlairIDs())
	assert.True(t, p.FlairInclusion())
	assert.Equal(t, "Vote on this post", p.Texts.ExplanationPendingComment)
	assert.NotEmpty(t, p.Texts.MessageBody)
}

func TestFilePolicySource_Errors(t *testing.T) {
	_, err := NewFilePolicySource(filepath.Join(t.TempDir(), "missing.yaml")).Snapshot()
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("replyDuration: [oops"), 0o600))
	_, err = NewFilePolicySource(path).Snapshot()
	assert.Error(t, err)
}

func TestPolicy_ExclusionPattern(t *testing.T) {
	p := DefaultPolicy()
	re, err := p.ExclusionPattern()
	require.NoError(t, err)
	assert.Nil(t, re)

	p.ExclusionRegex = `\[meta\]`
	re, err = p.ExclusionPattern()
	require.NoError(t, err)
	assert.True(t, re.MatchString("[META] rule change"))

	p.ExclusionRegex = "(unclosed"
	_, err = p.ExclusionPattern()
	assert.Error(t, err)
}
