package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"explain_yourself_bot/internal/domain/post"

	"gopkg.in/yaml.v3"
)

// Policy is the moderation configuration of the subreddit. It is loaded once
// per invocation and passed by value.
type Policy struct {
	// Comment score actions
	RemoveWithCommentScore   bool    `yaml:"removeWithCommentScore"`
	ReportWithCommentScore   bool    `yaml:"reportWithCommentScore"`
	RemovalScore             int     `yaml:"removalScore"`
	UseScoreRatio            bool    `yaml:"useScoreRatio"`
	RemovalScoreRatioBase    float64 `yaml:"removalScoreRatioBase"`
	RemovalScoreRatioOffset  float64 `yaml:"removalScoreRatioOffset"`
	MarkSafeWithCommentScore bool    `yaml:"markSafeWithCommentScore"`
	CommentSafeScore         int     `yaml:"commentSafeScore"`
	ApproveWithCommentScore  bool    `yaml:"approveWithCommentScore"`
	CommentApproveScore      int     `yaml:"commentApproveScore"`

	// Post score actions
	MarkSafeWithPostScore bool `yaml:"markSafeWithPostScore"`
	PostSafeScore         int  `yaml:"postSafeScore"`
	ApproveWithPostScore  bool `yaml:"approveWithPostScore"`
	PostApproveScore      int  `yaml:"postApproveScore"`

	// Exclusions
	ExclusionRegex    string   `yaml:"exclusionRegex"`
	ExclusionTypes    []string `yaml:"exclusionTypes"`
	PostFlairIDs      string   `yaml:"postFlairIds"` // one flair template id per line
	PostFlairListType string   `yaml:"postFlairListType"`

	// Durations, in minutes
	CommentMinAge     int `yaml:"commentMinAge"`
	CommentMaxAge     int `yaml:"commentMaxAge"`
	ReplyDuration     int `yaml:"replyDuration"`
	LateReplyDuration int `yaml:"lateReplyDuration"`

	// Explanation handling
	AllowExplanation        bool `yaml:"allowExplanation"`
	LockComment             bool `yaml:"lockComment"`
	BlockURLsInExplanation  bool `yaml:"blockUrlsInExplanation"`
	RequireURLInExplanation bool `yaml:"requireUrlInExplanation"`
	MessageRequiredLength   int  `yaml:"messageRequiredLength"`
	SpoilerExplanation      bool `yaml:"spoilerExplanation"`

	Texts Texts `yaml:"texts"`

	DebugMode bool `yaml:"debugMode"`
}

// Texts are the placeholder templates for everything the bot writes.
// A blank template disables the corresponding comment or message.
type Texts struct {
	ExplanationPendingComment             string `yaml:"explanationPendingComment"`
	ExplanationAcceptedComment            string `yaml:"explanationAcceptedComment"`
	PostRemovalCommentHeader              string `yaml:"postRemovalCommentHeader"`
	PostMarkedSafeCommentHeader           string `yaml:"postMarkedSafeCommentHeader"`
	MessageSubject                        string `yaml:"messageSubject"`
	MessageBody                           string `yaml:"messageBody"`
	ExplanationAcceptedMessageBody        string `yaml:"explanationAcceptedMessageBody"`
	ExplanationAlreadyAcceptedMessageBody string `yaml:"explanationAlreadyAcceptedMessageBody"`
	ExplanationInvalidMessageBody         string `yaml:"explanationInvalidMessageBody"`
	ExplanationTooLateMessageBody         string `yaml:"explanationTooLateMessageBody"`
	ExplanationTooShortMessageBody        string `yaml:"explanationTooShortMessageBody"`
	ReportReason                          string `yaml:"reportReason"`
}

// DefaultPolicy mirrors the defaults of the settings form.
func DefaultPolicy() Policy {
	return Policy{
		UseScoreRatio:           true,
		RemovalScoreRatioBase:   16,
		RemovalScoreRatioOffset: 6,
		CommentSafeScore:        2,
		CommentApproveScore:     2,
		PostSafeScore:           2,
		PostApproveScore:        2,
		ExclusionTypes:          []string{"title"},
		PostFlairListType:       "exclusion",
		CommentMinAge:           10,
		CommentMaxAge:           480,
		ReplyDuration:           10,
		LateReplyDuration:       240,
		AllowExplanation:        true,
		LockComment:             true,
		BlockURLsInExplanation:  true,
		SpoilerExplanation:      true,
		Texts: Texts{
			ExplanationAcceptedComment: "OP sent the following text as an explanation why their post fits here:\n\n" +
				"---\n\n" +
				"{explanation}\n\n" +
				"---\n\n" +
				"Does this explanation fit this subreddit? Then upvote this comment, otherwise downvote it.",
			PostMarkedSafeCommentHeader: "### This comment has been marked as **safe**. Upvoting/downvoting this comment will have no effect.\n\n---",
			MessageSubject:              "Regarding your recent post to r/{subreddit}",
			MessageBody: "Thank you for posting to r/{subreddit}.\n\n" +
				"Hi, I've noticed that you submitted \"[{title}]({url})\" to r/{subreddit}.\n\n" +
				"Please reply to this message with a short explanation why your post fits in r/{subreddit}.\n\n" +
				"- Your reply will be posted by me in the comments section of your post.\n" +
				"- If you do not reply to this within {replyDuration}, your post will be removed.\n" +
				"- You have a total of {lateReplyDuration} to reply and get your post re-approved, but" +
				" please note that your post won't be visible in the meantime if you don't reply within the" +
				" first {replyDuration}.",
			ExplanationAcceptedMessageBody: "Your response has been received! I've added a [comment]({commentUrl}) to your [post]({url}) that includes your explanation.",
			ExplanationTooShortMessageBody: "Your explanation contained only {replyLength} characters; please write a bit more and reply to this message again with the entire explanation.",
		},
	}
}

// ScoreRule extracts the removal-score settings.
func (p Policy) ScoreRule() post.ScoreRule {
	return post.ScoreRule{
		Static:      p.RemovalScore,
		UseRatio:    p.UseScoreRatio,
		RatioBase:   p.RemovalScoreRatioBase,
		RatioOffset: p.RemovalScoreRatioOffset,
	}
}

// ExclusionPattern compiles ExclusionRegex case-insensitively. It returns nil
// without error when no pattern is configured.
func (p Policy) ExclusionPattern() (*regexp.Regexp, error) {
	if p.ExclusionRegex == "" {
		return nil, nil
	}
	re, err := regexp.Compile("(?i)" + p.ExclusionRegex)
	if err != nil {
		return nil, fmt.Errorf("invalid exclusionRegex: %w", err)
	}
	return re, nil
}

func (p Policy) ExcludesField(field string) bool {
	for _, t := range p.ExclusionTypes {
		if t == field {
			return true
		}
	}
	return false
}

// FlairIDs splits the flair list; blank lines are dropped.
func (p Policy) FlairIDs() []string {
	var ids []string
	for _, line := range strings.Split(p.PostFlairIDs, "\n") {
		if id := strings.TrimSpace(line); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func (p Policy) FlairInclusion() bool {
	return p.PostFlairListType == "inclusion"
}

// PolicySource provides a fresh policy snapshot per invocation.
type PolicySource interface {
	Snapshot() (Policy, error)
}

// FilePolicySource reads a YAML policy file on every Snapshot so edits apply
// to the next invocation without a restart. Keys missing from the file keep
// their defaults.
type FilePolicySource struct {
	Path string
}

func NewFilePolicySource(path string) *FilePolicySource {
	return &FilePolicySource{Path: path}
}

func (s *FilePolicySource) Snapshot() (Policy, error) {
	p := DefaultPolicy()
	if s.Path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read policy file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Policy{}, fmt.Errorf("failed to parse policy file: %w", err)
	}
	return p, nil
}

// StaticPolicy always returns the same snapshot.
type StaticPolicy Policy

func (s StaticPolicy) Snapshot() (Policy, error) {
	return Policy(s), nil
}
