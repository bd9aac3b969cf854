// internal/domain/post/score.go
package post

import (
	"math"
	"time"
)

// ScoreRule holds the removal-score settings.
type ScoreRule struct {
	Static      int
	UseRatio    bool
	RatioBase   float64
	RatioOffset float64
}

// RemovalScore is the comment score at or below which a post counts as rejected
// by the community. With UseRatio the threshold rises with the age of the post:
// floor((base/10)^(ageHours-1) - offset).
func RemovalScore(rule ScoreRule, age time.Duration) int {
	if !rule.UseRatio {
		return rule.Static
	}
	hours := float64(age.Milliseconds()) / 3_600_000
	return int(math.Floor(math.Pow(rule.RatioBase/10, hours-1) - rule.RatioOffset))
}
