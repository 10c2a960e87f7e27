package models

import (
	"fmt"
	"strings"
)

// Rating is the user verdict on an assistant message.
type Rating string

const (
	RatingGood Rating = "good"
	RatingBad  Rating = "bad"
)

// Feedback is the payload the UI submits for the latest assistant message.
// Score is "up" or "down"; the thumbs emoji used by the web widget are accepted too.
type Feedback struct {
	Text  *string `json:"text,omitempty"`
	Score string  `json:"score"`
}

// ParseRating maps a feedback score to a Rating.
func ParseRating(score string) (Rating, error) {
	switch strings.ToLower(strings.TrimSpace(score)) {
	case "up", "👍", "good", "+1":
		return RatingGood, nil
	case "down", "👎", "bad", "-1":
		return RatingBad, nil
	default:
		return "", fmt.Errorf("unknown feedback score %q (want up or down)", score)
	}
}

// Explanation returns the trimmed free-text explanation, or nil when empty.
func (f Feedback) Explanation() *string {
	if f.Text == nil {
		return nil
	}
	s := strings.TrimSpace(*f.Text)
	if s == "" {
		return nil
	}
	return &s
}
