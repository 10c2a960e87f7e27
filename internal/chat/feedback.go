package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/fsechat/internal/db"
	"github.com/raphaelgruber/fsechat/internal/models"
)

// Recorder stores user ratings on assistant messages.
type Recorder struct {
	w      Writer
	logger *slog.Logger
}

// NewRecorder creates a recorder writing through w.
func NewRecorder(w Writer, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{w: w, logger: logger}
}

// ParseFeedback maps a UI feedback payload to a rating and explanation.
func ParseFeedback(f models.Feedback) (models.Rating, *string, error) {
	rating, err := models.ParseRating(f.Score)
	if err != nil {
		return "", nil, err
	}
	return rating, f.Explanation(), nil
}

// RecordRating sets the rating of messageID, replacing any earlier rating
// and explanation. An empty messageID means nothing has been answered yet
// and is ignored. Rating a user message fails with db.ErrNotAssistantMessage.
func (r *Recorder) RecordRating(ctx context.Context, messageID string, rating models.Rating, explanation *string) error {
	if messageID == "" {
		r.logger.Debug("feedback ignored, no assistant message recorded yet")
		return nil
	}
	if rating != models.RatingGood && rating != models.RatingBad {
		return fmt.Errorf("record rating: invalid rating %q", rating)
	}
	if role, ok := models.RoleFromMessageID(messageID); ok && role != models.RoleAssistant {
		return fmt.Errorf("record rating on %s: %w", messageID, db.ErrNotAssistantMessage)
	}

	params := map[string]any{
		"message_id": messageID,
		"rating":     string(rating),
	}
	if explanation != nil {
		params["explanation"] = *explanation
	}

	if err := r.w.Execute(ctx, db.OpRecordRating, params); err != nil {
		return fmt.Errorf("record rating on %s: %w", messageID, err)
	}

	r.logger.Info("rating recorded", "message", messageID, "rating", rating, "has_explanation", explanation != nil)
	return nil
}
