package tools

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/fsechat/internal/db"
	"github.com/raphaelgruber/fsechat/internal/models"
)

// RateInput defines the input schema for the rate tool.
type RateInput struct {
	SessionID   string `json:"session_id" jsonschema:"required,Session id from start_session"`
	Score       string `json:"score" jsonschema:"required,up or down"`
	Explanation string `json:"explanation,omitempty" jsonschema:"Why the answer was good or bad"`
}

// NewRateHandler rates the latest answer of a session.
func NewRateHandler(deps *Dependencies) mcp.ToolHandlerFor[RateInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input RateInput) (*mcp.CallToolResult, any, error) {
		defer deps.lockSession(input.SessionID)()

		state, res := loadSession(ctx, deps, input.SessionID)
		if res != nil {
			return res, nil, nil
		}
		if state.LatestAssistantMessageID == "" {
			return TextResult("Nothing to rate yet"), nil, nil
		}

		feedback := models.Feedback{Score: input.Score}
		if input.Explanation != "" {
			feedback.Text = &input.Explanation
		}
		err := deps.Chat.OnRatingSubmitted(ctx, state, feedback)
		switch {
		case errors.Is(err, db.ErrNotFound):
			return ErrorResult("The rated answer is no longer in the log", "Call reset"), nil, nil
		case err != nil:
			deps.Logger.Error("rating failed", "session", state.SessionID, "error", err)
			return ErrorResult("Failed to record rating: "+err.Error(), "Use score up or down"), nil, nil
		}

		return TextResult("Rated " + state.LatestAssistantMessageID), nil, nil
	}
}
