package tools

import (
	"context"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/fsechat/internal/chat"
	"github.com/raphaelgruber/fsechat/internal/db"
	"github.com/raphaelgruber/fsechat/internal/models"
)

// ConversationView is the history tool's rendering of a conversation.
type ConversationView struct {
	ID          string        `json:"id"`
	LLMType     string        `json:"llm_type"`
	Temperature float64       `json:"temperature"`
	CreatedAt   time.Time     `json:"created_at"`
	Messages    []MessageView `json:"messages"`
}

// MessageView is one message without its embedding and prompt.
type MessageView struct {
	ID                string         `json:"id"`
	Role              models.Role    `json:"role"`
	Content           string         `json:"content"`
	PostedAt          time.Time      `json:"posted_at"`
	Rating            *models.Rating `json:"rating,omitempty"`
	RatingExplanation *string        `json:"rating_explanation,omitempty"`
}

// NewHistoryHandler lists the logged conversations of a session.
func NewHistoryHandler(deps *Dependencies) mcp.ToolHandlerFor[SessionInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SessionInput) (*mcp.CallToolResult, any, error) {
		if input.SessionID == "" {
			return ErrorResult("session_id is required", ""), nil, nil
		}

		logs, err := chat.LoadHistory(ctx, deps.History, input.SessionID)
		if errors.Is(err, db.ErrChainCorrupt) {
			return ErrorResult("Conversation log is corrupted: "+err.Error(), ""), nil, nil
		}
		if err != nil {
			deps.Logger.Error("history failed", "session", input.SessionID, "error", err)
			return ErrorResult("Failed to load history", "Database may be unavailable"), nil, nil
		}

		views := make([]ConversationView, 0, len(logs))
		for _, l := range logs {
			v := ConversationView{
				ID:          l.ID,
				LLMType:     l.Conversation.LLMType,
				Temperature: l.Conversation.Temperature,
				CreatedAt:   l.Conversation.CreatedAt,
				Messages:    make([]MessageView, 0, len(l.Messages)),
			}
			for _, m := range l.Messages {
				id, _ := models.RecordIDString(m.ID)
				v.Messages = append(v.Messages, MessageView{
					ID:                id,
					Role:              m.Role,
					Content:           m.Content,
					PostedAt:          m.PostedAt,
					Rating:            m.Rating,
					RatingExplanation: m.RatingExplanation,
				})
			}
			views = append(views, v)
		}
		return JSONResult(views), nil, nil
	}
}
