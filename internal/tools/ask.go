package tools

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/fsechat/internal/db"
	"github.com/raphaelgruber/fsechat/internal/llm"
)

// AskInput defines the input schema for the ask tool.
type AskInput struct {
	SessionID string `json:"session_id" jsonschema:"required,Session id from start_session"`
	Question  string `json:"question" jsonschema:"required,The field service question"`
}

// AskOutput is returned by ask.
type AskOutput struct {
	Answer             string        `json:"answer"`
	UserMessageID      string        `json:"user_message_id"`
	AssistantMessageID string        `json:"assistant_message_id"`
	NewConversation    bool          `json:"new_conversation"`
	Documents          []DocumentRef `json:"documents,omitempty"`
	PromptSeconds      float64       `json:"prompt_seconds"`
	GenerationSeconds  float64       `json:"generation_seconds"`
}

// DocumentRef names a context document used for an answer.
type DocumentRef struct {
	Index int    `json:"index"`
	Title string `json:"title,omitempty"`
}

// NewAskHandler answers a question and logs both messages.
func NewAskHandler(deps *Dependencies) mcp.ToolHandlerFor[AskInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, any, error) {
		if strings.TrimSpace(input.Question) == "" {
			return ErrorResult("Question cannot be empty", "Provide a question"), nil, nil
		}
		defer deps.lockSession(input.SessionID)()

		state, res := loadSession(ctx, deps, input.SessionID)
		if res != nil {
			return res, nil, nil
		}

		result, err := deps.Chat.HandleTurn(ctx, state, input.Question)
		if err != nil {
			deps.Logger.Error("turn failed", "session", state.SessionID, "error", err)
			// A forked tail means state is stale and nothing was logged.
			// Otherwise the state may hold the unanswered question; keep it
			// so the chain position stays consistent with the graph.
			if !errors.Is(err, db.ErrChainForked) {
				_ = saveSession(ctx, deps, state)
			}
			return ErrorResult("Failed to answer: "+err.Error(), turnHint(err)), nil, nil
		}
		if res := saveSession(ctx, deps, state); res != nil {
			return res, nil, nil
		}

		out := AskOutput{
			Answer:             result.Answer,
			UserMessageID:      result.UserMessageID,
			AssistantMessageID: result.AssistantMessageID,
			NewConversation:    result.NewConversation,
			PromptSeconds:      result.PromptDuration.Seconds(),
			GenerationSeconds:  result.GenerationDuration.Seconds(),
		}
		for _, d := range result.Documents {
			out.Documents = append(out.Documents, DocumentRef{Index: d.Index, Title: d.Title})
		}
		return JSONResult(out), nil, nil
	}
}

func turnHint(err error) string {
	switch {
	case errors.Is(err, db.ErrChainForked):
		return "Another question of this session was answered first; ask again"
	case errors.Is(err, db.ErrChainBroken):
		return "The session is out of sync with the log; call reset"
	case errors.Is(err, llm.ErrFatalAPI):
		return "Check the backend credentials or call switch_model"
	case errors.Is(err, db.ErrWriteFailed):
		return "The conversation store may be unavailable"
	}
	return ""
}
