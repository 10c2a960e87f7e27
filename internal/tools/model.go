package tools

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/fsechat/internal/llm"
)

// NewResetHandler clears a session's history and memory. The next question
// starts a new conversation.
func NewResetHandler(deps *Dependencies) mcp.ToolHandlerFor[SessionInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SessionInput) (*mcp.CallToolResult, any, error) {
		defer deps.lockSession(input.SessionID)()

		state, res := loadSession(ctx, deps, input.SessionID)
		if res != nil {
			return res, nil, nil
		}
		deps.Chat.Reset(state)
		if res := saveSession(ctx, deps, state); res != nil {
			return res, nil, nil
		}
		return TextResult(state.History[0].Content), nil, nil
	}
}

// SwitchModelInput defines the input schema for the switch_model tool.
type SwitchModelInput struct {
	SessionID string `json:"session_id" jsonschema:"required,Session id from start_session"`
	Backend   string `json:"backend" jsonschema:"required,GPT-4 8k, Claude, Ollama or Bedrock"`
}

// NewSwitchModelHandler changes the answer backend of a session.
func NewSwitchModelHandler(deps *Dependencies) mcp.ToolHandlerFor[SwitchModelInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SwitchModelInput) (*mcp.CallToolResult, any, error) {
		backend, err := llm.ParseBackend(input.Backend)
		if err != nil {
			names := make([]string, 0, len(llm.Backends()))
			for _, b := range llm.Backends() {
				names = append(names, string(b))
			}
			return ErrorResult(err.Error(), "Choose one of: "+strings.Join(names, ", ")), nil, nil
		}
		defer deps.lockSession(input.SessionID)()

		state, res := loadSession(ctx, deps, input.SessionID)
		if res != nil {
			return res, nil, nil
		}
		if state.Backend == backend {
			return TextResult("Already using " + string(backend)), nil, nil
		}

		deps.Chat.SwitchBackend(state, backend)
		if res := saveSession(ctx, deps, state); res != nil {
			return res, nil, nil
		}
		return TextResult(state.History[len(state.History)-1].Content), nil, nil
	}
}
