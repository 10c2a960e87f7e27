package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/fsechat/internal/chat"
	"github.com/raphaelgruber/fsechat/internal/llm"
)

// StartSessionInput defines the input schema for the start_session tool.
type StartSessionInput struct {
	Backend     string   `json:"backend,omitempty" jsonschema:"Answer backend: GPT-4 8k, Claude, Ollama or Bedrock"`
	Temperature *float64 `json:"temperature,omitempty" jsonschema:"Generation temperature 0-2"`
	Public      *bool    `json:"public,omitempty" jsonschema:"Mark logged messages as shareable"`
}

// StartSessionOutput is returned by start_session.
type StartSessionOutput struct {
	SessionID string `json:"session_id"`
	Backend   string `json:"backend"`
	Greeting  string `json:"greeting"`
}

// NewStartSessionHandler creates a session with the configured defaults.
// Nothing is written to the graph until the first question.
func NewStartSessionHandler(deps *Dependencies) mcp.ToolHandlerFor[StartSessionInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StartSessionInput) (*mcp.CallToolResult, any, error) {
		d := deps.Defaults
		backend := d.Backend
		if input.Backend != "" {
			b, err := llm.ParseBackend(input.Backend)
			if err != nil {
				return ErrorResult(err.Error(), "Omit backend to use the default"), nil, nil
			}
			backend = b
		}
		temperature := d.Temperature
		if input.Temperature != nil {
			if *input.Temperature < 0 || *input.Temperature > 2 {
				return ErrorResult("Temperature must be 0-2", ""), nil, nil
			}
			temperature = *input.Temperature
		}
		public := d.Public
		if input.Public != nil {
			public = *input.Public
		}

		state := chat.NewTurnState(backend, temperature, d.NumDocs, public)
		if res := saveSession(ctx, deps, state); res != nil {
			return res, nil, nil
		}

		deps.Logger.Info("session started", "session", state.SessionID, "backend", backend)
		return JSONResult(StartSessionOutput{
			SessionID: state.SessionID,
			Backend:   string(backend),
			Greeting:  chat.Greeting,
		}), nil, nil
	}
}

// SessionInput is the input of tools that only need a session.
type SessionInput struct {
	SessionID string `json:"session_id" jsonschema:"required,Session id from start_session"`
}

// NewEndSessionHandler releases a session's generation memory and state.
// The logged conversations stay in the graph.
func NewEndSessionHandler(deps *Dependencies) mcp.ToolHandlerFor[SessionInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SessionInput) (*mcp.CallToolResult, any, error) {
		if input.SessionID == "" {
			return ErrorResult("session_id is required", ""), nil, nil
		}
		defer deps.lockSession(input.SessionID)()

		deps.Chat.EndSession(input.SessionID)
		if err := deps.Sessions.Delete(ctx, input.SessionID); err != nil {
			deps.Logger.Error("session delete failed", "session", input.SessionID, "error", err)
			return ErrorResult("Failed to delete session", "Session store may be unavailable"), nil, nil
		}
		return TextResult("Session " + input.SessionID + " ended"), nil, nil
	}
}
