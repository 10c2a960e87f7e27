package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/fsechat/internal/chat"
	"github.com/raphaelgruber/fsechat/internal/session"
)

// ErrorResult creates a tool error result with optional recovery hint.
// If hint is non-empty, formats as "{msg}. {hint}".
// Returns IsError=true so LLM can see the error and self-correct.
func ErrorResult(msg, hint string) *mcp.CallToolResult {
	text := msg
	if hint != "" {
		text = msg + ". " + hint
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		IsError: true,
	}
}

// TextResult creates a success result with text content.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// JSONResult renders v as indented JSON text.
func JSONResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ErrorResult("Failed to encode result", err.Error())
	}
	return TextResult(string(data))
}

// loadSession fetches the state of sessionID. The returned result is non-nil
// when the session cannot be used and should be sent back as is.
func loadSession(ctx context.Context, deps *Dependencies, sessionID string) (*chat.TurnState, *mcp.CallToolResult) {
	if sessionID == "" {
		return nil, ErrorResult("session_id is required", "Call start_session first")
	}
	state, err := deps.Sessions.Load(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, ErrorResult("Unknown session "+sessionID, "It may have expired; call start_session")
	}
	if err != nil {
		deps.Logger.Error("session load failed", "session", sessionID, "error", err)
		return nil, ErrorResult("Failed to load session", "Session store may be unavailable")
	}
	return state, nil
}

// saveSession persists state, reporting failures as a tool error.
func saveSession(ctx context.Context, deps *Dependencies, state *chat.TurnState) *mcp.CallToolResult {
	err := deps.Sessions.Save(ctx, state)
	if errors.Is(err, session.ErrConflict) {
		deps.Logger.Warn("stale session save rejected", "session", state.SessionID)
		return ErrorResult("Session "+state.SessionID+" was changed by another request", "Retry the call")
	}
	if err != nil {
		deps.Logger.Error("session save failed", "session", state.SessionID, "error", err)
		return ErrorResult("Failed to save session", "Session store may be unavailable")
	}
	return nil
}
