package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// maxArgLogLen is the maximum length for logged arguments before truncation.
const maxArgLogLen = 200

// slowRequestThreshold is the duration above which non-tool requests are
// logged at WARN level. Tool calls that generate answers are always slower,
// so they get their own threshold.
const (
	slowRequestThreshold  = 100 * time.Millisecond
	slowToolCallThreshold = 30 * time.Second
)

// LoggingMiddleware returns middleware that logs all requests with timing.
// Tool calls are logged with the tool name and session id; arguments are
// truncated to 200 characters.
func LoggingMiddleware(logger *slog.Logger) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			start := time.Now()
			result, err := next(ctx, method, req)
			duration := time.Since(start)

			attrs := []any{
				"method", method,
				"duration_ms", duration.Milliseconds(),
			}
			threshold := slowRequestThreshold

			if call, ok := req.(*mcp.CallToolRequest); ok && call.Params != nil {
				threshold = slowToolCallThreshold
				attrs = append(attrs, "tool", call.Params.Name)
				if id := sessionID(call.Params.Arguments); id != "" {
					attrs = append(attrs, "session", id)
				}
				attrs = append(attrs, "params", truncate(string(call.Params.Arguments), maxArgLogLen))
				// Protocol errors come back as a typed nil result.
				if res, ok := result.(*mcp.CallToolResult); ok && res != nil && res.IsError {
					attrs = append(attrs, "tool_error", true)
				}
			} else if params := formatParams(req); params != "" {
				attrs = append(attrs, "params", truncate(params, maxArgLogLen))
			}

			switch {
			case err != nil:
				attrs = append(attrs, "error", err.Error())
				logger.Error("request failed", attrs...)
			case duration > threshold:
				logger.Warn("slow request", attrs...)
			default:
				logger.Debug("request completed", attrs...)
			}

			return result, err
		}
	}
}

// sessionID pulls session_id out of raw tool arguments.
func sessionID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var args struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return ""
	}
	return args.SessionID
}

func formatParams(req mcp.Request) string {
	params := req.GetParams()
	if params == nil {
		return ""
	}
	return fmt.Sprintf("%+v", params)
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
