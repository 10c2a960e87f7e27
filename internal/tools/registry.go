package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterAll registers all tools with the MCP server.
// This is called from main after server creation but before Run().
func RegisterAll(server *mcp.Server, deps *Dependencies) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ping",
		Description: "Test tool - responds with pong or echoes input",
	}, NewPingHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "start_session",
		Description: "Start an FSE chat session and return its id",
	}, NewStartSessionHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask",
		Description: "Ask a field service question; the exchange is logged to the conversation graph",
	}, NewAskHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "rate",
		Description: "Rate the latest answer of a session up or down with an optional explanation",
	}, NewRateHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "reset",
		Description: "Clear the chat history; the next question starts a new conversation",
	}, NewResetHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "switch_model",
		Description: "Switch the answer backend of a session",
	}, NewSwitchModelHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "history",
		Description: "List the logged conversations of a session with their messages",
	}, NewHistoryHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "end_session",
		Description: "End a session and release its memory; logged conversations are kept",
	}, NewEndSessionHandler(deps))
}
