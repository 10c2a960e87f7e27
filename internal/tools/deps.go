// Package tools provides MCP tool handlers and registration.
package tools

import (
	"context"
	"log/slog"
	"sync"

	"github.com/raphaelgruber/fsechat/internal/chat"
	"github.com/raphaelgruber/fsechat/internal/llm"
	"github.com/raphaelgruber/fsechat/internal/models"
	"github.com/raphaelgruber/fsechat/internal/session"
)

// ChatEngine is the part of *chat.Orchestrator the tools drive.
type ChatEngine interface {
	HandleTurn(ctx context.Context, state *chat.TurnState, question string) (*chat.TurnResult, error)
	OnRatingSubmitted(ctx context.Context, state *chat.TurnState, feedback models.Feedback) error
	SwitchBackend(state *chat.TurnState, backend llm.Backend)
	Reset(state *chat.TurnState)
	EndSession(sessionID string)
}

// SessionDefaults seed the state of sessions started through the tools.
type SessionDefaults struct {
	Backend     llm.Backend
	Temperature float64
	NumDocs     int
	Public      bool
}

// Dependencies holds shared services for tool handlers.
// Passed to handler factories via closure capture.
type Dependencies struct {
	Chat     ChatEngine
	Sessions session.Store
	History  chat.HistoryReader
	Defaults SessionDefaults
	Logger   *slog.Logger

	locksOnce sync.Once
	locks     *chat.KeyedMutex
}

// lockSession serializes load, change and save of one session within this
// process. Saves from other processes are caught by the store's version check.
func (d *Dependencies) lockSession(sessionID string) func() {
	d.locksOnce.Do(func() { d.locks = chat.NewKeyedMutex() })
	return d.locks.Lock(sessionID)
}
