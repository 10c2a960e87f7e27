// Package chat logs FSE chat turns as message chains in the conversation
// graph: it decides when a conversation starts, appends messages, attaches
// retrieval context and records ratings.
package chat

import (
	"fmt"

	"github.com/raphaelgruber/fsechat/internal/llm"
	"github.com/raphaelgruber/fsechat/internal/models"
)

// Greeting opens every new session.
const Greeting = "Hey there, Cummins Field Service Engineers!\nIs there a question I can help you with?"

// ResetGreeting replaces the visible history after a reset.
const ResetGreeting = "Our chat history has been reset.\nWhat FSE questions can I answer?"

// ResetTemperature is the temperature a reset session continues with.
const ResetTemperature = 0.07

// SwitchNotice is shown when the answer backend changes.
func SwitchNotice(backend llm.Backend) string {
	return fmt.Sprintf("Excuse me while I switch to my %s brain and wipe my memory...", backend)
}

// HistoryEntry is one visible message. Notice marks assistant entries that
// were not produced by the generator (greetings, switch notices).
type HistoryEntry struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
	Notice  bool        `json:"notice,omitempty"`
}

// TurnState is the per-session state a caller hands to every orchestrator
// call. The orchestrator updates it in place.
type TurnState struct {
	SessionID                string         `json:"session_id"`
	LatestMessageID          string         `json:"latest_message_id,omitempty"`
	LatestAssistantMessageID string         `json:"latest_assistant_message_id,omitempty"`
	Temperature              float64        `json:"temperature"`
	Backend                  llm.Backend    `json:"backend"`
	QuestionEmbedding        []float32      `json:"question_embedding,omitempty"`
	NumDocumentsForContext   int            `json:"num_documents_for_context"`
	GeneralPrompt            string         `json:"general_prompt,omitempty"`
	RunningSummary           string         `json:"running_summary,omitempty"`
	Public                   bool           `json:"public"`
	History                  []HistoryEntry `json:"history"`

	// Version counts saves of this state; stores reject saving a stale one.
	Version int64 `json:"version"`
}

// NewTurnState starts a session with a fresh id and the greeting.
func NewTurnState(backend llm.Backend, temperature float64, numDocs int, public bool) *TurnState {
	return &TurnState{
		SessionID:              models.NewSessionID(),
		Temperature:            temperature,
		Backend:                backend,
		NumDocumentsForContext: numDocs,
		Public:                 public,
		History:                []HistoryEntry{{Role: models.RoleAssistant, Content: Greeting, Notice: true}},
	}
}

// IsNewConversation applies the conversation boundary rule to the visible
// history, which already ends with the question being handled. A question
// starts a new conversation when it is part of the first exchange or when the
// entry three positions from the end was written by the assistant, which
// happens after a greeting, a reset or a backend switch notice.
func IsNewConversation(history []HistoryEntry) bool {
	n := len(history)
	if n <= 2 {
		return true
	}
	return history[n-3].Role == models.RoleAssistant
}

func (s *TurnState) appendHistory(role models.Role, content string, notice bool) {
	s.History = append(s.History, HistoryEntry{Role: role, Content: content, Notice: notice})
}

// lastAnswer returns the most recent generated answer, if any.
func (s *TurnState) lastAnswer() (HistoryEntry, bool) {
	for i := len(s.History) - 1; i >= 0; i-- {
		e := s.History[i]
		if e.Role == models.RoleAssistant && !e.Notice {
			return e, true
		}
	}
	return HistoryEntry{}, false
}
