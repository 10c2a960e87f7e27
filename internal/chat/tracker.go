package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/fsechat/internal/db"
	"github.com/raphaelgruber/fsechat/internal/models"
)

// Writer runs one write operation in its own transaction.
// *db.Executor implements it.
type Writer interface {
	Execute(ctx context.Context, op string, params map[string]any) error
}

// NewConversation is the first question of a conversation.
type NewConversation struct {
	SessionID   string
	LLMType     string
	Temperature float64
	Content     string
	Embedding   []float32
	Public      bool
}

// UserMessage is a follow-up question.
type UserMessage struct {
	Content   string
	Embedding []float32
	Public    bool
}

// AssistantMessage is a generated answer together with how it was produced.
type AssistantMessage struct {
	Content           string
	ContextDocCount   int
	PromptUsed        string
	RunningSummary    string
	LLMType           string
	VectorIndexSearch bool
	Public            bool
}

// Tracker owns the append-only message chain of each conversation.
type Tracker struct {
	w      Writer
	logger *slog.Logger
}

// NewTracker creates a tracker writing through w.
func NewTracker(w Writer, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{w: w, logger: logger}
}

// StartConversation creates a conversation whose head is the given user
// message, creating the session on first use. Returns the head message id,
// which becomes the chain tail.
func (t *Tracker) StartConversation(ctx context.Context, in NewConversation) (string, error) {
	if in.SessionID == "" {
		return "", fmt.Errorf("start conversation: session id required")
	}

	convID := models.NewConversationID()
	msgID := models.NewMessageID(models.RoleUser)

	params := map[string]any{
		"session_id":      in.SessionID,
		"conversation_id": convID,
		"message_id":      msgID,
		"llm_type":        in.LLMType,
		"temperature":     in.Temperature,
		"public":          in.Public,
		"content":         in.Content,
	}
	setEmbedding(params, in.Embedding)

	if err := t.w.Execute(ctx, db.OpStartConversation, params); err != nil {
		return "", fmt.Errorf("start conversation: %w", err)
	}

	t.logger.Info("conversation started",
		"session", in.SessionID,
		"conversation", convID,
		"message", msgID,
		"llm_type", in.LLMType,
	)
	return msgID, nil
}

// AppendUserMessage links a new user message after prevTailID and returns its id.
// A missing tail fails with db.ErrChainBroken; a tail that already has a
// successor fails with db.ErrChainForked. Neither leaves a partial write.
func (t *Tracker) AppendUserMessage(ctx context.Context, prevTailID string, in UserMessage) (string, error) {
	if prevTailID == "" {
		return "", fmt.Errorf("append user message: %w", db.ErrChainBroken)
	}

	msgID := models.NewMessageID(models.RoleUser)
	params := map[string]any{
		"prev_id":    prevTailID,
		"message_id": msgID,
		"content":    in.Content,
		"public":     in.Public,
	}
	setEmbedding(params, in.Embedding)

	if err := t.w.Execute(ctx, db.OpAppendUserMessage, params); err != nil {
		return "", fmt.Errorf("append user message after %s: %w", prevTailID, err)
	}

	t.logger.Debug("user message appended", "prev", prevTailID, "message", msgID)
	return msgID, nil
}

// AppendAssistantMessage links a new assistant message after prevTailID and
// returns its id. Errors as for AppendUserMessage.
func (t *Tracker) AppendAssistantMessage(ctx context.Context, prevTailID string, in AssistantMessage) (string, error) {
	if prevTailID == "" {
		return "", fmt.Errorf("append assistant message: %w", db.ErrChainBroken)
	}

	msgID := models.NewMessageID(models.RoleAssistant)
	params := map[string]any{
		"prev_id":             prevTailID,
		"message_id":          msgID,
		"content":             in.Content,
		"public":              in.Public,
		"num_docs":            in.ContextDocCount,
		"vector_index_search": in.VectorIndexSearch,
	}
	setString(params, "prompt", in.PromptUsed)
	setString(params, "running_summary", in.RunningSummary)
	setString(params, "llm_type", in.LLMType)

	if err := t.w.Execute(ctx, db.OpAppendAssistantMessage, params); err != nil {
		return "", fmt.Errorf("append assistant message after %s: %w", prevTailID, err)
	}

	t.logger.Debug("assistant message appended", "prev", prevTailID, "message", msgID, "num_docs", in.ContextDocCount)
	return msgID, nil
}

// Optional fields are left unbound when empty so they are stored as NONE.
func setEmbedding(params map[string]any, embedding []float32) {
	if len(embedding) > 0 {
		params["embedding"] = embedding
	}
}

func setString(params map[string]any, key, value string) {
	if value != "" {
		params[key] = value
	}
}
