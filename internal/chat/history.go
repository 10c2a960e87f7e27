package chat

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/fsechat/internal/models"
)

// HistoryReader reads logged conversations back. *db.Client implements it.
type HistoryReader interface {
	ListConversations(ctx context.Context, sessionID string) ([]models.Conversation, error)
	QueryChain(ctx context.Context, conversationID string) ([]models.Message, error)
}

// ConversationLog is one conversation with its messages in chain order.
type ConversationLog struct {
	ID           string
	Conversation models.Conversation
	Messages     []models.Message
}

// LoadHistory returns every conversation of a session, oldest first. A
// corrupted chain fails the whole load.
func LoadHistory(ctx context.Context, r HistoryReader, sessionID string) ([]ConversationLog, error) {
	convs, err := r.ListConversations(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	logs := make([]ConversationLog, 0, len(convs))
	for _, c := range convs {
		id, err := models.RecordIDString(c.ID)
		if err != nil {
			return nil, fmt.Errorf("conversation id: %w", err)
		}
		msgs, err := r.QueryChain(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("conversation %s: %w", id, err)
		}
		logs = append(logs, ConversationLog{ID: id, Conversation: c, Messages: msgs})
	}
	return logs, nil
}
