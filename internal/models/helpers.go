// Package models defines the records stored in the conversation log graph.
package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Record id prefixes. Message prefixes encode the author role.
const (
	SessionPrefix          = "s-"
	ConversationPrefix     = "conv-"
	UserMessagePrefix      = "user-"
	AssistantMessagePrefix = "llm-"
)

// NewSessionID returns a fresh globally unique session id.
func NewSessionID() string {
	return SessionPrefix + uuid.NewString()
}

// NewConversationID returns a fresh conversation id.
func NewConversationID() string {
	return ConversationPrefix + uuid.NewString()
}

// NewMessageID returns a role-prefixed message id.
func NewMessageID(role Role) string {
	if role == RoleAssistant {
		return AssistantMessagePrefix + uuid.NewString()
	}
	return UserMessagePrefix + uuid.NewString()
}

// RoleFromMessageID derives the author role from a message id prefix.
func RoleFromMessageID(id string) (Role, bool) {
	switch {
	case strings.HasPrefix(id, AssistantMessagePrefix):
		return RoleAssistant, true
	case strings.HasPrefix(id, UserMessagePrefix):
		return RoleUser, true
	}
	return "", false
}

// RecordIDString safely extracts the string ID from a SurrealDB RecordID.
// Returns an error if the ID is not a string type.
func RecordIDString(id surrealmodels.RecordID) (string, error) {
	s, ok := id.ID.(string)
	if !ok {
		return "", fmt.Errorf("unexpected ID type: %T (expected string)", id.ID)
	}
	return s, nil
}

// MustRecordIDString extracts the string ID, panicking if not a string.
// Only use on tables whose ids this package generates.
func MustRecordIDString(id surrealmodels.RecordID) string {
	s, err := RecordIDString(id)
	if err != nil {
		panic(err)
	}
	return s
}
