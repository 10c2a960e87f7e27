package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Session identifies a browser or CLI session. Never mutated after creation.
type Session struct {
	ID        surrealmodels.RecordID `json:"id"`
	CreatedAt time.Time              `json:"created_at"`
}

// Conversation is one continuous chat tied to the model configuration it started with.
type Conversation struct {
	ID          surrealmodels.RecordID `json:"id"`
	LLMType     string                 `json:"llm_type"`
	Temperature float64                `json:"temperature"`
	Public      bool                   `json:"public"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Message is one turn of a conversation chain.
// Assistant-only fields are empty for user messages.
type Message struct {
	ID        surrealmodels.RecordID `json:"id"`
	Content   string                 `json:"content"`
	Role      Role                   `json:"role"`
	PostedAt  time.Time              `json:"posted_at"`
	Embedding []float32              `json:"embedding,omitempty"`
	Public    bool                   `json:"public"`

	NumDocs           int     `json:"num_docs,omitempty"`
	Prompt            *string `json:"prompt,omitempty"`
	RunningSummary    *string `json:"running_summary,omitempty"`
	VectorIndexSearch bool    `json:"vector_index_search,omitempty"`
	LLMType           *string `json:"llm_type,omitempty"`
	Rating            *Rating `json:"rating,omitempty"`
	RatingExplanation *string `json:"rating_explanation,omitempty"`
}

// IsAssistant reports whether the message was authored by the assistant.
func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}
