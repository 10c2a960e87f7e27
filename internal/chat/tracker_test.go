package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/raphaelgruber/fsechat/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartConversation(t *testing.T) {
	store := newMemoryStore()
	tr := NewTracker(store, nil)

	id, err := tr.StartConversation(context.Background(), NewConversation{
		SessionID:   "s-1",
		LLMType:     "GPT-4 8k",
		Temperature: 0.7,
		Content:     "Q1",
		Embedding:   []float32{1, 2},
	})
	require.NoError(t, err)
	assert.Regexp(t, `^user-`, id)

	require.Equal(t, []string{db.OpStartConversation}, store.ops)
	params := store.calls[0]
	assert.Equal(t, id, params["message_id"])
	assert.Regexp(t, `^conv-`, params["conversation_id"])
	assert.Equal(t, []float32{1, 2}, params["embedding"])

	convs := store.conversationsOf("s-1")
	require.Len(t, convs, 1)
	assert.Equal(t, []string{"Q1"}, store.chain(convs[0]))
}

func TestStartConversationRequiresSession(t *testing.T) {
	store := newMemoryStore()
	_, err := NewTracker(store, nil).StartConversation(context.Background(), NewConversation{Content: "Q1"})
	assert.Error(t, err)
	assert.Empty(t, store.ops)
}

func TestStartConversationOmitsEmptyEmbedding(t *testing.T) {
	store := newMemoryStore()
	_, err := NewTracker(store, nil).StartConversation(context.Background(), NewConversation{SessionID: "s-1", Content: "Q1"})
	require.NoError(t, err)
	assert.NotContains(t, store.calls[0], "embedding")
}

func TestAppendMessages(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	tr := NewTracker(store, nil)

	head, err := tr.StartConversation(ctx, NewConversation{SessionID: "s-1", Content: "Q1"})
	require.NoError(t, err)

	answer, err := tr.AppendAssistantMessage(ctx, head, AssistantMessage{
		Content:         "A1",
		ContextDocCount: 3,
		PromptUsed:      "prompt",
		LLMType:         "ollama",
	})
	require.NoError(t, err)
	assert.Regexp(t, `^llm-`, answer)

	params := store.calls[1]
	assert.Equal(t, 3, params["num_docs"])
	assert.Equal(t, "prompt", params["prompt"])
	assert.NotContains(t, params, "running_summary", "empty optional fields stay unbound")

	next, err := tr.AppendUserMessage(ctx, answer, UserMessage{Content: "Q2"})
	require.NoError(t, err)
	assert.Regexp(t, `^user-`, next)

	assert.Equal(t, []string{"Q1", "A1", "Q2"}, store.chain(store.conversationsOf("s-1")[0]))
}

func TestAppendChainBroken(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	tr := NewTracker(store, nil)

	_, err := tr.AppendUserMessage(ctx, "user-missing", UserMessage{Content: "Q"})
	assert.ErrorIs(t, err, db.ErrChainBroken)
	assert.Empty(t, store.messages, "no partial write")

	_, err = tr.AppendAssistantMessage(ctx, "", AssistantMessage{Content: "A"})
	assert.ErrorIs(t, err, db.ErrChainBroken)
	assert.Len(t, store.ops, 1, "an empty tail never reaches the store")
}

func TestAppendChainForked(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	tr := NewTracker(store, nil)

	head, err := tr.StartConversation(ctx, NewConversation{SessionID: "s-1", Content: "Q1"})
	require.NoError(t, err)
	_, err = tr.AppendAssistantMessage(ctx, head, AssistantMessage{Content: "A1"})
	require.NoError(t, err)

	_, err = tr.AppendUserMessage(ctx, head, UserMessage{Content: "stale"})
	assert.ErrorIs(t, err, db.ErrChainForked)
}

func TestAppendWriteFailed(t *testing.T) {
	store := newMemoryStore()
	cause := errors.New("connection refused")
	store.failOn(db.OpAppendUserMessage, errors.Join(db.ErrWriteFailed, cause))

	_, err := NewTracker(store, nil).AppendUserMessage(context.Background(), "user-1", UserMessage{Content: "Q"})
	assert.ErrorIs(t, err, db.ErrWriteFailed)
	assert.ErrorIs(t, err, cause)
}
