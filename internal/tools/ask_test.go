package tools_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/fsechat/internal/chat"
	"github.com/raphaelgruber/fsechat/internal/db"
	"github.com/raphaelgruber/fsechat/internal/llm"
	"github.com/raphaelgruber/fsechat/internal/session"
	"github.com/raphaelgruber/fsechat/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chainLog refuses to link a second successor to the same tail, like the
// append transaction does.
type chainLog struct {
	mu   sync.Mutex
	next map[string]bool
}

func (l *chainLog) Execute(_ context.Context, op string, params map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	prev, ok := params["prev_id"].(string)
	if !ok {
		return nil
	}
	if l.next[prev] {
		return fmt.Errorf("%w: %s already has a successor", db.ErrChainForked, prev)
	}
	l.next[prev] = true
	return nil
}

// snapshotStore serves a fixed earlier state on Load once snapshot is set,
// as a second process that loaded before the latest save would see it.
type snapshotStore struct {
	*session.MemoryStore
	snapshot *chat.TurnState
}

func (s *snapshotStore) Load(ctx context.Context, id string) (*chat.TurnState, error) {
	if s.snapshot != nil {
		cp := *s.snapshot
		cp.History = append([]chat.HistoryEntry(nil), s.snapshot.History...)
		return &cp, nil
	}
	return s.MemoryStore.Load(ctx, id)
}

func newAskDeps(store session.Store) *tools.Dependencies {
	orch := chat.NewOrchestrator(chat.Deps{
		Writer: &chainLog{next: make(map[string]bool)},
		Generators: func(context.Context, llm.Backend, float64) (chat.AnswerGenerator, error) {
			return &cannedGenerator{}, nil
		},
		Logger: testLogger(),
	})
	return &tools.Dependencies{Chat: orch, Sessions: store, Logger: testLogger()}
}

func askDirect(t *testing.T, deps *tools.Dependencies, sessionID, question string) (tools.AskOutput, string, bool) {
	t.Helper()
	res, _, err := tools.NewAskHandler(deps)(context.Background(), &mcp.CallToolRequest{},
		tools.AskInput{SessionID: sessionID, Question: question})
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	text := res.Content[0].(*mcp.TextContent).Text
	var out tools.AskOutput
	if !res.IsError {
		require.NoError(t, json.Unmarshal([]byte(text), &out))
	}
	return out, text, res.IsError
}

func TestAskWithStaleStateKeepsNewerAnswer(t *testing.T) {
	ctx := context.Background()
	store := &snapshotStore{MemoryStore: session.NewMemoryStore()}
	deps := newAskDeps(store)

	state := chat.NewTurnState(llm.BackendGPT4, 0.7, 5, false)
	require.NoError(t, store.Save(ctx, state))

	_, text, isErr := askDirect(t, deps, state.SessionID, "Q1")
	require.False(t, isErr, text)
	before, err := store.MemoryStore.Load(ctx, state.SessionID)
	require.NoError(t, err)

	second, text, isErr := askDirect(t, deps, state.SessionID, "Q2")
	require.False(t, isErr, text)
	require.False(t, second.NewConversation)

	// A caller holding the state from before Q2 tries to extend the same tail.
	store.snapshot = before
	_, text, isErr = askDirect(t, deps, state.SessionID, "Q2 again")
	assert.True(t, isErr)
	assert.Contains(t, text, "answered first")

	stored, err := store.MemoryStore.Load(ctx, state.SessionID)
	require.NoError(t, err)
	assert.Equal(t, second.AssistantMessageID, stored.LatestAssistantMessageID, "stale turn must not overwrite the saved session")
	assert.Equal(t, second.AssistantMessageID, stored.LatestMessageID)
	assert.Len(t, stored.History, 5)
}

func TestConcurrentAsksOnOneSessionBothSucceed(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	deps := newAskDeps(store)

	state := chat.NewTurnState(llm.BackendGPT4, 0.7, 5, false)
	require.NoError(t, store.Save(ctx, state))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		answers []tools.AskOutput
		failed  []string
	)
	for _, q := range []string{"Q1", "Q2"} {
		wg.Add(1)
		go func(q string) {
			defer wg.Done()
			res, _, err := tools.NewAskHandler(deps)(ctx, &mcp.CallToolRequest{},
				tools.AskInput{SessionID: state.SessionID, Question: q})
			mu.Lock()
			defer mu.Unlock()
			if err != nil || res.IsError {
				failed = append(failed, q)
				return
			}
			var out tools.AskOutput
			if json.Unmarshal([]byte(res.Content[0].(*mcp.TextContent).Text), &out) == nil {
				answers = append(answers, out)
			}
		}(q)
	}
	wg.Wait()

	require.Empty(t, failed, "turns of one session run one after the other")
	require.Len(t, answers, 2)

	newConversations := 0
	for _, a := range answers {
		if a.NewConversation {
			newConversations++
		}
	}
	assert.Equal(t, 1, newConversations, "the second turn extends the first")

	stored, err := store.Load(ctx, state.SessionID)
	require.NoError(t, err)
	assert.Len(t, stored.History, 5)
	assert.Equal(t, int64(3), stored.Version)
}
