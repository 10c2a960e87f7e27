package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/raphaelgruber/fsechat/internal/chat"
	"github.com/raphaelgruber/fsechat/internal/db"
	"github.com/raphaelgruber/fsechat/internal/llm"
	"github.com/raphaelgruber/fsechat/internal/metrics"
	"github.com/raphaelgruber/fsechat/internal/models"
	"github.com/raphaelgruber/fsechat/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

type acceptAll struct {
	mu  sync.Mutex
	ops []string
}

func (a *acceptAll) Execute(_ context.Context, op string, _ map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ops = append(a.ops, op)
	return nil
}

type numberedGenerator struct{ n int }

func (g *numberedGenerator) Generate(context.Context, string, string) (string, error) {
	g.n++
	return fmt.Sprintf("answer %d", g.n), nil
}

func (g *numberedGenerator) RunningSummary(context.Context) (string, error) { return "", nil }

type emptyHistory struct{}

func (emptyHistory) ListConversations(context.Context, string) ([]models.Conversation, error) {
	return nil, nil
}

func (emptyHistory) QueryChain(context.Context, string) ([]models.Message, error) {
	return nil, nil
}

func newTestRepl(t *testing.T) (*repl, *bytes.Buffer, *acceptAll, session.Store) {
	t.Helper()
	writes := &acceptAll{}
	orch := chat.NewOrchestrator(chat.Deps{
		Writer: writes,
		Generators: func(context.Context, llm.Backend, float64) (chat.AnswerGenerator, error) {
			return &numberedGenerator{}, nil
		},
	})
	out := &bytes.Buffer{}
	store := session.NewMemoryStore()
	return &repl{
		engine:  orch,
		store:   store,
		history: emptyHistory{},
		out:     out,
		theme:   defaultTheme,
		width:   80,
	}, out, writes, store
}

func TestReplSession(t *testing.T) {
	r, out, writes, store := newTestRepl(t)
	state := chat.NewTurnState(llm.BackendGPT4, 0.7, 5, false)

	input := strings.Join([]string{
		"What does code 111 mean?",
		"",
		"/rate down wrong code",
		"/switch ollama",
		"/switch Ollama",
		"/bogus",
		"/quit",
		"never read",
	}, "\n")
	require.NoError(t, r.run(context.Background(), state, strings.NewReader(input)))

	text := out.String()
	assert.Contains(t, text, chat.Greeting)
	assert.Contains(t, text, "answer 1")
	assert.Contains(t, text, "Thanks for the feedback.")
	assert.Contains(t, text, chat.SwitchNotice(llm.BackendOllama))
	assert.Contains(t, text, "Already using ollama")
	assert.Contains(t, text, "unknown command /bogus")
	assert.NotContains(t, text, "answer 2")

	assert.Contains(t, writes.ops, db.OpStartConversation, "first question starts a conversation")
	assert.Contains(t, writes.ops, db.OpRecordRating)
	saved, err := store.Load(context.Background(), state.SessionID)
	require.NoError(t, err)
	assert.Equal(t, llm.BackendOllama, saved.Backend)
	current, err := store.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, state.SessionID, current)
}

func TestReplRateBeforeAnswer(t *testing.T) {
	r, out, _, _ := newTestRepl(t)
	state := chat.NewTurnState(llm.BackendGPT4, 0.7, 5, false)

	assert.False(t, r.handle(context.Background(), state, "/rate up"))
	assert.Contains(t, out.String(), "Nothing to rate yet.")
}

func TestReplReset(t *testing.T) {
	r, out, _, _ := newTestRepl(t)
	state := chat.NewTurnState(llm.BackendGPT4, 0.7, 5, false)

	r.handle(context.Background(), state, "Q1")
	r.handle(context.Background(), state, "/reset")

	assert.Contains(t, out.String(), chat.ResetGreeting)
	assert.Empty(t, state.LatestAssistantMessageID)
	assert.Len(t, state.History, 1)
}

func TestRenderHistory(t *testing.T) {
	bad := models.RatingBad
	why := "wrong torque"
	logs := []chat.ConversationLog{{
		ID: "conv-1",
		Conversation: models.Conversation{
			ID:          surrealmodels.RecordID{Table: "conversation", ID: "conv-1"},
			LLMType:     "GPT-4 8k",
			Temperature: 0.7,
			CreatedAt:   time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
		},
		Messages: []models.Message{
			{Role: models.RoleUser, Content: "Torque for the head bolts?"},
			{Role: models.RoleAssistant, Content: "90 Nm", Rating: &bad, RatingExplanation: &why},
		},
	}}

	var buf bytes.Buffer
	renderHistory(&buf, defaultTheme, 60, logs)
	text := buf.String()

	assert.Contains(t, text, "Conversation 1: conv-1 (GPT-4 8k, temperature 0.70, 2024-05-01 09:30)")
	assert.Contains(t, text, "You")
	assert.Contains(t, text, "Torque for the head bolts?")
	assert.Contains(t, text, "[rated bad: wrong torque]")
}

func TestPrintStats(t *testing.T) {
	mc := metrics.NewCollector()
	mc.RecordTiming(metrics.OpTurn, 1500*time.Millisecond)
	mc.RecordFailure(metrics.OpDBWrite, 20*time.Millisecond)

	var buf bytes.Buffer
	printStats(&buf, mc.Snapshot())
	text := buf.String()

	assert.Contains(t, text, "Chat turns:")
	assert.Contains(t, text, "Calls: 1, Failures: 0, Total: 1500ms")
	assert.Contains(t, text, "DB Write:")
	assert.Contains(t, text, "Failures: 1")

	buf.Reset()
	printStats(&buf, metrics.Snapshot{})
	assert.Contains(t, buf.String(), "No operations recorded.")
}
