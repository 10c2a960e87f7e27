package tools_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/fsechat/internal/chat"
	"github.com/raphaelgruber/fsechat/internal/db"
	"github.com/raphaelgruber/fsechat/internal/llm"
	"github.com/raphaelgruber/fsechat/internal/models"
	"github.com/raphaelgruber/fsechat/internal/session"
	"github.com/raphaelgruber/fsechat/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// testLogger creates a logger for test visibility.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// opLog accepts every write and records the operations.
type opLog struct {
	mu  sync.Mutex
	ops []map[string]any
	err error
}

func (l *opLog) Execute(_ context.Context, op string, params map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.ops = append(l.ops, params)
	return nil
}

func (l *opLog) rated() []map[string]any {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []map[string]any
	for _, p := range l.ops {
		if _, ok := p["rating"]; ok {
			out = append(out, p)
		}
	}
	return out
}

type cannedGenerator struct{ n int }

func (g *cannedGenerator) Generate(context.Context, string, string) (string, error) {
	g.n++
	return fmt.Sprintf("answer %d", g.n), nil
}

func (g *cannedGenerator) RunningSummary(context.Context) (string, error) { return "", nil }

type staticHistory struct{}

func (staticHistory) ListConversations(context.Context, string) ([]models.Conversation, error) {
	return []models.Conversation{{ID: surrealmodels.RecordID{Table: "conversation", ID: "conv-1"}, LLMType: "GPT-4 8k"}}, nil
}

func (staticHistory) QueryChain(context.Context, string) ([]models.Message, error) {
	good := models.RatingGood
	return []models.Message{
		{ID: surrealmodels.RecordID{Table: "message", ID: "user-1"}, Role: models.RoleUser, Content: "Q1"},
		{ID: surrealmodels.RecordID{Table: "message", ID: "llm-1"}, Role: models.RoleAssistant, Content: "A1", Rating: &good},
	}, nil
}

type fixture struct {
	writes  *opLog
	store   *session.MemoryStore
	session *mcp.ClientSession
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := testLogger()
	f := &fixture{writes: &opLog{}, store: session.NewMemoryStore()}

	orch := chat.NewOrchestrator(chat.Deps{
		Writer: f.writes,
		Generators: func(context.Context, llm.Backend, float64) (chat.AnswerGenerator, error) {
			return &cannedGenerator{}, nil
		},
		Logger: logger,
	})

	server := mcp.NewServer(&mcp.Implementation{Name: "test-fsechat", Version: "0.0.1-test"}, nil)
	tools.RegisterAll(server, &tools.Dependencies{
		Chat:     orch,
		Sessions: f.store,
		History:  staticHistory{},
		Defaults: tools.SessionDefaults{Backend: llm.BackendGPT4, Temperature: 0.7, NumDocs: 5},
		Logger:   logger,
	})

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	go func() {
		_ = server.Run(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err, "client should connect successfully")
	t.Cleanup(func() { _ = cs.Close() })
	f.session = cs
	return f
}

// call invokes a tool and returns its text and error flag.
func (f *fixture) call(t *testing.T, name string, args map[string]any) (string, bool) {
	t.Helper()
	result, err := f.session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "content should be TextContent")
	return text.Text, result.IsError
}

func (f *fixture) startSession(t *testing.T) string {
	t.Helper()
	text, isErr := f.call(t, "start_session", map[string]any{})
	require.False(t, isErr, text)
	var out tools.StartSessionOutput
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	return out.SessionID
}

func (f *fixture) ask(t *testing.T, sessionID, question string) tools.AskOutput {
	t.Helper()
	text, isErr := f.call(t, "ask", map[string]any{"session_id": sessionID, "question": question})
	require.False(t, isErr, text)
	var out tools.AskOutput
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	return out
}

func TestToolsRegistered(t *testing.T) {
	f := newFixture(t)

	result, err := f.session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make([]string, len(result.Tools))
	for i, tool := range result.Tools {
		names[i] = tool.Name
	}
	assert.ElementsMatch(t, []string{"ping", "start_session", "ask", "rate", "reset", "switch_model", "history", "end_session"}, names)
}

func TestPingTool(t *testing.T) {
	f := newFixture(t)

	text, isErr := f.call(t, "ping", map[string]any{})
	assert.False(t, isErr)
	assert.Equal(t, "pong", text)

	text, _ = f.call(t, "ping", map[string]any{"echo": "hello world"})
	assert.Equal(t, "hello world", text)
}

func TestAskAndRate(t *testing.T) {
	f := newFixture(t)
	id := f.startSession(t)

	text, isErr := f.call(t, "rate", map[string]any{"session_id": id, "score": "up"})
	assert.False(t, isErr)
	assert.Equal(t, "Nothing to rate yet", text)

	first := f.ask(t, id, "What does ECM code 111 mean?")
	assert.True(t, first.NewConversation)
	assert.Equal(t, "answer 1", first.Answer)
	assert.True(t, strings.HasPrefix(first.AssistantMessageID, models.AssistantMessagePrefix))

	second := f.ask(t, id, "And code 112?")
	assert.False(t, second.NewConversation, "state persisted between calls")

	text, isErr = f.call(t, "rate", map[string]any{"session_id": id, "score": "down", "explanation": "wrong code"})
	require.False(t, isErr, text)
	assert.Equal(t, "Rated "+second.AssistantMessageID, text)

	rated := f.writes.rated()
	require.Len(t, rated, 1)
	assert.Equal(t, second.AssistantMessageID, rated[0]["message_id"])
	assert.Equal(t, "bad", rated[0]["rating"])
	assert.Equal(t, "wrong code", rated[0]["explanation"])

	text, isErr = f.call(t, "rate", map[string]any{"session_id": id, "score": "meh"})
	assert.True(t, isErr)
	assert.Contains(t, text, "unknown feedback score")
}

func TestAskValidation(t *testing.T) {
	f := newFixture(t)

	text, isErr := f.call(t, "ask", map[string]any{"session_id": "", "question": "Q"})
	assert.True(t, isErr)
	assert.Contains(t, text, "start_session")

	text, isErr = f.call(t, "ask", map[string]any{"session_id": "s-unknown", "question": "Q"})
	assert.True(t, isErr)
	assert.Contains(t, text, "Unknown session")

	text, isErr = f.call(t, "ask", map[string]any{"session_id": "s-unknown", "question": "  "})
	assert.True(t, isErr)
	assert.Contains(t, text, "Question cannot be empty")
}

func TestAskWriteFailure(t *testing.T) {
	f := newFixture(t)
	id := f.startSession(t)
	f.writes.err = db.ErrWriteFailed

	text, isErr := f.call(t, "ask", map[string]any{"session_id": id, "question": "Q1"})
	assert.True(t, isErr)
	assert.Contains(t, text, "conversation store may be unavailable")
}

func TestSwitchModelAndReset(t *testing.T) {
	f := newFixture(t)
	id := f.startSession(t)
	f.ask(t, id, "Q1")

	text, isErr := f.call(t, "switch_model", map[string]any{"session_id": id, "backend": "nope"})
	assert.True(t, isErr)
	assert.Contains(t, text, "Choose one of")

	text, isErr = f.call(t, "switch_model", map[string]any{"session_id": id, "backend": "ollama"})
	require.False(t, isErr, text)
	assert.Equal(t, chat.SwitchNotice(llm.BackendOllama), text)

	text, _ = f.call(t, "switch_model", map[string]any{"session_id": id, "backend": "Ollama"})
	assert.Equal(t, "Already using ollama", text)

	assert.True(t, f.ask(t, id, "Q2").NewConversation, "a switch starts a new conversation")

	text, isErr = f.call(t, "reset", map[string]any{"session_id": id})
	require.False(t, isErr, text)
	assert.Equal(t, chat.ResetGreeting, text)

	state, err := f.store.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, state.LatestAssistantMessageID)
	assert.Equal(t, chat.ResetTemperature, state.Temperature)
	assert.True(t, f.ask(t, id, "Q3").NewConversation)
}

func TestHistoryTool(t *testing.T) {
	f := newFixture(t)

	text, isErr := f.call(t, "history", map[string]any{"session_id": "s-1"})
	require.False(t, isErr, text)

	var views []tools.ConversationView
	require.NoError(t, json.Unmarshal([]byte(text), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "conv-1", views[0].ID)
	require.Len(t, views[0].Messages, 2)
	assert.Equal(t, "llm-1", views[0].Messages[1].ID)
	require.NotNil(t, views[0].Messages[1].Rating)
	assert.Equal(t, models.RatingGood, *views[0].Messages[1].Rating)
}

func TestEndSession(t *testing.T) {
	f := newFixture(t)
	id := f.startSession(t)

	text, isErr := f.call(t, "end_session", map[string]any{"session_id": id})
	require.False(t, isErr, text)

	_, err := f.store.Load(context.Background(), id)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestStartSessionOptions(t *testing.T) {
	f := newFixture(t)

	text, isErr := f.call(t, "start_session", map[string]any{"backend": "bedrock", "temperature": 0.2, "public": true})
	require.False(t, isErr, text)
	var out tools.StartSessionOutput
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, "bedrock", out.Backend)
	assert.Equal(t, chat.Greeting, out.Greeting)

	state, err := f.store.Load(context.Background(), out.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 0.2, state.Temperature)
	assert.True(t, state.Public)

	text, isErr = f.call(t, "start_session", map[string]any{"temperature": 3})
	assert.True(t, isErr)
	assert.Contains(t, text, "Temperature must be 0-2")
}
