package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/raphaelgruber/fsechat/internal/llm"
	"github.com/raphaelgruber/fsechat/internal/metrics"
	"github.com/raphaelgruber/fsechat/internal/models"
)

// AnswerGenerator produces answers and keeps the generation memory of one session.
// *llm.Generator implements it.
type AnswerGenerator interface {
	// Generate answers prompt; question is what the generation memory keeps.
	Generate(ctx context.Context, prompt, question string) (string, error)
	RunningSummary(ctx context.Context) (string, error)
}

// GeneratorFactory creates a generator with empty memory for a backend.
type GeneratorFactory func(ctx context.Context, backend llm.Backend, temperature float64) (AnswerGenerator, error)

// Embedder turns a question into a vector. *llm.Embedder implements it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever finds the documents closest to an embedding.
type Retriever interface {
	Retrieve(ctx context.Context, embedding []float32, limit int) ([]models.Document, error)
}

// SchemaSource describes the graph the answers are drawn from.
// *db.Client implements it.
type SchemaSource interface {
	GraphSchema(ctx context.Context) (string, error)
}

// Deps are the collaborators of an Orchestrator. Writer and Generators are
// required; the others may be nil, in which case the turn runs without
// retrieval, schema or skip reporting.
type Deps struct {
	Writer     Writer
	Lookup     DocumentLookup
	Embedder   Embedder
	Retriever  Retriever
	Schema     SchemaSource
	Generators GeneratorFactory
	Logger     *slog.Logger
	Metrics    *metrics.Collector
}

// TurnResult describes one handled question.
type TurnResult struct {
	Answer             string
	Rendered           string
	UserMessageID      string
	AssistantMessageID string
	NewConversation    bool
	Documents          []models.Document
	PromptDuration     time.Duration
	GenerationDuration time.Duration
}

type sessionGenerator struct {
	gen         AnswerGenerator
	backend     llm.Backend
	temperature float64
}

// Orchestrator drives chat turns end to end: it decides conversation
// boundaries, logs both messages, attaches context and records ratings.
// Turns of one session are serialized; sessions run independently.
type Orchestrator struct {
	tracker        *Tracker
	attacher       *Attacher
	recorder       *Recorder
	embedder       Embedder
	retriever      Retriever
	schema         SchemaSource
	newGenerator   GeneratorFactory
	logger         *slog.Logger
	metrics        *metrics.Collector
	sessions       *KeyedMutex
	mu             sync.Mutex
	generators     map[string]*sessionGenerator
	exampleQueries []string
}

// NewOrchestrator wires the chat components on top of d.
func NewOrchestrator(d Deps) *Orchestrator {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		tracker:        NewTracker(d.Writer, logger),
		attacher:       NewAttacher(d.Writer, d.Lookup, logger),
		recorder:       NewRecorder(d.Writer, logger),
		embedder:       d.Embedder,
		retriever:      d.Retriever,
		schema:         d.Schema,
		newGenerator:   d.Generators,
		logger:         logger,
		metrics:        d.Metrics,
		sessions:       NewKeyedMutex(),
		generators:     make(map[string]*sessionGenerator),
		exampleQueries: ExampleQuestions,
	}
}

// HandleTurn answers question and logs the exchange. The user and assistant
// writes abort the turn on failure (db.ErrWriteFailed, db.ErrChainBroken,
// db.ErrChainForked); a failed context attach is logged and the turn still
// succeeds. state is updated in place.
func (o *Orchestrator) HandleTurn(ctx context.Context, state *TurnState, question string) (_ *TurnResult, err error) {
	defer o.metrics.Observe(metrics.OpTurn, time.Now(), &err)

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("handle turn: empty question")
	}

	unlock := o.sessions.Lock(state.SessionID)
	defer unlock()

	state.appendHistory(models.RoleUser, question, false)
	isNew := IsNewConversation(state.History)
	logger := o.logger.With("session", state.SessionID)

	promptStart := time.Now()
	embedding, docs := o.retrieve(ctx, logger, question, state.NumDocumentsForContext)
	prompt := BuildPrompt(o.graphSchema(ctx, logger), o.exampleQueries, docs, question)
	state.QuestionEmbedding = embedding
	state.GeneralPrompt = prompt
	promptDuration := time.Since(promptStart)

	var userID string
	if isNew {
		userID, err = o.tracker.StartConversation(ctx, NewConversation{
			SessionID:   state.SessionID,
			LLMType:     string(state.Backend),
			Temperature: state.Temperature,
			Content:     question,
			Embedding:   embedding,
			Public:      state.Public,
		})
	} else {
		userID, err = o.tracker.AppendUserMessage(ctx, state.LatestMessageID, UserMessage{
			Content:   question,
			Embedding: embedding,
			Public:    state.Public,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("log question: %w", err)
	}
	state.LatestMessageID = userID

	gen, err := o.generator(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("create generator: %w", err)
	}

	runStart := time.Now()
	answer, err := gen.Generate(ctx, prompt, question)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	generationDuration := time.Since(runStart)

	summary, err := gen.RunningSummary(ctx)
	if err != nil {
		logger.Warn("running summary unavailable", "error", err)
	}
	state.RunningSummary = summary

	assistantID, err := o.tracker.AppendAssistantMessage(ctx, state.LatestMessageID, AssistantMessage{
		Content:           answer,
		ContextDocCount:   state.NumDocumentsForContext,
		PromptUsed:        prompt,
		RunningSummary:    summary,
		LLMType:           string(state.Backend),
		VectorIndexSearch: embedding != nil,
		Public:            state.Public,
	})
	if err != nil {
		return nil, fmt.Errorf("log answer: %w", err)
	}
	state.LatestMessageID = assistantID
	state.LatestAssistantMessageID = assistantID

	if err := o.attacher.AttachContext(ctx, assistantID, documentIndices(docs)); err != nil {
		logger.Warn("context attach failed", "message", assistantID, "error", err)
	}

	rendered := answer + renderTiming(promptDuration, generationDuration)
	state.appendHistory(models.RoleAssistant, rendered, false)

	logger.Info("turn handled",
		"new_conversation", isNew,
		"user_message", userID,
		"assistant_message", assistantID,
		"documents", len(docs),
		"prompt_ms", promptDuration.Milliseconds(),
		"generation_ms", generationDuration.Milliseconds(),
	)

	return &TurnResult{
		Answer:             answer,
		Rendered:           rendered,
		UserMessageID:      userID,
		AssistantMessageID: assistantID,
		NewConversation:    isNew,
		Documents:          docs,
		PromptDuration:     promptDuration,
		GenerationDuration: generationDuration,
	}, nil
}

// OnRatingSubmitted rates the latest assistant message of the session.
// Before the first answer it does nothing.
func (o *Orchestrator) OnRatingSubmitted(ctx context.Context, state *TurnState, feedback models.Feedback) error {
	unlock := o.sessions.Lock(state.SessionID)
	defer unlock()

	if state.LatestAssistantMessageID == "" {
		return o.recorder.RecordRating(ctx, "", "", nil)
	}
	rating, explanation, err := ParseFeedback(feedback)
	if err != nil {
		return fmt.Errorf("parse feedback: %w", err)
	}
	return o.recorder.RecordRating(ctx, state.LatestAssistantMessageID, rating, explanation)
}

// SwitchBackend changes the answer backend. The generation memory is dropped
// and a notice is added to the visible history, so the next question starts
// a new conversation recorded with the new backend.
func (o *Orchestrator) SwitchBackend(state *TurnState, backend llm.Backend) {
	unlock := o.sessions.Lock(state.SessionID)
	defer unlock()

	if state.Backend == backend {
		return
	}
	o.logger.Info("switching backend", "session", state.SessionID, "from", state.Backend, "to", backend)

	state.Backend = backend
	state.appendHistory(models.RoleAssistant, SwitchNotice(backend), true)
	o.dropGenerator(state.SessionID)
}

// Reset clears the visible history and generation memory but keeps the
// session. The next question starts a new conversation, and ratings are
// ignored until it has been answered.
func (o *Orchestrator) Reset(state *TurnState) {
	unlock := o.sessions.Lock(state.SessionID)
	defer unlock()

	state.History = []HistoryEntry{{Role: models.RoleAssistant, Content: ResetGreeting, Notice: true}}
	state.LatestMessageID = ""
	state.LatestAssistantMessageID = ""
	state.QuestionEmbedding = nil
	state.GeneralPrompt = ""
	state.RunningSummary = ""
	state.Temperature = ResetTemperature
	o.dropGenerator(state.SessionID)

	o.logger.Info("conversation reset", "session", state.SessionID)
}

// EndSession releases the generation memory held for a session.
func (o *Orchestrator) EndSession(sessionID string) {
	o.dropGenerator(sessionID)
}

// generator returns the session's generator, creating a fresh one when none
// exists or the backend settings changed.
func (o *Orchestrator) generator(ctx context.Context, state *TurnState) (AnswerGenerator, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if sg, ok := o.generators[state.SessionID]; ok && sg.backend == state.Backend && sg.temperature == state.Temperature {
		return sg.gen, nil
	}
	gen, err := o.newGenerator(ctx, state.Backend, state.Temperature)
	if err != nil {
		return nil, err
	}
	if r, ok := gen.(rememberer); ok {
		for _, ex := range rememberedExchanges(state.History) {
			if err := r.Remember(ctx, ex[0], ex[1]); err != nil {
				return nil, err
			}
		}
	}
	o.generators[state.SessionID] = &sessionGenerator{gen: gen, backend: state.Backend, temperature: state.Temperature}
	return gen, nil
}

// rememberer is implemented by generators whose memory can be restored from
// the visible history of a session loaded from a store.
type rememberer interface {
	Remember(ctx context.Context, question, answer string) error
}

// rememberedExchanges pairs the answered questions since the last notice.
// The current, unanswered question is not included.
func rememberedExchanges(history []HistoryEntry) [][2]string {
	var out [][2]string
	var question string
	var pending bool
	for _, e := range history {
		switch {
		case e.Notice:
			out, pending = nil, false
		case e.Role == models.RoleUser:
			question, pending = e.Content, true
		case e.Role == models.RoleAssistant && pending:
			answer, _, _ := strings.Cut(e.Content, timingSeparator)
			out = append(out, [2]string{question, answer})
			pending = false
		}
	}
	return out
}

func (o *Orchestrator) dropGenerator(sessionID string) {
	o.mu.Lock()
	delete(o.generators, sessionID)
	o.mu.Unlock()
}

// retrieve embeds the question and looks up context documents. Failures
// degrade the turn to answering without context.
func (o *Orchestrator) retrieve(ctx context.Context, logger *slog.Logger, question string, limit int) ([]float32, []models.Document) {
	if o.embedder == nil {
		return nil, nil
	}
	embedding, err := o.embedder.Embed(ctx, question)
	if err != nil {
		logger.Warn("question embedding failed, answering without context", "error", err)
		return nil, nil
	}
	if o.retriever == nil || limit <= 0 {
		return embedding, nil
	}
	docs, err := o.retriever.Retrieve(ctx, embedding, limit)
	if err != nil {
		logger.Warn("context retrieval failed, answering without context", "error", err)
		return embedding, nil
	}
	return embedding, docs
}

func (o *Orchestrator) graphSchema(ctx context.Context, logger *slog.Logger) string {
	if o.schema == nil {
		return ""
	}
	schema, err := o.schema.GraphSchema(ctx)
	if err != nil {
		logger.Warn("graph schema unavailable", "error", err)
		return ""
	}
	return schema
}

func documentIndices(docs []models.Document) []int {
	indices := make([]int, len(docs))
	for i, d := range docs {
		indices[i] = d.Index
	}
	return indices
}

const timingSeparator = "\n\nPrompt creation took"

func renderTiming(prompt, generation time.Duration) string {
	return fmt.Sprintf(timingSeparator+" %.4f seconds.\n\nThis thought took %.4f seconds.",
		prompt.Seconds(), generation.Seconds())
}
