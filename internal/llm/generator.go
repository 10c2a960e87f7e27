package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/fsechat/internal/config"
	"github.com/raphaelgruber/fsechat/internal/metrics"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/memory"
)

// DefaultMemoryWindow is the number of remembered messages sent with each
// prompt and rendered into the running summary.
const DefaultMemoryWindow = 10

// Generator answers prompts with one backend and remembers the exchange.
// It is not safe for concurrent use; callers serialize turns per session.
type Generator struct {
	model       llms.Model
	backend     Backend
	temperature float64
	history     *memory.ChatMessageHistory
	window      int
	logger      *slog.Logger
	metrics     *metrics.Collector
}

// NewGenerator wraps model. logger and mc may be nil.
func NewGenerator(model llms.Model, backend Backend, temperature float64, logger *slog.Logger, mc *metrics.Collector) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		model:       model,
		backend:     backend,
		temperature: temperature,
		history:     memory.NewChatMessageHistory(),
		window:      DefaultMemoryWindow,
		logger:      logger,
		metrics:     mc,
	}
}

// Backend returns the backend the generator was created for.
func (g *Generator) Backend() Backend {
	return g.backend
}

// Generate sends prompt together with the remembered window. Memory records
// question and the answer, so it holds the same exchanges Remember restores;
// an empty question records the prompt instead.
func (g *Generator) Generate(ctx context.Context, prompt, question string) (answer string, err error) {
	start := time.Now()
	defer g.metrics.Observe(metrics.OpLLMGenerate, start, &err)

	remembered, err := g.recent(ctx)
	if err != nil {
		return "", err
	}

	content := make([]llms.MessageContent, 0, len(remembered)+1)
	for _, msg := range remembered {
		content = append(content, llms.TextParts(msg.GetType(), msg.GetContent()))
	}
	content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	resp, err := g.model.GenerateContent(ctx, content, llms.WithTemperature(g.temperature))
	if err != nil {
		g.logger.Warn("generation failed", "backend", g.backend, "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return "", fmt.Errorf("generate: %w", wrapFatalError(err))
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("generate: no response choices")
	}
	answer = resp.Choices[0].Content

	if question == "" {
		question = prompt
	}
	if err := g.history.AddUserMessage(ctx, question); err != nil {
		return "", fmt.Errorf("remember question: %w", err)
	}
	if err := g.history.AddAIMessage(ctx, answer); err != nil {
		return "", fmt.Errorf("remember answer: %w", err)
	}

	g.logger.Debug("generation complete", "backend", g.backend, "answer_len", len(answer), "duration_ms", time.Since(start).Milliseconds())
	return answer, nil
}

// RunningSummary renders the remembered window as a transcript.
func (g *Generator) RunningSummary(ctx context.Context) (string, error) {
	remembered, err := g.recent(ctx)
	if err != nil {
		return "", err
	}
	summary, err := llms.GetBufferString(remembered, "Human", "AI")
	if err != nil {
		return "", fmt.Errorf("render summary: %w", err)
	}
	return summary, nil
}

// Remember adds an exchange to memory without calling the model, so a
// generator recreated in another process continues where the session was.
func (g *Generator) Remember(ctx context.Context, question, answer string) error {
	if err := g.history.AddUserMessage(ctx, question); err != nil {
		return fmt.Errorf("remember question: %w", err)
	}
	if err := g.history.AddAIMessage(ctx, answer); err != nil {
		return fmt.Errorf("remember answer: %w", err)
	}
	return nil
}

// Reset forgets every remembered exchange.
func (g *Generator) Reset(ctx context.Context) error {
	if err := g.history.Clear(ctx); err != nil {
		return fmt.Errorf("clear memory: %w", err)
	}
	return nil
}

func (g *Generator) recent(ctx context.Context) ([]llms.ChatMessage, error) {
	msgs, err := g.history.Messages(ctx)
	if err != nil {
		return nil, fmt.Errorf("read memory: %w", err)
	}
	if len(msgs) > g.window {
		msgs = msgs[len(msgs)-g.window:]
	}
	return msgs, nil
}

// ModelFunc builds the langchaingo model for a backend.
type ModelFunc func(ctx context.Context, backend Backend) (llms.Model, error)

// Factory creates generators for any configured backend.
type Factory struct {
	newModel ModelFunc
	logger   *slog.Logger
	metrics  *metrics.Collector
}

// NewFactory returns a factory that builds models from cfg.
func NewFactory(cfg config.Config, logger *slog.Logger, mc *metrics.Collector) *Factory {
	return NewFactoryWithModels(func(ctx context.Context, backend Backend) (llms.Model, error) {
		return NewModel(ctx, cfg, backend)
	}, logger, mc)
}

// NewFactoryWithModels returns a factory using newModel (for testing and
// custom backends).
func NewFactoryWithModels(newModel ModelFunc, logger *slog.Logger, mc *metrics.Collector) *Factory {
	return &Factory{newModel: newModel, logger: logger, metrics: mc}
}

// New creates a generator with empty memory.
func (f *Factory) New(ctx context.Context, backend Backend, temperature float64) (*Generator, error) {
	model, err := f.newModel(ctx, backend)
	if err != nil {
		return nil, err
	}
	return NewGenerator(model, backend, temperature, f.logger, f.metrics), nil
}
