package app

import (
	"context"
	"testing"

	"github.com/raphaelgruber/fsechat/internal/config"
	"github.com/raphaelgruber/fsechat/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type constantModel struct{}

func (constantModel) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "ok"}}}, nil
}

func (m constantModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestGeneratorFactory(t *testing.T) {
	f := llm.NewFactoryWithModels(func(context.Context, llm.Backend) (llms.Model, error) {
		return constantModel{}, nil
	}, nil, nil)

	gen, err := GeneratorFactory(f)(context.Background(), llm.BackendOllama, 0.4)
	require.NoError(t, err)

	answer, err := gen.Generate(context.Background(), "hi", "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", answer)
	assert.Equal(t, llm.BackendOllama, gen.(*llm.Generator).Backend())
}

func TestNewTurnStateDefaults(t *testing.T) {
	a := &App{Config: config.Config{LLM: "claude", Temperature: 0.3, NumDocs: 4, Public: true}}

	state, err := a.NewTurnState()
	require.NoError(t, err)
	assert.Equal(t, llm.BackendClaude, state.Backend)
	assert.Equal(t, 0.3, state.Temperature)
	assert.Equal(t, 4, state.NumDocumentsForContext)
	assert.True(t, state.Public)

	deps, err := a.ToolDependencies()
	require.NoError(t, err)
	assert.Equal(t, llm.BackendClaude, deps.Defaults.Backend)

	a.Config.LLM = "gpt-5"
	_, err = a.NewTurnState()
	assert.Error(t, err)
}
