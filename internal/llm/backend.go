// Package llm provides answer generation and embeddings on top of langchaingo.
package llm

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/raphaelgruber/fsechat/internal/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Backend names an answer-generation backend. The value is what gets
// recorded as llm_type on conversations and assistant messages.
type Backend string

const (
	BackendGPT4    Backend = "GPT-4 8k"
	BackendClaude  Backend = "claude"
	BackendOllama  Backend = "ollama"
	BackendBedrock Backend = "bedrock"
)

// Backends lists the supported backends in display order.
func Backends() []Backend {
	return []Backend{BackendGPT4, BackendClaude, BackendOllama, BackendBedrock}
}

// ParseBackend resolves a user-supplied backend name, case-insensitively.
// "gpt-4", "gpt4" and "openai" are accepted for BackendGPT4.
func ParseBackend(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gpt-4 8k", "gpt-4", "gpt4", "openai", "azure":
		return BackendGPT4, nil
	case "claude", "anthropic":
		return BackendClaude, nil
	case "ollama":
		return BackendOllama, nil
	case "bedrock":
		return BackendBedrock, nil
	}
	return "", fmt.Errorf("unsupported LLM backend %q", name)
}

// NewModel creates the langchaingo model for backend.
func NewModel(ctx context.Context, cfg config.Config, backend Backend) (llms.Model, error) {
	switch backend {
	case BackendGPT4:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		opts := []openai.Option{
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.GPT4DeploymentName),
		}
		// A custom base selects an Azure deployment.
		if cfg.OpenAIAPIBase != "" {
			opts = append(opts,
				openai.WithBaseURL(cfg.OpenAIAPIBase),
				openai.WithAPIType(openai.APITypeAzure),
				openai.WithAPIVersion(cfg.OpenAIAPIVersion),
			)
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}
		return model, nil

	case BackendClaude:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err := anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.AnthropicModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}
		return model, nil

	case BackendOllama:
		model, err := ollama.New(
			ollama.WithModel(cfg.OllamaModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}
		return model, nil

	case BackendBedrock:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		model, err := bedrock.New(
			bedrock.WithClient(bedrockruntime.NewFromConfig(awsCfg)),
			bedrock.WithModel(cfg.BedrockModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}
		return model, nil
	}

	return nil, fmt.Errorf("unsupported LLM backend: %s", backend)
}
