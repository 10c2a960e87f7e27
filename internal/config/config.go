// Package config loads runtime settings from the environment and sets up logging.
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Embedding providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Session stores.
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Answer generation
	LLM         string
	Temperature float64

	OpenAIAPIKey       string
	OpenAIAPIBase      string
	OpenAIAPIVersion   string
	GPT4DeploymentName string
	AnthropicAPIKey    string
	AnthropicModel     string
	OllamaHost         string
	OllamaModel        string
	AWSRegion          string
	BedrockModel       string

	// Embeddings
	EmbedProvider  string
	EmbedModel     string
	EmbedDimension int

	// Conversation logging
	NumDocs   int
	Public    bool
	BatchSize int

	// Turn state persistence
	SessionStore  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present; real environment variables
// win over it.
func Load() Config {
	loadDotEnv(".env")

	return Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "fse"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "chat"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LLM:         getEnv("FSECHAT_LLM", "GPT-4 8k"),
		Temperature: getFloat("FSECHAT_TEMPERATURE", 0.7),

		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIAPIBase:      getEnv("OPENAI_API_BASE", ""),
		OpenAIAPIVersion:   getEnv("OPENAI_API_VERSION", "2023-05-15"),
		GPT4DeploymentName: getEnv("GPT4_8K_NAME", "gpt-4"),
		AnthropicAPIKey:    getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:     getEnv("FSECHAT_ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
		OllamaHost:         getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:        getEnv("FSECHAT_OLLAMA_MODEL", "llama3.2"),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		BedrockModel:       getEnv("FSECHAT_BEDROCK_MODEL", "anthropic.claude-3-haiku-20240307-v1:0"),

		EmbedProvider:  strings.ToLower(getEnv("FSECHAT_EMBED_PROVIDER", ProviderOllama)),
		EmbedModel:     getEnv("FSECHAT_EMBED_MODEL", "all-minilm:l6-v2"),
		EmbedDimension: getInt("FSECHAT_EMBED_DIMENSION", 384),

		NumDocs:   getInt("FSECHAT_NUM_DOCS", 5),
		Public:    getBool("FSECHAT_PUBLIC", false),
		BatchSize: getInt("FSECHAT_BATCH_SIZE", 10000),

		SessionStore:  strings.ToLower(getEnv("FSECHAT_SESSION_STORE", SessionStoreMemory)),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),
		SessionTTL:    getDuration("FSECHAT_SESSION_TTL", 24*time.Hour),

		LogFile:  getEnv("FSECHAT_LOG_FILE", "/tmp/fsechat.log"),
		LogLevel: parseLogLevel(getEnv("FSECHAT_LOG_LEVEL", "INFO")),
	}
}

// loadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load env file", "file", path, "error", err)
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		slog.Warn("invalid integer setting, using default", "key", key, "value", val, "default", defaultVal)
		return defaultVal
	}
	return n
}

func getFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		slog.Warn("invalid float setting, using default", "key", key, "value", val, "default", defaultVal)
		return defaultVal
	}
	return f
}

func getBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		slog.Warn("invalid boolean setting, using default", "key", key, "value", val, "default", defaultVal)
		return defaultVal
	}
	return b
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		slog.Warn("invalid duration setting, using default", "key", key, "value", val, "default", defaultVal)
		return defaultVal
	}
	return d
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
