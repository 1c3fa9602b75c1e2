package config

import (
	"os"
	"strconv"
)

// Config holds all configuration for the canvas-agent server.
type Config struct {
	Port      int
	Version   string
	LLM       LLMConfig
	Embedding EmbeddingConfig
	Vector    VectorConfig
	Redis     RedisConfig
	Swagger   SwaggerConfig
	Frontend  FrontendConfig
	Telemetry TelemetryConfig
}

type LLMConfig struct {
	Provider string // openai | anthropic | ollama

	OpenAIAPIKey string
	OpenAIModel  string

	AnthropicAPIKey string
	AnthropicModel  string

	OllamaEndpoint string
	OllamaModel    string
}

type EmbeddingConfig struct {
	Driver string // openai | ollama
	Model  string

	OpenAIAPIKey   string
	OllamaEndpoint string
}

type VectorConfig struct {
	Driver      string // embedded | pgvector
	PgvectorURL string
}

type RedisConfig struct {
	URL        string
	DefaultTTL int // seconds
}

type SwaggerConfig struct {
	URL string
}

type FrontendConfig struct {
	Origin string
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	openAIKey := envStr("OPENAI_API_KEY", "")
	return &Config{
		Port:    envInt("CANVAS_PORT", 8000),
		Version: envStr("CANVAS_VERSION", "0.2.0"),
		LLM: LLMConfig{
			Provider:        envStr("CANVAS_LLM_PROVIDER", "openai"),
			OpenAIAPIKey:    openAIKey,
			OpenAIModel:     envStr("CANVAS_OPENAI_MODEL", "gpt-4o"),
			AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
			AnthropicModel:  envStr("CANVAS_ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
			OllamaEndpoint:  envStr("CANVAS_OLLAMA_ENDPOINT", "http://localhost:11434"),
			OllamaModel:     envStr("CANVAS_OLLAMA_MODEL", "llama3.1"),
		},
		Embedding: EmbeddingConfig{
			Driver:         envStr("CANVAS_EMBEDDING_DRIVER", "openai"),
			Model:          envStr("CANVAS_EMBEDDING_MODEL", "text-embedding-3-small"),
			OpenAIAPIKey:   openAIKey,
			OllamaEndpoint: envStr("CANVAS_OLLAMA_ENDPOINT", "http://localhost:11434"),
		},
		Vector: VectorConfig{
			Driver:      envStr("CANVAS_VECTOR_DRIVER", "embedded"),
			PgvectorURL: envStr("CANVAS_PGVECTOR_URL", ""),
		},
		Redis: RedisConfig{
			URL:        envStr("REDIS_URL", "redis://localhost:6379"),
			DefaultTTL: envInt("CANVAS_CACHE_TTL", 300),
		},
		Swagger: SwaggerConfig{
			URL: envStr("SWAGGER_URL", "https://petstore.swagger.io/v2/swagger.json"),
		},
		Frontend: FrontendConfig{
			Origin: envStr("CANVAS_FRONTEND_URL", "http://localhost:3000"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "canvas-agent"),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
