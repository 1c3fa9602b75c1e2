// Package llm provides the chat drivers behind the agent loop. Each
// driver speaks one provider's wire protocol and normalizes replies,
// including structured tool calls, into models.ChatResponse.
package llm

import (
	"fmt"

	"github.com/datacanvas/datacanvas/canvas-agent/internal/config"
	"github.com/datacanvas/datacanvas/canvas-agent/pkg/contracts"
)

// New creates the chat driver named in the configuration.
func New(cfg config.LLMConfig) (contracts.ChatDriver, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("llm: OPENAI_API_KEY is required for the openai provider")
		}
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("llm: ANTHROPIC_API_KEY is required for the anthropic provider")
		}
		return NewAnthropic(cfg.AnthropicAPIKey, cfg.AnthropicModel), nil
	case "ollama":
		return NewOllama(cfg.OllamaEndpoint, cfg.OllamaModel), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q (available: openai, anthropic, ollama)", cfg.Provider)
	}
}
