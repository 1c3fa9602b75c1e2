// Package embeddings provides the embedding backends used to index and
// query the endpoint registry. The same driver must serve both indexing
// and querying so vectors live in one space.
package embeddings

import (
	"fmt"

	"github.com/datacanvas/datacanvas/canvas-agent/internal/config"
	"github.com/datacanvas/datacanvas/canvas-agent/pkg/contracts"
)

// New creates the embedding driver named in the configuration.
func New(cfg config.EmbeddingConfig) (contracts.EmbeddingDriver, error) {
	switch cfg.Driver {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("embeddings: OPENAI_API_KEY is required for the openai driver")
		}
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.Model), nil
	case "ollama":
		return NewOllama(cfg.OllamaEndpoint, cfg.Model), nil
	default:
		return nil, fmt.Errorf("embeddings: unknown driver %q (available: openai, ollama)", cfg.Driver)
	}
}
