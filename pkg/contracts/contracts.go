// Package contracts defines the interfaces for the canvas-agent's swappable
// infrastructure: the reasoning backend, the embedding backend, and the
// vector store. The control loop and registry depend only on these
// interfaces, so backends can be exchanged without touching the state
// machine or the indexing logic, and tests can substitute scripted fakes.
package contracts

import (
	"context"

	"github.com/datacanvas/datacanvas/canvas-agent/pkg/models"
)

// ── Chat Driver ─────────────────────────────────────────────

// ChatDriver is the reasoning backend: it takes an ordered message
// sequence plus a tool catalog and returns either text or one-or-more
// structured tool-call requests.
type ChatDriver interface {
	// Kind returns the provider identifier (e.g. "openai", "anthropic").
	Kind() string

	// Chat sends one reasoning-step request.
	Chat(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error)

	// HealthCheck verifies the provider is reachable.
	HealthCheck(ctx context.Context) error
}

// ── Embedding Driver ────────────────────────────────────────

// EmbeddingDriver turns text into fixed-length vectors. The same driver
// is used for indexing and for querying.
type EmbeddingDriver interface {
	// Kind returns the driver identifier (e.g. "openai", "ollama").
	Kind() string

	// Dimensions returns the vector length this driver produces.
	Dimensions() int

	// Embed generates vectors for a batch of texts, in input order.
	Embed(ctx context.Context, texts []string) ([][]float64, error)

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error
}

// ── Vector Store Driver ─────────────────────────────────────

// VectorStoreDriver is a collection-scoped vector index. Collections can
// be dropped and recreated wholesale, which is how the endpoint registry
// achieves all-or-nothing reloads.
type VectorStoreDriver interface {
	// Kind returns the driver identifier (e.g. "embedded", "pgvector").
	Kind() string

	// EnsureCollection creates the collection if it does not exist.
	EnsureCollection(ctx context.Context, collection string) error

	// DropCollection removes the collection and all its records.
	// Dropping a collection that does not exist is not an error.
	DropCollection(ctx context.Context, collection string) error

	// Upsert inserts or replaces records in the collection.
	Upsert(ctx context.Context, collection string, records []models.VectorRecord) error

	// Query returns the topK nearest records by the driver's distance
	// metric, closest first.
	Query(ctx context.Context, collection string, vector []float64, topK int) ([]models.VectorMatch, error)

	// Count returns the number of records in the collection.
	Count(ctx context.Context, collection string) (int, error)

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error
}
