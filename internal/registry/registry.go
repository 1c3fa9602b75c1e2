// Package registry is the semantic index over the API catalog: it embeds
// every endpoint's search text into a vector collection and answers
// natural-language lookups with scored matches.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/datacanvas/datacanvas/canvas-agent/internal/catalog"
	"github.com/datacanvas/datacanvas/canvas-agent/pkg/contracts"
	"github.com/datacanvas/datacanvas/canvas-agent/pkg/models"
)

// Collection is the vector collection holding endpoint embeddings.
const Collection = "api_endpoints"

// Registry maps natural-language queries to catalog endpoints. Search
// goes through the vector store; details come from an in-memory map
// kept in lockstep with the index.
type Registry struct {
	embedder contracts.EmbeddingDriver
	store    contracts.VectorStoreDriver

	mu        sync.RWMutex
	endpoints map[string]models.EndpointDetails
}

func New(embedder contracts.EmbeddingDriver, store contracts.VectorStoreDriver) *Registry {
	return &Registry{
		embedder:  embedder,
		store:     store,
		endpoints: make(map[string]models.EndpointDetails),
	}
}

// Load replaces the index with the catalog's endpoints. Embeddings are
// computed before the old collection is dropped, so a failing embed
// leaves the previous index intact. A failure after the drop clears the
// detail map so search and details never disagree.
func (r *Registry) Load(ctx context.Context, c *catalog.Catalog) error {
	texts := make([]string, len(c.Endpoints))
	for i := range c.Endpoints {
		texts[i] = c.Endpoints[i].SearchText()
	}

	vectors, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("registry: embed endpoints: %w", err)
	}
	if len(vectors) != len(c.Endpoints) {
		return fmt.Errorf("registry: got %d vectors for %d endpoints", len(vectors), len(c.Endpoints))
	}

	records := make([]models.VectorRecord, len(c.Endpoints))
	details := make(map[string]models.EndpointDetails, len(c.Endpoints))
	for i, ep := range c.Endpoints {
		records[i] = models.VectorRecord{
			ID:      ep.ID,
			Content: texts[i],
			Metadata: map[string]string{
				"path":    ep.Path,
				"method":  ep.Method,
				"summary": ep.Summary,
			},
			Vector: vectors[i],
		}
		params := ep.Parameters
		if params == nil {
			params = []models.EndpointParameter{}
		}
		details[ep.ID] = models.EndpointDetails{
			ID:          ep.ID,
			Path:        ep.Path,
			Method:      ep.Method,
			Summary:     ep.Summary,
			Description: ep.Description,
			Tags:        ep.Tags,
			FullURL:     c.FullURL(&c.Endpoints[i]),
			Parameters:  params,
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.DropCollection(ctx, Collection); err != nil {
		return fmt.Errorf("registry: drop collection: %w", err)
	}
	if err := r.store.EnsureCollection(ctx, Collection); err != nil {
		r.endpoints = make(map[string]models.EndpointDetails)
		return fmt.Errorf("registry: ensure collection: %w", err)
	}
	if err := r.store.Upsert(ctx, Collection, records); err != nil {
		r.endpoints = make(map[string]models.EndpointDetails)
		return fmt.Errorf("registry: index endpoints: %w", err)
	}

	r.endpoints = details
	log.Info().Int("endpoints", len(details)).Msg("endpoint registry loaded")
	return nil
}

// Search returns the topK endpoints most relevant to the query, best
// first. Relevance is 1 minus the store's cosine distance.
func (r *Registry) Search(ctx context.Context, query string, topK int) ([]models.EndpointMatch, error) {
	// An unloaded or cleared registry answers with no results, not an
	// error; the reasoning loop handles emptiness conversationally.
	if r.Count() == 0 {
		return []models.EndpointMatch{}, nil
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("registry: embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("registry: got %d vectors for query", len(vectors))
	}

	hits, err := r.store.Query(ctx, Collection, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("registry: query index: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := make([]models.EndpointMatch, 0, len(hits))
	for _, h := range hits {
		m := models.EndpointMatch{
			ID:             h.ID,
			RelevanceScore: 1 - h.Distance,
		}
		if d, ok := r.endpoints[h.ID]; ok {
			m.Path = d.Path
			m.Method = d.Method
			m.Summary = d.Summary
		} else {
			m.Path = h.Metadata["path"]
			m.Method = h.Metadata["method"]
			m.Summary = h.Metadata["summary"]
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// GetDetails returns the ready-to-call descriptor for an endpoint ID.
func (r *Registry) GetDetails(id string) (*models.EndpointDetails, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.endpoints[id]
	if !ok {
		return nil, false
	}
	return &d, true
}

// Count returns the number of indexed endpoints.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.endpoints)
}
