package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/datacanvas/datacanvas/canvas-agent/internal/config"
	"github.com/datacanvas/datacanvas/canvas-agent/pkg/contracts"
	"github.com/datacanvas/datacanvas/canvas-agent/pkg/models"
)

func init() {
	Register("embedded", func(cfg config.VectorConfig) (contracts.VectorStoreDriver, error) {
		return NewEmbedded(), nil
	})
}

// Embedded is an in-process vector store: brute-force cosine scan over
// per-collection record maps. Suitable for catalogs of a few thousand
// endpoints; use the pgvector driver beyond that.
type Embedded struct {
	mu          sync.RWMutex
	collections map[string]map[string]models.VectorRecord
}

func NewEmbedded() *Embedded {
	return &Embedded{
		collections: make(map[string]map[string]models.VectorRecord),
	}
}

func (e *Embedded) Kind() string { return "embedded" }

func (e *Embedded) EnsureCollection(ctx context.Context, collection string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.collections[collection]; !ok {
		e.collections[collection] = make(map[string]models.VectorRecord)
	}
	return nil
}

func (e *Embedded) DropCollection(ctx context.Context, collection string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.collections, collection)
	return nil
}

func (e *Embedded) Upsert(ctx context.Context, collection string, records []models.VectorRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	coll, ok := e.collections[collection]
	if !ok {
		return fmt.Errorf("embedded: collection %q does not exist", collection)
	}
	for _, r := range records {
		coll[r.ID] = r
	}
	return nil
}

func (e *Embedded) Query(ctx context.Context, collection string, vector []float64, topK int) ([]models.VectorMatch, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	coll, ok := e.collections[collection]
	if !ok {
		return nil, fmt.Errorf("embedded: collection %q does not exist", collection)
	}

	matches := make([]models.VectorMatch, 0, len(coll))
	for _, r := range coll {
		matches = append(matches, models.VectorMatch{
			ID:       r.ID,
			Metadata: r.Metadata,
			Distance: 1 - cosineSimilarity(vector, r.Vector),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].ID < matches[j].ID
	})

	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (e *Embedded) Count(ctx context.Context, collection string) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	coll, ok := e.collections[collection]
	if !ok {
		return 0, nil
	}
	return len(coll), nil
}

func (e *Embedded) HealthCheck(ctx context.Context) error { return nil }

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
