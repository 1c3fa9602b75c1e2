package registry

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/datacanvas/datacanvas/canvas-agent/internal/catalog"
	"github.com/datacanvas/datacanvas/canvas-agent/internal/vectorstore"
)

// keywordEmbedder produces deterministic vectors: one dimension per
// known keyword, set when the text contains it. Good enough to make
// semantic ordering predictable in tests.
type keywordEmbedder struct {
	keywords []string
	failNext bool
}

func (e *keywordEmbedder) Kind() string    { return "keyword" }
func (e *keywordEmbedder) Dimensions() int { return len(e.keywords) }

func (e *keywordEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if e.failNext {
		e.failNext = false
		return nil, errors.New("embedder down")
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v := make([]float64, len(e.keywords))
		for j, kw := range e.keywords {
			if strings.Contains(strings.ToLower(t), kw) {
				v[j] = 1
			}
		}
		out[i] = v
	}
	return out, nil
}

func (e *keywordEmbedder) HealthCheck(ctx context.Context) error { return nil }

const testDoc = `{
	"host": "petstore.example.com",
	"basePath": "/v2",
	"schemes": ["https"],
	"paths": {
		"/pet/findByStatus": {
			"get": {
				"summary": "Finds pets by status",
				"tags": ["pet"],
				"parameters": [{"name": "status", "in": "query", "type": "string"}]
			}
		},
		"/store/order": {
			"post": {
				"summary": "Place an order",
				"tags": ["store"]
			}
		}
	}
}`

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	embedder := &keywordEmbedder{keywords: []string{"pet", "status", "order", "store"}}
	return New(embedder, vectorstore.NewEmbedded())
}

func loadTestCatalog(t *testing.T, r *Registry) {
	t.Helper()
	c, err := catalog.Parse([]byte(testDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := r.Load(context.Background(), c); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestLoadAndCount(t *testing.T) {
	r := newTestRegistry(t)
	loadTestCatalog(t, r)
	if r.Count() != 2 {
		t.Errorf("count = %d, want 2", r.Count())
	}
}

func TestSearchRanksByRelevance(t *testing.T) {
	r := newTestRegistry(t)
	loadTestCatalog(t, r)

	matches, err := r.Search(context.Background(), "find pets by status", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if matches[0].ID != "GET_/pet/findByStatus" {
		t.Errorf("best match = %s", matches[0].ID)
	}
	if matches[0].RelevanceScore <= matches[1].RelevanceScore {
		t.Errorf("scores not descending: %v, %v", matches[0].RelevanceScore, matches[1].RelevanceScore)
	}
	if matches[0].Method != "GET" || matches[0].Path != "/pet/findByStatus" {
		t.Errorf("match fields = %s %s", matches[0].Method, matches[0].Path)
	}
	if math.IsNaN(matches[0].RelevanceScore) {
		t.Error("score is NaN")
	}
}

func TestGetDetails(t *testing.T) {
	r := newTestRegistry(t)
	loadTestCatalog(t, r)

	d, ok := r.GetDetails("GET_/pet/findByStatus")
	if !ok {
		t.Fatal("details not found")
	}
	if d.FullURL != "https://petstore.example.com/v2/pet/findByStatus" {
		t.Errorf("full URL = %q", d.FullURL)
	}
	if len(d.Parameters) != 1 || d.Parameters[0].Name != "status" {
		t.Errorf("parameters = %v", d.Parameters)
	}

	if _, ok := r.GetDetails("GET_/nope"); ok {
		t.Error("expected miss for unknown id")
	}
}

func TestReloadReplacesIndex(t *testing.T) {
	r := newTestRegistry(t)
	loadTestCatalog(t, r)
	ctx := context.Background()

	second := `{
		"host": "other.example.com",
		"basePath": "/v1",
		"schemes": ["https"],
		"paths": {
			"/users": {
				"get": {"summary": "List users", "tags": ["user"]}
			}
		}
	}`
	c, err := catalog.Parse([]byte(second))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := r.Load(ctx, c); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if r.Count() != 1 {
		t.Errorf("count after reload = %d, want 1", r.Count())
	}
	if _, ok := r.GetDetails("GET_/pet/findByStatus"); ok {
		t.Error("old endpoint still resolvable after reload")
	}

	matches, err := r.Search(ctx, "anything", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, m := range matches {
		if m.ID != "GET_/users" {
			t.Errorf("stale id in search results: %s", m.ID)
		}
	}
}

func TestLoadFailureKeepsOldIndex(t *testing.T) {
	embedder := &keywordEmbedder{keywords: []string{"pet", "status", "order", "store"}}
	r := New(embedder, vectorstore.NewEmbedded())
	loadTestCatalog(t, r)

	embedder.failNext = true
	c, _ := catalog.Parse([]byte(testDoc))
	if err := r.Load(context.Background(), c); err == nil {
		t.Fatal("expected load error")
	}

	// The embed failed before anything was dropped.
	if r.Count() != 2 {
		t.Errorf("count after failed reload = %d, want 2", r.Count())
	}
	if _, err := r.Search(context.Background(), "pets", 1); err != nil {
		t.Errorf("search after failed reload: %v", err)
	}
}
