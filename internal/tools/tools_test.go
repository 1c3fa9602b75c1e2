package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/datacanvas/datacanvas/canvas-agent/internal/cache"
	"github.com/datacanvas/datacanvas/canvas-agent/internal/catalog"
	"github.com/datacanvas/datacanvas/canvas-agent/internal/registry"
	"github.com/datacanvas/datacanvas/canvas-agent/internal/vectorstore"
	"github.com/datacanvas/datacanvas/canvas-agent/pkg/models"
)

// unitEmbedder returns the same unit vector for every text, which is
// enough for tools tests that never rank results.
type unitEmbedder struct{}

func (unitEmbedder) Kind() string    { return "unit" }
func (unitEmbedder) Dimensions() int { return 2 }
func (unitEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, 0}
	}
	return out, nil
}
func (unitEmbedder) HealthCheck(ctx context.Context) error { return nil }

func catalogDocFor(baseURL string) string {
	u := strings.TrimPrefix(baseURL, "http://")
	return fmt.Sprintf(`{
		"host": "%s",
		"basePath": "",
		"schemes": ["http"],
		"paths": {
			"/pet/findByStatus": {
				"get": {
					"summary": "Finds pets by status",
					"parameters": [{"name": "status", "in": "query", "type": "string"}]
				}
			},
			"/pet/{petId}": {
				"get": {
					"summary": "Find pet by ID",
					"parameters": [{"name": "petId", "in": "path", "required": true, "type": "integer"}]
				}
			},
			"/missing": {
				"get": {"summary": "Always 404"}
			}
		}
	}`, u)
}

func newTestRunner(t *testing.T, upstream *httptest.Server) *Runner {
	t.Helper()
	reg := registry.New(unitEmbedder{}, vectorstore.NewEmbedded())
	c, err := catalog.Parse([]byte(catalogDocFor(upstream.URL)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := reg.Load(context.Background(), c); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return NewRunner(reg, cache.New(context.Background(), "redis://127.0.0.1:1", 5*time.Minute))
}

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/pet/findByStatus":
			json.NewEncoder(w).Encode([]map[string]interface{}{
				{"name": "Rex", "status": r.URL.Query().Get("status")},
			})
		case strings.HasPrefix(r.URL.Path, "/pet/"):
			json.NewEncoder(w).Encode(map[string]interface{}{"id": 7, "name": "Rex"})
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message": "no such resource"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDefinitions(t *testing.T) {
	srv := newUpstream(t)
	r := newTestRunner(t, srv)

	defs := r.Definitions()
	if len(defs) != 4 {
		t.Fatalf("got %d tool definitions, want 4", len(defs))
	}
	names := map[string]bool{}
	for _, d := range defs {
		if d.Type != "function" {
			t.Errorf("definition type = %q", d.Type)
		}
		names[d.Function.Name] = true
	}
	for _, want := range []string{"search_endpoints", "get_endpoint_schema", "call_api", "format_for_widget"} {
		if !names[want] {
			t.Errorf("missing tool %q", want)
		}
	}
}

func TestSearchEndpoints(t *testing.T) {
	srv := newUpstream(t)
	r := newTestRunner(t, srv)

	result := r.Execute(context.Background(), "search_endpoints", `{"query": "pets by status"}`)
	if _, ok := result["error"]; ok {
		t.Fatalf("unexpected error: %v", result)
	}
	matches := result["results"].([]models.EndpointMatch)
	if len(matches) == 0 {
		t.Fatal("no results")
	}
	if result["hint"] == "" {
		t.Error("hint missing")
	}
}

func TestGetEndpointSchema(t *testing.T) {
	srv := newUpstream(t)
	r := newTestRunner(t, srv)

	result := r.Execute(context.Background(), "get_endpoint_schema", `{"endpoint_id": "GET_/pet/{petId}"}`)
	details, ok := result["endpoint"].(*models.EndpointDetails)
	if !ok {
		t.Fatalf("result = %v", result)
	}
	if details.Method != "GET" || len(details.Parameters) != 1 {
		t.Errorf("details = %+v", details)
	}

	miss := r.Execute(context.Background(), "get_endpoint_schema", `{"endpoint_id": "GET_/nope"}`)
	if _, ok := miss["error"]; !ok {
		t.Errorf("expected error result for unknown id, got %v", miss)
	}
}

func TestCallAPIQueryParamsAndCaching(t *testing.T) {
	srv := newUpstream(t)
	r := newTestRunner(t, srv)
	ctx := context.Background()

	args := `{"endpoint_id": "GET_/pet/findByStatus", "query_params": {"status": "available"}}`
	result := r.Execute(ctx, "call_api", args)
	if result["cached"] != false {
		t.Fatalf("first call = %v", result)
	}
	rows := result["data"].([]interface{})
	if rows[0].(map[string]interface{})["status"] != "available" {
		t.Errorf("query param not passed through: %v", rows)
	}

	again := r.Execute(ctx, "call_api", args)
	if again["cached"] != true {
		t.Errorf("second call not cached: %v", again)
	}

	// Different params miss the cache.
	other := r.Execute(ctx, "call_api", `{"endpoint_id": "GET_/pet/findByStatus", "query_params": {"status": "sold"}}`)
	if other["cached"] != false {
		t.Errorf("different params hit the cache: %v", other)
	}
}

func TestCallAPIPathParams(t *testing.T) {
	srv := newUpstream(t)
	r := newTestRunner(t, srv)

	result := r.Execute(context.Background(), "call_api", `{"endpoint_id": "GET_/pet/{petId}", "path_params": {"petId": 7}}`)
	if _, ok := result["error"]; ok {
		t.Fatalf("unexpected error: %v", result)
	}
	pet := result["data"].(map[string]interface{})
	if pet["name"] != "Rex" {
		t.Errorf("data = %v", pet)
	}
}

func TestCallAPIUpstreamError(t *testing.T) {
	srv := newUpstream(t)
	r := newTestRunner(t, srv)

	result := r.Execute(context.Background(), "call_api", `{"endpoint_id": "GET_/missing"}`)
	if result["error"] != "API returned 404" {
		t.Errorf("error = %v", result["error"])
	}
	msg, _ := result["message"].(string)
	if !strings.Contains(msg, "no such resource") {
		t.Errorf("message = %q", msg)
	}

	// Errors are not cached; a retry hits upstream again.
	again := r.Execute(context.Background(), "call_api", `{"endpoint_id": "GET_/missing"}`)
	if _, ok := again["cached"]; ok {
		t.Errorf("error result was cached: %v", again)
	}
}

func TestCallAPIUnknownEndpoint(t *testing.T) {
	srv := newUpstream(t)
	r := newTestRunner(t, srv)

	result := r.Execute(context.Background(), "call_api", `{"endpoint_id": "DELETE_/nope"}`)
	if _, ok := result["error"]; !ok {
		t.Errorf("expected error result, got %v", result)
	}
}

func TestFormatForWidget(t *testing.T) {
	srv := newUpstream(t)
	r := newTestRunner(t, srv)

	result := r.Execute(context.Background(), "format_for_widget", `{"data": {"a": 1, "b": 2}, "widget_type": "BarChart"}`)
	if result["component"] != models.ComponentBarChart {
		t.Fatalf("result = %v", result)
	}
}

func TestExecuteMalformedArguments(t *testing.T) {
	srv := newUpstream(t)
	r := newTestRunner(t, srv)

	result := r.Execute(context.Background(), "call_api", `{"endpoint_id": `)
	if _, ok := result["error"]; !ok {
		t.Errorf("expected error result, got %v", result)
	}
	unknown := r.Execute(context.Background(), "teleport", `{}`)
	if _, ok := unknown["error"]; !ok {
		t.Errorf("expected error result for unknown tool, got %v", unknown)
	}
}
