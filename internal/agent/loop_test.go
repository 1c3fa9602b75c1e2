package agent

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
	"github.com/datacanvas/datacanvas/canvas-agent/internal/memory"
	"github.com/datacanvas/datacanvas/canvas-agent/internal/registry"
	"github.com/datacanvas/datacanvas/canvas-agent/internal/tools"
	"github.com/datacanvas/datacanvas/canvas-agent/internal/vectorstore"
	"github.com/datacanvas/datacanvas/canvas-agent/pkg/models"
)

// scriptedDriver replays a fixed sequence of responses and records what
// it was asked.
type scriptedDriver struct {
	responses []*models.ChatResponse
	requests  []*models.ChatRequest
}

func (d *scriptedDriver) Kind() string { return "scripted" }

func (d *scriptedDriver) Chat(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error) {
	d.requests = append(d.requests, req)
	if len(d.requests) > len(d.responses) {
		return nil, fmt.Errorf("scripted driver exhausted after %d calls", len(d.responses))
	}
	return d.responses[len(d.requests)-1], nil
}

func (d *scriptedDriver) HealthCheck(ctx context.Context) error { return nil }

type testEmbedder struct{}

func (testEmbedder) Kind() string    { return "test" }
func (testEmbedder) Dimensions() int { return 2 }
func (testEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, 0}
	}
	return out, nil
}
func (testEmbedder) HealthCheck(ctx context.Context) error { return nil }

func toolCall(id, name, args string) models.ToolCallResult {
	return models.ToolCallResult{
		ID:   id,
		Type: "function",
		Function: models.ToolCallFunction{
			Name:      name,
			Arguments: args,
		},
	}
}

// newTestAgent wires an agent against an httptest upstream serving a
// one-endpoint pet catalog.
func newTestAgent(t *testing.T, driver *scriptedDriver) (*Agent, *memory.Store) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pet/findByStatus":
			json.NewEncoder(w).Encode([]map[string]interface{}{
				{"name": "Rex", "status": "available"},
				{"name": "Milo", "status": "available"},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message": "nothing here"}`))
		}
	}))
	t.Cleanup(srv.Close)

	doc := fmt.Sprintf(`{
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
			"/missing": {
				"get": {"summary": "Always 404"}
			}
		}
	}`, strings.TrimPrefix(srv.URL, "http://"))

	reg := registry.New(testEmbedder{}, vectorstore.NewEmbedded())
	c, err := catalog.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := reg.Load(context.Background(), c); err != nil {
		t.Fatalf("Load: %v", err)
	}

	store := cache.New(context.Background(), "redis://127.0.0.1:1", 5*time.Minute)
	mem := memory.NewStore(store)
	runner := tools.NewRunner(reg, store)
	return New(driver, runner, mem), mem
}

func TestLoopTerminatesAfterScriptedToolRounds(t *testing.T) {
	driver := &scriptedDriver{responses: []*models.ChatResponse{
		{ToolCalls: []models.ToolCallResult{toolCall("c1", "search_endpoints", `{"query": "pets"}`)}, FinishReason: "tool_calls"},
		{ToolCalls: []models.ToolCallResult{toolCall("c2", "call_api", `{"endpoint_id": "GET_/pet/findByStatus"}`)}, FinishReason: "tool_calls"},
		{Content: "Two pets are available.", FinishReason: "stop"},
	}}
	a, _ := newTestAgent(t, driver)

	text, _ := a.Run(context.Background(), "s1", "show available pets")

	if len(driver.requests) != 3 {
		t.Errorf("reasoning steps = %d, want 3", len(driver.requests))
	}
	if text != "Two pets are available." {
		t.Errorf("text = %q", text)
	}

	// Tool results from both rounds are visible to the final step.
	last := driver.requests[2].Messages
	var toolMsgs int
	for _, m := range last {
		if m.Role == "tool" {
			toolMsgs++
		}
	}
	if toolMsgs != 2 {
		t.Errorf("tool messages in final request = %d, want 2", toolMsgs)
	}
}

func TestEndToEndTableWidget(t *testing.T) {
	driver := &scriptedDriver{responses: []*models.ChatResponse{
		{ToolCalls: []models.ToolCallResult{toolCall("c1", "call_api", `{"endpoint_id": "GET_/pet/findByStatus", "query_params": {"status": "available"}}`)}, FinishReason: "tool_calls"},
		{Content: "Here are the available pets.", FinishReason: "stop"},
	}}
	a, _ := newTestAgent(t, driver)

	text, widgetList := a.Run(context.Background(), "s1", "show available pets")

	if text == "" {
		t.Error("empty final text")
	}
	if len(widgetList) == 0 {
		t.Fatal("no widgets produced")
	}
	w := widgetList[0]
	if w.Component != models.ComponentTable && w.Component != models.ComponentBarChart {
		t.Errorf("component = %q", w.Component)
	}
	if w.Position.Column != 1 {
		t.Errorf("column = %d, want 1", w.Position.Column)
	}
	if w.ID == "" {
		t.Error("widget id missing")
	}
}

func TestUpstreamErrorStaysInConversation(t *testing.T) {
	driver := &scriptedDriver{responses: []*models.ChatResponse{
		{ToolCalls: []models.ToolCallResult{toolCall("c1", "call_api", `{"endpoint_id": "GET_/missing"}`)}, FinishReason: "tool_calls"},
		{Content: "That endpoint had no data.", FinishReason: "stop"},
	}}
	a, _ := newTestAgent(t, driver)

	text, widgetList := a.Run(context.Background(), "s1", "fetch the missing thing")

	if text != "That endpoint had no data." {
		t.Errorf("text = %q", text)
	}
	if len(widgetList) != 0 {
		t.Errorf("error payload produced widgets: %v", widgetList)
	}

	// The 404 became a structured tool message the model could read.
	final := driver.requests[1].Messages
	var sawError bool
	for _, m := range final {
		if m.Role == "tool" && strings.Contains(m.Content, "API returned 404") {
			sawError = true
		}
	}
	if !sawError {
		t.Error("404 error not surfaced as a tool message")
	}
}

func TestPreformattedWidgetPassesThrough(t *testing.T) {
	driver := &scriptedDriver{responses: []*models.ChatResponse{
		{ToolCalls: []models.ToolCallResult{toolCall("c1", "format_for_widget", `{"data": {"a": 1, "b": 2}, "widget_type": "BarChart"}`)}, FinishReason: "tool_calls"},
		{Content: "Chart ready.", FinishReason: "stop"},
	}}
	a, _ := newTestAgent(t, driver)

	_, widgetList := a.Run(context.Background(), "s1", "chart a and b")

	if len(widgetList) != 1 {
		t.Fatalf("widgets = %d, want 1", len(widgetList))
	}
	if widgetList[0].Component != models.ComponentBarChart {
		t.Errorf("component = %q", widgetList[0].Component)
	}
	labels, _ := widgetList[0].Data["labels"].([]interface{})
	if len(labels) != 2 {
		t.Errorf("labels = %v", widgetList[0].Data["labels"])
	}
}

func TestStepCapForcesFormat(t *testing.T) {
	// The driver always requests another tool call; the cap must stop it.
	responses := make([]*models.ChatResponse, DefaultMaxSteps)
	for i := range responses {
		responses[i] = &models.ChatResponse{
			ToolCalls:    []models.ToolCallResult{toolCall(fmt.Sprintf("c%d", i), "search_endpoints", `{"query": "pets"}`)},
			FinishReason: "tool_calls",
		}
	}
	driver := &scriptedDriver{responses: responses}
	a, _ := newTestAgent(t, driver)

	text, _ := a.Run(context.Background(), "s1", "loop forever")

	if len(driver.requests) != DefaultMaxSteps {
		t.Errorf("reasoning steps = %d, want %d", len(driver.requests), DefaultMaxSteps)
	}
	if text != fallbackResponse {
		t.Errorf("text = %q, want fallback", text)
	}
}

func TestTurnPersistedToMemory(t *testing.T) {
	driver := &scriptedDriver{responses: []*models.ChatResponse{
		{Content: "Hello.", FinishReason: "stop"},
	}}
	a, mem := newTestAgent(t, driver)

	a.Run(context.Background(), "s1", "hi")

	history, err := mem.History(context.Background(), "s1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].User != "hi" || history[0].Assistant != "Hello." {
		t.Errorf("history = %v", history)
	}
}

func TestHistorySeedsNextInvocation(t *testing.T) {
	driver := &scriptedDriver{responses: []*models.ChatResponse{
		{Content: "First answer.", FinishReason: "stop"},
		{Content: "Second answer.", FinishReason: "stop"},
	}}
	a, _ := newTestAgent(t, driver)
	ctx := context.Background()

	a.Run(ctx, "s1", "first question")
	a.Run(ctx, "s1", "second question")

	msgs := driver.requests[1].Messages
	if msgs[0].Role != "system" {
		t.Fatalf("first message role = %s", msgs[0].Role)
	}
	if msgs[1].Role != "user" || msgs[1].Content != "first question" {
		t.Errorf("history not rehydrated: %+v", msgs[1])
	}
	if msgs[2].Role != "assistant" || msgs[2].Content != "First answer." {
		t.Errorf("history not rehydrated: %+v", msgs[2])
	}
	if msgs[3].Content != "second question" {
		t.Errorf("new user message = %+v", msgs[3])
	}
}

func TestDriverFailureReturnsApology(t *testing.T) {
	driver := &scriptedDriver{responses: nil} // first Chat call errors
	a, mem := newTestAgent(t, driver)

	text, widgetList := a.Run(context.Background(), "s1", "hi")
	if text != errorResponse {
		t.Errorf("text = %q", text)
	}
	if len(widgetList) != 0 {
		t.Errorf("widgets = %v", widgetList)
	}

	history, _ := mem.History(context.Background(), "s1")
	if len(history) != 0 {
		t.Errorf("failed invocation persisted a turn: %v", history)
	}
}

func TestCancelledInvocationSkipsMemoryWrite(t *testing.T) {
	driver := &scriptedDriver{responses: []*models.ChatResponse{
		{Content: "Answer.", FinishReason: "stop"},
	}}
	a, mem := newTestAgent(t, driver)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a.Run(ctx, "s1", "hi")

	history, _ := mem.History(context.Background(), "s1")
	if len(history) != 0 {
		t.Errorf("cancelled invocation persisted a turn: %v", history)
	}
}
