// Package models defines the core data types for the canvas-agent server:
// the parsed API catalog, chat/tool-calling wire types, conversation turns,
// and the widget format consumed by the canvas frontend.
package models

import (
	"strings"
	"time"
)

// ── API Catalog ──────────────────────────────────────────────

// EndpointParameter is one declared parameter of an API operation.
// Immutable once parsed.
type EndpointParameter struct {
	Name        string `json:"name"`
	Location    string `json:"in"` // path, query, body, header
	Required    bool   `json:"required"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Endpoint is a single callable API operation parsed from an
// OpenAPI/Swagger document. The ID is deterministic: "<VERB>_<path>",
// e.g. "GET_/pet/{petId}".
type Endpoint struct {
	ID             string                 `json:"id"`
	Path           string                 `json:"path"`
	Method         string                 `json:"method"`
	Summary        string                 `json:"summary"`
	Description    string                 `json:"description"`
	Tags           []string               `json:"tags,omitempty"`
	Parameters     []EndpointParameter    `json:"parameters,omitempty"`
	ResponseSchema map[string]interface{} `json:"response_schema,omitempty"`
}

// SearchText flattens the endpoint into the text that gets embedded for
// semantic search.
func (e *Endpoint) SearchText() string {
	names := make([]string, len(e.Parameters))
	for i, p := range e.Parameters {
		names[i] = p.Name
	}
	return e.Summary + ". " + e.Description +
		". Tags: " + strings.Join(e.Tags, ", ") +
		". Parameters: " + strings.Join(names, ", ") +
		". Path: " + e.Path
}

// EndpointMatch is one semantic search hit.
type EndpointMatch struct {
	ID             string  `json:"id"`
	Path           string  `json:"path"`
	Method         string  `json:"method"`
	Summary        string  `json:"summary"`
	RelevanceScore float64 `json:"relevance_score"`
}

// EndpointDetails is the ready-to-call descriptor for an endpoint:
// the full resolved URL plus the parameter specs the caller must satisfy.
type EndpointDetails struct {
	ID          string              `json:"id"`
	Path        string              `json:"path"`
	Method      string              `json:"method"`
	Summary     string              `json:"summary"`
	Description string              `json:"description"`
	Tags        []string            `json:"tags,omitempty"`
	FullURL     string              `json:"full_url"`
	Parameters  []EndpointParameter `json:"parameters"`
}

// ── Vector Index ─────────────────────────────────────────────

// VectorRecord is one indexed document in a vector collection.
type VectorRecord struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Vector   []float64         `json:"vector"`
}

// VectorMatch is a nearest-neighbor query result. Distance semantics are
// driver-defined (cosine distance for the shipped drivers).
type VectorMatch struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Distance float64           `json:"distance"`
}

// ── Chat & Tool Calling ──────────────────────────────────────

type ChatMessage struct {
	Role       string           `json:"role"` // system, user, assistant, tool
	Content    string           `json:"content"`
	ToolCalls  []ToolCallResult `json:"tool_calls,omitempty"`   // assistant messages requesting tools
	ToolCallID string           `json:"tool_call_id,omitempty"` // tool result messages
	Name       string           `json:"name,omitempty"`         // tool name for tool messages
}

// ToolDefinition describes a tool the LLM can call.
type ToolDefinition struct {
	Type     string       `json:"type"` // "function"
	Function ToolFunction `json:"function"`
}

// ToolFunction describes a callable function for tool-use.
type ToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"` // JSON Schema
}

// ToolCallResult is a structured tool call returned by the LLM.
type ToolCallResult struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"` // "function"
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction carries the requested function name and its arguments
// as a JSON-encoded string, matching the OpenAI wire format.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatRequest is one reasoning-step request to a chat driver.
type ChatRequest struct {
	Model       string           `json:"model,omitempty"`
	Messages    []ChatMessage    `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
}

// ChatResponse is the driver-normalized reply: text content and/or
// structured tool calls.
type ChatResponse struct {
	ID           string           `json:"id"`
	Provider     string           `json:"provider"`
	Model        string           `json:"model"`
	Content      string           `json:"content"`
	ToolCalls    []ToolCallResult `json:"tool_calls,omitempty"`
	FinishReason string           `json:"finish_reason,omitempty"` // "stop", "tool_calls", "length"
	Usage        TokenUsage       `json:"usage"`
	LatencyMs    int64            `json:"latency_ms"`
}

type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// ── Widgets ──────────────────────────────────────────────────

// Widget component kinds understood by the canvas frontend.
const (
	ComponentTable      = "Table"
	ComponentBarChart   = "BarChart"
	ComponentLineChart  = "LineChart"
	ComponentPieChart   = "PieChart"
	ComponentMetricCard = "MetricCard"
)

// WidgetPosition places a widget on the 12-column canvas grid.
type WidgetPosition struct {
	Column int `json:"column"` // 1-12
	Row    int `json:"row"`    // >= 1
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Widget is one renderable visualization unit. This is a wire contract
// consumed by the frontend; field names must not change.
type Widget struct {
	ID        string                 `json:"id"`
	Component string                 `json:"component"`
	Position  WidgetPosition         `json:"position"`
	Data      map[string]interface{} `json:"data"`
	Config    map[string]interface{} `json:"config"`
}

// ── Conversation ─────────────────────────────────────────────

// Turn is one completed (user, assistant, widgets) exchange in a session.
type Turn struct {
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
	Widgets   []Widget  `json:"widgets"`
	Timestamp time.Time `json:"timestamp"`
}

// ── HTTP Surface ─────────────────────────────────────────────

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// QueryResponse is the canvas payload returned for a query.
type QueryResponse struct {
	Message string   `json:"message"`
	Widgets []Widget `json:"widgets"`
}

// SessionHistoryResponse is returned by GET /api/sessions/{id}.
type SessionHistoryResponse struct {
	SessionID string `json:"session_id"`
	History   []Turn `json:"history"`
}
