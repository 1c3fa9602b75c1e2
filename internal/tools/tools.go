// Package tools exposes the four operations the reasoning loop can
// invoke: endpoint search, schema lookup, API invocation, and widget
// formatting. Every tool returns a result object, never a Go error, so
// failures stay inside the conversation for the model to react to.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/datacanvas/datacanvas/canvas-agent/internal/cache"
	"github.com/datacanvas/datacanvas/canvas-agent/internal/registry"
	"github.com/datacanvas/datacanvas/canvas-agent/internal/widgets"
	"github.com/datacanvas/datacanvas/canvas-agent/pkg/models"
)

const (
	// apiTimeout bounds one outbound API call. A timeout surfaces as a
	// tool-level error result.
	apiTimeout = 10 * time.Second

	// errorBodyLimit truncates upstream error bodies before they enter
	// the conversation.
	errorBodyLimit = 200

	searchHint = "Use get_endpoint_schema to inspect parameters before calling, then call_api to fetch data."
)

// Runner executes tool calls against the registry and cache.
type Runner struct {
	registry *registry.Registry
	cache    *cache.Cache
	client   *http.Client
}

func NewRunner(reg *registry.Registry, c *cache.Cache) *Runner {
	return &Runner{
		registry: reg,
		cache:    c,
		client:   &http.Client{Timeout: apiTimeout},
	}
}

// Definitions returns the tool catalog declared to the reasoning
// backend, in OpenAI function-calling shape.
func (r *Runner) Definitions() []models.ToolDefinition {
	return []models.ToolDefinition{
		{
			Type: "function",
			Function: models.ToolFunction{
				Name:        "search_endpoints",
				Description: "Search the API catalog for endpoints matching a natural-language query.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"query": map[string]interface{}{
							"type":        "string",
							"description": "What data or operation you are looking for.",
						},
						"top_k": map[string]interface{}{
							"type":        "integer",
							"description": "How many results to return (default 5).",
						},
					},
					"required": []string{"query"},
				},
			},
		},
		{
			Type: "function",
			Function: models.ToolFunction{
				Name:        "get_endpoint_schema",
				Description: "Get the full schema for an endpoint: URL, method, and required parameters.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"endpoint_id": map[string]interface{}{
							"type":        "string",
							"description": "Endpoint id from search_endpoints, e.g. GET_/pet/findByStatus.",
						},
					},
					"required": []string{"endpoint_id"},
				},
			},
		},
		{
			Type: "function",
			Function: models.ToolFunction{
				Name:        "call_api",
				Description: "Call an API endpoint and return its JSON response. Responses are cached.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"endpoint_id": map[string]interface{}{
							"type":        "string",
							"description": "Endpoint id to call.",
						},
						"path_params": map[string]interface{}{
							"type":        "object",
							"description": "Values for {placeholders} in the path.",
						},
						"query_params": map[string]interface{}{
							"type":        "object",
							"description": "Query string parameters.",
						},
					},
					"required": []string{"endpoint_id"},
				},
			},
		},
		{
			Type: "function",
			Function: models.ToolFunction{
				Name:        "format_for_widget",
				Description: "Format API data as a canvas widget. Types: Table, BarChart, LineChart, PieChart, MetricCard.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"data": map[string]interface{}{
							"description": "The data to visualize.",
						},
						"widget_type": map[string]interface{}{
							"type":        "string",
							"enum":        []string{models.ComponentTable, models.ComponentBarChart, models.ComponentLineChart, models.ComponentPieChart, models.ComponentMetricCard},
							"description": "Which component to render.",
						},
						"config": map[string]interface{}{
							"type":        "object",
							"description": "Optional component settings, e.g. value_field, label_field, title.",
						},
					},
					"required": []string{"data", "widget_type"},
				},
			},
		},
	}
}

// Execute dispatches one tool call. The arguments string is the raw
// JSON from the model; malformed input becomes an error result.
func (r *Runner) Execute(ctx context.Context, name, arguments string) map[string]interface{} {
	var args map[string]interface{}
	if arguments != "" {
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return errResult(fmt.Sprintf("invalid tool arguments: %v", err))
		}
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	switch name {
	case "search_endpoints":
		return r.searchEndpoints(ctx, args)
	case "get_endpoint_schema":
		return r.getEndpointSchema(args)
	case "call_api":
		return r.callAPI(ctx, args)
	case "format_for_widget":
		return r.formatForWidget(args)
	default:
		return errResult(fmt.Sprintf("unknown tool %q", name))
	}
}

func errResult(msg string) map[string]interface{} {
	return map[string]interface{}{"error": msg}
}

func (r *Runner) searchEndpoints(ctx context.Context, args map[string]interface{}) map[string]interface{} {
	query, _ := args["query"].(string)
	if query == "" {
		return errResult("search_endpoints requires a query")
	}
	topK := 5
	if k, ok := args["top_k"].(float64); ok && k > 0 {
		topK = int(k)
	}

	matches, err := r.registry.Search(ctx, query, topK)
	if err != nil {
		return errResult(fmt.Sprintf("search failed: %v", err))
	}
	return map[string]interface{}{
		"results": matches,
		"hint":    searchHint,
	}
}

func (r *Runner) getEndpointSchema(args map[string]interface{}) map[string]interface{} {
	id, _ := args["endpoint_id"].(string)
	details, ok := r.registry.GetDetails(id)
	if !ok {
		return errResult(fmt.Sprintf("endpoint %q not found; use search_endpoints first", id))
	}
	return map[string]interface{}{
		"endpoint": details,
	}
}

func (r *Runner) callAPI(ctx context.Context, args map[string]interface{}) map[string]interface{} {
	id, _ := args["endpoint_id"].(string)
	details, ok := r.registry.GetDetails(id)
	if !ok {
		return errResult(fmt.Sprintf("endpoint %q not found; use search_endpoints first", id))
	}

	pathParams, _ := args["path_params"].(map[string]interface{})
	queryParams, _ := args["query_params"].(map[string]interface{})

	combined := make(map[string]interface{}, len(pathParams)+len(queryParams))
	for k, v := range pathParams {
		combined[k] = v
	}
	for k, v := range queryParams {
		combined[k] = v
	}
	cacheKey := cache.Key("api", id, cache.HashParams(combined))

	var cached interface{}
	if hit, err := r.cache.GetInto(ctx, cacheKey, &cached); err == nil && hit {
		return map[string]interface{}{"data": cached, "cached": true}
	}

	// Unresolved placeholders stay verbatim, which the upstream API will
	// reject; that failure tells the model a required parameter is missing.
	callURL := details.FullURL
	for k, v := range pathParams {
		callURL = strings.ReplaceAll(callURL, "{"+k+"}", fmt.Sprintf("%v", v))
	}

	if len(queryParams) > 0 {
		q := url.Values{}
		for k, v := range queryParams {
			q.Set(k, fmt.Sprintf("%v", v))
		}
		sep := "?"
		if strings.Contains(callURL, "?") {
			sep = "&"
		}
		callURL += sep + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, details.Method, callURL, nil)
	if err != nil {
		return errResult(fmt.Sprintf("invalid request: %v", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return errResult(fmt.Sprintf("API call failed: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errResult(fmt.Sprintf("read response: %v", err))
	}

	if resp.StatusCode >= 400 {
		msg := string(body)
		if len(msg) > errorBodyLimit {
			msg = msg[:errorBodyLimit]
		}
		return map[string]interface{}{
			"error":   fmt.Sprintf("API returned %d", resp.StatusCode),
			"message": msg,
		}
	}

	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		data = string(body)
	}

	if err := r.cache.Set(ctx, cacheKey, data, 0); err != nil {
		log.Warn().Err(err).Str("key", cacheKey).Msg("failed to cache API response")
	}
	return map[string]interface{}{"data": data, "cached": false}
}

func (r *Runner) formatForWidget(args map[string]interface{}) map[string]interface{} {
	widgetType, _ := args["widget_type"].(string)
	config, _ := args["config"].(map[string]interface{})
	data, ok := args["data"]
	if !ok {
		return errResult("format_for_widget requires data")
	}
	return widgets.Format(widgetType, data, config)
}
