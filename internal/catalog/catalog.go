// Package catalog parses OpenAPI/Swagger documents into the normalized
// endpoint list the registry indexes. A load is all-or-nothing: any fetch
// or parse failure surfaces as an error and leaves no partial catalog.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/datacanvas/datacanvas/canvas-agent/pkg/models"
)

// supportedVerbs are the path keys treated as operations. Anything else
// under a path (shared "parameters" blocks etc.) is ignored.
var supportedVerbs = map[string]bool{
	"get": true, "post": true, "put": true, "delete": true, "patch": true,
}

// Catalog is the parsed form of one API document.
type Catalog struct {
	Endpoints []models.Endpoint
	BaseURL   string
}

// Load fetches a Swagger/OpenAPI JSON document over HTTP and parses it.
func Load(ctx context.Context, source string) (*Catalog, error) {
	client := &http.Client{Timeout: 30 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: fetch %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog: fetch %s: status %d", source, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("catalog: read body: %w", err)
	}
	return Parse(body)
}

// Parse extracts endpoints and the base URL from a raw document.
func Parse(doc []byte) (*Catalog, error) {
	var spec struct {
		Host     string                                `json:"host"`
		BasePath string                                `json:"basePath"`
		Schemes  []string                              `json:"schemes"`
		Paths    map[string]map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal(doc, &spec); err != nil {
		return nil, fmt.Errorf("catalog: parse document: %w", err)
	}

	scheme := "https"
	if len(spec.Schemes) > 0 {
		scheme = spec.Schemes[0]
	}

	c := &Catalog{
		BaseURL: scheme + "://" + spec.Host + spec.BasePath,
	}

	// Sort paths so reloads produce a stable endpoint order.
	paths := make([]string, 0, len(spec.Paths))
	for p := range spec.Paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		verbs := make([]string, 0, len(spec.Paths[path]))
		for v := range spec.Paths[path] {
			verbs = append(verbs, v)
		}
		sort.Strings(verbs)

		for _, verb := range verbs {
			if !supportedVerbs[verb] {
				continue
			}
			ep, err := parseOperation(path, verb, spec.Paths[path][verb])
			if err != nil {
				return nil, err
			}
			c.Endpoints = append(c.Endpoints, ep)
		}
	}

	return c, nil
}

func parseOperation(path, verb string, raw json.RawMessage) (models.Endpoint, error) {
	var op struct {
		Summary     string   `json:"summary"`
		Description string   `json:"description"`
		Tags        []string `json:"tags"`
		Parameters  []struct {
			Name        string `json:"name"`
			In          string `json:"in"`
			Required    bool   `json:"required"`
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"parameters"`
		Responses map[string]struct {
			Schema map[string]interface{} `json:"schema"`
		} `json:"responses"`
	}
	if err := json.Unmarshal(raw, &op); err != nil {
		return models.Endpoint{}, fmt.Errorf("catalog: parse operation %s %s: %w", verb, path, err)
	}

	method := strings.ToUpper(verb)
	ep := models.Endpoint{
		ID:          method + "_" + path,
		Path:        path,
		Method:      method,
		Summary:     op.Summary,
		Description: op.Description,
		Tags:        op.Tags,
	}

	for _, p := range op.Parameters {
		loc := p.In
		if loc == "" {
			loc = "query"
		}
		typ := p.Type
		if typ == "" {
			typ = "string"
		}
		ep.Parameters = append(ep.Parameters, models.EndpointParameter{
			Name:        p.Name,
			Location:    loc,
			Required:    p.Required,
			Type:        typ,
			Description: p.Description,
		})
	}

	if r200, ok := op.Responses["200"]; ok && r200.Schema != nil {
		ep.ResponseSchema = r200.Schema
	}

	return ep, nil
}

// FullURL resolves an endpoint's path against the catalog's base URL.
func (c *Catalog) FullURL(ep *models.Endpoint) string {
	return c.BaseURL + ep.Path
}
