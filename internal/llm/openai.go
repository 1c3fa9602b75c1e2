package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/datacanvas/datacanvas/canvas-agent/pkg/models"
)

// OpenAI speaks the chat completions API with native tool calling.
type OpenAI struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// OpenAIOption configures the driver.
type OpenAIOption func(*OpenAI)

// WithEndpoint overrides the API base URL (proxies, tests).
func WithEndpoint(endpoint string) OpenAIOption {
	return func(d *OpenAI) { d.endpoint = endpoint }
}

func NewOpenAI(apiKey, model string, opts ...OpenAIOption) *OpenAI {
	d := &OpenAI{
		apiKey:   apiKey,
		model:    model,
		endpoint: "https://api.openai.com/v1",
		client:   &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *OpenAI) Kind() string { return "openai" }

type openAIRequest struct {
	Model       string                  `json:"model"`
	Messages    []models.ChatMessage    `json:"messages"`
	Tools       []models.ToolDefinition `json:"tools,omitempty"`
	Temperature *float64                `json:"temperature,omitempty"`
	MaxTokens   int                     `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content   string                  `json:"content"`
			ToolCalls []models.ToolCallResult `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
}

func (d *OpenAI) Chat(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = d.model
	}

	body, err := json.Marshal(openAIRequest{
		Model:       model,
		Messages:    req.Messages,
		Tools:       req.Tools,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)

	httpResp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("openai: status %d: %s", httpResp.StatusCode, string(respBody))
	}

	var oaiResp openAIResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&oaiResp); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}

	resp := &models.ChatResponse{
		ID:       oaiResp.ID,
		Provider: "openai",
		Model:    model,
		Usage: models.TokenUsage{
			InputTokens:  oaiResp.Usage.PromptTokens,
			OutputTokens: oaiResp.Usage.CompletionTokens,
			TotalTokens:  oaiResp.Usage.TotalTokens,
		},
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if len(oaiResp.Choices) > 0 {
		choice := oaiResp.Choices[0]
		resp.Content = choice.Message.Content
		resp.ToolCalls = choice.Message.ToolCalls
		resp.FinishReason = choice.FinishReason
	}
	return resp, nil
}

// HealthCheck sends a minimal one-token completion to validate the key.
func (d *OpenAI) HealthCheck(ctx context.Context) error {
	_, err := d.Chat(ctx, &models.ChatRequest{
		Messages:  []models.ChatMessage{{Role: "user", Content: "Say OK"}},
		MaxTokens: 1,
	})
	return err
}
