// Package agent implements the control loop that alternates between
// model reasoning and tool execution until the model stops requesting
// tools, then formats accumulated tool output into canvas widgets.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/datacanvas/datacanvas/canvas-agent/internal/memory"
	"github.com/datacanvas/datacanvas/canvas-agent/internal/tools"
	"github.com/datacanvas/datacanvas/canvas-agent/internal/widgets"
	"github.com/datacanvas/datacanvas/canvas-agent/pkg/contracts"
	"github.com/datacanvas/datacanvas/canvas-agent/pkg/models"
)

const (
	// DefaultMaxSteps caps reasoning steps per invocation. The loop
	// normally ends when the model stops requesting tools; the cap is a
	// safety net against a model fixating on tool calls.
	DefaultMaxSteps = 10

	// historyTurns is how many remembered turns seed a new invocation.
	historyTurns = 3
)

// Agent runs the reasoning/tool loop for one query at a time. It is
// stateless across invocations; everything persistent lives in the
// memory store.
type Agent struct {
	driver   contracts.ChatDriver
	runner   *tools.Runner
	memory   *memory.Store
	maxSteps int
}

func New(driver contracts.ChatDriver, runner *tools.Runner, mem *memory.Store) *Agent {
	return &Agent{
		driver:   driver,
		runner:   runner,
		memory:   mem,
		maxSteps: DefaultMaxSteps,
	}
}

// state is the loop's working memory for one invocation. Transitions
// return a new value instead of mutating, so each step's input is an
// immutable snapshot.
type state struct {
	messages []models.ChatMessage
	step     int
}

func (s state) withMessages(msgs ...models.ChatMessage) state {
	next := make([]models.ChatMessage, 0, len(s.messages)+len(msgs))
	next = append(next, s.messages...)
	next = append(next, msgs...)
	return state{messages: next, step: s.step}
}

func (s state) nextStep() state {
	return state{messages: s.messages, step: s.step + 1}
}

// Run processes one user message and returns the reply text plus the
// widgets to render. It never returns an error: any failure becomes an
// apologetic reply with no widgets.
func (a *Agent) Run(ctx context.Context, sessionID, message string) (text string, widgetList []models.Widget) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("session", sessionID).Msg("agent invocation panicked")
			text = errorResponse
			widgetList = []models.Widget{}
		}
	}()

	s, err := a.seed(ctx, sessionID, message)
	if err != nil {
		log.Warn().Err(err).Str("session", sessionID).Msg("failed to load session history")
	}

	for s.step < a.maxSteps {
		resp, err := a.driver.Chat(ctx, &models.ChatRequest{
			Messages: s.messages,
			Tools:    a.runner.Definitions(),
		})
		if err != nil {
			log.Error().Err(err).Str("session", sessionID).Msg("reasoning step failed")
			return errorResponse, []models.Widget{}
		}

		if len(resp.ToolCalls) == 0 {
			s = s.withMessages(models.ChatMessage{Role: "assistant", Content: resp.Content})
			break
		}

		s = s.withMessages(models.ChatMessage{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		s = a.execTools(ctx, s, resp.ToolCalls)
		s = s.nextStep()
	}

	text, widgetList = a.format(s)

	// An abandoned invocation must not leave a partial turn behind.
	if ctx.Err() == nil {
		turn := models.Turn{
			User:      message,
			Assistant: text,
			Widgets:   widgetList,
			Timestamp: time.Now().UTC(),
		}
		if err := a.memory.AddTurn(ctx, sessionID, turn); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Str("session", sessionID).Msg("failed to persist turn")
		}
	}
	return text, widgetList
}

// seed builds the initial message sequence: system prompt, recent
// remembered turns, then the new user message.
func (a *Agent) seed(ctx context.Context, sessionID, message string) (state, error) {
	msgs := []models.ChatMessage{{Role: "system", Content: systemPrompt}}

	history, err := a.memory.ContextMessages(ctx, sessionID, historyTurns)
	if err == nil {
		msgs = append(msgs, history...)
	}
	msgs = append(msgs, models.ChatMessage{Role: "user", Content: message})
	return state{messages: msgs}, err
}

// execTools runs every tool call from one reasoning step, in the order
// requested, and appends each result as a tool message. Sequential
// execution keeps result ordering deterministic.
func (a *Agent) execTools(ctx context.Context, s state, calls []models.ToolCallResult) state {
	for _, call := range calls {
		result := a.runner.Execute(ctx, call.Function.Name, call.Function.Arguments)

		payload, err := json.Marshal(result)
		if err != nil {
			payload = []byte(`{"error": "tool result could not be serialized"}`)
		}

		log.Debug().
			Str("tool", call.Function.Name).
			Int("step", s.step).
			Msg("tool executed")

		s = s.withMessages(models.ChatMessage{
			Role:       "tool",
			Content:    string(payload),
			ToolCallID: call.ID,
			Name:       call.Function.Name,
		})
	}
	return s
}

// format scans accumulated tool messages for widget material and picks
// the final reply text.
func (a *Agent) format(s state) (string, []models.Widget) {
	grid := widgets.NewGrid()
	out := []models.Widget{}

	for _, msg := range s.messages {
		if msg.Role != "tool" {
			continue
		}
		var payload map[string]interface{}
		if err := json.Unmarshal([]byte(msg.Content), &payload); err != nil {
			continue
		}
		if _, failed := payload["error"]; failed {
			continue
		}

		// Pre-formatted widgets pass through as-is.
		component, hasComponent := payload["component"].(string)
		data, hasData := payload["data"]
		if hasComponent && hasData {
			dataMap, ok := data.(map[string]interface{})
			if !ok {
				continue
			}
			config, _ := payload["config"].(map[string]interface{})
			pos := grid.Place(6, 2)
			out = append(out, widgets.NewWidget(component, pos, dataMap, config))
			continue
		}

		// Raw successful payloads are classified by shape.
		if !hasData {
			continue
		}
		unwrapped := widgets.Unwrap(data)
		switch widgets.Classify(unwrapped) {
		case widgets.ShapeTable:
			if w, ok := autoFormat(models.ComponentTable, unwrapped, grid, 12, 2); ok {
				out = append(out, w)
			}
		case widgets.ShapeBarChart:
			if w, ok := autoFormat(models.ComponentBarChart, unwrapped, grid, 6, 2); ok {
				out = append(out, w)
			}
		case widgets.ShapePropertyTable:
			if w, ok := autoFormat(models.ComponentTable, unwrapped, grid, 12, 2); ok {
				out = append(out, w)
			}
		}
	}

	return finalText(s.messages), out
}

func autoFormat(component string, data interface{}, grid *widgets.Grid, width, height int) (models.Widget, bool) {
	formatted := widgets.Format(component, data, nil)
	if _, failed := formatted["error"]; failed {
		return models.Widget{}, false
	}
	dataMap, _ := formatted["data"].(map[string]interface{})
	config, _ := formatted["config"].(map[string]interface{})
	pos := grid.Place(width, height)
	return widgets.NewWidget(component, pos, dataMap, config), true
}

// finalText returns the last assistant message that is not itself a
// tool-call request, or the static fallback.
func finalText(msgs []models.ChatMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role == "assistant" && len(m.ToolCalls) == 0 && m.Content != "" {
			return m.Content
		}
	}
	return fallbackResponse
}
