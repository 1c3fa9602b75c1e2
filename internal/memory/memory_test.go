package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/datacanvas/datacanvas/canvas-agent/internal/cache"
	"github.com/datacanvas/datacanvas/canvas-agent/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	c := cache.New(context.Background(), "redis://127.0.0.1:1", 5*time.Minute)
	return NewStore(c)
}

func TestAddTurnAndHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AddTurn(ctx, "s1", models.Turn{User: "show pets", Assistant: "here"}); err != nil {
		t.Fatalf("AddTurn: %v", err)
	}
	if err := s.AddTurn(ctx, "s1", models.Turn{User: "filter by sold", Assistant: "done"}); err != nil {
		t.Fatalf("AddTurn: %v", err)
	}

	history, err := s.History(ctx, "s1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d turns, want 2", len(history))
	}
	if history[0].User != "show pets" || history[1].User != "filter by sold" {
		t.Errorf("history not oldest-first: %v, %v", history[0].User, history[1].User)
	}
	if history[0].Timestamp.IsZero() {
		t.Error("timestamp not stamped on add")
	}
}

func TestHistoryUnknownSession(t *testing.T) {
	s := newTestStore(t)
	history, err := s.History(context.Background(), "nope")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if history == nil || len(history) != 0 {
		t.Errorf("unknown session history = %v, want empty slice", history)
	}
}

func TestWindowEviction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		if err := s.AddTurn(ctx, "s1", models.Turn{User: fmt.Sprintf("q%d", i), Assistant: "a"}); err != nil {
			t.Fatalf("AddTurn %d: %v", i, err)
		}
	}

	history, err := s.History(ctx, "s1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 20 {
		t.Fatalf("got %d turns, want 20", len(history))
	}
	if history[0].User != "q5" || history[19].User != "q24" {
		t.Errorf("window = %s..%s, want q5..q24", history[0].User, history[19].User)
	}
}

func TestContextMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s.AddTurn(ctx, "s1", models.Turn{User: fmt.Sprintf("q%d", i), Assistant: fmt.Sprintf("a%d", i)})
	}

	msgs, err := s.ContextMessages(ctx, "s1", 3)
	if err != nil {
		t.Fatalf("ContextMessages: %v", err)
	}
	if len(msgs) != 6 {
		t.Fatalf("got %d messages, want 6", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[0].Content != "q2" {
		t.Errorf("first message = %s %q", msgs[0].Role, msgs[0].Content)
	}
	if msgs[5].Role != "assistant" || msgs[5].Content != "a4" {
		t.Errorf("last message = %s %q", msgs[5].Role, msgs[5].Content)
	}
}

func TestClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.AddTurn(ctx, "s1", models.Turn{User: "q", Assistant: "a"})
	if err := s.Clear(ctx, "s1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	history, _ := s.History(ctx, "s1")
	if len(history) != 0 {
		t.Errorf("history after clear = %d turns", len(history))
	}
}

func TestSessionsIsolated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.AddTurn(ctx, "a", models.Turn{User: "qa", Assistant: "x"})
	s.AddTurn(ctx, "b", models.Turn{User: "qb", Assistant: "y"})

	ha, _ := s.History(ctx, "a")
	hb, _ := s.History(ctx, "b")
	if len(ha) != 1 || len(hb) != 1 || ha[0].User != "qa" || hb[0].User != "qb" {
		t.Errorf("sessions leaked: %v / %v", ha, hb)
	}
}
