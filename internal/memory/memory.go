// Package memory stores per-session conversation history on top of the
// shared cache, so sessions survive restarts whenever Redis does.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/datacanvas/datacanvas/canvas-agent/internal/cache"
	"github.com/datacanvas/datacanvas/canvas-agent/pkg/models"
)

const (
	// maxTurns bounds how much history a session keeps. Older turns are
	// evicted oldest-first.
	maxTurns = 20

	sessionTTL = time.Hour
)

// Store keeps bounded conversation history per session.
type Store struct {
	cache *cache.Cache

	// Serializes the read-modify-write in AddTurn. Concurrent requests
	// for the same session would otherwise lose turns.
	mu sync.Mutex
}

func NewStore(c *cache.Cache) *Store {
	return &Store{cache: c}
}

func historyKey(sessionID string) string {
	return cache.Key("session", sessionID, "history")
}

// AddTurn appends one completed exchange and evicts beyond the window.
func (s *Store) AddTurn(ctx context.Context, sessionID string, turn models.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var history []models.Turn
	if _, err := s.cache.GetInto(ctx, historyKey(sessionID), &history); err != nil {
		// Undecodable history is discarded rather than wedging the session.
		history = nil
	}

	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	history = append(history, turn)
	if len(history) > maxTurns {
		history = history[len(history)-maxTurns:]
	}

	return s.cache.Set(ctx, historyKey(sessionID), history, sessionTTL)
}

// History returns the session's turns, oldest first. Unknown sessions
// return an empty slice.
func (s *Store) History(ctx context.Context, sessionID string) ([]models.Turn, error) {
	var history []models.Turn
	if _, err := s.cache.GetInto(ctx, historyKey(sessionID), &history); err != nil {
		return nil, err
	}
	if history == nil {
		history = []models.Turn{}
	}
	return history, nil
}

// ContextMessages flattens the most recent turns into alternating
// user/assistant chat messages for prompt seeding. limit counts turns,
// not messages.
func (s *Store) ContextMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	history, err := s.History(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	msgs := make([]models.ChatMessage, 0, len(history)*2)
	for _, t := range history {
		msgs = append(msgs,
			models.ChatMessage{Role: "user", Content: t.User},
			models.ChatMessage{Role: "assistant", Content: t.Assistant},
		)
	}
	return msgs, nil
}

// Clear removes the session's history.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	return s.cache.Delete(ctx, historyKey(sessionID))
}
