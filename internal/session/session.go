// Package session stores per-session conversation history. Each backend
// keeps only the most recent messages and treats a missing session as an
// empty history. Concurrent writers to one session are last-writer-wins.
package session

import (
	"context"

	"github.com/knoguchi/supportagent/internal/model"
)

// Store is a key-value store of conversation histories.
type Store interface {
	// Get returns the session's history, oldest first.
	Get(ctx context.Context, sessionID string) ([]model.Turn, error)

	// Put replaces the session's history, keeping the most recent messages.
	Put(ctx context.Context, sessionID string, turns []model.Turn) error

	// Delete removes the session and reports whether it existed.
	Delete(ctx context.Context, sessionID string) (bool, error)

	// Count returns the number of live sessions.
	Count(ctx context.Context) (int, error)

	Close() error
}

// DefaultMaxMessages keeps ten user/assistant exchanges.
const DefaultMaxMessages = 20

// Trim returns a copy of the last max turns. max <= 0 keeps everything.
func Trim(turns []model.Turn, max int) []model.Turn {
	if max > 0 && len(turns) > max {
		turns = turns[len(turns)-max:]
	}
	out := make([]model.Turn, len(turns))
	copy(out, turns)
	return out
}
