// Package storage provides SQLite transcript persistence.
//
// Information Hiding:
// - SQLite connection management hidden behind interface
// - Schema and fragment encoding encapsulated
// - Thread-safe via sql.DB's built-in connection pooling
package storage

import (
	"context"

	"github.com/loomworks/loom/transcript"
)

// TranscriptStorage persists turn-structured conversation history.
// Persistence is best-effort for callers: a failed save must never
// abort a conversation.
type TranscriptStorage interface {
	// Save replaces the stored history for a session.
	Save(ctx context.Context, sessionID string, history []transcript.Turn) error

	// Load returns the stored history for a session.
	// Returns an empty slice if the session doesn't exist.
	Load(ctx context.Context, sessionID string) ([]transcript.Turn, error)

	// Delete removes a session and its history.
	Delete(ctx context.Context, sessionID string) error

	// ListSessions lists all session IDs, most recently updated first.
	ListSessions(ctx context.Context) ([]string, error)

	// Exists checks if a session exists.
	Exists(ctx context.Context, sessionID string) (bool, error)
}
