package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/loomworks/loom/transcript"
)

// Fragment kind discriminators in the fragments table.
const (
	fragmentKindText  = "text"
	fragmentKindError = "error"
	fragmentKindImage = "image"
)

// SqliteStorage implements TranscriptStorage using SQLite.
// Thread-safe: sql.DB handles connection pooling and concurrent access.
type SqliteStorage struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStorage, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	storage := &SqliteStorage{db: db}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteStorage, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}

	storage := &SqliteStorage{db: db}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// Close closes the database connection.
func (s *SqliteStorage) Close() error {
	return s.db.Close()
}

func (s *SqliteStorage) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			turn_index INTEGER NOT NULL,
			role TEXT NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE,
			UNIQUE(session_id, turn_index)
		);

		CREATE INDEX IF NOT EXISTS idx_turns_session
		ON turns(session_id, turn_index);

		CREATE TABLE IF NOT EXISTS fragments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			turn_id INTEGER NOT NULL,
			fragment_index INTEGER NOT NULL,
			kind TEXT NOT NULL,
			content TEXT,
			image BLOB,
			FOREIGN KEY (turn_id) REFERENCES turns(id) ON DELETE CASCADE,
			UNIQUE(turn_id, fragment_index)
		);

		CREATE INDEX IF NOT EXISTS idx_fragments_turn
		ON fragments(turn_id, fragment_index);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *SqliteStorage) ensureSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO sessions (session_id) VALUES (?)",
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure session: %w", err)
	}
	return nil
}

// Save replaces the stored history for a session.
func (s *SqliteStorage) Save(ctx context.Context, sessionID string, history []transcript.Turn) error {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// defer tx.Rollback() is safe even after Commit() - it becomes a no-op
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM fragments WHERE turn_id IN
		(SELECT id FROM turns WHERE session_id = ?)`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to clear old fragments: %w", err)
	}
	_, err = tx.ExecContext(ctx, "DELETE FROM turns WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("failed to clear old turns: %w", err)
	}

	turnStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO turns (session_id, turn_index, role) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare turn insert: %w", err)
	}
	defer turnStmt.Close()

	fragStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO fragments (turn_id, fragment_index, kind, content, image) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare fragment insert: %w", err)
	}
	defer fragStmt.Close()

	for i, turn := range history {
		res, err := turnStmt.ExecContext(ctx, sessionID, i, string(turn.Role))
		if err != nil {
			return fmt.Errorf("failed to insert turn: %w", err)
		}
		turnID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get turn id: %w", err)
		}

		for j, fragment := range turn.Fragments {
			kind, content, image := encodeFragment(fragment)
			if _, err := fragStmt.ExecContext(ctx, turnID, j, kind, content, image); err != nil {
				return fmt.Errorf("failed to insert fragment: %w", err)
			}
		}
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE sessions SET updated_at = datetime('now') WHERE session_id = ?",
		sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Load returns the stored history for a session.
// Returns an empty slice if the session doesn't exist.
func (s *SqliteStorage) Load(ctx context.Context, sessionID string) ([]transcript.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.turn_index, t.role, f.kind, f.content, f.image
		FROM turns t
		LEFT JOIN fragments f ON f.turn_id = t.id
		WHERE t.session_id = ?
		ORDER BY t.turn_index ASC, f.fragment_index ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	history := []transcript.Turn{} // Start with empty slice, not nil
	lastIndex := -1
	for rows.Next() {
		var (
			turnIndex int
			role      string
			kind      sql.NullString
			content   sql.NullString
			image     []byte
		)
		if err := rows.Scan(&turnIndex, &role, &kind, &content, &image); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}

		if turnIndex != lastIndex {
			history = append(history, transcript.Turn{Role: transcript.Role(role)})
			lastIndex = turnIndex
		}

		if !kind.Valid {
			continue // turn without fragments
		}
		fragment, err := decodeFragment(kind.String, content.String, image)
		if err != nil {
			return nil, err
		}
		last := len(history) - 1
		history[last].Fragments = append(history[last].Fragments, fragment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating turns: %w", err)
	}

	return history, nil
}

// Delete deletes a session and its history.
func (s *SqliteStorage) Delete(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM fragments WHERE turn_id IN
		(SELECT id FROM turns WHERE session_id = ?)`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete fragments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM turns WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete turns: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListSessions lists all session IDs, most recently updated first.
func (s *SqliteStorage) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT session_id FROM sessions ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []string{} // Start with empty slice, not nil
	for rows.Next() {
		var sessionID string
		if err := rows.Scan(&sessionID); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, sessionID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// Exists checks if a session exists.
func (s *SqliteStorage) Exists(ctx context.Context, sessionID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sessions WHERE session_id = ?",
		sessionID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check session existence: %w", err)
	}

	return count > 0, nil
}

// encodeFragment maps a fragment to its row shape.
func encodeFragment(f transcript.Fragment) (kind string, content interface{}, image interface{}) {
	switch v := f.(type) {
	case transcript.TextFragment:
		if v.IsError {
			return fragmentKindError, v.Text, nil
		}
		return fragmentKindText, v.Text, nil
	case transcript.ImageFragment:
		return fragmentKindImage, nil, v.Data
	default:
		// Unknown fragments degrade to their display form.
		return fragmentKindText, f.Display(), nil
	}
}

// decodeFragment maps a row back to a fragment.
func decodeFragment(kind, content string, image []byte) (transcript.Fragment, error) {
	switch kind {
	case fragmentKindText:
		return transcript.TextFragment{Text: content}, nil
	case fragmentKindError:
		return transcript.TextFragment{Text: content, IsError: true}, nil
	case fragmentKindImage:
		return transcript.ImageFragment{Data: image}, nil
	default:
		return nil, fmt.Errorf("invalid fragment kind %q in database", kind)
	}
}

// Verify SqliteStorage implements TranscriptStorage
var _ TranscriptStorage = (*SqliteStorage)(nil)
