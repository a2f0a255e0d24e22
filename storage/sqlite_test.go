package storage

import (
	"bytes"
	"context"
	"testing"

	"github.com/loomworks/loom/transcript"
)

func newTestStorage(t *testing.T) *SqliteStorage {
	t.Helper()
	storage, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { storage.Close() })
	return storage
}

func sampleHistory() []transcript.Turn {
	return []transcript.Turn{
		{
			Role:      transcript.RoleUser,
			Fragments: []transcript.Fragment{transcript.TextFragment{Text: "take a screenshot"}},
		},
		{
			Role: transcript.RoleAssistant,
			Fragments: []transcript.Fragment{
				transcript.TextFragment{Text: "Tool Use: screenshot\nInput: {}"},
				transcript.ImageFragment{Data: []byte{0x89, 'P', 'N', 'G'}},
				transcript.TextFragment{Text: "capture failed once", IsError: true},
				transcript.TextFragment{Text: "Here it is."},
			},
		},
	}
}

func TestSqliteStorageSaveAndLoad(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	if err := storage.Save(ctx, "test-session", sampleHistory()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := storage.Load(ctx, "test-session")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(loaded) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(loaded))
	}
	if loaded[0].Role != transcript.RoleUser || loaded[1].Role != transcript.RoleAssistant {
		t.Errorf("roles not preserved: %s, %s", loaded[0].Role, loaded[1].Role)
	}

	fragments := loaded[1].Fragments
	if len(fragments) != 4 {
		t.Fatalf("expected 4 fragments, got %d", len(fragments))
	}
	if f, ok := fragments[0].(transcript.TextFragment); !ok || f.Text != "Tool Use: screenshot\nInput: {}" {
		t.Errorf("fragment 0 not preserved: %#v", fragments[0])
	}
	img, ok := fragments[1].(transcript.ImageFragment)
	if !ok || !bytes.Equal(img.Data, []byte{0x89, 'P', 'N', 'G'}) {
		t.Errorf("image bytes not preserved: %#v", fragments[1])
	}
	if f, ok := fragments[2].(transcript.TextFragment); !ok || !f.IsError {
		t.Errorf("error flag not preserved: %#v", fragments[2])
	}
}

func TestSqliteStorageSaveReplacesHistory(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	if err := storage.Save(ctx, "s1", sampleHistory()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	shorter := []transcript.Turn{
		{Role: transcript.RoleUser, Fragments: []transcript.Fragment{transcript.TextFragment{Text: "only this"}}},
	}
	if err := storage.Save(ctx, "s1", shorter); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := storage.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Errorf("expected replaced history with 1 turn, got %d", len(loaded))
	}
}

func TestSqliteStorageLoadNonexistentSession(t *testing.T) {
	storage := newTestStorage(t)

	loaded, err := storage.Load(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("expected empty history, got %d turns", len(loaded))
	}
}

func TestSqliteStorageDelete(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	if err := storage.Save(ctx, "doomed", sampleHistory()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := storage.Delete(ctx, "doomed"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	exists, err := storage.Exists(ctx, "doomed")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("expected session to be gone")
	}
	loaded, err := storage.Load(ctx, "doomed")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("expected no turns after delete, got %d", len(loaded))
	}
}

func TestSqliteStorageListSessions(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := storage.Save(ctx, id, sampleHistory()); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	sessions, err := storage.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("expected 2 sessions, got %d", len(sessions))
	}
}

func TestSqliteStorageEmptyTurn(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	history := []transcript.Turn{
		{Role: transcript.RoleUser, Fragments: []transcript.Fragment{transcript.TextFragment{Text: "hi"}}},
		{Role: transcript.RoleAssistant}, // committed with no fragments
	}
	if err := storage.Save(ctx, "s", history); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := storage.Load(ctx, "s")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(loaded))
	}
	if len(loaded[1].Fragments) != 0 {
		t.Errorf("expected empty assistant turn, got %d fragments", len(loaded[1].Fragments))
	}
}

func TestOpenSqliteCreatesDirectories(t *testing.T) {
	dir := t.TempDir()
	storage, err := OpenSqlite(dir + "/nested/loom.db")
	if err != nil {
		t.Fatalf("OpenSqlite failed: %v", err)
	}
	defer storage.Close()

	if err := storage.Save(context.Background(), "s", sampleHistory()); err != nil {
		t.Errorf("Save failed: %v", err)
	}
}
