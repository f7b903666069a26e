package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/iniguard/internal/history"
)

func TestSQLiteSink_File(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	sink, err := New("sqlite://" + dbPath)
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	ctx := context.Background()
	rec := history.Record{Target: "deltaforceclient", PID: 4242, ConfigPath: "D:/x/Engine.ini"}
	for _, typ := range []history.EventType{history.EventStarted, history.EventRestored, history.EventStopped} {
		if err := sink.Send(ctx, history.Event{Type: typ, OccurredAt: time.Now().UTC(), Record: rec}); err != nil {
			t.Fatalf("Failed to send %s event: %v", typ, err)
		}
	}
	failed := rec
	failed.Error = "write Engine.ini: file is read-only"
	if err := sink.Send(ctx, history.Event{Type: history.EventRestoreFailed, OccurredAt: time.Now().UTC(), Record: failed}); err != nil {
		t.Fatalf("Failed to send failure event: %v", err)
	}

	if n, err := sink.Count(ctx, ""); err != nil || n != 4 {
		t.Fatalf("expected 4 rows, got %d (%v)", n, err)
	}
	if n, err := sink.Count(ctx, history.EventRestored); err != nil || n != 1 {
		t.Fatalf("expected 1 restored row, got %d (%v)", n, err)
	}
}

func TestSQLiteSink_InMemory(t *testing.T) {
	sink, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	ctx := context.Background()
	if err := sink.Send(ctx, history.Event{Type: history.EventBackup, OccurredAt: time.Now().UTC(), Record: history.Record{Target: "x"}}); err != nil {
		t.Fatalf("Failed to send event: %v", err)
	}
	if n, _ := sink.Count(ctx, history.EventBackup); n != 1 {
		t.Fatalf("expected 1 backup row, got %d", n)
	}
}

func TestSQLiteSink_ContextCancellation(t *testing.T) {
	sink, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sink.Send(ctx, history.Event{Type: history.EventStarted, OccurredAt: time.Now().UTC()}); err == nil {
		t.Fatal("expected error with cancelled context")
	}
}

func TestSQLiteSink_EmptyDSN(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}
