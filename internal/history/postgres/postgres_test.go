package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/loykin/iniguard/internal/history"
)

func TestPostgresSink_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate PostgreSQL container: %v", err)
		}
	}()

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	sink, err := New(connStr)
	if err != nil {
		t.Fatalf("Failed to create PostgreSQL sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	rec := history.Record{Target: "deltaforceclient", PID: 12345, ConfigPath: "D:/g/Engine.ini"}
	for _, typ := range []history.EventType{history.EventStarted, history.EventStopped} {
		if err := sink.Send(ctx, history.Event{Type: typ, OccurredAt: time.Now().UTC(), Record: rec}); err != nil {
			t.Fatalf("Failed to send %s event: %v", typ, err)
		}
	}
	rec.Error = "permission denied"
	if err := sink.Send(ctx, history.Event{Type: history.EventRestoreFailed, OccurredAt: time.Now().UTC(), Record: rec}); err != nil {
		t.Fatalf("Failed to send failure event: %v", err)
	}

	var count int
	if err := sink.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM guard_history WHERE target = $1", rec.Target).Scan(&count); err != nil {
		t.Fatalf("Failed to query guard_history: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 events in history, got %d", count)
	}
	var withErr int
	if err := sink.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM guard_history WHERE error IS NOT NULL").Scan(&withErr); err != nil {
		t.Fatalf("Failed to query errors: %v", err)
	}
	if withErr != 1 {
		t.Errorf("Expected 1 event with error, got %d", withErr)
	}
}

func TestPostgresSink_EmptyDSN(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}
