package influxdb

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/loykin/iniguard/internal/history"
)

func TestInfluxSink_Send(t *testing.T) {
	var (
		mu    sync.Mutex
		body  string
		query string
		path  string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		body, query, path = string(b), r.URL.RawQuery, r.URL.Path
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sink, err := New(Config{URL: server.URL, Token: "tok", Org: "home", Bucket: "guard"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = sink.Close() }()

	e := history.Event{
		Type:       history.EventRestored,
		OccurredAt: time.Unix(1700000000, 0).UTC(),
		Record:     history.Record{Target: "deltaforceclient", PID: 42, ConfigPath: "D:/g/Engine.ini"},
	}
	if err := sink.Send(context.Background(), e); err != nil {
		t.Fatalf("send: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if path != "/api/v2/write" {
		t.Fatalf("unexpected path %q", path)
	}
	if !strings.Contains(query, "org=home") || !strings.Contains(query, "bucket=guard") {
		t.Fatalf("unexpected query %q", query)
	}
	if !strings.HasPrefix(body, Measurement+",") || !strings.Contains(body, "type=restored") || !strings.Contains(body, "pid=42i") {
		t.Fatalf("unexpected line protocol %q", body)
	}
}

func TestInfluxSink_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"invalid","message":"bad point"}`))
	}))
	defer server.Close()

	sink, err := New(Config{URL: server.URL, Org: "o", Bucket: "b"})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = sink.Close() }()
	if err := sink.Send(context.Background(), history.Event{Type: history.EventBackup, OccurredAt: time.Now()}); err == nil {
		t.Fatal("expected error for 400 response")
	}
}

func TestInfluxSink_Validation(t *testing.T) {
	if _, err := New(Config{Org: "o", Bucket: "b"}); err == nil {
		t.Fatal("expected error without url")
	}
	if _, err := New(Config{URL: "http://localhost:8086"}); err == nil {
		t.Fatal("expected error without org/bucket")
	}
}
