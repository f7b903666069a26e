package opensearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/loykin/iniguard/internal/history"
)

func TestOpenSearchSink_Send(t *testing.T) {
	var receivedBody []byte
	var receivedURL string
	var receivedMethod string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedMethod = r.Method
		receivedURL = r.URL.Path
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"_id":"test","_index":"guard-history","result":"created"}`))
	}))
	defer server.Close()

	sink := New(server.URL+"/", "guard-history")
	event := history.Event{
		Type:       history.EventRestored,
		OccurredAt: time.Now().UTC(),
		Record:     history.Record{Target: "deltaforceclient", PID: 12345, ConfigPath: "D:/g/Engine.ini"},
	}
	if err := sink.Send(context.Background(), event); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if receivedMethod != http.MethodPost {
		t.Errorf("Expected POST method, got: %s", receivedMethod)
	}
	if receivedURL != "/guard-history/_doc" {
		t.Errorf("Unexpected URL path: %s", receivedURL)
	}

	var got map[string]any
	if err := json.Unmarshal(receivedBody, &got); err != nil {
		t.Fatalf("Failed to parse received JSON: %v", err)
	}
	if got["type"] != string(history.EventRestored) {
		t.Errorf("Expected type %s, got: %v", history.EventRestored, got["type"])
	}
	rec, ok := got["record"].(map[string]any)
	if !ok || rec["target"] != "deltaforceclient" || rec["pid"] != float64(12345) {
		t.Errorf("Unexpected record payload: %v", got["record"])
	}
}

func TestOpenSearchSink_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	if err := New(server.URL, "idx").Send(context.Background(), history.Event{Type: history.EventBackup}); err == nil {
		t.Fatal("expected error for 400 response")
	}
}

func TestOpenSearchSink_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := New(server.URL, "idx").Send(ctx, history.Event{Type: history.EventBackup}); err == nil {
		t.Fatal("expected error with cancelled context")
	}
}
