package memory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestSearchParsesResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/memories/search" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if req.UserID != 3 {
			t.Errorf("search should be keyed by userId, got %d", req.UserID)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"memory":"baby prefers evening baths","score":0.91},{"memory":"allergic to amoxicillin"},{"memory":""}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())
	memories, err := client.Search(context.Background(), 3, "bath time", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(memories) != 2 {
		t.Fatalf("expected 2 memories (empty dropped), got %d", len(memories))
	}
	if memories[0] != "baby prefers evening baths" {
		t.Errorf("unexpected first memory: %q", memories[0])
	}
}

func TestSearchBestEffortSwallowsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())
	memories := client.SearchBestEffort(context.Background(), 3, "anything", 5)
	if memories != nil {
		t.Errorf("expected nil on failure, got %v", memories)
	}
}

func TestAdd(t *testing.T) {
	var got addRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/memories" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"message":"memory stored"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())
	metadata := json.RawMessage(`{"intent":"DATA_RECORDING"}`)
	ack, err := client.Add(context.Background(), 3, 7, "first solid food today", metadata)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ack != "memory stored" {
		t.Errorf("ack should be relayed, got %q", ack)
	}
	if got.UserID != 3 || got.ProfileID != 7 || got.Text != "first solid food today" {
		t.Errorf("unexpected payload: %+v", got)
	}
	if string(got.Metadata) != `{"intent":"DATA_RECORDING"}` {
		t.Errorf("metadata should pass through opaquely, got %s", got.Metadata)
	}
}

func TestAddEmptyAckBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())
	ack, err := client.Add(context.Background(), 3, 7, "napped well", nil)
	if err != nil {
		t.Fatalf("empty ack body should not error: %v", err)
	}
	if ack != "" {
		t.Errorf("expected empty ack, got %q", ack)
	}
}

func TestGetAllKeyedByUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("userId") != "3" {
			t.Errorf("getAll should be keyed by userId, got query %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"memory":"sleeps through the night"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())
	memories, err := client.GetAll(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(memories) != 1 || memories[0] != "sleeps through the night" {
		t.Errorf("unexpected memories: %v", memories)
	}
}
