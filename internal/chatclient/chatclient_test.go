package chatclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tallowoak/taskline/internal/value"
)

func TestHTTPClientChatPostsToV1ChatCompletionsWithCorrelationID(t *testing.T) {
	var gotPath, gotCorrelationID, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCorrelationID = r.Header.Get("X-Correlation-Id")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": "hi"}},
			},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient("secret-key", srv.URL, "test-model")
	body := value.NewOrderedMap()
	resp, err := c.Chat(context.Background(), &Request{
		Messages:      []Message{{Role: "user", Content: "hello"}},
		Body:          body,
		NOutputs:      1,
		CorrelationID: "corr-123",
	})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if gotPath != "/v1/chat/completions" {
		t.Errorf("path = %q, want %q", gotPath, "/v1/chat/completions")
	}
	if gotCorrelationID != "corr-123" {
		t.Errorf("X-Correlation-Id = %q, want %q", gotCorrelationID, "corr-123")
	}
	if gotAuth != "Bearer secret-key" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer secret-key")
	}
	if len(resp.Outputs) != 1 || resp.Outputs[0] != "hi" {
		t.Errorf("Outputs = %v, want [\"hi\"]", resp.Outputs)
	}
}

func TestNewHTTPClientDefaultsMatchSpec(t *testing.T) {
	c := NewHTTPClient("", "", "")
	if c.BaseURL != "http://localhost:8080" {
		t.Errorf("BaseURL = %q, want %q", c.BaseURL, "http://localhost:8080")
	}
	if c.APIKey != "unused" {
		t.Errorf("APIKey = %q, want %q", c.APIKey, "unused")
	}
}
