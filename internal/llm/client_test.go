package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
)

// embedHandler answers /embeddings with one-dimensional vectors derived from
// the numeric suffix of each input ("t7" embeds to [7]). Entries are returned
// in reverse order to exercise index-based reassembly.
func embedHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t.Helper()
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		type entry struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		entries := make([]entry, len(req.Input))
		for i, text := range req.Input {
			n, err := strconv.Atoi(strings.TrimPrefix(text, "t"))
			if err != nil {
				t.Errorf("unexpected input %q", text)
			}
			entries[len(req.Input)-1-i] = entry{Index: i, Embedding: []float32{float32(n)}}
		}
		json.NewEncoder(w).Encode(map[string]any{"data": entries})
	}
}

func TestEmbed_OrderPreserved(t *testing.T) {
	srv := httptest.NewServer(embedHandler(t))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, "test-embed", "test-chat")
	texts := make([]string, 7)
	for i := range texts {
		texts[i] = fmt.Sprintf("t%d", i)
	}

	vectors, err := c.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != 1 || v[0] != float32(i) {
			t.Errorf("vectors[%d] = %v, want [%d]", i, v, i)
		}
	}
}

func TestEmbed_SplitsIntoBatches(t *testing.T) {
	var requests atomic.Int32
	handler := embedHandler(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		handler(w, r)
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, "test-embed", "test-chat")
	texts := make([]string, embedBatchSize*2+5)
	for i := range texts {
		texts[i] = fmt.Sprintf("t%d", i)
	}

	vectors, err := c.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("got %d requests, want 3", got)
	}
	for i, v := range vectors {
		if v[0] != float32(i) {
			t.Fatalf("vectors[%d] = %v, batch order lost", i, v)
		}
	}
}

func TestEmbed_EmptyInput(t *testing.T) {
	c := NewClient("test-key", "http://unused.invalid", "test-embed", "test-chat")
	vectors, err := c.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if vectors != nil {
		t.Errorf("got %v, want nil", vectors)
	}
}

func TestEmbed_RetriesOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	handler := embedHandler(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		handler(w, r)
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, "test-embed", "test-chat")
	vectors, err := c.Embed(context.Background(), []string{"t0"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("got %d calls, want 2", calls.Load())
	}
	if vectors[0][0] != 0 {
		t.Errorf("vectors[0] = %v", vectors[0])
	}
}

func TestEmbed_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, "test-embed", "test-chat")
	if _, err := c.Embed(context.Background(), []string{"t0", "t1"}); err == nil {
		t.Fatal("expected error for mismatched embedding count")
	}
}

func TestChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Model != "test-chat" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("messages = %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "the answer"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, "test-embed", "test-chat")
	got, err := c.ChatCompletion(context.Background(), []Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "question"},
	})
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}
	if got != "the answer" {
		t.Errorf("got %q", got)
	}
}

func TestChatCompletion_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, "test-embed", "test-chat")
	if _, err := c.ChatCompletion(context.Background(), []Message{{Role: "user", Content: "q"}}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestChatCompletion_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, "test-embed", "test-chat")
	_, err := c.ChatCompletion(context.Background(), []Message{{Role: "user", Content: "q"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error %q does not mention status", err)
	}
}
