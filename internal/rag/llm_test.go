package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestOllamaClient_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "gemma3:4b" || req.Stream {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "hello"},
		})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "", zerolog.Nop())
	if got := c.Chat(context.Background(), "hi"); got != "hello" {
		t.Errorf("Chat = %q", got)
	}
}

func TestOllamaClient_Chat_FallbackOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "gemma3:4b", zerolog.Nop())
	if got := c.Chat(context.Background(), "hi"); got != fallbackAnswer {
		t.Errorf("Chat = %q, want fallback", got)
	}
}

func TestOllamaClient_Chat_FallbackOnDeadHost(t *testing.T) {
	c := NewOllamaClient("http://127.0.0.1:1", "gemma3:4b", zerolog.Nop())
	if got := c.Chat(context.Background(), "hi"); got != fallbackAnswer {
		t.Errorf("Chat = %q, want fallback", got)
	}
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "")
	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 || len(vecs[0]) != 3 {
		t.Errorf("vecs = %v", vecs)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want one per text", calls)
	}
}

func TestOllamaEmbedder_EmptyVectorIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "nomic-embed-text")
	if _, err := e.Embed(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error for empty embedding")
	}
}
