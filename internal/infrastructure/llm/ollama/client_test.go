package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
	"github.com/kirillkom/student-tax-advisor/internal/infrastructure/resilience"
)

func TestGeneratorBuildsContextPrompt(t *testing.T) {
	var capturedPrompt, capturedModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		capturedPrompt, _ = payload["prompt"].(string)
		capturedModel, _ = payload["model"].(string)
		_, _ = w.Write([]byte(`{"response":"  You must file Form 8843.  "}`))
	}))
	defer server.Close()

	gen := NewGenerator(New(server.URL, "llama3", "nomic-embed-text"))
	answer, err := gen.GenerateAnswer(context.Background(), domain.AnswerRequest{
		Question: "Do I file 8843?",
		Profile:  domain.DefaultProfile(),
		Chunks:   []domain.Chunk{{ID: "c1", Text: "chunk text", Metadata: domain.ChunkMetadata{Title: "Pub 519", PageNumber: 2, DocID: "pub519"}}},
	})
	if err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}
	if answer != "You must file Form 8843." {
		t.Fatalf("unexpected answer: %q", answer)
	}
	if capturedModel != "llama3" {
		t.Fatalf("unexpected model: %s", capturedModel)
	}
	if !strings.Contains(capturedPrompt, "Do I file 8843?") || !strings.Contains(capturedPrompt, "[Pub 519 - p.2]\nchunk text") {
		t.Fatalf("unexpected prompt: %s", capturedPrompt)
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed"))
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("502 must be temporary, got %v", err)
	}
}

func TestEmbedModelNotFoundIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewEmbedder(New(server.URL, "gen", "embed")).EmbedQuery(context.Background(), "hello")
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestEmbedQueryRetriesWithExecutor(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "loading model", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2,0.3]]}`))
	}))
	defer server.Close()

	client := New(server.URL, "gen", "embed").WithExecutor(resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
	}))
	vec, err := NewEmbedder(client).EmbedQuery(context.Background(), "hello")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("unexpected vector: %v", vec)
	}
}

func TestEmbedRejectsCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.1]]}`))
	}))
	defer server.Close()

	if _, err := NewEmbedder(New(server.URL, "gen", "embed")).Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatalf("expected mismatch error")
	}
}
