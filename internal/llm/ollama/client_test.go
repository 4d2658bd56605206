package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vijay-prabhu/jobrank/internal/llm"
)

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" || req.Input != "backend developer" {
			t.Errorf("unexpected request: %+v", req)
		}
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0.1, 0.2, 0.3}}})
	}))
	defer srv.Close()

	c := New(srv.URL, "nomic-embed-text", llm.Options{Timeout: time.Second})
	vec, err := c.Embed(context.Background(), "backend developer")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 3 || vec[2] != 0.3 {
		t.Errorf("unexpected vector: %v", vec)
	}
}

func TestEmbedEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embeddings": []}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "nomic-embed-text", llm.Options{})
	if _, err := c.Embed(context.Background(), "x"); err == nil {
		t.Error("expected error for empty embedding")
	}
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Stream {
			t.Error("expected non-streaming request")
		}
		if req.Options.Temperature != 0.1 || req.Options.NumPredict != 10 {
			t.Errorf("unexpected options: %+v", req.Options)
		}
		w.Write([]byte(`{"response": " 85 \n"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "llama3:8b", llm.Options{}, WithTemperature(0.1), WithNumPredict(10))
	out, err := c.Generate(context.Background(), "rate this")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out != "85" {
		t.Errorf("expected trimmed response, got %q", out)
	}
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "model loading", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"response": "70"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "llama3:8b", llm.Options{MaxRetries: 2, Backoff: time.Millisecond})
	out, err := c.Generate(context.Background(), "rate this")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out != "70" || atomic.LoadInt32(&calls) != 2 {
		t.Errorf("expected success on second attempt, got %q after %d calls", out, calls)
	}
}

func TestGenerateClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "missing", llm.Options{MaxRetries: 3, Backoff: time.Millisecond})
	if _, err := c.Generate(context.Background(), "rate this"); err == nil {
		t.Fatal("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestGenerateTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "llama3:8b", llm.Options{Timeout: 20 * time.Millisecond})
	start := time.Now()
	if _, err := c.Generate(context.Background(), "rate this"); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Error("timeout was not applied")
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models": [{"name": "llama3:8b"}, {"name": "nomic-embed-text:latest"}]}`))
	}))
	defer srv.Close()

	if err := New(srv.URL, "llama3:8b", llm.Options{}).Health(context.Background()); err != nil {
		t.Errorf("expected healthy judge model: %v", err)
	}
	if err := New(srv.URL, "nomic-embed-text", llm.Options{}).Health(context.Background()); err != nil {
		t.Errorf("expected :latest tag to match: %v", err)
	}
	if err := New(srv.URL, "mistral", llm.Options{}).Health(context.Background()); err == nil {
		t.Error("expected missing model error")
	}
}
