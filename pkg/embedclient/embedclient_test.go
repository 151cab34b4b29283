package embedclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float64{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	c := New(srv.URL, "nomic-embed-text", nil)
	vec, ok := c.Generate(context.Background(), "hello world")
	if !ok {
		t.Fatal("expected ok=true")
	}
	if len(vec) != 3 {
		t.Fatalf("vector length = %d, want 3", len(vec))
	}
}

func TestGenerateFailsOpenOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "nomic-embed-text", nil)
	vec, ok := c.Generate(context.Background(), "hello world")
	if ok || vec != nil {
		t.Fatalf("expected (nil, false) on a 500, got (%v, %v)", vec, ok)
	}
}

func TestGenerateFailsOpenOnMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := New(srv.URL, "nomic-embed-text", nil)
	if _, ok := c.Generate(context.Background(), "hello world"); ok {
		t.Fatal("expected ok=false on a malformed response body")
	}
}

func TestGenerateFailsOpenOnEmptyEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embedding: nil})
	}))
	defer srv.Close()

	c := New(srv.URL, "nomic-embed-text", nil)
	if _, ok := c.Generate(context.Background(), "hello world"); ok {
		t.Fatal("expected ok=false on an empty embedding")
	}
}

func TestGenerateFailsOpenOnUnreachableServer(t *testing.T) {
	c := New("http://127.0.0.1:1", "nomic-embed-text", nil)
	if _, ok := c.Generate(context.Background(), "hello world"); ok {
		t.Fatal("expected ok=false when the backend is unreachable")
	}
}
