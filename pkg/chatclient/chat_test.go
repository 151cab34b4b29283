package chatclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaChatSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Message:         ollamaChatMessageResp{Content: "hello back"},
			EvalCount:       10,
			PromptEvalCount: 5,
		})
	}))
	defer srv.Close()

	c := NewOllamaChat(srv.URL, nil, 0, 0)
	reply, ok := c.Chat(context.Background(), "llama3", []ChatMessage{{Role: "user", Content: "hi"}})
	if !ok {
		t.Fatal("expected ok=true")
	}
	if reply.Content != "hello back" {
		t.Fatalf("Content = %q, want %q", reply.Content, "hello back")
	}
	if reply.PromptEvalCount != 5 || reply.EvalCount != 10 {
		t.Fatalf("unexpected token counts: %+v", reply)
	}
}

func TestOllamaChatFailsOpenOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewOllamaChat(srv.URL, nil, 0, 0)
	if _, ok := c.Chat(context.Background(), "llama3", nil); ok {
		t.Fatal("expected ok=false on a 503")
	}
}

func TestOllamaChatFailsOpenOnMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewOllamaChat(srv.URL, nil, 0, 0)
	if _, ok := c.Chat(context.Background(), "llama3", nil); ok {
		t.Fatal("expected ok=false on a malformed response body")
	}
}

func TestOllamaChatFailsOpenOnUnreachableServer(t *testing.T) {
	c := NewOllamaChat("http://127.0.0.1:1", nil, 0, 0)
	if _, ok := c.Chat(context.Background(), "llama3", nil); ok {
		t.Fatal("expected ok=false when the backend is unreachable")
	}
}

func TestOllamaChatRateLimiterDisabledWhenZero(t *testing.T) {
	c := NewOllamaChat("http://example.invalid", nil, 0, 0)
	if c.limiter != nil {
		t.Fatal("expected a nil limiter when ratePerSecond <= 0")
	}
}

func TestOllamaChatRateLimiterEnabled(t *testing.T) {
	c := NewOllamaChat("http://example.invalid", nil, 5, 1)
	if c.limiter == nil {
		t.Fatal("expected a non-nil limiter when ratePerSecond > 0")
	}
}

func TestOllamaChatBreakerTripsAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewOllamaChat(srv.URL, nil, 0, 0)
	for i := 0; i < 5; i++ { // resilience.DefaultBreakerOpts.FailThreshold
		if _, ok := c.Chat(context.Background(), "llama3", nil); ok {
			t.Fatal("expected ok=false on a 503")
		}
	}
	if c.breaker.State().String() != "open" {
		t.Fatalf("expected the breaker to be open after repeated failures, got %s", c.breaker.State())
	}
}

func TestHTTPPaidLLMCompleteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "secret" {
			t.Errorf("x-api-key = %q, want %q", got, "secret")
		}
		json.NewEncoder(w).Encode(paidResponse{
			Content: []paidContentBlock{{Text: "the patch"}},
			Usage:   paidUsage{InputTokens: 100, OutputTokens: 42},
		})
	}))
	defer srv.Close()

	c := NewHTTPPaidLLM(srv.URL, "secret", nil, 0, 0)
	reply, err := c.Complete(context.Background(), "claude", []ChatMessage{{Role: "user", Content: "write it"}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply.Text != "the patch" {
		t.Fatalf("Text = %q, want %q", reply.Text, "the patch")
	}
	if reply.InputTokens != 100 || reply.OutputTokens != 42 {
		t.Fatalf("unexpected token usage: %+v", reply)
	}
}

func TestHTTPPaidLLMCompleteReturnsErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewHTTPPaidLLM(srv.URL, "secret", nil, 0, 0)
	if _, err := c.Complete(context.Background(), "claude", nil); err == nil {
		t.Fatal("expected an error on a 429")
	}
}

func TestHTTPPaidLLMCompleteReturnsErrorOnEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(paidResponse{Content: nil})
	}))
	defer srv.Close()

	c := NewHTTPPaidLLM(srv.URL, "secret", nil, 0, 0)
	if _, err := c.Complete(context.Background(), "claude", nil); err == nil {
		t.Fatal("expected an error on empty content blocks")
	}
}

func TestHTTPPaidLLMCompleteReturnsErrorOnUnreachableServer(t *testing.T) {
	c := NewHTTPPaidLLM("http://127.0.0.1:1", "secret", nil, 0, 0)
	if _, err := c.Complete(context.Background(), "claude", nil); err == nil {
		t.Fatal("expected an error when the backend is unreachable")
	}
}
