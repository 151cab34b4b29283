// Package chatclient implements the two chat-shaped backends named in
// spec.md §6: a local Ollama-compatible chat API (used by filter and
// prioritise) and a paid remote chat-completion API (used by write and
// review).
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/loopwire/feedback-pipeline/pkg/resilience"
)

// ChatMessage is one turn in a chat-style prompt.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatReply is the local chat backend's response.
type ChatReply struct {
	Content          string
	PromptEvalCount  int
	EvalCount        int
}

// ChatBackend is the local-model chat contract used by the filter and
// prioritise agents.
type ChatBackend interface {
	Chat(ctx context.Context, model string, messages []ChatMessage) (ChatReply, bool)
}

// OllamaChat is the Ollama-compatible HTTP implementation of
// ChatBackend: POST <base>/api/chat, body {model, messages, stream:false}.
// Calls are throttled through a token bucket so a burst of
// filter/prioritise calls cannot hammer the backend.
type OllamaChat struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
}

// NewOllamaChat creates an OllamaChat client. ratePerSecond/burst of
// zero disables throttling (an unlimited limiter). A circuit breaker
// trips after a run of consecutive failures so a wedged Ollama
// instance fails fast instead of being hammered with timeouts on
// every filter/prioritise call.
func NewOllamaChat(baseURL string, httpClient *http.Client, ratePerSecond float64, burst int) *OllamaChat {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	var limiter *rate.Limiter
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}
	return &OllamaChat{
		baseURL: baseURL,
		http:    httpClient,
		limiter: limiter,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
	}
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type ollamaChatMessageResp struct {
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message         ollamaChatMessageResp `json:"message"`
	EvalCount       int                   `json:"eval_count"`
	PromptEvalCount int                   `json:"prompt_eval_count"`
}

// Chat calls the local chat backend. It returns (reply, false) on any
// unreachable/timeout/non-2xx/malformed-body failure — per spec.md
// §4.3/§4.5, callers are responsible for fail-open or fallback policy,
// this client only reports whether the call succeeded.
func (c *OllamaChat) Chat(ctx context.Context, model string, messages []ChatMessage) (ChatReply, bool) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return ChatReply{}, false
		}
	}

	body, err := json.Marshal(ollamaChatRequest{Model: model, Messages: messages, Stream: false})
	if err != nil {
		return ChatReply{}, false
	}

	var decoded ollamaChatResponse
	err = c.breaker.Call(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("chatclient: ollama status %d", resp.StatusCode)
		}

		return json.NewDecoder(resp.Body).Decode(&decoded)
	})
	if err != nil {
		return ChatReply{}, false
	}

	return ChatReply{
		Content:         decoded.Message.Content,
		PromptEvalCount: decoded.PromptEvalCount,
		EvalCount:       decoded.EvalCount,
	}, true
}

// PaidReply is the paid backend's response: the completion text plus
// reported token usage.
type PaidReply struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// PaidLLM is the remote billed chat-completion contract used by the
// write and review agents.
type PaidLLM interface {
	Complete(ctx context.Context, model string, messages []ChatMessage) (PaidReply, error)
}

// HTTPPaidLLM is a direct net/http implementation of PaidLLM. No
// vendor SDK in the retrieval pack covers this exact
// content[0].text / usage.{input_tokens,output_tokens} shape, so this
// is hand-rolled in the same style as the other narrow HTTP adapters
// in this module.
type HTTPPaidLLM struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

func NewHTTPPaidLLM(baseURL, apiKey string, httpClient *http.Client, ratePerSecond float64, burst int) *HTTPPaidLLM {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	var limiter *rate.Limiter
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}
	return &HTTPPaidLLM{baseURL: baseURL, apiKey: apiKey, http: httpClient, limiter: limiter}
}

type paidRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

type paidContentBlock struct {
	Text string `json:"text"`
}

type paidUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type paidResponse struct {
	Content []paidContentBlock `json:"content"`
	Usage   paidUsage          `json:"usage"`
}

// Complete calls the paid completion backend. Unlike ChatBackend, a
// failure here is returned as an error: the write/review agents must
// distinguish "backend failed, no tokens spent" from "backend
// succeeded but parsing failed, tokens were spent" (spec.md §4.6/§4.7),
// which requires an explicit error rather than a bare bool.
func (c *HTTPPaidLLM) Complete(ctx context.Context, model string, messages []ChatMessage) (PaidReply, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return PaidReply{}, fmt.Errorf("chatclient: rate limiter: %w", err)
		}
	}

	body, err := json.Marshal(paidRequest{Model: model, Messages: messages})
	if err != nil {
		return PaidReply{}, fmt.Errorf("chatclient: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return PaidReply{}, fmt.Errorf("chatclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return PaidReply{}, fmt.Errorf("chatclient: paid llm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return PaidReply{}, fmt.Errorf("chatclient: paid llm status %d", resp.StatusCode)
	}

	var decoded paidResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return PaidReply{}, fmt.Errorf("chatclient: decode response: %w", err)
	}
	if len(decoded.Content) == 0 {
		return PaidReply{}, fmt.Errorf("chatclient: empty content in response")
	}

	return PaidReply{
		Text:         decoded.Content[0].Text,
		InputTokens:  decoded.Usage.InputTokens,
		OutputTokens: decoded.Usage.OutputTokens,
	}, nil
}
