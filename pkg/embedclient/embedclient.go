// Package embedclient implements the embedding-generation backend
// named in spec.md §6: an Ollama-compatible HTTP API,
// POST <base>/api/embeddings body {model, prompt} -> {embedding: []float}.
package embedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
)

// Client is an Ollama-compatible embedding backend.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
}

// New creates a Client. httpClient should already carry the process's
// configured timeout (and, optionally, an otelhttp-wrapped
// transport); a nil httpClient falls back to http.DefaultClient.
func New(baseURL, model string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, model: model, http: httpClient}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Generate converts text to a vector. It returns (nil, false) rather
// than an error if the backend is unreachable, times out, or returns
// a non-2xx or malformed body — per spec.md §4.2, callers treat an
// unavailable embedding backend as "try again next batch", not as a
// fatal error.
func (c *Client) Generate(ctx context.Context, text string) ([]float32, bool) {
	body, err := json.Marshal(embedRequest{Model: c.model, Prompt: text})
	if err != nil {
		return nil, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, false
	}
	if len(decoded.Embedding) == 0 {
		return nil, false
	}

	out := make([]float32, len(decoded.Embedding))
	for i, v := range decoded.Embedding {
		out[i] = float32(v)
	}
	return out, true
}
