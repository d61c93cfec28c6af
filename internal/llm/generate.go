package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// maxErrorBody caps how much of a failed response body is kept.
const maxErrorBody = 4096

// GenerateClient calls a native generate endpoint with a non-streaming
// request.
type GenerateClient struct {
	url     string
	model   string
	timeout time.Duration
	http    *http.Client
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response *string `json:"response"`
}

// NewGenerateClient creates a client for the endpoint at url.
func NewGenerateClient(url, modelName string, timeout time.Duration) *GenerateClient {
	return &GenerateClient{
		url:     url,
		model:   modelName,
		timeout: timeout,
		http:    newHTTPClient(),
	}
}

// Model returns the model name sent with every request.
func (c *GenerateClient) Model() string { return c.model }

// Generate posts prompt and returns the "response" field of the reply.
func (c *GenerateClient) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{Model: c.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", fmt.Errorf("encode generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", &ServiceError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &ServiceError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &ServiceError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode generate response: %w", err)}
	}
	slog.Debug("generate response", "model", c.model, "elapsed", time.Since(start))

	if out.Response == nil {
		return "", ErrNoResponse
	}
	return *out.Response, nil
}
