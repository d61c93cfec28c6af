package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ChatClient wraps an OpenAI-compatible API client.
type ChatClient struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

// NewChatClient creates a client for an OpenAI-compatible API. An empty
// baseURL keeps the library default.
func NewChatClient(baseURL, apiKey, modelName string, timeout time.Duration) *ChatClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	config.HTTPClient = newHTTPClient()
	return &ChatClient{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		timeout: timeout,
	}
}

// Model returns the model name sent with every request.
func (c *ChatClient) Model() string { return c.model }

// Generate sends prompt as a single user message and returns the first
// choice.
func (c *ChatClient) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", serviceError(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoResponse
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("chat completion", "model", c.model, "tokens", resp.Usage.TotalTokens)
	return raw, nil
}

// Ping checks that the API is reachable and the credentials are accepted.
func (c *ChatClient) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("ping llm: %w", serviceError(err))
	}
	return nil
}

func serviceError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ServiceError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ServiceError{StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return &ServiceError{Err: err}
}
