// Package llm talks to the text-generation endpoint that turns prompts into
// insights. Two providers are supported: a native generate endpoint
// ({model, prompt, stream} in, {response} out) and any OpenAI-compatible
// chat completions API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Provider names accepted by New.
const (
	ProviderGenerate = "generate"
	ProviderOpenAI   = "openai"
)

// DefaultTimeout bounds a single generation call.
const DefaultTimeout = 120 * time.Second

// ErrNoResponse is returned when the endpoint answered 200 but carried no
// generated text.
var ErrNoResponse = errors.New("no response returned")

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// ServiceError reports a failure at the inference boundary. StatusCode is
// zero when the request never got an HTTP response.
type ServiceError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *ServiceError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("llm service returned status %d: %s", e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("llm service returned status %d", e.StatusCode)
	case e.Err != nil:
		return "llm service unreachable: " + e.Err.Error()
	default:
		return "llm service error"
	}
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Connection reports whether the request failed before a response arrived.
func (e *ServiceError) Connection() bool { return e.StatusCode == 0 }

// Config selects and configures a Generator.
type Config struct {
	Provider string
	URL      string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// New returns the Generator for cfg.Provider. An empty provider selects the
// native generate endpoint.
func New(cfg Config) (Generator, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderGenerate:
		if cfg.URL == "" {
			return nil, errors.New("llm url is required for the generate provider")
		}
		return NewGenerateClient(cfg.URL, cfg.Model, cfg.Timeout), nil
	case ProviderOpenAI:
		return NewChatClient(cfg.URL, cfg.APIKey, cfg.Model, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func newHTTPClient() *http.Client {
	return &http.Client{Transport: http.DefaultTransport}
}
