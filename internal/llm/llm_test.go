package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGenerateClient(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"mistral","response":"- bullet one\n- bullet two","done":true}`))
	}))
	defer srv.Close()

	c := NewGenerateClient(srv.URL+"/api/generate", "mistral", time.Second)
	text, err := c.Generate(context.Background(), "summarize")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "- bullet one\n- bullet two" {
		t.Errorf("text = %q", text)
	}
	if got.Model != "mistral" || got.Prompt != "summarize" || got.Stream {
		t.Errorf("unexpected request body: %+v", got)
	}
	if c.Model() != "mistral" {
		t.Errorf("Model() = %q", c.Model())
	}
}

func TestGenerateClientErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantBody   string
		wantErr    error
	}{
		{"server error", http.StatusInternalServerError, "model not loaded\n", 500, "model not loaded", nil},
		{"not found", http.StatusNotFound, "", 404, "", nil},
		{"missing response field", http.StatusOK, `{"done":true}`, 0, "", ErrNoResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewGenerateClient(srv.URL, "m", time.Second).Generate(context.Background(), "p")
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			var se *ServiceError
			if !errors.As(err, &se) {
				t.Fatalf("expected *ServiceError, got %T", err)
			}
			if se.StatusCode != tt.wantStatus || se.Body != tt.wantBody {
				t.Errorf("ServiceError = {%d %q}, want {%d %q}", se.StatusCode, se.Body, tt.wantStatus, tt.wantBody)
			}
			if se.Connection() {
				t.Error("HTTP failure should not be reported as a connection failure")
			}
		})
	}
}

func TestGenerateClientConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewGenerateClient(url, "m", time.Second).Generate(context.Background(), "p")
	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("expected *ServiceError, got %v", err)
	}
	if !se.Connection() {
		t.Errorf("expected connection failure, got status %d", se.StatusCode)
	}
}

func TestGenerateClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewGenerateClient(srv.URL, "m", 50*time.Millisecond).Generate(context.Background(), "p")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func chatServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("expected a single user message, got %+v", req.Messages)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestChatClient(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{
		"id": "c1", "object": "chat.completion", "model": "gpt",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "insight"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 3, "completion_tokens": 1, "total_tokens": 4}
	}`)

	c := NewChatClient(srv.URL+"/v1", "key", "gpt", time.Second)
	text, err := c.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "insight" {
		t.Errorf("text = %q", text)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestChatClientErrors(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		srv := chatServer(t, http.StatusTooManyRequests, `{"error":{"message":"rate limited","type":"requests"}}`)
		_, err := NewChatClient(srv.URL+"/v1", "key", "gpt", time.Second).Generate(context.Background(), "p")
		var se *ServiceError
		if !errors.As(err, &se) {
			t.Fatalf("expected *ServiceError, got %v", err)
		}
		if se.StatusCode != http.StatusTooManyRequests || se.Body != "rate limited" {
			t.Errorf("ServiceError = {%d %q}", se.StatusCode, se.Body)
		}
	})

	t.Run("no choices", func(t *testing.T) {
		srv := chatServer(t, http.StatusOK, `{"id":"c1","object":"chat.completion","choices":[]}`)
		_, err := NewChatClient(srv.URL+"/v1", "key", "gpt", time.Second).Generate(context.Background(), "p")
		if !errors.Is(err, ErrNoResponse) {
			t.Errorf("err = %v, want ErrNoResponse", err)
		}
	})
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{"default provider", Config{URL: "http://localhost:11434/api/generate", Model: "mistral"}, "*llm.GenerateClient", false},
		{"generate", Config{Provider: "generate", URL: "http://x", Model: "m"}, "*llm.GenerateClient", false},
		{"openai", Config{Provider: "OpenAI", APIKey: "k", Model: "m"}, "*llm.ChatClient", false},
		{"generate without url", Config{Provider: "generate"}, "", true},
		{"unknown", Config{Provider: "bogus", URL: "http://x"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			switch g.(type) {
			case *GenerateClient:
				if tt.want != "*llm.GenerateClient" {
					t.Errorf("got GenerateClient, want %s", tt.want)
				}
			case *ChatClient:
				if tt.want != "*llm.ChatClient" {
					t.Errorf("got ChatClient, want %s", tt.want)
				}
			}
			if g.Model() != tt.cfg.Model {
				t.Errorf("Model() = %q, want %q", g.Model(), tt.cfg.Model)
			}
		})
	}
}

func TestServiceErrorMessage(t *testing.T) {
	tests := []struct {
		err  *ServiceError
		want string
	}{
		{&ServiceError{StatusCode: 500, Body: "boom"}, "llm service returned status 500: boom"},
		{&ServiceError{StatusCode: 502}, "llm service returned status 502"},
		{&ServiceError{Err: errors.New("dial tcp: refused")}, "llm service unreachable: dial tcp: refused"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
