package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestAnthropic(t *testing.T, handler http.HandlerFunc) *AnthropicProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	return provider
}

func TestAnthropicProvider_Complete_Success(t *testing.T) {
	provider := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Expected path /v1/messages, got %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("Expected x-api-key header test-key, got %s", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != anthropicVersion {
			t.Errorf("Expected anthropic-version header, got %s", r.Header.Get("anthropic-version"))
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if !strings.HasPrefix(req.System, "Translate food names.") || !strings.Contains(req.System, "JSON") {
			t.Errorf("Expected JSON instruction appended to system prompt, got %q", req.System)
		}
		if req.Model != anthropicModel {
			t.Errorf("Expected default model, got %s", req.Model)
		}
		if req.MaxTokens != defaultMaxTokens {
			t.Errorf("Expected default max tokens, got %d", req.MaxTokens)
		}

		_, _ = w.Write([]byte(`{
			"content": [{"type": "text", "text": "{\"name\": "}, {"type": "text", "text": "\"chicken\"}"}],
			"model": "claude-3-5-haiku-20241022",
			"usage": {"input_tokens": 40, "output_tokens": 12}
		}`))
	})

	resp, err := provider.Complete(context.Background(), CompletionRequest{
		System: "Translate food names.",
		Prompt: "pollo",
		JSON:   true,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if resp.Text != `{"name": "chicken"}` {
		t.Errorf("Expected text blocks to be joined, got %s", resp.Text)
	}
	if resp.TokensUsed != 52 {
		t.Errorf("Unexpected token usage: %d", resp.TokensUsed)
	}
}

func TestAnthropicProvider_Complete_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		status  int
	}{
		{"overloaded", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(529)
			_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "overloaded_error", "message": "Overloaded"}}`))
		}, 529},
		{"empty content", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"content": [], "model": "claude"}`))
		}, 0},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{malformed json`))
		}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newTestAnthropic(t, tt.handler)

			_, err := provider.Complete(context.Background(), CompletionRequest{Prompt: "pollo"})
			if err == nil {
				t.Fatal("Expected error, got nil")
			}

			var apiErr *APIError
			if tt.status != 0 {
				if !errors.As(err, &apiErr) || apiErr.StatusCode != tt.status {
					t.Errorf("Expected APIError with status %d, got %v", tt.status, err)
				}
			} else if errors.As(err, &apiErr) {
				t.Errorf("Expected a non-API error, got %v", err)
			}
		})
	}
}

func TestAnthropicProvider_Ping(t *testing.T) {
	fail := false
	provider := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error": {"type": "authentication_error", "message": "invalid x-api-key"}}`))
			return
		}
		var req anthropicRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.MaxTokens != 1 {
			t.Errorf("Expected a one-token ping, got max_tokens %d", req.MaxTokens)
		}
		_, _ = w.Write([]byte(`{"content": [{"type": "text", "text": "p"}]}`))
	})

	if err := provider.Ping(context.Background()); err != nil {
		t.Errorf("Expected ping to succeed, got %v", err)
	}

	fail = true
	err := provider.Ping(context.Background())
	if err == nil || !strings.Contains(err.Error(), "invalid x-api-key") {
		t.Errorf("Expected authentication error, got %v", err)
	}
}
