// Package llm talks to the generative models kcal uses for food name
// translation and last-resort nutrient estimates.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/kcal/internal/model"
)

// Provider is a single-turn completion backend
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends one prompt and returns the model's answer
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Ping verifies credentials and reachability with the cheapest call the API offers
	Ping(ctx context.Context) error
}

// CompletionRequest contains the input for one completion
type CompletionRequest struct {
	System    string
	Prompt    string
	Model     string // overrides Config.Model
	MaxTokens int    // overrides Config.MaxTokens

	// JSON asks for a bare JSON object, natively where the API supports it
	JSON bool
}

// CompletionResponse contains the model output
type CompletionResponse struct {
	Text       string // trimmed
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	Provider  string // openai, anthropic, ollama, "" (disabled)
	Model     string
	APIKey    string
	BaseURL   string
	Timeout   time.Duration
	MaxTokens int
	HTTP      model.HTTPConfig
}

const (
	defaultTimeout   = 10 * time.Second
	defaultMaxTokens = 300

	// temperature is low: answers are lookups, not prose
	temperature = 0.1
)

func (c Config) maxTokens(req CompletionRequest) int {
	switch {
	case req.MaxTokens > 0:
		return req.MaxTokens
	case c.MaxTokens > 0:
		return c.MaxTokens
	}
	return defaultMaxTokens
}

func (c Config) model(req CompletionRequest, fallback string) string {
	switch {
	case req.Model != "":
		return req.Model
	case c.Model != "":
		return c.Model
	}
	return fallback
}

func (c Config) timeout(fallback time.Duration) time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return fallback
}

// DecodeJSON extracts the first JSON object from text into v.
// Models often wrap JSON in prose or code fences; anything outside the
// outermost braces is ignored.
func DecodeJSON(text string, v any) error {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return fmt.Errorf("no JSON object in response: %q", truncate(text, 80))
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return fmt.Errorf("unmarshal response JSON: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
