package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/kcal/internal/util"
)

const (
	ollamaBaseURL = "http://localhost:11434"

	// Local models on modest hardware answer slowly
	ollamaTimeout = 30 * time.Second
)

// OllamaProvider implements Provider for models served by a local Ollama
type OllamaProvider struct {
	api     endpoint
	baseURL string
	config  Config
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	System  string        `json:"system,omitempty"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
}

type ollamaTags struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = ollamaBaseURL
	}

	return &OllamaProvider{
		api: endpoint{
			provider:    "ollama",
			client:      util.NewHTTPClient(config.timeout(ollamaTimeout), config.HTTP),
			decodeError: decodeOllamaError,
		},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		config:  config,
	}, nil
}

// Name returns the provider name
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// Ping checks the server is up and the configured model has been pulled
func (p *OllamaProvider) Ping(ctx context.Context) error {
	var tags ollamaTags
	if err := p.api.get(ctx, p.baseURL+"/api/tags", &tags); err != nil {
		return fmt.Errorf("ollama at %s: %w", p.baseURL, err)
	}

	want := p.config.Model
	if want == "" {
		return nil
	}
	for _, m := range tags.Models {
		// "llama3.1" matches "llama3.1:latest"
		if m.Name == want || strings.HasPrefix(m.Name, want+":") {
			return nil
		}
	}
	return fmt.Errorf("ollama model %s is not pulled (run: ollama pull %s)", want, want)
}

// Complete generates a non-streaming answer
func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := p.config.model(req, "")
	if model == "" {
		return nil, fmt.Errorf("ollama model must be specified (e.g., llama3.1:8b, mistral)")
	}

	apiReq := ollamaRequest{
		Model:  model,
		Prompt: req.Prompt,
		System: req.System,
		Options: ollamaOptions{
			Temperature: temperature,
			NumPredict:  p.config.maxTokens(req),
		},
	}
	if req.JSON {
		apiReq.Format = "json"
	}

	var resp ollamaResponse
	if err := p.api.post(ctx, p.baseURL+"/api/generate", apiReq, &resp); err != nil {
		return nil, fmt.Errorf("ollama generate: %w", err)
	}

	text := strings.TrimSpace(resp.Response)
	tokens := resp.PromptEvalCount + resp.EvalCount
	if tokens == 0 {
		// Some models report no counts; about 4 characters per token
		tokens = (len(req.Prompt) + len(text)) / 4
	}

	return &CompletionResponse{
		Text:       text,
		Model:      resp.Model,
		TokensUsed: tokens,
	}, nil
}

func decodeOllamaError(body []byte) (string, string) {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil {
		return "", ""
	}
	return "", e.Error
}
