package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/kcal/internal/model"
)

// NewProvider creates the configured provider.
// An empty provider name disables the LLM and returns nil, nil.
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)
	case "anthropic", "claude":
		return NewAnthropicProvider(config)
	case "ollama":
		return NewOllamaProvider(config)
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}

// ConfigFromModel converts the llm and http config sections
func ConfigFromModel(llmConfig model.LLMConfig, httpConfig model.HTTPConfig) Config {
	return Config{
		Provider:  llmConfig.Provider,
		Model:     llmConfig.Model,
		APIKey:    llmConfig.APIKey,
		BaseURL:   llmConfig.BaseURL,
		Timeout:   time.Duration(llmConfig.Timeout) * time.Second,
		MaxTokens: llmConfig.MaxTokens,
		HTTP:      httpConfig,
	}
}
