package translate

import (
	"context"
	"fmt"

	"github.com/ppiankov/kcal/internal/llm"
	"github.com/ppiankov/kcal/internal/model"
)

const translateSystemPrompt = `You translate food names into English for a nutrition database lookup.
Answer with JSON: {"name": "<english food name>"}.
Use the plain generic name a food database would use (e.g. "chicken breast", "white rice").
If the input is not a food, answer {"name": ""}.`

// LLMTranslator asks a language model for the English name
type LLMTranslator struct {
	provider llm.Provider
}

// NewLLMTranslator creates a translator backed by provider
func NewLLMTranslator(provider llm.Provider) *LLMTranslator {
	return &LLMTranslator{provider: provider}
}

// Name returns the translator name
func (t *LLMTranslator) Name() string {
	return "llm:" + t.provider.Name()
}

// Translate asks the model and normalizes its answer
func (t *LLMTranslator) Translate(ctx context.Context, name, sourceLang string) (string, error) {
	resp, err := t.provider.Complete(ctx, llm.CompletionRequest{
		System:    translateSystemPrompt,
		Prompt:    fmt.Sprintf("Language: %s\nFood: %s", model.NormalizeLanguage(sourceLang), name),
		MaxTokens: 50,
		JSON:      true,
	})
	if err != nil {
		return "", fmt.Errorf("translate %q: %w", name, err)
	}

	var answer struct {
		Name string `json:"name"`
	}
	if err := llm.DecodeJSON(resp.Text, &answer); err != nil {
		return "", fmt.Errorf("translate %q: %w", name, err)
	}

	en := model.Normalize(answer.Name)
	if en == "" {
		return "", fmt.Errorf("llm %s: %w", name, ErrNoTranslation)
	}
	return en, nil
}
