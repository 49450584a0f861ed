package provider

import (
	"context"
	"fmt"
	"math"

	"github.com/ppiankov/kcal/internal/llm"
	"github.com/ppiankov/kcal/internal/model"
)

// MaxEstimateConfidence caps what a generative estimate may claim
const MaxEstimateConfidence = 0.6

const estimateSystemPrompt = `You are a nutrition database. Estimate typical nutrition values per 100 grams of the named food.
Answer with JSON only:
{"known": true, "calories": <kcal>, "protein": <g>, "carbs": <g>, "fat": <g>, "fiber": <g>, "confidence": <0..1>}
If the input is not a food you recognise, answer {"known": false}.`

type estimate struct {
	Known      bool     `json:"known"`
	Calories   *float64 `json:"calories"`
	Protein    float64  `json:"protein"`
	Carbs      float64  `json:"carbs"`
	Fat        float64  `json:"fat"`
	Fiber      float64  `json:"fiber"`
	Confidence float64  `json:"confidence"`
}

// LLMEstimator asks a language model for a per-100g estimate
type LLMEstimator struct {
	provider llm.Provider
}

// NewLLMEstimator creates an estimator over provider
func NewLLMEstimator(provider llm.Provider) *LLMEstimator {
	return &LLMEstimator{provider: provider}
}

// Name returns the provider name
func (e *LLMEstimator) Name() string {
	return "llm"
}

// Source returns the entry source for estimates
func (e *LLMEstimator) Source() model.Source {
	return model.SourceLLMEstimated
}

// Query asks for an estimate. Self-reported confidence is capped.
func (e *LLMEstimator) Query(ctx context.Context, name, lang string) (*RawResult, error) {
	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		System:    estimateSystemPrompt,
		Prompt:    fmt.Sprintf("Food (%s): %s", model.NormalizeLanguage(lang), name),
		MaxTokens: 150,
		JSON:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("llm estimate %q: %w", name, err)
	}

	var est estimate
	if err := llm.DecodeJSON(resp.Text, &est); err != nil {
		return nil, fmt.Errorf("llm estimate %q: %w", name, err)
	}
	if !est.Known || est.Calories == nil {
		return nil, ErrMiss
	}

	confidence := est.Confidence
	if confidence <= 0 || math.IsNaN(confidence) {
		confidence = MaxEstimateConfidence / 2
	}

	return &RawResult{
		Provider:    e.Name(),
		Source:      model.SourceLLMEstimated,
		MatchedName: name,
		Values: model.Values{
			Calories: *est.Calories,
			Protein:  est.Protein,
			Carbs:    est.Carbs,
			Fat:      est.Fat,
			Fiber:    est.Fiber,
		},
		Confidence: math.Min(confidence, MaxEstimateConfidence),
	}, nil
}
