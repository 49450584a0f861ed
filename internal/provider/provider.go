// Package provider queries external nutrition databases in a fixed order.
package provider

import (
	"context"
	"errors"

	"github.com/ppiankov/kcal/internal/model"
)

var (
	// ErrMiss is returned by a provider that answered but does not know the food
	ErrMiss = errors.New("provider miss")
	// ErrNotFound is returned by the waterfall when providers answered but none had the food
	ErrNotFound = errors.New("food not found")
	// ErrUnavailable is returned by the waterfall when no provider could give an answer
	ErrUnavailable = errors.New("no provider available")
)

// RawResult is an unvalidated per-100g answer from one provider
type RawResult struct {
	Provider    string       `json:"provider"`
	Source      model.Source `json:"source"`
	MatchedName string       `json:"matched_name"`
	Values      model.Values `json:"values"`
	Confidence  float64      `json:"confidence"`
}

// Provider is one external nutrition source
type Provider interface {
	Name() string
	Source() model.Source
	// Query returns per-100g values for name, ErrMiss, or a transport error
	Query(ctx context.Context, name, lang string) (*RawResult, error)
}
