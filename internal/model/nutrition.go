package model

import (
	"math"
	"time"
)

// Values holds the five tracked nutrients.
// Stored and reference values are always per 100 grams; resolved values are
// for the requested portion. The two forms are never mixed in a cache.
type Values struct {
	Calories float64 `json:"calories" yaml:"calories"` // kcal
	Protein  float64 `json:"protein" yaml:"protein"`   // grams
	Carbs    float64 `json:"carbs" yaml:"carbs"`       // grams
	Fat      float64 `json:"fat" yaml:"fat"`           // grams
	Fiber    float64 `json:"fiber" yaml:"fiber"`       // grams
}

// Scale returns the values for the given portion weight, assuming v is per 100g.
// Calories are rounded to the nearest integer, macros to one decimal place.
func (v Values) Scale(grams float64) Values {
	factor := grams / 100
	return Values{
		Calories: math.Round(v.Calories * factor),
		Protein:  round1(v.Protein * factor),
		Carbs:    round1(v.Carbs * factor),
		Fat:      round1(v.Fat * factor),
		Fiber:    round1(v.Fiber * factor),
	}
}

// IsZero reports whether all nutrients are zero
func (v Values) IsZero() bool {
	return v == Values{}
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

// Source identifies where a nutrition entry came from
type Source string

const (
	SourceStatic         Source = "static"          // Bundled reference table
	SourceLocalValidated Source = "local_validated" // Imported into the local store by the user
	SourceUSDA           Source = "usda"            // USDA FoodData Central
	SourceOFF            Source = "off"             // Open Food Facts
	SourceLLMEstimated   Source = "llm_estimated"   // Generative estimate
	SourceManual         Source = "manual"          // Terminal fallback, user must enter values
)

// Valid reports whether s is one of the known sources
func (s Source) Valid() bool {
	switch s {
	case SourceStatic, SourceLocalValidated, SourceUSDA, SourceOFF, SourceLLMEstimated, SourceManual:
		return true
	}
	return false
}

// Entry is a stored, per-100g nutrition record.
// Entries with Source == SourceLLMEstimated and a confidence below the
// promotion threshold never reach the persistent store.
type Entry struct {
	Key             Key       `json:"key"`
	Values          Values    `json:"values"`
	Source          Source    `json:"source"`
	Confidence      float64   `json:"confidence"`
	LastValidatedAt time.Time `json:"last_validated_at"`
}

// IsStale reports whether the entry is older than ttl.
// Static entries never go stale; a non-positive ttl disables expiry.
func (e Entry) IsStale(now time.Time, ttl time.Duration) bool {
	if e.Source == SourceStatic || ttl <= 0 {
		return false
	}
	return now.Sub(e.LastValidatedAt) > ttl
}

// Status describes how a resolution ended
type Status string

const (
	StatusResolved    Status = "resolved"    // Values came from some tier
	StatusNotFound    Status = "not_found"   // Every tier answered, none had the food
	StatusUnavailable Status = "unavailable" // Every provider failed to answer
	StatusCancelled   Status = "cancelled"   // Caller abandoned the request
)

// Resolution is what callers of the engine receive
type Resolution struct {
	Values            Values  `json:"values"`
	Source            Source  `json:"source"`
	Confidence        float64 `json:"confidence"`
	NeedsVerification bool    `json:"needs_verification"`
	Status            Status  `json:"status"`
	Grams             float64 `json:"grams"`
}

// NewResolution scales a per-100g entry to the requested weight
func NewResolution(e Entry, grams float64, verificationThreshold float64) Resolution {
	return Resolution{
		Values:            e.Values.Scale(grams),
		Source:            e.Source,
		Confidence:        e.Confidence,
		NeedsVerification: e.Confidence < verificationThreshold,
		Status:            StatusResolved,
		Grams:             grams,
	}
}

// Placeholder returns the low-confidence result used when no tier could answer.
// The caller is expected to fall back to manual entry.
func Placeholder(status Status, grams float64) Resolution {
	return Resolution{
		Source:            SourceManual,
		Confidence:        0,
		NeedsVerification: true,
		Status:            status,
		Grams:             grams,
	}
}
