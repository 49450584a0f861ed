// Package validate scores provider results before they are used or persisted.
package validate

import (
	"errors"
	"fmt"
	"math"

	"github.com/ppiankov/kcal/internal/model"
)

// ErrInvalid is returned for values that cannot describe real food.
// Callers treat it like a miss.
var ErrInvalid = errors.New("invalid nutrition values")

// Energy factors in kcal per gram
const (
	kcalPerGramProtein = 4
	kcalPerGramCarbs   = 4
	kcalPerGramFat     = 9
)

// Result is the outcome of validating one set of per-100g values
type Result struct {
	Values     model.Values
	Confidence float64 // min(provider confidence, consistency cap)
	Accepted   bool
	Consistent bool
	Expected   float64 // kcal implied by the macros
	RelErr     float64
	Reason     string
}

// Validator checks macro-to-energy consistency and range sanity
type Validator struct {
	thresholds model.ThresholdConfig
}

// NewValidator creates a validator with the given thresholds
func NewValidator(thresholds model.ThresholdConfig) *Validator {
	return &Validator{thresholds: thresholds}
}

// Validate scores per-100g values reported with providerConfidence.
// Rejected values return ErrInvalid; everything else is accepted, with the
// confidence capped when energy and macros disagree.
func (v *Validator) Validate(values model.Values, providerConfidence float64) (Result, error) {
	if err := v.checkRange(values); err != nil {
		return Result{Values: values, Reason: err.Error()}, fmt.Errorf("validate: %w", err)
	}

	expected := kcalPerGramProtein*values.Protein + kcalPerGramCarbs*values.Carbs + kcalPerGramFat*values.Fat
	relErr := math.Abs(values.Calories-expected) / math.Max(values.Calories, 1)

	confidence := clamp01(providerConfidence)
	result := Result{
		Values:     values,
		Accepted:   true,
		Consistent: true,
		Expected:   expected,
		RelErr:     relErr,
	}

	if relErr > v.thresholds.Tolerance {
		result.Consistent = false
		result.Reason = fmt.Sprintf("calories %.0f disagree with macros (expected %.0f, off by %.0f%%)",
			values.Calories, expected, relErr*100)
		confidence = math.Min(confidence, v.thresholds.LowConfidenceCap)
	}

	result.Confidence = confidence
	return result, nil
}

func (v *Validator) checkRange(values model.Values) error {
	fields := []struct {
		name  string
		value float64
	}{
		{"calories", values.Calories},
		{"protein", values.Protein},
		{"carbs", values.Carbs},
		{"fat", values.Fat},
		{"fiber", values.Fiber},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%s is not finite: %w", f.name, ErrInvalid)
		}
		if f.value < 0 {
			return fmt.Errorf("%s is negative (%v): %w", f.name, f.value, ErrInvalid)
		}
	}

	if mass := values.Protein + values.Carbs + values.Fat; mass > 100 {
		return fmt.Errorf("macros sum to %.1fg per 100g: %w", mass, ErrInvalid)
	}

	ceiling := v.thresholds.CalorieCeiling
	if values.Calories > ceiling {
		expected := kcalPerGramProtein*values.Protein + kcalPerGramCarbs*values.Carbs + kcalPerGramFat*values.Fat
		if expected < ceiling*(1-v.thresholds.Tolerance) {
			return fmt.Errorf("%.0f kcal per 100g is not explained by macros: %w", values.Calories, ErrInvalid)
		}
	}
	return nil
}

// Promotable reports whether confidence is high enough to persist an entry
func (v *Validator) Promotable(confidence float64) bool {
	return confidence >= v.thresholds.Promotion
}

// NeedsVerification reports whether a result should be flagged to the user
func (v *Validator) NeedsVerification(confidence float64) bool {
	return confidence < v.thresholds.Verification
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return math.Max(0, math.Min(1, x))
}
