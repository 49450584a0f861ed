// Package translate maps food names in other languages to the canonical
// English name used by providers and the reference table.
package translate

import (
	"context"
	"errors"
)

// ErrNoTranslation is returned when a translator does not know a name
var ErrNoTranslation = errors.New("no translation")

// Translator converts a normalized food name from sourceLang to English.
// Implementations return a normalized name or an error; a failure is never
// fatal to a resolution.
type Translator interface {
	Name() string
	Translate(ctx context.Context, name, sourceLang string) (string, error)
}
