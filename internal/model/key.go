package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CanonicalLanguage is the language providers and the reference table use
const CanonicalLanguage = "en"

// Key identifies a cache slot: a normalized food name in a language.
type Key struct {
	Name     string `json:"name"`
	Language string `json:"language"`
}

// NewKey normalizes name and language into a Key
func NewKey(name, language string) Key {
	return Key{
		Name:     Normalize(name),
		Language: NormalizeLanguage(language),
	}
}

// String returns "lang:name", the form used as a storage key
func (k Key) String() string {
	return k.Language + ":" + k.Name
}

// IsEmpty reports whether the key has no name
func (k Key) IsEmpty() bool {
	return k.Name == ""
}

// IsCanonical reports whether the key is already in the canonical language
func (k Key) IsCanonical() bool {
	return k.Language == CanonicalLanguage
}

// NormalizeLanguage lowercases a language code and drops any region suffix.
// An empty code means the canonical language.
func NormalizeLanguage(language string) string {
	lang := strings.ToLower(strings.TrimSpace(language))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if lang == "" {
		return CanonicalLanguage
	}
	return lang
}

// Normalize lowercases, trims, strips diacritics and punctuation, and collapses
// whitespace. "  Crème Brûlée! " and "creme brulee" normalize identically.
func Normalize(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}

	var b strings.Builder
	b.Grow(len(stripped))
	space := false
	for _, r := range strings.ToLower(stripped) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			// Punctuation separates words: "mac-and-cheese" -> "mac and cheese"
			space = true
		}
	}
	return b.String()
}
