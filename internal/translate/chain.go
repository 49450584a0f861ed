package translate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/kcal/internal/cache"
	"github.com/ppiankov/kcal/internal/model"
)

// Chain tries translators in order and memoizes successful answers
type Chain struct {
	translators []Translator
	memo        *cache.TTLCache
}

// NewChain creates a chain; a non-positive ttl defaults to one day
func NewChain(ttl time.Duration, translators ...Translator) *Chain {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Chain{
		translators: translators,
		memo:        cache.NewTTLCache(ttl, 2*ttl),
	}
}

// Name returns the chain name
func (c *Chain) Name() string {
	return "chain"
}

// Translate returns the first translator's answer.
// Names already in the canonical language are returned unchanged.
func (c *Chain) Translate(ctx context.Context, name, sourceLang string) (string, error) {
	key := model.NewKey(name, sourceLang)
	if key.IsCanonical() {
		return key.Name, nil
	}
	if en, ok := c.memo.Get(key.String()); ok {
		return en, nil
	}

	var errs []error
	for _, t := range c.translators {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		en, err := t.Translate(ctx, key.Name, key.Language)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		c.memo.Set(key.String(), en)
		return en, nil
	}

	if len(errs) == 0 {
		return "", fmt.Errorf("translate %s: %w", key, ErrNoTranslation)
	}
	return "", fmt.Errorf("translate %s: %w", key, errors.Join(errs...))
}
