package store

import (
	"context"
	"fmt"

	"github.com/ppiankov/kcal/internal/model"
)

// Gate wraps a Store and refuses to persist uncertain entries.
// Entries the user supplied (local_validated, manual) bypass the threshold.
type Gate struct {
	Store
	threshold float64
}

// NewGate returns a Store that rejects entries below threshold with ErrNotPromotable
func NewGate(s Store, threshold float64) *Gate {
	return &Gate{Store: s, threshold: threshold}
}

// Promotable reports whether e may be written to durable storage
func (g *Gate) Promotable(e model.Entry) bool {
	switch e.Source {
	case model.SourceLocalValidated, model.SourceManual:
		return true
	case model.SourceStatic:
		// The bundled table is never copied into the store
		return false
	}
	return e.Confidence >= g.threshold
}

// Put persists e if it is promotable
func (g *Gate) Put(ctx context.Context, e model.Entry) error {
	if !g.Promotable(e) {
		return fmt.Errorf("put %s (source %s, confidence %.2f): %w", e.Key, e.Source, e.Confidence, ErrNotPromotable)
	}
	return g.Store.Put(ctx, e)
}
