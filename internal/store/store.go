// Package store is the durable, per-key store of validated nutrition entries.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/kcal/internal/model"
)

var (
	// ErrNotFound is returned when no entry exists for a key
	ErrNotFound = errors.New("entry not found")
	// ErrNotPromotable is returned when an entry is too uncertain to persist
	ErrNotPromotable = errors.New("entry below promotion threshold")
)

// Store persists per-100g entries keyed by (normalized name, language).
// A Put replaces the record for its key atomically: readers see the old
// record or the new one, never a mix. There is no cross-key transaction.
type Store interface {
	Get(ctx context.Context, key model.Key) (*model.Entry, error)
	Put(ctx context.Context, entry model.Entry) error
	Delete(ctx context.Context, key model.Key) error
	List(ctx context.Context) ([]model.Entry, error)
	Close() error
}

// Open creates the backend selected in cfg.
// An empty path resolves to a location under ~/.kcal.
func Open(cfg model.StoreConfig) (Store, error) {
	path := cfg.Path
	if path == "" {
		var err error
		path, err = DefaultPath(cfg.Backend)
		if err != nil {
			return nil, err
		}
	}

	switch cfg.Backend {
	case "sqlite", "":
		return NewSQLiteStore(path)
	case "file":
		return NewFileStore(path)
	default:
		return nil, fmt.Errorf("unknown store backend: %s (supported: sqlite, file)", cfg.Backend)
	}
}

// DefaultPath returns the store location used when none is configured
func DefaultPath(backend string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	dir := filepath.Join(home, ".kcal")
	if backend == "file" {
		return filepath.Join(dir, "entries"), nil
	}
	return filepath.Join(dir, "kcal.db"), nil
}

func validateEntry(e model.Entry) error {
	if e.Key.IsEmpty() {
		return fmt.Errorf("entry has empty key")
	}
	if !e.Source.Valid() {
		return fmt.Errorf("entry %s has unknown source %q", e.Key, e.Source)
	}
	return nil
}
