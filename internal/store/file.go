package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/kcal/internal/model"
)

const entryExt = ".json"

// FileStore keeps one JSON file per key in a directory.
// Files are written to a temp file, synced, then renamed over the target, so
// a crash leaves either the previous record or the new one.
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at dir
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Get returns the entry for key or ErrNotFound
func (s *FileStore) Get(ctx context.Context, key model.Key) (*model.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read entry %s: %w", key, err)
	}

	var e model.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal entry %s: %w", key, err)
	}
	return &e, nil
}

// Put atomically replaces the file for the entry's key
func (s *FileStore) Put(ctx context.Context, e model.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateEntry(e); err != nil {
		return err
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	return writeFileAtomic(s.path(e.Key), data)
}

// Delete removes the file for key
func (s *FileStore) Delete(ctx context.Context, key model.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete entry %s: %w", key, err)
	}
	return nil
}

// List reads every entry in the directory, skipping unreadable files
func (s *FileStore) List(ctx context.Context) ([]model.Entry, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read store dir: %w", err)
	}

	var entries []model.Entry
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.IsDir() || !strings.HasSuffix(f.Name(), entryExt) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, f.Name()))
		if err != nil {
			continue
		}
		var e model.Entry
		if err := json.Unmarshal(data, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Key.Language != entries[j].Key.Language {
			return entries[i].Key.Language < entries[j].Key.Language
		}
		return entries[i].Key.Name < entries[j].Key.Name
	})
	return entries, nil
}

// Close is a no-op
func (s *FileStore) Close() error {
	return nil
}

// path hashes the key so any name maps to a safe file name
func (s *FileStore) path(key model.Key) string {
	sum := sha256.Sum256([]byte(key.String()))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+entryExt)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".entry-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
