package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/kcal/internal/model"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS entries (
    name TEXT NOT NULL,
    language TEXT NOT NULL,
    calories REAL NOT NULL,
    protein REAL NOT NULL,
    carbs REAL NOT NULL,
    fat REAL NOT NULL,
    fiber REAL NOT NULL,
    source TEXT NOT NULL,
    confidence REAL NOT NULL,
    last_validated_at TEXT NOT NULL,
    PRIMARY KEY (language, name)
);
`

const upsertSQL = `
INSERT INTO entries (name, language, calories, protein, carbs, fat, fiber, source, confidence, last_validated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (language, name) DO UPDATE SET
    calories = excluded.calories,
    protein = excluded.protein,
    carbs = excluded.carbs,
    fat = excluded.fat,
    fiber = excluded.fiber,
    source = excluded.source,
    confidence = excluded.confidence,
    last_validated_at = excluded.last_validated_at
`

const selectColumns = `name, language, calories, protein, carbs, fat, fiber, source, confidence, last_validated_at`

// SQLiteStore keeps entries in a single SQLite table
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	// Pragmas in the DSN apply to every pooled connection
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Get returns the entry for key or ErrNotFound
func (s *SQLiteStore) Get(ctx context.Context, key model.Key) (*model.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM entries WHERE language = ? AND name = ?`,
		key.Language, key.Name)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry %s: %w", key, err)
	}
	return e, nil
}

// Put inserts or replaces the entry for its key in one transaction
func (s *SQLiteStore) Put(ctx context.Context, e model.Entry) error {
	if err := validateEntry(e); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, upsertSQL,
		e.Key.Name, e.Key.Language,
		e.Values.Calories, e.Values.Protein, e.Values.Carbs, e.Values.Fat, e.Values.Fiber,
		string(e.Source), e.Confidence, e.LastValidatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert entry %s: %w", e.Key, err)
	}

	return tx.Commit()
}

// Delete removes the entry for key; deleting a missing key returns ErrNotFound
func (s *SQLiteStore) Delete(ctx context.Context, key model.Key) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM entries WHERE language = ? AND name = ?`, key.Language, key.Name)
	if err != nil {
		return fmt.Errorf("delete entry %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entry %s: %w", key, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns every entry ordered by language, then name
func (s *SQLiteStore) List(ctx context.Context) ([]model.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM entries ORDER BY language, name`)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []model.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*model.Entry, error) {
	var (
		e           model.Entry
		source      string
		validatedAt string
	)
	err := row.Scan(
		&e.Key.Name, &e.Key.Language,
		&e.Values.Calories, &e.Values.Protein, &e.Values.Carbs, &e.Values.Fat, &e.Values.Fiber,
		&source, &e.Confidence, &validatedAt)
	if err != nil {
		return nil, err
	}
	e.Source = model.Source(source)

	t, err := time.Parse(time.RFC3339Nano, validatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse last_validated_at %q: %w", validatedAt, err)
	}
	e.LastValidatedAt = t
	return &e, nil
}
