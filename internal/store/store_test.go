package store

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/kcal/internal/model"
)

var validatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func chickenEntry() model.Entry {
	return model.Entry{
		Key:             model.NewKey("chicken breast", "en"),
		Values:          model.Values{Calories: 165, Protein: 31, Fat: 3.6},
		Source:          model.SourceUSDA,
		Confidence:      0.95,
		LastValidatedAt: validatedAt,
	}
}

// backends runs fn against every Store implementation
func backends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()

	t.Run("sqlite", func(t *testing.T) {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "kcal.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})

	t.Run("file", func(t *testing.T) {
		s, err := NewFileStore(filepath.Join(t.TempDir(), "entries"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
}

func TestStore_PutGet(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		want := chickenEntry()

		require.NoError(t, s.Put(ctx, want))

		got, err := s.Get(ctx, model.NewKey("Chicken Breast", "EN"))
		require.NoError(t, err)
		assert.Equal(t, want.Values, got.Values)
		assert.Equal(t, want.Source, got.Source)
		assert.Equal(t, want.Confidence, got.Confidence)
		assert.True(t, want.LastValidatedAt.Equal(got.LastValidatedAt))
	})
}

func TestStore_GetMissing(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		_, err := s.Get(context.Background(), model.NewKey("dragon fruit", "en"))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_LanguageIsPartOfKey(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		e := chickenEntry()
		e.Key = model.NewKey("pollo", "es")
		require.NoError(t, s.Put(ctx, e))

		_, err := s.Get(ctx, model.NewKey("pollo", "en"))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_PutReplaces(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		e := chickenEntry()
		require.NoError(t, s.Put(ctx, e))

		e.Values.Calories = 170
		e.Source = model.SourceOFF
		require.NoError(t, s.Put(ctx, e))

		got, err := s.Get(ctx, e.Key)
		require.NoError(t, err)
		assert.Equal(t, 170.0, got.Values.Calories)
		assert.Equal(t, model.SourceOFF, got.Source)

		all, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}

func TestStore_Delete(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		e := chickenEntry()
		require.NoError(t, s.Put(ctx, e))

		require.NoError(t, s.Delete(ctx, e.Key))
		_, err := s.Get(ctx, e.Key)
		assert.ErrorIs(t, err, ErrNotFound)

		assert.ErrorIs(t, s.Delete(ctx, e.Key), ErrNotFound)
	})
}

func TestStore_ListOrdered(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, k := range []model.Key{
			model.NewKey("rice", "en"),
			model.NewKey("apple", "en"),
			model.NewKey("arroz", "es"),
		} {
			e := chickenEntry()
			e.Key = k
			require.NoError(t, s.Put(ctx, e))
		}

		all, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "en:apple", all[0].Key.String())
		assert.Equal(t, "en:rice", all[1].Key.String())
		assert.Equal(t, "es:arroz", all[2].Key.String())
	})
}

func TestStore_RejectsInvalidEntries(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		e := chickenEntry()
		e.Key = model.Key{Language: "en"}
		assert.Error(t, s.Put(ctx, e))

		e = chickenEntry()
		e.Source = "guess"
		assert.Error(t, s.Put(ctx, e))
	})
}

func TestStore_ConcurrentPutsAreNotTorn(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		key := model.NewKey("oats", "en")

		var wg sync.WaitGroup
		for i := 1; i <= 20; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				v := float64(n)
				// Every field carries the same marker so a torn record is detectable
				_ = s.Put(ctx, model.Entry{
					Key:             key,
					Values:          model.Values{Calories: v, Protein: v, Carbs: v, Fat: v, Fiber: v},
					Source:          model.SourceOFF,
					Confidence:      0.8,
					LastValidatedAt: validatedAt,
				})
			}(i)
		}
		wg.Wait()

		got, err := s.Get(ctx, key)
		require.NoError(t, err)
		v := got.Values
		assert.Equal(t, v.Calories, v.Protein)
		assert.Equal(t, v.Calories, v.Carbs)
		assert.Equal(t, v.Calories, v.Fat)
		assert.Equal(t, v.Calories, v.Fiber)
	})
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kcal.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, chickenEntry()))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, chickenEntry().Key)
	require.NoError(t, err)
	assert.Equal(t, 165.0, got.Values.Calories)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(model.StoreConfig{Backend: "sqlite", Path: filepath.Join(dir, "a.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	s.Close()

	s, err = Open(model.StoreConfig{Backend: "file", Path: filepath.Join(dir, "entries")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)
	s.Close()

	_, err = Open(model.StoreConfig{Backend: "redis", Path: dir})
	assert.Error(t, err)
}

func TestGate(t *testing.T) {
	tests := []struct {
		name       string
		source     model.Source
		confidence float64
		wantErr    error
	}{
		{"confident provider result", model.SourceUSDA, 0.95, nil},
		{"exactly at threshold", model.SourceOFF, 0.75, nil},
		{"weak estimate", model.SourceLLMEstimated, 0.6, ErrNotPromotable},
		{"inconsistent provider result", model.SourceOFF, 0.4, ErrNotPromotable},
		{"user supplied entry", model.SourceLocalValidated, 0.5, nil},
		{"static row", model.SourceStatic, 1.0, ErrNotPromotable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner, err := NewFileStore(t.TempDir())
			require.NoError(t, err)
			g := NewGate(inner, 0.75)

			e := chickenEntry()
			e.Source = tt.source
			e.Confidence = tt.confidence

			err = g.Put(context.Background(), e)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				_, getErr := inner.Get(context.Background(), e.Key)
				assert.ErrorIs(t, getErr, ErrNotFound, "rejected entry must not reach the store")
				return
			}
			require.NoError(t, err)
			_, err = inner.Get(context.Background(), e.Key)
			assert.NoError(t, err)
		})
	}
}

func TestImportExport(t *testing.T) {
	ctx := context.Background()
	src, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	input := strings.Join([]string{
		`{"name": "Grandma's Soup", "language": "en", "values": {"calories": 60, "protein": 3, "carbs": 8, "fat": 2}}`,
		``,
		`{not json}`,
		`{"name": "", "values": {"calories": 10}}`,
		`{"name": "tarta", "language": "es", "values": {"calories": 300, "protein": 5, "carbs": 40, "fat": 14}, "confidence": 0.9, "source": "manual"}`,
		`{"name": "bad", "values": {"calories": -1}}`,
	}, "\n")

	res, err := Import(ctx, src, strings.NewReader(input), validatedAt)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 3, res.Skipped)
	assert.Len(t, res.Errors, 3)

	// Apostrophes split words during normalization
	soup, err := src.Get(ctx, model.NewKey("grandma s soup", "en"))
	require.NoError(t, err)
	assert.Equal(t, model.SourceLocalValidated, soup.Source)
	assert.Equal(t, 1.0, soup.Confidence)

	var buf bytes.Buffer
	n, err := Export(ctx, src, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	dst, err := NewSQLiteStore(filepath.Join(t.TempDir(), "kcal.db"))
	require.NoError(t, err)
	defer dst.Close()

	res, err = Import(ctx, dst, &buf, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)

	tarta, err := dst.Get(ctx, model.NewKey("tarta", "es"))
	require.NoError(t, err)
	assert.Equal(t, model.SourceManual, tarta.Source)
	assert.Equal(t, 0.9, tarta.Confidence)
	assert.True(t, validatedAt.Equal(tarta.LastValidatedAt), "export keeps the validation time")
}
