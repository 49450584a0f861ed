package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ppiankov/kcal/internal/model"
)

// ImportRecord is one line of a JSONL import file.
// Values are per 100g. Source defaults to local_validated and confidence to 1.
type ImportRecord struct {
	Name        string       `json:"name"`
	Language    string       `json:"language"`
	Values      model.Values `json:"values"`
	Source      model.Source `json:"source,omitempty"`
	Confidence  *float64     `json:"confidence,omitempty"`
	ValidatedAt time.Time    `json:"last_validated_at,omitzero"`
}

// ImportResult summarizes an import
type ImportResult struct {
	Imported int
	Skipped  int
	Errors   []error
}

// Import reads JSONL records from r and writes them to s.
// Malformed lines are skipped and reported; the import continues.
func Import(ctx context.Context, s Store, r io.Reader, now time.Time) (*ImportResult, error) {
	result := &ImportResult{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec ImportRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Errorf("line %d: %w", line, err))
			continue
		}

		entry, err := rec.entry(now)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Errorf("line %d: %w", line, err))
			continue
		}

		if err := s.Put(ctx, entry); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		result.Imported++
	}
	if err := sc.Err(); err != nil {
		return result, fmt.Errorf("scan import: %w", err)
	}
	return result, nil
}

func (r ImportRecord) entry(now time.Time) (model.Entry, error) {
	key := model.NewKey(r.Name, r.Language)
	if key.IsEmpty() {
		return model.Entry{}, fmt.Errorf("record has empty name")
	}

	v := r.Values
	if v.Calories < 0 || v.Protein < 0 || v.Carbs < 0 || v.Fat < 0 || v.Fiber < 0 {
		return model.Entry{}, fmt.Errorf("%s: negative nutrient value", key)
	}

	source := r.Source
	if source == "" {
		source = model.SourceLocalValidated
	}
	confidence := 1.0
	if r.Confidence != nil {
		confidence = *r.Confidence
	}
	if confidence < 0 || confidence > 1 {
		return model.Entry{}, fmt.Errorf("%s: confidence %v outside [0,1]", key, confidence)
	}

	validatedAt := r.ValidatedAt
	if validatedAt.IsZero() {
		validatedAt = now
	}

	return model.Entry{
		Key:             key,
		Values:          v,
		Source:          source,
		Confidence:      confidence,
		LastValidatedAt: validatedAt,
	}, nil
}

// Export writes every entry in s to w in the format Import reads
func Export(ctx context.Context, s Store, w io.Writer) (int, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	enc := json.NewEncoder(w)
	for i, e := range entries {
		confidence := e.Confidence
		rec := ImportRecord{
			Name:        e.Key.Name,
			Language:    e.Key.Language,
			Values:      e.Values,
			Source:      e.Source,
			Confidence:  &confidence,
			ValidatedAt: e.LastValidatedAt,
		}
		if err := enc.Encode(rec); err != nil {
			return i, fmt.Errorf("encode entry %s: %w", e.Key, err)
		}
	}
	return len(entries), nil
}
