// Package reference holds the bundled table of common foods.
// Values are per 100 grams. The table is read-only and needs no I/O after init.
package reference

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/kcal/internal/model"
)

//go:embed foods.json
var foodsJSON []byte

type food struct {
	Name     string  `json:"name"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
	Fiber    float64 `json:"fiber"`
}

// Table is an immutable name -> per-100g values index
type Table struct {
	values map[string]model.Values
	names  []string // sorted
}

// Default is the table built from the embedded dataset
var Default = mustLoad(foodsJSON)

func mustLoad(data []byte) *Table {
	t, err := Load(data)
	if err != nil {
		panic(fmt.Sprintf("reference: load embedded foods: %v", err))
	}
	return t
}

// Load builds a table from a JSON array of foods.
// Names are normalized so lookups use the same form as cache keys.
func Load(data []byte) (*Table, error) {
	var foods []food
	if err := json.Unmarshal(data, &foods); err != nil {
		return nil, fmt.Errorf("unmarshal foods: %w", err)
	}

	t := &Table{values: make(map[string]model.Values, len(foods))}
	for _, f := range foods {
		name := model.Normalize(f.Name)
		if name == "" {
			continue
		}
		if _, dup := t.values[name]; !dup {
			t.names = append(t.names, name)
		}
		t.values[name] = model.Values{
			Calories: f.Calories,
			Protein:  f.Protein,
			Carbs:    f.Carbs,
			Fat:      f.Fat,
			Fiber:    f.Fiber,
		}
	}
	sort.Strings(t.names)
	return t, nil
}

// LookupExact returns the values for an already-normalized name
func (t *Table) LookupExact(normalizedName string) (model.Values, bool) {
	v, ok := t.values[normalizedName]
	return v, ok
}

// Entry returns the table row as a static, never-expiring entry
func (t *Table) Entry(key model.Key) (model.Entry, bool) {
	v, ok := t.values[key.Name]
	if !ok {
		return model.Entry{}, false
	}
	return model.Entry{
		Key:        key,
		Values:     v,
		Source:     model.SourceStatic,
		Confidence: 1.0,
	}, true
}

// Search returns up to maxResults names containing query.
// Prefix matches come first; each group is alphabetical so autocomplete output
// is deterministic. An empty query returns the first names alphabetically.
func (t *Table) Search(query string, maxResults int) []string {
	if maxResults <= 0 {
		return nil
	}

	q := model.Normalize(query)
	if q == "" {
		n := min(maxResults, len(t.names))
		out := make([]string, n)
		copy(out, t.names[:n])
		return out
	}

	var prefix, substring []string
	for _, name := range t.names {
		switch {
		case strings.HasPrefix(name, q):
			prefix = append(prefix, name)
		case strings.Contains(name, q):
			substring = append(substring, name)
		}
	}

	out := append(prefix, substring...)
	if len(out) > maxResults {
		out = out[:maxResults]
	}
	return out
}

// Names returns all names in alphabetical order
func (t *Table) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Len returns the number of foods in the table
func (t *Table) Len() int {
	return len(t.names)
}
