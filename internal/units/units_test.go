package units

import (
	"math"
	"testing"
)

func TestToGrams(t *testing.T) {
	tests := []struct {
		quantity float64
		unit     string
		want     float64
		desc     string
	}{
		{150, "g", 150, "grams pass through"},
		{150, "G", 150, "unit lookup is case-insensitive"},
		{2, " kg ", 2000, "whitespace is trimmed"},
		{1, "grams", 1, "plural alias"},
		{500, "mg", 0.5, "milligrams"},
		{1, "lb", 453.59237, "pounds"},
		{250, "ml", 250, "water density for volume"},
		{1, "l", 1000, "litres"},
		{2, "pieces", 200, "piece alias uses default weight"},
		{3, "handful", 300, "unknown unit falls back to piece weight"},
		{1, "", 100, "empty unit falls back to piece weight"},
		{0, "g", 0, "zero quantity"},
		{-5, "g", 0, "negative quantity is treated as zero"},
		{math.NaN(), "g", 0, "NaN quantity is treated as zero"},
		{math.Inf(1), "g", 0, "infinite quantity is treated as zero"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got := ToGrams(tt.quantity, tt.unit)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ToGrams(%v, %q) = %v, want %v", tt.quantity, tt.unit, got, tt.want)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	u, ok := Lookup("Tablespoons")
	if !ok {
		t.Fatal("expected tablespoons to resolve")
	}
	if u.Kind != KindVolume {
		t.Errorf("expected volume kind, got %s", u.Kind)
	}

	if _, ok := Lookup("furlong"); ok {
		t.Error("expected unknown unit to miss")
	}
}
