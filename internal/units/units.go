// Package units converts a quantity in a free-text unit into grams.
package units

import (
	"math"
	"strings"
)

// DefaultPieceWeight is the assumed weight in grams of one unit we do not know.
// Producing some estimate is always better than refusing.
const DefaultPieceWeight = 100.0

// Kind classifies a unit
type Kind string

const (
	KindMass   Kind = "mass"
	KindVolume Kind = "volume"
	KindPiece  Kind = "piece"
)

// Unit describes how one unit converts to grams.
// Volume units assume the density of water.
type Unit struct {
	Kind    Kind
	ToGrams float64
}

var unitTable = map[string]Unit{
	// mass (base = g)
	"mg": {Kind: KindMass, ToGrams: 0.001},
	"g":  {Kind: KindMass, ToGrams: 1},
	"kg": {Kind: KindMass, ToGrams: 1000},
	"oz": {Kind: KindMass, ToGrams: 28.349523125},
	"lb": {Kind: KindMass, ToGrams: 453.59237},

	// volume (base = ml, 1 g/ml)
	"ml":    {Kind: KindVolume, ToGrams: 1},
	"cl":    {Kind: KindVolume, ToGrams: 10},
	"dl":    {Kind: KindVolume, ToGrams: 100},
	"l":     {Kind: KindVolume, ToGrams: 1000},
	"tsp":   {Kind: KindVolume, ToGrams: 4.92892159375},
	"tbsp":  {Kind: KindVolume, ToGrams: 14.78676478125},
	"cup":   {Kind: KindVolume, ToGrams: 236.5882365},
	"fl-oz": {Kind: KindVolume, ToGrams: 29.5735295625},

	// countable
	"piece":   {Kind: KindPiece, ToGrams: DefaultPieceWeight},
	"serving": {Kind: KindPiece, ToGrams: DefaultPieceWeight},
	"slice":   {Kind: KindPiece, ToGrams: 30},
}

var aliases = map[string]string{
	"gram": "g", "grams": "g", "gr": "g", "gramm": "g", "gramos": "g", "grammes": "g",
	"milligram": "mg", "milligrams": "mg",
	"kilogram": "kg", "kilograms": "kg", "kilo": "kg", "kilos": "kg",
	"ounce": "oz", "ounces": "oz",
	"pound": "lb", "pounds": "lb", "lbs": "lb",
	"milliliter": "ml", "milliliters": "ml", "millilitre": "ml", "millilitres": "ml",
	"liter": "l", "liters": "l", "litre": "l", "litres": "l",
	"teaspoon": "tsp", "teaspoons": "tsp",
	"tablespoon": "tbsp", "tablespoons": "tbsp",
	"cups": "cup",
	"floz": "fl-oz", "fl oz": "fl-oz", "fluid ounce": "fl-oz", "fluid ounces": "fl-oz",
	"pc": "piece", "pcs": "piece", "pieces": "piece", "unit": "piece", "units": "piece", "each": "piece",
	"servings": "serving", "portion": "serving", "portions": "serving",
	"slices": "slice",
}

// Lookup resolves a unit name case-insensitively, following aliases
func Lookup(unit string) (Unit, bool) {
	u := strings.ToLower(strings.TrimSpace(unit))
	u = strings.TrimSuffix(u, ".")
	if canonical, ok := aliases[u]; ok {
		u = canonical
	}
	def, ok := unitTable[u]
	return def, ok
}

// ToGrams converts quantity in unit to grams.
// A negative, NaN or infinite quantity is a caller error and yields 0.
// An unknown unit is treated as a piece of DefaultPieceWeight grams.
func ToGrams(quantity float64, unit string) float64 {
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) || quantity < 0 {
		return 0
	}
	def, ok := Lookup(unit)
	if !ok {
		return quantity * DefaultPieceWeight
	}
	return quantity * def.ToGrams
}
