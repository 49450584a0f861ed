package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ppiankov/kcal/internal/model"
)

// FoodData Central nutrient ids
const (
	usdaNutrientEnergy        = 1008 // kcal
	usdaNutrientEnergyAtwater = 2047 // kcal, general Atwater factors
	usdaNutrientEnergyKJ      = 1062 // kJ
	usdaNutrientProtein       = 1003
	usdaNutrientFat           = 1004
	usdaNutrientCarbohydrate  = 1005
	usdaNutrientFiber         = 1079
)

const (
	usdaDemoKey            = "DEMO_KEY"
	usdaCuratedConfidence  = 0.95
	usdaStandardConfidence = 0.85
)

// USDAProvider queries USDA FoodData Central
type USDAProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type usdaSearchResponse struct {
	TotalHits int        `json:"totalHits"`
	Foods     []usdaFood `json:"foods"`
}

type usdaFood struct {
	FdcID         int            `json:"fdcId"`
	Description   string         `json:"description"`
	DataType      string         `json:"dataType"`
	FoodNutrients []usdaNutrient `json:"foodNutrients"`
}

type usdaNutrient struct {
	NutrientID int     `json:"nutrientId"`
	UnitName   string  `json:"unitName"`
	Value      float64 `json:"value"`
}

// NewUSDAProvider creates a client; an empty apiKey uses the rate-limited demo key
func NewUSDAProvider(cfg model.USDAConfig, client *http.Client) *USDAProvider {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = usdaDemoKey
	}
	return &USDAProvider{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

// Name returns the provider name
func (p *USDAProvider) Name() string {
	return "usda"
}

// Source returns the entry source for USDA results
func (p *USDAProvider) Source() model.Source {
	return model.SourceUSDA
}

// Query searches for name and returns the best-matching food.
// USDA data is English only; lang is ignored.
func (p *USDAProvider) Query(ctx context.Context, name, lang string) (*RawResult, error) {
	q := url.Values{}
	q.Set("query", name)
	q.Set("pageSize", "10")
	q.Set("dataType", "Foundation,SR Legacy,Survey (FNDDS),Branded")
	q.Set("api_key", p.apiKey)

	var resp usdaSearchResponse
	if err := getJSON(ctx, p.client, p.baseURL+"/v1/foods/search?"+q.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("usda search %q: %w", name, err)
	}

	food, ok := bestUSDAMatch(resp.Foods, name)
	if !ok {
		return nil, ErrMiss
	}

	values, _ := usdaValues(food.FoodNutrients)
	confidence := usdaStandardConfidence
	if isCuratedUSDA(food.DataType) {
		confidence = usdaCuratedConfidence
	}

	return &RawResult{
		Provider:    p.Name(),
		Source:      model.SourceUSDA,
		MatchedName: food.Description,
		Values:      values,
		Confidence:  confidence,
	}, nil
}

// bestUSDAMatch prefers curated data whose description starts with the query.
// Foods without an energy value are skipped.
func bestUSDAMatch(foods []usdaFood, query string) (usdaFood, bool) {
	q := model.Normalize(query)
	best, bestScore := usdaFood{}, -1

	for _, f := range foods {
		if _, ok := usdaValues(f.FoodNutrients); !ok {
			continue
		}
		score := 0
		if isCuratedUSDA(f.DataType) {
			score += 2
		}
		if strings.HasPrefix(model.Normalize(f.Description), q) {
			score += 3
		}
		// Ties keep the API's relevance order
		if score > bestScore {
			best, bestScore = f, score
		}
	}
	return best, bestScore >= 0
}

func isCuratedUSDA(dataType string) bool {
	return dataType == "Foundation" || dataType == "SR Legacy"
}

// usdaValues extracts per-100g values; ok is false without any energy figure
func usdaValues(nutrients []usdaNutrient) (model.Values, bool) {
	var (
		v                          model.Values
		kcal, atwater, kj          float64
		hasKcal, hasAtwater, hasKJ bool
	)
	for _, n := range nutrients {
		switch n.NutrientID {
		case usdaNutrientEnergy:
			if strings.EqualFold(n.UnitName, "kJ") {
				kj, hasKJ = n.Value, true
			} else {
				kcal, hasKcal = n.Value, true
			}
		case usdaNutrientEnergyAtwater:
			atwater, hasAtwater = n.Value, true
		case usdaNutrientEnergyKJ:
			kj, hasKJ = n.Value, true
		case usdaNutrientProtein:
			v.Protein = n.Value
		case usdaNutrientFat:
			v.Fat = n.Value
		case usdaNutrientCarbohydrate:
			v.Carbs = n.Value
		case usdaNutrientFiber:
			v.Fiber = n.Value
		}
	}

	switch {
	case hasKcal:
		v.Calories = kcal
	case hasAtwater:
		v.Calories = atwater
	case hasKJ:
		v.Calories = kj / kJPerKcal
	default:
		return v, false
	}
	return v, true
}
