package provider

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ppiankov/kcal/internal/model"
)

const (
	kJPerKcal = 4.184

	offCompleteConfidence = 0.8
	offPartialConfidence  = 0.6
)

// OFFProvider queries the Open Food Facts product search
type OFFProvider struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

type offSearchResponse struct {
	Count    int          `json:"count"`
	Products []offProduct `json:"products"`
}

type offProduct struct {
	Code          string         `json:"code"`
	ProductName   string         `json:"product_name"`
	ProductNameEn string         `json:"product_name_en"`
	GenericName   string         `json:"generic_name"`
	Nutriments    map[string]any `json:"nutriments"`
}

// name returns the best available product name
func (p *offProduct) name() string {
	if p.ProductName != "" {
		return p.ProductName
	}
	if p.ProductNameEn != "" {
		return p.ProductNameEn
	}
	return p.GenericName
}

// NewOFFProvider creates a client. OFF asks every client to identify itself.
func NewOFFProvider(cfg model.OFFConfig, userAgent string, client *http.Client) *OFFProvider {
	if cfg.UserAgent != "" {
		userAgent = cfg.UserAgent
	}
	return &OFFProvider{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		userAgent: userAgent,
		client:    client,
	}
}

// Name returns the provider name
func (p *OFFProvider) Name() string {
	return "off"
}

// Source returns the entry source for OFF results
func (p *OFFProvider) Source() model.Source {
	return model.SourceOFF
}

// Query searches products in lang and returns the first one with energy data
func (p *OFFProvider) Query(ctx context.Context, name, lang string) (*RawResult, error) {
	q := url.Values{}
	q.Set("search_terms", name)
	q.Set("search_simple", "1")
	q.Set("action", "process")
	q.Set("json", "1")
	q.Set("page_size", "10")
	q.Set("fields", "code,product_name,product_name_en,generic_name,nutriments")
	if lang != "" {
		q.Set("lc", model.NormalizeLanguage(lang))
	}

	var resp offSearchResponse
	headers := map[string]string{"User-Agent": p.userAgent}
	if err := getJSON(ctx, p.client, p.baseURL+"/cgi/search.pl?"+q.Encode(), headers, &resp); err != nil {
		return nil, fmt.Errorf("off search %q: %w", name, err)
	}

	for _, product := range resp.Products {
		values, complete, ok := offValues(product.Nutriments)
		if !ok {
			continue
		}
		confidence := offCompleteConfidence
		if !complete {
			confidence = offPartialConfidence
		}
		return &RawResult{
			Provider:    p.Name(),
			Source:      model.SourceOFF,
			MatchedName: product.name(),
			Values:      values,
			Confidence:  confidence,
		}, nil
	}
	return nil, ErrMiss
}

// offValues reads per-100g nutriments. ok is false without energy; complete is
// false when any of protein, carbs or fat is missing.
func offValues(n map[string]any) (v model.Values, complete bool, ok bool) {
	if kcal, found := nutriment(n, "energy-kcal_100g"); found {
		v.Calories = kcal
	} else if kj, found := nutriment(n, "energy-kj_100g"); found {
		v.Calories = kj / kJPerKcal
	} else if kj, found := nutriment(n, "energy_100g"); found {
		// energy_100g is always kJ
		v.Calories = kj / kJPerKcal
	} else {
		return v, false, false
	}

	complete = true
	for _, f := range []struct {
		key string
		dst *float64
	}{
		{"proteins_100g", &v.Protein},
		{"carbohydrates_100g", &v.Carbs},
		{"fat_100g", &v.Fat},
	} {
		val, found := nutriment(n, f.key)
		if !found {
			complete = false
			continue
		}
		*f.dst = val
	}
	v.Fiber, _ = nutriment(n, "fiber_100g")
	return v, complete, true
}

// nutriment coerces a nutriments value to float64. OFF mixes numbers and strings.
func nutriment(m map[string]any, key string) (float64, bool) {
	raw, ok := m[key]
	if !ok {
		return 0, false
	}
	var f float64
	switch x := raw.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
