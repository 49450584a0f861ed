package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/kcal/internal/llm"
	"github.com/ppiankov/kcal/internal/model"
)

const usdaChickenResponse = `{
  "totalHits": 2,
  "foods": [
    {
      "fdcId": 2646170,
      "description": "Chicken nuggets, frozen",
      "dataType": "Branded",
      "foodNutrients": [
        {"nutrientId": 1008, "unitName": "KCAL", "value": 280},
        {"nutrientId": 1003, "unitName": "G", "value": 14},
        {"nutrientId": 1004, "unitName": "G", "value": 18},
        {"nutrientId": 1005, "unitName": "G", "value": 16}
      ]
    },
    {
      "fdcId": 171077,
      "description": "Chicken, broilers or fryers, breast, meat only, cooked, roasted",
      "dataType": "SR Legacy",
      "foodNutrients": [
        {"nutrientId": 1008, "unitName": "KCAL", "value": 165},
        {"nutrientId": 1003, "unitName": "G", "value": 31.02},
        {"nutrientId": 1004, "unitName": "G", "value": 3.57},
        {"nutrientId": 1005, "unitName": "G", "value": 0},
        {"nutrientId": 1079, "unitName": "G", "value": 0}
      ]
    }
  ]
}`

func TestUSDAProvider_Query(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/foods/search" {
			t.Errorf("Expected path /v1/foods/search, got %s", r.URL.Path)
		}
		if r.URL.Query().Get("query") != "chicken" {
			t.Errorf("Expected query chicken, got %s", r.URL.Query().Get("query"))
		}
		if r.URL.Query().Get("api_key") != "DEMO_KEY" {
			t.Errorf("Expected demo key without configured key, got %s", r.URL.Query().Get("api_key"))
		}
		_, _ = w.Write([]byte(usdaChickenResponse))
	}))
	defer server.Close()

	p := NewUSDAProvider(model.USDAConfig{BaseURL: server.URL}, server.Client())
	res, err := p.Query(context.Background(), "chicken", "en")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if res.Values.Calories != 165 || res.Values.Protein != 31.02 {
		t.Errorf("expected the SR Legacy breast entry, got %+v (%s)", res.Values, res.MatchedName)
	}
	if res.Confidence != usdaCuratedConfidence {
		t.Errorf("expected curated confidence, got %v", res.Confidence)
	}
	if res.Source != model.SourceUSDA {
		t.Errorf("expected usda source, got %s", res.Source)
	}
}

func TestUSDAProvider_Miss(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalHits": 0, "foods": []}`))
	}))
	defer server.Close()

	p := NewUSDAProvider(model.USDAConfig{BaseURL: server.URL, APIKey: "k"}, server.Client())
	if _, err := p.Query(context.Background(), "xyz unknown food", "en"); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss, got %v", err)
	}
}

func TestUSDAValues_EnergyFallbacks(t *testing.T) {
	tests := []struct {
		nutrients []usdaNutrient
		want      float64
		ok        bool
		desc      string
	}{
		{[]usdaNutrient{{NutrientID: 2047, Value: 120}}, 120, true, "Atwater energy"},
		{[]usdaNutrient{{NutrientID: 1062, Value: 418.4}}, 100, true, "kJ energy"},
		{[]usdaNutrient{{NutrientID: 1008, UnitName: "kJ", Value: 836.8}}, 200, true, "1008 reported in kJ"},
		{[]usdaNutrient{{NutrientID: 1003, Value: 10}}, 0, false, "no energy"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			v, ok := usdaValues(tt.nutrients)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && (v.Calories-tt.want > 1e-9 || tt.want-v.Calories > 1e-9) {
				t.Errorf("calories = %v, want %v", v.Calories, tt.want)
			}
		})
	}
}

func TestOFFProvider_Query(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cgi/search.pl" {
			t.Errorf("Expected path /cgi/search.pl, got %s", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "kcal-test") {
			t.Errorf("Expected custom user agent, got %s", r.Header.Get("User-Agent"))
		}
		if r.URL.Query().Get("lc") != "es" {
			t.Errorf("Expected lc=es, got %s", r.URL.Query().Get("lc"))
		}
		_, _ = w.Write([]byte(`{
			"count": 2,
			"products": [
				{"product_name": "Mystery", "nutriments": {}},
				{"product_name": "Yogur natural", "nutriments": {
					"energy-kj_100g": 251,
					"proteins_100g": "3.5",
					"carbohydrates_100g": 4.7,
					"fat_100g": 3.2,
					"fiber_100g": 0
				}}
			]
		}`))
	}))
	defer server.Close()

	p := NewOFFProvider(model.OFFConfig{BaseURL: server.URL}, "kcal-test/1.0", server.Client())
	res, err := p.Query(context.Background(), "yogur", "es")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if res.MatchedName != "Yogur natural" {
		t.Errorf("expected the product with energy data, got %s", res.MatchedName)
	}
	if got := res.Values.Calories; got < 59.9 || got > 60.1 {
		t.Errorf("expected ~60 kcal from kJ, got %v", got)
	}
	if res.Values.Protein != 3.5 {
		t.Errorf("expected string nutriment parsed, got %v", res.Values.Protein)
	}
	if res.Confidence != offCompleteConfidence {
		t.Errorf("expected complete confidence, got %v", res.Confidence)
	}
}

func TestOFFValues_Partial(t *testing.T) {
	v, complete, ok := offValues(map[string]any{"energy-kcal_100g": 250.0, "fat_100g": 10.0})
	if !ok {
		t.Fatal("expected ok with energy present")
	}
	if complete {
		t.Error("expected incomplete without protein and carbs")
	}
	if v.Calories != 250 || v.Fat != 10 {
		t.Errorf("unexpected values %+v", v)
	}

	if _, _, ok := offValues(map[string]any{"fat_100g": "abc"}); ok {
		t.Error("expected not ok without energy")
	}
}

func TestOFFProvider_Miss(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count": 0, "products": []}`))
	}))
	defer server.Close()

	p := NewOFFProvider(model.OFFConfig{BaseURL: server.URL}, "kcal-test", server.Client())
	if _, err := p.Query(context.Background(), "xyz", "en"); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss, got %v", err)
	}
}

func TestGetJSON_RetriesTransientFailures(t *testing.T) {
	var sleeps []time.Duration
	orig := retrySleepFunc
	retrySleepFunc = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	defer func() { retrySleepFunc = orig }()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	if err := getJSON(context.Background(), server.Client(), server.URL, nil, &out); err != nil {
		t.Fatalf("getJSON failed: %v", err)
	}
	if !out.OK {
		t.Error("expected decoded body")
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
	if len(sleeps) != 2 || sleeps[1] != 2*sleeps[0] {
		t.Errorf("expected doubling backoff, got %v", sleeps)
	}
}

func TestGetJSON_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	var out map[string]any
	err := getJSON(context.Background(), server.Client(), server.URL, nil, &out)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single call, got %d", calls.Load())
	}
}

func TestGetJSON_NotFoundIsMiss(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	var out map[string]any
	if err := getJSON(context.Background(), server.Client(), server.URL, nil, &out); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss, got %v", err)
	}
}

// MockLLM implements llm.Provider for testing
type MockLLM struct {
	text string
	err  error
}

func (m *MockLLM) Name() string { return "mock" }

func (m *MockLLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &llm.CompletionResponse{Text: m.text}, nil
}

func (m *MockLLM) Ping(ctx context.Context) error { return nil }

func TestLLMEstimator_Query(t *testing.T) {
	tests := []struct {
		text           string
		wantErr        error
		wantConfidence float64
		desc           string
	}{
		{`{"known": true, "calories": 250, "protein": 10, "carbs": 30, "fat": 10, "confidence": 0.9}`, nil, MaxEstimateConfidence, "confidence is capped"},
		{`{"known": true, "calories": 250, "protein": 10, "carbs": 30, "fat": 10, "confidence": 0.4}`, nil, 0.4, "lower confidence kept"},
		{`{"known": true, "calories": 250, "protein": 10, "carbs": 30, "fat": 10}`, nil, MaxEstimateConfidence / 2, "missing confidence"},
		{`{"known": false}`, ErrMiss, 0, "unknown food"},
		{`{"known": true}`, ErrMiss, 0, "no calories"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			e := NewLLMEstimator(&MockLLM{text: tt.text})
			res, err := e.Query(context.Background(), "grandma soup", "en")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if res.Confidence != tt.wantConfidence {
				t.Errorf("confidence = %v, want %v", res.Confidence, tt.wantConfidence)
			}
			if res.Source != model.SourceLLMEstimated {
				t.Errorf("expected llm_estimated source, got %s", res.Source)
			}
		})
	}
}

func TestLLMEstimator_TransportError(t *testing.T) {
	e := NewLLMEstimator(&MockLLM{err: errors.New("connection refused")})
	_, err := e.Query(context.Background(), "soup", "en")
	if err == nil || errors.Is(err, ErrMiss) {
		t.Errorf("expected a transport error, got %v", err)
	}
}

func TestBuild(t *testing.T) {
	cfg := model.DefaultConfig()

	providers, err := Build(cfg, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(providers) != 2 || providers[0].Name() != "usda" || providers[1].Name() != "off" {
		t.Errorf("expected usda, off without an LLM, got %d providers", len(providers))
	}

	providers, err = Build(cfg, &MockLLM{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(providers) != 3 || providers[2].Name() != "llm" {
		t.Errorf("expected llm last, got %d providers", len(providers))
	}

	cfg.Providers.Order = []string{"off", "bogus"}
	if _, err := Build(cfg, nil); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNewLimiter_PublicQuotas(t *testing.T) {
	cfg := model.DefaultConfig()

	l := NewLimiter(cfg)
	if q := l.Quota("usda"); q.PerSecond >= 0.01 {
		t.Errorf("expected the DEMO_KEY hourly quota without an API key, got %+v", q)
	}
	if q := l.Quota("off"); q.PerSecond > 10.0/60 {
		t.Errorf("expected the OFF search quota, got %+v", q)
	}
	if q := l.Quota("llm"); q.PerSecond != cfg.Providers.RequestsPerSecond {
		t.Errorf("expected the configured default for llm, got %+v", q)
	}

	cfg.Providers.USDA.APIKey = "real-key"
	l = NewLimiter(cfg)
	if q := l.Quota("usda"); q.PerSecond != cfg.Providers.RequestsPerSecond {
		t.Errorf("expected the configured default with an API key, got %+v", q)
	}
}
