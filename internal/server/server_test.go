package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/kcal/internal/cache"
	"github.com/ppiankov/kcal/internal/model"
	"github.com/ppiankov/kcal/internal/resolver"
)

// MockEngine implements Engine for testing
type MockEngine struct {
	mu      sync.Mutex
	queries []resolver.Query
	maxSeen int
}

func (m *MockEngine) Resolve(ctx context.Context, q resolver.Query) model.Resolution {
	m.mu.Lock()
	m.queries = append(m.queries, q)
	m.mu.Unlock()

	if q.Name == "chicken" {
		return model.NewResolution(model.Entry{
			Values:     model.Values{Calories: 165, Protein: 31, Fat: 3.6},
			Source:     model.SourceStatic,
			Confidence: 1,
		}, q.Quantity, 0.6)
	}
	return model.Placeholder(model.StatusNotFound, q.Quantity)
}

func (m *MockEngine) Suggest(query string, maxResults int) []string {
	m.mu.Lock()
	m.maxSeen = maxResults
	m.mu.Unlock()
	if query == "zzz" {
		return nil
	}
	return []string{"chicken", "chickpeas"}[:min(2, maxResults)]
}

func (m *MockEngine) Stats() cache.Stats {
	return cache.Stats{Entries: 3, Hits: 10, Misses: 2}
}

func do(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestResolve(t *testing.T) {
	engine := &MockEngine{}
	s := New(engine, nil)

	rec := do(t, s, "/v1/resolve?name=chicken&qty=150&unit=g&lang=en")
	require.Equal(t, http.StatusOK, rec.Code)

	var body ResolutionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 248.0, body.Calories)
	assert.Equal(t, 46.5, body.Protein)
	assert.Equal(t, 5.4, body.Fat)
	assert.Equal(t, model.SourceStatic, body.Source)
	assert.False(t, body.NeedsVerification)
	assert.Equal(t, model.StatusResolved, body.Status)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	require.Len(t, engine.queries, 1)
	assert.Equal(t, resolver.Query{Name: "chicken", Quantity: 150, Unit: "g", Language: "en"}, engine.queries[0])
}

func TestResolve_Defaults(t *testing.T) {
	engine := &MockEngine{}
	s := New(engine, nil)

	rec := do(t, s, "/v1/resolve?name=xyz")
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, "not_found", raw["status"])
	assert.Equal(t, "manual", raw["source"])
	assert.Equal(t, true, raw["needs_verification"])

	assert.Equal(t, resolver.Query{Name: "xyz", Quantity: 100, Unit: "g"}, engine.queries[0])
}

func TestResolve_BadRequests(t *testing.T) {
	s := New(&MockEngine{}, nil)

	for _, target := range []string{
		"/v1/resolve",
		"/v1/resolve?name=%20%20",
		"/v1/resolve?name=apple&qty=abc",
		"/v1/resolve?name=apple&qty=-1",
	} {
		rec := do(t, s, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestSuggest(t *testing.T) {
	engine := &MockEngine{}
	s := New(engine, nil)

	rec := do(t, s, "/v1/suggest?q=chi&max=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"suggestions": ["chicken"]}`, rec.Body.String())

	rec = do(t, s, "/v1/suggest?q=zzz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"suggestions": []}`, rec.Body.String())
	assert.Equal(t, defaultSuggestions, engine.maxSeen)

	do(t, s, "/v1/suggest?q=chi&max=1000")
	assert.Equal(t, maxSuggestions, engine.maxSeen)

	rec = do(t, s, "/v1/suggest?q=chi&max=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	s := New(&MockEngine{}, nil)

	rec := do(t, s, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok", "cache": {"entries": 3, "hits": 10, "misses": 2, "evictions": 0}}`, rec.Body.String())
}

func TestRequestIDPropagated(t *testing.T) {
	s := New(&MockEngine{}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	s := New(&MockEngine{}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
