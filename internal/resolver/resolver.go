// Package resolver turns a food name and portion into nutrition values.
//
// Lookups walk the tiers cheapest first: the bundled reference table, the
// local store, the in-process memory cache, then translation and the provider
// waterfall. Concurrent network lookups for the same key share one operation.
// Only validated results above the promotion threshold reach the store.
package resolver

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/kcal/internal/cache"
	"github.com/ppiankov/kcal/internal/model"
	"github.com/ppiankov/kcal/internal/provider"
	"github.com/ppiankov/kcal/internal/reference"
	"github.com/ppiankov/kcal/internal/store"
	"github.com/ppiankov/kcal/internal/translate"
	"github.com/ppiankov/kcal/internal/units"
	"github.com/ppiankov/kcal/internal/validate"
)

var tracer = otel.Tracer("github.com/ppiankov/kcal/internal/resolver")

// Defaults for Settings fields left zero
const (
	DefaultNetworkTimeout = 10 * time.Second
	DefaultRefreshBackoff = time.Hour
)

// Providers is the network tier; *provider.Waterfall implements it
type Providers interface {
	Query(ctx context.Context, name, lang string) (*provider.RawResult, []provider.Attempt, error)
}

// Deps are the components a Resolver owns. Static, Memory and Validator are
// required; the rest may be nil, which disables that tier.
type Deps struct {
	Static     *reference.Table
	Store      store.Store
	Memory     *cache.MemoryCache
	Translator translate.Translator
	Providers  Providers
	Validator  *validate.Validator
	Logger     *zap.Logger
	Now        func() time.Time
	Trace      TraceFunc
}

// Settings tune a Resolver
type Settings struct {
	Thresholds model.ThresholdConfig
	StaleAfter time.Duration // store entries older than this are refreshed in the background
	Timeout    time.Duration // bound on one shared network operation
	Debounce   model.DebounceConfig

	// RefreshBackoff limits background refreshes of one key
	RefreshBackoff time.Duration
}

// SettingsFromConfig extracts resolver settings from the application config
func SettingsFromConfig(cfg *model.Config) Settings {
	return Settings{
		Thresholds: cfg.Thresholds,
		StaleAfter: cfg.Store.TTL,
		// Every provider may use its full timeout plus one translation call
		Timeout:  time.Duration(len(cfg.Providers.Order)+1) * cfg.Providers.Timeout,
		Debounce: cfg.Debounce,
	}
}

// Query is one resolution request
type Query struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
	Language string  `json:"language"`
}

// Resolver is the engine entry point. It is safe for concurrent use.
type Resolver struct {
	static     *reference.Table
	store      *store.Gate
	memory     *cache.MemoryCache
	translator translate.Translator
	providers  Providers
	validator  *validate.Validator
	logger     *zap.Logger
	now        func() time.Time
	trace      TraceFunc
	settings   Settings

	group     singleflight.Group
	mu        sync.Mutex
	flights   map[string]*flight
	gens      map[string]uint64
	refreshed *cache.TTLCache
	bg        sync.WaitGroup
}

// New creates a Resolver
func New(deps Deps, settings Settings) *Resolver {
	r := &Resolver{
		static:     deps.Static,
		memory:     deps.Memory,
		translator: deps.Translator,
		providers:  deps.Providers,
		validator:  deps.Validator,
		logger:     deps.Logger,
		now:        deps.Now,
		trace:      deps.Trace,
		settings:   settings,
		flights:    make(map[string]*flight),
		gens:       make(map[string]uint64),
	}
	if deps.Store != nil {
		r.store = store.NewGate(deps.Store, settings.Thresholds.Promotion)
	}
	if r.static == nil {
		r.static = reference.Default
	}
	if r.memory == nil {
		r.memory = cache.NewMemoryCache(cache.DefaultCapacity)
	}
	if r.validator == nil {
		r.validator = validate.NewValidator(settings.Thresholds)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.settings.Timeout <= 0 {
		r.settings.Timeout = DefaultNetworkTimeout
	}
	if r.settings.RefreshBackoff <= 0 {
		r.settings.RefreshBackoff = DefaultRefreshBackoff
	}
	r.refreshed = cache.NewTTLCache(r.settings.RefreshBackoff, 2*r.settings.RefreshBackoff)
	return r
}

// Resolve returns the nutrition values for q. It never fails: when no tier
// can answer, the result is a zero-valued placeholder that needs verification.
func (r *Resolver) Resolve(ctx context.Context, q Query) model.Resolution {
	return r.resolve(ctx, q, true)
}

// ResolveLocal is Resolve restricted to the reference table, the store and
// the memory cache. It never touches the network.
func (r *Resolver) ResolveLocal(ctx context.Context, q Query) model.Resolution {
	return r.resolve(ctx, q, false)
}

func (r *Resolver) resolve(ctx context.Context, q Query, network bool) model.Resolution {
	ctx, span := tracer.Start(ctx, "resolver.Resolve")
	defer span.End()

	requestID := newRequestID()
	key := model.NewKey(q.Name, q.Language)
	r.step(key, StateNormalizing)
	grams := units.ToGrams(q.Quantity, q.Unit)

	logger := r.logger.With(
		zap.String("request_id", requestID),
		zap.String("key", key.String()),
	)
	span.SetAttributes(
		attribute.String("request.id", requestID),
		attribute.String("food.key", key.String()),
		attribute.Float64("food.grams", grams),
		attribute.Bool("network", network),
	)

	if key.IsEmpty() {
		r.step(key, StateDone)
		return model.Placeholder(model.StatusNotFound, grams)
	}
	if ctx.Err() != nil {
		r.step(key, StateCancelled)
		return model.Placeholder(model.StatusCancelled, grams)
	}

	entry, ok := r.lookupLocal(ctx, key, logger)
	if !ok && network {
		var status model.Status
		entry, status = r.lookupNetwork(ctx, key)
		if status != model.StatusResolved {
			if status == model.StatusCancelled {
				r.step(key, StateCancelled)
			} else {
				r.step(key, StateDone)
			}
			span.SetAttributes(attribute.String("resolution.status", string(status)))
			logger.Debug("no resolution", zap.String("status", string(status)))
			return model.Placeholder(status, grams)
		}
		ok = true
	}
	if !ok {
		r.step(key, StateDone)
		return model.Placeholder(model.StatusNotFound, grams)
	}

	r.step(key, StateScaling)
	res := model.NewResolution(entry, grams, r.settings.Thresholds.Verification)
	span.SetAttributes(
		attribute.String("resolution.source", string(res.Source)),
		attribute.Float64("resolution.confidence", res.Confidence),
	)
	r.step(key, StateDone)
	return res
}

// lookupLocal walks the reference table, the store and the memory cache
func (r *Resolver) lookupLocal(ctx context.Context, key model.Key, logger *zap.Logger) (model.Entry, bool) {
	r.step(key, StateLocalLookup)
	if e, ok := r.static.Entry(key); ok {
		return e, true
	}

	if r.store != nil {
		e, err := r.store.Get(ctx, key)
		switch {
		case err == nil:
			if e.IsStale(r.now(), r.settings.StaleAfter) {
				r.refresh(key)
			}
			return *e, true
		case !errors.Is(err, store.ErrNotFound):
			logger.Warn("store read failed", zap.Error(err))
		}
	}

	r.step(key, StateMemoryLookup)
	if e, ok := r.memory.Get(key); ok {
		return e, true
	}
	return model.Entry{}, false
}

// Suggest returns up to maxResults food names matching query, reference
// table names first, then names resolved earlier in this process.
func (r *Resolver) Suggest(query string, maxResults int) []string {
	if maxResults <= 0 {
		return nil
	}

	names := r.static.Search(query, maxResults)
	if len(names) >= maxResults {
		return names
	}

	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}

	q := model.Normalize(query)
	var extra []string
	for _, k := range r.memory.Keys() {
		if seen[k.Name] || !strings.Contains(k.Name, q) {
			continue
		}
		seen[k.Name] = true
		extra = append(extra, k.Name)
	}
	sort.Strings(extra)

	names = append(names, extra...)
	if len(names) > maxResults {
		names = names[:maxResults]
	}
	return names
}

// Invalidate drops key from the memory cache. A network operation already in
// flight for key is superseded and will not write its result.
func (r *Resolver) Invalidate(key model.Key) {
	k := key.String()
	r.mu.Lock()
	r.gens[k]++
	if f := r.flights[k]; f != nil {
		f.superseded = true
		delete(r.flights, k)
	}
	r.mu.Unlock()

	r.memory.Delete(key)
	r.refreshed.Delete(k)
}

// Stats returns memory cache statistics
func (r *Resolver) Stats() cache.Stats {
	return r.memory.Stats()
}

// Close waits for background refreshes to finish
func (r *Resolver) Close() {
	r.bg.Wait()
}

func (r *Resolver) step(key model.Key, s State) {
	if r.trace != nil {
		r.trace(key, s)
	}
}

func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
