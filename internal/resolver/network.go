package resolver

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ppiankov/kcal/internal/model"
	"github.com/ppiankov/kcal/internal/provider"
	"github.com/ppiankov/kcal/internal/store"
)

const storeWriteTimeout = 5 * time.Second

// flight is one shared network operation for a key.
// It runs on a context detached from every caller; when the last caller
// gives up it is cancelled and its result is discarded.
type flight struct {
	key        model.Key
	gen        uint64
	ctx        context.Context
	cancel     context.CancelFunc
	waiters    int
	superseded bool
}

// id is unique per generation so a new flight never joins a finished one
func (f *flight) id() string {
	return f.key.String() + "#" + strconv.FormatUint(f.gen, 10)
}

type outcome struct {
	entry  model.Entry
	status model.Status
}

// lookupNetwork attaches the caller to the key's flight, starting one if needed
func (r *Resolver) lookupNetwork(ctx context.Context, key model.Key) (model.Entry, model.Status) {
	f := r.join(ctx, key)
	ch := r.group.DoChan(f.id(), func() (any, error) {
		defer r.land(f)
		return r.fetch(f), nil
	})

	select {
	case res := <-ch:
		r.leave(f, false)
		out := res.Val.(outcome)
		return out.entry, out.status
	case <-ctx.Done():
		r.leave(f, true)
		return model.Entry{}, model.StatusCancelled
	}
}

func (r *Resolver) join(parent context.Context, key model.Key) *flight {
	k := key.String()
	r.mu.Lock()
	defer r.mu.Unlock()

	f := r.flights[k]
	if f == nil {
		r.gens[k]++
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), r.settings.Timeout)
		f = &flight{key: key, gen: r.gens[k], ctx: ctx, cancel: cancel}
		r.flights[k] = f
	}
	f.waiters++
	return f
}

// leave detaches one caller. The last caller to abandon cancels the flight.
func (r *Resolver) leave(f *flight, abandoned bool) {
	r.mu.Lock()
	f.waiters--
	cancel := abandoned && f.waiters == 0
	if cancel {
		f.superseded = true
		if r.flights[f.key.String()] == f {
			delete(r.flights, f.key.String())
		}
	}
	r.mu.Unlock()

	if cancel {
		f.cancel()
	}
}

// land retires a finished flight so the next caller starts a fresh one
func (r *Resolver) land(f *flight) {
	r.mu.Lock()
	if r.flights[f.key.String()] == f {
		delete(r.flights, f.key.String())
	}
	r.mu.Unlock()
	f.cancel()
}

// fetch runs the network tiers for one flight
func (r *Resolver) fetch(f *flight) outcome {
	ctx, span := tracer.Start(f.ctx, "resolver.fetch", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	key := f.key
	logger := r.logger.With(zap.String("key", key.String()))
	name, lang := key.Name, key.Language

	var canonical model.Key
	if !key.IsCanonical() && r.translator != nil {
		r.step(key, StateTranslating)
		en, err := r.translator.Translate(ctx, key.Name, key.Language)
		switch {
		case err == nil && en != "":
			canonical = model.NewKey(en, model.CanonicalLanguage)
			span.SetAttributes(attribute.String("food.canonical", canonical.String()))
			if e, ok := r.lookupCanonical(ctx, canonical, logger); ok {
				e.Key = key
				r.commit(f, e, model.Key{}, logger)
				return outcome{entry: e, status: model.StatusResolved}
			}
			name, lang = canonical.Name, canonical.Language
		case ctx.Err() != nil:
			return r.interrupted(ctx)
		default:
			logger.Debug("translation failed, querying with the original name", zap.Error(err))
		}
	}

	if r.providers == nil {
		return outcome{status: model.StatusUnavailable}
	}

	r.step(key, StateProviderQuery)
	raw, attempts, err := r.providers.Query(ctx, name, lang)
	if err != nil {
		return r.failed(ctx, err, attempts, logger)
	}

	r.step(key, StateValidating)
	result, err := r.validator.Validate(raw.Values, raw.Confidence)
	if err != nil {
		logger.Info("provider result rejected", zap.String("provider", raw.Provider), zap.Error(err))
		return outcome{status: model.StatusNotFound}
	}
	if !result.Consistent {
		logger.Info("provider result inconsistent",
			zap.String("provider", raw.Provider),
			zap.String("reason", result.Reason),
			zap.Float64("confidence", result.Confidence),
		)
	}

	entry := model.Entry{
		Key:             key,
		Values:          result.Values,
		Source:          raw.Source,
		Confidence:      result.Confidence,
		LastValidatedAt: r.now().UTC(),
	}
	r.commit(f, entry, canonical, logger)
	span.SetAttributes(attribute.String("provider", raw.Provider))
	return outcome{entry: entry, status: model.StatusResolved}
}

// lookupCanonical probes the local tiers for a translated key
func (r *Resolver) lookupCanonical(ctx context.Context, key model.Key, logger *zap.Logger) (model.Entry, bool) {
	if e, ok := r.static.Entry(key); ok {
		return e, true
	}
	if r.store != nil {
		e, err := r.store.Get(ctx, key)
		if err == nil {
			return *e, true
		}
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("store read failed", zap.String("canonical", key.String()), zap.Error(err))
		}
	}
	return r.memory.Get(key)
}

func (r *Resolver) failed(ctx context.Context, err error, attempts []provider.Attempt, logger *zap.Logger) outcome {
	if errors.Is(err, provider.ErrNotFound) {
		return outcome{status: model.StatusNotFound}
	}
	if ctx.Err() != nil {
		return r.interrupted(ctx)
	}

	fields := []zap.Field{zap.Error(err)}
	for _, a := range attempts {
		fields = append(fields, zap.String(a.Provider, string(a.Outcome)))
	}
	logger.Warn("no provider could answer", fields...)
	return outcome{status: model.StatusUnavailable}
}

// interrupted maps a done flight context to a status: the flight timing out
// means the providers could not answer, anything else means it was abandoned
func (r *Resolver) interrupted(ctx context.Context) outcome {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return outcome{status: model.StatusUnavailable}
	}
	return outcome{status: model.StatusCancelled}
}

// commit writes a result back to the memory cache and, when promotable, to
// the store. Superseded flights write nothing.
func (r *Resolver) commit(f *flight, e model.Entry, canonical model.Key, logger *zap.Logger) {
	entries := []model.Entry{e}
	if !canonical.IsEmpty() && canonical != e.Key {
		alias := e
		alias.Key = canonical
		entries = append(entries, alias)
	}

	k := f.key.String()
	r.mu.Lock()
	current := !f.superseded && r.gens[k] == f.gen
	if current {
		for _, entry := range entries {
			r.memory.Set(entry.Key, entry)
		}
	}
	r.mu.Unlock()

	if !current {
		logger.Debug("discarding superseded result")
		return
	}
	if r.store == nil || e.Source == model.SourceStatic {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(f.ctx), storeWriteTimeout)
	defer cancel()
	for _, entry := range entries {
		err := r.store.Put(ctx, entry)
		switch {
		case err == nil:
			logger.Debug("promoted entry", zap.String("entry", entry.Key.String()), zap.String("source", string(entry.Source)))
		case errors.Is(err, store.ErrNotPromotable):
			logger.Debug("entry kept in memory only", zap.String("entry", entry.Key.String()), zap.Float64("confidence", entry.Confidence))
		default:
			logger.Warn("store write failed", zap.String("entry", entry.Key.String()), zap.Error(err))
		}
	}
}

// refresh re-validates a stale key in the background, at most once per
// refresh backoff window
func (r *Resolver) refresh(key model.Key) {
	if r.providers == nil {
		return
	}
	if !r.refreshed.Add(key.String(), r.now().UTC().Format(time.RFC3339)) {
		return
	}

	r.bg.Add(1)
	go func() {
		defer r.bg.Done()
		_, status := r.lookupNetwork(context.Background(), key)
		r.logger.Debug("refreshed stale entry", zap.String("key", key.String()), zap.String("status", string(status)))
	}()
}
