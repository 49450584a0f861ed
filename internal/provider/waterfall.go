package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/ppiankov/kcal/internal/worker"
)

var tracer = otel.Tracer("github.com/ppiankov/kcal/internal/provider")

// DefaultTimeout bounds each provider call
const DefaultTimeout = 3 * time.Second

// Outcome classifies one provider attempt
type Outcome string

const (
	OutcomeHit     Outcome = "hit"
	OutcomeMiss    Outcome = "miss"
	OutcomeInvalid Outcome = "invalid" // answered with values that failed the check
	OutcomeTimeout Outcome = "timeout"
	OutcomeError   Outcome = "error"
)

// answered reports whether the provider gave a definitive reply
func (o Outcome) answered() bool {
	return o == OutcomeHit || o == OutcomeMiss || o == OutcomeInvalid
}

// Attempt records one provider call
type Attempt struct {
	Provider string        `json:"provider"`
	Outcome  Outcome       `json:"outcome"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// CheckFunc vets a hit before the waterfall accepts it.
// Returning an error makes the waterfall fall through to the next provider.
type CheckFunc func(*RawResult) error

// Waterfall tries providers strictly in order and stops at the first accepted hit
type Waterfall struct {
	providers []Provider
	timeout   time.Duration
	limiter   *worker.Limiter
	check     CheckFunc
	logger    *zap.Logger
}

// Option configures a Waterfall
type Option func(*Waterfall)

// WithTimeout sets the per-provider timeout
func WithTimeout(d time.Duration) Option {
	return func(w *Waterfall) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithLimiter rate-limits calls per provider name
func WithLimiter(l *worker.Limiter) Option {
	return func(w *Waterfall) { w.limiter = l }
}

// WithCheck installs a hit filter
func WithCheck(check CheckFunc) Option {
	return func(w *Waterfall) { w.check = check }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(w *Waterfall) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWaterfall creates a waterfall over providers in priority order
func NewWaterfall(providers []Provider, opts ...Option) *Waterfall {
	w := &Waterfall{
		providers: providers,
		timeout:   DefaultTimeout,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Providers returns the provider names in query order
func (w *Waterfall) Providers() []string {
	names := make([]string, len(w.providers))
	for i, p := range w.providers {
		names[i] = p.Name()
	}
	return names
}

// Query asks each provider in turn.
// It returns the first accepted hit, ErrNotFound when at least one provider
// answered and none had the food, ErrUnavailable when no provider could answer,
// or ctx.Err() when the caller gave up. The attempt log is always returned.
func (w *Waterfall) Query(ctx context.Context, name, lang string) (*RawResult, []Attempt, error) {
	ctx, span := tracer.Start(ctx, "provider.Waterfall.Query")
	defer span.End()
	span.SetAttributes(attribute.String("food.name", name), attribute.String("food.lang", lang))

	attempts := make([]Attempt, 0, len(w.providers))
	for _, p := range w.providers {
		if err := ctx.Err(); err != nil {
			return nil, attempts, err
		}

		res, attempt := w.try(ctx, p, name, lang)
		attempts = append(attempts, attempt)
		w.log(name, lang, attempt)

		if attempt.Outcome == OutcomeHit {
			span.SetAttributes(attribute.String("provider", p.Name()))
			return res, attempts, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, attempts, err
	}

	for _, a := range attempts {
		if a.Outcome.answered() {
			return nil, attempts, fmt.Errorf("query %q: %w", name, ErrNotFound)
		}
	}
	span.SetStatus(codes.Error, "no provider available")
	return nil, attempts, fmt.Errorf("query %q: %w", name, ErrUnavailable)
}

// try runs one provider under its own timeout and never panics
func (w *Waterfall) try(ctx context.Context, p Provider, name, lang string) (res *RawResult, attempt Attempt) {
	attempt.Provider = p.Name()
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	defer func() {
		attempt.Duration = time.Since(start)
		if r := recover(); r != nil {
			res = nil
			attempt.Outcome = OutcomeError
			attempt.Err = fmt.Errorf("provider %s panicked: %v", p.Name(), r)
		}
	}()

	if w.limiter != nil {
		if err := w.limiter.Wait(callCtx, p.Name()); err != nil {
			// The limiter fails early when the next token is past the deadline
			attempt.Outcome, attempt.Err = OutcomeTimeout, fmt.Errorf("rate limit %s: %w", p.Name(), err)
			if ctx.Err() != nil {
				attempt.Outcome = OutcomeError
			}
			return nil, attempt
		}
	}

	res, err := p.Query(callCtx, name, lang)
	if err == nil && res == nil {
		err = ErrMiss
	}
	if err != nil {
		attempt.Outcome, attempt.Err = classify(callCtx, err), err
		return nil, attempt
	}

	if res.Provider == "" {
		res.Provider = p.Name()
	}
	if res.Source == "" {
		res.Source = p.Source()
	}
	if w.check != nil {
		if err := w.check(res); err != nil {
			attempt.Outcome, attempt.Err = OutcomeInvalid, err
			return nil, attempt
		}
	}

	attempt.Outcome = OutcomeHit
	return res, attempt
}

func classify(callCtx context.Context, err error) Outcome {
	switch {
	case errors.Is(err, ErrMiss):
		return OutcomeMiss
	case errors.Is(err, context.DeadlineExceeded), errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return OutcomeTimeout
	default:
		return OutcomeError
	}
}

func (w *Waterfall) log(name, lang string, a Attempt) {
	fields := []zap.Field{
		zap.String("provider", a.Provider),
		zap.String("name", name),
		zap.String("lang", lang),
		zap.Duration("duration", a.Duration),
	}
	switch a.Outcome {
	case OutcomeHit:
		w.logger.Debug("provider hit", fields...)
	case OutcomeMiss:
		w.logger.Debug("provider miss", fields...)
	case OutcomeInvalid:
		w.logger.Info("provider result rejected", append(fields, zap.Error(a.Err))...)
	case OutcomeTimeout:
		w.logger.Warn("provider timeout", append(fields, zap.Duration("timeout", w.timeout))...)
	default:
		w.logger.Warn("provider error", append(fields, zap.Error(a.Err))...)
	}
}
