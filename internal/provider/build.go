package provider

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/kcal/internal/llm"
	"github.com/ppiankov/kcal/internal/model"
	"github.com/ppiankov/kcal/internal/util"
	"github.com/ppiankov/kcal/internal/worker"
)

// Build creates the configured providers in cfg.Providers.Order.
// The "llm" entry is skipped when estimator is nil (no LLM configured).
func Build(cfg *model.Config, estimator llm.Provider) ([]Provider, error) {
	client := util.NewHTTPClient(0, cfg.HTTP) // per-call deadlines come from the waterfall

	var providers []Provider
	seen := make(map[string]bool)
	for _, name := range cfg.Providers.Order {
		name = strings.ToLower(strings.TrimSpace(name))
		if seen[name] {
			continue
		}
		seen[name] = true

		switch name {
		case "usda":
			providers = append(providers, NewUSDAProvider(cfg.Providers.USDA, client))
		case "off", "openfoodfacts":
			providers = append(providers, NewOFFProvider(cfg.Providers.OFF, cfg.HTTP.UserAgent, client))
		case "llm":
			if estimator != nil {
				providers = append(providers, NewLLMEstimator(estimator))
			}
		default:
			return nil, fmt.Errorf("unknown provider: %s (supported: usda, off, llm)", name)
		}
	}
	return providers, nil
}

// NewFromConfig builds the providers and wraps them in a waterfall
func NewFromConfig(cfg *model.Config, estimator llm.Provider, check CheckFunc, logger *zap.Logger) (*Waterfall, error) {
	providers, err := Build(cfg, estimator)
	if err != nil {
		return nil, err
	}
	return NewWaterfall(providers,
		WithTimeout(cfg.Providers.Timeout),
		WithLimiter(NewLimiter(cfg)),
		WithCheck(check),
		WithLogger(logger),
	), nil
}

// NewLimiter applies the configured default rate plus the published limits
// of the public APIs. FoodData Central's shared DEMO_KEY allows 30 requests
// an hour; Open Food Facts asks for at most 10 searches a minute.
func NewLimiter(cfg *model.Config) *worker.Limiter {
	l := worker.NewLimiter(worker.Rate{PerSecond: cfg.Providers.RequestsPerSecond, Burst: cfg.Providers.Burst})
	if cfg.Providers.USDA.APIKey == "" {
		l.SetQuota("usda", worker.PerHour(30, 2))
	}
	l.SetQuota("off", worker.PerMinute(10, 10))
	return l
}
