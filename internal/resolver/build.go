package resolver

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/kcal/internal/cache"
	"github.com/ppiankov/kcal/internal/llm"
	"github.com/ppiankov/kcal/internal/model"
	"github.com/ppiankov/kcal/internal/provider"
	"github.com/ppiankov/kcal/internal/reference"
	"github.com/ppiankov/kcal/internal/store"
	"github.com/ppiankov/kcal/internal/translate"
	"github.com/ppiankov/kcal/internal/validate"
)

// FromConfig wires a Resolver with every tier cfg enables.
// The returned close func waits for background work and closes the store.
func FromConfig(cfg *model.Config, logger *zap.Logger) (*Resolver, func() error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	llmProvider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	if err != nil {
		return nil, nil, fmt.Errorf("create llm provider: %w", err)
	}

	validator := validate.NewValidator(cfg.Thresholds)
	waterfall, err := provider.NewFromConfig(cfg, llmProvider, ProviderCheck(validator), logger.Named("provider"))
	if err != nil {
		return nil, nil, fmt.Errorf("create providers: %w", err)
	}

	translators := []translate.Translator{translate.NewDictionary()}
	if llmProvider != nil {
		translators = append(translators, translate.NewLLMTranslator(llmProvider))
	}

	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	r := New(Deps{
		Static:     reference.Default,
		Store:      st,
		Memory:     cache.NewMemoryCache(cfg.Cache.Capacity),
		Translator: translate.NewChain(cfg.Cache.TranslationTTL, translators...),
		Providers:  waterfall,
		Validator:  validator,
		Logger:     logger.Named("resolver"),
	}, SettingsFromConfig(cfg))

	logger.Debug("resolver ready",
		zap.Strings("providers", waterfall.Providers()),
		zap.String("store", cfg.Store.Backend),
		zap.Bool("llm", llmProvider != nil),
	)

	closeFn := func() error {
		r.Close()
		return st.Close()
	}
	return r, closeFn, nil
}

// ProviderCheck makes the waterfall skip results the validator rejects
func ProviderCheck(v *validate.Validator) provider.CheckFunc {
	return func(raw *provider.RawResult) error {
		_, err := v.Validate(raw.Values, raw.Confidence)
		return err
	}
}
