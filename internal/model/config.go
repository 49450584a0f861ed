package model

import (
	"fmt"
	"time"
)

// Config is the complete kcal configuration.
// Field tags are shared by viper (mapstructure) and `kcal config` (yaml).
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Thresholds  ThresholdConfig   `yaml:"thresholds" mapstructure:"thresholds"`
	Providers   ProvidersConfig   `yaml:"providers" mapstructure:"providers"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Debounce    DebounceConfig    `yaml:"debounce" mapstructure:"debounce"`
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
}

// StoreConfig selects and configures the local persistent store
type StoreConfig struct {
	Backend string        `yaml:"backend" mapstructure:"backend"` // sqlite, file
	Path    string        `yaml:"path" mapstructure:"path"`       // database file or directory
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`         // re-validate entries older than this
}

// CacheConfig configures the in-process caches
type CacheConfig struct {
	Capacity       int           `yaml:"capacity" mapstructure:"capacity"`               // memory LRU size
	TranslationTTL time.Duration `yaml:"translation_ttl" mapstructure:"translation_ttl"` // translation memo lifetime
}

// ThresholdConfig holds the confidence and consistency constants.
// They are configuration rather than code so they can be tuned against real
// provider data.
type ThresholdConfig struct {
	Promotion        float64 `yaml:"promotion" mapstructure:"promotion"`                   // minimum confidence to persist
	Verification     float64 `yaml:"verification" mapstructure:"verification"`             // below this, needs_verification
	Tolerance        float64 `yaml:"tolerance" mapstructure:"tolerance"`                   // energy mismatch ratio
	LowConfidenceCap float64 `yaml:"low_confidence_cap" mapstructure:"low_confidence_cap"` // cap for inconsistent results
	CalorieCeiling   float64 `yaml:"calorie_ceiling" mapstructure:"calorie_ceiling"`       // kcal per 100g
}

// ProvidersConfig configures the provider waterfall
type ProvidersConfig struct {
	Order             []string      `yaml:"order" mapstructure:"order"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	USDA              USDAConfig    `yaml:"usda" mapstructure:"usda"`
	OFF               OFFConfig     `yaml:"off" mapstructure:"off"`
}

// USDAConfig configures the FoodData Central client
type USDAConfig struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OFFConfig configures the Open Food Facts client
type OFFConfig struct {
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
}

// LLMConfig configures the generative estimator and translator
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, "" (disabled)
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// DebounceConfig holds the quiet periods for interactive input
type DebounceConfig struct {
	Local   time.Duration `yaml:"local" mapstructure:"local"`
	Network time.Duration `yaml:"network" mapstructure:"network"`
}

// HTTPConfig holds outbound HTTP settings shared by all clients
type HTTPConfig struct {
	UserAgent  string `yaml:"user_agent" mapstructure:"user_agent"`
	HTTPProxy  string `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// LogConfig configures the structured logger
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // console, json
}

// ServerConfig configures `kcal serve`
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// ConcurrencyConfig configures batch processing
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: "sqlite",
			Path:    "",
			TTL:     90 * 24 * time.Hour,
		},
		Cache: CacheConfig{
			Capacity:       200,
			TranslationTTL: 24 * time.Hour,
		},
		Thresholds: ThresholdConfig{
			Promotion:        0.75,
			Verification:     0.6,
			Tolerance:        0.15,
			LowConfidenceCap: 0.4,
			CalorieCeiling:   900,
		},
		Providers: ProvidersConfig{
			Order:             []string{"usda", "off", "llm"},
			Timeout:           3 * time.Second,
			RequestsPerSecond: 5,
			Burst:             5,
			USDA: USDAConfig{
				BaseURL: "https://api.nal.usda.gov/fdc",
			},
			OFF: OFFConfig{
				BaseURL: "https://world.openfoodfacts.org",
			},
		},
		LLM: LLMConfig{
			Provider:  "", // Disabled by default
			Timeout:   10,
			MaxTokens: 300,
		},
		Debounce: DebounceConfig{
			Local:   150 * time.Millisecond,
			Network: 800 * time.Millisecond,
		},
		HTTP: HTTPConfig{
			UserAgent: "kcal/0.1 (+https://github.com/ppiankov/kcal)",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
	}
}

// Validate checks the thresholds are usable
func (c *Config) Validate() error {
	t := c.Thresholds
	for name, v := range map[string]float64{
		"promotion":          t.Promotion,
		"verification":       t.Verification,
		"low_confidence_cap": t.LowConfidenceCap,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("thresholds.%s must be within [0,1], got %v", name, v)
		}
	}
	if t.Tolerance <= 0 {
		return fmt.Errorf("thresholds.tolerance must be positive, got %v", t.Tolerance)
	}
	if t.CalorieCeiling <= 0 {
		return fmt.Errorf("thresholds.calorie_ceiling must be positive, got %v", t.CalorieCeiling)
	}
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache.capacity must be positive, got %d", c.Cache.Capacity)
	}
	switch c.Store.Backend {
	case "sqlite", "file":
	default:
		return fmt.Errorf("unknown store backend: %s (supported: sqlite, file)", c.Store.Backend)
	}
	return nil
}
