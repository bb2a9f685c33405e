// Package config loads walkability settings from config.yaml and
// WALKABILITY_* environment variables and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/walkability-cli/internal/cost"
	"github.com/sells-group/walkability-cli/internal/places"
	"github.com/sells-group/walkability-cli/internal/resilience"
	"github.com/sells-group/walkability-cli/internal/scorer"
	"github.com/sells-group/walkability-cli/internal/store"
	"github.com/sells-group/walkability-cli/internal/streetview"
)

// Config holds the full application configuration.
type Config struct {
	Store      store.Config       `yaml:"store" mapstructure:"store"`
	Google     GoogleConfig       `yaml:"google" mapstructure:"google"`
	Anthropic  AnthropicConfig    `yaml:"anthropic" mapstructure:"anthropic"`
	Pricing    cost.Rates         `yaml:"pricing" mapstructure:"pricing"`
	Extract    ExtractConfig      `yaml:"extract" mapstructure:"extract"`
	Places     places.Options     `yaml:"places" mapstructure:"places"`
	StreetView streetview.Options `yaml:"streetview" mapstructure:"streetview"`
	Scorer     scorer.Config      `yaml:"scorer" mapstructure:"scorer"`
	Server     ServerConfig       `yaml:"server" mapstructure:"server"`
	Log        LogConfig          `yaml:"log" mapstructure:"log"`
}

// GoogleConfig holds Google Maps Platform settings.
type GoogleConfig struct {
	Key       string        `yaml:"key" mapstructure:"key"`
	PlacesURL string        `yaml:"places_url" mapstructure:"places_url"`
	MapsURL   string        `yaml:"maps_url" mapstructure:"maps_url"`
	RateLimit float64       `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second, 0 = unlimited
	Burst     int           `yaml:"burst" mapstructure:"burst"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// Retry governs retries of 429 and 5xx responses.
	Retry resilience.Policy `yaml:"retry" mapstructure:"retry"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// ExtractConfig configures intersection extraction.
type ExtractConfig struct {
	IncludeBoundary bool `yaml:"include_boundary" mapstructure:"include_boundary"`
	// DefaultCRS applies to inputs that carry no CRS, such as WKT files.
	DefaultCRS string `yaml:"default_crs" mapstructure:"default_crs"`
	OutputDir  string `yaml:"output_dir" mapstructure:"output_dir"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int           `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	CacheEntries   int           `yaml:"cache_entries" mapstructure:"cache_entries"`
	CacheTTL       time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("WALKABILITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "walkability.db")
	v.SetDefault("store.auto_migrate", true)
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.cache_entries", 256)
	v.SetDefault("server.cache_ttl", "15m")
	v.SetDefault("google.key", "")
	v.SetDefault("google.places_url", "https://places.googleapis.com/v1")
	v.SetDefault("google.maps_url", "https://maps.googleapis.com/maps/api")
	v.SetDefault("google.rate_limit", 10)
	v.SetDefault("google.burst", 1)
	v.SetDefault("google.timeout", "30s")
	v.SetDefault("google.retry.max_attempts", 3)
	v.SetDefault("google.retry.initial_backoff", "500ms")
	v.SetDefault("google.retry.max_backoff", "30s")
	v.SetDefault("google.retry.multiplier", 2.0)
	v.SetDefault("google.retry.jitter", 0.25)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("extract.include_boundary", false)
	v.SetDefault("extract.default_crs", "")
	v.SetDefault("extract.output_dir", "runs")
	v.SetDefault("places.radius", 400)
	v.SetDefault("places.max_results", 20)
	v.SetDefault("places.cache_ttl", "720h")
	v.SetDefault("places.include_boundary", false)
	v.SetDefault("streetview.output_dir", "streetview_images")
	v.SetDefault("streetview.width", 1080)
	v.SetDefault("streetview.height", 1080)
	v.SetDefault("streetview.fov", 90)
	v.SetDefault("streetview.pitch", 0)
	v.SetDefault("streetview.source", "default")
	v.SetDefault("streetview.check_metadata", false)
	v.SetDefault("streetview.max_images", 0)
	v.SetDefault("scorer.model", scorer.DefaultModel)
	v.SetDefault("scorer.max_tokens", 1024)
	v.SetDefault("scorer.batch_threshold", 50)
	v.SetDefault("scorer.concurrency", 1)
	v.SetDefault("scorer.max_images", 100)
	v.SetDefault("scorer.poll_interval", "10s")
	v.SetDefault("scorer.poll_timeout", "24h")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Rates returns the pricing table with configured rates layered over
// cost.DefaultRates.
func (c *Config) Rates() cost.Rates {
	rates := cost.DefaultRates()
	for model, r := range c.Pricing.Anthropic {
		rates.Anthropic[model] = r
	}
	g := c.Pricing.Google
	if g.NearbySearch > 0 {
		rates.Google.NearbySearch = g.NearbySearch
	}
	if g.PlaceDetails > 0 {
		rates.Google.PlaceDetails = g.PlaceDetails
	}
	if g.StreetView > 0 {
		rates.Google.StreetView = g.StreetView
	}
	if g.StreetViewMetadata > 0 {
		rates.Google.StreetViewMetadata = g.StreetViewMetadata
	}
	return rates
}

// Validate checks the settings a command mode depends on. Modes are
// "extract", "places", "streetview", "score", "sentiment", "walkability"
// and "serve".
func (c *Config) Validate(mode string) error {
	var errs []string
	require := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, msg)
		}
	}

	needGoogle, needAnthropic := false, false
	switch mode {
	case "extract":
	case "places", "streetview":
		needGoogle = true
	case "score":
		needAnthropic = true
	case "sentiment", "walkability":
		needGoogle, needAnthropic = true, true
	case "serve":
		require(c.Server.Port > 0 && c.Server.Port < 65536, "server.port must be > 0 and < 65536")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if needGoogle {
		require(c.Google.Key != "", "google.key is required")
		require(c.Google.RateLimit >= 0, "google.rate_limit must be >= 0")
	}
	if needAnthropic {
		require(c.Anthropic.Key != "", "anthropic.key is required")
		require(c.Scorer.Concurrency >= 1 && c.Scorer.Concurrency <= 50, "scorer.concurrency must be between 1 and 50")
	}
	require(c.Places.Radius >= 0 && c.Places.Radius <= 50000, "places.radius must be between 0 and 50000")

	switch c.Store.Driver {
	case "", "sqlite":
	case "postgres":
		require(c.Store.DSN != "", "store.dsn is required for postgres")
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
