package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"castdex/internal/indexer"
	"castdex/internal/quality"
	"castdex/internal/rank"
)

// Config is the application's configuration model. It captures upstream
// credentials, indexer tuning knobs, rate-limit ceilings, filter policy,
// scoring weights, storage, and server addresses.
type Config struct {
	Account    AccountConfig   `yaml:"account"`
	API        APIConfig       `yaml:"api"`
	Indexer    IndexerConfig   `yaml:"indexer"`
	RateLimits RateLimitConfig `yaml:"rateLimits"`
	Filters    FiltersConfig   `yaml:"filters"`
	Scoring    rank.Weights    `yaml:"scoring"`
	Storage    StorageConfig   `yaml:"storage"`
	Server     ServerConfig    `yaml:"server"`
}

type AccountConfig struct {
	// FID is the default subject for refresh jobs and CLI commands.
	FID            uint64 `yaml:"fid"`
	RefreshMinutes int    `yaml:"refreshMinutes"`
}

type APIConfig struct {
	BaseURL string `yaml:"baseURL"`
	// APIKey authenticates against the social-graph API. If empty, read
	// from env CASTDEX_API_KEY or NEYNAR_API_KEY.
	APIKey         string `yaml:"apiKey"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

type IndexerConfig struct {
	CacheTTLSeconds int `yaml:"cacheTTLSeconds"`
	// RetryAttempts is the number of retries after the first attempt.
	RetryAttempts int `yaml:"retryAttempts"`
	RetryDelayMs  int `yaml:"retryDelayMs"`
	BatchSize     int `yaml:"batchSize"`
	BatchDelayMs  int `yaml:"batchDelayMs"`
	// CastWindow is how many recent casts feed interaction scoring.
	CastWindow int `yaml:"castWindow"`
	// MaxWaitSeconds bounds how long a call may block on rate budgets
	// before failing with a rate-limited error.
	MaxWaitSeconds     int  `yaml:"maxWaitSeconds"`
	PartialBulkResults bool `yaml:"partialBulkResults"`
}

type RateLimitConfig struct {
	PerMinute       int     `yaml:"perMinute"`
	GlobalPerMinute int     `yaml:"globalPerMinute"`
	GlobalPerSecond float64 `yaml:"globalPerSecond"`
	// Endpoints overrides the per-minute ceiling for specific endpoints.
	Endpoints map[string]int `yaml:"endpoints"`
}

type FiltersConfig struct {
	MinUserScore     float64 `yaml:"minUserScore"`
	FilterHateful    bool    `yaml:"filterHateful"`
	FilterSpam       bool    `yaml:"filterSpam"`
	FilterLowQuality bool    `yaml:"filterLowQuality"`
}

// Options converts the block into a quality filter policy.
func (f FiltersConfig) Options() quality.Options {
	return quality.Options{
		MinUserScore:     f.MinUserScore,
		FilterHateful:    f.FilterHateful,
		FilterSpam:       f.FilterSpam,
		FilterLowQuality: f.FilterLowQuality,
	}
}

type StorageConfig struct {
	DBPath string `yaml:"dbPath"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MetricsAddr string `yaml:"metricsAddr"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Account: AccountConfig{RefreshMinutes: 30},
		API:     APIConfig{BaseURL: "https://api.neynar.com/v2/farcaster", TimeoutSeconds: 10},
		Indexer: IndexerConfig{
			CacheTTLSeconds: 300,
			RetryAttempts:   2,
			RetryDelayMs:    750,
			BatchSize:       75,
			BatchDelayMs:    30,
			CastWindow:      25,
			MaxWaitSeconds:  30,
		},
		RateLimits: RateLimitConfig{PerMinute: 300, GlobalPerMinute: 500, GlobalPerSecond: 5},
		Filters:    FiltersConfig{MinUserScore: 0.3, FilterHateful: true, FilterSpam: true, FilterLowQuality: true},
		Scoring:    rank.DefaultWeights(),
		Storage:    StorageConfig{DBPath: "./castdex.db"},
		Server:     ServerConfig{Addr: ":8080", MetricsAddr: ""},
	}
}

// IndexerOptions assembles the indexer construction options from the
// config blocks.
func (c Config) IndexerOptions() indexer.Options {
	return indexer.Options{
		BaseURL:         c.API.BaseURL,
		APIKey:          c.API.APIKey,
		Timeout:         c.Timeout(),
		CacheTTL:        time.Duration(c.Indexer.CacheTTLSeconds) * time.Second,
		RetryAttempts:   c.Indexer.RetryAttempts,
		RetryDelay:      time.Duration(c.Indexer.RetryDelayMs) * time.Millisecond,
		BatchSize:       c.Indexer.BatchSize,
		BatchDelay:      time.Duration(c.Indexer.BatchDelayMs) * time.Millisecond,
		CastWindow:      c.Indexer.CastWindow,
		MaxWait:         time.Duration(c.Indexer.MaxWaitSeconds) * time.Second,
		PartialBulk:     c.Indexer.PartialBulkResults,
		PerMinute:       c.RateLimits.PerMinute,
		GlobalPerMinute: c.RateLimits.GlobalPerMinute,
		GlobalPerSecond: c.RateLimits.GlobalPerSecond,
		EndpointLimits:  c.RateLimits.Endpoints,
		Filter:          c.Filters.Options(),
		Weights:         c.Scoring,
	}
}

// Timeout returns the per-request upstream timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// ResolveEnv fills in config fields from environment variables if not set.
func (c *Config) ResolveEnv() {
	if c.API.APIKey == "" {
		c.API.APIKey = os.Getenv("CASTDEX_API_KEY")
	}
	if c.API.APIKey == "" {
		c.API.APIKey = os.Getenv("NEYNAR_API_KEY")
	}
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
