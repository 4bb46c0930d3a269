// Package config loads and validates ingest configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/wb-product-ingest/internal/discovery"
	"github.com/JakeFAU/wb-product-ingest/internal/logging"
	"github.com/JakeFAU/wb-product-ingest/internal/merge"
	"github.com/JakeFAU/wb-product-ingest/internal/retry"
	"github.com/JakeFAU/wb-product-ingest/internal/upstream"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	State     StateConfig     `mapstructure:"state"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBatchSize   int           `mapstructure:"max_batch_size"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// UpstreamConfig describes the marketplace endpoints and the retry budget.
type UpstreamConfig struct {
	UserAgent        string        `mapstructure:"user_agent"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
	BackoffBase      time.Duration `mapstructure:"backoff_base"`
	BackoffJitter    time.Duration `mapstructure:"backoff_jitter"`
	CardURL          string        `mapstructure:"card_url"`
	CardQuery        string        `mapstructure:"card_query"`
	ShardURLTemplate string        `mapstructure:"shard_url_template"`
	MaxShardHost     int           `mapstructure:"max_shard_host"`
	ContentURLs      []string      `mapstructure:"content_urls"`
	ImageURLTemplate string        `mapstructure:"image_url_template"`
	RateLimitRPS     float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst   int           `mapstructure:"rate_limit_burst"`
}

// PipelineConfig governs batch fan-out.
type PipelineConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// DiscoveryConfig controls catalog listing.
type DiscoveryConfig struct {
	CatalogURLTemplate string        `mapstructure:"catalog_url_template"`
	CategoriesPath     string        `mapstructure:"categories_path"`
	Regions            string        `mapstructure:"regions"`
	FallbackRegions    string        `mapstructure:"fallback_regions"`
	PageLimit          int           `mapstructure:"page_limit"`
	ThrottleDelay      time.Duration `mapstructure:"throttle_delay"`
}

// StorageConfig sets where batch outputs are uploaded.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for run notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// StateConfig points at the incremental-load state file.
type StateConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig selects the zap encoder, level and sinks.
type LoggingConfig struct {
	Development bool     `mapstructure:"development"`
	Level       string   `mapstructure:"level"`
	OutputPaths []string `mapstructure:"output_paths"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WBINGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", "2m")
	v.SetDefault("server.max_batch_size", 100)
	v.SetDefault("upstream.user_agent", upstream.DefaultUserAgent)
	v.SetDefault("upstream.timeout", "10s")
	v.SetDefault("upstream.max_attempts", retry.DefaultMaxAttempts)
	v.SetDefault("upstream.backoff_base", retry.DefaultBaseDelay.String())
	v.SetDefault("upstream.backoff_jitter", retry.DefaultMaxJitter.String())
	v.SetDefault("upstream.card_url", upstream.DefaultCardURL)
	v.SetDefault("upstream.card_query", upstream.DefaultCardQuery)
	v.SetDefault("upstream.shard_url_template", upstream.DefaultShardURLTemplate)
	v.SetDefault("upstream.max_shard_host", 32)
	v.SetDefault("upstream.content_urls", upstream.DefaultContentURLs)
	v.SetDefault("upstream.image_url_template", merge.DefaultImageURLTemplate)
	v.SetDefault("upstream.rate_limit_rps", 0)
	v.SetDefault("upstream.rate_limit_burst", 1)
	v.SetDefault("pipeline.concurrency", 10)
	v.SetDefault("discovery.catalog_url_template", discovery.DefaultCatalogURLTemplate)
	v.SetDefault("discovery.categories_path", "categories.json")
	v.SetDefault("discovery.regions", discovery.DefaultRegions)
	v.SetDefault("discovery.fallback_regions", discovery.DefaultFallbackRegions)
	v.SetDefault("discovery.page_limit", 100)
	v.SetDefault("discovery.throttle_delay", "1s")
	v.SetDefault("storage.prefix", "products")
	v.SetDefault("db.table", "products")
	v.SetDefault("state.path", "state/ingested_ids.msgpack")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.MaxBatchSize <= 0 {
		return fmt.Errorf("server.max_batch_size must be > 0")
	}
	if c.Pipeline.Concurrency <= 0 {
		return fmt.Errorf("pipeline.concurrency must be > 0")
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be > 0")
	}
	if c.Upstream.MaxAttempts <= 0 {
		return fmt.Errorf("upstream.max_attempts must be > 0")
	}
	if c.Upstream.BackoffBase < 0 || c.Upstream.BackoffJitter < 0 {
		return fmt.Errorf("upstream backoff durations must be >= 0")
	}
	if _, err := url.ParseQuery(c.Upstream.CardQuery); err != nil {
		return fmt.Errorf("upstream.card_query is invalid: %w", err)
	}
	if c.Upstream.MaxShardHost <= 0 {
		return fmt.Errorf("upstream.max_shard_host must be > 0")
	}
	if len(c.Upstream.ContentURLs) == 0 {
		return fmt.Errorf("upstream.content_urls must not be empty")
	}
	if c.Discovery.PageLimit <= 0 {
		return fmt.Errorf("discovery.page_limit must be > 0")
	}
	if c.Logging.Level != "" {
		if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
			return fmt.Errorf("logging.level is invalid: %w", err)
		}
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// LoggingOptions converts the logging section for logging.New.
func (c Config) LoggingOptions() logging.Options {
	return logging.Options{
		Development: c.Logging.Development,
		Level:       c.Logging.Level,
		OutputPaths: c.Logging.OutputPaths,
	}
}

// UpstreamClientConfig converts the upstream section for upstream.New.
func (c Config) UpstreamClientConfig() upstream.Config {
	query, _ := url.ParseQuery(c.Upstream.CardQuery)
	return upstream.Config{
		UserAgent:        c.Upstream.UserAgent,
		CardURL:          c.Upstream.CardURL,
		CardQuery:        query,
		ShardURLTemplate: c.Upstream.ShardURLTemplate,
		MaxShardHost:     c.Upstream.MaxShardHost,
		ContentURLs:      append([]string(nil), c.Upstream.ContentURLs...),
		Retry: retry.Config{
			MaxAttempts: c.Upstream.MaxAttempts,
			BaseDelay:   c.Upstream.BackoffBase,
			MaxJitter:   c.Upstream.BackoffJitter,
		},
	}
}

// MergeConfig converts the image settings for merge.New.
func (c Config) MergeConfig() merge.Config {
	return merge.Config{ImageURLTemplate: c.Upstream.ImageURLTemplate}
}

// DiscoveryClientConfig converts the discovery section for discovery.New.
func (c Config) DiscoveryClientConfig() discovery.Config {
	return discovery.Config{
		CatalogURLTemplate: c.Discovery.CatalogURLTemplate,
		Regions:            c.Discovery.Regions,
		FallbackRegions:    c.Discovery.FallbackRegions,
		PageLimit:          c.Discovery.PageLimit,
		ThrottleDelay:      c.Discovery.ThrottleDelay,
		UserAgent:          c.Upstream.UserAgent,
	}
}
