package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/wb-product-ingest/internal/logging"
)

func validConfig() Config {
	return Config{
		Server: ServerConfig{Port: 8080, MaxBatchSize: 100},
		Upstream: UpstreamConfig{
			Timeout:      10 * time.Second,
			MaxAttempts:  4,
			CardQuery:    "appType=1&curr=rub",
			MaxShardHost: 32,
			ContentURLs:  []string{"https://example.com/content"},
		},
		Pipeline:  PipelineConfig{Concurrency: 10},
		Discovery: DiscoveryConfig{PageLimit: 100},
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port"},
		{name: "batch size", mutate: func(c *Config) { c.Server.MaxBatchSize = 0 }, wantErr: "server.max_batch_size"},
		{name: "concurrency", mutate: func(c *Config) { c.Pipeline.Concurrency = 0 }, wantErr: "pipeline.concurrency"},
		{name: "timeout", mutate: func(c *Config) { c.Upstream.Timeout = 0 }, wantErr: "upstream.timeout"},
		{name: "attempts", mutate: func(c *Config) { c.Upstream.MaxAttempts = 0 }, wantErr: "upstream.max_attempts"},
		{name: "negative backoff", mutate: func(c *Config) { c.Upstream.BackoffBase = -time.Second }, wantErr: "backoff"},
		{name: "bad query", mutate: func(c *Config) { c.Upstream.CardQuery = "a=%zz" }, wantErr: "upstream.card_query"},
		{name: "shard host", mutate: func(c *Config) { c.Upstream.MaxShardHost = 0 }, wantErr: "upstream.max_shard_host"},
		{name: "content urls", mutate: func(c *Config) { c.Upstream.ContentURLs = nil }, wantErr: "upstream.content_urls"},
		{name: "page limit", mutate: func(c *Config) { c.Discovery.PageLimit = 0 }, wantErr: "discovery.page_limit"},
		{name: "log level", mutate: func(c *Config) { c.Logging.Level = "chatty" }, wantErr: "logging.level"},
		{name: "auth key", mutate: func(c *Config) { c.Auth.Enabled = true }, wantErr: "auth.api_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 10, cfg.Pipeline.Concurrency)
	require.Equal(t, 4, cfg.Upstream.MaxAttempts)
	require.Equal(t, 500*time.Millisecond, cfg.Upstream.BackoffBase)
	require.Equal(t, 32, cfg.Upstream.MaxShardHost)
	require.Len(t, cfg.Upstream.ContentURLs, 2)

	up := cfg.UpstreamClientConfig()
	require.Equal(t, "rub", up.CardQuery.Get("curr"))
	require.Equal(t, 4, up.Retry.MaxAttempts)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9090
pipeline:
  concurrency: 3
upstream:
  max_attempts: 2
  backoff_base: 50ms
  card_query: "appType=1&curr=kzt"
discovery:
  regions: "1,2"
storage:
  gcs_bucket: my-bucket
db:
  table: wb_products
logging:
  development: false
  level: warn
  output_paths: ["stdout"]
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 3, cfg.Pipeline.Concurrency)
	require.Equal(t, 2, cfg.Upstream.MaxAttempts)
	require.Equal(t, 50*time.Millisecond, cfg.Upstream.BackoffBase)
	require.Equal(t, "kzt", cfg.UpstreamClientConfig().CardQuery.Get("curr"))
	require.Equal(t, "1,2", cfg.DiscoveryClientConfig().Regions)
	require.Equal(t, "my-bucket", cfg.Storage.GCSBucket)
	require.Equal(t, "wb_products", cfg.DB.Table)
	require.Equal(t, logging.Options{Level: "warn", OutputPaths: []string{"stdout"}}, cfg.LoggingOptions())
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "read config")
}
