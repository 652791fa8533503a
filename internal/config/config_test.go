package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Dispatch.PoolSize)
	assert.Equal(t, 2*time.Minute, cfg.DispatchCallTimeout())
	assert.Equal(t, 1, cfg.Autoscaler.Ratio)
	assert.Equal(t, 5*time.Second, cfg.AutoscalerInterval())
	assert.Equal(t, "memory", cfg.Discovery.Provider)
	assert.Equal(t, "memory", cfg.Executor.Provider)
	assert.Equal(t, []string{"memory"}, cfg.Sink.Providers)
	assert.True(t, cfg.Logging.Development)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  port: 9090
dispatch:
  pool_size: 16
autoscaler:
  ratio: 5
  floor: 1
  ceiling: 40
discovery:
  provider: remote
  base_url: http://discovery:9090
executor:
  provider: remote
  base_url: http://executor:9091
sink:
  providers: [jsonl, postgres]
  jsonl_path: /var/lib/scraperd/results.jsonl
db:
  dsn: postgres://scraperd:secret@db:5432/scraperd
compose:
  project: scraperd
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 16, cfg.Dispatch.PoolSize)
	assert.Equal(t, 5, cfg.Autoscaler.Ratio)
	assert.Equal(t, 40, cfg.Autoscaler.Ceiling)
	assert.Equal(t, "http://discovery:9090", cfg.Discovery.BaseURL)
	assert.Equal(t, []string{"jsonl", "postgres"}, cfg.Sink.Providers)
	assert.Equal(t, "worker", cfg.Compose.Service) // default survives partial override
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"zero pool size", func(c *Config) { c.Dispatch.PoolSize = 0 }},
		{"zero ratio", func(c *Config) { c.Autoscaler.Ratio = 0 }},
		{"ceiling below floor", func(c *Config) {
			c.Autoscaler.Floor = 10
			c.Autoscaler.Ceiling = 5
		}},
		{"remote discovery without url", func(c *Config) { c.Discovery.Provider = "remote" }},
		{"remote executor without url", func(c *Config) { c.Executor.Provider = "remote" }},
		{"no sink backends", func(c *Config) { c.Sink.Providers = nil }},
		{"unknown sink backend", func(c *Config) { c.Sink.Providers = []string{"s3"} }},
		{"postgres sink without dsn", func(c *Config) { c.Sink.Providers = []string{"postgres"} }},
		{"gcs without bucket", func(c *Config) { c.Storage.Provider = "gcs" }},
		{"local without dir", func(c *Config) { c.Storage.Provider = "local" }},
		{"pubsub without topic", func(c *Config) {
			c.PubSub.Enabled = true
			c.PubSub.ProjectID = "proj"
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
