// Package config loads and validates scraperd configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch"`
	Autoscaler AutoscalerConfig `mapstructure:"autoscaler"`
	Discovery  DiscoveryConfig  `mapstructure:"discovery"`
	Executor   ExecutorConfig   `mapstructure:"executor"`
	Sink       SinkConfig       `mapstructure:"sink"`
	DB         DBConfig         `mapstructure:"db"`
	Storage    StorageConfig    `mapstructure:"storage"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Compose    ComposeConfig    `mapstructure:"compose"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DispatchConfig governs the bounded scrape pool.
type DispatchConfig struct {
	PoolSize           int `mapstructure:"pool_size"`
	CallTimeoutSeconds int `mapstructure:"call_timeout_seconds"`
	ExecRetries        int `mapstructure:"exec_retries"`
	ExecBackoffMs      int `mapstructure:"exec_backoff_ms"`
	SinkRetries        int `mapstructure:"sink_retries"`
	SinkBackoffMs      int `mapstructure:"sink_backoff_ms"`
}

// AutoscalerConfig tunes worker fleet reconciliation.
type AutoscalerConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	Ratio           int  `mapstructure:"ratio"`
	Floor           int  `mapstructure:"floor"`
	Ceiling         int  `mapstructure:"ceiling"`
	IntervalSeconds int  `mapstructure:"interval_seconds"`
}

// DiscoveryConfig points at the URL discovery service.
type DiscoveryConfig struct {
	Provider       string `mapstructure:"provider"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ExecutorConfig points at the scrape executor service.
type ExecutorConfig struct {
	Provider       string `mapstructure:"provider"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// SinkConfig selects the result sink backends.
type SinkConfig struct {
	// Providers lists the fanout backends in order: jsonl, postgres, memory.
	Providers []string `mapstructure:"providers"`
	JSONLPath string   `mapstructure:"jsonl_path"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

// StorageConfig selects the archive blob store.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
}

// PubSubConfig holds metadata for job completion notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ComposeConfig names the docker compose deployment to scale.
type ComposeConfig struct {
	Project string `mapstructure:"project"`
	Service string `mapstructure:"service"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPERD")
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
	v.SetDefault("dispatch.pool_size", 8)
	v.SetDefault("dispatch.call_timeout_seconds", 120)
	v.SetDefault("dispatch.exec_retries", 2)
	v.SetDefault("dispatch.exec_backoff_ms", 250)
	v.SetDefault("dispatch.sink_retries", 3)
	v.SetDefault("dispatch.sink_backoff_ms", 100)
	v.SetDefault("autoscaler.enabled", true)
	v.SetDefault("autoscaler.ratio", 1)
	v.SetDefault("autoscaler.floor", 0)
	v.SetDefault("autoscaler.ceiling", 16)
	v.SetDefault("autoscaler.interval_seconds", 5)
	v.SetDefault("discovery.provider", "memory")
	v.SetDefault("discovery.timeout_seconds", 300)
	v.SetDefault("executor.provider", "memory")
	v.SetDefault("executor.timeout_seconds", 90)
	v.SetDefault("sink.providers", []string{"memory"})
	v.SetDefault("sink.jsonl_path", "results.jsonl")
	v.SetDefault("storage.provider", "")
	v.SetDefault("compose.service", "worker")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Dispatch.PoolSize <= 0 {
		return fmt.Errorf("dispatch.pool_size must be > 0")
	}
	if c.Dispatch.CallTimeoutSeconds <= 0 {
		return fmt.Errorf("dispatch.call_timeout_seconds must be > 0")
	}
	if c.Autoscaler.Enabled {
		if c.Autoscaler.Ratio <= 0 {
			return fmt.Errorf("autoscaler.ratio must be > 0")
		}
		if c.Autoscaler.Floor < 0 {
			return fmt.Errorf("autoscaler.floor must be >= 0")
		}
		if c.Autoscaler.Ceiling > 0 && c.Autoscaler.Ceiling < c.Autoscaler.Floor {
			return fmt.Errorf("autoscaler.ceiling must be >= autoscaler.floor")
		}
		if c.Autoscaler.IntervalSeconds <= 0 {
			return fmt.Errorf("autoscaler.interval_seconds must be > 0")
		}
	}
	if c.Discovery.Provider == "remote" && c.Discovery.BaseURL == "" {
		return fmt.Errorf("discovery.base_url must be set for the remote provider")
	}
	if c.Executor.Provider == "remote" && c.Executor.BaseURL == "" {
		return fmt.Errorf("executor.base_url must be set for the remote provider")
	}
	if len(c.Sink.Providers) == 0 {
		return fmt.Errorf("sink.providers must name at least one backend")
	}
	for _, p := range c.Sink.Providers {
		switch p {
		case "jsonl", "postgres", "memory":
		default:
			return fmt.Errorf("sink.providers: unknown backend %q", p)
		}
		if p == "postgres" && c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set for the postgres sink")
		}
	}
	if c.Storage.Provider == "gcs" && c.Storage.GCSBucket == "" {
		return fmt.Errorf("storage.gcs_bucket must be set for the gcs provider")
	}
	if c.Storage.Provider == "local" && c.Storage.LocalDir == "" {
		return fmt.Errorf("storage.local_dir must be set for the local provider")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	return nil
}

// DispatchCallTimeout returns the per-URL watchdog budget.
func (c Config) DispatchCallTimeout() time.Duration {
	return time.Duration(c.Dispatch.CallTimeoutSeconds) * time.Second
}

// DispatchExecBackoff returns the initial executor retry backoff.
func (c Config) DispatchExecBackoff() time.Duration {
	return time.Duration(c.Dispatch.ExecBackoffMs) * time.Millisecond
}

// DispatchSinkBackoff returns the initial sink retry backoff.
func (c Config) DispatchSinkBackoff() time.Duration {
	return time.Duration(c.Dispatch.SinkBackoffMs) * time.Millisecond
}

// AutoscalerInterval returns the reconcile tick period.
func (c Config) AutoscalerInterval() time.Duration {
	return time.Duration(c.Autoscaler.IntervalSeconds) * time.Second
}

// DiscoveryTimeout returns the per-call discovery budget.
func (c Config) DiscoveryTimeout() time.Duration {
	return time.Duration(c.Discovery.TimeoutSeconds) * time.Second
}

// ExecutorTimeout returns the per-call executor HTTP budget.
func (c Config) ExecutorTimeout() time.Duration {
	return time.Duration(c.Executor.TimeoutSeconds) * time.Second
}
