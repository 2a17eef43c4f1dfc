// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Progress ProgressConfig `mapstructure:"progress"`
	Status   StatusConfig   `mapstructure:"status"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CrawlerConfig governs the crawl itself.
type CrawlerConfig struct {
	// RootURL may also be given as a CLI argument, which wins.
	RootURL      string        `mapstructure:"root_url"`
	Workers      int           `mapstructure:"workers"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Extractor    string        `mapstructure:"extractor"`
}

// HTTPConfig configures the content reader.
type HTTPConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxBodyBytes   int    `mapstructure:"max_body_bytes"`
}

// Storage backends.
const (
	BackendLocal  = "local"
	BackendMemory = "memory"
	BackendGCS    = "gcs"
)

// StorageConfig selects where fetched content is written.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls access to the outcome database. An empty DSN keeps
// outcomes in memory.
type DBConfig struct {
	DSN           string `mapstructure:"dsn"`
	RunsTable     string `mapstructure:"runs_table"`
	OutcomesTable string `mapstructure:"outcomes_table"`
	MaxConns      int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds the outcome feed topic. Both fields empty disables it.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ProgressConfig tunes the progress hub.
type ProgressConfig struct {
	BufferSize     int           `mapstructure:"buffer_size"`
	MaxBatchEvents int           `mapstructure:"max_batch_events"`
	MaxBatchWait   time.Duration `mapstructure:"max_batch_wait"`
}

// StatusConfig controls the optional status HTTP server.
type StatusConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
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
	v.SetDefault("crawler.root_url", "")
	v.SetDefault("crawler.workers", 5)
	v.SetDefault("crawler.poll_interval", 500*time.Millisecond)
	v.SetDefault("crawler.extractor", "regex")
	v.SetDefault("http.user_agent", "sitecrawler/1.0")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_body_bytes", 0)
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.base_dir", "data/crawl")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.runs_table", "crawl_runs")
	v.SetDefault("db.outcomes_table", "crawl_outcomes")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("progress.buffer_size", 4096)
	v.SetDefault("progress.max_batch_events", 1000)
	v.SetDefault("progress.max_batch_wait", 500*time.Millisecond)
	v.SetDefault("status.enabled", false)
	v.SetDefault("status.port", 8080)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	var errs []error
	if c.Crawler.Workers <= 0 {
		errs = append(errs, errors.New("crawler.workers must be > 0"))
	}
	if c.Crawler.PollInterval <= 0 {
		errs = append(errs, errors.New("crawler.poll_interval must be > 0"))
	}
	switch c.Crawler.Extractor {
	case "regex", "html":
	default:
		errs = append(errs, fmt.Errorf("crawler.extractor must be regex or html, got %q", c.Crawler.Extractor))
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("http.timeout_seconds must be > 0"))
	}
	if c.HTTP.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("http.max_body_bytes must be >= 0"))
	}
	switch c.Storage.Backend {
	case BackendLocal:
		if strings.TrimSpace(c.Storage.BaseDir) == "" {
			errs = append(errs, errors.New("storage.base_dir is required for the local backend"))
		}
	case BackendMemory:
	case BackendGCS:
		if strings.TrimSpace(c.Storage.GCSBucket) == "" {
			errs = append(errs, errors.New("storage.gcs_bucket is required for the gcs backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be local, memory or gcs, got %q", c.Storage.Backend))
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		errs = append(errs, errors.New("pubsub.project_id and pubsub.topic_name must be set together"))
	}
	if c.Progress.BufferSize < 0 || c.Progress.MaxBatchEvents < 0 || c.Progress.MaxBatchWait < 0 {
		errs = append(errs, errors.New("progress settings must be >= 0"))
	}
	if c.Status.Enabled && (c.Status.Port <= 0 || c.Status.Port > 65535) {
		errs = append(errs, errors.New("status.port must be between 1 and 65535"))
	}
	return errors.Join(errs...)
}

// FetchTimeout converts http.timeout_seconds to a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// StatusAddr is the listen address for the status server.
func (c Config) StatusAddr() string {
	return fmt.Sprintf(":%d", c.Status.Port)
}
