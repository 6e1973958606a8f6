// Package config loads and validates harvest configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Source     string        `mapstructure:"source"`
	Locale     string        `mapstructure:"locale"`
	CutoffDays int           `mapstructure:"cutoff_days"`
	DB         DBConfig      `mapstructure:"db"`
	Harvest    HarvestConfig `mapstructure:"harvest"`
	Worker     WorkerConfig  `mapstructure:"worker"`
	Queue      QueueConfig   `mapstructure:"queue"`
	Ops        OpsConfig     `mapstructure:"ops"`
	Archive    ArchiveConfig `mapstructure:"archive"`
	Publish    PublishConfig `mapstructure:"publish"`
	Logging    LoggingConfig `mapstructure:"logging"`
	Seeds      SeedsConfig   `mapstructure:"seeds"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
}

// HarvestConfig governs the listing frontier walk.
type HarvestConfig struct {
	MaxPagesPerKeyword int    `mapstructure:"max_pages_per_keyword"`
	StaleMaxPages      int    `mapstructure:"stale_max_pages"`
	ZeroNewPageLimit   int    `mapstructure:"zero_new_page_limit"`
	PageDelayMs        int    `mapstructure:"page_delay_ms"`
	UserAgent          string `mapstructure:"user_agent"`

	// Outbound pacing shared by the frontier and the detail workers.
	// A non-positive rate disables the limiter.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// WorkerConfig governs the detail worker pool.
type WorkerConfig struct {
	Count                 int `mapstructure:"count"`
	PollIntervalSeconds   int `mapstructure:"poll_interval_seconds"`
	FetchTimeoutSeconds   int `mapstructure:"fetch_timeout_seconds"`
	RateLimitPauseSeconds int `mapstructure:"rate_limit_pause_seconds"`
}

// QueueConfig governs job lifecycle limits.
type QueueConfig struct {
	MaxAttempts       int `mapstructure:"max_attempts"`
	StuckAfterMinutes int `mapstructure:"stuck_after_minutes"`
}

// OpsConfig controls the operational HTTP surface.
type OpsConfig struct {
	Port int `mapstructure:"port"`
}

// ArchiveConfig controls optional raw-page archival.
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

// PublishConfig controls optional promotion event publishing.
type PublishConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// SeedsConfig holds the keyword lists per tier. Empty lists fall back to
// the built-in Vietnamese ingredient seeds.
type SeedsConfig struct {
	Tier1 []string `mapstructure:"tier1"`
	Tier2 []string `mapstructure:"tier2"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RECIPEHARVEST")
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

	if len(cfg.Seeds.Tier1) == 0 {
		cfg.Seeds.Tier1 = DefaultTier1Seeds()
	}
	if len(cfg.Seeds.Tier2) == 0 {
		cfg.Seeds.Tier2 = DefaultTier2Seeds()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source", "cookpad")
	v.SetDefault("locale", "vn")
	v.SetDefault("cutoff_days", 30)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("harvest.max_pages_per_keyword", 30)
	v.SetDefault("harvest.stale_max_pages", 2)
	v.SetDefault("harvest.zero_new_page_limit", 2)
	v.SetDefault("harvest.page_delay_ms", 200)
	v.SetDefault("harvest.user_agent", "recipeharvest-bot/0.1")
	v.SetDefault("harvest.requests_per_second", 4.0)
	v.SetDefault("harvest.burst", 2)
	v.SetDefault("worker.count", 3)
	v.SetDefault("worker.poll_interval_seconds", 5)
	v.SetDefault("worker.fetch_timeout_seconds", 20)
	v.SetDefault("worker.rate_limit_pause_seconds", 1)
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.stuck_after_minutes", 30)
	v.SetDefault("ops.port", 8080)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.backend", "local")
	v.SetDefault("archive.dir", "archive")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("publish.enabled", false)
	v.SetDefault("publish.topic", "recipes-promoted")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Source == "" || c.Locale == "" {
		return fmt.Errorf("source and locale must be set")
	}
	if c.CutoffDays <= 0 {
		return fmt.Errorf("cutoff_days must be > 0")
	}
	if c.Harvest.MaxPagesPerKeyword <= 0 {
		return fmt.Errorf("harvest.max_pages_per_keyword must be > 0")
	}
	if c.Harvest.StaleMaxPages <= 0 || c.Harvest.StaleMaxPages > c.Harvest.MaxPagesPerKeyword {
		return fmt.Errorf("harvest.stale_max_pages must be in [1, max_pages_per_keyword]")
	}
	if c.Worker.Count <= 0 {
		return fmt.Errorf("worker.count must be > 0")
	}
	if c.Worker.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("worker.fetch_timeout_seconds must be > 0")
	}
	if c.Queue.MaxAttempts <= 0 {
		return fmt.Errorf("queue.max_attempts must be > 0")
	}
	if c.Ops.Port <= 0 {
		return fmt.Errorf("ops.port must be > 0")
	}
	if c.Archive.Enabled {
		switch c.Archive.Backend {
		case "local":
			if c.Archive.Dir == "" {
				return fmt.Errorf("archive.dir must be set for the local backend")
			}
		case "gcs":
			if c.Archive.Bucket == "" {
				return fmt.Errorf("archive.bucket must be set for the gcs backend")
			}
		default:
			return fmt.Errorf("archive.backend must be local or gcs")
		}
	}
	if c.Publish.Enabled && (c.Publish.ProjectID == "" || c.Publish.Topic == "") {
		return fmt.Errorf("publish.project_id and publish.topic must be set when publishing is enabled")
	}
	return nil
}

// PageDelay converts the harvest page delay into a duration.
func (c Config) PageDelay() time.Duration {
	return time.Duration(c.Harvest.PageDelayMs) * time.Millisecond
}

// PollInterval converts the worker poll interval into a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Worker.PollIntervalSeconds) * time.Second
}

// FetchTimeout converts the worker fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Worker.FetchTimeoutSeconds) * time.Second
}

// RateLimitPause converts the worker rate limit pause into a duration.
func (c Config) RateLimitPause() time.Duration {
	return time.Duration(c.Worker.RateLimitPauseSeconds) * time.Second
}

// StuckAfter converts the stuck-job threshold into a duration.
func (c Config) StuckAfter() time.Duration {
	return time.Duration(c.Queue.StuckAfterMinutes) * time.Minute
}
