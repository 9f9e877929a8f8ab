package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"LiveGuard/pkg/cache"
	"LiveGuard/pkg/logger"
)

// Config is the client configuration. Values come from an optional file,
// LIVEGUARD_* environment variables and the defaults below.
type Config struct {
	Mode     string           `mapstructure:"mode"`
	Language string           `mapstructure:"language"`
	API      APIConfig        `mapstructure:"api"`
	Log      logger.LogConfig `mapstructure:"log"`
	Store    StoreConfig      `mapstructure:"store"`
	Cache    cache.Config     `mapstructure:"cache"`
	Poll     PollConfig       `mapstructure:"poll"`
	SMS      SMSConfig        `mapstructure:"sms"`
	Metrics  MetricsConfig    `mapstructure:"metrics"`
	Mock     MockConfig       `mapstructure:"mock"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// AGENCY for the responder console, empty for civilians and admins
	ClientType string `mapstructure:"client_type"`
}

// StoreConfig selects the device key/value store.
type StoreConfig struct {
	// sql | cache
	Backend string `mapstructure:"backend"`
	// sqlite | mysql | pg
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type PollConfig struct {
	AlertStatusInterval  time.Duration `mapstructure:"alert_status_interval"`
	CancelWindow         time.Duration `mapstructure:"cancel_window"`
	TickInterval         time.Duration `mapstructure:"tick_interval"`
	AssignmentSchedule   string        `mapstructure:"assignment_schedule"`
	LocationMinInterval  time.Duration `mapstructure:"location_min_interval"`
	LocationMinDistance  float64       `mapstructure:"location_min_distance"`
	LocationTimeout      time.Duration `mapstructure:"location_timeout"`
	SuccessFeedbackDelay time.Duration `mapstructure:"success_feedback_delay"`
}

type SMSConfig struct {
	Platform      string `mapstructure:"platform"`
	MaxRecipients int    `mapstructure:"max_recipients"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Namespace string `mapstructure:"namespace"`
}

type MockConfig struct {
	Addr string `mapstructure:"addr"`
}

var GlobalConfig *Config

// Load reads path (optional, any format viper understands) and the
// environment, then stores the result in GlobalConfig.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("LIVEGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	GlobalConfig = &cfg
	return &cfg, nil
}

// Default returns the built-in defaults without reading file or environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// defaults always decode
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func (c *Config) validate() error {
	var errs []error
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	}
	if c.Poll.AlertStatusInterval <= 0 || c.Poll.TickInterval <= 0 {
		errs = append(errs, errors.New("poll intervals must be positive"))
	}
	if c.Poll.CancelWindow < 0 {
		errs = append(errs, errors.New("poll.cancel_window must not be negative"))
	}
	switch c.Store.Backend {
	case "sql", "cache":
	default:
		errs = append(errs, fmt.Errorf("unsupported store.backend %q", c.Store.Backend))
	}
	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool { return c.Mode == "development" }

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "development")
	v.SetDefault("language", "en")

	v.SetDefault("api.base_url", "http://127.0.0.1:8000")
	v.SetDefault("api.timeout", "15s")
	v.SetDefault("api.client_type", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.filename", "")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_age", 7)
	v.SetDefault("log.max_backups", 3)

	v.SetDefault("store.backend", "sql")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "liveguard.db")

	v.SetDefault("cache.type", "local")
	v.SetDefault("cache.local.max_size", 256)
	v.SetDefault("cache.local.default_expiration", "0s")
	v.SetDefault("cache.local.cleanup_interval", "1m")
	v.SetDefault("cache.local.snapshot_path", "")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.pool_size", 10)
	v.SetDefault("cache.redis.min_idle_conns", 2)
	v.SetDefault("cache.redis.dial_timeout", "5s")
	v.SetDefault("cache.redis.read_timeout", "3s")
	v.SetDefault("cache.redis.write_timeout", "3s")
	v.SetDefault("cache.redis.key_prefix", "liveguard:")

	v.SetDefault("poll.alert_status_interval", "5s")
	v.SetDefault("poll.cancel_window", "60s")
	v.SetDefault("poll.tick_interval", "1s")
	v.SetDefault("poll.assignment_schedule", "@every 30s")
	v.SetDefault("poll.location_min_interval", "10s")
	v.SetDefault("poll.location_min_distance", 15.0)
	v.SetDefault("poll.location_timeout", "10s")
	v.SetDefault("poll.success_feedback_delay", "1500ms")

	v.SetDefault("sms.platform", "android")
	v.SetDefault("sms.max_recipients", 3)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9464")
	v.SetDefault("metrics.namespace", "liveguard")

	v.SetDefault("mock.addr", ":8000")
}
