// Package config loads layered configuration for the ingestor and projector
// binaries: environment variables (VNAS_*) > config file > defaults. No
// CLI flag overrides a config value; the only flag, --config, selects the
// file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// VnasEnvironment selects which upstream vNAS data-feed environment to poll.
type VnasEnvironment string

const (
	EnvLive       VnasEnvironment = "live"
	EnvSweatbox1  VnasEnvironment = "sweatbox1"
	EnvSweatbox2  VnasEnvironment = "sweatbox2"
	EnvTest       VnasEnvironment = "test"
)

// FeedURL returns the data-feed URL for the environment enum.
func (e VnasEnvironment) FeedURL() (string, error) {
	switch e {
	case EnvLive, "":
		return "https://live.env.vnas.vatsim.net/data-feed/controllers.json", nil
	case EnvSweatbox1:
		return "https://sweatbox1.env.vnas.vatsim.net/data-feed/controllers.json", nil
	case EnvSweatbox2:
		return "https://sweatbox2.env.vnas.vatsim.net/data-feed/controllers.json", nil
	case EnvTest:
		return "https://test.virtualnas.net/data-feed/controllers.json", nil
	default:
		return "", fmt.Errorf("unknown vnas environment %q", e)
	}
}

// DatabaseConfig configures the shared PostgreSQL-backed queue/session store.
type DatabaseConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required"`
	Database string `mapstructure:"database" validate:"required"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
	SSLMode  string `mapstructure:"ssl_mode" validate:"oneof=disable require verify-ca verify-full prefer"`

	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
}

// ApplyDefaults fills unset fields with conservative defaults.
func (c *DatabaseConfig) ApplyDefaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 5
	}
	if c.MinConns == 0 {
		c.MinConns = 1
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = time.Hour
	}
	if c.MaxConnIdleTime == 0 {
		c.MaxConnIdleTime = 30 * time.Minute
	}
	if c.HealthCheckPeriod == 0 {
		c.HealthCheckPeriod = time.Minute
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.SSLMode == "" {
		c.SSLMode = "prefer"
	}
}

// ConnectionString builds a libpq-style connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s connect_timeout=%d",
		c.Host, c.Port, c.Database, c.User, c.Password, c.SSLMode,
		int(c.ConnectTimeout.Seconds()),
	)
}

// FeedConfig configures the upstream data-feed client.
type FeedConfig struct {
	Environment VnasEnvironment `mapstructure:"environment"`
	// URL overrides Environment when set (used in tests against a fake server).
	URL string `mapstructure:"url"`
}

// ResolvedURL returns FeedConfig.URL if set, else the environment's URL.
func (f *FeedConfig) ResolvedURL() (string, error) {
	if f.URL != "" {
		return f.URL, nil
	}
	return f.Environment.FeedURL()
}

// IngestorConfig configures the ingestor loop.
type IngestorConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval" validate:"required,gt=0"`
	HealthPort   int           `mapstructure:"health_port" validate:"required,gt=0"`
}

// ProjectorConfig configures the projector loop.
type ProjectorConfig struct {
	BacklogBatchSize int `mapstructure:"backlog_batch_size" validate:"required,gt=0"`
	NotifyBatchSize  int `mapstructure:"notify_batch_size" validate:"required,gt=0"`
	HealthPort       int `mapstructure:"health_port" validate:"required,gt=0"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
	Output string `mapstructure:"output"`
}

// MetricsConfig controls Prometheus metric collection. Neither binary
// serves the registry over HTTP, and Port is not read.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Config is the top-level configuration shared by both binaries.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Ingestor  IngestorConfig  `mapstructure:"ingestor"`
	Projector ProjectorConfig `mapstructure:"projector"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("database.ssl_mode", "prefer")
	v.SetDefault("database.max_conns", 5)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("feed.environment", string(EnvLive))
	v.SetDefault("ingestor.tick_interval", "15s")
	v.SetDefault("ingestor.health_port", 8081)
	v.SetDefault("projector.backlog_batch_size", 25)
	v.SetDefault("projector.notify_batch_size", 10)
	v.SetDefault("projector.health_port", 8082)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
}

// Load reads configuration from the given file path (may be empty), layered
// with environment variables prefixed VNAS_ and the defaults above.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("VNAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	applyDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	cfg.Database.ApplyDefaults()

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// MustLoad is like Load but treats a missing optional file as fine and
// returns a usable Config from env/defaults alone.
func MustLoad(configFile string) (*Config, error) {
	cfg, err := Load(configFile)
	if err != nil && configFile != "" && errors.Is(err, os.ErrNotExist) {
		return Load("")
	}
	return cfg, err
}
