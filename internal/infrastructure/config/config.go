package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the static bootstrap configuration: everything the daemon needs
// before it can reach the CMS. Operational tuning lives in the CMS-backed
// live configuration instead.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	CMS      CMSConfig      `mapstructure:"cms"`
	Daemon   DaemonConfig   `mapstructure:"daemon"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Admin    AdminConfig    `mapstructure:"admin"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=sqlite postgres"`
	DSN    string `mapstructure:"dsn" validate:"required"`
}

type CMSConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DaemonConfig struct {
	PidFile               string        `mapstructure:"pid_file"`
	CacheRefreshInterval  time.Duration `mapstructure:"cache_refresh_interval"`
	ConfigRefreshInterval time.Duration `mapstructure:"config_refresh_interval"`
	SweepInterval         time.Duration `mapstructure:"sweep_interval"`
	StoreTTL              time.Duration `mapstructure:"store_ttl"`
	HealthInterval        time.Duration `mapstructure:"health_interval"`
	StaleTelemetryAfter   time.Duration `mapstructure:"stale_telemetry_after"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=DEBUG INFO WARN ERROR"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type AdminConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "commuter.db")
	v.SetDefault("cms.base_url", "http://localhost:1337/api")
	v.SetDefault("cms.timeout", "30s")
	v.SetDefault("daemon.pid_file", "commuter-daemon.pid")
	v.SetDefault("daemon.cache_refresh_interval", "5m")
	v.SetDefault("daemon.config_refresh_interval", "1m")
	v.SetDefault("daemon.sweep_interval", "30s")
	v.SetDefault("daemon.store_ttl", "24h")
	v.SetDefault("daemon.health_interval", "30s")
	v.SetDefault("daemon.stale_telemetry_after", "2m")
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9180")
	v.SetDefault("admin.enabled", true)
	v.SetDefault("admin.addr", ":9181")
}

// Load reads configuration from .env, the environment (CMTR_ prefix) and an
// optional config file, then validates it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("commuter")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/commuter")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("CMTR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}
