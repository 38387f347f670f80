// Package config loads application configuration from file and environment.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Links   LinksConfig   `yaml:"links" mapstructure:"links"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// StoreConfig configures dataset storage.
type StoreConfig struct {
	Root string `yaml:"root" mapstructure:"root"`
}

// GeocodeConfig configures the Nominatim client and its backoff behavior.
type GeocodeConfig struct {
	BaseURL                string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent              string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs            int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MinDelaySecs           float64 `yaml:"min_delay_secs" mapstructure:"min_delay_secs"`
	TransientCooldownSecs  int     `yaml:"transient_cooldown_secs" mapstructure:"transient_cooldown_secs"`
	MaxConsecutiveFailures int     `yaml:"max_consecutive_failures" mapstructure:"max_consecutive_failures"`
	FailureCooldownSecs    int     `yaml:"failure_cooldown_secs" mapstructure:"failure_cooldown_secs"`
}

// Timeout returns the per-request geocoder timeout as a duration.
func (g GeocodeConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSecs) * time.Second
}

// MinDelay returns the minimum delay between geocode requests.
func (g GeocodeConfig) MinDelay() time.Duration {
	return time.Duration(g.MinDelaySecs * float64(time.Second))
}

// TransientCooldown returns the extra sleep applied after a transient failure.
func (g GeocodeConfig) TransientCooldown() time.Duration {
	return time.Duration(g.TransientCooldownSecs) * time.Second
}

// FailureCooldown returns the extended pause applied after too many
// consecutive failures.
func (g GeocodeConfig) FailureCooldown() time.Duration {
	return time.Duration(g.FailureCooldownSecs) * time.Second
}

// LinksConfig configures presentation links added to exported records.
type LinksConfig struct {
	// PersonBase is prepended to a record's external id to build a clickable
	// profile link. Empty disables the link column.
	PersonBase string `yaml:"person_base" mapstructure:"person_base"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MAPPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8765)
	v.SetDefault("store.root", "datasets")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "family-mapper/0.1")
	v.SetDefault("geocode.timeout_secs", 15)
	v.SetDefault("geocode.min_delay_secs", 1.0)
	v.SetDefault("geocode.transient_cooldown_secs", 2)
	v.SetDefault("geocode.max_consecutive_failures", 5)
	v.SetDefault("geocode.failure_cooldown_secs", 10)
	v.SetDefault("links.person_base", "https://my.hpumc.org/Person2/")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
