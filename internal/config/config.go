package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"delta-gateway/internal/logging"
	"delta-gateway/internal/storage"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  storage.Config `mapstructure:"storage"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  logging.Config `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port string `mapstructure:"port" validate:"required"`
	Mode string `mapstructure:"mode" validate:"oneof=debug release test"`
	Host string `mapstructure:"host"`
}

// EngineConfig controls snapshot loading.
type EngineConfig struct {
	MaxReaderVersion int      `mapstructure:"max_reader_version" validate:"min=1,max=3"`
	ReaderFeatures   []string `mapstructure:"reader_features" validate:"dive,oneof=timestampNtz vacuumProtocolCheck"`
	FetchConcurrency int      `mapstructure:"fetch_concurrency" validate:"min=1,max=256"`
}

type SecurityConfig struct {
	JWTSecret          string        `mapstructure:"jwt_secret"`
	JWTExpiration      time.Duration `mapstructure:"jwt_expiration"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute" validate:"min=0"`
	RateLimitBurst     int           `mapstructure:"rate_limit_burst" validate:"min=0"`
	EnableAuth         bool          `mapstructure:"enable_auth"`
	EnableRateLimit    bool          `mapstructure:"enable_rate_limit"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads config.yaml from ./configs or the working directory, then the
// environment (DELTA_GATEWAY_STORAGE_BACKEND overrides storage.backend).
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from path, or searches the default locations
// when path is empty.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.SetEnvPrefix("delta_gateway")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.host", "0.0.0.0")

	// Storage defaults
	v.SetDefault("storage.backend", storage.BackendLocal)
	v.SetDefault("storage.root", ".")
	v.SetDefault("storage.s3.max_retries", 3)
	v.SetDefault("storage.s3.timeout", "30s")
	v.SetDefault("storage.cos.timeout", "30s")

	// Engine defaults
	v.SetDefault("engine.max_reader_version", 1)
	v.SetDefault("engine.reader_features", []string{})
	v.SetDefault("engine.fetch_concurrency", 8)

	// Security defaults
	v.SetDefault("security.jwt_secret", "")
	v.SetDefault("security.jwt_expiration", "24h")
	v.SetDefault("security.rate_limit_per_minute", 600)
	v.SetDefault("security.rate_limit_burst", 50)
	v.SetDefault("security.enable_auth", false)
	v.SetDefault("security.enable_rate_limit", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}
