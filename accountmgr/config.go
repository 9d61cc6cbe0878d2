package accountmgr

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the configuration for the account manager application.
// Provider credentials are supplied via environment only (ACCOUNTFLOW_
// prefix); there are no compiled-in secrets.
type Config struct {
	HTTPAddr    string         `mapstructure:"http_addr" validate:"required"`
	LogLevel    string         `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	BatchSize   int            `mapstructure:"batch_size" validate:"required,gt=0"`
	Parallelism int            `mapstructure:"parallelism" validate:"required,gt=0"`
	Provider    ProviderConfig `mapstructure:"provider"`
}

// ProviderConfig holds the backend-gateway connection settings.
type ProviderConfig struct {
	BaseURL        string `mapstructure:"base_url" validate:"required,url"`
	Username       string `mapstructure:"username" validate:"required"`
	Password       string `mapstructure:"password" validate:"required"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"gt=0"`
}

// DefaultConfig returns the defaults used when no overrides are set.
// Credentials have no default.
func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:    "localhost:8080",
		LogLevel:    "info",
		BatchSize:   50,
		Parallelism: 4,
		Provider: ProviderConfig{
			TimeoutSeconds: 30,
		},
	}
}

// Load reads configuration from the environment (ACCOUNTFLOW_ prefix,
// nested keys joined with underscores, e.g. ACCOUNTFLOW_PROVIDER_BASE_URL)
// on top of the defaults, then validates the result.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ACCOUNTFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultConfig()
	v.SetDefault("http_addr", defaults.HTTPAddr)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("batch_size", defaults.BatchSize)
	v.SetDefault("parallelism", defaults.Parallelism)
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.username", "")
	v.SetDefault("provider.password", "")
	v.SetDefault("provider.timeout_seconds", defaults.Provider.TimeoutSeconds)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}
