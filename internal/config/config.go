package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type Config struct {
	APIBase           string        `mapstructure:"MEDVAULT_API_BASE"`
	Env               string        `mapstructure:"ENV"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	TokenFile         string        `mapstructure:"TOKEN_FILE"`
	HTTPTimeout       time.Duration `mapstructure:"HTTP_TIMEOUT"`
	SandboxPort       string        `mapstructure:"SANDBOX_PORT"`
	SandboxSigningKey string        `mapstructure:"SANDBOX_SIGNING_KEY"`
	SandboxSeed       int64         `mapstructure:"SANDBOX_SEED"`
	WatchSchedule     string        `mapstructure:"WATCH_SCHEDULE"`
}

// devSigningKey signs sandbox tokens when no key is configured.
const devSigningKey = "medvault-sandbox-development-key"

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("MEDVAULT_API_BASE", "http://localhost:8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TOKEN_FILE", defaultTokenFile())
	v.SetDefault("HTTP_TIMEOUT", "15s")
	v.SetDefault("SANDBOX_PORT", "8080")
	v.SetDefault("SANDBOX_SIGNING_KEY", devSigningKey)
	v.SetDefault("SANDBOX_SEED", 42)
	v.SetDefault("WATCH_SCHEDULE", "@every 30s")

	v.BindEnv("MEDVAULT_API_BASE")
	v.BindEnv("ENV")
	v.BindEnv("LOG_LEVEL")
	v.BindEnv("TOKEN_FILE")
	v.BindEnv("HTTP_TIMEOUT")
	v.BindEnv("SANDBOX_PORT")
	v.BindEnv("SANDBOX_SIGNING_KEY")
	v.BindEnv("SANDBOX_SEED")
	v.BindEnv("WATCH_SCHEDULE")

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".medvault-session.json"
	}
	return filepath.Join(home, ".medvault", "session.json")
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Level returns the parsed log level, falling back to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// Validate checks that the configuration can be used to reach a backend.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBase)
	if err != nil {
		return fmt.Errorf("MEDVAULT_API_BASE is not a valid URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("MEDVAULT_API_BASE must be an absolute http(s) URL, got %q", c.APIBase)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("LOG_LEVEL %q: %w", c.LogLevel, err)
		}
	}
	if c.TokenFile == "" {
		return fmt.Errorf("TOKEN_FILE is required")
	}
	if c.IsProduction() && (c.SandboxSigningKey == "" || c.SandboxSigningKey == devSigningKey) {
		return fmt.Errorf("SANDBOX_SIGNING_KEY must be set to a non-default value in production")
	}
	return nil
}
