// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel string `mapstructure:"LOG_LEVEL"`

	GithubToken      string        `mapstructure:"GITHUB_TOKEN"`
	GraphQLURL       string        `mapstructure:"GITHUB_GRAPHQL_URL"`
	RestURL          string        `mapstructure:"GITHUB_API_URL"`
	RequestTimeout   time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	RateLimitRPS     float64       `mapstructure:"RATE_LIMIT_RPS"`
	MaxRetries       int           `mapstructure:"MAX_RETRIES"`
	RetryBackoff     time.Duration `mapstructure:"RETRY_BACKOFF"`
	BatchSize        int           `mapstructure:"BATCH_SIZE"`
	BatchPause       time.Duration `mapstructure:"BATCH_PAUSE"`
	Concurrency      int           `mapstructure:"CONCURRENCY"`
	MinCommits       int           `mapstructure:"MIN_COMMITS"`
	HealthyMinCommit int           `mapstructure:"HEALTHY_MIN_COMMITS"`

	DBURL     string `mapstructure:"DB_URL"`
	CachePath string `mapstructure:"CACHE_PATH"`
	HTTPAddr  string `mapstructure:"HTTP_ADDR"`
}

var defaults = map[string]any{
	"LOG_LEVEL":           "info",
	"GITHUB_TOKEN":        "",
	"GITHUB_GRAPHQL_URL":  "https://api.github.com/graphql",
	"GITHUB_API_URL":      "",
	"REQUEST_TIMEOUT":     "30s",
	"RATE_LIMIT_RPS":      5.0,
	"MAX_RETRIES":         3,
	"RETRY_BACKOFF":       "2s",
	"BATCH_SIZE":          100,
	"BATCH_PAUSE":         "1s",
	"CONCURRENCY":         1,
	"MIN_COMMITS":         15,
	"HEALTHY_MIN_COMMITS": 5,
	"DB_URL":              "",
	"CACHE_PATH":          "",
	"HTTP_ADDR":           ":8080",
}

// FlagKeys maps command-line flag names onto configuration keys. Flags that
// a command does not define are ignored.
var FlagKeys = map[string]string{
	"log-level":     "LOG_LEVEL",
	"graphql-url":   "GITHUB_GRAPHQL_URL",
	"timeout":       "REQUEST_TIMEOUT",
	"rps":           "RATE_LIMIT_RPS",
	"max-retries":   "MAX_RETRIES",
	"retry-backoff": "RETRY_BACKOFF",
	"batch-size":    "BATCH_SIZE",
	"batch-pause":   "BATCH_PAUSE",
	"concurrency":   "CONCURRENCY",
	"min-commits":   "MIN_COMMITS",
	"healthy-min":   "HEALTHY_MIN_COMMITS",
	"db-url":        "DB_URL",
	"cache":         "CACHE_PATH",
	"addr":          "HTTP_ADDR",
}

// LoadConfig reads configuration from an optional env-format file, the
// environment and the given flags, in increasing order of precedence.
// Each call builds its own viper instance.
func LoadConfig(file string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetConfigType("env")
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	} else {
		v.SetConfigName(".env")
		v.AddConfigPath(".")
		_ = v.ReadInConfig() // Ignore error if file not found
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.GraphQLURL == "":
		return errors.New("GITHUB_GRAPHQL_URL must not be empty")
	case c.RequestTimeout <= 0:
		return errors.New("REQUEST_TIMEOUT must be positive")
	case c.RateLimitRPS <= 0:
		return errors.New("RATE_LIMIT_RPS must be positive")
	case c.MaxRetries < 1:
		return errors.New("MAX_RETRIES must be at least 1")
	case c.RetryBackoff < 0:
		return errors.New("RETRY_BACKOFF must not be negative")
	case c.BatchSize < 1:
		return errors.New("BATCH_SIZE must be at least 1")
	case c.BatchPause < 0:
		return errors.New("BATCH_PAUSE must not be negative")
	case c.Concurrency < 1:
		return errors.New("CONCURRENCY must be at least 1")
	case c.MinCommits < 0 || c.HealthyMinCommit < 0:
		return errors.New("commit thresholds must not be negative")
	}
	return nil
}

// RequireToken reports an error when no GitHub credential is configured.
// Only commands that talk to GitHub call it.
func (c *Config) RequireToken() error {
	if c.GithubToken == "" {
		return errors.New("GITHUB_TOKEN is a required configuration field")
	}
	return nil
}
