package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"texttools/common"
)

// Config holds the worker configuration.
type Config struct {
	Rollup  RollupConfig  `yaml:"rollup"`
	Logging LoggingConfig `yaml:"logging"`
}

// RollupConfig configures the coordinator connection.
type RollupConfig struct {
	URL           string `yaml:"url"`
	FinishTimeout string `yaml:"finish_timeout"` // blocking fetch of the next work item
	SubmitTimeout string `yaml:"submit_timeout"` // notice and report
	RetryInterval string `yaml:"retry_interval"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

const (
	defaultFinishTimeout = 60 * time.Second
	defaultSubmitTimeout = 10 * time.Second
	defaultRetryInterval = time.Second
)

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Rollup: RollupConfig{
			URL:           common.DefaultRollupURL,
			FinishTimeout: defaultFinishTimeout.String(),
			SubmitTimeout: defaultSubmitTimeout.String(),
			RetryInterval: defaultRetryInterval.String(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads defaults, then the YAML file at path (if any), then the
// environment. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if u := os.Getenv(common.EnvRollupURL); u != "" {
		c.Rollup.URL = u
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		c.Logging.Level = lvl
	}
}

// Validate checks that the coordinator URL is usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Rollup.URL)
	if err != nil {
		return fmt.Errorf("invalid rollup url %q: %w", c.Rollup.URL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid rollup url %q: must be an absolute http(s) URL", c.Rollup.URL)
	}
	return nil
}

// GetFinishTimeout returns the /finish timeout as a duration.
func (c *Config) GetFinishTimeout() time.Duration {
	return parseDuration(c.Rollup.FinishTimeout, defaultFinishTimeout)
}

// GetSubmitTimeout returns the /notice and /report timeout as a duration.
func (c *Config) GetSubmitTimeout() time.Duration {
	return parseDuration(c.Rollup.SubmitTimeout, defaultSubmitTimeout)
}

// GetRetryInterval returns the pause after a failed cycle.
func (c *Config) GetRetryInterval() time.Duration {
	return parseDuration(c.Rollup.RetryInterval, defaultRetryInterval)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
