// Package config loads wikichain configuration from defaults, a TOML file and
// WIKICHAIN_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/latebit/wikichain/internal/logging"
)

// DefaultEndpoint is the English Wikipedia action API.
const DefaultEndpoint = "https://en.wikipedia.org/w/api.php"

// Config holds every tunable used by the search session and its front ends.
type Config struct {
	Endpoint  string `toml:"endpoint"`
	UserAgent string `toml:"user_agent"`

	MaxDepth       int  `toml:"max_depth"`
	MaxNodes       int  `toml:"max_nodes"`
	BatchSize      int  `toml:"batch_size"`
	MaxRetries     int  `toml:"max_retries"`
	IncludeInfobox bool `toml:"include_infobox"`
	IncludeNavbox  bool `toml:"include_navbox"`

	PageDelay         time.Duration `toml:"page_delay"`
	RequestsPerSecond float64       `toml:"requests_per_second"`
	Burst             int           `toml:"burst"`
	RequestTimeout    time.Duration `toml:"request_timeout"`
	HTTP3             bool          `toml:"http3"`
	Insecure          bool          `toml:"insecure"`

	LogFormat   string `toml:"log_format"`
	LogLevel    string `toml:"log_level"`
	HistoryPath string `toml:"history_path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Endpoint:          DefaultEndpoint,
		UserAgent:         "wikichain/0.1 (https://github.com/latebit/wikichain)",
		MaxDepth:          6,
		MaxNodes:          2000,
		BatchSize:         50,
		MaxRetries:        25,
		IncludeInfobox:    true,
		IncludeNavbox:     true,
		PageDelay:         50 * time.Millisecond,
		RequestsPerSecond: 10,
		Burst:             5,
		RequestTimeout:    15 * time.Second,
		LogFormat:         "text",
		LogLevel:          "warn",
		HistoryPath:       filepath.Join(Dir(), "history.db"),
	}
}

// Dir returns the per-user configuration directory (~/.wikichain).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wikichain"
	}
	return filepath.Join(home, ".wikichain")
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load builds a Config from defaults, the TOML file at path (skipped if it
// does not exist) and environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %q: %w", path, err)
	}
	if _, err := toml.Decode(string(data), c); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Endpoint = getEnv("WIKICHAIN_ENDPOINT", c.Endpoint)
	c.UserAgent = getEnv("WIKICHAIN_USER_AGENT", c.UserAgent)
	c.MaxDepth = getEnvAsInt("WIKICHAIN_MAX_DEPTH", c.MaxDepth)
	c.MaxNodes = getEnvAsInt("WIKICHAIN_MAX_NODES", c.MaxNodes)
	c.BatchSize = getEnvAsInt("WIKICHAIN_BATCH_SIZE", c.BatchSize)
	c.MaxRetries = getEnvAsInt("WIKICHAIN_MAX_RETRIES", c.MaxRetries)
	c.IncludeInfobox = getEnvAsBool("WIKICHAIN_INCLUDE_INFOBOX", c.IncludeInfobox)
	c.IncludeNavbox = getEnvAsBool("WIKICHAIN_INCLUDE_NAVBOX", c.IncludeNavbox)
	c.PageDelay = getEnvAsDuration("WIKICHAIN_PAGE_DELAY", c.PageDelay)
	c.RequestsPerSecond = getEnvAsFloat("WIKICHAIN_RPS", c.RequestsPerSecond)
	c.Burst = getEnvAsInt("WIKICHAIN_BURST", c.Burst)
	c.RequestTimeout = getEnvAsDuration("WIKICHAIN_REQUEST_TIMEOUT", c.RequestTimeout)
	c.HTTP3 = getEnvAsBool("WIKICHAIN_HTTP3", c.HTTP3)
	c.Insecure = getEnvAsBool("WIKICHAIN_INSECURE", c.Insecure)
	c.LogFormat = getEnv("WIKICHAIN_LOG_FORMAT", c.LogFormat)
	c.LogLevel = getEnv("WIKICHAIN_LOG_LEVEL", c.LogLevel)
	c.HistoryPath = getEnv("WIKICHAIN_HISTORY", c.HistoryPath)
}

// Validate checks the search budgets and transport settings.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Endpoint) == "" {
		errs = append(errs, errors.New("endpoint must not be empty"))
	}
	if c.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("max_depth must be >= 0 (got %d)", c.MaxDepth))
	}
	if c.MaxNodes < 1 {
		errs = append(errs, fmt.Errorf("max_nodes must be >= 1 (got %d)", c.MaxNodes))
	}
	if c.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("batch_size must be >= 1 (got %d)", c.BatchSize))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max_retries must be >= 0 (got %d)", c.MaxRetries))
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("requests_per_second must be >= 0 (got %v)", c.RequestsPerSecond))
	}
	if _, _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if !logging.ValidFormat(c.LogFormat) {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
