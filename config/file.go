package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"github.com/pevans/marsfed/internal/telemetry"
	"gopkg.in/yaml.v3"
)

// EnvStoreDSN overrides the store connection string.
const EnvStoreDSN = "MARSFED_STORE_DSN"

// Browser drivers.
const (
	DriverChrome = "chrome"
	DriverHTTP   = "http"
)

// Config represents the structure of ~/.marsfed/config.yaml.
type Config struct {
	Store struct {
		DSN string `yaml:"dsn"`
	} `yaml:"store"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // "text" or "json"
	} `yaml:"log"`
	Browser  BrowserConfig `yaml:"browser"`
	Timeouts struct {
		Wait  string `yaml:"wait"`
		Fetch string `yaml:"fetch"`
	} `yaml:"timeouts"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// BrowserConfig selects and configures the navigator.
type BrowserConfig struct {
	Driver           string `yaml:"driver"` // "chrome" or "http"
	Headless         *bool  `yaml:"headless"`
	ExecPath         string `yaml:"exec_path"`
	NoSandbox        bool   `yaml:"no_sandbox"`
	CloudflareBypass *bool  `yaml:"cloudflare_bypass"`
}

// Default returns the built-in configuration.
func Default() Config {
	enabled := true

	var cfg Config
	cfg.Store.DSN = "marsfed.db"
	cfg.Server.Addr = "localhost:5000"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Browser = BrowserConfig{
		Driver:           DriverChrome,
		Headless:         &enabled,
		CloudflareBypass: &enabled,
	}
	cfg.Timeouts.Wait = "500ms"
	cfg.Timeouts.Fetch = "30s"
	cfg.Telemetry = telemetry.Config{
		Exporter: telemetry.ExporterNone,
		Protocol: telemetry.ProtocolHTTP,
	}
	return cfg
}

// DefaultPath returns ~/.marsfed/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".marsfed", "config.yaml"), nil
}

// LoadConfigFile loads configuration from path. Returns nil if the file
// doesn't exist (not an error). Returns error if the file exists but cannot
// be parsed.
func LoadConfigFile(path string) (*Config, error) {
	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil // File doesn't exist -- not an error
	}

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// Load reads the config file at path (DefaultPath when empty), fills unset
// values from Default, applies the environment override and validates the
// result.
func Load(path string) (*Config, error) {
	if path == "" {
		defaultPath, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	var cfg Config
	file, err := LoadConfigFile(path)
	if err != nil {
		return nil, err
	}
	if file != nil {
		cfg = *file
	}

	if err := mergo.Merge(&cfg, Default()); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	if dsn := os.Getenv(EnvStoreDSN); dsn != "" {
		cfg.Store.DSN = dsn
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be checked by the YAML decoder.
func (c *Config) Validate() error {
	if c.Browser.Driver != DriverChrome && c.Browser.Driver != DriverHTTP {
		return fmt.Errorf("invalid browser.driver %q: must be chrome or http", c.Browser.Driver)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log.format %q: must be text or json", c.Log.Format)
	}
	if _, err := time.ParseDuration(c.Timeouts.Wait); err != nil {
		return errors.New("invalid timeouts.wait: must be a valid duration (e.g., 500ms, 1s)")
	}
	if _, err := time.ParseDuration(c.Timeouts.Fetch); err != nil {
		return errors.New("invalid timeouts.fetch: must be a valid duration (e.g., 30s, 1m)")
	}
	return c.Telemetry.Validate()
}

// WaitTimeout returns the best-effort element wait.
func (c *Config) WaitTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Timeouts.Wait)
	return d
}

// FetchTimeout returns the per-request HTTP timeout.
func (c *Config) FetchTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Timeouts.Fetch)
	return d
}
