package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
)

const (
	MinUploadWorkers = 1
	MaxUploadWorkers = 64
)

// Config represents the main application configuration
type Config struct {
	BindAddress   string   `toml:"bind_address"`
	Port          int      `toml:"port"`
	Loglevel      string   `toml:"loglevel"`
	Username      string   `toml:"username"`
	Password      string   `toml:"password"`
	UploadWorkers int      `toml:"upload_workers"`
	B2            B2Config `toml:"b2"`
}

// B2Config holds the B2 application key and target bucket
type B2Config struct {
	KeyID          string `toml:"key_id"`
	ApplicationKey string `toml:"application_key"`
	BucketID       string `toml:"bucket_id"`
	UserAgent      string `toml:"user_agent"`
	BaseURL        string `toml:"base_url"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		BindAddress:   "0.0.0.0",
		Port:          8080,
		Loglevel:      "info",
		UploadWorkers: 4,
	}
}

// DefaultConfigPath returns the default configuration file path
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	// Use XDG config directory on Linux, Application Support on macOS
	configDir := filepath.Join(homeDir, ".config", "b2")

	return filepath.Join(configDir, "config.toml"), nil
}

// Load loads configuration from a TOML file
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.B2.KeyID == "" {
		return fmt.Errorf("b2.key_id is required")
	}
	if c.B2.ApplicationKey == "" {
		return fmt.Errorf("b2.application_key is required")
	}
	if c.B2.BucketID == "" {
		return fmt.Errorf("b2.bucket_id is required")
	}
	if c.B2.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.B2.BaseURL); err != nil {
			return fmt.Errorf("b2.base_url is invalid: %v", err)
		}
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if _, err := logrus.ParseLevel(c.Loglevel); err != nil {
		return fmt.Errorf("loglevel must be one of: panic, fatal, error, warn, info, debug, trace")
	}
	if c.UploadWorkers < MinUploadWorkers || c.UploadWorkers > MaxUploadWorkers {
		return fmt.Errorf("upload_workers must be between %d and %d", MinUploadWorkers, MaxUploadWorkers)
	}

	// Gateway basic auth is optional, but half a pair is a mistake.
	if (c.Username == "") != (c.Password == "") {
		return fmt.Errorf("username and password must be set together")
	}

	return nil
}

// BasicAuthEnabled reports whether the gateway should require
// credentials.
func (c *Config) BasicAuthEnabled() bool {
	return c.Username != "" && c.Password != ""
}
