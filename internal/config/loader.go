package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles loading configuration from files.
type Loader interface {
	Load(path string) (*Config, error)
	LoadWithDefaults(path string) (*Config, error)
}

// viperLoader implements Loader using Viper.
type viperLoader struct{}

// NewLoader creates a new Loader instance.
func NewLoader() Loader {
	return &viperLoader{}
}

// Load loads configuration from the specified file path. Settings absent
// from the file keep their default values; ${VAR_NAME} references in
// string settings are replaced from the environment before validation.
func (l *viperLoader) Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal over the defaults so a partial file works.
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.interpolate()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithDefaults loads configuration from the specified file path.
// If the file doesn't exist, returns default configuration.
func (l *viperLoader) LoadWithDefaults(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.interpolate()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("default configuration validation failed: %w", err)
		}
		return cfg, nil
	}
	return l.Load(path)
}

// interpolate replaces ${VAR_NAME} references in every string setting.
func (c *Config) interpolate() {
	c.Graph.URI = interpolateString(c.Graph.URI)
	c.Graph.Username = interpolateString(c.Graph.Username)
	c.Graph.Password = interpolateString(c.Graph.Password)
	c.Graph.Database = interpolateString(c.Graph.Database)
	for i, key := range c.Loader.Merge.SecondaryKeys {
		c.Loader.Merge.SecondaryKeys[i] = interpolateString(key)
	}
	c.Ledger.Path = interpolateString(c.Ledger.Path)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// interpolateString replaces ${VAR_NAME} with environment variable
// values. Unset variables leave the reference untouched.
func interpolateString(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if envValue := os.Getenv(varName); envValue != "" {
			return envValue
		}
		return match
	})
}
