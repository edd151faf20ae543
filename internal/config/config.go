package config

import (
	"time"

	"github.com/hollomancer/sbir-analytics-sub002/internal/graph"
	"github.com/hollomancer/sbir-analytics-sub002/internal/load"
	"github.com/hollomancer/sbir-analytics-sub002/internal/types"
)

// Config is the root configuration for sbirgraph.
type Config struct {
	Graph  GraphConfig  `mapstructure:"graph" yaml:"graph"`
	Loader LoaderConfig `mapstructure:"loader" yaml:"loader"`
	Ledger LedgerConfig `mapstructure:"ledger" yaml:"ledger"`
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Graph.Validate(); err != nil {
		return err
	}
	if err := c.Loader.Validate(); err != nil {
		return err
	}
	return c.Ledger.Validate()
}

// GraphConfig contains Neo4j connection settings. Password is normally
// supplied through ${NEO4J_PASSWORD}-style interpolation rather than
// written into the file.
type GraphConfig struct {
	URI                     string        `mapstructure:"uri" yaml:"uri"`
	Username                string        `mapstructure:"username" yaml:"username"`
	Password                string        `mapstructure:"password" yaml:"password"`
	Database                string        `mapstructure:"database" yaml:"database"`
	MaxConnectionPoolSize   int           `mapstructure:"max_connection_pool_size" yaml:"max_connection_pool_size"`
	ConnectionTimeout       time.Duration `mapstructure:"connection_timeout" yaml:"connection_timeout"`
	MaxTransactionRetryTime time.Duration `mapstructure:"max_transaction_retry_time" yaml:"max_transaction_retry_time"`
}

// Client converts the section into the graph package's config.
func (g GraphConfig) Client() graph.Config {
	return graph.Config{
		URI:                     g.URI,
		Username:                g.Username,
		Password:                g.Password,
		Database:                g.Database,
		MaxConnectionPoolSize:   g.MaxConnectionPoolSize,
		ConnectionTimeout:       g.ConnectionTimeout,
		MaxTransactionRetryTime: g.MaxTransactionRetryTime,
	}
}

// Validate checks the connection settings.
func (g GraphConfig) Validate() error {
	return g.Client().Validate()
}

// LoaderConfig contains batch sizing and merge behavior.
type LoaderConfig struct {
	BatchSize int         `mapstructure:"batch_size" yaml:"batch_size"`
	Merge     MergeConfig `mapstructure:"merge" yaml:"merge"`
}

// Batch converts the section into the load package's config.
func (l LoaderConfig) Batch() load.Config {
	return load.Config{BatchSize: l.BatchSize}
}

// Validate checks the loader settings.
func (l LoaderConfig) Validate() error {
	return l.Batch().Validate()
}

// MergeConfig controls multi-key entity merging for organization loads.
type MergeConfig struct {
	// SecondaryKeys are probed in order for duplicate detection. An
	// empty list disables detection entirely.
	SecondaryKeys []string `mapstructure:"secondary_keys" yaml:"secondary_keys"`

	TrackHistory          bool `mapstructure:"track_history" yaml:"track_history"`
	RedirectRelationships bool `mapstructure:"redirect_relationships" yaml:"redirect_relationships"`
}

// Options converts the section into the load package's merge options.
func (m MergeConfig) Options() load.MergeOptions {
	return load.MergeOptions{
		SecondaryKeys:         m.SecondaryKeys,
		TrackHistory:          m.TrackHistory,
		RedirectRelationships: m.RedirectRelationships,
	}
}

// LedgerConfig controls the local run ledger.
type LedgerConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// Validate checks the ledger settings.
func (l LedgerConfig) Validate() error {
	if l.Enabled && l.Path == "" {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "ledger path is required when the ledger is enabled")
	}
	return nil
}
