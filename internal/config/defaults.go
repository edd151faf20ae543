package config

import (
	"path/filepath"
	"time"
)

// DefaultConfig returns a Config with sensible default values: a local
// Neo4j instance, the standard batch size, UEI-then-DUNS merge
// detection, and a ledger under the home directory.
func DefaultConfig() *Config {
	homeDir := DefaultHomeDir()

	return &Config{
		Graph: GraphConfig{
			URI:                     "bolt://localhost:7687",
			Username:                "neo4j",
			Password:                "",
			Database:                "neo4j",
			MaxConnectionPoolSize:   50,
			ConnectionTimeout:       30 * time.Second,
			MaxTransactionRetryTime: 30 * time.Second,
		},
		Loader: LoaderConfig{
			BatchSize: 1000,
			Merge: MergeConfig{
				SecondaryKeys:         []string{"uei", "duns"},
				TrackHistory:          true,
				RedirectRelationships: true,
			},
		},
		Ledger: LedgerConfig{
			Enabled: true,
			Path:    filepath.Join(homeDir, "ledger.db"),
		},
	}
}
