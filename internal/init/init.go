// Package init bootstraps a local sbirgraph installation: the home
// directory, a starter configuration file, and the run ledger database.
package init

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hollomancer/sbir-analytics-sub002/internal/config"
	"github.com/hollomancer/sbir-analytics-sub002/internal/ledger"
)

// InitOptions configures the initialization process
type InitOptions struct {
	// HomeDir is the root directory for the installation.
	// If empty, config.DefaultHomeDir() is used.
	HomeDir string

	// Force overwrites an existing configuration file.
	// The run ledger is never deleted.
	Force bool
}

// InitResult contains the results of the initialization process
type InitResult struct {
	// HomeDir is the final home directory used
	HomeDir string

	// ConfigPath is the configuration file location
	ConfigPath string

	// ConfigCreated indicates whether a new config file was written
	ConfigCreated bool

	// LedgerCreated indicates whether a new ledger database was created
	LedgerCreated bool

	// Warnings contains any non-fatal problems encountered
	Warnings []string
}

// Initializer defines the interface for installation bootstrap
type Initializer interface {
	Initialize(ctx context.Context, opts InitOptions) (*InitResult, error)
}

// DefaultInitializer implements Initializer with default behavior
type DefaultInitializer struct {
	loader     config.Loader
	openLedger func(path string) (*ledger.Ledger, error)
}

// NewInitializer creates a DefaultInitializer with the provided dependencies
func NewInitializer(loader config.Loader, openLedger func(path string) (*ledger.Ledger, error)) *DefaultInitializer {
	return &DefaultInitializer{
		loader:     loader,
		openLedger: openLedger,
	}
}

// NewDefaultInitializer creates a DefaultInitializer with standard dependencies
func NewDefaultInitializer() *DefaultInitializer {
	return NewInitializer(config.NewLoader(), ledger.Open)
}

// Initialize performs the bootstrap process:
//
//  1. Create the home directory
//  2. Write a starter configuration file (unless one exists)
//  3. Create the run ledger database with its schema
//
// The function is idempotent when Force=false: running it repeatedly on
// the same directory neither fails nor overwrites anything.
func (i *DefaultInitializer) Initialize(ctx context.Context, opts InitOptions) (*InitResult, error) {
	homeDir := opts.HomeDir
	if homeDir == "" {
		homeDir = config.DefaultHomeDir()
	}

	result := &InitResult{
		HomeDir:    homeDir,
		ConfigPath: config.DefaultConfigPath(homeDir),
	}

	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create home directory %s: %w", homeDir, err)
	}

	_, statErr := os.Stat(result.ConfigPath)
	configExists := statErr == nil

	if !configExists || opts.Force {
		cfg := config.DefaultConfig()
		cfg.Ledger.Path = filepath.Join(homeDir, "ledger.db")
		if err := writeConfigFile(result.ConfigPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to write config file: %w", err)
		}
		result.ConfigCreated = true
		if configExists {
			result.Warnings = append(result.Warnings, "overwrote existing configuration (--force mode)")
		}
	}

	// The ledger location comes from the effective configuration, so a
	// pre-existing config pointing elsewhere is honored.
	cfg, err := i.loader.LoadWithDefaults(result.ConfigPath)
	if err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("config is not loadable, initializing ledger from defaults: %v", err))
		cfg = config.DefaultConfig()
		cfg.Ledger.Path = filepath.Join(homeDir, "ledger.db")
	}

	if cfg.Ledger.Enabled {
		created, err := i.initializeLedger(cfg.Ledger.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ledger: %w", err)
		}
		result.LedgerCreated = created
	}

	return result, nil
}

// initializeLedger opens (and thereby creates) the ledger database.
func (i *DefaultInitializer) initializeLedger(path string) (bool, error) {
	_, statErr := os.Stat(path)
	existed := statErr == nil

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}

	led, err := i.openLedger(path)
	if err != nil {
		return false, err
	}
	if err := led.Close(); err != nil {
		return false, err
	}
	return !existed, nil
}

// writeConfigFile renders cfg as a commented starter config.yaml.
func writeConfigFile(path string, cfg *config.Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(`# sbirgraph configuration
# Values of the form ${VAR} are replaced from the environment at load time.

graph:
  uri: %s
  username: %s
  password: ${NEO4J_PASSWORD}
  database: %s
  max_connection_pool_size: %d
  connection_timeout: %s
  max_transaction_retry_time: %s

loader:
  batch_size: %d
  merge:
    secondary_keys: [%s]
    track_history: %t
    redirect_relationships: %t

ledger:
  enabled: %t
  path: %s
`,
		cfg.Graph.URI,
		cfg.Graph.Username,
		cfg.Graph.Database,
		cfg.Graph.MaxConnectionPoolSize,
		cfg.Graph.ConnectionTimeout,
		cfg.Graph.MaxTransactionRetryTime,
		cfg.Loader.BatchSize,
		strings.Join(cfg.Loader.Merge.SecondaryKeys, ", "),
		cfg.Loader.Merge.TrackHistory,
		cfg.Loader.Merge.RedirectRelationships,
		cfg.Ledger.Enabled,
		cfg.Ledger.Path,
	)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
