package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hollomancer/sbir-analytics-sub002/internal/config"
)

const version = "v0.1.0"

// cfg holds the configuration loaded by PersistentPreRunE for all commands.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "sbirgraph",
	Short: "SBIR/STTR award graph loader",
	Long: `sbirgraph loads SBIR/STTR award data into a Neo4j property graph.

It ingests JSON Lines files of awards, organizations, and agencies,
upserts them as graph nodes and relationships with content-hash change
detection, and resolves duplicate organizations that share secondary
business keys (UEI, DUNS). Every load is recorded in a local run ledger.`,
	PersistentPreRunE: setup,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command with signal handling
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

// setup runs before every command: environment, configuration, logging.
func setup(cmd *cobra.Command, args []string) error {
	flags, err := ParseGlobalFlags(cmd)
	if err != nil {
		return err
	}

	installLogger(cmd, flags)

	// Commands that never touch configuration. init stays here so it can
	// repair a config file that no longer loads.
	switch cmd.Name() {
	case "version", "help", "completion", "init":
		return nil
	}

	// Opportunistic .env load so ${VAR} interpolation in config.yaml can
	// see locally defined values. A missing .env file is not an error.
	_ = godotenv.Load()

	homeDir := resolveHomeDir(flags)
	configFile := flags.ConfigFile
	if configFile == "" {
		configFile = config.DefaultConfigPath(homeDir)
	}

	_, statErr := os.Stat(configFile)
	configExists := statErr == nil

	cfg, err = config.NewLoader().LoadWithDefaults(configFile)
	if err != nil {
		return err
	}

	// Without a config file the ledger defaults under the standard home;
	// keep it next to a custom --home instead.
	if !configExists && flags.HomeDir != "" {
		cfg.Ledger.Path = filepath.Join(homeDir, "ledger.db")
	}

	return nil
}

// resolveHomeDir determines the home directory from flag, environment,
// or default, in that order.
func resolveHomeDir(flags *GlobalFlags) string {
	if flags.HomeDir != "" {
		return flags.HomeDir
	}
	if env := os.Getenv("SBIRGRAPH_HOME"); env != "" {
		return env
	}
	return config.DefaultHomeDir()
}

// installLogger replaces the default slog handler with one writing to
// stderr at a level controlled by --verbose and --quiet.
func installLogger(cmd *cobra.Command, flags *GlobalFlags) {
	level := slog.LevelInfo
	if flags.IsVerbose() {
		level = slog.LevelDebug
	}
	if flags.IsQuiet() {
		level = slog.LevelWarn
	}

	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func init() {
	RegisterGlobalFlags(rootCmd)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runsCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("sbirgraph %s\n", version)
	},
}
