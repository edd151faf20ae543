package main

import (
	"github.com/spf13/cobra"

	initpkg "github.com/hollomancer/sbir-analytics-sub002/internal/init"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize sbirgraph configuration and run ledger",
	Long: `Initialize a local sbirgraph installation by creating:
- Home directory (default ~/.sbirgraph)
- Default configuration file
- SQLite run ledger database`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing configuration")
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	homeDir := resolveHomeDir(globalFlags)
	cmd.Printf("Initializing sbirgraph in %s...\n", homeDir)

	initializer := initpkg.NewDefaultInitializer()

	opts := initpkg.InitOptions{
		HomeDir: homeDir,
		Force:   initForce,
	}

	result, err := initializer.Initialize(ctx, opts)
	if err != nil {
		cmd.PrintErrln("Initialization failed:", err)
		return err
	}

	displayInitResult(cmd, result)

	return nil
}

func displayInitResult(cmd *cobra.Command, result *initpkg.InitResult) {
	cmd.Println("\nsbirgraph initialized successfully!")
	cmd.Printf("  Home directory: %s\n", result.HomeDir)
	cmd.Printf("  Config created: %v\n", result.ConfigCreated)
	cmd.Printf("  Ledger created: %v\n", result.LedgerCreated)

	if len(result.Warnings) > 0 {
		cmd.Println("\nWarnings:")
		for _, w := range result.Warnings {
			cmd.Printf("  - %s\n", w)
		}
	}
}
