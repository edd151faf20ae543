package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/hollomancer/sbir-analytics-sub002/cmd/sbirgraph/internal"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage the graph schema",
}

var schemaInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create uniqueness constraints and indexes",
	Long: `Create the default uniqueness constraints and lookup indexes.

Schema statements are idempotent: constraints and indexes that already
exist are left untouched, so init can be re-run safely.`,
	RunE: runSchemaInit,
}

func init() {
	schemaCmd.AddCommand(schemaInitCmd)
}

func runSchemaInit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	flags, err := ParseGlobalFlags(cmd)
	if err != nil {
		return err
	}
	formatter := internal.NewFormatter(flags.GetOutputFormat(), cmd.OutOrStdout())

	client, err := newLoadClient()
	if err != nil {
		return err
	}

	err = client.WithConnection(ctx, func(ctx context.Context) error {
		return client.InitializeSchema(ctx)
	})
	if err != nil {
		return err
	}

	return formatter.PrintSuccess("graph schema initialized")
}
