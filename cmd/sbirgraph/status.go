package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hollomancer/sbir-analytics-sub002/cmd/sbirgraph/internal"
	"github.com/hollomancer/sbir-analytics-sub002/internal/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display graph and ledger health",
	Long: `Display system status: graph database connectivity and health,
and the state of the local run ledger.`,
	RunE: runStatus,
}

// SystemStatus represents the complete system status
type SystemStatus struct {
	OverallHealth types.HealthState `json:"overall_health"`
	Graph         GraphStatus       `json:"graph"`
	Ledger        LedgerStatus      `json:"ledger"`
	CheckedAt     time.Time         `json:"checked_at"`
}

// GraphStatus represents graph database health information
type GraphStatus struct {
	URI       string            `json:"uri"`
	Database  string            `json:"database"`
	Connected bool              `json:"connected"`
	State     types.HealthState `json:"state"`
	Message   string            `json:"message,omitempty"`
}

// LedgerStatus represents run ledger information
type LedgerStatus struct {
	Enabled bool       `json:"enabled"`
	Path    string     `json:"path"`
	Runs    int        `json:"runs"`
	LastRun *time.Time `json:"last_run,omitempty"`
	Error   string     `json:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	flags, err := ParseGlobalFlags(cmd)
	if err != nil {
		return err
	}
	formatter := internal.NewFormatter(flags.GetOutputFormat(), cmd.OutOrStdout())

	status := SystemStatus{
		Graph:     checkGraphStatus(ctx),
		Ledger:    checkLedgerStatus(ctx),
		CheckedAt: time.Now(),
	}
	status.OverallHealth = determineOverallHealth(status)

	if flags.GetOutputFormat() == internal.FormatJSON {
		return formatter.PrintJSON(status)
	}
	return printTextStatus(cmd, status)
}

// checkGraphStatus connects to the graph and runs a health check.
func checkGraphStatus(ctx context.Context) GraphStatus {
	status := GraphStatus{
		URI:      cfg.Graph.URI,
		Database: cfg.Graph.Database,
		State:    types.HealthStateUnhealthy,
	}

	client, err := newGraphClient()
	if err != nil {
		status.Message = err.Error()
		return status
	}

	if err := client.Connect(ctx); err != nil {
		status.Message = err.Error()
		return status
	}
	defer client.Close(ctx)
	status.Connected = true

	health := client.Health(ctx)
	status.State = health.State
	status.Message = health.Message
	return status
}

// checkLedgerStatus inspects the run ledger without creating it.
func checkLedgerStatus(ctx context.Context) LedgerStatus {
	status := LedgerStatus{
		Enabled: cfg.Ledger.Enabled,
		Path:    cfg.Ledger.Path,
	}
	if !cfg.Ledger.Enabled {
		return status
	}

	// A ledger that has never recorded a run is not an error
	if _, err := os.Stat(cfg.Ledger.Path); os.IsNotExist(err) {
		return status
	}

	led, err := openLedger()
	if err != nil {
		status.Error = err.Error()
		return status
	}
	defer led.Close()

	count, err := led.CountRuns(ctx)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Runs = count

	if count > 0 {
		runs, err := led.ListRuns(ctx, 1)
		if err != nil {
			status.Error = err.Error()
			return status
		}
		if len(runs) > 0 {
			last := runs[0].FinishedAt
			status.LastRun = &last
		}
	}
	return status
}

// determineOverallHealth folds subsystem states into one.
func determineOverallHealth(status SystemStatus) types.HealthState {
	if status.Graph.State == types.HealthStateUnhealthy {
		return types.HealthStateUnhealthy
	}
	if status.Ledger.Error != "" || status.Graph.State == types.HealthStateDegraded {
		return types.HealthStateDegraded
	}
	return types.HealthStateHealthy
}

func printTextStatus(cmd *cobra.Command, status SystemStatus) error {
	cmd.Printf("Overall: %s\n\n", status.OverallHealth)

	cmd.Println("Graph:")
	cmd.Printf("  URI:       %s\n", status.Graph.URI)
	cmd.Printf("  Database:  %s\n", status.Graph.Database)
	cmd.Printf("  Connected: %v\n", status.Graph.Connected)
	cmd.Printf("  State:     %s\n", status.Graph.State)
	if status.Graph.Message != "" {
		cmd.Printf("  Message:   %s\n", status.Graph.Message)
	}

	cmd.Println("\nLedger:")
	if !status.Ledger.Enabled {
		cmd.Println("  Disabled")
		return nil
	}
	cmd.Printf("  Path: %s\n", status.Ledger.Path)
	cmd.Printf("  Runs: %d\n", status.Ledger.Runs)
	if status.Ledger.LastRun != nil {
		cmd.Printf("  Last run: %s\n", status.Ledger.LastRun.Local().Format("2006-01-02 15:04:05"))
	}
	if status.Ledger.Error != "" {
		cmd.Printf("  Error: %s\n", status.Ledger.Error)
	}
	return nil
}
