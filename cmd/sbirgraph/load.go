package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/hollomancer/sbir-analytics-sub002/cmd/sbirgraph/internal"
	"github.com/hollomancer/sbir-analytics-sub002/internal/graph"
	"github.com/hollomancer/sbir-analytics-sub002/internal/ledger"
	"github.com/hollomancer/sbir-analytics-sub002/internal/load"
	"github.com/hollomancer/sbir-analytics-sub002/internal/loader"
)

var loadBatchSize int

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load award data into the graph",
	Long: `Load JSON Lines files into the graph. Each line is one record.

Records are upserted idempotently: unchanged records are skipped via
content-hash comparison, and re-running a load never duplicates nodes
or relationships.`,
}

var loadAwardsCmd = &cobra.Command{
	Use:   "awards <file>",
	Short: "Load award records and their relationships",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoadAwards,
}

var loadOrganizationsCmd = &cobra.Command{
	Use:   "organizations <file>",
	Short: "Load organizations with duplicate resolution",
	Long: `Load organization records. Incoming records whose UEI or DUNS
matches an existing organization under a different primary key are
merged into that organization instead of creating a duplicate node.`,
	Args: cobra.ExactArgs(1),
	RunE: runLoadOrganizations,
}

var loadAgenciesCmd = &cobra.Command{
	Use:   "agencies <file>",
	Short: "Load agency reference records",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoadAgencies,
}

func init() {
	loadCmd.PersistentFlags().IntVar(&loadBatchSize, "batch-size", 0, "Records per statement (default: from config)")

	loadCmd.AddCommand(loadAwardsCmd)
	loadCmd.AddCommand(loadOrganizationsCmd)
	loadCmd.AddCommand(loadAgenciesCmd)
}

func runLoadAwards(cmd *cobra.Command, args []string) error {
	awards, err := decodeFile(args[0], decodeAwards)
	if err != nil {
		return internal.WrapError(internal.ExitError, "failed to read awards file", err)
	}

	return runLoaderSession(cmd, "awards", len(awards), func(ctx context.Context, client *load.Client) (*load.Metrics, error) {
		l := loader.NewAwardLoader(client, loader.WithLogger(slog.Default()))
		err := l.Load(ctx, awards)
		return l.Metrics(), err
	})
}

func runLoadOrganizations(cmd *cobra.Command, args []string) error {
	orgs, err := decodeFile(args[0], decodeOrganizations)
	if err != nil {
		return internal.WrapError(internal.ExitError, "failed to read organizations file", err)
	}

	return runLoaderSession(cmd, "organizations", len(orgs), func(ctx context.Context, client *load.Client) (*load.Metrics, error) {
		l := loader.NewOrganizationLoader(client, loader.WithLogger(slog.Default()))
		l.Merge = cfg.Loader.Merge.Options()
		err := l.Load(ctx, orgs)
		return l.Metrics(), err
	})
}

func runLoadAgencies(cmd *cobra.Command, args []string) error {
	agencies, err := decodeFile(args[0], decodeAgencies)
	if err != nil {
		return internal.WrapError(internal.ExitError, "failed to read agencies file", err)
	}

	return runLoaderSession(cmd, "agencies", len(agencies), func(ctx context.Context, client *load.Client) (*load.Metrics, error) {
		l := loader.NewAgencyLoader(client, loader.WithLogger(slog.Default()))
		err := l.Load(ctx, agencies)
		return l.Metrics(), err
	})
}

// runLoaderSession connects to the graph, executes one loader run, prints
// the metrics summary, and records the run in the ledger.
func runLoaderSession(cmd *cobra.Command, name string, recordCount int, run func(ctx context.Context, client *load.Client) (*load.Metrics, error)) error {
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

	slog.Info("starting load", "loader", name, "records", recordCount, "uri", cfg.Graph.URI)

	started := time.Now()
	var metrics *load.Metrics
	runErr := client.WithConnection(ctx, func(ctx context.Context) error {
		m, err := run(ctx, client)
		metrics = m
		return err
	})
	finished := time.Now()

	recordLedgerRun(name, started, finished, metrics, runErr)

	if runErr != nil {
		return runErr
	}

	if err := printLoadSummary(formatter, flags.GetOutputFormat(), name, recordCount, metrics, finished.Sub(started)); err != nil {
		return err
	}

	if metrics != nil && metrics.HasErrors() {
		return internal.NewCLIError(internal.ExitPartial,
			fmt.Sprintf("load completed with %d record errors", metrics.Errors))
	}
	return nil
}

// newGraphClient builds the Neo4j client from configuration, wrapped in
// otel tracing. Without a tracer provider installed the spans are no-ops.
func newGraphClient() (graph.Client, error) {
	inner, err := graph.NewNeo4jClient(cfg.Graph.Client(), graph.WithLogger(slog.Default()))
	if err != nil {
		return nil, err
	}
	return graph.NewTracedClient(inner, otel.Tracer("sbirgraph"),
		graph.WithDatabaseName(cfg.Graph.Database)), nil
}

// newLoadClient builds the load client over a fresh graph client,
// honoring a --batch-size override.
func newLoadClient() (*load.Client, error) {
	g, err := newGraphClient()
	if err != nil {
		return nil, err
	}

	loadCfg := cfg.Loader.Batch()
	if loadBatchSize > 0 {
		loadCfg.BatchSize = loadBatchSize
	}
	return load.NewClient(g, loadCfg, load.WithLogger(slog.Default()))
}

// recordLedgerRun writes one row to the run ledger. Ledger failures are
// logged, never fatal: the load outcome stands on its own.
func recordLedgerRun(name string, started, finished time.Time, metrics *load.Metrics, runErr error) {
	if cfg == nil || !cfg.Ledger.Enabled {
		return
	}

	led, err := openLedger()
	if err != nil {
		slog.Warn("failed to open run ledger", "error", err, "path", cfg.Ledger.Path)
		return
	}
	defer led.Close()

	status := ledger.StatusCompleted
	var message string
	switch {
	case runErr != nil:
		status = ledger.StatusFailed
		message = runErr.Error()
	case metrics != nil && metrics.HasErrors():
		status = ledger.StatusCompletedWithErrors
	}

	var metricsJSON json.RawMessage
	if metrics != nil {
		if data, err := json.Marshal(metrics); err == nil {
			metricsJSON = data
		}
	}

	run := ledger.Run{
		Loader:     name,
		StartedAt:  started,
		FinishedAt: finished,
		Status:     status,
		Metrics:    metricsJSON,
		Error:      message,
	}
	// The run context may already be cancelled when recording a failure.
	if err := led.RecordRun(context.Background(), run); err != nil {
		slog.Warn("failed to record run in ledger", "error", err)
	}
}

// openLedger opens the configured ledger, creating its directory first.
func openLedger() (*ledger.Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Ledger.Path), 0o755); err != nil {
		return nil, err
	}
	return ledger.Open(cfg.Ledger.Path)
}

// printLoadSummary renders the outcome of one load run.
func printLoadSummary(formatter internal.Formatter, format internal.OutputFormat, name string, recordCount int, metrics *load.Metrics, elapsed time.Duration) error {
	if metrics == nil {
		metrics = load.NewMetrics()
	}

	if format == internal.FormatJSON {
		return formatter.PrintJSON(map[string]any{
			"loader":           name,
			"records":          recordCount,
			"metrics":          metrics,
			"duration_seconds": elapsed.Seconds(),
		})
	}

	if err := formatter.PrintSuccess(fmt.Sprintf("%s: loaded %d records in %s",
		name, recordCount, elapsed.Round(time.Millisecond))); err != nil {
		return err
	}

	labels := make(map[string]bool)
	for label := range metrics.NodesCreated {
		labels[label] = true
	}
	for label := range metrics.NodesUpdated {
		labels[label] = true
	}
	if len(labels) > 0 {
		rows := make([][]string, 0, len(labels))
		for _, label := range sortedKeys(labels) {
			rows = append(rows, []string{
				label,
				fmt.Sprintf("%d", metrics.NodesCreated[label]),
				fmt.Sprintf("%d", metrics.NodesUpdated[label]),
			})
		}
		if err := formatter.PrintTable([]string{"label", "created", "updated"}, rows); err != nil {
			return err
		}
	}

	if len(metrics.RelationshipsCreated) > 0 {
		relTypes := make(map[string]bool)
		for relType := range metrics.RelationshipsCreated {
			relTypes[relType] = true
		}
		rows := make([][]string, 0, len(relTypes))
		for _, relType := range sortedKeys(relTypes) {
			rows = append(rows, []string{relType, fmt.Sprintf("%d", metrics.RelationshipsCreated[relType])})
		}
		if err := formatter.PrintTable([]string{"relationship", "created"}, rows); err != nil {
			return err
		}
	}

	if metrics.HasErrors() {
		return formatter.PrintError(fmt.Sprintf("%d records skipped due to errors", metrics.Errors))
	}
	return nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// decodeFile opens path and decodes its JSON Lines content with decode.
func decodeFile[T any](path string, decode func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decode(f)
}

// scanLines iterates the non-blank lines of r, calling fn with each
// line's number and content.
func scanLines(r io.Reader, fn func(line int, data []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		if err := fn(line, data); err != nil {
			return err
		}
	}
	return scanner.Err()
}

type awardJSON struct {
	AwardID        string  `json:"award_id"`
	Title          string  `json:"title"`
	Phase          string  `json:"phase"`
	Program        string  `json:"program"`
	AgencyCode     string  `json:"agency_code"`
	Amount         float64 `json:"amount"`
	AwardedAt      string  `json:"awarded_at"`
	OrganizationID string  `json:"organization_id"`
}

var awardKnownKeys = []string{
	"award_id", "title", "phase", "program", "agency_code",
	"amount", "awarded_at", "organization_id",
}

// decodeAwards decodes one award per line. Unknown keys are carried as
// extra node properties.
func decodeAwards(r io.Reader) ([]loader.Award, error) {
	var awards []loader.Award
	err := scanLines(r, func(line int, data []byte) error {
		var a awardJSON
		if err := json.Unmarshal(data, &a); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		awardedAt, err := parseDate(a.AwardedAt)
		if err != nil {
			return fmt.Errorf("line %d: invalid awarded_at: %w", line, err)
		}

		extra, err := extraProperties(data, awardKnownKeys)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		awards = append(awards, loader.Award{
			AwardID:        a.AwardID,
			Title:          a.Title,
			Phase:          a.Phase,
			Program:        a.Program,
			AgencyCode:     a.AgencyCode,
			Amount:         a.Amount,
			AwardedAt:      awardedAt,
			OrganizationID: a.OrganizationID,
			Extra:          extra,
		})
		return nil
	})
	return awards, err
}

type organizationJSON struct {
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	UEI            string `json:"uei"`
	DUNS           string `json:"duns"`
	State          string `json:"state"`
	City           string `json:"city"`
}

var organizationKnownKeys = []string{
	"organization_id", "name", "uei", "duns", "state", "city",
}

// decodeOrganizations decodes one organization per line.
func decodeOrganizations(r io.Reader) ([]loader.Organization, error) {
	var orgs []loader.Organization
	err := scanLines(r, func(line int, data []byte) error {
		var o organizationJSON
		if err := json.Unmarshal(data, &o); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		extra, err := extraProperties(data, organizationKnownKeys)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		orgs = append(orgs, loader.Organization{
			OrganizationID: o.OrganizationID,
			Name:           o.Name,
			UEI:            o.UEI,
			DUNS:           o.DUNS,
			State:          o.State,
			City:           o.City,
			Extra:          extra,
		})
		return nil
	})
	return orgs, err
}

type agencyJSON struct {
	AgencyCode string `json:"agency_code"`
	Name       string `json:"name"`
	Branch     string `json:"branch"`
}

// decodeAgencies decodes one agency per line.
func decodeAgencies(r io.Reader) ([]loader.Agency, error) {
	var agencies []loader.Agency
	err := scanLines(r, func(line int, data []byte) error {
		var a agencyJSON
		if err := json.Unmarshal(data, &a); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		agencies = append(agencies, loader.Agency{
			AgencyCode: a.AgencyCode,
			Name:       a.Name,
			Branch:     a.Branch,
		})
		return nil
	})
	return agencies, err
}

// extraProperties returns the record's keys that are not in known.
func extraProperties(data []byte, known []string) (map[string]any, error) {
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, key := range known {
		delete(all, key)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// parseDate accepts RFC 3339 timestamps or plain dates. Empty input is
// a zero time.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
