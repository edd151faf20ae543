package load

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hollomancer/sbir-analytics-sub002/internal/graph"
	"github.com/hollomancer/sbir-analytics-sub002/internal/types"
)

// DefaultBatchSize is the number of records sent per statement when the
// config does not override it.
const DefaultBatchSize = 1000

// Config holds load client settings.
type Config struct {
	// BatchSize is the number of records per UNWIND statement. Fixed for
	// the lifetime of the client.
	BatchSize int
}

// DefaultConfig returns the default load configuration.
func DefaultConfig() Config {
	return Config{BatchSize: DefaultBatchSize}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.BatchSize < 1 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("batch size must be at least 1, got %d", c.BatchSize))
	}
	return nil
}

// Client performs batch loads against a graph database. It owns the
// chunking, per-record validation, and metrics accounting; statement
// text comes from a StatementBuilder and execution goes through the
// graph.Client interface.
//
// A chunk that fails counts every record it carried as an error and the
// load continues with the next chunk; per-record validation failures
// (missing key, unsupported value) are counted and skipped without
// aborting their chunk.
type Client struct {
	graph   graph.Client
	builder *StatementBuilder
	config  Config
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for load progress and failures.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a load client on top of the given graph client.
func NewClient(g graph.Client, config Config, opts ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		graph:   g,
		builder: NewStatementBuilder(),
		config:  config,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BatchSize returns the configured chunk size.
func (c *Client) BatchSize() int {
	return c.config.BatchSize
}

// Connect establishes the underlying graph connection.
func (c *Client) Connect(ctx context.Context) error {
	return c.graph.Connect(ctx)
}

// Close releases the underlying graph connection.
func (c *Client) Close(ctx context.Context) error {
	return c.graph.Close(ctx)
}

// Health reports the health of the underlying graph connection.
func (c *Client) Health(ctx context.Context) types.HealthStatus {
	return c.graph.Health(ctx)
}

// WithConnection connects, runs fn, and closes the connection when fn
// returns, whether or not it succeeded.
func (c *Client) WithConnection(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := c.graph.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if err := c.graph.Close(ctx); err != nil {
			c.log.Warn("failed to close graph connection", "error", err)
		}
	}()
	return fn(ctx)
}

// SchemaStatement is one named constraint or index definition.
type SchemaStatement struct {
	Name   string
	Cypher string
}

// DefaultConstraints returns the uniqueness constraints for the SBIR
// graph schema. All statements carry IF NOT EXISTS, so re-applying them
// is safe.
func DefaultConstraints() []SchemaStatement {
	return []SchemaStatement{
		{
			Name:   "organization_id_unique",
			Cypher: "CREATE CONSTRAINT organization_id_unique IF NOT EXISTS FOR (n:Organization) REQUIRE n.organization_id IS UNIQUE",
		},
		{
			Name:   "award_id_unique",
			Cypher: "CREATE CONSTRAINT award_id_unique IF NOT EXISTS FOR (n:Award) REQUIRE n.award_id IS UNIQUE",
		},
		{
			Name:   "agency_code_unique",
			Cypher: "CREATE CONSTRAINT agency_code_unique IF NOT EXISTS FOR (n:Agency) REQUIRE n.agency_code IS UNIQUE",
		},
	}
}

// DefaultIndexes returns the secondary-key and lookup indexes for the
// SBIR graph schema.
func DefaultIndexes() []SchemaStatement {
	return []SchemaStatement{
		{
			Name:   "organization_uei",
			Cypher: "CREATE INDEX organization_uei IF NOT EXISTS FOR (n:Organization) ON (n.uei)",
		},
		{
			Name:   "organization_duns",
			Cypher: "CREATE INDEX organization_duns IF NOT EXISTS FOR (n:Organization) ON (n.duns)",
		},
		{
			Name:   "award_phase",
			Cypher: "CREATE INDEX award_phase IF NOT EXISTS FOR (n:Award) ON (n.phase)",
		},
	}
}

// CreateConstraints applies the given constraint statements. A
// constraint that already exists is logged and skipped; any other
// failure aborts.
func (c *Client) CreateConstraints(ctx context.Context, constraints ...SchemaStatement) error {
	return c.applySchema(ctx, "constraint", constraints)
}

// CreateIndexes applies the given index statements with the same
// already-exists tolerance as CreateConstraints.
func (c *Client) CreateIndexes(ctx context.Context, indexes ...SchemaStatement) error {
	return c.applySchema(ctx, "index", indexes)
}

// InitializeSchema applies the default constraints and indexes. Safe to
// run on every startup.
func (c *Client) InitializeSchema(ctx context.Context) error {
	if err := c.CreateConstraints(ctx, DefaultConstraints()...); err != nil {
		return err
	}
	return c.CreateIndexes(ctx, DefaultIndexes()...)
}

func (c *Client) applySchema(ctx context.Context, kind string, statements []SchemaStatement) error {
	for _, stmt := range statements {
		if _, err := c.graph.ExecuteWrite(ctx, stmt.Cypher, nil); err != nil {
			if isAlreadyExists(err) {
				c.log.Debug("schema object already exists", "kind", kind, "name", stmt.Name)
				continue
			}
			return graph.NewSchemaError(err).
				WithQuery(stmt.Cypher).
				WithContext("name", stmt.Name)
		}
		c.log.Debug("applied schema statement", "kind", kind, "name", stmt.Name)
	}
	return nil
}

// isAlreadyExists reports whether err is the server telling us a
// constraint or index is already in place. IF NOT EXISTS suppresses
// most of these, but an equivalent schema rule under a different name
// still errors.
func isAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "equivalentschemarule")
}

// UpsertNode merges a single node inside the caller's transaction,
// returning whether it was freshly created. props must contain
// keyProperty; the whole normalized map is written to the node.
func (c *Client) UpsertNode(ctx context.Context, tx graph.Transaction, label, keyProperty string, props map[string]any) (bool, error) {
	record := NodeRecord(props)
	key, ok := record.Key(keyProperty)
	if !ok {
		return false, types.NewError(types.LOAD_RECORD_MISSING_KEY,
			fmt.Sprintf("record has no value for key property %q", keyProperty))
	}

	normalized, err := NormalizeRecord(props)
	if err != nil {
		return false, err
	}

	stmt, err := c.builder.MergeNode(label, keyProperty)
	if err != nil {
		return false, err
	}

	result, err := tx.Run(ctx, stmt, map[string]any{
		"key_value":  key,
		"properties": normalized,
	})
	if err != nil {
		return false, err
	}

	created, _ := result.Bool("created")
	return created, nil
}

// BatchUpsertNodes loads records as nodes with the content-hash gate:
// unchanged records leave existing nodes untouched. Records are
// processed in input order, chunked by the configured batch size, one
// statement per chunk.
func (c *Client) BatchUpsertNodes(ctx context.Context, label, keyProperty string, records []NodeRecord, metrics *Metrics) error {
	return c.batchUpsert(ctx, label, keyProperty, records, metrics, true)
}

// BatchOverwriteNodes loads records as nodes without the hash gate:
// every matched node is overwritten and counted as updated. Used for
// small reference data where change detection is not worth a read.
func (c *Client) BatchOverwriteNodes(ctx context.Context, label, keyProperty string, records []NodeRecord, metrics *Metrics) error {
	return c.batchUpsert(ctx, label, keyProperty, records, metrics, false)
}

func (c *Client) batchUpsert(ctx context.Context, label, keyProperty string, records []NodeRecord, metrics *Metrics, hashCheck bool) error {
	if metrics == nil {
		metrics = NewMetrics()
	}
	if len(records) == 0 {
		return nil
	}

	stmt, err := c.builder.BatchMergeUpsert(label, keyProperty, hashCheck, true)
	if err != nil {
		return err
	}

	for start := 0; start < len(records); start += c.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return types.WrapError(types.LOAD_BATCH_FAILED, "load cancelled", err)
		}

		end := start + c.config.BatchSize
		if end > len(records) {
			end = len(records)
		}

		rows := c.buildNodeRows(label, keyProperty, records[start:end], metrics, hashCheck)
		if len(rows) == 0 {
			continue
		}

		result, err := c.graph.ExecuteWrite(ctx, stmt, map[string]any{"batch": rows})
		if err != nil {
			metrics.AddErrors(len(rows))
			c.log.Warn("batch upsert failed",
				"label", label,
				"records", len(rows),
				"error", err)
			continue
		}

		created, _ := result.Int("created")
		updated, _ := result.Int("updated")
		metrics.AddNodesCreated(label, int(created))
		metrics.AddNodesUpdated(label, int(updated))

		c.log.Debug("batch upserted",
			"label", label,
			"records", len(rows),
			"created", created,
			"updated", updated)
	}
	return nil
}

// BatchUpdateNodes overlays properties onto existing nodes only; records
// whose key matches nothing are silently skipped by the database. Used
// by enrichment passes that must not fabricate entities.
func (c *Client) BatchUpdateNodes(ctx context.Context, label, keyProperty string, records []NodeRecord, metrics *Metrics) error {
	if metrics == nil {
		metrics = NewMetrics()
	}
	if len(records) == 0 {
		return nil
	}

	stmt, err := c.builder.BatchMatchOnlyUpdate(label, keyProperty)
	if err != nil {
		return err
	}

	for start := 0; start < len(records); start += c.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return types.WrapError(types.LOAD_BATCH_FAILED, "load cancelled", err)
		}

		end := start + c.config.BatchSize
		if end > len(records) {
			end = len(records)
		}

		rows := c.buildNodeRows(label, keyProperty, records[start:end], metrics, false)
		if len(rows) == 0 {
			continue
		}

		result, err := c.graph.ExecuteWrite(ctx, stmt, map[string]any{"batch": rows})
		if err != nil {
			metrics.AddErrors(len(rows))
			c.log.Warn("batch update failed",
				"label", label,
				"records", len(rows),
				"error", err)
			continue
		}

		updated, _ := result.Int("updated")
		metrics.AddNodesUpdated(label, int(updated))
	}
	return nil
}

// buildNodeRows validates and normalizes one chunk of records into
// statement rows, counting and skipping records that cannot be loaded.
func (c *Client) buildNodeRows(label, keyProperty string, chunk []NodeRecord, metrics *Metrics, withHash bool) []map[string]any {
	rows := make([]map[string]any, 0, len(chunk))
	for _, record := range chunk {
		key, ok := record.Key(keyProperty)
		if !ok {
			metrics.AddErrors(1)
			c.log.Warn("skipping record without key",
				"label", label,
				"key_property", keyProperty)
			continue
		}

		props, err := NormalizeRecord(record)
		if err != nil {
			metrics.AddErrors(1)
			c.log.Warn("skipping record with unsupported value",
				"label", label,
				"key", key,
				"error", err)
			continue
		}

		row := map[string]any{
			"key_value":  key,
			"properties": props,
		}
		if withHash {
			hash, err := ContentHash(props)
			if err != nil {
				metrics.AddErrors(1)
				c.log.Warn("skipping record that cannot be hashed",
					"label", label,
					"key", key,
					"error", err)
				continue
			}
			row["record_hash"] = hash
		}
		rows = append(rows, row)
	}
	return rows
}

// BatchCreateRelationships loads relationship records, chunked by the
// configured batch size. Within a chunk, records are grouped by
// signature (source label and key property, target label and key
// property, relationship type) and one statement is issued per group;
// all groups of a chunk commit in a single transaction.
//
// Created counts come from the database's write counters, so re-loading
// existing relationships adds zero. Records whose endpoints are missing
// from the graph match nothing and are silently skipped by the MATCH.
func (c *Client) BatchCreateRelationships(ctx context.Context, rels []RelationshipRecord, metrics *Metrics) error {
	if metrics == nil {
		metrics = NewMetrics()
	}
	if len(rels) == 0 {
		return nil
	}

	for start := 0; start < len(rels); start += c.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return types.WrapError(types.LOAD_BATCH_FAILED, "load cancelled", err)
		}

		end := start + c.config.BatchSize
		if end > len(rels) {
			end = len(rels)
		}

		groups := c.groupRelationships(rels[start:end], metrics)
		if len(groups) == 0 {
			continue
		}

		total := 0
		for _, g := range groups {
			total += len(g.rows)
		}

		created := make(map[string]int, len(groups))
		err := c.graph.WriteTransaction(ctx, func(tx graph.Transaction) error {
			// The driver may re-run this function on transient failures;
			// counts must restart from zero each attempt.
			for k := range created {
				delete(created, k)
			}
			for _, g := range groups {
				result, err := tx.Run(ctx, g.stmt, map[string]any{"batch": g.rows})
				if err != nil {
					return err
				}
				created[g.sig.Type] += result.Summary.RelationshipsCreated
			}
			return nil
		})
		if err != nil {
			metrics.AddErrors(total)
			c.log.Warn("relationship batch failed",
				"records", total,
				"groups", len(groups),
				"error", err)
			continue
		}

		for relType, n := range created {
			metrics.AddRelationshipsCreated(relType, n)
		}

		c.log.Debug("relationship batch committed",
			"records", total,
			"groups", len(groups))
	}
	return nil
}

// relationshipGroup is one signature's statement and rows within a chunk.
type relationshipGroup struct {
	sig  Signature
	stmt string
	rows []map[string]any
}

// groupRelationships validates a chunk and groups it by signature in
// first-seen order, counting and skipping records that cannot be loaded.
func (c *Client) groupRelationships(chunk []RelationshipRecord, metrics *Metrics) []relationshipGroup {
	var groups []relationshipGroup
	index := make(map[Signature]int)

	for _, rel := range chunk {
		if err := rel.Validate(); err != nil {
			metrics.AddErrors(1)
			c.log.Warn("skipping invalid relationship record", "error", err)
			continue
		}

		props, err := NormalizeRecord(rel.Props)
		if err != nil {
			metrics.AddErrors(1)
			c.log.Warn("skipping relationship with unsupported value",
				"type", rel.Type,
				"error", err)
			continue
		}

		sig := rel.Signature()
		i, ok := index[sig]
		if !ok {
			stmt, err := c.builder.RelationshipMerge(
				sig.SourceLabel, sig.SourceKeyProperty,
				sig.Type,
				sig.TargetLabel, sig.TargetKeyProperty,
				true)
			if err != nil {
				metrics.AddErrors(1)
				c.log.Warn("skipping relationship with unusable signature",
					"type", rel.Type,
					"error", err)
				continue
			}
			i = len(groups)
			index[sig] = i
			groups = append(groups, relationshipGroup{sig: sig, stmt: stmt})
		}

		groups[i].rows = append(groups[i].rows, map[string]any{
			"source_key": rel.SourceKey,
			"target_key": rel.TargetKey,
			"properties": props,
		})
	}
	return groups
}
