package loader

import (
	"context"
	"log/slog"
	"time"

	"github.com/hollomancer/sbir-analytics-sub002/internal/load"
)

// Graph labels, key properties, and relationship types shared by the
// domain loaders. These match the default constraints and indexes
// installed by load.Client.InitializeSchema.
const (
	LabelAward        = "Award"
	LabelOrganization = "Organization"
	LabelAgency       = "Agency"

	KeyAwardID        = "award_id"
	KeyOrganizationID = "organization_id"
	KeyAgencyCode     = "agency_code"

	RelAwardedTo = "AWARDED_TO"
	RelFundedBy  = "FUNDED_BY"
)

// Base wraps a load.Client with a named metrics accumulator and
// start/finish logging around each load primitive. Domain loaders embed
// it and add their record flattening on top.
//
// Base is not internally synchronized; like the Metrics it carries, one
// instance belongs to one loading goroutine.
type Base struct {
	client  *load.Client
	log     *slog.Logger
	metrics *load.Metrics
	name    string
}

// Option configures a Base.
type Option func(*Base)

// WithLogger sets the logger for load operations.
func WithLogger(log *slog.Logger) Option {
	return func(b *Base) {
		if log != nil {
			b.log = log
		}
	}
}

// WithMetrics installs a shared accumulator, letting several loaders
// report into one running total.
func WithMetrics(metrics *load.Metrics) Option {
	return func(b *Base) {
		if metrics != nil {
			b.metrics = metrics
		}
	}
}

// NewBase creates a named loader over the given client.
func NewBase(name string, client *load.Client, opts ...Option) *Base {
	b := &Base{
		client:  client,
		log:     slog.Default(),
		metrics: load.NewMetrics(),
		name:    name,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the loader's name as it appears in logs and ledger runs.
func (b *Base) Name() string {
	return b.name
}

// Client returns the underlying batch client.
func (b *Base) Client() *load.Client {
	return b.client
}

// Metrics returns the accumulator for this loader's session.
func (b *Base) Metrics() *load.Metrics {
	return b.metrics
}

// Reset installs a fresh accumulator. The previous one is left intact
// for whoever still holds it.
func (b *Base) Reset() {
	b.metrics = load.NewMetrics()
}

// LoadNodes runs the hash-gated batch upsert for one label, logging the
// outcome and folding elapsed time into the metrics.
func (b *Base) LoadNodes(ctx context.Context, label, keyProperty string, records []load.NodeRecord) error {
	snap := b.begin()
	b.log.Info("loading nodes",
		"loader", b.name,
		"label", label,
		"records", len(records))

	err := b.client.BatchUpsertNodes(ctx, label, keyProperty, records, b.metrics)
	b.finish(snap, "node load", label, err)
	return err
}

// OverwriteNodes runs the plain (non-hash-gated) batch upsert for one
// label. Every matched node is rewritten; used for small reference data
// where change detection is not worth the bookkeeping.
func (b *Base) OverwriteNodes(ctx context.Context, label, keyProperty string, records []load.NodeRecord) error {
	snap := b.begin()
	b.log.Info("overwriting nodes",
		"loader", b.name,
		"label", label,
		"records", len(records))

	err := b.client.BatchOverwriteNodes(ctx, label, keyProperty, records, b.metrics)
	b.finish(snap, "node overwrite", label, err)
	return err
}

// LoadRelationships creates the given relationships in signature groups.
func (b *Base) LoadRelationships(ctx context.Context, rels []load.RelationshipRecord) error {
	snap := b.begin()
	b.log.Info("loading relationships",
		"loader", b.name,
		"records", len(rels))

	err := b.client.BatchCreateRelationships(ctx, rels, b.metrics)
	b.finish(snap, "relationship load", "", err)
	return err
}

// MergeEntities runs the multi-key entity merge for one label.
func (b *Base) MergeEntities(ctx context.Context, label, keyProperty string, records []load.NodeRecord, opts load.MergeOptions) error {
	snap := b.begin()
	b.log.Info("merging entities",
		"loader", b.name,
		"label", label,
		"records", len(records),
		"secondary_keys", opts.SecondaryKeys)

	err := b.client.MergeEntitiesMultiKey(ctx, label, keyProperty, records, opts, b.metrics)
	b.finish(snap, "entity merge", label, err)
	return err
}

// opSnapshot captures the accumulator totals at the start of an
// operation so the finish log can report per-call deltas.
type opSnapshot struct {
	created int
	updated int
	rels    int
	errors  int
	start   time.Time
}

func (b *Base) begin() opSnapshot {
	return opSnapshot{
		created: b.metrics.TotalNodesCreated(),
		updated: b.metrics.TotalNodesUpdated(),
		rels:    b.metrics.TotalRelationshipsCreated(),
		errors:  b.metrics.Errors,
		start:   time.Now(),
	}
}

func (b *Base) finish(snap opSnapshot, op, label string, err error) {
	elapsed := time.Since(snap.start)
	b.metrics.ObserveDuration(elapsed)

	if err != nil {
		b.log.Error(op+" failed",
			"loader", b.name,
			"label", label,
			"error", err,
			"elapsed", elapsed)
		return
	}

	b.log.Info(op+" complete",
		"loader", b.name,
		"label", label,
		"created", b.metrics.TotalNodesCreated()-snap.created,
		"updated", b.metrics.TotalNodesUpdated()-snap.updated,
		"relationships", b.metrics.TotalRelationshipsCreated()-snap.rels,
		"errors", b.metrics.Errors-snap.errors,
		"elapsed", elapsed)
}
