package loader

import (
	"context"
	"time"

	"github.com/hollomancer/sbir-analytics-sub002/internal/load"
)

// Award is one SBIR/STTR award record. AwardID is the primary key;
// OrganizationID and AgencyCode, when present, yield AWARDED_TO and
// FUNDED_BY relationships. Extra carries source columns that have no
// typed field.
type Award struct {
	AwardID        string
	Title          string
	Phase          string
	Program        string
	AgencyCode     string
	Amount         float64
	AwardedAt      time.Time
	OrganizationID string

	Extra map[string]any
}

// Record flattens the award into a load record. Empty string fields and
// the zero time are omitted so absent data never overwrites node
// properties or participates in matching; typed fields win over Extra
// entries of the same name.
func (a Award) Record() load.NodeRecord {
	record := make(load.NodeRecord, len(a.Extra)+8)
	for k, v := range a.Extra {
		record[k] = v
	}

	putString(record, KeyAwardID, a.AwardID)
	putString(record, "title", a.Title)
	putString(record, "phase", a.Phase)
	putString(record, "program", a.Program)
	putString(record, KeyAgencyCode, a.AgencyCode)
	putString(record, KeyOrganizationID, a.OrganizationID)
	record["amount"] = a.Amount
	if !a.AwardedAt.IsZero() {
		record["awarded_at"] = a.AwardedAt
	}
	return record
}

// Relationships returns the award's edges to its organization and
// funding agency. Endpoints are matched by key only: an edge whose
// organization or agency node is absent simply creates nothing.
func (a Award) Relationships() []load.RelationshipRecord {
	var rels []load.RelationshipRecord
	if a.AwardID == "" {
		return rels
	}
	if a.OrganizationID != "" {
		rels = append(rels, load.RelationshipRecord{
			SourceLabel:       LabelAward,
			SourceKeyProperty: KeyAwardID,
			SourceKey:         a.AwardID,
			TargetLabel:       LabelOrganization,
			TargetKeyProperty: KeyOrganizationID,
			TargetKey:         a.OrganizationID,
			Type:              RelAwardedTo,
		})
	}
	if a.AgencyCode != "" {
		rels = append(rels, load.RelationshipRecord{
			SourceLabel:       LabelAward,
			SourceKeyProperty: KeyAwardID,
			SourceKey:         a.AwardID,
			TargetLabel:       LabelAgency,
			TargetKeyProperty: KeyAgencyCode,
			TargetKey:         a.AgencyCode,
			Type:              RelFundedBy,
		})
	}
	return rels
}

// AwardLoader loads award nodes and their relationships.
type AwardLoader struct {
	*Base
}

// NewAwardLoader creates a loader named "awards".
func NewAwardLoader(client *load.Client, opts ...Option) *AwardLoader {
	return &AwardLoader{Base: NewBase("awards", client, opts...)}
}

// Load upserts the awards as nodes, then links each to its organization
// and funding agency. Per-record problems accumulate in the metrics;
// only execution-level failures (cancelled context, unbuildable
// statements) return an error.
func (l *AwardLoader) Load(ctx context.Context, awards []Award) error {
	records := make([]load.NodeRecord, 0, len(awards))
	rels := make([]load.RelationshipRecord, 0, len(awards)*2)
	for _, a := range awards {
		records = append(records, a.Record())
		rels = append(rels, a.Relationships()...)
	}

	if err := l.LoadNodes(ctx, LabelAward, KeyAwardID, records); err != nil {
		return err
	}
	return l.LoadRelationships(ctx, rels)
}

// putString sets name on the record unless the value is empty.
func putString(record load.NodeRecord, name, value string) {
	if value != "" {
		record[name] = value
	}
}
