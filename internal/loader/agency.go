package loader

import (
	"context"

	"github.com/hollomancer/sbir-analytics-sub002/internal/load"
)

// Agency is one federal funding agency. The agency list is small,
// slow-moving reference data keyed by agency_code.
type Agency struct {
	AgencyCode string
	Name       string
	Branch     string
}

// Record flattens the agency into a load record.
func (a Agency) Record() load.NodeRecord {
	record := make(load.NodeRecord, 3)
	putString(record, KeyAgencyCode, a.AgencyCode)
	putString(record, "name", a.Name)
	putString(record, "branch", a.Branch)
	return record
}

// AgencyLoader loads agency reference nodes.
type AgencyLoader struct {
	*Base
}

// NewAgencyLoader creates a loader named "agencies".
func NewAgencyLoader(client *load.Client, opts ...Option) *AgencyLoader {
	return &AgencyLoader{Base: NewBase("agencies", client, opts...)}
}

// Load overwrites the agency nodes. The set is small enough that the
// hash gate buys nothing; every load rewrites every agency.
func (l *AgencyLoader) Load(ctx context.Context, agencies []Agency) error {
	records := make([]load.NodeRecord, 0, len(agencies))
	for _, a := range agencies {
		records = append(records, a.Record())
	}
	return l.OverwriteNodes(ctx, LabelAgency, KeyAgencyCode, records)
}
