package loader

import (
	"context"

	"github.com/hollomancer/sbir-analytics-sub002/internal/load"
)

// Organization is one small-business entity. OrganizationID is the
// primary key; UEI and DUNS are the secondary identifiers used to
// detect the same entity arriving under a different primary key.
type Organization struct {
	OrganizationID string
	Name           string
	UEI            string
	DUNS           string
	State          string
	City           string

	Extra map[string]any
}

// Record flattens the organization into a load record. Empty fields are
// omitted so absent identifiers never participate in duplicate
// detection; typed fields win over Extra entries of the same name.
func (o Organization) Record() load.NodeRecord {
	record := make(load.NodeRecord, len(o.Extra)+6)
	for k, v := range o.Extra {
		record[k] = v
	}

	putString(record, KeyOrganizationID, o.OrganizationID)
	putString(record, "name", o.Name)
	putString(record, "uei", o.UEI)
	putString(record, "duns", o.DUNS)
	putString(record, "state", o.State)
	putString(record, "city", o.City)
	return record
}

// OrganizationLoader loads organizations through the multi-key entity
// merge, collapsing records that share a UEI or DUNS with an existing
// node.
type OrganizationLoader struct {
	*Base

	// Merge controls duplicate detection and absorption. Replace before
	// Load when the secondary keys or redirect behavior differ from the
	// defaults.
	Merge load.MergeOptions
}

// NewOrganizationLoader creates a loader named "organizations" with the
// default merge behavior.
func NewOrganizationLoader(client *load.Client, opts ...Option) *OrganizationLoader {
	return &OrganizationLoader{
		Base:  NewBase("organizations", client, opts...),
		Merge: load.DefaultMergeOptions(),
	}
}

// Load merges the organizations into the graph. Records matching an
// existing node by secondary key are absorbed into it; the rest are
// upserted under their own key.
func (l *OrganizationLoader) Load(ctx context.Context, orgs []Organization) error {
	records := make([]load.NodeRecord, 0, len(orgs))
	for _, o := range orgs {
		records = append(records, o.Record())
	}
	return l.MergeEntities(ctx, LabelOrganization, KeyOrganizationID, records, l.Merge)
}
