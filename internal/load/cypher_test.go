package load

import (
	"strings"
	"testing"
)

func TestStatementBuilder_BatchMergeUpsert(t *testing.T) {
	b := NewStatementBuilder()

	tests := []struct {
		name        string
		label       string
		keyProperty string
		hashCheck   bool
		counts      bool
		wantQuery   []string
		notInQuery  []string
	}{
		{
			name:        "hash gated with counts",
			label:       "Organization",
			keyProperty: "organization_id",
			hashCheck:   true,
			counts:      true,
			wantQuery: []string{
				"UNWIND $batch AS row",
				"OPTIONAL MATCH (existing:Organization {organization_id: row.key_value})",
				"existing IS NULL AS is_new",
				"coalesce(existing.record_hash, '') = row.record_hash",
				"MERGE (n:Organization {organization_id: row.key_value})",
				"FOREACH (_ IN CASE WHEN is_new THEN [1] ELSE [] END",
				"SET n = row.properties, n.record_hash = row.record_hash",
				"FOREACH (_ IN CASE WHEN NOT is_new AND NOT unchanged THEN [1] ELSE [] END",
				"SET n += row.properties",
				"sum(CASE WHEN is_new THEN 1 ELSE 0 END) AS created",
				"sum(CASE WHEN NOT is_new AND NOT unchanged THEN 1 ELSE 0 END) AS updated",
			},
		},
		{
			name:        "hash gated without counts has no RETURN",
			label:       "Organization",
			keyProperty: "organization_id",
			hashCheck:   true,
			counts:      false,
			wantQuery:   []string{"MERGE (n:Organization {organization_id: row.key_value})"},
			notInQuery:  []string{"RETURN"},
		},
		{
			name:        "plain upsert counts everything as updated",
			label:       "Award",
			keyProperty: "award_id",
			hashCheck:   false,
			counts:      true,
			wantQuery: []string{
				"UNWIND $batch AS row",
				"MERGE (n:Award {award_id: row.key_value})",
				"ON CREATE SET n.created_at = timestamp()",
				"SET n += row.properties, n.updated_at = timestamp()",
				"RETURN 0 AS created, count(n) AS updated",
			},
			notInQuery: []string{"record_hash", "OPTIONAL MATCH"},
		},
		{
			name:        "label with invalid characters is sanitized",
			label:       "Award-Event",
			keyProperty: "event id",
			hashCheck:   false,
			counts:      true,
			wantQuery:   []string{"MERGE (n:Award_Event {event_id: row.key_value})"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, err := b.BatchMergeUpsert(tt.label, tt.keyProperty, tt.hashCheck, tt.counts)
			if err != nil {
				t.Fatalf("BatchMergeUpsert: %v", err)
			}
			for _, want := range tt.wantQuery {
				if !strings.Contains(query, want) {
					t.Errorf("query missing %q\nquery:\n%s", want, query)
				}
			}
			for _, not := range tt.notInQuery {
				if strings.Contains(query, not) {
					t.Errorf("query should not contain %q\nquery:\n%s", not, query)
				}
			}
		})
	}
}

func TestStatementBuilder_BatchMergeUpsert_EmptyLabel(t *testing.T) {
	b := NewStatementBuilder()
	if _, err := b.BatchMergeUpsert("", "id", true, true); err == nil {
		t.Error("expected error for empty label")
	}
	if _, err := b.BatchMergeUpsert("Organization", "---", true, true); err == nil {
		t.Error("expected error for key property with no valid characters")
	}
}

func TestStatementBuilder_BatchMatchOnlyUpdate(t *testing.T) {
	b := NewStatementBuilder()

	query, err := b.BatchMatchOnlyUpdate("Organization", "organization_id")
	if err != nil {
		t.Fatalf("BatchMatchOnlyUpdate: %v", err)
	}

	for _, want := range []string{
		"UNWIND $batch AS row",
		"MATCH (n:Organization {organization_id: row.key_value})",
		"SET n += row.properties",
		"RETURN count(n) AS updated",
	} {
		if !strings.Contains(query, want) {
			t.Errorf("query missing %q\nquery:\n%s", want, query)
		}
	}
	if strings.Contains(query, "MERGE") {
		t.Errorf("match-only statement must never MERGE:\n%s", query)
	}
	if strings.Contains(query, "CREATE") {
		t.Errorf("match-only statement must never CREATE:\n%s", query)
	}
}

func TestStatementBuilder_RelationshipMerge(t *testing.T) {
	b := NewStatementBuilder()

	tests := []struct {
		name      string
		relType   string
		withProps bool
		wantQuery []string
	}{
		{
			name:      "with properties",
			relType:   "AWARDED_TO",
			withProps: true,
			wantQuery: []string{
				"UNWIND $batch AS row",
				"MATCH (a:Award {award_id: row.source_key})",
				"MATCH (b:Organization {organization_id: row.target_key})",
				"MERGE (a)-[r:AWARDED_TO]->(b)",
				"SET r += row.properties",
				"RETURN count(r) AS merged",
			},
		},
		{
			name:      "without properties still stamps updated_at",
			relType:   "awarded_to",
			withProps: false,
			wantQuery: []string{
				"MERGE (a)-[r:AWARDED_TO]->(b)",
				"SET r.updated_at = timestamp()",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, err := b.RelationshipMerge("Award", "award_id", tt.relType, "Organization", "organization_id", tt.withProps)
			if err != nil {
				t.Fatalf("RelationshipMerge: %v", err)
			}
			for _, want := range tt.wantQuery {
				if !strings.Contains(query, want) {
					t.Errorf("query missing %q\nquery:\n%s", want, query)
				}
			}
			if !tt.withProps && strings.Contains(query, "r += row.properties") {
				t.Errorf("property overlay present without withProperties:\n%s", query)
			}
		})
	}
}

func TestStatementBuilder_BatchCreate(t *testing.T) {
	b := NewStatementBuilder()

	query, err := b.BatchCreate("AwardEvent")
	if err != nil {
		t.Fatalf("BatchCreate: %v", err)
	}

	for _, want := range []string{
		"UNWIND $batch AS row",
		"CREATE (n:AwardEvent)",
		"SET n = row.properties",
		"RETURN count(n) AS created",
	} {
		if !strings.Contains(query, want) {
			t.Errorf("query missing %q\nquery:\n%s", want, query)
		}
	}
	if strings.Contains(query, "MERGE") {
		t.Errorf("BatchCreate must not MERGE:\n%s", query)
	}
}

func TestStatementBuilder_MergeNode(t *testing.T) {
	b := NewStatementBuilder()

	query, err := b.MergeNode("Agency", "agency_code")
	if err != nil {
		t.Fatalf("MergeNode: %v", err)
	}

	for _, want := range []string{
		"MERGE (n:Agency {agency_code: $key_value})",
		"ON CREATE SET n = $properties",
		"ON MATCH SET n += $properties",
		"RETURN n.created_at = n.updated_at AS created",
	} {
		if !strings.Contains(query, want) {
			t.Errorf("query missing %q\nquery:\n%s", want, query)
		}
	}
}

func TestStatementBuilder_DuplicateBySecondaryKey(t *testing.T) {
	b := NewStatementBuilder()

	query, err := b.DuplicateBySecondaryKey("Organization", "organization_id", "uei", "name")
	if err != nil {
		t.Fatalf("DuplicateBySecondaryKey: %v", err)
	}

	for _, want := range []string{
		"MATCH (n:Organization)",
		"WHERE n.organization_id <> $key_value AND n.uei = $secondary_value",
		"RETURN n.organization_id AS key_value, n.name AS display_name",
		"ORDER BY n.organization_id",
		"LIMIT 1",
	} {
		if !strings.Contains(query, want) {
			t.Errorf("query missing %q\nquery:\n%s", want, query)
		}
	}
}

func TestStatementBuilder_MergeProperties(t *testing.T) {
	b := NewStatementBuilder()

	withHistory, err := b.MergeProperties("Organization", "organization_id", true)
	if err != nil {
		t.Fatalf("MergeProperties: %v", err)
	}
	for _, want := range []string{
		"MATCH (n:Organization {organization_id: $key_value})",
		"SET n += $properties",
		"SET n.merge_history = coalesce(n.merge_history, []) + $history_entry",
		"REMOVE n.record_hash",
		"RETURN count(n) AS merged",
	} {
		if !strings.Contains(withHistory, want) {
			t.Errorf("query missing %q\nquery:\n%s", want, withHistory)
		}
	}

	withoutHistory, err := b.MergeProperties("Organization", "organization_id", false)
	if err != nil {
		t.Fatalf("MergeProperties: %v", err)
	}
	if strings.Contains(withoutHistory, "merge_history") {
		t.Errorf("history disabled but merge_history present:\n%s", withoutHistory)
	}
}

func TestStatementBuilder_RedirectStatements(t *testing.T) {
	b := NewStatementBuilder()

	out, err := b.RedirectOutgoing("Organization", "organization_id")
	if err != nil {
		t.Fatalf("RedirectOutgoing: %v", err)
	}
	for _, want := range []string{
		"MATCH (d:Organization {organization_id: $duplicate_key})-[r]->(m)",
		"MATCH (c:Organization {organization_id: $canonical_key})",
		"WHERE m <> c",
		"apoc.create.relationship(c, type(r), properties(r), m)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("outgoing query missing %q\nquery:\n%s", want, out)
		}
	}

	in, err := b.RedirectIncoming("Organization", "organization_id")
	if err != nil {
		t.Fatalf("RedirectIncoming: %v", err)
	}
	for _, want := range []string{
		"MATCH (m)-[r]->(d:Organization {organization_id: $duplicate_key})",
		"apoc.create.relationship(m, type(r), properties(r), c)",
	} {
		if !strings.Contains(in, want) {
			t.Errorf("incoming query missing %q\nquery:\n%s", want, in)
		}
	}
}

func TestStatementBuilder_DeleteByKey(t *testing.T) {
	b := NewStatementBuilder()

	query, err := b.DeleteByKey("Organization", "organization_id")
	if err != nil {
		t.Fatalf("DeleteByKey: %v", err)
	}
	if !strings.Contains(query, "MATCH (n:Organization {organization_id: $key_value})") {
		t.Errorf("unexpected query:\n%s", query)
	}
	if !strings.Contains(query, "DETACH DELETE n") {
		t.Errorf("unexpected query:\n%s", query)
	}
}

func TestSanitizeLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Organization", "Organization"},
		{"award-event", "award_event"},
		{"Weird Label!", "Weird_Label_"},
		{"9lives", "_9lives"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeLabel(tt.in); got != tt.want {
			t.Errorf("sanitizeLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeRelationType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"awarded_to", "AWARDED_TO"},
		{"FUNDED-BY", "FUNDED_BY"},
		{"has space", "HAS_SPACE"},
	}
	for _, tt := range tests {
		if got := sanitizeRelationType(tt.in); got != tt.want {
			t.Errorf("sanitizeRelationType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeProperty_InjectionAttempt(t *testing.T) {
	// A hostile property name must not be able to break out of the
	// statement structure.
	got := sanitizeProperty("id}) DETACH DELETE (x")
	if strings.ContainsAny(got, "}){( ") {
		t.Errorf("sanitized property still contains structural characters: %q", got)
	}
}
