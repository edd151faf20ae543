package load

import (
	"fmt"
	"strings"

	"github.com/hollomancer/sbir-analytics-sub002/internal/types"
)

// StatementBuilder generates parameterized Cypher statements for batch load
// operations. Builders are pure: they assemble statement text from labels,
// key-property names, and flags, and never touch parameter values — those
// always travel as named parameters bound by the caller, so no record data
// is ever interpolated into query text.
//
// Every statement except BatchCreate is idempotent at the node/edge level
// when re-issued with identical parameters.
type StatementBuilder struct{}

// NewStatementBuilder creates a StatementBuilder.
func NewStatementBuilder() *StatementBuilder {
	return &StatementBuilder{}
}

// BatchMergeUpsert builds the batch node upsert statement. The caller binds
// $batch to a list of rows shaped {key_value, record_hash, properties}.
//
// With includeHashCheck, existing nodes are only overwritten when their
// stored record_hash differs from the incoming one; freshly created nodes
// and actually-changed nodes are counted separately when returnCounts is set.
//
// Generates (hash check on, counts on):
//
//	UNWIND $batch AS row
//	OPTIONAL MATCH (existing:Organization {organization_id: row.key_value})
//	WITH row, existing IS NULL AS is_new,
//	     (existing IS NOT NULL AND coalesce(existing.record_hash, '') = row.record_hash) AS unchanged
//	MERGE (n:Organization {organization_id: row.key_value})
//	FOREACH (_ IN CASE WHEN is_new THEN [1] ELSE [] END |
//	  SET n = row.properties, n.record_hash = row.record_hash, n.created_at = timestamp(), n.updated_at = timestamp())
//	FOREACH (_ IN CASE WHEN NOT is_new AND NOT unchanged THEN [1] ELSE [] END |
//	  SET n += row.properties, n.record_hash = row.record_hash, n.updated_at = timestamp())
//	RETURN sum(CASE WHEN is_new THEN 1 ELSE 0 END) AS created,
//	       sum(CASE WHEN NOT is_new AND NOT unchanged THEN 1 ELSE 0 END) AS updated
//
// Without the hash check the statement is a plain merge-and-overlay; every
// row counts as updated.
func (b *StatementBuilder) BatchMergeUpsert(label, keyProperty string, includeHashCheck, returnCounts bool) (string, error) {
	l, k, err := sanitizePair(label, keyProperty)
	if err != nil {
		return "", err
	}

	var q strings.Builder
	q.WriteString("UNWIND $batch AS row\n")

	if !includeHashCheck {
		q.WriteString(fmt.Sprintf("MERGE (n:%s {%s: row.key_value})\n", l, k))
		q.WriteString(fmt.Sprintf("ON CREATE SET n.%s = timestamp()\n", PropCreatedAt))
		q.WriteString(fmt.Sprintf("SET n += row.properties, n.%s = timestamp()", PropUpdatedAt))
		if returnCounts {
			q.WriteString("\nRETURN 0 AS created, count(n) AS updated")
		}
		return q.String(), nil
	}

	q.WriteString(fmt.Sprintf("OPTIONAL MATCH (existing:%s {%s: row.key_value})\n", l, k))
	q.WriteString("WITH row, existing IS NULL AS is_new,\n")
	q.WriteString(fmt.Sprintf("     (existing IS NOT NULL AND coalesce(existing.%s, '') = row.record_hash) AS unchanged\n", PropRecordHash))
	q.WriteString(fmt.Sprintf("MERGE (n:%s {%s: row.key_value})\n", l, k))
	q.WriteString("FOREACH (_ IN CASE WHEN is_new THEN [1] ELSE [] END |\n")
	q.WriteString(fmt.Sprintf("  SET n = row.properties, n.%s = row.record_hash, n.%s = timestamp(), n.%s = timestamp())\n",
		PropRecordHash, PropCreatedAt, PropUpdatedAt))
	q.WriteString("FOREACH (_ IN CASE WHEN NOT is_new AND NOT unchanged THEN [1] ELSE [] END |\n")
	q.WriteString(fmt.Sprintf("  SET n += row.properties, n.%s = row.record_hash, n.%s = timestamp())",
		PropRecordHash, PropUpdatedAt))
	if returnCounts {
		q.WriteString("\nRETURN sum(CASE WHEN is_new THEN 1 ELSE 0 END) AS created,\n")
		q.WriteString("       sum(CASE WHEN NOT is_new AND NOT unchanged THEN 1 ELSE 0 END) AS updated")
	}
	return q.String(), nil
}

// BatchMatchOnlyUpdate builds an overlay statement that matches existing
// nodes only and never creates. Used by enrichment passes that must not
// fabricate missing entities. Rows that match nothing are silently skipped.
//
// Generates:
//
//	UNWIND $batch AS row
//	MATCH (n:Organization {organization_id: row.key_value})
//	SET n += row.properties, n.updated_at = timestamp()
//	RETURN count(n) AS updated
func (b *StatementBuilder) BatchMatchOnlyUpdate(label, keyProperty string) (string, error) {
	l, k, err := sanitizePair(label, keyProperty)
	if err != nil {
		return "", err
	}

	var q strings.Builder
	q.WriteString("UNWIND $batch AS row\n")
	q.WriteString(fmt.Sprintf("MATCH (n:%s {%s: row.key_value})\n", l, k))
	q.WriteString(fmt.Sprintf("SET n += row.properties, n.%s = timestamp()\n", PropUpdatedAt))
	q.WriteString("RETURN count(n) AS updated")
	return q.String(), nil
}

// RelationshipMerge builds the batch relationship statement for one
// signature: both endpoints matched by key, one relationship of the given
// type merged between them. $batch rows are shaped
// {source_key, target_key, properties}. Re-issuing the statement with the
// same rows never duplicates an edge.
//
// Generates:
//
//	UNWIND $batch AS row
//	MATCH (a:Award {award_id: row.source_key})
//	MATCH (b:Organization {organization_id: row.target_key})
//	MERGE (a)-[r:AWARDED_TO]->(b)
//	SET r += row.properties, r.updated_at = timestamp()
//	RETURN count(r) AS merged
func (b *StatementBuilder) RelationshipMerge(sourceLabel, sourceKeyProperty, relType, targetLabel, targetKeyProperty string, withProperties bool) (string, error) {
	sl, sk, err := sanitizePair(sourceLabel, sourceKeyProperty)
	if err != nil {
		return "", err
	}
	tl, tk, err := sanitizePair(targetLabel, targetKeyProperty)
	if err != nil {
		return "", err
	}
	rt := sanitizeRelationType(relType)
	if rt == "" {
		return "", types.NewError(types.GRAPH_QUERY_FAILED, "relationship type is empty after sanitizing")
	}

	var q strings.Builder
	q.WriteString("UNWIND $batch AS row\n")
	q.WriteString(fmt.Sprintf("MATCH (a:%s {%s: row.source_key})\n", sl, sk))
	q.WriteString(fmt.Sprintf("MATCH (b:%s {%s: row.target_key})\n", tl, tk))
	q.WriteString(fmt.Sprintf("MERGE (a)-[r:%s]->(b)\n", rt))
	if withProperties {
		q.WriteString(fmt.Sprintf("SET r += row.properties, r.%s = timestamp()\n", PropUpdatedAt))
	} else {
		q.WriteString(fmt.Sprintf("SET r.%s = timestamp()\n", PropUpdatedAt))
	}
	q.WriteString("RETURN count(r) AS merged")
	return q.String(), nil
}

// BatchCreate builds an unconditional node creation statement with no
// matching. Unlike every other builder this one is NOT idempotent: each
// execution creates fresh nodes. Reserved for append-only record types.
//
// Generates:
//
//	UNWIND $batch AS row
//	CREATE (n:AwardEvent)
//	SET n = row.properties, n.created_at = timestamp(), n.updated_at = timestamp()
//	RETURN count(n) AS created
func (b *StatementBuilder) BatchCreate(label string) (string, error) {
	l := sanitizeLabel(label)
	if l == "" {
		return "", types.NewError(types.GRAPH_QUERY_FAILED, "label is empty after sanitizing")
	}

	var q strings.Builder
	q.WriteString("UNWIND $batch AS row\n")
	q.WriteString(fmt.Sprintf("CREATE (n:%s)\n", l))
	q.WriteString(fmt.Sprintf("SET n = row.properties, n.%s = timestamp(), n.%s = timestamp()\n",
		PropCreatedAt, PropUpdatedAt))
	q.WriteString("RETURN count(n) AS created")
	return q.String(), nil
}

// MergeNode builds the single-node unconditional upsert used inside caller
// transactions. It reports whether the node was freshly created through the
// created_at/updated_at sentinel: both are set to the same statement
// timestamp on create.
//
// Generates:
//
//	MERGE (n:Agency {agency_code: $key_value})
//	ON CREATE SET n = $properties, n.created_at = timestamp(), n.updated_at = timestamp()
//	ON MATCH SET n += $properties, n.updated_at = timestamp()
//	RETURN n.created_at = n.updated_at AS created
func (b *StatementBuilder) MergeNode(label, keyProperty string) (string, error) {
	l, k, err := sanitizePair(label, keyProperty)
	if err != nil {
		return "", err
	}

	var q strings.Builder
	q.WriteString(fmt.Sprintf("MERGE (n:%s {%s: $key_value})\n", l, k))
	q.WriteString(fmt.Sprintf("ON CREATE SET n = $properties, n.%s = timestamp(), n.%s = timestamp()\n",
		PropCreatedAt, PropUpdatedAt))
	q.WriteString(fmt.Sprintf("ON MATCH SET n += $properties, n.%s = timestamp()\n", PropUpdatedAt))
	q.WriteString(fmt.Sprintf("RETURN n.%s = n.%s AS created", PropCreatedAt, PropUpdatedAt))
	return q.String(), nil
}

// DuplicateBySecondaryKey builds the duplicate-detection query: an existing
// node of the same label whose primary key differs from $key_value but whose
// secondary key equals $secondary_value. Ordering by primary key makes the
// first-match tie-break deterministic.
//
// Generates:
//
//	MATCH (n:Organization)
//	WHERE n.organization_id <> $key_value AND n.uei = $secondary_value
//	RETURN n.organization_id AS key_value, n.name AS display_name
//	ORDER BY n.organization_id
//	LIMIT 1
func (b *StatementBuilder) DuplicateBySecondaryKey(label, keyProperty, secondaryKey, nameProperty string) (string, error) {
	l, k, err := sanitizePair(label, keyProperty)
	if err != nil {
		return "", err
	}
	sk := sanitizeProperty(secondaryKey)
	if sk == "" {
		return "", types.NewError(types.GRAPH_QUERY_FAILED, "secondary key is empty after sanitizing")
	}
	np := sanitizeProperty(nameProperty)
	if np == "" {
		np = "name"
	}

	var q strings.Builder
	q.WriteString(fmt.Sprintf("MATCH (n:%s)\n", l))
	q.WriteString(fmt.Sprintf("WHERE n.%s <> $key_value AND n.%s = $secondary_value\n", k, sk))
	q.WriteString(fmt.Sprintf("RETURN n.%s AS key_value, n.%s AS display_name\n", k, np))
	q.WriteString(fmt.Sprintf("ORDER BY n.%s\n", k))
	q.WriteString("LIMIT 1")
	return q.String(), nil
}

// MergeProperties builds the overlay step of an entity merge: incoming
// properties are applied to the canonical node, its stored record_hash is
// cleared so the next hash-gated upsert re-evaluates content, and — with
// history — a JSON-encoded entry is appended to the merge_history list.
//
// Generates (with history):
//
//	MATCH (n:Organization {organization_id: $key_value})
//	SET n += $properties, n.updated_at = timestamp()
//	SET n.merge_history = coalesce(n.merge_history, []) + $history_entry
//	REMOVE n.record_hash
//	RETURN count(n) AS merged
func (b *StatementBuilder) MergeProperties(label, keyProperty string, withHistory bool) (string, error) {
	l, k, err := sanitizePair(label, keyProperty)
	if err != nil {
		return "", err
	}

	var q strings.Builder
	q.WriteString(fmt.Sprintf("MATCH (n:%s {%s: $key_value})\n", l, k))
	q.WriteString(fmt.Sprintf("SET n += $properties, n.%s = timestamp()\n", PropUpdatedAt))
	if withHistory {
		q.WriteString(fmt.Sprintf("SET n.%s = coalesce(n.%s, []) + $history_entry\n",
			PropMergeHistory, PropMergeHistory))
	}
	q.WriteString(fmt.Sprintf("REMOVE n.%s\n", PropRecordHash))
	q.WriteString("RETURN count(n) AS merged")
	return q.String(), nil
}

// RedirectOutgoing builds the statement that re-creates the duplicate
// node's outbound relationships on the canonical node, preserving type and
// properties. Dynamic relationship types are not expressible in plain
// Cypher, so this requires the APOC plugin on the server.
//
// Generates:
//
//	MATCH (d:Organization {organization_id: $duplicate_key})-[r]->(m)
//	MATCH (c:Organization {organization_id: $canonical_key})
//	WHERE m <> c
//	CALL apoc.create.relationship(c, type(r), properties(r), m) YIELD rel
//	RETURN count(rel) AS redirected
func (b *StatementBuilder) RedirectOutgoing(label, keyProperty string) (string, error) {
	l, k, err := sanitizePair(label, keyProperty)
	if err != nil {
		return "", err
	}

	var q strings.Builder
	q.WriteString(fmt.Sprintf("MATCH (d:%s {%s: $duplicate_key})-[r]->(m)\n", l, k))
	q.WriteString(fmt.Sprintf("MATCH (c:%s {%s: $canonical_key})\n", l, k))
	q.WriteString("WHERE m <> c\n")
	q.WriteString("CALL apoc.create.relationship(c, type(r), properties(r), m) YIELD rel\n")
	q.WriteString("RETURN count(rel) AS redirected")
	return q.String(), nil
}

// RedirectIncoming is the inbound mirror of RedirectOutgoing.
func (b *StatementBuilder) RedirectIncoming(label, keyProperty string) (string, error) {
	l, k, err := sanitizePair(label, keyProperty)
	if err != nil {
		return "", err
	}

	var q strings.Builder
	q.WriteString(fmt.Sprintf("MATCH (m)-[r]->(d:%s {%s: $duplicate_key})\n", l, k))
	q.WriteString(fmt.Sprintf("MATCH (c:%s {%s: $canonical_key})\n", l, k))
	q.WriteString("WHERE m <> c\n")
	q.WriteString("CALL apoc.create.relationship(m, type(r), properties(r), c) YIELD rel\n")
	q.WriteString("RETURN count(rel) AS redirected")
	return q.String(), nil
}

// DeleteByKey builds the duplicate removal statement. DETACH DELETE drops
// any relationships still attached, which is why redirection runs first.
//
// Generates:
//
//	MATCH (n:Organization {organization_id: $key_value})
//	DETACH DELETE n
func (b *StatementBuilder) DeleteByKey(label, keyProperty string) (string, error) {
	l, k, err := sanitizePair(label, keyProperty)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("MATCH (n:%s {%s: $key_value})\nDETACH DELETE n", l, k), nil
}

func sanitizePair(label, keyProperty string) (string, string, error) {
	l := sanitizeLabel(label)
	if l == "" {
		return "", "", types.NewError(types.GRAPH_QUERY_FAILED, "label is empty after sanitizing")
	}
	k := sanitizeProperty(keyProperty)
	if k == "" {
		return "", "", types.NewError(types.GRAPH_QUERY_FAILED, "key property is empty after sanitizing")
	}
	return l, k, nil
}

// sanitizeLabel ensures node labels are safe to interpolate into statement
// text. Case is preserved; anything outside [A-Za-z0-9_] becomes an
// underscore, and a leading digit is prefixed.
func sanitizeLabel(label string) string {
	var result strings.Builder
	for _, r := range label {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			result.WriteRune(r)
		} else {
			result.WriteRune('_')
		}
	}
	s := result.String()
	if s != "" && s[0] >= '0' && s[0] <= '9' {
		s = "_" + s
	}
	return s
}

// sanitizeRelationType ensures relationship types are safe for statement
// text. Converts to uppercase and replaces invalid characters with underscores.
func sanitizeRelationType(relType string) string {
	relType = strings.ToUpper(relType)
	var result strings.Builder
	for _, r := range relType {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			result.WriteRune(r)
		} else {
			result.WriteRune('_')
		}
	}
	return result.String()
}

// sanitizeProperty ensures property names are safe for statement text.
// Converts to lowercase and replaces invalid characters with underscores.
func sanitizeProperty(prop string) string {
	prop = strings.ToLower(prop)
	var result strings.Builder
	for _, r := range prop {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			result.WriteRune(r)
		} else {
			result.WriteRune('_')
		}
	}
	s := result.String()
	if s != "" && s[0] >= '0' && s[0] <= '9' {
		s = "_" + s
	}
	return s
}
