package load

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hollomancer/sbir-analytics-sub002/internal/graph"
	"github.com/hollomancer/sbir-analytics-sub002/internal/types"
)

// MergeOptions controls multi-key entity merging.
type MergeOptions struct {
	// SecondaryKeys are the natural-key properties checked for duplicate
	// detection, in priority order; the first key with a match wins.
	SecondaryKeys []string

	// NameProperty is the display-name property captured in merge
	// history entries. Defaults to "name" when empty.
	NameProperty string

	// TrackHistory appends a JSON-encoded entry to the canonical node's
	// merge_history list for every absorbed record.
	TrackHistory bool

	// RedirectRelationships re-creates the duplicate node's inbound and
	// outbound relationships on the canonical node before the duplicate
	// is deleted. Requires the APOC plugin on the server. When false,
	// relationships still attached to the duplicate are dropped with it.
	RedirectRelationships bool
}

// DefaultMergeOptions returns the merge configuration for SBIR
// organizations: match on UEI then DUNS, keep history, re-point edges.
func DefaultMergeOptions() MergeOptions {
	return MergeOptions{
		SecondaryKeys:         []string{"uei", "duns"},
		NameProperty:          "name",
		TrackHistory:          true,
		RedirectRelationships: true,
	}
}

// mergeMatch pairs an incoming record with the canonical node that
// absorbs it.
type mergeMatch struct {
	record       NodeRecord
	recordKey    any
	canonicalKey any
	matchedOn    string
}

// MergeEntitiesMultiKey loads records of one label, collapsing records
// whose secondary keys identify an already-persisted entity under a
// different primary key. Matched records are overlaid onto the existing
// canonical node and their own node (if any) is removed; unmatched
// records go through the standard hash-gated batch upsert.
//
// Each successful merge increments nodes_updated for the label by one;
// a failed merge increments errors by one and the load continues.
//
// Duplicate detection and the merge write are separate round-trips, so
// a second concurrent writer can slip a colliding secondary key in
// between and leave a duplicate behind. Single-writer operation per
// label is a hard precondition of this method.
func (c *Client) MergeEntitiesMultiKey(ctx context.Context, label, keyProperty string, records []NodeRecord, opts MergeOptions, metrics *Metrics) error {
	if metrics == nil {
		metrics = NewMetrics()
	}
	if len(records) == 0 {
		return nil
	}
	if opts.NameProperty == "" {
		opts.NameProperty = "name"
	}

	for start := 0; start < len(records); start += c.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return types.WrapError(types.LOAD_MERGE_FAILED, "merge cancelled", err)
		}

		end := start + c.config.BatchSize
		if end > len(records) {
			end = len(records)
		}

		matches, unmatched := c.detectDuplicates(ctx, label, keyProperty, records[start:end], opts, metrics)

		for _, match := range matches {
			if err := c.mergeOne(ctx, label, keyProperty, match, opts); err != nil {
				metrics.AddErrors(1)
				c.log.Warn("entity merge failed",
					"label", label,
					"key", match.recordKey,
					"canonical", match.canonicalKey,
					"error", err)
				continue
			}
			metrics.AddNodesUpdated(label, 1)
			c.log.Debug("merged duplicate entity",
				"label", label,
				"key", match.recordKey,
				"canonical", match.canonicalKey,
				"matched_on", match.matchedOn)
		}

		if len(unmatched) > 0 {
			if err := c.BatchUpsertNodes(ctx, label, keyProperty, unmatched, metrics); err != nil {
				return err
			}
		}
	}
	return nil
}

// detectDuplicates partitions a chunk into records that match an
// existing node by secondary key and records that do not. Records
// without a primary key, and records whose detection query fails, are
// counted as errors and excluded from both paths.
func (c *Client) detectDuplicates(ctx context.Context, label, keyProperty string, chunk []NodeRecord, opts MergeOptions, metrics *Metrics) ([]mergeMatch, []NodeRecord) {
	var matches []mergeMatch
	unmatched := make([]NodeRecord, 0, len(chunk))

	for _, record := range chunk {
		key, ok := record.Key(keyProperty)
		if !ok {
			metrics.AddErrors(1)
			c.log.Warn("skipping record without key",
				"label", label,
				"key_property", keyProperty)
			continue
		}

		match, err := c.findDuplicate(ctx, label, keyProperty, key, record, opts)
		if err != nil {
			metrics.AddErrors(1)
			c.log.Warn("duplicate detection failed",
				"label", label,
				"key", key,
				"error", err)
			continue
		}
		if match != nil {
			match.record = record
			match.recordKey = key
			matches = append(matches, *match)
			continue
		}
		unmatched = append(unmatched, record)
	}
	return matches, unmatched
}

// findDuplicate checks each enabled secondary key in order and returns
// the first canonical match, or nil when the record matches nothing.
func (c *Client) findDuplicate(ctx context.Context, label, keyProperty string, key any, record NodeRecord, opts MergeOptions) (*mergeMatch, error) {
	for _, secondaryKey := range opts.SecondaryKeys {
		secondaryValue, ok := record.Key(secondaryKey)
		if !ok {
			continue
		}

		stmt, err := c.builder.DuplicateBySecondaryKey(label, keyProperty, secondaryKey, opts.NameProperty)
		if err != nil {
			return nil, err
		}

		result, err := c.graph.ExecuteRead(ctx, stmt, map[string]any{
			"key_value":       key,
			"secondary_value": secondaryValue,
		})
		if err != nil {
			return nil, err
		}
		if result.Empty() {
			continue
		}

		canonicalKey, ok := result.Records[0]["key_value"]
		if !ok || canonicalKey == nil {
			return nil, types.NewError(types.LOAD_MERGE_FAILED,
				"duplicate detection returned no key value")
		}
		return &mergeMatch{
			canonicalKey: canonicalKey,
			matchedOn:    secondaryKey,
		}, nil
	}
	return nil, nil
}

// mergeOne absorbs one matched record into its canonical node inside a
// single transaction: overlay properties, optionally append history,
// optionally re-point the duplicate's relationships, delete the
// duplicate. Rolls back as a unit on any failure.
func (c *Client) mergeOne(ctx context.Context, label, keyProperty string, match mergeMatch, opts MergeOptions) error {
	normalized, err := NormalizeRecord(match.record)
	if err != nil {
		return err
	}

	// The canonical node keeps its own primary key, and bookkeeping
	// properties never travel between nodes.
	overlay := make(map[string]any, len(normalized))
	for name, value := range normalized {
		if name == keyProperty || isBookkeepingProperty(name) {
			continue
		}
		overlay[name] = value
	}

	overlayStmt, err := c.builder.MergeProperties(label, keyProperty, opts.TrackHistory)
	if err != nil {
		return err
	}

	overlayParams := map[string]any{
		"key_value":  match.canonicalKey,
		"properties": overlay,
	}
	if opts.TrackHistory {
		entry, err := marshalHistoryEntry(match, opts, overlay)
		if err != nil {
			return err
		}
		overlayParams["history_entry"] = entry
	}

	redirectOut, err := c.builder.RedirectOutgoing(label, keyProperty)
	if err != nil {
		return err
	}
	redirectIn, err := c.builder.RedirectIncoming(label, keyProperty)
	if err != nil {
		return err
	}
	deleteStmt, err := c.builder.DeleteByKey(label, keyProperty)
	if err != nil {
		return err
	}

	return c.graph.WriteTransaction(ctx, func(tx graph.Transaction) error {
		result, err := tx.Run(ctx, overlayStmt, overlayParams)
		if err != nil {
			return err
		}
		if merged, _ := result.Int("merged"); merged == 0 {
			return types.NewError(types.LOAD_MERGE_FAILED,
				fmt.Sprintf("canonical node %v no longer exists", match.canonicalKey))
		}

		if opts.RedirectRelationships {
			redirectParams := map[string]any{
				"duplicate_key": match.recordKey,
				"canonical_key": match.canonicalKey,
			}
			if _, err := tx.Run(ctx, redirectOut, redirectParams); err != nil {
				return err
			}
			if _, err := tx.Run(ctx, redirectIn, redirectParams); err != nil {
				return err
			}
		}

		_, err = tx.Run(ctx, deleteStmt, map[string]any{"key_value": match.recordKey})
		return err
	})
}

// marshalHistoryEntry encodes one merge-history entry as JSON. Entries
// are stored as strings because graph list properties hold primitives
// only.
func marshalHistoryEntry(match mergeMatch, opts MergeOptions, overlay map[string]any) (string, error) {
	entry := map[string]any{
		"merged_id":  match.recordKey,
		"matched_on": match.matchedOn,
		"merged_at":  time.Now().UTC().Format(time.RFC3339),
		"properties": overlay,
	}
	if name := match.record.StringValue(opts.NameProperty); name != "" {
		entry["merged_name"] = name
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return "", types.WrapError(types.LOAD_MERGE_FAILED,
			"failed to encode merge history entry", err)
	}
	return string(data), nil
}
