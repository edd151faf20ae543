package load

import (
	"fmt"
	"time"

	"github.com/hollomancer/sbir-analytics-sub002/internal/types"
)

// NodeRecord is one flat property bag destined for a single node of some
// label. A record must carry the label's key property to be written; every
// other entry is overlaid onto the node as an ordinary property.
//
// Property values are restricted to the types Neo4j can store: nil, bool,
// string, integers, float64, time.Time (written as RFC3339 strings), and
// homogeneous slices of those. NormalizeRecord enforces the set and rejects
// anything else, including map-valued properties.
type NodeRecord map[string]any

// Key returns the record's value for the given key property. The second
// return is false when the property is absent, nil, or an empty string —
// such records cannot be matched and are counted as input errors by the
// batch writers.
func (r NodeRecord) Key(keyProperty string) (any, bool) {
	v, ok := r[keyProperty]
	if !ok || v == nil {
		return nil, false
	}
	if s, isStr := v.(string); isStr && s == "" {
		return nil, false
	}
	return v, true
}

// StringValue returns the named property as a string, or "" when it is
// absent or not a string.
func (r NodeRecord) StringValue(name string) string {
	if s, ok := r[name].(string); ok {
		return s
	}
	return ""
}

// Clone returns a shallow copy of the record. Slice and map values are
// shared with the original.
func (r NodeRecord) Clone() NodeRecord {
	out := make(NodeRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// RelationshipRecord describes one directed, typed edge between two nodes
// identified by their label and key property. Records sharing the same
// Signature are written together in a single batch statement.
type RelationshipRecord struct {
	SourceLabel       string
	SourceKeyProperty string
	SourceKey         any
	TargetLabel       string
	TargetKeyProperty string
	TargetKey         any
	Type              string
	Props             map[string]any
}

// Signature identifies the statement shape a relationship record needs:
// everything except the endpoint key values and properties.
type Signature struct {
	SourceLabel       string
	SourceKeyProperty string
	TargetLabel       string
	TargetKeyProperty string
	Type              string
}

// Signature returns the grouping signature for the record.
func (r RelationshipRecord) Signature() Signature {
	return Signature{
		SourceLabel:       r.SourceLabel,
		SourceKeyProperty: r.SourceKeyProperty,
		TargetLabel:       r.TargetLabel,
		TargetKeyProperty: r.TargetKeyProperty,
		Type:              r.Type,
	}
}

// Validate checks that the record names both endpoints and a relationship
// type and carries non-nil key values.
func (r RelationshipRecord) Validate() error {
	switch {
	case r.SourceLabel == "" || r.SourceKeyProperty == "":
		return types.NewError(types.LOAD_RECORD_MISSING_KEY, "relationship record missing source label or key property")
	case r.TargetLabel == "" || r.TargetKeyProperty == "":
		return types.NewError(types.LOAD_RECORD_MISSING_KEY, "relationship record missing target label or key property")
	case r.Type == "":
		return types.NewError(types.LOAD_RECORD_MISSING_KEY, "relationship record missing type")
	case r.SourceKey == nil || r.TargetKey == nil:
		return types.NewError(types.LOAD_RECORD_MISSING_KEY, "relationship record missing endpoint key value")
	}
	return nil
}

// NormalizeValue converts a property value to its Neo4j-compatible form.
// time.Time becomes an RFC3339 string, integer kinds widen to int64, and
// float32 widens to float64. Values outside the supported set — maps,
// structs, channels, and mixed-type slices — produce a LOAD_VALUE_UNSUPPORTED
// error.
func NormalizeValue(value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch v := value.(type) {
	case bool, string, int64, float64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case float32:
		return float64(v), nil
	case time.Time:
		return v.Format(time.RFC3339), nil
	case []string, []bool, []int64, []float64:
		return v, nil
	case []int:
		out := make([]int64, len(v))
		for i, n := range v {
			out[i] = int64(n)
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			norm, err := NormalizeValue(elem)
			if err != nil {
				return nil, err
			}
			out[i] = norm
		}
		return out, nil
	default:
		return nil, types.NewError(types.LOAD_VALUE_UNSUPPORTED,
			fmt.Sprintf("unsupported property value type %T", value))
	}
}

// NormalizeRecord returns a copy of props with every value normalized via
// NormalizeValue. The error names the offending property.
func NormalizeRecord(props map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(props))
	for name, value := range props {
		norm, err := NormalizeValue(value)
		if err != nil {
			return nil, types.WrapError(types.LOAD_VALUE_UNSUPPORTED,
				fmt.Sprintf("property %q", name), err)
		}
		out[name] = norm
	}
	return out, nil
}
