package load

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/hollomancer/sbir-analytics-sub002/internal/types"
)

// Property names written by the load path itself. They are excluded from
// content hashing so a re-load of identical input hashes identically
// regardless of when or how it was written.
const (
	PropRecordHash   = "record_hash"
	PropCreatedAt    = "created_at"
	PropUpdatedAt    = "updated_at"
	PropMergeHistory = "merge_history"
)

func isBookkeepingProperty(name string) bool {
	switch name {
	case PropRecordHash, PropCreatedAt, PropUpdatedAt, PropMergeHistory:
		return true
	}
	return false
}

// CanonicalJSON serializes a property map deterministically: object keys are
// sorted, integers (and integral floats) render without a fraction or
// exponent, non-integral floats use the shortest round-trippable form, nil
// renders as an explicit null, and time.Time renders as an RFC3339 string.
// Top-level bookkeeping properties (record_hash, created_at, updated_at,
// merge_history) are skipped. Two maps with equal logical content always
// produce identical bytes, whatever Go types or key order they arrived with.
func CanonicalJSON(props map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	keys := make([]string, 0, len(props))
	for k := range props {
		if isBookkeepingProperty(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeCanonicalString(&buf, k)
		buf.WriteByte(':')
		if err := writeCanonicalValue(&buf, props[k]); err != nil {
			return nil, types.WrapError(types.LOAD_VALUE_UNSUPPORTED,
				fmt.Sprintf("cannot canonicalize property %q", k), err)
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ContentHash returns the hex-encoded SHA-256 of the canonical serialization
// of props. The hash is stored on the node under record_hash and compared on
// later writes to skip no-op updates.
func ContentHash(props map[string]any) (string, error) {
	canonical, err := CanonicalJSON(props)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeCanonicalString(buf *bytes.Buffer, s string) {
	encoded, _ := json.Marshal(s)
	buf.Write(encoded)
}

func writeCanonicalValue(buf *bytes.Buffer, value any) error {
	if value == nil {
		buf.WriteString("null")
		return nil
	}

	switch v := value.(type) {
	case bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		writeCanonicalString(buf, v)
	case int:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case int8:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case int16:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(v, 10))
	case uint:
		buf.WriteString(strconv.FormatUint(uint64(v), 10))
	case uint8:
		buf.WriteString(strconv.FormatUint(uint64(v), 10))
	case uint16:
		buf.WriteString(strconv.FormatUint(uint64(v), 10))
	case uint32:
		buf.WriteString(strconv.FormatUint(uint64(v), 10))
	case float32:
		writeCanonicalFloat(buf, float64(v))
	case float64:
		writeCanonicalFloat(buf, v)
	case time.Time:
		writeCanonicalString(buf, v.Format(time.RFC3339))
	case []string:
		buf.WriteByte('[')
		for i, elem := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonicalString(buf, elem)
		}
		buf.WriteByte(']')
	case []bool:
		buf.WriteByte('[')
		for i, elem := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalValue(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case []int:
		buf.WriteByte('[')
		for i, elem := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.FormatInt(int64(elem), 10))
		}
		buf.WriteByte(']')
	case []int64:
		buf.WriteByte('[')
		for i, elem := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.FormatInt(elem, 10))
		}
		buf.WriteByte(']')
	case []float64:
		buf.WriteByte('[')
		for i, elem := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonicalFloat(buf, elem)
		}
		buf.WriteByte(']')
	case []any:
		buf.WriteByte('[')
		for i, elem := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalValue(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		nested, err := canonicalObject(v)
		if err != nil {
			return err
		}
		buf.Write(nested)
	default:
		return types.NewError(types.LOAD_VALUE_UNSUPPORTED,
			fmt.Sprintf("unsupported value type %T", value))
	}
	return nil
}

// writeCanonicalFloat renders integral floats as plain integers so that a
// value decoded from JSON (always float64) hashes the same as one built in
// Go with an int. NaN and infinities cannot be stored and are rejected
// upstream; here they degrade to null to keep the function total.
func writeCanonicalFloat(buf *bytes.Buffer, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		buf.WriteString("null")
		return
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		buf.WriteString(strconv.FormatInt(int64(v), 10))
		return
	}
	buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
}

// canonicalObject serializes a nested map with sorted keys. Unlike the top
// level, nested objects keep every key: bookkeeping names only have special
// meaning directly on a node.
func canonicalObject(m map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeCanonicalString(&buf, k)
		buf.WriteByte(':')
		if err := writeCanonicalValue(&buf, m[k]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
