package load

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeRecord_Key(t *testing.T) {
	tests := []struct {
		name   string
		record NodeRecord
		wantOK bool
		want   any
	}{
		{"present string", NodeRecord{"award_id": "A1"}, true, "A1"},
		{"present number", NodeRecord{"award_id": int64(7)}, true, int64(7)},
		{"absent", NodeRecord{"title": "x"}, false, nil},
		{"nil value", NodeRecord{"award_id": nil}, false, nil},
		{"empty string", NodeRecord{"award_id": ""}, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.record.Key("award_id")
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestNodeRecord_Clone(t *testing.T) {
	orig := NodeRecord{"award_id": "A1", "title": "Kit"}
	clone := orig.Clone()

	clone["title"] = "Changed"
	assert.Equal(t, "Kit", orig["title"])
	assert.Equal(t, "A1", clone["award_id"])
}

func TestNodeRecord_StringValue(t *testing.T) {
	r := NodeRecord{"name": "Acme", "amount": 5.0}
	assert.Equal(t, "Acme", r.StringValue("name"))
	assert.Equal(t, "", r.StringValue("amount"))
	assert.Equal(t, "", r.StringValue("missing"))
}

func TestNormalizeValue(t *testing.T) {
	ts := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		in      any
		want    any
		wantErr bool
	}{
		{"nil", nil, nil, false},
		{"string", "x", "x", false},
		{"bool", true, true, false},
		{"int widens", int(5), int64(5), false},
		{"int32 widens", int32(5), int64(5), false},
		{"uint widens", uint(5), int64(5), false},
		{"float32 widens", float32(1.5), float64(1.5), false},
		{"float64", 2.5, 2.5, false},
		{"time to RFC3339", ts, "2024-03-15T09:30:00Z", false},
		{"string slice", []string{"a"}, []string{"a"}, false},
		{"int slice widens", []int{1, 2}, []int64{1, 2}, false},
		{"map rejected", map[string]any{"a": 1}, nil, true},
		{"struct rejected", struct{ X int }{1}, nil, true},
		{"chan rejected", make(chan int), nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeValue(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeValue_AnySlice(t *testing.T) {
	got, err := NormalizeValue([]any{int(1), "two", 3.0})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), "two", 3.0}, got)

	_, err = NormalizeValue([]any{map[string]any{"nested": true}})
	assert.Error(t, err)
}

func TestNormalizeRecord(t *testing.T) {
	out, err := NormalizeRecord(map[string]any{
		"award_id": "A1",
		"year":     int(2024),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2024), out["year"])

	_, err = NormalizeRecord(map[string]any{"bad": map[string]any{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"bad"`)
}

func TestRelationshipRecord_Signature(t *testing.T) {
	r1 := RelationshipRecord{
		SourceLabel: "Award", SourceKeyProperty: "award_id", SourceKey: "A1",
		TargetLabel: "Organization", TargetKeyProperty: "organization_id", TargetKey: "p1",
		Type: "AWARDED_TO",
	}
	r2 := RelationshipRecord{
		SourceLabel: "Award", SourceKeyProperty: "award_id", SourceKey: "A2",
		TargetLabel: "Organization", TargetKeyProperty: "organization_id", TargetKey: "p9",
		Type: "AWARDED_TO",
		Props: map[string]any{"role": "prime"},
	}
	r3 := r1
	r3.Type = "FUNDED_BY"

	assert.Equal(t, r1.Signature(), r2.Signature(), "key values and props must not affect the signature")
	assert.NotEqual(t, r1.Signature(), r3.Signature())
}

func TestRelationshipRecord_Validate(t *testing.T) {
	valid := RelationshipRecord{
		SourceLabel: "Award", SourceKeyProperty: "award_id", SourceKey: "A1",
		TargetLabel: "Organization", TargetKeyProperty: "organization_id", TargetKey: "p1",
		Type: "AWARDED_TO",
	}
	assert.NoError(t, valid.Validate())

	missingType := valid
	missingType.Type = ""
	assert.Error(t, missingType.Validate())

	missingKey := valid
	missingKey.TargetKey = nil
	assert.Error(t, missingKey.Validate())

	missingLabel := valid
	missingLabel.SourceLabel = ""
	assert.Error(t, missingLabel.Validate())
}
