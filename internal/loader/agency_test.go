package loader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollomancer/sbir-analytics-sub002/internal/graph"
	"github.com/hollomancer/sbir-analytics-sub002/internal/load"
)

func TestAgency_Record(t *testing.T) {
	record := Agency{AgencyCode: "DOD", Name: "Department of Defense", Branch: "Air Force"}.Record()
	assert.Equal(t, "DOD", record[KeyAgencyCode])
	assert.Equal(t, "Department of Defense", record["name"])
	assert.Equal(t, "Air Force", record["branch"])

	sparse := Agency{AgencyCode: "NSF"}.Record()
	assert.NotContains(t, sparse, "name")
	assert.NotContains(t, sparse, "branch")
}

func TestAgencyLoader_Load(t *testing.T) {
	mock := graph.NewMockClient()
	client, err := load.NewClient(mock, load.DefaultConfig())
	require.NoError(t, err)
	loader := NewAgencyLoader(client, WithLogger(discardLogger()))

	mock.EnqueueResult(graph.NewResult(map[string]any{
		"created": int64(2),
		"updated": int64(1),
	}))

	agencies := []Agency{
		{AgencyCode: "DOD", Name: "Department of Defense"},
		{AgencyCode: "HHS", Name: "Health and Human Services"},
		{AgencyCode: "NSF", Name: "National Science Foundation"},
	}
	require.NoError(t, loader.Load(context.Background(), agencies))

	assert.Equal(t, 2, loader.Metrics().NodesCreated[LabelAgency])
	assert.Equal(t, 1, loader.Metrics().NodesUpdated[LabelAgency])

	writes := mock.CallsByMethod("ExecuteWrite")
	require.Len(t, writes, 1)
	rows, ok := writes[0].Params["batch"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.NotContains(t, row, "record_hash", "reference data skips the hash gate")
	}
}
