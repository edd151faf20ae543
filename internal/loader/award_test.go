package loader

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollomancer/sbir-analytics-sub002/internal/graph"
	"github.com/hollomancer/sbir-analytics-sub002/internal/load"
)

func TestAward_Record(t *testing.T) {
	t.Run("full record", func(t *testing.T) {
		awarded := time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)
		a := Award{
			AwardID:        "award-1",
			Title:          "Autonomous Inspection Drones",
			Phase:          "Phase I",
			Program:        "SBIR",
			AgencyCode:     "DOD",
			Amount:         149999.50,
			AwardedAt:      awarded,
			OrganizationID: "org-1",
			Extra:          map[string]any{"topic_code": "AF221-001"},
		}

		record := a.Record()
		assert.Equal(t, "award-1", record[KeyAwardID])
		assert.Equal(t, "Autonomous Inspection Drones", record["title"])
		assert.Equal(t, "Phase I", record["phase"])
		assert.Equal(t, "SBIR", record["program"])
		assert.Equal(t, "DOD", record[KeyAgencyCode])
		assert.Equal(t, 149999.50, record["amount"])
		assert.Equal(t, awarded, record["awarded_at"])
		assert.Equal(t, "org-1", record[KeyOrganizationID])
		assert.Equal(t, "AF221-001", record["topic_code"])
	})

	t.Run("empty fields omitted", func(t *testing.T) {
		record := Award{AwardID: "award-1"}.Record()
		assert.Contains(t, record, KeyAwardID)
		assert.Contains(t, record, "amount")
		assert.NotContains(t, record, "title")
		assert.NotContains(t, record, "phase")
		assert.NotContains(t, record, KeyAgencyCode)
		assert.NotContains(t, record, KeyOrganizationID)
		assert.NotContains(t, record, "awarded_at")
	})

	t.Run("typed fields win over extra", func(t *testing.T) {
		a := Award{
			AwardID: "award-1",
			Title:   "Real Title",
			Extra:   map[string]any{"title": "Stale Title", "award_id": "bogus"},
		}
		record := a.Record()
		assert.Equal(t, "Real Title", record["title"])
		assert.Equal(t, "award-1", record[KeyAwardID])
	})
}

func TestAward_Relationships(t *testing.T) {
	t.Run("both endpoints", func(t *testing.T) {
		a := Award{AwardID: "award-1", OrganizationID: "org-1", AgencyCode: "DOD"}
		rels := a.Relationships()
		require.Len(t, rels, 2)

		assert.Equal(t, RelAwardedTo, rels[0].Type)
		assert.Equal(t, "org-1", rels[0].TargetKey)
		assert.Equal(t, RelFundedBy, rels[1].Type)
		assert.Equal(t, "DOD", rels[1].TargetKey)
		for _, rel := range rels {
			assert.Equal(t, LabelAward, rel.SourceLabel)
			assert.Equal(t, "award-1", rel.SourceKey)
			require.NoError(t, rel.Validate())
		}
	})

	t.Run("organization only", func(t *testing.T) {
		rels := Award{AwardID: "award-1", OrganizationID: "org-1"}.Relationships()
		require.Len(t, rels, 1)
		assert.Equal(t, RelAwardedTo, rels[0].Type)
	})

	t.Run("no endpoints", func(t *testing.T) {
		assert.Empty(t, Award{AwardID: "award-1"}.Relationships())
	})

	t.Run("missing award id yields nothing", func(t *testing.T) {
		assert.Empty(t, Award{OrganizationID: "org-1", AgencyCode: "DOD"}.Relationships())
	})
}

func TestAwardLoader_Load(t *testing.T) {
	t.Run("nodes then relationships", func(t *testing.T) {
		mock := graph.NewMockClient()
		client, err := load.NewClient(mock, load.DefaultConfig())
		require.NoError(t, err)
		loader := NewAwardLoader(client, WithLogger(discardLogger()))

		// Node batch result, then one transaction result per signature
		// group (AWARDED_TO and FUNDED_BY).
		mock.EnqueueResult(graph.NewResult(map[string]any{
			"created": int64(2),
			"updated": int64(0),
		}))
		mock.EnqueueResult(graph.NewSummaryResult(graph.Summary{RelationshipsCreated: 2},
			map[string]any{"merged": int64(2)}))
		mock.EnqueueResult(graph.NewSummaryResult(graph.Summary{RelationshipsCreated: 1},
			map[string]any{"merged": int64(1)}))

		awards := []Award{
			{AwardID: "award-1", Title: "Drones", OrganizationID: "org-1", AgencyCode: "DOD"},
			{AwardID: "award-2", Title: "Sensors", OrganizationID: "org-2"},
		}
		require.NoError(t, loader.Load(context.Background(), awards))

		metrics := loader.Metrics()
		assert.Equal(t, 2, metrics.NodesCreated[LabelAward])
		assert.Equal(t, 2, metrics.RelationshipsCreated[RelAwardedTo])
		assert.Equal(t, 1, metrics.RelationshipsCreated[RelFundedBy])
		assert.Equal(t, 0, metrics.Errors)

		writes := mock.CallsByMethod("ExecuteWrite")
		require.Len(t, writes, 1, "one node batch")
		rows, ok := writes[0].Params["batch"].([]map[string]any)
		require.True(t, ok)
		require.Len(t, rows, 2)
		assert.Contains(t, rows[0], "record_hash", "award nodes are hash-gated")

		assert.Len(t, mock.CallsByMethod("WriteTransaction"), 1)
		assert.Len(t, mock.CallsByMethod("Run"), 2, "one statement per relationship signature")
	})

	t.Run("node load failure stops before relationships", func(t *testing.T) {
		mock := graph.NewMockClient()
		client, err := load.NewClient(mock, load.DefaultConfig())
		require.NoError(t, err)
		loader := NewAwardLoader(client, WithLogger(discardLogger()))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err = loader.Load(ctx, []Award{{AwardID: "award-1", OrganizationID: "org-1"}})
		require.Error(t, err)
		assert.Empty(t, mock.CallsByMethod("WriteTransaction"))
	})
}
