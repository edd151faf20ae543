package graph

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollomancer/sbir-analytics-sub002/internal/types"
)

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		URI:                     "bolt://localhost:7687",
		Username:                "neo4j",
		Password:                "password",
		MaxConnectionPoolSize:   50,
		ConnectionTimeout:       30 * time.Second,
		MaxTransactionRetryTime: 30 * time.Second,
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "empty password is allowed",
			mutate:  func(c *Config) { c.Password = "" },
			wantErr: false,
		},
		{
			name:    "empty database is allowed",
			mutate:  func(c *Config) { c.Database = "" },
			wantErr: false,
		},
		{
			name:    "empty URI",
			mutate:  func(c *Config) { c.URI = "" },
			wantErr: true,
		},
		{
			name:    "empty username",
			mutate:  func(c *Config) { c.Username = "" },
			wantErr: true,
		},
		{
			name:    "zero pool size",
			mutate:  func(c *Config) { c.MaxConnectionPoolSize = 0 },
			wantErr: true,
		},
		{
			name:    "negative pool size",
			mutate:  func(c *Config) { c.MaxConnectionPoolSize = -1 },
			wantErr: true,
		},
		{
			name:    "zero connection timeout",
			mutate:  func(c *Config) { c.ConnectionTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "negative retry time",
			mutate:  func(c *Config) { c.MaxTransactionRetryTime = -time.Second },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid
			tt.mutate(&config)

			err := config.Validate()
			if tt.wantErr {
				require.Error(t, err)

				var pe *types.PipelineError
				if errors.As(err, &pe) {
					assert.Equal(t, types.CONFIG_VALIDATION_FAILED, pe.Code)
				}
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "bolt://localhost:7687", config.URI)
	assert.Equal(t, "neo4j", config.Username)
	assert.Equal(t, "neo4j", config.Database)
	assert.Equal(t, 50, config.MaxConnectionPoolSize)
	assert.Equal(t, 30*time.Second, config.ConnectionTimeout)
	assert.Equal(t, 30*time.Second, config.MaxTransactionRetryTime)

	require.NoError(t, config.Validate())
}

func TestQueryResult_Empty(t *testing.T) {
	var nilResult *QueryResult
	assert.True(t, nilResult.Empty())
	assert.True(t, (&QueryResult{}).Empty())
	assert.False(t, NewResult(map[string]any{"n": int64(1)}).Empty())
}

func TestQueryResult_Int(t *testing.T) {
	tests := []struct {
		name   string
		result *QueryResult
		column string
		want   int64
		wantOK bool
	}{
		{
			name:   "int64 value",
			result: NewResult(map[string]any{"created": int64(7)}),
			column: "created",
			want:   7,
			wantOK: true,
		},
		{
			name:   "int value",
			result: NewResult(map[string]any{"created": 3}),
			column: "created",
			want:   3,
			wantOK: true,
		},
		{
			name:   "float64 value",
			result: NewResult(map[string]any{"created": 2.0}),
			column: "created",
			want:   2,
			wantOK: true,
		},
		{
			name:   "missing column",
			result: NewResult(map[string]any{"created": int64(7)}),
			column: "updated",
			wantOK: false,
		},
		{
			name:   "non-numeric value",
			result: NewResult(map[string]any{"created": "seven"}),
			column: "created",
			wantOK: false,
		},
		{
			name:   "empty result",
			result: NewResult(),
			column: "created",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.result.Int(tt.column)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestQueryResult_String(t *testing.T) {
	result := NewResult(map[string]any{
		"key_value":    "ORG-002",
		"display_name": "Acme Robotics",
		"count":        int64(1),
	})

	got, ok := result.String("key_value")
	require.True(t, ok)
	assert.Equal(t, "ORG-002", got)

	got, ok = result.String("display_name")
	require.True(t, ok)
	assert.Equal(t, "Acme Robotics", got)

	_, ok = result.String("count")
	assert.False(t, ok)

	_, ok = result.String("missing")
	assert.False(t, ok)

	_, ok = NewResult().String("key_value")
	assert.False(t, ok)
}

func TestQueryResult_IntReadsFirstRow(t *testing.T) {
	result := NewResult(
		map[string]any{"updated": int64(5)},
		map[string]any{"updated": int64(9)},
	)

	got, ok := result.Int("updated")
	require.True(t, ok)
	assert.Equal(t, int64(5), got)
}
