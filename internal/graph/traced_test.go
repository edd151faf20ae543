package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func newTracedMock(t *testing.T) (*TracedClient, *MockClient) {
	t.Helper()
	mock := NewMockClient()
	tracer := noop.NewTracerProvider().Tracer("test")
	return NewTracedClient(mock, tracer, WithDatabaseName("neo4j")), mock
}

func TestTracedClient_DelegatesConnect(t *testing.T) {
	traced, mock := newTracedMock(t)

	require.NoError(t, traced.Connect(context.Background()))
	assert.True(t, mock.IsConnected())

	require.NoError(t, traced.Close(context.Background()))
	assert.False(t, mock.IsConnected())
}

func TestTracedClient_DelegatesQueries(t *testing.T) {
	traced, mock := newTracedMock(t)
	mock.EnqueueResult(NewResult(map[string]any{"created": int64(3)}))

	result, err := traced.ExecuteWrite(context.Background(), "MERGE (n:Award)", nil)

	require.NoError(t, err)
	got, ok := result.Int("created")
	require.True(t, ok)
	assert.Equal(t, int64(3), got)
	assert.Len(t, mock.CallsByMethod("ExecuteWrite"), 1)
}

func TestTracedClient_PropagatesErrors(t *testing.T) {
	traced, mock := newTracedMock(t)
	wantErr := errors.New("write failed")
	mock.SetWriteError(wantErr)

	_, err := traced.ExecuteWrite(context.Background(), "MERGE (n:Award)", nil)

	assert.Equal(t, wantErr, err)
}

func TestTracedClient_WriteTransaction(t *testing.T) {
	traced, mock := newTracedMock(t)
	mock.EnqueueResult(NewResult(map[string]any{"merged": int64(1)}))

	err := traced.WriteTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.Run(context.Background(), "MATCH ... MERGE", nil)
		return err
	})

	require.NoError(t, err)
	assert.Len(t, mock.CallsByMethod("Run"), 1)
}

func TestTracedClient_Health(t *testing.T) {
	traced, mock := newTracedMock(t)
	require.NoError(t, mock.Connect(context.Background()))

	status := traced.Health(context.Background())

	assert.True(t, status.IsHealthy())
}
