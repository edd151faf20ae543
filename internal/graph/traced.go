package graph

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hollomancer/sbir-analytics-sub002/internal/types"
)

// Span name constants for graph client operations, following the
// "sbirgraph.graph.*" convention.
const (
	SpanGraphConnect          = "sbirgraph.graph.connect"
	SpanGraphClose            = "sbirgraph.graph.close"
	SpanGraphHealth           = "sbirgraph.graph.health"
	SpanGraphExecuteRead      = "sbirgraph.graph.execute_read"
	SpanGraphExecuteWrite     = "sbirgraph.graph.execute_write"
	SpanGraphWriteTransaction = "sbirgraph.graph.write_transaction"
)

// Attribute keys recorded on graph spans.
const (
	AttrDBSystem     = "db.system"
	AttrDBName       = "db.name"
	AttrRecordCount  = "sbirgraph.graph.record_count"
	AttrNodesCreated = "sbirgraph.graph.nodes_created"
	AttrRelsCreated  = "sbirgraph.graph.relationships_created"
	AttrDurationMS   = "sbirgraph.graph.duration_ms"
	AttrHealthState  = "sbirgraph.graph.health_state"
)

// TracedClient wraps a Client with OpenTelemetry tracing. Every
// operation gets a span carrying query result counts, write counters,
// and duration; errors are recorded on the span and propagated
// unchanged.
//
// Thread-safety: safe for concurrent use (delegates to the inner client).
type TracedClient struct {
	inner    Client
	tracer   trace.Tracer
	database string
}

// TracedClientOption is a functional option for configuring TracedClient.
type TracedClientOption func(*TracedClient)

// WithDatabaseName records the target database name on every span.
func WithDatabaseName(name string) TracedClientOption {
	return func(c *TracedClient) {
		c.database = name
	}
}

// NewTracedClient wraps inner with tracing using the given tracer.
func NewTracedClient(inner Client, tracer trace.Tracer, opts ...TracedClientOption) *TracedClient {
	c := &TracedClient{
		inner:  inner,
		tracer: tracer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// baseAttrs returns the attributes common to every span.
func (c *TracedClient) baseAttrs() []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(AttrDBSystem, "neo4j")}
	if c.database != "" {
		attrs = append(attrs, attribute.String(AttrDBName, c.database))
	}
	return attrs
}

// Connect establishes the connection with a span around the attempt.
func (c *TracedClient) Connect(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, SpanGraphConnect)
	defer span.End()
	span.SetAttributes(c.baseAttrs()...)

	start := time.Now()
	err := c.inner.Connect(ctx)
	span.SetAttributes(attribute.Float64(AttrDurationMS, float64(time.Since(start).Milliseconds())))

	if err != nil {
		recordSpanError(span, err)
		return err
	}
	span.SetStatus(codes.Ok, "connected")
	return nil
}

// Close closes the inner client with a span around the call.
func (c *TracedClient) Close(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, SpanGraphClose)
	defer span.End()

	if err := c.inner.Close(ctx); err != nil {
		recordSpanError(span, err)
		return err
	}
	span.SetStatus(codes.Ok, "closed")
	return nil
}

// Health checks the inner client's health, recording the state on the span.
func (c *TracedClient) Health(ctx context.Context) types.HealthStatus {
	ctx, span := c.tracer.Start(ctx, SpanGraphHealth)
	defer span.End()

	status := c.inner.Health(ctx)
	span.SetAttributes(attribute.String(AttrHealthState, status.State.String()))
	if !status.IsHealthy() {
		span.SetStatus(codes.Error, status.Message)
	} else {
		span.SetStatus(codes.Ok, "healthy")
	}
	return status
}

// ExecuteRead runs a read query with a span recording the row count.
func (c *TracedClient) ExecuteRead(ctx context.Context, cypher string, params map[string]any) (*QueryResult, error) {
	ctx, span := c.tracer.Start(ctx, SpanGraphExecuteRead)
	defer span.End()
	span.SetAttributes(c.baseAttrs()...)

	start := time.Now()
	result, err := c.inner.ExecuteRead(ctx, cypher, params)
	span.SetAttributes(attribute.Float64(AttrDurationMS, float64(time.Since(start).Milliseconds())))

	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int(AttrRecordCount, len(result.Records)))
	span.SetStatus(codes.Ok, "read succeeded")
	return result, nil
}

// ExecuteWrite runs a write query with a span recording write counters.
func (c *TracedClient) ExecuteWrite(ctx context.Context, cypher string, params map[string]any) (*QueryResult, error) {
	ctx, span := c.tracer.Start(ctx, SpanGraphExecuteWrite)
	defer span.End()
	span.SetAttributes(c.baseAttrs()...)

	start := time.Now()
	result, err := c.inner.ExecuteWrite(ctx, cypher, params)
	span.SetAttributes(attribute.Float64(AttrDurationMS, float64(time.Since(start).Milliseconds())))

	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int(AttrNodesCreated, result.Summary.NodesCreated),
		attribute.Int(AttrRelsCreated, result.Summary.RelationshipsCreated),
	)
	span.SetStatus(codes.Ok, "write succeeded")
	return result, nil
}

// WriteTransaction runs fn inside the inner client's transaction with a
// span around the whole transaction.
func (c *TracedClient) WriteTransaction(ctx context.Context, fn func(tx Transaction) error) error {
	ctx, span := c.tracer.Start(ctx, SpanGraphWriteTransaction)
	defer span.End()
	span.SetAttributes(c.baseAttrs()...)

	start := time.Now()
	err := c.inner.WriteTransaction(ctx, fn)
	span.SetAttributes(attribute.Float64(AttrDurationMS, float64(time.Since(start).Milliseconds())))

	if err != nil {
		recordSpanError(span, err)
		return err
	}
	span.SetStatus(codes.Ok, "transaction committed")
	return nil
}

// recordSpanError marks the span as failed and records the error.
func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.Bool("error", true))
}
