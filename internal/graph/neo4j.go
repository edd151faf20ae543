package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/hollomancer/sbir-analytics-sub002/internal/types"
)

const (
	connectMaxRetries = 5
	connectBaseDelay  = 100 * time.Millisecond
	healthTimeout     = 5 * time.Second
)

// Neo4jClient implements Client for Neo4j databases. The underlying
// driver is created lazily: the first operation that needs the database
// triggers Connect, so constructing the client performs no I/O.
type Neo4jClient struct {
	config Config
	log    *slog.Logger

	mu     sync.Mutex
	driver neo4j.DriverWithContext
}

// Neo4jOption configures a Neo4jClient.
type Neo4jOption func(*Neo4jClient)

// WithLogger sets the logger used for connection lifecycle events.
func WithLogger(log *slog.Logger) Neo4jOption {
	return func(c *Neo4jClient) {
		c.log = log
	}
}

// NewNeo4jClient creates a new Neo4j client with the given configuration.
// The connection is established lazily on first use, or explicitly via
// Connect.
func NewNeo4jClient(config Config, opts ...Neo4jOption) (*Neo4jClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Neo4jClient{
		config: config,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Connect establishes a connection to the Neo4j database, verifying
// connectivity with exponential backoff. A no-op when already connected.
func (c *Neo4jClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Neo4jClient) connectLocked(ctx context.Context) error {
	if c.driver != nil {
		return nil
	}

	auth := neo4j.BasicAuth(c.config.Username, c.config.Password, "")
	driverConfig := func(config *neo4j.Config) {
		config.MaxConnectionPoolSize = c.config.MaxConnectionPoolSize
		config.ConnectionAcquisitionTimeout = c.config.ConnectionTimeout
		config.MaxTransactionRetryTime = c.config.MaxTransactionRetryTime
		// Encryption is controlled by the URI scheme (bolt:// vs bolt+s://).
	}

	var lastErr error
	for attempt := 0; attempt < connectMaxRetries; attempt++ {
		driver, err := neo4j.NewDriverWithContext(c.config.URI, auth, driverConfig)
		if err == nil {
			if err = driver.VerifyConnectivity(ctx); err == nil {
				c.driver = driver
				c.log.Debug("connected to graph database",
					"uri", c.config.URI,
					"database", c.config.Database)
				return nil
			}
			driver.Close(ctx)
		}
		lastErr = err

		if ctx.Err() != nil {
			return WrapGraphError(types.GRAPH_CONNECTION_FAILED,
				"connection attempt cancelled", ctx.Err())
		}

		c.log.Warn("graph connection attempt failed",
			"attempt", attempt+1,
			"max_attempts", connectMaxRetries,
			"error", err)

		// Backoff delay: baseDelay * 2^attempt, capped at the connection timeout.
		delay := connectBaseDelay * time.Duration(math.Pow(2, float64(attempt)))
		if delay > c.config.ConnectionTimeout {
			delay = c.config.ConnectionTimeout
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return WrapGraphError(types.GRAPH_CONNECTION_FAILED,
				"connection attempt cancelled", ctx.Err())
		}
	}

	return WrapGraphError(types.GRAPH_CONNECTION_FAILED,
		fmt.Sprintf("failed to connect after %d attempts", connectMaxRetries), lastErr)
}

// ensureConnected returns the live driver, connecting first if needed.
func (c *Neo4jClient) ensureConnected(ctx context.Context) (neo4j.DriverWithContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connectLocked(ctx); err != nil {
		return nil, err
	}
	return c.driver, nil
}

// Close releases all resources and closes the database connection.
// Safe to call on a client that never connected.
func (c *Neo4jClient) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.driver == nil {
		return nil
	}

	err := c.driver.Close(ctx)
	c.driver = nil
	if err != nil {
		return WrapGraphError(types.GRAPH_CONNECTION_FAILED,
			"failed to close driver", err)
	}
	return nil
}

// Health returns the current health status of the Neo4j connection.
// A client that has not connected yet reports unhealthy rather than
// triggering a lazy connect.
func (c *Neo4jClient) Health(ctx context.Context) types.HealthStatus {
	c.mu.Lock()
	driver := c.driver
	c.mu.Unlock()

	if driver == nil {
		return types.Unhealthy("not connected")
	}

	healthCtx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	if err := driver.VerifyConnectivity(healthCtx); err != nil {
		return types.Unhealthy(fmt.Sprintf("connectivity check failed: %v", err))
	}
	return types.Healthy("connected")
}

// ExecuteRead runs a Cypher query in a read transaction using a session
// scoped to this call.
func (c *Neo4jClient) ExecuteRead(ctx context.Context, cypher string, params map[string]any) (*QueryResult, error) {
	driver, err := c.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.config.Database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return runAndCollect(ctx, tx, cypher, params)
	})
	if err != nil {
		return nil, asQueryError(err, cypher)
	}
	return result.(*QueryResult), nil
}

// ExecuteWrite runs a Cypher query in a write transaction using a
// session scoped to this call.
func (c *Neo4jClient) ExecuteWrite(ctx context.Context, cypher string, params map[string]any) (*QueryResult, error) {
	driver, err := c.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.config.Database,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return runAndCollect(ctx, tx, cypher, params)
	})
	if err != nil {
		return nil, asQueryError(err, cypher)
	}
	return result.(*QueryResult), nil
}

// WriteTransaction runs fn inside a single managed write transaction.
// The driver retries fn on transient failures up to
// MaxTransactionRetryTime, so fn must be idempotent within one call.
func (c *Neo4jClient) WriteTransaction(ctx context.Context, fn func(tx Transaction) error) error {
	driver, err := c.ensureConnected(ctx)
	if err != nil {
		return err
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.config.Database,
	})
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(&managedTransaction{tx: tx})
	})
	if err != nil {
		return asQueryError(err, "")
	}
	return nil
}

// managedTransaction adapts a driver transaction to the Transaction
// interface.
type managedTransaction struct {
	tx neo4j.ManagedTransaction
}

func (t *managedTransaction) Run(ctx context.Context, cypher string, params map[string]any) (*QueryResult, error) {
	result, err := runAndCollect(ctx, t.tx, cypher, params)
	if err != nil {
		return nil, asQueryError(err, cypher)
	}
	return result, nil
}

// runAndCollect executes a statement and drains it into a QueryResult.
func runAndCollect(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) (*QueryResult, error) {
	neoResult, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	records, err := neoResult.Collect(ctx)
	if err != nil {
		return nil, err
	}

	summary, err := neoResult.Consume(ctx)
	if err != nil {
		return nil, err
	}

	return convertResult(records, summary), nil
}

// asQueryError wraps err as a query GraphError unless it already is a
// GraphError, preserving errors surfaced from inner calls.
func asQueryError(err error, cypher string) error {
	var ge *GraphError
	if errors.As(err, &ge) {
		return err
	}
	qe := NewQueryError(err)
	if cypher != "" {
		qe = qe.WithQuery(cypher)
	}
	return qe
}

// convertResult converts driver records and summary counters to the
// package's QueryResult format.
func convertResult(records []*neo4j.Record, summary neo4j.ResultSummary) *QueryResult {
	result := &QueryResult{
		Records: make([]map[string]any, 0, len(records)),
		Keys:    []string{},
	}

	if len(records) > 0 {
		result.Keys = records[0].Keys
	}

	for _, record := range records {
		row := make(map[string]any, len(record.Keys))
		for i, key := range record.Keys {
			row[key] = record.Values[i]
		}
		result.Records = append(result.Records, row)
	}

	if summary != nil && summary.Counters() != nil {
		counters := summary.Counters()
		result.Summary = Summary{
			NodesCreated:         counters.NodesCreated(),
			NodesDeleted:         counters.NodesDeleted(),
			RelationshipsCreated: counters.RelationshipsCreated(),
			RelationshipsDeleted: counters.RelationshipsDeleted(),
			PropertiesSet:        counters.PropertiesSet(),
			ConstraintsAdded:     counters.ConstraintsAdded(),
			IndexesAdded:         counters.IndexesAdded(),
			QueryTime:            summary.ResultAvailableAfter(),
		}
	}

	return result
}
