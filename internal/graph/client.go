package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/hollomancer/sbir-analytics-sub002/internal/types"
)

// Client defines the interface for graph database operations used by the
// load pipeline. Implementations must be safe for concurrent use and
// must establish the underlying connection lazily on first use, so that
// constructing a client never performs I/O.
type Client interface {
	// Connect establishes the connection to the graph database, verifying
	// connectivity with retries. Calling Connect on an already-connected
	// client is a no-op.
	Connect(ctx context.Context) error

	// Close releases the connection. Safe to call on a client that never
	// connected, and safe to call more than once.
	Close(ctx context.Context) error

	// Health checks connectivity and returns the current health status.
	Health(ctx context.Context) types.HealthStatus

	// ExecuteRead runs a Cypher query in a read transaction.
	ExecuteRead(ctx context.Context, cypher string, params map[string]any) (*QueryResult, error)

	// ExecuteWrite runs a Cypher query in a write transaction.
	ExecuteWrite(ctx context.Context, cypher string, params map[string]any) (*QueryResult, error)

	// WriteTransaction runs fn inside a single write transaction. Every
	// statement issued through the Transaction commits or rolls back
	// together; returning an error from fn rolls the transaction back.
	WriteTransaction(ctx context.Context, fn func(tx Transaction) error) error
}

// Transaction is the handle passed to WriteTransaction callbacks for
// issuing statements inside the open transaction.
type Transaction interface {
	Run(ctx context.Context, cypher string, params map[string]any) (*QueryResult, error)
}

// QueryResult holds the rows and counters returned by a Cypher execution.
type QueryResult struct {
	// Records contains one map per result row, keyed by column name.
	Records []map[string]any

	// Keys lists the column names of the result, in query order.
	Keys []string

	// Summary carries the write counters reported by the database.
	Summary Summary
}

// Summary mirrors the database's write counters for a single statement
// or transaction function.
type Summary struct {
	NodesCreated         int
	NodesDeleted         int
	RelationshipsCreated int
	RelationshipsDeleted int
	PropertiesSet        int
	ConstraintsAdded     int
	IndexesAdded         int

	// QueryTime is the server-reported time until results were available.
	QueryTime time.Duration
}

// Empty reports whether the result contains no rows.
func (r *QueryResult) Empty() bool {
	return r == nil || len(r.Records) == 0
}

// Int returns the named column of the first row as an int64. The second
// return value is false when the result is empty, the column is absent,
// or the value is not numeric.
func (r *QueryResult) Int(column string) (int64, bool) {
	if r.Empty() {
		return 0, false
	}
	switch v := r.Records[0][column].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// String returns the named column of the first row as a string. The
// second return value is false when the result is empty, the column is
// absent, or the value is not a string.
func (r *QueryResult) String(column string) (string, bool) {
	if r.Empty() {
		return "", false
	}
	s, ok := r.Records[0][column].(string)
	return s, ok
}

// Bool returns the named column of the first row as a bool. The second
// return value is false when the result is empty, the column is absent,
// or the value is not a bool.
func (r *QueryResult) Bool(column string) (bool, bool) {
	if r.Empty() {
		return false, false
	}
	b, ok := r.Records[0][column].(bool)
	return b, ok
}

// Config holds connection settings for the graph database.
type Config struct {
	// URI is the connection string (e.g., "bolt://localhost:7687").
	URI string

	// Username for authentication.
	Username string

	// Password for authentication.
	Password string

	// Database is the target database name. Empty selects the server default.
	Database string

	// MaxConnectionPoolSize limits the number of pooled connections.
	MaxConnectionPoolSize int

	// ConnectionTimeout bounds connection acquisition and caps the
	// backoff delay between connect retries.
	ConnectionTimeout time.Duration

	// MaxTransactionRetryTime bounds the driver's internal retries of
	// transaction functions on transient failures.
	MaxTransactionRetryTime time.Duration
}

// DefaultConfig returns a Config with sensible defaults for a local
// Neo4j instance.
func DefaultConfig() Config {
	return Config{
		URI:                     "bolt://localhost:7687",
		Username:                "neo4j",
		Password:                "",
		Database:                "neo4j",
		MaxConnectionPoolSize:   50,
		ConnectionTimeout:       30 * time.Second,
		MaxTransactionRetryTime: 30 * time.Second,
	}
}

// Validate checks the configuration for required fields and sane values.
func (c Config) Validate() error {
	if c.URI == "" {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "graph URI is required")
	}
	if c.Username == "" {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "graph username is required")
	}
	if c.MaxConnectionPoolSize <= 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("max connection pool size must be positive, got %d", c.MaxConnectionPoolSize))
	}
	if c.ConnectionTimeout <= 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("connection timeout must be positive, got %s", c.ConnectionTimeout))
	}
	if c.MaxTransactionRetryTime < 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("max transaction retry time must not be negative, got %s", c.MaxTransactionRetryTime))
	}
	return nil
}
