// Package graph provides Neo4j connectivity for the SBIR graph load
// pipeline.
//
// The package is organized around a small Client interface so that the
// load layer can be tested without a live database:
//
//   - Client: connection lifecycle, health checks, and query execution
//   - Neo4jClient: production implementation backed by the official
//     Neo4j Go driver, with lazy connection and retry-on-connect
//   - MockClient: in-memory implementation that records calls and
//     replays scripted results, for unit tests
//   - TracedClient: OpenTelemetry wrapper that adds spans around every
//     client operation
//
// Sessions are scoped to individual operations: each ExecuteRead,
// ExecuteWrite, and WriteTransaction call opens a session against the
// configured database and closes it before returning. Callers never
// manage sessions directly.
//
// Errors returned by this package are *GraphError values carrying a
// types.ErrorCode, the offending query where applicable, and a
// retryability hint for transient failures.
package graph
