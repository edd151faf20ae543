package graph

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hollomancer/sbir-analytics-sub002/internal/types"
)

// Call records a single method invocation on the MockClient.
type Call struct {
	// Method is the name of the invoked method ("ExecuteWrite", "Run", ...).
	Method string

	// Query is the Cypher text, empty for lifecycle methods.
	Query string

	// Params holds the query parameters, nil for lifecycle methods.
	Params map[string]any

	// Time is when the call was made.
	Time time.Time
}

// MockClient is an in-memory Client for unit tests. It records every
// call, replays scripted results in FIFO order, and can be configured
// to fail specific methods.
//
// Like the production client, the mock "connects" lazily: the first
// query succeeds without an explicit Connect unless a connect error has
// been scripted.
//
// Thread-safety: safe for concurrent use.
type MockClient struct {
	mu sync.Mutex

	connected bool
	health    types.HealthStatus

	calls    []Call
	outcomes []mockOutcome

	connectErr error
	closeErr   error
	readErr    error
	writeErr   error
	txErr      error
}

// mockOutcome is one scripted response: either a result or an error.
type mockOutcome struct {
	result *QueryResult
	err    error
}

// NewMockClient creates a MockClient that reports healthy and returns
// empty results until scripted otherwise.
func NewMockClient() *MockClient {
	return &MockClient{
		health: types.Healthy("mock"),
	}
}

// NewResult builds a QueryResult from literal rows, for scripting mock
// responses. Keys are derived from the first row in sorted order.
func NewResult(rows ...map[string]any) *QueryResult {
	result := &QueryResult{
		Records: make([]map[string]any, 0, len(rows)),
		Keys:    []string{},
	}
	for _, row := range rows {
		result.Records = append(result.Records, row)
	}
	if len(rows) > 0 {
		for key := range rows[0] {
			result.Keys = append(result.Keys, key)
		}
		sort.Strings(result.Keys)
	}
	return result
}

// NewSummaryResult builds a QueryResult carrying the given counters, for
// scripting responses whose summary matters (e.g., relationship counts).
func NewSummaryResult(summary Summary, rows ...map[string]any) *QueryResult {
	result := NewResult(rows...)
	result.Summary = summary
	return result
}

// Connect marks the mock as connected, or fails with the scripted
// connect error.
func (m *MockClient) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Connect", "", nil)
	return m.connectLocked()
}

// Close marks the mock as disconnected, or fails with the scripted
// close error.
func (m *MockClient) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Close", "", nil)
	if m.closeErr != nil {
		return m.closeErr
	}
	m.connected = false
	return nil
}

// Health returns the scripted health status, or unhealthy when the mock
// has not connected.
func (m *MockClient) Health(ctx context.Context) types.HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Health", "", nil)
	if !m.connected {
		return types.Unhealthy("not connected")
	}
	return m.health
}

// ExecuteRead records the call and replays the next scripted outcome.
func (m *MockClient) ExecuteRead(ctx context.Context, cypher string, params map[string]any) (*QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ExecuteRead", cypher, params)
	if err := m.connectLocked(); err != nil {
		return nil, err
	}
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.nextOutcomeLocked()
}

// ExecuteWrite records the call and replays the next scripted outcome.
func (m *MockClient) ExecuteWrite(ctx context.Context, cypher string, params map[string]any) (*QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ExecuteWrite", cypher, params)
	if err := m.connectLocked(); err != nil {
		return nil, err
	}
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	return m.nextOutcomeLocked()
}

// WriteTransaction records the call and invokes fn with a transaction
// whose Run calls draw from the same scripted outcome queue.
func (m *MockClient) WriteTransaction(ctx context.Context, fn func(tx Transaction) error) error {
	m.mu.Lock()
	m.record("WriteTransaction", "", nil)
	if err := m.connectLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	txErr := m.txErr
	m.mu.Unlock()

	if txErr != nil {
		return txErr
	}
	return fn(&mockTransaction{client: m})
}

// mockTransaction forwards Run calls back to the mock's outcome queue.
type mockTransaction struct {
	client *MockClient
}

func (t *mockTransaction) Run(ctx context.Context, cypher string, params map[string]any) (*QueryResult, error) {
	m := t.client
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Run", cypher, params)
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	return m.nextOutcomeLocked()
}

// record appends a call entry. Caller must hold the lock.
func (m *MockClient) record(method, query string, params map[string]any) {
	m.calls = append(m.calls, Call{
		Method: method,
		Query:  query,
		Params: params,
		Time:   time.Now(),
	})
}

// connectLocked performs the lazy connect. Caller must hold the lock.
func (m *MockClient) connectLocked() error {
	if m.connected {
		return nil
	}
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connected = true
	return nil
}

// nextOutcomeLocked pops the next scripted outcome, defaulting to an
// empty result when the queue is exhausted. Caller must hold the lock.
func (m *MockClient) nextOutcomeLocked() (*QueryResult, error) {
	if len(m.outcomes) == 0 {
		return &QueryResult{Records: []map[string]any{}, Keys: []string{}}, nil
	}
	outcome := m.outcomes[0]
	m.outcomes = m.outcomes[1:]
	if outcome.err != nil {
		return nil, outcome.err
	}
	return outcome.result, nil
}

// EnqueueResult appends a result to the FIFO queue consumed by
// ExecuteRead, ExecuteWrite, and transaction Run calls.
func (m *MockClient) EnqueueResult(result *QueryResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, mockOutcome{result: result})
}

// EnqueueError appends an error to the FIFO outcome queue, failing
// whichever query call reaches it.
func (m *MockClient) EnqueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, mockOutcome{err: err})
}

// SetConnectError makes Connect (and lazy connects) fail with err.
func (m *MockClient) SetConnectError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectErr = err
}

// SetCloseError makes Close fail with err.
func (m *MockClient) SetCloseError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeErr = err
}

// SetReadError makes every ExecuteRead fail with err.
func (m *MockClient) SetReadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// SetWriteError makes every ExecuteWrite and transaction Run fail with err.
func (m *MockClient) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// SetTransactionError makes WriteTransaction fail with err before
// invoking its callback.
func (m *MockClient) SetTransactionError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txErr = err
}

// SetHealth sets the status returned by Health once connected.
func (m *MockClient) SetHealth(status types.HealthStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.health = status
}

// IsConnected reports whether the mock considers itself connected.
func (m *MockClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Calls returns a copy of all recorded calls in order.
func (m *MockClient) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsByMethod returns all recorded calls with the given method name.
func (m *MockClient) CallsByMethod(method string) []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Call
	for _, call := range m.calls {
		if call.Method == method {
			out = append(out, call)
		}
	}
	return out
}

// CallsMatching returns all recorded calls whose query contains substr.
func (m *MockClient) CallsMatching(substr string) []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Call
	for _, call := range m.calls {
		if call.Query != "" && strings.Contains(call.Query, substr) {
			out = append(out, call)
		}
	}
	return out
}

// CallCount returns the total number of recorded calls.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// WriteStatementCount returns the number of write statements issued:
// ExecuteWrite calls plus Run calls inside write transactions.
func (m *MockClient) WriteStatementCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, call := range m.calls {
		if call.Method == "ExecuteWrite" || call.Method == "Run" {
			n++
		}
	}
	return n
}

// Reset clears recorded calls, scripted outcomes, errors, and the
// connected flag.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	m.health = types.Healthy("mock")
	m.calls = nil
	m.outcomes = nil
	m.connectErr = nil
	m.closeErr = nil
	m.readErr = nil
	m.writeErr = nil
	m.txErr = nil
}
