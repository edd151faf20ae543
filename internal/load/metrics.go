package load

import (
	"encoding/json"
	"time"
)

// Metrics accumulates the outcome of load operations: per-label node
// created/updated counts, per-type relationship created counts, an error
// counter, and elapsed duration. One instance is typically threaded through
// every call of a loading session to produce a running total.
//
// Metrics is not internally synchronized. Callers that share one instance
// across goroutines must provide their own locking.
type Metrics struct {
	NodesCreated         map[string]int
	NodesUpdated         map[string]int
	RelationshipsCreated map[string]int
	Errors               int
	Duration             time.Duration
}

// NewMetrics returns a zero-valued accumulator with freshly allocated maps.
// Instances never share state.
func NewMetrics() *Metrics {
	return &Metrics{
		NodesCreated:         make(map[string]int),
		NodesUpdated:         make(map[string]int),
		RelationshipsCreated: make(map[string]int),
	}
}

// AddNodesCreated adds n to the created count for label. Non-positive n is
// ignored: counts only increase.
func (m *Metrics) AddNodesCreated(label string, n int) {
	if n <= 0 {
		return
	}
	if m.NodesCreated == nil {
		m.NodesCreated = make(map[string]int)
	}
	m.NodesCreated[label] += n
}

// AddNodesUpdated adds n to the updated count for label.
func (m *Metrics) AddNodesUpdated(label string, n int) {
	if n <= 0 {
		return
	}
	if m.NodesUpdated == nil {
		m.NodesUpdated = make(map[string]int)
	}
	m.NodesUpdated[label] += n
}

// AddRelationshipsCreated adds n to the created count for the relationship type.
func (m *Metrics) AddRelationshipsCreated(relType string, n int) {
	if n <= 0 {
		return
	}
	if m.RelationshipsCreated == nil {
		m.RelationshipsCreated = make(map[string]int)
	}
	m.RelationshipsCreated[relType] += n
}

// AddErrors adds n to the error counter.
func (m *Metrics) AddErrors(n int) {
	if n <= 0 {
		return
	}
	m.Errors += n
}

// ObserveDuration adds d to the accumulated duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if d <= 0 {
		return
	}
	m.Duration += d
}

// Merge folds other into m. The other accumulator is left unchanged.
func (m *Metrics) Merge(other *Metrics) {
	if other == nil {
		return
	}
	for label, n := range other.NodesCreated {
		m.AddNodesCreated(label, n)
	}
	for label, n := range other.NodesUpdated {
		m.AddNodesUpdated(label, n)
	}
	for relType, n := range other.RelationshipsCreated {
		m.AddRelationshipsCreated(relType, n)
	}
	m.AddErrors(other.Errors)
	m.ObserveDuration(other.Duration)
}

// TotalNodesCreated returns the created count summed across labels.
func (m *Metrics) TotalNodesCreated() int {
	total := 0
	for _, n := range m.NodesCreated {
		total += n
	}
	return total
}

// TotalNodesUpdated returns the updated count summed across labels.
func (m *Metrics) TotalNodesUpdated() int {
	total := 0
	for _, n := range m.NodesUpdated {
		total += n
	}
	return total
}

// TotalRelationshipsCreated returns the created count summed across types.
func (m *Metrics) TotalRelationshipsCreated() int {
	total := 0
	for _, n := range m.RelationshipsCreated {
		total += n
	}
	return total
}

// HasErrors returns true if any errors were counted.
func (m *Metrics) HasErrors() bool {
	return m.Errors > 0
}

// MarshalJSON serializes the accumulator with duration expressed in seconds.
func (m *Metrics) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		NodesCreated         map[string]int `json:"nodes_created"`
		NodesUpdated         map[string]int `json:"nodes_updated"`
		RelationshipsCreated map[string]int `json:"relationships_created"`
		Errors               int            `json:"errors"`
		DurationSeconds      float64        `json:"duration_seconds"`
	}{
		NodesCreated:         m.NodesCreated,
		NodesUpdated:         m.NodesUpdated,
		RelationshipsCreated: m.RelationshipsCreated,
		Errors:               m.Errors,
		DurationSeconds:      m.Duration.Seconds(),
	})
}
