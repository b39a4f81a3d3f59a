package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu             sync.Mutex
	requestCount   map[string]int64
	errorCount     map[string]int64
	reconcileCount map[string]int64
	lastSweep      time.Time
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Requests  map[string]int64 `json:"requests"`
	Errors    map[string]int64 `json:"errors"`
	Reconcile map[string]int64 `json:"reconcile"`
	LastSweep *time.Time       `json:"last_sweep,omitempty"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:   make(map[string]int64),
		errorCount:     make(map[string]int64),
		reconcileCount: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordReconcile counts one reconciliation outcome.
func (m *Metrics) RecordReconcile(outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconcileCount[outcome]++
}

// RecordSweep stamps the completion of a batch sweep.
func (m *Metrics) RecordSweep(at time.Time) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSweep = at
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Requests:  map[string]int64{},
		Errors:    map[string]int64{},
		Reconcile: map[string]int64{},
	}
	if m == nil {
		return snap
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.requestCount {
		snap.Requests[k] = v
	}
	for k, v := range m.errorCount {
		snap.Errors[k] = v
	}
	for k, v := range m.reconcileCount {
		snap.Reconcile[k] = v
	}
	if !m.lastSweep.IsZero() {
		at := m.lastSweep
		snap.LastSweep = &at
	}
	return snap
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
