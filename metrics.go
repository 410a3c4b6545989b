package dynproxy

import (
	"sort"
	"sync"
	"time"
)

// MetricsSnapshot represents a point-in-time snapshot of call metrics
type MetricsSnapshot struct {
	// Counters
	CallsTotal   int `json:"calls_total"`
	CallsSuccess int `json:"calls_success"`
	CallsFailed  int `json:"calls_failed"`

	// Failures by error kind
	FailuresByKind map[Kind]int `json:"failures_by_kind"`

	// Concurrency
	InFlight    int `json:"in_flight"`
	MaxInFlight int `json:"max_in_flight"`

	// Latency (milliseconds)
	LatencyAvgMs float64 `json:"latency_avg_ms"`
	LatencyP50Ms float64 `json:"latency_p50_ms"`
	LatencyP95Ms float64 `json:"latency_p95_ms"`
	LatencyP99Ms float64 `json:"latency_p99_ms"`
	LatencyMinMs float64 `json:"latency_min_ms"`
	LatencyMaxMs float64 `json:"latency_max_ms"`

	Timestamp time.Time `json:"timestamp"`
}

// Metrics is a thread-safe call metrics collector. One instance may be
// shared by several wrappers.
type Metrics struct {
	mu sync.RWMutex

	maxLatencySamples int

	callsTotal     int
	callsSuccess   int
	callsFailed    int
	failuresByKind map[Kind]int

	inFlight    int
	maxInFlight int

	// Latency samples (circular buffer via slice)
	latencies []float64
}

// NewMetrics creates a new Metrics instance
func NewMetrics(maxLatencySamples int) *Metrics {
	if maxLatencySamples <= 0 {
		maxLatencySamples = 1000
	}

	return &Metrics{
		maxLatencySamples: maxLatencySamples,
		failuresByKind:    make(map[Kind]int),
		latencies:         make([]float64, 0, maxLatencySamples),
	}
}

// StartCall starts tracking a call
// Returns start timestamp for the matching EndCall
func (m *Metrics) StartCall() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callsTotal++
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}

	return time.Now()
}

// EndCall ends tracking a call started at startTime
// Returns latency in milliseconds
func (m *Metrics) EndCall(startTime time.Time, err error) float64 {
	latencyMs := float64(time.Since(startTime)) / float64(time.Millisecond)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.inFlight--

	if err == nil {
		m.callsSuccess++
	} else {
		m.callsFailed++
		kind := KindOf(err)
		if kind == "" {
			kind = KindInvocation
		}
		m.failuresByKind[kind]++
	}

	if len(m.latencies) >= m.maxLatencySamples {
		m.latencies = m.latencies[1:]
	}
	m.latencies = append(m.latencies, latencyMs)

	return latencyMs
}

// Snapshot returns a point-in-time snapshot of all metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := MetricsSnapshot{
		CallsTotal:     m.callsTotal,
		CallsSuccess:   m.callsSuccess,
		CallsFailed:    m.callsFailed,
		FailuresByKind: make(map[Kind]int, len(m.failuresByKind)),
		InFlight:       m.inFlight,
		MaxInFlight:    m.maxInFlight,
		Timestamp:      time.Now(),
	}
	for k, v := range m.failuresByKind {
		snapshot.FailuresByKind[k] = v
	}

	if len(m.latencies) > 0 {
		latencies := make([]float64, len(m.latencies))
		copy(latencies, m.latencies)
		sort.Float64s(latencies)

		n := len(latencies)
		snapshot.LatencyMinMs = latencies[0]
		snapshot.LatencyMaxMs = latencies[n-1]

		sum := 0.0
		for _, v := range latencies {
			sum += v
		}
		snapshot.LatencyAvgMs = sum / float64(n)

		snapshot.LatencyP50Ms = latencies[n*50/100]
		snapshot.LatencyP95Ms = latencies[n*95/100]
		snapshot.LatencyP99Ms = latencies[n*99/100]
	}

	return snapshot
}

// Reset resets all metrics
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callsTotal = 0
	m.callsSuccess = 0
	m.callsFailed = 0
	m.failuresByKind = make(map[Kind]int)
	m.inFlight = 0
	m.maxInFlight = 0
	m.latencies = make([]float64, 0, m.maxLatencySamples)
}
