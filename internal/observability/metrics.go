package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for queue operations, HTTP
// traffic, and event publish failures.
type Metrics struct {
	mu              sync.Mutex
	requestCount    map[string]int64
	errorCount      map[string]int64
	operationCount  map[string]int64
	publishFailures map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:    make(map[string]int64),
		errorCount:      make(map[string]int64),
		operationCount:  make(map[string]int64),
		publishFailures: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
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

// RecordOperation counts queue operations by outcome.
func (m *Metrics) RecordOperation(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operationCount[op+"|"+outcome]++
}

// RecordPublishFailure counts dropped event publications. Publish failures
// never fail the operation, so this counter is the only trace they leave.
func (m *Metrics) RecordPublishFailure(eventType string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishFailures[eventType]++
}

// PublishFailures returns a copy of the publish-failure counters.
func (m *Metrics) PublishFailures() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.publishFailures))
	for k, v := range m.publishFailures {
		out[k] = v
	}
	return out
}
