package provider

import (
	"sync"
	"time"
)

// Metrics tracks usage statistics for one provider. Each provider owns its
// metrics exclusively, but the summarization concurrency limit allows several
// in-flight calls to the same provider, so updates are serialized. Counters
// are never reset mid-run.
type Metrics struct {
	mu sync.Mutex

	providerID          string
	totalRequests       int
	successfulRequests  int
	failedRequests      int
	totalInputTokens    int
	totalOutputTokens   int
	totalLatency        time.Duration
	consecutiveFailures int
	lastError           string
}

// NewMetrics creates zeroed metrics for the provider.
func NewMetrics(providerID string) *Metrics {
	return &Metrics{providerID: providerID}
}

// RecordSuccess counts a successful call and resets the failure streak.
func (m *Metrics) RecordSuccess(latency time.Duration, inputTokens, outputTokens int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalRequests++
	m.successfulRequests++
	m.totalInputTokens += inputTokens
	m.totalOutputTokens += outputTokens
	m.totalLatency += latency
	m.consecutiveFailures = 0
}

// RecordFailure counts a failed call and extends the failure streak.
func (m *Metrics) RecordFailure(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalRequests++
	m.failedRequests++
	m.consecutiveFailures++
	m.lastError = message
}

// Snapshot returns a consistent copy for reporting.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MetricsSnapshot{
		ProviderID:          m.providerID,
		TotalRequests:       m.totalRequests,
		SuccessfulRequests:  m.successfulRequests,
		FailedRequests:      m.failedRequests,
		TotalInputTokens:    m.totalInputTokens,
		TotalOutputTokens:   m.totalOutputTokens,
		ConsecutiveFailures: m.consecutiveFailures,
		LastError:           m.lastError,
	}
	if m.totalRequests > 0 {
		snap.SuccessRate = float64(m.successfulRequests) / float64(m.totalRequests)
	}
	if m.successfulRequests > 0 {
		snap.AverageLatency = m.totalLatency / time.Duration(m.successfulRequests)
	}
	return snap
}

// MetricsSnapshot is a point-in-time copy of a provider's counters.
type MetricsSnapshot struct {
	ProviderID          string        `json:"provider_id"`
	TotalRequests       int           `json:"total_requests"`
	SuccessfulRequests  int           `json:"successful_requests"`
	FailedRequests      int           `json:"failed_requests"`
	SuccessRate         float64       `json:"success_rate"`
	TotalInputTokens    int           `json:"total_input_tokens"`
	TotalOutputTokens   int           `json:"total_output_tokens"`
	AverageLatency      time.Duration `json:"average_latency"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastError           string        `json:"last_error,omitempty"`
}
