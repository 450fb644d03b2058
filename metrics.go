package authvault

import "sync/atomic"

// MetricID identifies one counter in the in-process metrics system.
type MetricID uint16

const (
	// MetricIngestSuccess counts messages materialized into new notifications.
	MetricIngestSuccess MetricID = iota
	// MetricIngestDuplicate counts redelivered message IDs short-circuited by dedup.
	MetricIngestDuplicate
	// MetricIngestInvalid counts payloads rejected as invalid notifications.
	MetricIngestInvalid
	// MetricDecisionApproved counts approvals accepted by the verifier.
	MetricDecisionApproved
	// MetricDecisionDenied counts submitted denials.
	MetricDecisionDenied
	// MetricDecisionFailed counts decisions that failed at the verifier and stayed pending.
	MetricDecisionFailed
	// MetricDecisionReplayed counts decisions short-circuited by a terminal state.
	MetricDecisionReplayed
	// MetricEnrollSuccess counts successful mechanism enrollments.
	MetricEnrollSuccess
	// MetricEnrollDuplicate counts enrollments rejected for a conflicting mechanism.
	MetricEnrollDuplicate
	// MetricEnrollPolicyRejected counts enrollments rejected by policy.
	MetricEnrollPolicyRejected
	// MetricTokenRegistered counts successful device token registrations.
	MetricTokenRegistered
	// MetricTokenRegistrationFailed counts failed device token registrations.
	MetricTokenRegistrationFailed
	// MetricStorageFailure counts key-value store operations that failed.
	MetricStorageFailure
	// MetricRecordCorrupt counts stored records skipped as undeserializable.
	MetricRecordCorrupt
	// MetricNotificationEvicted counts notifications evicted by the history cap.
	MetricNotificationEvicted

	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds atomic counters. When disabled, all operations are no-ops.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// NewMetrics creates a [Metrics] instance configured by the given
// [MetricsConfig].
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
	}
}

// Enabled reports whether counters are being recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc increments a counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value returns the current value of a counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot returns a point-in-time copy of all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}

	s := MetricsSnapshot{Counters: make(map[MetricID]uint64, int(metricIDCount))}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
