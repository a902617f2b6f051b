package authflow

import "sync/atomic"

// MetricID defines a public type used by authflow APIs.
//
// MetricID instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricID uint16

const (
	// MetricCredentialSuccess is an exported constant or variable used by the flow engine.
	MetricCredentialSuccess MetricID = iota
	// MetricCredentialFailure is an exported constant or variable used by the flow engine.
	MetricCredentialFailure
	// MetricCooldownShortCircuit is an exported constant or variable used by the flow engine.
	MetricCooldownShortCircuit
	// MetricAdminDenied is an exported constant or variable used by the flow engine.
	MetricAdminDenied
	// MetricOTPIssued is an exported constant or variable used by the flow engine.
	MetricOTPIssued
	// MetricOTPDispatchFailure is an exported constant or variable used by the flow engine.
	MetricOTPDispatchFailure
	// MetricOTPResent is an exported constant or variable used by the flow engine.
	MetricOTPResent
	// MetricOTPResendBlocked is an exported constant or variable used by the flow engine.
	MetricOTPResendBlocked
	// MetricOTPVerifySuccess is an exported constant or variable used by the flow engine.
	MetricOTPVerifySuccess
	// MetricOTPVerifyFailure is an exported constant or variable used by the flow engine.
	MetricOTPVerifyFailure
	// MetricOTPCodeMalformed is an exported constant or variable used by the flow engine.
	MetricOTPCodeMalformed
	// MetricResetEstablishSuccess is an exported constant or variable used by the flow engine.
	MetricResetEstablishSuccess
	// MetricResetEstablishFailure is an exported constant or variable used by the flow engine.
	MetricResetEstablishFailure
	// MetricResetConfirmSuccess is an exported constant or variable used by the flow engine.
	MetricResetConfirmSuccess
	// MetricResetConfirmFailure is an exported constant or variable used by the flow engine.
	MetricResetConfirmFailure
	// MetricGuardIntercepted is an exported constant or variable used by the flow engine.
	MetricGuardIntercepted
	// MetricSignOut is an exported constant or variable used by the flow engine.
	MetricSignOut

	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free in-process counters. All operations are no-ops
// when disabled, so instrumentation points never need nil or enabled checks.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// NewMetrics describes the newmetrics operation and its observable behavior.
//
// NewMetrics may return an error when input validation, dependency calls, or security checks fail.
// NewMetrics does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Enabled describes the enabled operation and its observable behavior.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc describes the inc operation and its observable behavior.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value describes the value operation and its observable behavior.
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

// Snapshot describes the snapshot operation and its observable behavior.
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
