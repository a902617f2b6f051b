package authflow

import (
	"context"
	"log"
	"sync"
	"time"
)

// Flow defines a public type used by authflow APIs.
//
// Flow instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
// All methods are safe for concurrent use.
type Flow struct {
	config    Config
	identity  IdentityService
	roles     RoleDirectory
	state     StateStore
	cooldowns *cooldownStore
	timer     *CooldownTimer
	guard     *NavigationGuard
	audit     *auditDispatcher
	metrics   *Metrics
	now       func() time.Time

	mu           sync.Mutex
	states       map[Purpose]FlowState
	pending      map[Purpose]string
	inFlight     map[Purpose]bool
	resetSession *Session
}

// Close drains the audit dispatcher and cancels every countdown task.
func (f *Flow) Close() {
	if f == nil {
		return
	}
	if f.timer != nil {
		f.timer.StopAll()
	}
	if f.audit != nil {
		f.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) AuditDropped() uint64 {
	if f == nil || f.audit == nil {
		return 0
	}
	return f.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) MetricsSnapshot() MetricsSnapshot {
	if f == nil || f.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return f.metrics.Snapshot()
}

func (f *Flow) metricInc(id MetricID) {
	if f == nil || f.metrics == nil {
		return
	}
	f.metrics.Inc(id)
}

// Guard returns the navigation guard owned by this flow, or nil when the
// guard is disabled in configuration.
func (f *Flow) Guard() *NavigationGuard {
	if f == nil {
		return nil
	}
	return f.guard
}

// Timer returns the cooldown timer owned by this flow.
func (f *Flow) Timer() *CooldownTimer {
	if f == nil {
		return nil
	}
	return f.timer
}

// CooldownRemaining reports the authoritative remaining wait in whole seconds
// for the purpose+identity pair, reading the persisted store directly.
func (f *Flow) CooldownRemaining(ctx context.Context, purpose Purpose, identity string) (int, error) {
	if f == nil || f.cooldowns == nil {
		return 0, ErrFlowNotReady
	}
	return f.cooldowns.Remaining(ctx, purpose, identity)
}

// State returns the current state of the purpose's verification machine.
func (f *Flow) State(purpose Purpose) FlowState {
	if f == nil {
		return StateCredentialEntry
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[purpose]
}

func (f *Flow) setState(purpose Purpose, state FlowState) {
	f.mu.Lock()
	f.states[purpose] = state
	f.mu.Unlock()
}

func (f *Flow) beginSubmission(purpose Purpose) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inFlight[purpose] {
		return false
	}
	f.inFlight[purpose] = true
	return true
}

func (f *Flow) endSubmission(purpose Purpose) {
	f.mu.Lock()
	f.inFlight[purpose] = false
	f.mu.Unlock()
}

func (f *Flow) pendingKey(purpose Purpose) string {
	return f.config.KeyPrefix + ":pv:" + purpose.String()
}

// storePending records the pending verification in memory and mirrors the
// identity into the persisted store so a reload mid-verification can resume.
// The persisted mirror is best-effort; the in-memory record is authoritative
// for this process.
func (f *Flow) storePending(ctx context.Context, purpose Purpose, identity string) {
	f.mu.Lock()
	f.pending[purpose] = identity
	f.mu.Unlock()

	if err := f.state.Set(ctx, f.pendingKey(purpose), identity, f.config.OTP.PendingTTL); err != nil {
		log.Print("authflow: persisting pending identity failed")
	}
}

// loadPending returns the pending identity for the purpose, falling back to
// the persisted mirror when the in-memory record is gone (process restart).
func (f *Flow) loadPending(ctx context.Context, purpose Purpose) (string, bool) {
	f.mu.Lock()
	identity, ok := f.pending[purpose]
	f.mu.Unlock()
	if ok && identity != "" {
		return identity, true
	}

	identity, found, err := f.state.Get(ctx, f.pendingKey(purpose))
	if err != nil || !found || identity == "" {
		return "", false
	}

	f.mu.Lock()
	f.pending[purpose] = identity
	f.mu.Unlock()
	return identity, true
}

func (f *Flow) clearPending(ctx context.Context, purpose Purpose) {
	f.mu.Lock()
	delete(f.pending, purpose)
	f.mu.Unlock()

	if err := f.state.Delete(ctx, f.pendingKey(purpose)); err != nil {
		log.Print("authflow: clearing pending identity failed")
	}
}

// Pending returns the pending verification for the purpose, when one exists.
func (f *Flow) Pending(ctx context.Context, purpose Purpose) (PendingVerification, bool) {
	if f == nil {
		return PendingVerification{}, false
	}
	identity, ok := f.loadPending(ctx, purpose)
	if !ok {
		return PendingVerification{}, false
	}
	return PendingVerification{Identity: identity, Purpose: purpose}, true
}
