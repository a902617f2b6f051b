package authflow

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// NavEvent is one history navigation: the path being left and the path being
// entered.
type NavEvent struct {
	From string
	To   string
}

// GuardDecision is the guard's verdict on a navigation. When Allowed is
// false, RedirectTo names the path to push instead.
type GuardDecision struct {
	Allowed    bool
	RedirectTo string
}

// NavigationGuard intercepts history navigations that would re-enter a
// completed challenge step. It is advisory UI policy only: the identity
// service's session validity is the actual authority, and nothing here may be
// relied on as a security control.
//
// The guard is an explicit state machine, independent of any view lifecycle.
// Pages register on mount and deregister on unmount; interception for a
// purpose is active only while at least one registration for it exists, so a
// forgotten page cannot leak interception across unrelated routes.
type NavigationGuard struct {
	cfg     GuardConfig
	metrics *Metrics
	audit   *auditDispatcher

	mu            sync.Mutex
	verified      map[Purpose]bool
	registrations map[string]Purpose
	active        map[Purpose]int
}

func newNavigationGuard(cfg GuardConfig, metrics *Metrics, audit *auditDispatcher) *NavigationGuard {
	return &NavigationGuard{
		cfg:           cfg,
		metrics:       metrics,
		audit:         audit,
		verified:      make(map[Purpose]bool),
		registrations: make(map[string]Purpose),
		active:        make(map[Purpose]int),
	}
}

// Register activates interception for the purpose and returns the handle the
// mounting page must pass to [NavigationGuard.Deregister] on unmount.
func (g *NavigationGuard) Register(purpose Purpose) string {
	if g == nil {
		return ""
	}
	handle := uuid.NewString()

	g.mu.Lock()
	g.registrations[handle] = purpose
	g.active[purpose]++
	g.mu.Unlock()

	return handle
}

// Deregister releases one registration. Unknown or already released handles
// are ignored.
func (g *NavigationGuard) Deregister(handle string) {
	if g == nil || handle == "" {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	purpose, ok := g.registrations[handle]
	if !ok {
		return
	}
	delete(g.registrations, handle)
	if g.active[purpose] > 0 {
		g.active[purpose]--
	}
}

// MarkVerified records that the purpose's challenge step completed. Called by
// the flow on successful code verification.
func (g *NavigationGuard) MarkVerified(purpose Purpose) {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.verified[purpose] = true
	g.mu.Unlock()
}

// Reset forgets the completed-step record for the purpose (sign-out or
// abandonment).
func (g *NavigationGuard) Reset(purpose Purpose) {
	if g == nil {
		return
	}
	g.mu.Lock()
	delete(g.verified, purpose)
	g.mu.Unlock()
}

// Intercept evaluates one history navigation. After a purpose is verified,
// a navigation re-entering its challenge path, or leaving the challenge path
// anywhere other than the authenticated destination, is replaced with a push
// to the authenticated path.
func (g *NavigationGuard) Intercept(ev NavEvent) GuardDecision {
	if g == nil {
		return GuardDecision{Allowed: true}
	}

	g.mu.Lock()
	for _, purpose := range []Purpose{PurposeLogin, PurposeAdmin} {
		if g.active[purpose] == 0 || !g.verified[purpose] {
			continue
		}
		routes := g.cfg.Routes(purpose)

		backIntoChallenge := ev.To == routes.ChallengePath
		awayFromChallenge := ev.From == routes.ChallengePath && ev.To != routes.AuthenticatedPath
		if backIntoChallenge || awayFromChallenge {
			g.mu.Unlock()

			if g.metrics != nil {
				g.metrics.Inc(MetricGuardIntercepted)
			}
			g.audit.Emit(context.Background(), purpose, AuditEvent{
				EventType: auditEventGuardIntercepted,
				Success:   true,
				Metadata: map[string]string{
					"from":     ev.From,
					"to":       ev.To,
					"redirect": routes.AuthenticatedPath,
				},
			})
			return GuardDecision{Allowed: false, RedirectTo: routes.AuthenticatedPath}
		}
	}
	g.mu.Unlock()

	return GuardDecision{Allowed: true}
}
