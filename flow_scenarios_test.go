package authflow

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestLoginJourney walks the whole sign-in flow in order: credential submit,
// throttled re-submit, challenge rejection, challenge success, and the guard
// intercepting the back-navigation afterwards.
func TestLoginJourney(t *testing.T) {
	clock := newFakeClock()
	identity := &mockIdentity{verifyOTPErr: errors.New("expired")}
	f := newTestFlow(t, identity, nil, clock)
	ctx := context.Background()

	handle := f.Guard().Register(PurposeLogin)
	defer f.Guard().Deregister(handle)

	// Correct credentials: code dispatched, cooldown recorded, awaiting code.
	if err := f.SubmitCredentials(ctx, PurposeLogin, "alice@example.com", "correct-horse"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := f.State(PurposeLogin); got != StateAwaitingCode {
		t.Fatalf("expected StateAwaitingCode, got %v", got)
	}
	if remaining, _ := f.CooldownRemaining(ctx, PurposeLogin, "alice@example.com"); remaining != 60 {
		t.Fatalf("expected a 60s window, got %d", remaining)
	}

	// Re-submitting 10 seconds later is throttled locally with the elapsed
	// time accounted for, and no backend traffic.
	clock.Advance(10 * time.Second)
	err := f.SubmitCredentials(ctx, PurposeLogin, "alice@example.com", "correct-horse")
	var cooldown *CooldownError
	if !errors.As(err, &cooldown) || cooldown.Seconds != 50 {
		t.Fatalf("expected a 50s cooldown error, got %v", err)
	}
	if Message(err) != "Please wait 50s before requesting another code." {
		t.Fatalf("unexpected message: %q", Message(err))
	}
	if verified, issued, _, _, _, _ := identity.counts(); verified != 1 || issued != 1 {
		t.Fatalf("throttled submit must not reach the backend: verify=%d issue=%d", verified, issued)
	}

	// A well-formed code the backend rejects leaves the challenge intact.
	if _, err := f.VerifyCode(ctx, PurposeLogin, "123456"); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("expected ErrOTPInvalid, got %v", err)
	}
	if Message(ErrOTPInvalid) != "Invalid or expired code." {
		t.Fatalf("unexpected message: %q", Message(ErrOTPInvalid))
	}
	if got := f.State(PurposeLogin); got != StateAwaitingCode {
		t.Fatalf("rejection must keep StateAwaitingCode, got %v", got)
	}
	if pending, ok := f.Pending(ctx, PurposeLogin); !ok || pending.Identity != "alice@example.com" {
		t.Fatalf("pending identity must be unchanged: %+v ok=%v", pending, ok)
	}

	// The same code accepted: session issued, pending cleared, and the guard
	// now bounces back-navigation into the challenge step.
	identity.mu.Lock()
	identity.verifyOTPErr = nil
	identity.mu.Unlock()

	session, err := f.VerifyCode(ctx, PurposeLogin, "123456")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if session.Kind != SessionFull {
		t.Fatalf("expected a full session, got %+v", session)
	}
	if _, ok := f.Pending(ctx, PurposeLogin); ok {
		t.Fatal("pending verification should be cleared")
	}

	decision := f.Guard().Intercept(NavEvent{From: "/", To: "/signin/verify"})
	if decision.Allowed || decision.RedirectTo != "/" {
		t.Fatalf("back-navigation into the challenge should redirect home, got %+v", decision)
	}
}

// TestResetLinkWithoutTokensOrSession is the dead-link arrival: nothing to
// exchange and nothing established, so the replacement form must not be
// offered.
func TestResetLinkWithoutTokensOrSession(t *testing.T) {
	clock := newFakeClock()
	f := newTestFlow(t, &mockIdentity{}, nil, clock)

	pair := ParseResetLink("https://venue.example.com/reset")
	err := f.Establish(context.Background(), pair)
	if !errors.Is(err, ErrResetLinkInvalid) {
		t.Fatalf("expected ErrResetLinkInvalid, got %v", err)
	}
	if Message(err) != "Invalid or expired password reset link." {
		t.Fatalf("unexpected message: %q", Message(err))
	}
	if f.resetEstablished() {
		t.Fatal("no reset session may exist")
	}
}
