package authflow

import (
	"context"
	"fmt"
)

// EnterChallenge enforces the challenge-step entry precondition: a pending
// verification for the purpose must exist, either in memory or recoverable
// from the persisted last-identity record. It returns the pending identity
// and moves the machine to [StateAwaitingCode]; callers receiving
// [ErrNoPendingVerification] should redirect to credential entry.
func (f *Flow) EnterChallenge(ctx context.Context, purpose Purpose) (string, error) {
	if f == nil || f.cooldowns == nil {
		return "", ErrFlowNotReady
	}

	identity, ok := f.loadPending(ctx, purpose)
	if !ok {
		return "", ErrNoPendingVerification
	}

	f.setState(purpose, StateAwaitingCode)
	f.timer.Start(purpose, identity)
	return identity, nil
}

// VerifyCode validates and verifies a submitted one-time code. Codes that are
// not exactly the configured number of ASCII digits are rejected locally with
// no backend call. A backend rejection keeps the machine in
// [StateAwaitingCode] with the pending identity unchanged.
//
// On success the pending verification is cleared, the returned session is the
// full application session, and the completed step is recorded with the
// navigation guard.
func (f *Flow) VerifyCode(ctx context.Context, purpose Purpose, code string) (Session, error) {
	if f == nil || f.identity == nil {
		return Session{}, ErrFlowNotReady
	}

	identity, ok := f.loadPending(ctx, purpose)
	if !ok {
		return Session{}, ErrNoPendingVerification
	}

	if !isNumericCode(code, f.config.OTP.Digits) {
		f.metricInc(MetricOTPCodeMalformed)
		return Session{}, ErrCodeMalformed
	}

	session, err := f.identity.VerifyOTP(ctx, identity, code)
	if err != nil {
		f.metricInc(MetricOTPVerifyFailure)
		f.emitAudit(ctx, auditEventOTPVerifyFailure, false, identity, purpose, ErrOTPInvalid, nil)
		return Session{}, ErrOTPInvalid
	}

	f.clearPending(ctx, purpose)
	f.timer.Stop(purpose, identity)
	f.setState(purpose, StateVerified)
	if f.guard != nil {
		f.guard.MarkVerified(purpose)
	}

	f.metricInc(MetricOTPVerifySuccess)
	f.emitAudit(ctx, auditEventOTPVerifySuccess, true, identity, purpose, nil, nil)

	return session, nil
}

// ResendCode re-dispatches the one-time code for the pending identity. The
// cooldown is re-read from the persisted store at call time, never from
// whatever countdown a UI happens to display, so a resend racing a just
// expired window cannot double-dispatch. A dispatch failure leaves the old
// cooldown state untouched.
func (f *Flow) ResendCode(ctx context.Context, purpose Purpose) error {
	if f == nil || f.identity == nil || f.cooldowns == nil {
		return ErrFlowNotReady
	}

	identity, ok := f.loadPending(ctx, purpose)
	if !ok {
		return ErrNoPendingVerification
	}

	remaining, err := f.cooldowns.Remaining(ctx, purpose, identity)
	if err != nil {
		return err
	}
	if remaining > 0 {
		f.metricInc(MetricOTPResendBlocked)
		f.emitAudit(ctx, auditEventOTPResendBlocked, false, identity, purpose, ErrCooldownActive, func() map[string]string {
			return map[string]string{
				"remaining_seconds": fmt.Sprintf("%d", remaining),
			}
		})
		return &CooldownError{Seconds: remaining}
	}

	if err := f.identity.IssueOTP(ctx, identity, purpose); err != nil {
		f.metricInc(MetricOTPDispatchFailure)
		f.emitAudit(ctx, auditEventOTPDispatchFailure, false, identity, purpose, ErrOTPDispatchFailed, nil)
		return fmt.Errorf("%w: %v", ErrOTPDispatchFailed, err)
	}

	if err := f.cooldowns.Start(ctx, purpose, identity, f.config.Cooldown.Duration); err != nil {
		return err
	}
	f.timer.Start(purpose, identity)

	f.metricInc(MetricOTPResent)
	f.emitAudit(ctx, auditEventOTPResent, true, identity, purpose, nil, nil)
	return nil
}

// Abandon clears the pending verification for the purpose (the user chose a
// different account), stops its countdown, and returns the machine to
// [StateCredentialEntry]. The cooldown record is left in place: switching
// accounts does not earn a fresh dispatch budget for the old identity.
func (f *Flow) Abandon(ctx context.Context, purpose Purpose) {
	if f == nil {
		return
	}

	identity, ok := f.loadPending(ctx, purpose)
	f.clearPending(ctx, purpose)
	if ok {
		f.timer.Stop(purpose, identity)
	}
	f.setState(purpose, StateCredentialEntry)
	if f.guard != nil {
		f.guard.Reset(purpose)
	}
	f.emitAudit(ctx, auditEventChallengeAbandoned, true, identity, purpose, nil, nil)
}

func isNumericCode(code string, digits int) bool {
	if len(code) != digits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
