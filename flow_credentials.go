package authflow

import (
	"context"
	"fmt"
	"log"
)

// SubmitCredentials runs the credential gate for the purpose: cooldown
// short-circuit, password verification, the role check on the admin path,
// then code dispatch. On success the machine transitions to
// [StateAwaitingCode] with a pending verification recorded and the cooldown
// window started.
//
// The cooldown short-circuit is local: when the persisted record still has
// time remaining, no identity-service call is made and the returned
// [CooldownError] carries the remaining seconds.
//
// Only one submission may be in flight per purpose; a concurrent call fails
// with [ErrSubmissionInFlight] so two code dispatches can never race.
func (f *Flow) SubmitCredentials(ctx context.Context, purpose Purpose, identity, secret string) error {
	if f == nil || f.identity == nil || f.cooldowns == nil {
		return ErrFlowNotReady
	}
	if identity == "" || secret == "" {
		f.metricInc(MetricCredentialFailure)
		f.emitAudit(ctx, auditEventCredentialFailure, false, identity, purpose, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "empty_input",
			}
		})
		return ErrInvalidCredentials
	}

	if !f.beginSubmission(purpose) {
		return ErrSubmissionInFlight
	}
	defer f.endSubmission(purpose)

	remaining, err := f.cooldowns.Remaining(ctx, purpose, identity)
	if err != nil {
		f.emitAudit(ctx, auditEventCredentialFailure, false, identity, purpose, err, func() map[string]string {
			return map[string]string{
				"reason": "cooldown_lookup_failed",
			}
		})
		return err
	}
	if remaining > 0 {
		// Local short-circuit: restart the advisory countdown, touch no
		// backend.
		f.timer.Start(purpose, identity)
		f.metricInc(MetricCooldownShortCircuit)
		f.emitAudit(ctx, auditEventCooldownShortCircuit, false, identity, purpose, ErrCooldownActive, func() map[string]string {
			return map[string]string{
				"remaining_seconds": fmt.Sprintf("%d", remaining),
			}
		})
		return &CooldownError{Seconds: remaining}
	}

	if err := f.identity.VerifyPassword(ctx, identity, secret); err != nil {
		f.metricInc(MetricCredentialFailure)
		f.emitAudit(ctx, auditEventCredentialFailure, false, identity, purpose, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "password_verification",
			}
		})
		return ErrInvalidCredentials
	}

	if purpose == PurposeAdmin {
		f.setState(purpose, StateRoleCheck)
		if err := f.authorizeAdmin(ctx, identity); err != nil {
			f.setState(purpose, StateCredentialEntry)
			return err
		}
	}

	if err := f.identity.IssueOTP(ctx, identity, purpose); err != nil {
		// No code was issued, so no cooldown starts and the user may retry
		// immediately.
		f.metricInc(MetricOTPDispatchFailure)
		f.emitAudit(ctx, auditEventOTPDispatchFailure, false, identity, purpose, ErrOTPDispatchFailed, nil)
		f.setState(purpose, StateCredentialEntry)
		return fmt.Errorf("%w: %v", ErrOTPDispatchFailed, err)
	}

	f.storePending(ctx, purpose, identity)
	if err := f.cooldowns.Start(ctx, purpose, identity, f.config.Cooldown.Duration); err != nil {
		// The code already went out; a missing cooldown record only weakens
		// resend throttling, so this must not fail the submission.
		log.Print("authflow: starting cooldown record failed")
	}
	f.timer.Start(purpose, identity)
	f.setState(purpose, StateAwaitingCode)

	f.metricInc(MetricCredentialSuccess)
	f.metricInc(MetricOTPIssued)
	f.emitAudit(ctx, auditEventOTPIssued, true, identity, purpose, nil, nil)
	f.emitAudit(ctx, auditEventCredentialSuccess, true, identity, purpose, nil, nil)

	return nil
}

// authorizeAdmin consults the role directory. Exactly one outcome allows the
// flow to continue: a record whose role equals the configured admin role.
// Every other outcome is a denial, and the partially established backend
// session is revoked before the denial is reported so no authenticated state
// survives it, even transiently.
func (f *Flow) authorizeAdmin(ctx context.Context, identity string) error {
	allowed := false
	if f.roles != nil {
		record, ok, err := f.roles.RoleOf(ctx, identity)
		allowed = err == nil && ok && record.Role == f.config.AdminRole
	}
	if allowed {
		return nil
	}

	// Sign out first, report second. The order is load-bearing.
	if err := f.identity.SignOut(ctx); err != nil {
		log.Print("authflow: sign-out after admin denial failed")
	}
	f.metricInc(MetricAdminDenied)
	f.metricInc(MetricSignOut)
	f.emitAudit(ctx, auditEventAdminDenied, false, identity, PurposeAdmin, ErrAdminAccessDenied, nil)
	return ErrAdminAccessDenied
}
