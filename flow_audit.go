package authflow

import (
	"context"
	"errors"
)

const (
	auditEventCredentialSuccess    = "credential_success"
	auditEventCredentialFailure    = "credential_failure"
	auditEventCooldownShortCircuit = "cooldown_short_circuit"
	auditEventAdminDenied          = "admin_access_denied"
	auditEventOTPIssued            = "otp_issued"
	auditEventOTPDispatchFailure   = "otp_dispatch_failure"
	auditEventOTPResent            = "otp_resent"
	auditEventOTPResendBlocked     = "otp_resend_blocked"
	auditEventOTPVerifySuccess     = "otp_verify_success"
	auditEventOTPVerifyFailure     = "otp_verify_failure"
	auditEventChallengeAbandoned   = "challenge_abandoned"
	auditEventResetEstablished     = "reset_established"
	auditEventResetRejected        = "reset_rejected"
	auditEventResetConfirmSuccess  = "reset_confirm_success"
	auditEventResetConfirmFailure  = "reset_confirm_failure"
	auditEventGuardIntercepted     = "guard_intercepted"
	auditEventSignOut              = "sign_out"
)

// AuditErrorCode defines a public type used by authflow APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrCooldownActive     AuditErrorCode = "cooldown_active"
	auditErrDispatchFailed     AuditErrorCode = "dispatch_failed"
	auditErrCodeInvalid        AuditErrorCode = "code_invalid"
	auditErrCodeMalformed      AuditErrorCode = "code_malformed"
	auditErrNoPending          AuditErrorCode = "no_pending_verification"
	auditErrAdminDenied        AuditErrorCode = "admin_denied"
	auditErrResetLinkInvalid   AuditErrorCode = "reset_link_invalid"
	auditErrSecretPolicy       AuditErrorCode = "secret_policy"
	auditErrSecretUpdate       AuditErrorCode = "secret_update_failed"
	auditErrSignOutFailed      AuditErrorCode = "sign_out_failed"
	auditErrStoreUnavailable   AuditErrorCode = "state_store_unavailable"
	auditErrInFlight           AuditErrorCode = "submission_in_flight"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (f *Flow) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	identity string,
	purpose Purpose,
	err error,
	metadataBuilder func() map[string]string,
) {
	if f == nil || f.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		EventType: eventType,
		Identity:  identity,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	f.audit.Emit(ctx, purpose, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrCooldownActive):
		return auditErrCooldownActive
	case errors.Is(err, ErrOTPDispatchFailed):
		return auditErrDispatchFailed
	case errors.Is(err, ErrOTPInvalid):
		return auditErrCodeInvalid
	case errors.Is(err, ErrCodeMalformed):
		return auditErrCodeMalformed
	case errors.Is(err, ErrNoPendingVerification):
		return auditErrNoPending
	case errors.Is(err, ErrAdminAccessDenied):
		return auditErrAdminDenied
	case errors.Is(err, ErrResetLinkInvalid), errors.Is(err, ErrNoResetSession):
		return auditErrResetLinkInvalid
	case errors.Is(err, ErrSecretMismatch), errors.Is(err, ErrSecretTooShort):
		return auditErrSecretPolicy
	case errors.Is(err, ErrSecretUpdateFailed):
		return auditErrSecretUpdate
	case errors.Is(err, ErrSignOutFailed):
		return auditErrSignOutFailed
	case errors.Is(err, ErrStateStoreUnavailable):
		return auditErrStoreUnavailable
	case errors.Is(err, ErrSubmissionInFlight):
		return auditErrInFlight
	default:
		return auditErrInternal
	}
}
