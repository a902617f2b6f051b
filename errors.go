package authflow

import (
	"errors"
	"fmt"
)

var (
	// ErrFlowNotReady is an exported constant or variable used by the flow engine.
	ErrFlowNotReady = errors.New("flow not initialized")
	// ErrInvalidCredentials is an exported constant or variable used by the flow engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSubmissionInFlight is an exported constant or variable used by the flow engine.
	ErrSubmissionInFlight = errors.New("submission already in flight")
	// ErrCooldownActive is an exported constant or variable used by the flow engine.
	ErrCooldownActive = errors.New("resend cooldown active")
	// ErrOTPDispatchFailed is an exported constant or variable used by the flow engine.
	ErrOTPDispatchFailed = errors.New("verification code dispatch failed")
	// ErrOTPInvalid is an exported constant or variable used by the flow engine.
	ErrOTPInvalid = errors.New("invalid or expired verification code")
	// ErrCodeMalformed is an exported constant or variable used by the flow engine.
	ErrCodeMalformed = errors.New("verification code malformed")
	// ErrNoPendingVerification is an exported constant or variable used by the flow engine.
	ErrNoPendingVerification = errors.New("no pending verification")
	// ErrAdminAccessDenied is an exported constant or variable used by the flow engine.
	ErrAdminAccessDenied = errors.New("admin access denied")
	// ErrResetLinkInvalid is an exported constant or variable used by the flow engine.
	ErrResetLinkInvalid = errors.New("invalid or expired reset link")
	// ErrNoResetSession is an exported constant or variable used by the flow engine.
	ErrNoResetSession = errors.New("no reset session established")
	// ErrSecretMismatch is an exported constant or variable used by the flow engine.
	ErrSecretMismatch = errors.New("secrets do not match")
	// ErrSecretTooShort is an exported constant or variable used by the flow engine.
	ErrSecretTooShort = errors.New("secret below minimum length")
	// ErrSecretUpdateFailed is an exported constant or variable used by the flow engine.
	ErrSecretUpdateFailed = errors.New("secret update failed")
	// ErrSignOutFailed is an exported constant or variable used by the flow engine.
	ErrSignOutFailed = errors.New("sign-out failed")
	// ErrStateStoreUnavailable is an exported constant or variable used by the flow engine.
	ErrStateStoreUnavailable = errors.New("state store unavailable")
)

// CooldownError reports an active resend cooldown together with the number of
// whole seconds remaining. It unwraps to [ErrCooldownActive] so callers can
// match with errors.Is.
type CooldownError struct {
	Seconds int
}

// Error describes the error operation and its observable behavior.
func (e *CooldownError) Error() string {
	return fmt.Sprintf("resend cooldown active: %ds remaining", e.Seconds)
}

// Unwrap describes the unwrap operation and its observable behavior.
func (e *CooldownError) Unwrap() error {
	return ErrCooldownActive
}

// Message converts a flow error into the user-facing text for it. Generic
// wording is deliberate: authentication failures never distinguish an unknown
// identity from a wrong secret, and code failures never distinguish invalid
// from expired.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var cooldown *CooldownError
	if errors.As(err, &cooldown) {
		return fmt.Sprintf("Please wait %ds before requesting another code.", cooldown.Seconds)
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "Incorrect email or password."
	case errors.Is(err, ErrCooldownActive):
		return "Please wait before requesting another code."
	case errors.Is(err, ErrOTPDispatchFailed):
		return "Failed to send verification code."
	case errors.Is(err, ErrOTPInvalid):
		return "Invalid or expired code."
	case errors.Is(err, ErrCodeMalformed):
		return "Enter the 6-digit code from your email."
	case errors.Is(err, ErrNoPendingVerification):
		return "Start by signing in with your email and password."
	case errors.Is(err, ErrAdminAccessDenied):
		return "This account does not have admin access."
	case errors.Is(err, ErrResetLinkInvalid):
		return "Invalid or expired password reset link."
	case errors.Is(err, ErrSecretMismatch):
		return "Passwords do not match."
	case errors.Is(err, ErrSecretTooShort):
		return "Password must be at least 6 characters."
	case errors.Is(err, ErrSecretUpdateFailed):
		return "Failed to update password."
	case errors.Is(err, ErrSubmissionInFlight):
		return "A request is already in progress."
	default:
		return "Something went wrong. Please try again."
	}
}
