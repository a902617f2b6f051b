package authflow

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ParseResetLink extracts the one-time token pair from an inbound reset
// link's query parameters. A link carrying only one of the two tokens yields
// an empty pair, the same as a link carrying neither.
func ParseResetLink(raw string) ResetTokenPair {
	u, err := url.Parse(raw)
	if err != nil {
		return ResetTokenPair{}
	}

	query := u.Query()
	pair := ResetTokenPair{
		AccessToken:  query.Get("access_token"),
		RefreshToken: query.Get("refresh_token"),
	}
	if !pair.Complete() {
		return ResetTokenPair{}
	}
	return pair
}

// Establish consumes the reset token pair and produces the reset session
// precondition for secret replacement. With a complete pair the tokens are
// exchanged; without one, an already established session (a backend that
// redirects differently) is accepted instead. Any other outcome is invalid
// and the replacement form must not be offered.
func (f *Flow) Establish(ctx context.Context, pair ResetTokenPair) error {
	if f == nil || f.identity == nil {
		return ErrFlowNotReady
	}

	if pair.Complete() {
		if f.config.Reset.PreflightExpiryCheck && resetTokenExpired(pair.AccessToken, f.now()) {
			f.metricInc(MetricResetEstablishFailure)
			f.emitAudit(ctx, auditEventResetRejected, false, "", PurposeLogin, ErrResetLinkInvalid, func() map[string]string {
				return map[string]string{
					"reason": "token_already_expired",
				}
			})
			return ErrResetLinkInvalid
		}

		session, err := f.identity.ExchangeResetTokens(ctx, pair.AccessToken, pair.RefreshToken)
		if err != nil {
			f.metricInc(MetricResetEstablishFailure)
			f.emitAudit(ctx, auditEventResetRejected, false, "", PurposeLogin, ErrResetLinkInvalid, func() map[string]string {
				return map[string]string{
					"reason": "exchange_failed",
				}
			})
			return ErrResetLinkInvalid
		}
		f.setResetSession(session)
		f.metricInc(MetricResetEstablishSuccess)
		f.emitAudit(ctx, auditEventResetEstablished, true, session.Identity, PurposeLogin, nil, nil)
		return nil
	}

	session, ok, err := f.identity.CurrentSession(ctx)
	if err != nil || !ok {
		f.metricInc(MetricResetEstablishFailure)
		f.emitAudit(ctx, auditEventResetRejected, false, "", PurposeLogin, ErrResetLinkInvalid, func() map[string]string {
			return map[string]string{
				"reason": "no_session",
			}
		})
		return ErrResetLinkInvalid
	}

	f.setResetSession(session)
	f.metricInc(MetricResetEstablishSuccess)
	f.emitAudit(ctx, auditEventResetEstablished, true, session.Identity, PurposeLogin, nil, nil)
	return nil
}

// SubmitNewSecret replaces the secret under an established reset session.
// Mismatched or too-short secrets fail locally and are never sent to the
// backend. On success the reset session is signed out immediately and the
// returned delay tells the caller how long to show the confirmation before
// redirecting to credential entry.
func (f *Flow) SubmitNewSecret(ctx context.Context, newSecret, confirmSecret string) (time.Duration, error) {
	if f == nil || f.identity == nil {
		return 0, ErrFlowNotReady
	}
	if !f.resetEstablished() {
		return 0, ErrNoResetSession
	}

	if newSecret != confirmSecret {
		f.metricInc(MetricResetConfirmFailure)
		return 0, ErrSecretMismatch
	}
	if len(newSecret) < f.config.Reset.MinSecretLength {
		f.metricInc(MetricResetConfirmFailure)
		return 0, ErrSecretTooShort
	}

	if err := f.identity.UpdateSecret(ctx, newSecret); err != nil {
		f.metricInc(MetricResetConfirmFailure)
		f.emitAudit(ctx, auditEventResetConfirmFailure, false, "", PurposeLogin, ErrSecretUpdateFailed, nil)
		return 0, fmt.Errorf("%w: %v", ErrSecretUpdateFailed, err)
	}

	// The reset session grants nothing beyond the replacement that just
	// happened; it is invalidated before anything is reported.
	f.clearResetSession()
	if err := f.identity.SignOut(ctx); err != nil {
		f.emitAudit(ctx, auditEventResetConfirmFailure, false, "", PurposeLogin, ErrSignOutFailed, nil)
		return 0, errors.Join(ErrSignOutFailed, err)
	}

	f.metricInc(MetricResetConfirmSuccess)
	f.metricInc(MetricSignOut)
	f.emitAudit(ctx, auditEventResetConfirmSuccess, true, "", PurposeLogin, nil, nil)
	f.emitAudit(ctx, auditEventSignOut, true, "", PurposeLogin, nil, nil)

	return f.config.Reset.RedirectDelay, nil
}

func (f *Flow) setResetSession(session Session) {
	session.Kind = SessionReset
	f.mu.Lock()
	f.resetSession = &session
	f.mu.Unlock()
}

func (f *Flow) clearResetSession() {
	f.mu.Lock()
	f.resetSession = nil
	f.mu.Unlock()
}

func (f *Flow) resetEstablished() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resetSession != nil
}

// resetTokenExpired inspects the access token's expiry claim without
// verifying the signature; only the identity service can vouch for the
// token, this just avoids an exchange round trip for links that are already
// dead on arrival. Tokens that do not parse or carry no expiry are left for
// the backend to judge.
func resetTokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}

	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return false
	}
	return expiry.Time.Before(now)
}
