package authflow

import (
	"context"
	"time"
)

// Purpose identifies which of the two parallel verification flows a record
// belongs to. The two purposes never share cooldown or pending-verification
// keys in the persisted state space.
type Purpose uint8

const (
	// PurposeLogin is the standard sign-in flow.
	PurposeLogin Purpose = iota
	// PurposeAdmin is the administrative sign-in flow. It adds a role check
	// between credential verification and code dispatch.
	PurposeAdmin
)

// String returns the stable key-space name for the purpose. These values are
// part of the persisted key layout and must not change between releases.
func (p Purpose) String() string {
	switch p {
	case PurposeAdmin:
		return "admin-otp"
	default:
		return "login-otp"
	}
}

// SessionKind distinguishes full application sessions from reset-scoped
// sessions. A reset session grants only secret replacement and must never be
// treated as a full session by any consumer.
type SessionKind uint8

const (
	// SessionFull is an exported constant or variable used by the flow engine.
	SessionFull SessionKind = iota
	// SessionReset is an exported constant or variable used by the flow engine.
	SessionReset
)

// Session is an opaque token issued by the identity service. The flow never
// inspects Token beyond carrying it; Kind determines what the session grants.
type Session struct {
	Token    string
	Kind     SessionKind
	Identity string
}

// ResetTokenPair holds the one-time token pair extracted from an inbound
// password-reset link. Once exchanged for a reset session the pair carries no
// further meaning.
type ResetTokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Complete reports whether both tokens are present. A pair with exactly one
// token present is treated the same as an absent pair.
func (p ResetTokenPair) Complete() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// RoleRecord is returned by [RoleDirectory.RoleOf].
type RoleRecord struct {
	Identity string
	Role     string
}

// FlowState names the explicit states of the verification state machine.
// Transitions are driven by [Flow] operations, never by UI lifecycle.
type FlowState uint8

const (
	// StateCredentialEntry is an exported constant or variable used by the flow engine.
	StateCredentialEntry FlowState = iota
	// StateRoleCheck is an exported constant or variable used by the flow engine.
	StateRoleCheck
	// StateAwaitingCode is an exported constant or variable used by the flow engine.
	StateAwaitingCode
	// StateVerified is an exported constant or variable used by the flow engine.
	StateVerified
)

// String describes the string operation and its observable behavior.
func (s FlowState) String() string {
	switch s {
	case StateRoleCheck:
		return "role_check"
	case StateAwaitingCode:
		return "awaiting_code"
	case StateVerified:
		return "verified"
	default:
		return "credential_entry"
	}
}

// PendingVerification is the transient record of "credentials accepted, code
// not yet verified". Its existence is necessary (not sufficient) for entering
// the challenge step.
type PendingVerification struct {
	Identity string
	Purpose  Purpose
}

// IdentityService is the abstract identity backend the flow drives. All
// operations are request/response with explicit error returns; expected
// failures (wrong password, bad code) are errors, never panics.
//
// VerifyPassword must not reveal whether the identity or the secret was
// wrong. IssueOTP must not create a new identity record as a side effect.
type IdentityService interface {
	VerifyPassword(ctx context.Context, identity, secret string) error
	IssueOTP(ctx context.Context, identity string, purpose Purpose) error
	VerifyOTP(ctx context.Context, identity, code string) (Session, error)
	ExchangeResetTokens(ctx context.Context, accessToken, refreshToken string) (Session, error)
	CurrentSession(ctx context.Context) (Session, bool, error)
	UpdateSecret(ctx context.Context, newSecret string) error
	SignOut(ctx context.Context) error
}

// RoleDirectory is the abstract role-lookup store consulted by the admin
// flow. The second return value reports whether a record exists.
type RoleDirectory interface {
	RoleOf(ctx context.Context, identity string) (RoleRecord, bool, error)
}

// StateStore is the persisted, string-keyed state space shared across
// process restarts. It is the only authoritative source for cooldown expiry;
// in-memory countdowns are advisory state derived from it.
//
// Keys are namespaced per purpose by the flow; implementations only need
// plain get/set/delete with TTL semantics.
type StateStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
