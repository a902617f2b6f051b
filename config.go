package authflow

import (
	"errors"
	"time"
)

// Config defines a public type used by authflow APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Cooldown CooldownConfig
	OTP      OTPConfig
	Reset    ResetConfig
	Guard    GuardConfig
	Audit    AuditConfig
	Metrics  MetricsConfig

	// AdminRole is the exact role a directory record must carry for the
	// admin flow to proceed past the role check.
	AdminRole string

	// KeyPrefix namespaces every key the flow writes to the state store.
	KeyPrefix string
}

/*
====================================
COOLDOWN CONFIG
====================================
*/

// CooldownConfig defines a public type used by authflow APIs.
//
// CooldownConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CooldownConfig struct {
	// Duration is the minimum wait between successive code dispatches for
	// the same purpose+identity pair. Every successful dispatch resets the
	// window to the full duration.
	Duration time.Duration

	// TickInterval drives the advisory countdown derived from the store.
	TickInterval time.Duration

	// RecordTTL bounds how long an expired cooldown record lingers in the
	// state store before the backend garbage-collects it. Zero means twice
	// the cooldown duration.
	RecordTTL time.Duration
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig defines a public type used by authflow APIs.
//
// OTPConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OTPConfig struct {
	// Digits is the exact code length accepted before any backend call.
	Digits int

	// PendingTTL bounds how long the persisted last-identity record for a
	// purpose survives, so a verification can be resumed after a reload.
	PendingTTL time.Duration
}

/*
====================================
RESET CONFIG
====================================
*/

// ResetConfig defines a public type used by authflow APIs.
//
// ResetConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ResetConfig struct {
	// MinSecretLength is enforced locally before any backend call.
	MinSecretLength int

	// RedirectDelay is how long the confirmation message stays visible
	// before the caller should navigate back to credential entry. Display
	// pacing only, not a protocol requirement.
	RedirectDelay time.Duration

	// PreflightExpiryCheck rejects reset links whose access token already
	// carries a past expiry claim, without spending the exchange round
	// trip. Signature verification stays with the identity service.
	PreflightExpiryCheck bool
}

/*
====================================
GUARD CONFIG
====================================
*/

// GuardRoutes names the three paths of one flow for the navigation guard.
type GuardRoutes struct {
	CredentialPath    string
	ChallengePath     string
	AuthenticatedPath string
}

// GuardConfig defines a public type used by authflow APIs.
//
// GuardConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type GuardConfig struct {
	Enabled bool
	Login   GuardRoutes
	Admin   GuardRoutes
}

// Routes returns the configured routes for the purpose.
func (g GuardConfig) Routes(purpose Purpose) GuardRoutes {
	if purpose == PurposeAdmin {
		return g.Admin
	}
	return g.Login
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig defines a public type used by authflow APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by authflow APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Cooldown: CooldownConfig{
			Duration:     60 * time.Second,
			TickInterval: time.Second,
		},
		OTP: OTPConfig{
			Digits:     6,
			PendingTTL: 10 * time.Minute,
		},
		Reset: ResetConfig{
			MinSecretLength:      6,
			RedirectDelay:        3 * time.Second,
			PreflightExpiryCheck: true,
		},
		Guard: GuardConfig{
			Enabled: true,
			Login: GuardRoutes{
				CredentialPath:    "/signin",
				ChallengePath:     "/signin/verify",
				AuthenticatedPath: "/",
			},
			Admin: GuardRoutes{
				CredentialPath:    "/admin/signin",
				ChallengePath:     "/admin/signin/verify",
				AuthenticatedPath: "/admin",
			},
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics:   MetricsConfig{Enabled: true},
		AdminRole: "admin",
		KeyPrefix: "af",
	}
}

// RecommendedConfig returns the default configuration with audit dispatching
// enabled. Callers still need to attach a sink through the builder.
func RecommendedConfig() Config {
	cfg := defaultConfig()
	cfg.Audit.Enabled = true
	return cfg
}

func cloneConfig(cfg Config) Config {
	// All fields are value types today; the explicit clone point is kept so
	// reference-typed additions cannot silently alias builder state.
	return cfg
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c Config) Validate() error {
	if c.Cooldown.Duration <= 0 {
		return errors.New("Cooldown.Duration must be positive")
	}
	if c.Cooldown.TickInterval <= 0 {
		return errors.New("Cooldown.TickInterval must be positive")
	}
	if c.Cooldown.RecordTTL < 0 {
		return errors.New("Cooldown.RecordTTL must not be negative")
	}
	if c.OTP.Digits <= 0 {
		return errors.New("OTP.Digits must be positive")
	}
	if c.OTP.PendingTTL <= 0 {
		return errors.New("OTP.PendingTTL must be positive")
	}
	if c.Reset.MinSecretLength <= 0 {
		return errors.New("Reset.MinSecretLength must be positive")
	}
	if c.Reset.RedirectDelay < 0 {
		return errors.New("Reset.RedirectDelay must not be negative")
	}
	if c.AdminRole == "" {
		return errors.New("AdminRole must be set")
	}
	if c.KeyPrefix == "" {
		return errors.New("KeyPrefix must be set")
	}
	if c.Guard.Enabled {
		for _, routes := range []GuardRoutes{c.Guard.Login, c.Guard.Admin} {
			if routes.CredentialPath == "" || routes.ChallengePath == "" || routes.AuthenticatedPath == "" {
				return errors.New("Guard routes must name all three paths when the guard is enabled")
			}
		}
		if c.Guard.Login.ChallengePath == c.Guard.Admin.ChallengePath {
			return errors.New("Guard login and admin challenge paths must differ")
		}
	}
	return nil
}
