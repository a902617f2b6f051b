package authflow

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Builder defines a public type used by authflow APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  *redis.Client
	store  StateStore

	identity IdentityService
	roles    RoleDirectory

	auditSink AuditSink
	onTick    TickHandler

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the Redis client backing the persisted state space.
// Ignored when an explicit [StateStore] is provided through
// [Builder.WithStateStore].
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithStateStore describes the withstatestore operation and its observable behavior.
//
// WithStateStore may return an error when input validation, dependency calls, or security checks fail.
// WithStateStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithStateStore(store StateStore) *Builder {
	b.store = store
	return b
}

// WithIdentityService describes the withidentityservice operation and its observable behavior.
//
// WithIdentityService may return an error when input validation, dependency calls, or security checks fail.
// WithIdentityService does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithIdentityService(service IdentityService) *Builder {
	b.identity = service
	return b
}

// WithRoleDirectory describes the withroledirectory operation and its observable behavior.
//
// WithRoleDirectory may return an error when input validation, dependency calls, or security checks fail.
// WithRoleDirectory does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRoleDirectory(directory RoleDirectory) *Builder {
	b.roles = directory
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithTickHandler installs the callback the cooldown timer drives once per
// second per active countdown.
func (b *Builder) WithTickHandler(handler TickHandler) *Builder {
	b.onTick = handler
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Flow, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.identity == nil {
		return nil, errors.New("identity service required")
	}

	store := b.store
	if store == nil {
		if b.redis == nil {
			return nil, errors.New("state store or redis client required")
		}
		store = NewRedisStateStore(b.redis)
	}

	metrics := NewMetrics(cfg.Metrics)
	cooldowns := newCooldownStore(store, cfg.Cooldown, cfg.KeyPrefix, time.Now)

	flow := &Flow{
		config:    cfg,
		identity:  b.identity,
		roles:     b.roles,
		state:     store,
		cooldowns: cooldowns,
		metrics:   metrics,
		now:       time.Now,
		states:    make(map[Purpose]FlowState),
		pending:   make(map[Purpose]string),
		inFlight:  make(map[Purpose]bool),
	}

	flow.timer = newCooldownTimer(cooldowns, cfg.Cooldown.TickInterval, b.onTick)
	flow.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	if cfg.Guard.Enabled {
		flow.guard = newNavigationGuard(cfg.Guard, metrics, flow.audit)
	}

	b.built = true
	return flow, nil
}
