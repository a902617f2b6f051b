package authflow

import (
	"context"
	"strconv"
	"time"
)

// cooldownStore persists one rate-limit expiry per (purpose, identity) pair.
// The persisted record is the single source of truth for whether a resend is
// permitted; everything the timer shows is derived from it.
type cooldownStore struct {
	store  StateStore
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

func newCooldownStore(store StateStore, cfg CooldownConfig, prefix string, now func() time.Time) *cooldownStore {
	ttl := cfg.RecordTTL
	if ttl <= 0 {
		ttl = 2 * cfg.Duration
	}
	if now == nil {
		now = time.Now
	}
	return &cooldownStore{
		store:  store,
		prefix: prefix,
		ttl:    ttl,
		now:    now,
	}
}

func (s *cooldownStore) key(purpose Purpose, identity string) string {
	return s.prefix + ":cd:" + purpose.String() + ":" + identity
}

// Start writes expiresAt = now + duration, unconditionally overwriting any
// prior record for the key. A fresh dispatch always resets the window to the
// full duration.
func (s *cooldownStore) Start(ctx context.Context, purpose Purpose, identity string, duration time.Duration) error {
	expiresAt := s.now().Add(duration).UnixMilli()
	return s.store.Set(ctx, s.key(purpose, identity), strconv.FormatInt(expiresAt, 10), s.ttl)
}

// Remaining returns max(0, floor((expiresAt-now)/1s)) in whole seconds, or 0
// when no record exists. A record that fails to parse is treated as absent
// rather than blocking the flow.
func (s *cooldownStore) Remaining(ctx context.Context, purpose Purpose, identity string) (int, error) {
	value, ok, err := s.store.Get(ctx, s.key(purpose, identity))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}

	expiresAt, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, nil
	}

	ms := expiresAt - s.now().UnixMilli()
	if ms <= 0 {
		return 0, nil
	}
	return int(ms / 1000), nil
}

// Clear removes the record. Expired records are logically dead without it;
// this exists for explicit teardown in tests and abandonment paths.
func (s *cooldownStore) Clear(ctx context.Context, purpose Purpose, identity string) error {
	return s.store.Delete(ctx, s.key(purpose, identity))
}
