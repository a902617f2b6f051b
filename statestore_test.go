package authflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisStateStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStateStore(client), mr
}

func TestRedisStateStoreRoundTrip(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "af:test:key", "value", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	value, ok, err := store.Get(ctx, "af:test:key")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || value != "value" {
		t.Fatalf("expected stored value, got %q ok=%v", value, ok)
	}

	if err := store.Delete(ctx, "af:test:key"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, err := store.Get(ctx, "af:test:key"); err != nil || ok {
		t.Fatalf("deleted key should be absent: ok=%v err=%v", ok, err)
	}
}

func TestRedisStateStoreMissingKeyIsNotAnError(t *testing.T) {
	store, _ := newTestRedisStore(t)

	value, ok, err := store.Get(context.Background(), "af:never:written")
	if err != nil {
		t.Fatalf("missing key must not error: %v", err)
	}
	if ok || value != "" {
		t.Fatalf("expected absent, got %q ok=%v", value, ok)
	}
}

func TestRedisStateStoreHonorsTTL(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "af:ttl:key", "value", 30*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mr.FastForward(31 * time.Second)

	if _, ok, err := store.Get(ctx, "af:ttl:key"); err != nil || ok {
		t.Fatalf("expired key should be absent: ok=%v err=%v", ok, err)
	}
}

func TestRedisStateStoreWrapsBackendErrors(t *testing.T) {
	store, mr := newTestRedisStore(t)
	mr.Close()

	_, _, err := store.Get(context.Background(), "af:any")
	if !errors.Is(err, ErrStateStoreUnavailable) {
		t.Fatalf("expected ErrStateStoreUnavailable, got %v", err)
	}
	if err := store.Set(context.Background(), "af:any", "v", time.Minute); !errors.Is(err, ErrStateStoreUnavailable) {
		t.Fatalf("expected ErrStateStoreUnavailable, got %v", err)
	}
}

func TestMemoryStateStoreRoundTrip(t *testing.T) {
	store := NewMemoryStateStore()
	ctx := context.Background()

	if err := store.Set(ctx, "key", "value", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value, ok, err := store.Get(ctx, "key")
	if err != nil || !ok || value != "value" {
		t.Fatalf("round trip failed: %q ok=%v err=%v", value, ok, err)
	}

	if err := store.Delete(ctx, "key"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "key"); ok {
		t.Fatal("deleted key should be absent")
	}
}

func TestMemoryStateStoreExpiresRecords(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStateStore()
	store.now = clock.Now
	ctx := context.Background()

	if err := store.Set(ctx, "key", "value", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	clock.Advance(59 * time.Second)
	if _, ok, _ := store.Get(ctx, "key"); !ok {
		t.Fatal("record should still be live")
	}

	clock.Advance(2 * time.Second)
	if _, ok, _ := store.Get(ctx, "key"); ok {
		t.Fatal("record should have expired")
	}
}

func TestMemoryStateStoreZeroTTLNeverExpires(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStateStore()
	store.now = clock.Now
	ctx := context.Background()

	if err := store.Set(ctx, "key", "value", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	clock.Advance(1000 * time.Hour)

	if _, ok, _ := store.Get(ctx, "key"); !ok {
		t.Fatal("zero TTL means no expiry")
	}
}

func TestCooldownSurvivesFlowRestartViaRedis(t *testing.T) {
	store, _ := newTestRedisStore(t)
	clock := newFakeClock()
	cfg := defaultConfig()
	ctx := context.Background()

	first := newCooldownStore(store, cfg.Cooldown, cfg.KeyPrefix, clock.Now)
	if err := first.Start(ctx, PurposeLogin, "alice@example.com", 60*time.Second); err != nil {
		t.Fatalf("Start: %v", err)
	}

	clock.Advance(10 * time.Second)

	// A second store over the same Redis sees the same record: this is the
	// reload-survival behavior the persisted space exists for.
	second := newCooldownStore(store, cfg.Cooldown, cfg.KeyPrefix, clock.Now)
	remaining, err := second.Remaining(ctx, PurposeLogin, "alice@example.com")
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if remaining != 50 {
		t.Fatalf("expected 50s remaining after restart, got %d", remaining)
	}
}
