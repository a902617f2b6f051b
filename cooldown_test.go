package authflow

import (
	"context"
	"sync"
	"testing"
	"time"
)

func newTestCooldownStore(clock *fakeClock) (*cooldownStore, *MemoryStateStore) {
	cfg := defaultConfig()
	store := NewMemoryStateStore()
	store.now = clock.Now
	return newCooldownStore(store, cfg.Cooldown, cfg.KeyPrefix, clock.Now), store
}

func TestCooldownRemainingCountsDownMonotonically(t *testing.T) {
	clock := newFakeClock()
	cooldowns, _ := newTestCooldownStore(clock)
	ctx := context.Background()

	if err := cooldowns.Start(ctx, PurposeLogin, "alice@example.com", 60*time.Second); err != nil {
		t.Fatalf("Start: %v", err)
	}

	previous := 61
	for i := 0; i < 65; i++ {
		remaining, err := cooldowns.Remaining(ctx, PurposeLogin, "alice@example.com")
		if err != nil {
			t.Fatalf("Remaining: %v", err)
		}
		if remaining > previous {
			t.Fatalf("remaining increased from %d to %d", previous, remaining)
		}
		if remaining < 0 {
			t.Fatalf("remaining went negative: %d", remaining)
		}
		previous = remaining
		clock.Advance(time.Second)
	}

	if previous != 0 {
		t.Fatalf("expected countdown to reach 0, ended at %d", previous)
	}
}

func TestCooldownRemainingFloorsSubSecond(t *testing.T) {
	clock := newFakeClock()
	cooldowns, _ := newTestCooldownStore(clock)
	ctx := context.Background()

	if err := cooldowns.Start(ctx, PurposeLogin, "alice@example.com", 60*time.Second); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clock.Advance(500 * time.Millisecond)

	remaining, err := cooldowns.Remaining(ctx, PurposeLogin, "alice@example.com")
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if remaining != 59 {
		t.Fatalf("expected floor to 59, got %d", remaining)
	}
}

func TestCooldownRestartResetsFullWindow(t *testing.T) {
	clock := newFakeClock()
	cooldowns, _ := newTestCooldownStore(clock)
	ctx := context.Background()

	if err := cooldowns.Start(ctx, PurposeLogin, "alice@example.com", 60*time.Second); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clock.Advance(45 * time.Second)

	if err := cooldowns.Start(ctx, PurposeLogin, "alice@example.com", 60*time.Second); err != nil {
		t.Fatalf("restart: %v", err)
	}
	remaining, err := cooldowns.Remaining(ctx, PurposeLogin, "alice@example.com")
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if remaining != 60 {
		t.Fatalf("restart should reset to the full window, got %d", remaining)
	}
}

func TestCooldownPurposesNeverShareKeys(t *testing.T) {
	clock := newFakeClock()
	cooldowns, _ := newTestCooldownStore(clock)
	ctx := context.Background()

	if err := cooldowns.Start(ctx, PurposeLogin, "alice@example.com", 60*time.Second); err != nil {
		t.Fatalf("Start: %v", err)
	}

	remaining, err := cooldowns.Remaining(ctx, PurposeAdmin, "alice@example.com")
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("admin purpose should not see the login cooldown, got %d", remaining)
	}
}

func TestCooldownUnparseableRecordTreatedAsAbsent(t *testing.T) {
	clock := newFakeClock()
	cooldowns, store := newTestCooldownStore(clock)
	ctx := context.Background()

	key := cooldowns.key(PurposeLogin, "alice@example.com")
	if err := store.Set(ctx, key, "not-a-timestamp", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	remaining, err := cooldowns.Remaining(ctx, PurposeLogin, "alice@example.com")
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("garbage record must not block the flow, got %d", remaining)
	}
}

func TestCooldownClearRemovesRecord(t *testing.T) {
	clock := newFakeClock()
	cooldowns, _ := newTestCooldownStore(clock)
	ctx := context.Background()

	if err := cooldowns.Start(ctx, PurposeLogin, "alice@example.com", 60*time.Second); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := cooldowns.Clear(ctx, PurposeLogin, "alice@example.com"); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	remaining, err := cooldowns.Remaining(ctx, PurposeLogin, "alice@example.com")
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("cleared record should report 0, got %d", remaining)
	}
}

func TestCooldownTimerTicksDownToZeroAndStops(t *testing.T) {
	cfg := defaultConfig()
	store := NewMemoryStateStore()
	cooldowns := newCooldownStore(store, cfg.Cooldown, cfg.KeyPrefix, time.Now)

	var mu sync.Mutex
	var ticks []int
	done := make(chan struct{})
	var once sync.Once

	timer := newCooldownTimer(cooldowns, 5*time.Millisecond, func(_ Purpose, _ string, remaining int) {
		mu.Lock()
		ticks = append(ticks, remaining)
		mu.Unlock()
		if remaining == 0 {
			once.Do(func() { close(done) })
		}
	})
	defer timer.StopAll()

	ctx := context.Background()
	if err := cooldowns.Start(ctx, PurposeLogin, "alice@example.com", 30*time.Millisecond); err != nil {
		t.Fatalf("Start: %v", err)
	}
	timer.Start(PurposeLogin, "alice@example.com")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never delivered a zero tick")
	}
	timer.StopAll()

	if timer.Active(PurposeLogin, "alice@example.com") {
		t.Fatal("task should be gone after the zero tick")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(ticks) == 0 {
		t.Fatal("expected at least one tick")
	}
	for i := 1; i < len(ticks); i++ {
		if ticks[i] > ticks[i-1] {
			t.Fatalf("ticks increased: %v", ticks)
		}
	}
	if ticks[len(ticks)-1] != 0 {
		t.Fatalf("final tick should be 0, got %d", ticks[len(ticks)-1])
	}
}

func TestCooldownTimerStartIsIdempotentPerKey(t *testing.T) {
	clock := newFakeClock()
	cooldowns, _ := newTestCooldownStore(clock)
	ctx := context.Background()

	if err := cooldowns.Start(ctx, PurposeLogin, "alice@example.com", time.Hour); err != nil {
		t.Fatalf("Start: %v", err)
	}

	timer := newCooldownTimer(cooldowns, time.Hour, nil)
	defer timer.StopAll()

	timer.Start(PurposeLogin, "alice@example.com")
	timer.Start(PurposeLogin, "alice@example.com")

	if !timer.Active(PurposeLogin, "alice@example.com") {
		t.Fatal("task should be active")
	}

	timer.Stop(PurposeLogin, "alice@example.com")
	if timer.Active(PurposeLogin, "alice@example.com") {
		t.Fatal("task should be gone after one Stop")
	}
}

func TestCooldownTimerStartDuringRetirementTakesAnotherLap(t *testing.T) {
	clock := newFakeClock()
	cooldowns, _ := newTestCooldownStore(clock)
	timer := newCooldownTimer(cooldowns, time.Hour, nil)
	defer timer.StopAll()

	// Stand in for a running task that has just observed a zero but not yet
	// retired.
	_, cancel := context.WithCancel(context.Background())
	task := &timerTask{cancel: cancel}
	key := timerKey(PurposeLogin, "alice@example.com")
	timer.mu.Lock()
	timer.tasks[key] = task
	timer.mu.Unlock()

	// A resend restarting the cooldown calls Start in exactly that window.
	timer.Start(PurposeLogin, "alice@example.com")

	if timer.retire(key, task) {
		t.Fatal("retirement after a racing Start must be refused")
	}
	if !timer.Active(PurposeLogin, "alice@example.com") {
		t.Fatal("the countdown task must stay registered")
	}

	// With no further Start, the next zero observation retires normally.
	if !timer.retire(key, task) {
		t.Fatal("second retirement should proceed")
	}
	if timer.Active(PurposeLogin, "alice@example.com") {
		t.Fatal("task should be gone after retirement")
	}
}

func TestCooldownTimerRetireIgnoresReplacedTask(t *testing.T) {
	clock := newFakeClock()
	cooldowns, _ := newTestCooldownStore(clock)
	timer := newCooldownTimer(cooldowns, time.Hour, nil)
	defer timer.StopAll()

	key := timerKey(PurposeLogin, "alice@example.com")
	_, cancelOld := context.WithCancel(context.Background())
	old := &timerTask{cancel: cancelOld}

	// The key now belongs to a newer task; the old task retiring must not
	// evict it.
	_, cancelNew := context.WithCancel(context.Background())
	timer.mu.Lock()
	timer.tasks[key] = &timerTask{cancel: cancelNew}
	timer.mu.Unlock()

	if !timer.retire(key, old) {
		t.Fatal("a replaced task should still exit")
	}
	if !timer.Active(PurposeLogin, "alice@example.com") {
		t.Fatal("the newer task must survive the old task's retirement")
	}
}

func TestCooldownTimerStopAbsentTaskIsNoOp(t *testing.T) {
	clock := newFakeClock()
	cooldowns, _ := newTestCooldownStore(clock)

	timer := newCooldownTimer(cooldowns, time.Hour, nil)
	timer.Stop(PurposeLogin, "nobody@example.com")
	timer.StopAll()
}
