package authflow

import (
	"context"
	"sync"
	"time"
)

// TickHandler receives the advisory countdown once per tick. remaining is in
// whole seconds; the final call for a window delivers 0.
type TickHandler func(purpose Purpose, identity string, remaining int)

type timerTask struct {
	cancel context.CancelFunc

	// restart is set under the timer mutex when Start finds this task
	// already registered. A task that observes a remaining of 0 consumes the
	// flag and takes another lap instead of retiring, so a Start racing the
	// retirement can never leave a fresh cooldown without a countdown.
	restart bool
}

// CooldownTimer derives a live decrementing count from the cooldown store.
// It never owns the truth about the cooldown: every tick re-reads the store,
// so the display stays correct across suspensions and clock jumps.
//
// At most one ticking task runs per (purpose, identity) key. Start while a
// task is active reuses the existing ticker. A tick that observes a
// remaining of 0 retires its own task.
type CooldownTimer struct {
	store    *cooldownStore
	interval time.Duration
	onTick   TickHandler

	mu    sync.Mutex
	tasks map[string]*timerTask
	wg    sync.WaitGroup
}

func newCooldownTimer(store *cooldownStore, interval time.Duration, onTick TickHandler) *CooldownTimer {
	return &CooldownTimer{
		store:    store,
		interval: interval,
		onTick:   onTick,
		tasks:    make(map[string]*timerTask),
	}
}

func timerKey(purpose Purpose, identity string) string {
	return purpose.String() + ":" + identity
}

// Start begins (or reuses) the ticking task for the key. The task delivers
// one tick immediately so the UI shows the remaining wait without a one-tick
// delay, then once per interval until the store reports 0.
func (t *CooldownTimer) Start(purpose Purpose, identity string) {
	if t == nil {
		return
	}

	t.mu.Lock()
	key := timerKey(purpose, identity)
	if task, active := t.tasks[key]; active {
		// The task may be one stale zero-read from retiring; the flag makes
		// it re-read the store once more before it may exit.
		task.restart = true
		t.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	task := &timerTask{cancel: cancel}
	t.tasks[key] = task
	t.wg.Add(1)
	t.mu.Unlock()

	go t.run(ctx, purpose, identity, key, task)
}

func (t *CooldownTimer) run(ctx context.Context, purpose Purpose, identity, key string, task *timerTask) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		remaining, err := t.store.Remaining(ctx, purpose, identity)
		if err == nil {
			if t.onTick != nil {
				t.onTick(purpose, identity, remaining)
			}
			if remaining == 0 && t.retire(key, task) {
				return
			}
		}
		// Store errors skip the tick; the next interval retries.

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// retire removes the task from the table unless a restart was requested
// since its last store read. It reports whether the task should exit. The
// check and the removal share one critical section with Start, which closes
// the window between observing a zero and leaving the table.
func (t *CooldownTimer) retire(key string, task *timerTask) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if task.restart {
		task.restart = false
		return false
	}
	if current, ok := t.tasks[key]; ok && current == task {
		delete(t.tasks, key)
	}
	task.cancel()
	return true
}

// Active reports whether a ticking task currently exists for the key.
func (t *CooldownTimer) Active(purpose Purpose, identity string) bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.tasks[timerKey(purpose, identity)]
	return ok
}

// Stop cancels the ticking task for the key. This is the single cancellation
// point for a view tearing down; stopping an absent task is a no-op.
func (t *CooldownTimer) Stop(purpose Purpose, identity string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	key := timerKey(purpose, identity)
	if task, ok := t.tasks[key]; ok {
		task.cancel()
		delete(t.tasks, key)
	}
}

// StopAll cancels every ticking task and waits for the goroutines to exit.
func (t *CooldownTimer) StopAll() {
	if t == nil {
		return
	}
	t.mu.Lock()
	for key, task := range t.tasks {
		task.cancel()
		delete(t.tasks, key)
	}
	t.mu.Unlock()
	t.wg.Wait()
}
