package authflow

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// auditDispatcher fans flow events out to the configured sink from a single
// worker goroutine, so no flow operation ever blocks on audit I/O. Drops are
// counted per purpose: a noisy login flow filling the buffer cannot mask
// lost admin events.
type auditDispatcher struct {
	sink       AuditSink
	events     chan AuditEvent
	done       chan struct{}
	wg         sync.WaitGroup
	dropIfFull bool
	dropped    [2]atomic.Uint64
	closed     atomic.Bool
	closeOnce  sync.Once
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		sink:       sink,
		events:     make(chan AuditEvent, buffer),
		done:       make(chan struct{}),
		dropIfFull: cfg.DropIfFull,
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *auditDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.events:
			d.sink.Emit(context.Background(), event)
		case <-d.done:
			// Deliver whatever is still buffered before exiting.
			for {
				select {
				case event := <-d.events:
					d.sink.Emit(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

// Emit queues one event from the purpose's flow. The timestamp and purpose
// name are stamped here so instrumentation points carry neither clock nor
// key-space plumbing. With DropIfFull set, a full buffer discards the event
// and charges the drop to the purpose; otherwise Emit waits for space, ctx
// cancellation, or shutdown.
func (d *auditDispatcher) Emit(ctx context.Context, purpose Purpose, event AuditEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Purpose == "" {
		event.Purpose = purpose.String()
	}

	if d.dropIfFull {
		select {
		case d.events <- event:
		case <-d.done:
		default:
			d.dropped[purposeSlot(purpose)].Add(1)
		}
		return
	}

	select {
	case d.events <- event:
	case <-ctx.Done():
	case <-d.done:
	}
}

func purposeSlot(p Purpose) int {
	if p == PurposeAdmin {
		return 1
	}
	return 0
}

// Close stops the worker after draining the buffer. Safe to call more than
// once.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped returns the total number of events discarded across both flows.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped[0].Load() + d.dropped[1].Load()
}

// DroppedFor returns the number of events discarded from one flow.
func (d *auditDispatcher) DroppedFor(purpose Purpose) uint64 {
	if d == nil {
		return 0
	}
	return d.dropped[purposeSlot(purpose)].Load()
}
