package whatsapp

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"legal-ease-backend/internal/shared/telemetry"
)

// ErrQueueFull means the dispatcher cannot take more work right now.
var ErrQueueFull = errors.New("whatsapp dispatcher queue full")

// ErrDispatcherStopped means Run has returned and no more work is accepted.
var ErrDispatcherStopped = errors.New("whatsapp dispatcher stopped")

// HandleFunc processes one inbound message.
type HandleFunc func(ctx context.Context, m Message)

// Dispatcher runs inbound messages on a fixed pool of workers fed by a bounded queue.
type Dispatcher struct {
	queue        chan Message
	workers      int
	handle       HandleFunc
	drainTimeout time.Duration

	mu      sync.RWMutex
	stopped bool
}

// NewDispatcher constructs a Dispatcher. Non-positive sizes fall back to 4 workers and a 64-slot queue.
func NewDispatcher(workers, queueSize int, handle HandleFunc) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Dispatcher{
		queue:        make(chan Message, queueSize),
		workers:      workers,
		handle:       handle,
		drainTimeout: 30 * time.Second,
	}
}

// Submit enqueues m without blocking.
func (d *Dispatcher) Submit(m Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrDispatcherStopped
	}
	select {
	case d.queue <- m:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending reports queued messages not yet picked up by a worker.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Run starts the workers and blocks until ctx is cancelled. Messages still
// queued at that point are processed with a bounded drain deadline.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case m := <-d.queue:
					d.process(context.WithoutCancel(gctx), m)
				}
			}
		})
	}
	err := g.Wait()

	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.drainTimeout)
	defer cancel()
	drained := 0
	for {
		select {
		case m := <-d.queue:
			if drainCtx.Err() != nil {
				telemetry.Warn("whatsapp.dispatcher_dropped", map[string]any{"pending": len(d.queue) + 1})
				return err
			}
			d.process(drainCtx, m)
			drained++
		default:
			if drained > 0 {
				telemetry.Info("whatsapp.dispatcher_drained", map[string]any{"count": drained})
			}
			return err
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, m Message) {
	defer func() {
		if rec := recover(); rec != nil {
			telemetry.Error("whatsapp.worker_panic", map[string]any{"error": rec})
		}
	}()
	d.handle(ctx, m)
}
