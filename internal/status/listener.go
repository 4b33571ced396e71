package status

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"
)

// Listener is a type-erased callback: a closure capturing the status
// payload and fanning out to the user's typed listener method. Mask
// restricts which Kind values this listener is invoked for, per
// spec.md §4.8 ("a listener mask at entity creation limits which
// callbacks fire").
type Listener struct {
	Mask Kind
	Call func(Kind)
}

// Dispatcher runs every entity's fired listener callback on one
// dedicated goroutine per participant (spec.md §4.8: "Listeners are
// dispatched from a dedicated thread, never from within the entity's
// own critical section"), in FIFO arrival order, with panic recovery
// so one misbehaving user callback cannot take down the participant.
//
// Grounded on _examples/adred-codev-ws_poc/ws/worker_pool.go's panic-recovering task loop,
// narrowed from a worker pool to a single dedicated goroutine since
// spec.md requires listener callbacks for one participant to run in
// arrival order on one thread (a pool would reorder or parallelize
// them).
type Dispatcher struct {
	queue  chan func()
	logger zerolog.Logger
	wg     sync.WaitGroup
}

// NewDispatcher builds a Dispatcher with the given backlog capacity.
// Entries submitted beyond capacity block the submitter; spec.md §4.8
// has no provision for dropping listener callbacks (unlike transport
// batching), so Submit applies backpressure instead.
func NewDispatcher(capacity int, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		queue:  make(chan func(), capacity),
		logger: logger,
	}
}

// Run drains the queue until ctx is cancelled. Any callback already
// queued is allowed to finish before Run returns, matching spec.md
// §4.8's shutdown contract ("any still-running listener callback is
// allowed to finish").
func (d *Dispatcher) Run(ctx context.Context) {
	d.wg.Add(1)
	defer d.wg.Done()
	for {
		select {
		case fn := <-d.queue:
			d.invoke(fn)
		case <-ctx.Done():
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case fn := <-d.queue:
			d.invoke(fn)
		default:
			return
		}
	}
}

func (d *Dispatcher) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Interface("panic_value", r).
				Str("stack_trace", string(debug.Stack())).
				Msg("listener callback panicked, dispatcher continues")
		}
	}()
	fn()
}

// Dispatch enqueues l.Call(k) if k is within l's mask. A nil Listener
// (entity created without one) is a silent no-op: the status remains
// pending until read via a getter, per spec.md §4.8 ("an untrapped
// status remains pending until read").
func (d *Dispatcher) Dispatch(l *Listener, k Kind) {
	if l == nil || l.Call == nil || l.Mask&k == 0 {
		return
	}
	d.queue <- func() { l.Call(k) }
}

// Wait blocks until Run has returned, i.e. every queued callback has
// finished executing.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
