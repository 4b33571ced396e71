// Package actor provides the concurrency fabric every RTPS entity runs on:
// one mailbox goroutine per entity (participant, writer, reader), a shared
// worker pool for fire-and-forget background work, and a token-bucket
// pacer for outbound traffic.
//
// Grounded on the teacher's pkg/websocket.Hub (single goroutine draining
// register/unregister/broadcast channels, select-on-ctx.Done shutdown) and
// its worker_pool.go (fixed worker pool, panic recovery, drop-on-full
// backpressure).
package actor

import (
	"context"
	"runtime/debug"

	"github.com/rs/zerolog"
)

// Message is a unit of work a Mailbox processes one at a time, in order.
// Entities define closures that close over their own state.
type Message func()

// Mailbox serializes access to an entity's state by running every Message
// sent to it on a single goroutine, the way Hub.Run drains its channels.
type Mailbox struct {
	inbox  chan Message
	logger zerolog.Logger
	done   chan struct{}
}

// NewMailbox creates a mailbox with the given buffered capacity. With a
// capacity of 0 there is no queue: Post succeeds only if Run is waiting to
// receive at that moment, and drops the message otherwise.
func NewMailbox(capacity int, logger zerolog.Logger) *Mailbox {
	return &Mailbox{
		inbox:  make(chan Message, capacity),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Post enqueues msg for processing. If the mailbox is full, Post drops the
// message and returns false rather than blocking the caller indefinitely —
// an unbounded block here is how one slow entity wedges its whole
// participant.
func (m *Mailbox) Post(msg Message) bool {
	select {
	case m.inbox <- msg:
		return true
	default:
		return false
	}
}

// Run drains the mailbox until ctx is cancelled, recovering panics out of
// individual messages so one bad message never kills the entity.
func (m *Mailbox) Run(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-m.inbox:
			m.dispatch(msg)
		}
	}
}

func (m *Mailbox) dispatch(msg Message) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().
				Interface("panic_value", r).
				Str("stack_trace", string(debug.Stack())).
				Msg("mailbox message panicked, entity continues")
		}
	}()
	msg()
}

// Done returns a channel closed once Run has exited.
func (m *Mailbox) Done() <-chan struct{} {
	return m.done
}
