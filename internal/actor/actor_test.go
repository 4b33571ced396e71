package actor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestMailboxProcessesInOrder(t *testing.T) {
	mb := NewMailbox(16, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mb.Run(ctx)

	var got []int
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		mb.Post(func() {
			got = append(got, i)
			if i == 4 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for messages")
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("out of order: %v", got)
		}
	}
}

func TestMailboxRecoversPanics(t *testing.T) {
	mb := NewMailbox(4, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mb.Run(ctx)

	mb.Post(func() { panic("boom") })

	done := make(chan struct{})
	mb.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("mailbox did not survive a panicking message")
	}
}

func TestWorkerPoolRunsSubmittedTasks(t *testing.T) {
	wp := NewWorkerPool(4, 16, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	var count int64
	const n = 50
	for i := 0; i < n; i++ {
		wp.Submit(func() { atomic.AddInt64(&count, 1) })
	}

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt64(&count) < n && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := atomic.LoadInt64(&count); got != n {
		t.Fatalf("expected %d tasks run, got %d", n, got)
	}
}

func TestWorkerPoolDropsWhenFull(t *testing.T) {
	wp := NewWorkerPool(1, 1, zerolog.Nop())
	block := make(chan struct{})
	wp.taskQueue <- func() { <-block }
	for i := 0; i < 10; i++ {
		wp.Submit(func() {})
	}
	close(block)
	if wp.Dropped() == 0 {
		t.Fatal("expected some tasks to be dropped")
	}
}

func TestPacerAllowsWithinBurst(t *testing.T) {
	p := NewPacer(1, 3)
	if !p.Allow() || !p.Allow() || !p.Allow() {
		t.Fatal("expected burst of 3 to be allowed immediately")
	}
}
