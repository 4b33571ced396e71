package status

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestTrackerRaisesAndClearsOnGetter(t *testing.T) {
	tr := NewTracker(nil)
	tr.NotifySampleLost()

	if tr.ActiveStatuses()&SampleLost == 0 {
		t.Fatal("expected SampleLost active after notify")
	}
	s := tr.SampleLostStatus()
	if s.TotalCount != 1 || s.TotalCountChange != 1 {
		t.Fatalf("unexpected status: %+v", s)
	}
	if tr.ActiveStatuses()&SampleLost != 0 {
		t.Fatal("expected SampleLost cleared after getter call")
	}

	s2 := tr.SampleLostStatus()
	if s2.TotalCount != 1 || s2.TotalCountChange != 0 {
		t.Fatalf("expected change to reset to 0 on second read, got %+v", s2)
	}
}

func TestStatusConditionTriggersOnEnabledMaskOnly(t *testing.T) {
	tr := NewTracker(nil)
	cond := NewStatusCondition(tr)
	cond.SetEnabledStatuses(SubscriptionMatched)

	tr.NotifySampleLost()
	if cond.IsTriggered() {
		t.Fatal("expected condition not triggered for a status outside its mask")
	}

	tr.NotifySubscriptionMatched(1)
	if !cond.IsTriggered() {
		t.Fatal("expected condition triggered for SubscriptionMatched")
	}
}

func TestWaitSetWakesOnTrigger(t *testing.T) {
	tr := NewTracker(nil)
	cond := NewStatusCondition(tr)
	ws := NewWaitSet()
	ws.Attach(cond)

	go func() {
		time.Sleep(10 * time.Millisecond)
		tr.NotifyDataAvailable()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	triggered, err := ws.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if len(triggered) != 1 || triggered[0] != Condition(cond) {
		t.Fatalf("expected cond triggered, got %v", triggered)
	}
}

func TestWaitSetTimesOut(t *testing.T) {
	tr := NewTracker(nil)
	cond := NewStatusCondition(tr)
	ws := NewWaitSet()
	ws.Attach(cond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := ws.Wait(ctx)
	if err != ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestWaitSetReturnsImmediatelyIfAlreadyTriggered(t *testing.T) {
	tr := NewTracker(nil)
	cond := NewStatusCondition(tr)
	tr.NotifyDataAvailable()

	ws := NewWaitSet()
	ws.Attach(cond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	triggered, err := ws.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if len(triggered) != 1 {
		t.Fatalf("expected one triggered condition, got %d", len(triggered))
	}
	if time.Since(start) > 30*time.Millisecond {
		t.Fatal("expected immediate return for already-triggered condition")
	}
}

func TestGuardConditionManualTrigger(t *testing.T) {
	g := NewGuardCondition()
	ws := NewWaitSet()
	ws.Attach(g)

	go func() {
		time.Sleep(10 * time.Millisecond)
		g.SetTriggerValue(true)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	triggered, err := ws.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if len(triggered) != 1 || triggered[0] != Condition(g) {
		t.Fatalf("expected guard condition triggered, got %v", triggered)
	}
}

func TestDispatcherRespectsListenerMask(t *testing.T) {
	d := NewDispatcher(4, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	defer func() {
		cancel()
		d.Wait()
	}()

	fired := make(chan Kind, 1)
	l := &Listener{Mask: SubscriptionMatched, Call: func(k Kind) { fired <- k }}

	d.Dispatch(l, SampleLost)
	select {
	case <-fired:
		t.Fatal("expected SampleLost not to fire for a listener masked to SubscriptionMatched")
	case <-time.After(20 * time.Millisecond):
	}

	d.Dispatch(l, SubscriptionMatched)
	select {
	case k := <-fired:
		if k != SubscriptionMatched {
			t.Fatalf("expected SubscriptionMatched, got %v", k)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for dispatched callback")
	}
}

func TestDispatcherRecoversPanics(t *testing.T) {
	d := NewDispatcher(4, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)

	done := make(chan struct{})
	l := &Listener{Mask: All, Call: func(k Kind) { panic("boom") }}
	d.Dispatch(l, DataAvailable)

	l2 := &Listener{Mask: All, Call: func(k Kind) { close(done) }}
	d.Dispatch(l2, DataAvailable)

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("dispatcher did not continue after a panicking callback")
	}
	cancel()
	d.Wait()
}
