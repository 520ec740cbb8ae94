package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dyndnsd/dyndnsd/reconciler"
	"github.com/dyndnsd/dyndnsd/tslog"
)

// fakeTicker counts ticks and returns a fixed outcome.
type fakeTicker struct {
	ticks    atomic.Uint32
	cleared  atomic.Uint32
	outcome  reconciler.Outcome
	attempts uint32
}

func (f *fakeTicker) Tick(context.Context) reconciler.Outcome {
	f.ticks.Add(1)
	return f.outcome
}

func (f *fakeTicker) Attempts() uint32 { return f.attempts }
func (f *fakeTicker) ClearStanding()   { f.cleared.Add(1) }

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestTaskFirstTickImmediate(t *testing.T) {
	ticker := &fakeTicker{outcome: reconciler.OutcomeUnchanged}
	task := NewTask("home.example.com/A", ticker, time.Hour, reconciler.NewBackoff(0, 0), tslog.Noop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		task.Run(ctx)
	}()

	waitFor(t, time.Second, func() bool { return ticker.ticks.Load() == 1 })
	cancel()
	<-done
}

func TestTaskForceTriggersTick(t *testing.T) {
	ticker := &fakeTicker{outcome: reconciler.OutcomeUnchanged}
	task := NewTask("home.example.com/A", ticker, time.Hour, reconciler.NewBackoff(0, 0), tslog.Noop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		task.Run(ctx)
	}()

	// Wait out the immediate first tick, then force.
	waitFor(t, time.Second, func() bool { return ticker.ticks.Load() == 1 })
	task.Force()
	waitFor(t, time.Second, func() bool { return ticker.ticks.Load() == 2 })
	if ticker.cleared.Load() == 0 {
		t.Error("forced tick did not clear standing errors")
	}
	cancel()
	<-done
}

func TestTaskForceCoalesces(t *testing.T) {
	task := NewTask("home.example.com/A", &fakeTicker{}, time.Hour, reconciler.NewBackoff(0, 0), tslog.Noop())

	// Without a running loop, repeated forces collapse into one pending
	// request and never block.
	for range 10 {
		task.Force()
	}
	if got := len(task.force); got != 1 {
		t.Errorf("pending force requests = %d, want 1", got)
	}
}

func TestTaskOnOutcome(t *testing.T) {
	ticker := &fakeTicker{outcome: reconciler.OutcomeUpdated}
	task := NewTask("home.example.com/A", ticker, time.Hour, reconciler.NewBackoff(0, 0), tslog.Noop())

	var seen atomic.Uint32
	task.OnOutcome = func(ctx context.Context, o reconciler.Outcome) {
		if ctx.Err() == nil && o == reconciler.OutcomeUpdated {
			seen.Add(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		task.Run(ctx)
	}()

	waitFor(t, time.Second, func() bool { return seen.Load() == 1 })
	cancel()
	<-done
}

func TestNextBacksOffOnTransient(t *testing.T) {
	ticker := &fakeTicker{outcome: reconciler.OutcomeTransient, attempts: 3}
	task := NewTask("home.example.com/A", ticker, time.Hour, reconciler.NewBackoff(30*time.Second, 30*time.Minute), tslog.Noop())

	// Delay(3) = 2m; jitter keeps it within [1m, 3m).
	d := task.next(reconciler.OutcomeTransient)
	if d < time.Minute || d >= 3*time.Minute {
		t.Errorf("backoff delay = %s, want within [1m, 3m)", d)
	}
}

func TestNextNormalCadence(t *testing.T) {
	ticker := &fakeTicker{attempts: 0}
	task := NewTask("home.example.com/A", ticker, 10*time.Minute, reconciler.NewBackoff(0, 0), tslog.Noop())

	for _, outcome := range []reconciler.Outcome{
		reconciler.OutcomeUnchanged,
		reconciler.OutcomeUpdated,
		reconciler.OutcomeStanding,
		reconciler.OutcomeTransient, // zero attempts: store failure, no backoff
	} {
		d := task.next(outcome)
		if d < 10*time.Minute || d > 11*time.Minute {
			t.Errorf("next(%s) = %s, want within [10m, 11m]", outcome, d)
		}
	}
}

func TestSchedulerForce(t *testing.T) {
	a := NewTask("a.example.com/A", &fakeTicker{}, time.Hour, reconciler.NewBackoff(0, 0), tslog.Noop())
	b := NewTask("b.example.com/A", &fakeTicker{}, time.Hour, reconciler.NewBackoff(0, 0), tslog.Noop())
	s := NewScheduler([]*Task{a, b})

	if !s.Force("a.example.com/A") {
		t.Error("Force returned false for a known record")
	}
	if s.Force("nope") {
		t.Error("Force returned true for an unknown record")
	}
	if len(a.force) != 1 || len(b.force) != 0 {
		t.Errorf("pending forces = (%d, %d), want (1, 0)", len(a.force), len(b.force))
	}

	s.ForceAll()
	if len(a.force) != 1 || len(b.force) != 1 {
		t.Errorf("pending forces after ForceAll = (%d, %d), want (1, 1)", len(a.force), len(b.force))
	}
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	tasks := []*Task{
		NewTask("a.example.com/A", &fakeTicker{}, time.Hour, reconciler.NewBackoff(0, 0), tslog.Noop()),
		NewTask("b.example.com/A", &fakeTicker{}, time.Hour, reconciler.NewBackoff(0, 0), tslog.Noop()),
	}
	s := NewScheduler(tasks)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
