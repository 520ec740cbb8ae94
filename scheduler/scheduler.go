// Package scheduler drives per-record reconciliation: one goroutine per
// managed record, ticking at a configured cadence with jitter, backing off
// after transient failures, and honoring operator-forced checks.
package scheduler

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dyndnsd/dyndnsd/reconciler"
	"github.com/dyndnsd/dyndnsd/tslog"
)

// Ticker is the per-record reconciliation entry point driven by a [Task].
type Ticker interface {
	// Tick runs one reconciliation attempt.
	Tick(ctx context.Context) reconciler.Outcome

	// Attempts returns the consecutive-failure count seeding the backoff.
	Attempts() uint32

	// ClearStanding discards a standing provider error before a forced tick.
	ClearStanding()
}

// Task runs one record's reconciliation loop. Because the loop is a single
// goroutine, at most one tick is in flight per record at any time.
type Task struct {
	name     string
	ticker   Ticker
	interval time.Duration
	backoff  reconciler.Backoff
	grace    time.Duration
	logger   *tslog.Logger

	// OnOutcome, if set, observes every tick's outcome. It runs in the
	// task's goroutine under the run context and must bound its own work,
	// or it delays the record's next tick.
	OnOutcome func(context.Context, reconciler.Outcome)

	force chan struct{} // 1-slot; coalesces force requests
}

// NewTask creates a [*Task] ticking every interval (plus jitter).
// A non-positive interval defaults to 5 minutes.
func NewTask(name string, ticker Ticker, interval time.Duration, backoff reconciler.Backoff, logger *tslog.Logger) *Task {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Task{
		name:     name,
		ticker:   ticker,
		interval: interval,
		backoff:  backoff,
		grace:    10 * time.Second,
		logger:   logger.WithAttrs(slog.String("record", name)),
		force:    make(chan struct{}, 1),
	}
}

// Name returns the task's record name.
func (t *Task) Name() string {
	return t.name
}

// Force requests an immediate reconciliation, bypassing the cadence but not
// the single-flight rule. It never blocks; requests arriving while a tick is
// in flight coalesce into one follow-up tick.
func (t *Task) Force() {
	select {
	case t.force <- struct{}{}:
	default:
	}
}

// Run drives the task until ctx is canceled. The first tick is immediate.
func (t *Task) Run(ctx context.Context) {
	t.logger.Info("Started reconciliation task", slog.Duration("interval", t.interval))
	defer t.logger.Info("Stopped reconciliation task")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-t.force:
			t.ticker.ClearStanding()
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		tickCtx, cancel := t.tickContext(ctx)
		outcome := t.ticker.Tick(tickCtx)
		cancel()
		if t.OnOutcome != nil {
			t.OnOutcome(ctx, outcome)
		}
		if ctx.Err() != nil {
			return
		}
		timer.Reset(t.next(outcome))
	}
}

// next picks the delay before the following tick. Transient failures get the
// exponential backoff seeded by the reconciler's attempt counter; everything
// else returns to the default cadence. A transient outcome with a zero
// counter (a store failure after a confirmed publish) also stays on the
// default cadence.
func (t *Task) next(outcome reconciler.Outcome) time.Duration {
	if outcome == reconciler.OutcomeTransient {
		if n := t.ticker.Attempts(); n > 0 {
			d := reconciler.Jitter(t.backoff.Delay(n))
			t.logger.Debug("Backing off",
				slog.Duration("delay", d),
				tslog.Uint("attempts", n),
			)
			return d
		}
	}
	// Default cadence with up to 10% jitter.
	return t.interval + rand.N(t.interval/10+1)
}

// tickContext derives the context a tick runs under. It is not canceled with
// the parent immediately: an in-flight provider call gets the grace period
// to finish, so shutdown does not leave half-sent updates behind.
func (t *Task) tickContext(ctx context.Context) (context.Context, context.CancelFunc) {
	tickCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, func() {
		timer := time.NewTimer(t.grace)
		defer timer.Stop()
		select {
		case <-timer.C:
			cancel()
		case <-tickCtx.Done():
		}
	})
	return tickCtx, func() {
		stop()
		cancel()
	}
}

// Scheduler fans a set of tasks out onto goroutines and fans force
// requests in.
type Scheduler struct {
	tasks []*Task
}

// NewScheduler creates a [*Scheduler] driving the given tasks.
func NewScheduler(tasks []*Task) *Scheduler {
	return &Scheduler{tasks: tasks}
}

// Run runs all tasks and blocks until ctx is canceled and every task has
// stopped.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(len(s.tasks))
	for _, t := range s.tasks {
		go func() {
			defer wg.Done()
			t.Run(ctx)
		}()
	}
	wg.Wait()
}

// Force requests an immediate check of the named record.
// It reports whether the record exists.
func (s *Scheduler) Force(name string) bool {
	for _, t := range s.tasks {
		if t.name == name {
			t.Force()
			return true
		}
	}
	return false
}

// ForceAll requests an immediate check of every record.
func (s *Scheduler) ForceAll() {
	for _, t := range s.tasks {
		t.Force()
	}
}
