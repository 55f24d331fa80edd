// Package schedule provides a cancellable, single-owner scheduled task.
//
// A Task runs its function on its own goroutine. Stop cancels the task and waits for an
// in-flight run to return, so once Stop returns the function is never invoked again.
package schedule

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrAlreadyStarted = errors.New("schedule: task already started")
	ErrInvalidPeriod  = errors.New("schedule: period must be positive")
)

// Func is invoked on every tick. Returning false ends the task.
type Func func(ctx context.Context) bool

type Task struct {
	period    time.Duration
	repeat    bool
	immediate bool
	fn        Func

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Every runs fn each interval until fn returns false or the task is stopped.
func Every(interval time.Duration, fn Func) *Task {
	return &Task{period: interval, repeat: true, fn: fn, done: make(chan struct{})}
}

// Immediately is like Every but also runs fn once as soon as the task starts.
func Immediately(interval time.Duration, fn Func) *Task {
	t := Every(interval, fn)
	t.immediate = true
	return t
}

// After runs fn once after delay unless the task is stopped first.
func After(delay time.Duration, fn func(ctx context.Context)) *Task {
	return &Task{
		period: delay,
		fn: func(ctx context.Context) bool {
			fn(ctx)
			return false
		},
		done: make(chan struct{}),
	}
}

// Start launches the task. The task also ends when ctx is cancelled.
func (t *Task) Start(ctx context.Context) error {
	if t.period <= 0 {
		return ErrInvalidPeriod
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return ErrAlreadyStarted
	}
	t.started = true

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	go t.loop(runCtx)
	return nil
}

// Stop cancels the task and blocks until its goroutine has exited. Safe to call more
// than once and before Start. Must not be called from inside the task function.
func (t *Task) Stop() {
	t.mu.Lock()
	started := t.started
	cancel := t.cancel
	t.started = true
	t.mu.Unlock()

	if !started {
		close(t.done)
		return
	}
	if cancel != nil {
		cancel()
	}
	<-t.done
}

// Done is closed once the task will never run again.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

func (t *Task) loop(ctx context.Context) {
	defer close(t.done)
	defer t.cancel()

	if t.immediate && !t.run(ctx) {
		return
	}

	if !t.repeat {
		timer := time.NewTimer(t.period)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			t.run(ctx)
		}
		return
	}

	ticker := time.NewTicker(t.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !t.run(ctx) {
				return
			}
		}
	}
}

func (t *Task) run(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	return t.fn(ctx)
}
