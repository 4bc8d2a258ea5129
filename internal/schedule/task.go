// Package schedule runs a function on a fixed period with cancellation that
// waits for the in-flight run to finish.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Ticker delivers tick times. *time.Ticker satisfies it through realTicker.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc builds a Ticker for a period.
type TickerFunc func(period time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewRealTicker wraps time.NewTicker.
func NewRealTicker(period time.Duration) Ticker {
	return realTicker{t: time.NewTicker(period)}
}

// TickFunc is called once per tick. Returning false ends the task.
type TickFunc func(now time.Time) bool

// Task is a repeating function call. At most one call is in flight at a time.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Every calls fn every period until fn returns false, ctx is cancelled, or
// Stop is called.
func Every(ctx context.Context, period time.Duration, fn TickFunc) (*Task, error) {
	return EveryWith(ctx, NewRealTicker, period, fn)
}

// EveryWith is Every with a custom ticker source.
func EveryWith(ctx context.Context, newTicker TickerFunc, period time.Duration, fn TickFunc) (*Task, error) {
	if period <= 0 {
		return nil, fmt.Errorf("schedule: period must be positive, got %s", period)
	}
	if fn == nil {
		return nil, fmt.Errorf("schedule: tick func is required")
	}

	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	ticker := newTicker(period)
	go t.loop(ctx, ticker, fn)
	return t, nil
}

func (t *Task) loop(ctx context.Context, ticker Ticker, fn TickFunc) {
	defer close(t.done)
	defer ticker.Stop()
	defer func() {
		if r := recover(); r != nil {
			t.mu.Lock()
			t.err = fmt.Errorf("schedule: tick panic: %v", r)
			t.mu.Unlock()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C():
			// A cancel that raced the tick wins.
			if ctx.Err() != nil {
				return
			}
			if !fn(now) {
				return
			}
		}
	}
}

// Stop cancels the task and blocks until the current tick, if any, returns.
// It is safe to call more than once but must not be called from inside the
// tick func.
func (t *Task) Stop() {
	t.cancel()
	<-t.done
}

// Done is closed once the task has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err reports a panic recovered from the tick func.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}
