package schedule

import "time"

// ManualTicker is a Ticker driven by explicit Fire calls.
type ManualTicker struct {
	c       chan time.Time
	stopped chan struct{}
}

// NewManualTicker creates a ticker that only ticks when fired.
func NewManualTicker() *ManualTicker {
	return &ManualTicker{
		c:       make(chan time.Time),
		stopped: make(chan struct{}),
	}
}

// Func returns a TickerFunc that always hands out this ticker.
func (m *ManualTicker) Func() TickerFunc {
	return func(time.Duration) Ticker { return m }
}

func (m *ManualTicker) C() <-chan time.Time { return m.c }

func (m *ManualTicker) Stop() {
	select {
	case <-m.stopped:
	default:
		close(m.stopped)
	}
}

// Fire delivers now to the task loop. It blocks until the loop takes the tick
// and reports false if the ticker was stopped first.
func (m *ManualTicker) Fire(now time.Time) bool {
	select {
	case m.c <- now:
		return true
	case <-m.stopped:
		return false
	}
}
