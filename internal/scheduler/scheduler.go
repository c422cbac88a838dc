// Package scheduler abstracts the host's frame and timer primitives so the
// synchronization engine can be driven by wall-clock timers in production and
// by virtual time in tests.
package scheduler

import (
	"sync"
	"time"
)

// DefaultFrameInterval approximates one display refresh at 60 Hz
const DefaultFrameInterval = 16 * time.Millisecond

// Handle cancels a scheduled callback. Stop reports whether the call stopped
// the callback before it ran; stopping a periodic handle prevents every
// future firing.
type Handle interface {
	Stop() bool
}

// Scheduler schedules callbacks. Callbacks must not block.
type Scheduler interface {
	// NextFrame runs fn once at the next frame boundary.
	NextFrame(fn func()) Handle
	// After runs fn once after d.
	After(d time.Duration, fn func()) Handle
	// Every runs fn every d until the handle is stopped.
	Every(d time.Duration, fn func()) Handle
	// Now returns the scheduler's notion of the current time.
	Now() time.Time
}

// Realtime schedules callbacks on Go timers. Callbacks run on timer
// goroutines, so callers serialize them themselves.
type Realtime struct {
	frameInterval time.Duration
}

// NewRealtime creates a wall-clock scheduler with the given frame interval
func NewRealtime(frameInterval time.Duration) *Realtime {
	if frameInterval <= 0 {
		frameInterval = DefaultFrameInterval
	}
	return &Realtime{frameInterval: frameInterval}
}

// NextFrame implements Scheduler
func (r *Realtime) NextFrame(fn func()) Handle {
	return time.AfterFunc(r.frameInterval, fn)
}

// After implements Scheduler
func (r *Realtime) After(d time.Duration, fn func()) Handle {
	return time.AfterFunc(d, fn)
}

// Every implements Scheduler
func (r *Realtime) Every(d time.Duration, fn func()) Handle {
	t := &ticker{
		ticker: time.NewTicker(d),
		done:   make(chan struct{}),
	}
	go t.run(fn)
	return t
}

// Now implements Scheduler
func (r *Realtime) Now() time.Time {
	return time.Now()
}

// ticker adapts time.Ticker to Handle and owns the goroutine draining it
type ticker struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func (t *ticker) run(fn func()) {
	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.C:
			fn()
		}
	}
}

func (t *ticker) Stop() bool {
	stopped := false
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.done)
		stopped = true
	})
	return stopped
}
