package playback

import (
	"time"

	"github.com/stwalsh4118/montage/internal/scheduler"
)

// guardedScheduler runs every callback under the session lock and drops
// callbacks whose handle was stopped, even if the underlying timer already
// fired. Stop must be called with the session lock held.
type guardedScheduler struct {
	s     *Session
	inner scheduler.Scheduler
}

type guardedHandle struct {
	inner     scheduler.Handle
	cancelled bool
}

// Stop implements scheduler.Handle
func (h *guardedHandle) Stop() bool {
	if h.cancelled {
		return false
	}
	h.cancelled = true
	h.inner.Stop()
	return true
}

func (g *guardedScheduler) wrap(fn func()) (*guardedHandle, func()) {
	h := &guardedHandle{}
	return h, func() {
		g.s.run(func() {
			if h.cancelled {
				return
			}
			fn()
		})
	}
}

func (g *guardedScheduler) NextFrame(fn func()) scheduler.Handle {
	h, run := g.wrap(fn)
	h.inner = g.inner.NextFrame(run)
	return h
}

func (g *guardedScheduler) After(d time.Duration, fn func()) scheduler.Handle {
	h, run := g.wrap(fn)
	h.inner = g.inner.After(d, run)
	return h
}

func (g *guardedScheduler) Every(d time.Duration, fn func()) scheduler.Handle {
	h, run := g.wrap(fn)
	h.inner = g.inner.Every(d, run)
	return h
}

func (g *guardedScheduler) Now() time.Time {
	return g.inner.Now()
}
