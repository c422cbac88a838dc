package scheduler

import (
	"sync"
	"time"
)

// Manual is a Scheduler driven by virtual time. Nothing runs until Advance is
// called; callbacks then run synchronously on the caller's goroutine in due
// order, ties broken by scheduling order.
type Manual struct {
	mu            sync.Mutex
	now           time.Time
	frameInterval time.Duration
	seq           uint64
	entries       []*manualEntry
}

type manualEntry struct {
	m      *Manual
	seq    uint64
	at     time.Time
	period time.Duration
	fn     func()
}

// manualEpoch is the virtual time every Manual scheduler starts at
var manualEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// NewManual creates a virtual-time scheduler starting at a fixed epoch
func NewManual(frameInterval time.Duration) *Manual {
	if frameInterval <= 0 {
		frameInterval = DefaultFrameInterval
	}
	return &Manual{
		now:           manualEpoch,
		frameInterval: frameInterval,
	}
}

// FrameInterval returns the virtual frame interval
func (m *Manual) FrameInterval() time.Duration {
	return m.frameInterval
}

// NextFrame implements Scheduler
func (m *Manual) NextFrame(fn func()) Handle {
	return m.schedule(m.frameInterval, 0, fn)
}

// After implements Scheduler
func (m *Manual) After(d time.Duration, fn func()) Handle {
	return m.schedule(d, 0, fn)
}

// Every implements Scheduler
func (m *Manual) Every(d time.Duration, fn func()) Handle {
	return m.schedule(d, d, fn)
}

// Now implements Scheduler
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Elapsed returns the virtual time passed since the epoch
func (m *Manual) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now.Sub(manualEpoch)
}

// Pending returns the number of callbacks waiting to run
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Advance moves virtual time forward by d, running every callback that falls
// due. Callbacks scheduled while advancing run too if they fall within d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		entry := m.popDue(target)
		if entry == nil {
			break
		}
		entry.fn()
	}

	m.mu.Lock()
	m.now = target
	m.mu.Unlock()
}

// Frame advances by exactly one frame interval
func (m *Manual) Frame() {
	m.Advance(m.frameInterval)
}

// RunPending runs callbacks already due at the current virtual time
func (m *Manual) RunPending() {
	m.Advance(0)
}

func (m *Manual) schedule(d, period time.Duration, fn func()) *manualEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d < 0 {
		d = 0
	}
	m.seq++
	entry := &manualEntry{m: m, seq: m.seq, at: m.now.Add(d), period: period, fn: fn}
	m.entries = append(m.entries, entry)
	return entry
}

// popDue removes and returns the earliest entry due at or before target,
// moving virtual time to its deadline. Periodic entries are re-queued.
func (m *Manual) popDue(target time.Time) *manualEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	best := -1
	for i, e := range m.entries {
		if e.at.After(target) {
			continue
		}
		if best == -1 || e.at.Before(m.entries[best].at) ||
			(e.at.Equal(m.entries[best].at) && e.seq < m.entries[best].seq) {
			best = i
		}
	}
	if best == -1 {
		return nil
	}

	entry := m.entries[best]
	m.entries = append(m.entries[:best], m.entries[best+1:]...)
	if entry.at.After(m.now) {
		m.now = entry.at
	}

	if entry.period > 0 {
		m.seq++
		entry.seq = m.seq
		entry.at = entry.at.Add(entry.period)
		m.entries = append(m.entries, entry)
	}
	return entry
}

// Stop implements Handle
func (e *manualEntry) Stop() bool {
	m := e.m
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, candidate := range m.entries {
		if candidate == e {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return true
		}
	}
	return false
}
