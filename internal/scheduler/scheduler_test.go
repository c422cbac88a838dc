package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManual_AfterRunsOnlyWhenDue(t *testing.T) {
	m := NewManual(16 * time.Millisecond)
	fired := 0
	m.After(500*time.Millisecond, func() { fired++ })

	m.Advance(499 * time.Millisecond)
	assert.Equal(t, 0, fired)

	m.Advance(time.Millisecond)
	assert.Equal(t, 1, fired)

	m.Advance(time.Second)
	assert.Equal(t, 1, fired, "one-shot callbacks must not repeat")
}

func TestManual_StopPreventsCallback(t *testing.T) {
	m := NewManual(0)
	fired := false
	h := m.After(100*time.Millisecond, func() { fired = true })

	assert.True(t, h.Stop())
	assert.False(t, h.Stop(), "second stop reports nothing was stopped")

	m.Advance(time.Second)
	assert.False(t, fired)
	assert.Equal(t, 0, m.Pending())
}

func TestManual_EveryRepeatsUntilStopped(t *testing.T) {
	m := NewManual(0)
	count := 0
	h := m.Every(100*time.Millisecond, func() { count++ })

	m.Advance(350 * time.Millisecond)
	assert.Equal(t, 3, count)

	h.Stop()
	m.Advance(time.Second)
	assert.Equal(t, 3, count)
}

func TestManual_OrderingAndVirtualNow(t *testing.T) {
	m := NewManual(10 * time.Millisecond)
	start := m.Now()
	var order []string
	var seenAt []time.Duration

	m.After(30*time.Millisecond, func() {
		order = append(order, "b")
		seenAt = append(seenAt, m.Now().Sub(start))
	})
	m.After(20*time.Millisecond, func() {
		order = append(order, "a")
		seenAt = append(seenAt, m.Now().Sub(start))
	})
	m.After(30*time.Millisecond, func() { order = append(order, "c") })

	m.Advance(time.Second)

	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, []time.Duration{20 * time.Millisecond, 30 * time.Millisecond}, seenAt)
	assert.Equal(t, time.Second, m.Elapsed())
}

func TestManual_NextFrameChainsWithinAdvance(t *testing.T) {
	m := NewManual(16 * time.Millisecond)
	ticks := 0
	var tick func()
	tick = func() {
		ticks++
		m.NextFrame(tick)
	}
	m.NextFrame(tick)

	m.Advance(160 * time.Millisecond)

	assert.Equal(t, 10, ticks)
	assert.Equal(t, 1, m.Pending())
}

func TestManual_StopFromInsideCallback(t *testing.T) {
	m := NewManual(0)
	count := 0
	var h Handle
	h = m.Every(10*time.Millisecond, func() {
		count++
		if count == 2 {
			h.Stop()
		}
	})

	m.Advance(100 * time.Millisecond)

	assert.Equal(t, 2, count)
}

func TestRealtime_AfterAndStop(t *testing.T) {
	r := NewRealtime(time.Millisecond)
	var fired atomic.Int32

	done := make(chan struct{})
	r.After(5*time.Millisecond, func() {
		fired.Add(1)
		close(done)
	})
	cancelled := r.After(time.Hour, func() { fired.Add(100) })
	require.True(t, cancelled.Stop())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("After callback did not fire")
	}
	assert.Equal(t, int32(1), fired.Load())
}

func TestRealtime_EveryStops(t *testing.T) {
	r := NewRealtime(0)
	var count atomic.Int32

	h := r.Every(2*time.Millisecond, func() { count.Add(1) })
	require.Eventually(t, func() bool { return count.Load() >= 3 }, time.Second, time.Millisecond)

	assert.True(t, h.Stop())
	assert.False(t, h.Stop())

	settled := count.Load()
	time.Sleep(20 * time.Millisecond)
	// At most one in-flight firing can land after Stop.
	assert.LessOrEqual(t, count.Load(), settled+1)
}
