package media

import (
	"math"
	"sync"
	"time"
)

// SimulatedStats counts the commands a Simulated element received
type SimulatedStats struct {
	Plays       int
	Pauses      int
	Seeks       int
	Loads       int
	RateChanges int
}

// Simulated is a headless element whose position advances with the supplied
// time source. It backs the service when no real output is configured and
// gives tests full control over autoplay refusal, stalls and failures.
type Simulated struct {
	mu sync.Mutex

	id       string
	now      func() time.Time
	duration float64

	metadataLoaded bool
	paused         bool
	ended          bool
	loop           bool
	stalled        bool
	closed         bool
	rate           float64
	readyState     ReadyState

	// position = base + (now - anchor) * rate while advancing
	base   float64
	anchor time.Time

	autoplayBlocked bool
	playErr         error
	playHook        func() error

	stats     SimulatedStats
	listeners Listeners
}

// NewSimulated creates a paused element for an asset of the given duration.
// A zero duration keeps the asset's length unknown.
func NewSimulated(id string, duration float64, now func() time.Time) *Simulated {
	if now == nil {
		now = time.Now
	}
	return &Simulated{
		id:         id,
		now:        now,
		duration:   duration,
		paused:     true,
		rate:       1.0,
		readyState: HaveNothing,
		anchor:     now(),
	}
}

// ID returns the media id the element was created for
func (s *Simulated) ID() string {
	return s.id
}

// Play implements Element
func (s *Simulated) Play() error {
	s.mu.Lock()
	hook := s.playHook
	s.mu.Unlock()

	// The hook runs unlocked so tests can block inside Play.
	if hook != nil {
		if err := hook(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrElementClosed
	}
	s.stats.Plays++
	if s.autoplayBlocked {
		s.mu.Unlock()
		return ErrAutoplayBlocked
	}
	if s.playErr != nil {
		err := s.playErr
		s.mu.Unlock()
		return err
	}

	var events []Event
	events = append(events, s.loadLocked()...)
	if s.ended {
		s.ended = false
		s.base = 0
	}
	if s.paused {
		s.settleLocked()
		s.paused = false
		events = append(events, Event{Type: EventPlaying})
	}
	s.mu.Unlock()

	s.listeners.Emit(events...)
	return nil
}

// Pause implements Element
func (s *Simulated) Pause() {
	s.mu.Lock()
	s.stats.Pauses++
	if s.paused || s.closed {
		s.mu.Unlock()
		return
	}
	s.settleLocked()
	s.paused = true
	s.mu.Unlock()

	s.listeners.Emit(Event{Type: EventPause})
}

// Seek implements Element
func (s *Simulated) Seek(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Seeks++
	if seconds < 0 {
		seconds = 0
	}
	if s.duration > 0 && seconds > s.duration {
		seconds = s.duration
	}
	s.base = seconds
	s.anchor = s.now()
	s.ended = false
}

// CurrentTime implements Element
func (s *Simulated) CurrentTime() float64 {
	s.mu.Lock()
	pos, events := s.positionLocked()
	s.mu.Unlock()

	s.listeners.Emit(events...)
	return pos
}

// Duration implements Element
func (s *Simulated) Duration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.metadataLoaded {
		return 0
	}
	return s.duration
}

// Paused implements Element
func (s *Simulated) Paused() bool {
	s.mu.Lock()
	_, events := s.positionLocked()
	paused := s.paused
	s.mu.Unlock()

	s.listeners.Emit(events...)
	return paused
}

// Ended implements Element
func (s *Simulated) Ended() bool {
	s.mu.Lock()
	_, events := s.positionLocked()
	ended := s.ended
	s.mu.Unlock()

	s.listeners.Emit(events...)
	return ended
}

// SetLoop implements Element
func (s *Simulated) SetLoop(loop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settleLocked()
	s.loop = loop
}

// Loop reports whether the element loops
func (s *Simulated) Loop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loop
}

// SetPlaybackRate implements Element
func (s *Simulated) SetPlaybackRate(rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rate <= 0 {
		return
	}
	s.stats.RateChanges++
	s.settleLocked()
	s.rate = rate
}

// PlaybackRate implements Element
func (s *Simulated) PlaybackRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

// Load implements Element
func (s *Simulated) Load() {
	s.mu.Lock()
	s.stats.Loads++
	events := s.loadLocked()
	s.mu.Unlock()

	s.listeners.Emit(events...)
}

// ReadyState implements Element
func (s *Simulated) ReadyState() ReadyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readyState
}

// Subscribe implements Element
func (s *Simulated) Subscribe(l Listener) func() {
	return s.listeners.Add(l)
}

// Close implements Element
func (s *Simulated) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settleLocked()
	s.closed = true
	s.paused = true
	s.listeners.Clear()
	return nil
}

// Closed reports whether Close was called
func (s *Simulated) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Stats returns a copy of the command counters
func (s *Simulated) Stats() SimulatedStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// BlockAutoplay makes Play fail with ErrAutoplayBlocked until unblocked
func (s *Simulated) BlockAutoplay(blocked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoplayBlocked = blocked
}

// FailPlay makes Play return err; nil clears the failure
func (s *Simulated) FailPlay(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playErr = err
}

// SetPlayHook installs a function Play runs before doing anything else
func (s *Simulated) SetPlayHook(hook func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playHook = hook
}

// Stall freezes the position, drops the ready state and emits EventStalled
func (s *Simulated) Stall() {
	s.mu.Lock()
	s.settleLocked()
	s.stalled = true
	s.readyState = HaveCurrentData
	s.mu.Unlock()

	s.listeners.Emit(Event{Type: EventStalled})
}

// Unstall resumes position updates and restores a full buffer
func (s *Simulated) Unstall() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settleLocked()
	s.stalled = false
	s.readyState = HaveEnoughData
}

// SetReadyState overrides the reported ready state
func (s *Simulated) SetReadyState(state ReadyState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readyState = state
}

// Fail pauses the element and emits EventError carrying err
func (s *Simulated) Fail(err error) {
	s.mu.Lock()
	s.settleLocked()
	s.paused = true
	s.mu.Unlock()

	s.listeners.Emit(Event{Type: EventError, Err: err})
}

// loadLocked marks metadata and data as available, returning the events to emit
func (s *Simulated) loadLocked() []Event {
	if s.metadataLoaded || s.closed {
		return nil
	}
	s.metadataLoaded = true
	if !s.stalled {
		s.readyState = HaveEnoughData
	}
	return []Event{{Type: EventLoadedMetadata}}
}

// advancingLocked reports whether the position moves with time
func (s *Simulated) advancingLocked() bool {
	return !s.paused && !s.stalled && !s.ended && !s.closed
}

// settleLocked folds elapsed time into base so rate or state can change
func (s *Simulated) settleLocked() {
	now := s.now()
	if s.advancingLocked() {
		s.base += now.Sub(s.anchor).Seconds() * s.rate
	}
	s.anchor = now
	s.base = s.wrapLocked(s.base)
}

// wrapLocked applies looping to a raw position
func (s *Simulated) wrapLocked(pos float64) float64 {
	if s.loop && s.duration > 0 && pos >= s.duration {
		return math.Mod(pos, s.duration)
	}
	return pos
}

// positionLocked computes the current position and detects the end of a
// non-looping asset
func (s *Simulated) positionLocked() (float64, []Event) {
	pos := s.base
	if s.advancingLocked() {
		pos += s.now().Sub(s.anchor).Seconds() * s.rate
	}
	pos = s.wrapLocked(pos)

	if !s.loop && s.duration > 0 && pos >= s.duration && !s.ended {
		s.base = s.duration
		s.anchor = s.now()
		s.ended = true
		s.paused = true
		return s.duration, []Event{{Type: EventPause}, {Type: EventEnded}}
	}
	return pos, nil
}
