// Package playback implements the synchronization engine: a session that
// drives a montage of video surfaces from a single audio master clock, with a
// per-frame loop, drift correction, a watchdog and stall recovery.
//
// Every callback the session owns (frame ticks, watchdog firings, recovery
// timers, rate-nudge reverts and element events) runs while holding the
// session lock, so session and pool state have a single writer. Hooks to
// external collaborators are delivered after the lock is released.
package playback

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stwalsh4118/montage/internal/clock"
	"github.com/stwalsh4118/montage/internal/logger"
	"github.com/stwalsh4118/montage/internal/media"
	"github.com/stwalsh4118/montage/internal/scheduler"
	"github.com/stwalsh4118/montage/internal/surface"
	"github.com/stwalsh4118/montage/internal/timeline"
)

// Default supervisory timings
const (
	DefaultWatchdogInterval   = 100 * time.Millisecond
	DefaultStallRecoveryDelay = 500 * time.Millisecond
)

// Hooks notify external collaborators. Any hook may be nil. Hooks run after
// the session lock is released, in the order the events happened.
type Hooks struct {
	OnPhaseChange         func(Snapshot)
	OnSegmentChange       func(Snapshot)
	OnComplete            func(Snapshot)
	OnError               func(error)
	OnInteractionRequired func()
	OnStateChange         func(from, to State)
}

// Snapshot is the externally visible session status
type Snapshot struct {
	SessionID          string  `json:"session_id"`
	State              State   `json:"state"`
	IsPlaying          bool    `json:"is_playing"`
	Elapsed            float64 `json:"elapsed"`
	ActiveSegmentIndex int     `json:"active_segment_index"`
	MediaID            string  `json:"media_id,omitempty"`
	Phase              int     `json:"phase"`
	ShowOverlay        bool    `json:"show_overlay"`
	AutoplayBlocked    bool    `json:"autoplay_blocked"`
	IsStalled          bool    `json:"is_stalled"`
	Error              string  `json:"error,omitempty"`
}

// Options configure a new session
type Options struct {
	// ID identifies the session in logs; generated when empty.
	ID                string
	Timeline          *timeline.Timeline
	MontageStartPhase int
	Clock             *clock.Clock
	// Resolver turns segment media ids into surfaces.
	Resolver  media.Resolver
	Scheduler scheduler.Scheduler

	WatchdogInterval      time.Duration
	StallRecoveryDelay    time.Duration
	FallbackAssetDuration float64

	Hooks    Hooks
	Observer Observer
}

// Session is one playback of a montage
type Session struct {
	mu sync.Mutex

	id                string
	tl                *timeline.Timeline
	montageStartPhase int
	clock             *clock.Clock
	pool              *surface.Pool
	corrector         *Corrector
	sched             *guardedScheduler
	watchdogInterval  time.Duration
	stallDelay        time.Duration
	hooks             Hooks
	observer          Observer
	log               zerolog.Logger

	state           State
	activeIndex     int
	phase           int
	showOverlay     bool
	elapsed         float64
	stalled         bool
	autoplayBlocked bool
	lastErr         error
	closed          bool

	// segmentArmed is set once the active segment's surface was activated
	segmentArmed       bool
	activationFailures int

	loopHandle     scheduler.Handle
	watchdogHandle scheduler.Handle
	recoveries     map[string]scheduler.Handle

	// gen changes whenever timers are torn down so element events queued
	// before a teardown are dropped
	gen atomic.Uint64

	unsubscribeClock func()

	outbox  []func()
	hookMu  sync.Mutex
	outboxN atomic.Int32
}

// NewSession validates the options and creates an idle session
func NewSession(opts Options) (*Session, error) {
	if opts.Timeline == nil || opts.Timeline.Len() == 0 {
		return nil, NewError(ErrorTypePrecondition, "timeline is required", timeline.ErrEmptyTimeline)
	}
	if opts.Clock == nil {
		return nil, NewError(ErrorTypePrecondition, "master clock is required", nil)
	}
	if opts.Resolver == nil {
		return nil, NewError(ErrorTypePrecondition, "media resolver is required", nil)
	}
	if opts.Scheduler == nil {
		return nil, NewError(ErrorTypePrecondition, "scheduler is required", nil)
	}

	if opts.ID == "" {
		opts.ID = uuid.New().String()
	}
	if opts.WatchdogInterval <= 0 {
		opts.WatchdogInterval = DefaultWatchdogInterval
	}
	if opts.StallRecoveryDelay <= 0 {
		opts.StallRecoveryDelay = DefaultStallRecoveryDelay
	}
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}

	s := &Session{
		id:                opts.ID,
		tl:                opts.Timeline,
		montageStartPhase: opts.MontageStartPhase,
		clock:             opts.Clock,
		watchdogInterval:  opts.WatchdogInterval,
		stallDelay:        opts.StallRecoveryDelay,
		hooks:             opts.Hooks,
		observer:          opts.Observer,
		log:               logger.With("playback").With().Str("session_id", opts.ID).Logger(),
		state:             StateIdle,
		recoveries:        make(map[string]scheduler.Handle),
	}
	s.sched = &guardedScheduler{s: s, inner: opts.Scheduler}
	s.pool = surface.NewPool(opts.Resolver, s.sched)
	s.pool.OnStall(func(mediaID string) {
		s.dispatch(func() { s.onStallLocked(mediaID) })
	})
	s.corrector = NewCorrector(s.pool, opts.FallbackAssetDuration)
	s.resetBookkeepingLocked()

	s.unsubscribeClock = s.clock.Subscribe(clock.Hooks{
		OnStarted: func() { s.dispatch(s.onClockStartedLocked) },
		OnEnded:   func() { s.dispatch(s.onClockEndedLocked) },
		OnError: func(err error) {
			s.dispatch(func() { s.failLocked(err) })
		},
	})

	return s, nil
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Timeline returns the session's timeline
func (s *Session) Timeline() *timeline.Timeline {
	return s.tl
}

// Start plays the master clock and arms the loop and watchdog. A Start while
// another is waiting on the clock returns ErrStartInFlight; Start while
// playing does nothing. When the host refuses autoplay the session stays Idle
// with AutoplayBlocked set and Start may be retried after a user gesture.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	switch s.state {
	case StateStarting:
		s.mu.Unlock()
		return ErrStartInFlight
	case StatePlaying:
		s.mu.Unlock()
		return nil
	case StateEnded, StateStopped:
		s.resetLocked()
	}
	if err := ctx.Err(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.setStateLocked(StateStarting)
	gen := s.gen.Add(1)
	s.mu.Unlock()
	s.flushHooks()

	// The clock may block (device init, user prompt), so it runs unlocked.
	err := s.clock.Play()

	s.mu.Lock()
	defer s.flushHooks()
	defer s.mu.Unlock()

	if s.state != StateStarting || s.gen.Load() != gen {
		if err == nil {
			s.clock.Reset()
		}
		return ErrStartAborted
	}

	if err != nil {
		classified := ClassifyError(err)
		if classified.Type == ErrorTypeAutoplayBlocked {
			s.autoplayBlocked = true
			s.setStateLocked(StateIdle)
			s.log.Info().Msg("Autoplay blocked, waiting for user interaction")
			s.enqueue(func() {
				if h := s.hooks.OnInteractionRequired; h != nil {
					h()
				}
			})
			return classified
		}

		s.teardownLocked()
		s.lastErr = classified
		s.setStateLocked(StateStopped)
		s.log.Error().Err(err).Msg("Master clock failed to start")
		s.enqueue(func() {
			if h := s.hooks.OnError; h != nil {
				h(classified)
			}
		})
		return classified
	}

	s.autoplayBlocked = false
	s.resetBookkeepingLocked()
	s.setStateLocked(StatePlaying)
	s.watchdogHandle = s.sched.Every(s.watchdogInterval, s.watchdogLocked)
	s.log.Info().
		Int("segments", s.tl.Len()).
		Float64("total_duration", s.tl.TotalDuration()).
		Msg("Playback started")

	// First tick runs now so segment 0 starts with the clock.
	s.tickLocked()
	return nil
}

// Stop cancels the loop, the watchdog and every pending recovery, pauses and
// zeroes all surfaces and the clock, and returns the session to Idle. It is
// idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
	s.flushHooks()
}

// Close stops the session and releases its surfaces and clock
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.resetLocked()
	s.closed = true
	s.unsubscribeClock()
	s.pool.Close()
	err := s.clock.Close()
	s.mu.Unlock()
	s.flushHooks()

	s.log.Debug().Msg("Session closed")
	return err
}

// Snapshot returns the current status
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that stopped the session, if any
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Activations returns how many surface activations the session performed
func (s *Session) Activations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.Activations()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:          s.id,
		State:              s.state,
		IsPlaying:          s.state == StatePlaying,
		Elapsed:            s.elapsed,
		ActiveSegmentIndex: s.activeIndex,
		Phase:              s.phase,
		ShowOverlay:        s.showOverlay,
		AutoplayBlocked:    s.autoplayBlocked,
		IsStalled:          s.stalled,
	}
	if s.activeIndex >= 0 {
		snap.MediaID = s.tl.Segment(s.activeIndex).MediaID
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	return snap
}

// resetBookkeepingLocked returns phase, segment and elapsed to their initial
// values. The active index starts before the first segment so the first tick
// activates it.
func (s *Session) resetBookkeepingLocked() {
	s.activeIndex = -1
	s.segmentArmed = false
	s.activationFailures = 0
	s.phase = timeline.DefaultPhase
	s.showOverlay = timeline.ShowOverlay(s.phase, s.montageStartPhase)
	s.elapsed = 0
	s.stalled = false
}

// teardownLocked cancels every timer the session owns
func (s *Session) teardownLocked() {
	s.gen.Add(1)
	if s.loopHandle != nil {
		s.loopHandle.Stop()
		s.loopHandle = nil
	}
	if s.watchdogHandle != nil {
		s.watchdogHandle.Stop()
		s.watchdogHandle = nil
	}
	for id, h := range s.recoveries {
		h.Stop()
		delete(s.recoveries, id)
	}
}

// resetLocked is the full stop: teardown, zero every surface and the clock,
// reset state and return to Idle
func (s *Session) resetLocked() {
	s.teardownLocked()
	if s.closed {
		return
	}
	s.pool.ResetAll()
	s.clock.Reset()
	s.resetBookkeepingLocked()
	s.autoplayBlocked = false
	s.lastErr = nil
	if s.state != StateIdle {
		s.setStateLocked(StateIdle)
		s.log.Info().Msg("Playback stopped")
	}
}

// completeLocked ends the session once: the full stop of every timer,
// surface and the clock, while phase, segment and elapsed stay readable in
// the Ended snapshot
func (s *Session) completeLocked() {
	if s.state != StatePlaying {
		return
	}
	s.teardownLocked()
	s.pool.ResetAll()
	s.clock.Reset()
	s.stalled = false
	s.setStateLocked(StateEnded)

	snap := s.snapshotLocked()
	s.log.Info().Float64("elapsed", snap.Elapsed).Msg("Playback complete")
	s.enqueue(func() {
		if h := s.hooks.OnComplete; h != nil {
			h(snap)
		}
	})
}

// failLocked handles a master clock error: full stop, then Stopped with the
// error surfaced. No retry happens here.
func (s *Session) failLocked(err error) {
	if s.state != StatePlaying {
		return
	}
	classified := ClassifyError(err)

	s.teardownLocked()
	s.pool.ResetAll()
	s.clock.Reset()
	s.resetBookkeepingLocked()
	s.lastErr = classified
	s.setStateLocked(StateStopped)

	s.log.Error().Err(err).Msg("Master clock error, session stopped")
	s.enqueue(func() {
		if h := s.hooks.OnError; h != nil {
			h(classified)
		}
	})
}

func (s *Session) onClockStartedLocked() {
	// Same check the watchdog performs, without waiting for its next firing.
	s.watchdogLocked()
}

func (s *Session) onClockEndedLocked() {
	if s.state != StatePlaying {
		return
	}
	s.elapsed = s.clock.Elapsed()
	s.completeLocked()
}

func (s *Session) setStateLocked(to State) {
	from := s.state
	if from == to {
		return
	}
	if !from.CanTransitionTo(to) {
		s.log.Warn().
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("Invalid session state transition")
		return
	}
	s.state = to
	s.enqueue(func() {
		if h := s.hooks.OnStateChange; h != nil {
			h(from, to)
		}
	})
}

// dispatch defers an element event onto the scheduler so it is never handled
// inside the element call that produced it. Events raised before a teardown
// are dropped.
func (s *Session) dispatch(fn func()) {
	gen := s.gen.Load()
	s.sched.After(0, func() {
		if s.gen.Load() != gen {
			return
		}
		fn()
	})
}

// run executes fn under the session lock and then delivers queued hooks
func (s *Session) run(fn func()) {
	func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		fn()
	}()
	s.flushHooks()
}

// enqueue queues a hook call; the lock must be held
func (s *Session) enqueue(fn func()) {
	s.outbox = append(s.outbox, fn)
	s.outboxN.Store(int32(len(s.outbox)))
}

func (s *Session) takeOutbox() []func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.outbox
	s.outbox = nil
	s.outboxN.Store(0)
	return batch
}

// flushHooks delivers queued hooks in order. Only one goroutine delivers at a
// time; a hook that calls back into the session leaves its own events to the
// delivering goroutine.
func (s *Session) flushHooks() {
	for {
		if !s.hookMu.TryLock() {
			return
		}
		for batch := s.takeOutbox(); len(batch) > 0; batch = s.takeOutbox() {
			for _, fn := range batch {
				fn()
			}
		}
		s.hookMu.Unlock()
		if s.outboxN.Load() == 0 {
			return
		}
	}
}

// IsAutoplayBlocked reports whether err means the caller must obtain a user
// gesture before retrying Start
func IsAutoplayBlocked(err error) bool {
	return errors.Is(err, media.ErrAutoplayBlocked)
}
