// Package surface manages one playback surface per unique media id. The pool
// is owned by a single playback session and is not safe for concurrent use;
// the session serialises every call, including the timer callbacks it hands
// to the pool's scheduler.
package surface

import (
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/stwalsh4118/montage/internal/logger"
	"github.com/stwalsh4118/montage/internal/media"
	"github.com/stwalsh4118/montage/internal/scheduler"
)

// NormalRate is the playback rate a surface reverts to after a nudge
const NormalRate = 1.0

// StallHandler receives stall notifications. It is called on the element's
// goroutine, possibly from inside a pool call, so it must not call back into
// the pool synchronously.
type StallHandler func(mediaID string)

// Surface is the pool's handle on one media element
type Surface struct {
	mediaID     string
	el          media.Element
	unsubscribe func()
	revert      scheduler.Handle
}

// MediaID returns the id the surface plays
func (s *Surface) MediaID() string {
	return s.mediaID
}

// Position returns the element's current position in seconds
func (s *Surface) Position() float64 {
	return s.el.CurrentTime()
}

// Duration returns the asset duration, or 0 while unknown
func (s *Surface) Duration() float64 {
	return s.el.Duration()
}

// Paused reports whether the element is paused
func (s *Surface) Paused() bool {
	return s.el.Paused()
}

// ReadyState reports how much data the element has buffered
func (s *Surface) ReadyState() media.ReadyState {
	return s.el.ReadyState()
}

// PlaybackRate returns the element's current rate
func (s *Surface) PlaybackRate() float64 {
	return s.el.PlaybackRate()
}

// Seek moves the element to seconds
func (s *Surface) Seek(seconds float64) {
	s.el.Seek(seconds)
}

// Resume asks the element to play
func (s *Surface) Resume() error {
	return s.el.Play()
}

// Pool maps media ids to surfaces, creating them lazily
type Pool struct {
	resolver    media.Resolver
	sched       scheduler.Scheduler
	surfaces    map[string]*Surface
	preloaded   map[string]struct{}
	onStall     StallHandler
	activations int
	log         zerolog.Logger
}

// NewPool creates an empty pool. Timer callbacks scheduled by the pool (rate
// nudge reverts) run through sched.
func NewPool(resolver media.Resolver, sched scheduler.Scheduler) *Pool {
	return &Pool{
		resolver:  resolver,
		sched:     sched,
		surfaces:  make(map[string]*Surface),
		preloaded: make(map[string]struct{}),
		log:       logger.With("surface_pool"),
	}
}

// OnStall installs the handler for stall notifications from every surface.
// Call it before the first Get.
func (p *Pool) OnStall(h StallHandler) {
	p.onStall = h
}

// Get returns the surface for mediaID, resolving and creating it on first access
func (p *Pool) Get(mediaID string) (*Surface, error) {
	if s, ok := p.surfaces[mediaID]; ok {
		return s, nil
	}

	el, err := p.resolver.Resolve(mediaID)
	if err != nil {
		return nil, err
	}

	s := &Surface{mediaID: mediaID, el: el}
	s.unsubscribe = el.Subscribe(func(ev media.Event) {
		if !ev.Type.IsStall() {
			return
		}
		if h := p.onStall; h != nil {
			h(mediaID)
		}
	})
	p.surfaces[mediaID] = s

	p.log.Debug().Str("media_id", mediaID).Msg("Surface created")
	return s, nil
}

// Lookup returns an existing surface without creating one
func (p *Pool) Lookup(mediaID string) (*Surface, bool) {
	s, ok := p.surfaces[mediaID]
	return s, ok
}

// Activate seeks the surface to offset, sets its loop flag and resumes it if
// paused. It always re-seeks, even when the surface is already playing.
func (p *Pool) Activate(mediaID string, offset float64, loop bool) error {
	s, err := p.Get(mediaID)
	if err != nil {
		return err
	}
	p.activations++

	s.el.Seek(offset)
	s.el.SetLoop(loop)
	if s.el.Paused() {
		if err := s.el.Play(); err != nil {
			return err
		}
	}
	return nil
}

// Activations returns how many times Activate has been called
func (p *Pool) Activations() int {
	return p.activations
}

// DeactivateAllExcept pauses every surface other than mediaID
func (p *Pool) DeactivateAllExcept(mediaID string) {
	for _, s := range lo.OmitByKeys(p.surfaces, []string{mediaID}) {
		if !s.el.Paused() {
			s.el.Pause()
		}
	}
}

// HintPreload records mediaID as preloaded and issues a non-blocking load.
// Repeated hints for the same id do nothing.
func (p *Pool) HintPreload(mediaID string) error {
	if _, ok := p.preloaded[mediaID]; ok {
		return nil
	}
	s, err := p.Get(mediaID)
	if err != nil {
		return err
	}
	p.preloaded[mediaID] = struct{}{}
	s.el.Load()
	return nil
}

// IsPreloaded reports whether mediaID has been hinted since the last reset
func (p *Pool) IsPreloaded(mediaID string) bool {
	_, ok := p.preloaded[mediaID]
	return ok
}

// RequestRateNudge overrides the surface's rate and reverts it to NormalRate
// after d. A newer nudge replaces a pending revert.
func (p *Pool) RequestRateNudge(mediaID string, rate float64, d time.Duration) error {
	s, err := p.Get(mediaID)
	if err != nil {
		return err
	}

	if s.revert != nil {
		s.revert.Stop()
	}
	s.el.SetPlaybackRate(rate)

	var handle scheduler.Handle
	handle = p.sched.After(d, func() {
		if s.revert != handle {
			return
		}
		s.revert = nil
		s.el.SetPlaybackRate(NormalRate)
	})
	s.revert = handle
	return nil
}

// HardSeek jumps the surface to offset
func (p *Pool) HardSeek(mediaID string, offset float64) error {
	s, err := p.Get(mediaID)
	if err != nil {
		return err
	}
	s.el.Seek(offset)
	return nil
}

// Position returns the surface's position, or 0 when it does not exist
func (p *Pool) Position(mediaID string) float64 {
	if s, ok := p.surfaces[mediaID]; ok {
		return s.el.CurrentTime()
	}
	return 0
}

// AssetDuration returns the surface's native duration, or 0 when unknown
func (p *Pool) AssetDuration(mediaID string) float64 {
	if s, ok := p.surfaces[mediaID]; ok {
		return s.el.Duration()
	}
	return 0
}

// MediaIDs returns the ids of every created surface in sorted order
func (p *Pool) MediaIDs() []string {
	ids := lo.Keys(p.surfaces)
	slices.Sort(ids)
	return ids
}

// ResetAll pauses and zeroes every surface, cancels pending rate reverts and
// forgets preload hints. Surfaces stay allocated for the next run.
func (p *Pool) ResetAll() {
	for _, s := range p.surfaces {
		p.cancelRevert(s)
		s.el.Pause()
		s.el.Seek(0)
		s.el.SetPlaybackRate(NormalRate)
		s.el.SetLoop(false)
	}
	clear(p.preloaded)
}

// Close releases every surface. The pool is empty afterwards.
func (p *Pool) Close() {
	for id, s := range p.surfaces {
		p.cancelRevert(s)
		s.unsubscribe()
		if err := s.el.Close(); err != nil {
			p.log.Warn().Err(err).Str("media_id", id).Msg("Failed to close surface")
		}
	}
	clear(p.surfaces)
	clear(p.preloaded)
}

func (p *Pool) cancelRevert(s *Surface) {
	if s.revert != nil {
		s.revert.Stop()
		s.revert = nil
	}
}
