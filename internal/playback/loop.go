package playback

import (
	"fmt"

	"github.com/stwalsh4118/montage/internal/timeline"
)

// tickLocked is one pass of the synchronization loop. Order matters: phase
// before segment, segment transition before drift correction, so the
// corrector always measures the surface activated for this tick.
func (s *Session) tickLocked() {
	s.loopHandle = nil

	defer func() {
		if r := recover(); r != nil {
			// Leave the token empty; the watchdog re-arms the loop.
			s.loopHandle = nil
			s.observer.TickPanicked()
			s.log.Error().
				Str("panic", fmt.Sprint(r)).
				Msg("Synchronization tick panicked")
		}
	}()

	if s.state != StatePlaying {
		return
	}
	if !s.clock.IsRunning() {
		return
	}

	elapsed := s.clock.Elapsed()
	s.elapsed = elapsed

	s.updatePhaseLocked(elapsed)
	s.updateSegmentLocked(elapsed)

	seg := s.tl.Segment(s.activeIndex)
	correction, err := s.corrector.Correct(seg, elapsed)
	if err != nil {
		s.log.Warn().Err(err).Str("media_id", seg.MediaID).Msg("Drift correction failed")
	} else if correction.Action != ActionNone {
		s.observer.DriftCorrected(correction.Action, correction.Drift)
		s.log.Debug().
			Str("media_id", seg.MediaID).
			Str("action", correction.Action.String()).
			Float64("drift", correction.Drift).
			Msg("Drift corrected")
	}

	// The final configured end-time completes the montage even if the
	// audio track runs longer.
	if elapsed >= s.tl.TotalDuration() {
		s.completeLocked()
		return
	}

	s.loopHandle = s.sched.NextFrame(s.tickLocked)
}

func (s *Session) updatePhaseLocked(elapsed float64) {
	phase := s.tl.PhaseAt(elapsed)
	if phase == s.phase {
		return
	}

	s.phase = phase
	s.showOverlay = timeline.ShowOverlay(phase, s.montageStartPhase)
	s.observer.PhaseChanged(phase)

	snap := s.snapshotLocked()
	s.log.Debug().Int("phase", phase).Bool("show_overlay", s.showOverlay).Msg("Phase changed")
	s.enqueue(func() {
		if h := s.hooks.OnPhaseChange; h != nil {
			h(snap)
		}
	})
}

// updateSegmentLocked handles segment transitions and keeps retrying the
// active segment's activation on later ticks until it succeeds.
func (s *Session) updateSegmentLocked(elapsed float64) {
	index := s.tl.SegmentIndexAt(elapsed)
	if index != s.activeIndex {
		s.activeIndex = index
		s.segmentArmed = false
		s.activationFailures = 0
		seg := s.tl.Segment(index)

		s.pool.DeactivateAllExcept(seg.MediaID)
		s.observer.SegmentChanged(index)

		snap := s.snapshotLocked()
		s.log.Debug().Int("segment", index).Str("media_id", seg.MediaID).Msg("Segment changed")
		s.enqueue(func() {
			if h := s.hooks.OnSegmentChange; h != nil {
				h(snap)
			}
		})

		// Look ahead exactly one segment.
		if index+1 < s.tl.Len() {
			next := s.tl.Segment(index + 1).MediaID
			if !s.pool.IsPreloaded(next) {
				if err := s.pool.HintPreload(next); err != nil {
					s.log.Warn().Err(err).Str("media_id", next).Msg("Failed to preload next segment")
				}
			}
		}
	}

	if !s.segmentArmed {
		s.segmentArmed = s.activateSegmentLocked(elapsed)
	}
}

// activateSegmentLocked seeks and resumes the active segment's surface. A
// panic leaves the segment unarmed so the next tick tries again.
func (s *Session) activateSegmentLocked(elapsed float64) bool {
	seg := s.tl.Segment(s.activeIndex)

	if _, err := s.pool.Get(seg.MediaID); err != nil {
		s.logActivationFailure(seg.MediaID, "Failed to resolve segment surface", err)
		return false
	}

	// An unknown duration never loops.
	assetDuration := s.pool.AssetDuration(seg.MediaID)
	loop := assetDuration > 0 && assetDuration < seg.Duration()
	offset := ExpectedOffset(elapsed, seg, assetDuration, s.corrector.fallback)
	if err := s.pool.Activate(seg.MediaID, offset, loop); err != nil {
		s.logActivationFailure(seg.MediaID, "Failed to activate surface", err)
		return false
	}
	return true
}

// logActivationFailure logs the first failure of a segment at warn level and
// the per-frame retries at debug.
func (s *Session) logActivationFailure(mediaID, msg string, err error) {
	s.activationFailures++
	ev := s.log.Debug()
	if s.activationFailures == 1 {
		ev = s.log.Warn()
	}
	ev.Err(err).Str("media_id", mediaID).Int("attempt", s.activationFailures).Msg(msg)
}
