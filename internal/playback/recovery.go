package playback

import (
	"github.com/stwalsh4118/montage/internal/media"
)

// StallNudge is how far a stalled surface is pushed forward on recovery
const StallNudge = 0.1

// onStallLocked schedules a recovery for the surface, replacing any recovery
// already pending for it
func (s *Session) onStallLocked(mediaID string) {
	if s.state != StatePlaying {
		return
	}

	s.stalled = true
	s.observer.StallDetected(mediaID)
	if pending, ok := s.recoveries[mediaID]; ok {
		pending.Stop()
	}
	s.recoveries[mediaID] = s.sched.After(s.stallDelay, func() {
		s.recoverLocked(mediaID)
	})

	s.log.Debug().Str("media_id", mediaID).Dur("delay", s.stallDelay).Msg("Surface stalled, recovery scheduled")
}

// recoverLocked nudges a still-stuck surface forward and resumes it if it
// backs the active segment. It is best effort and never retries.
func (s *Session) recoverLocked(mediaID string) {
	delete(s.recoveries, mediaID)

	if surf, ok := s.pool.Lookup(mediaID); ok {
		if surf.Paused() || surf.ReadyState() < media.HaveEnoughData {
			surf.Seek(surf.Position() + StallNudge)
			if s.activeMediaIDLocked() == mediaID {
				if err := surf.Resume(); err != nil {
					s.log.Warn().Err(err).Str("media_id", mediaID).Msg("Failed to resume stalled surface")
				}
			}
			s.observer.StallRecovered(mediaID)
			s.log.Info().Str("media_id", mediaID).Msg("Stalled surface nudged")
		}
	}

	if len(s.recoveries) == 0 {
		s.stalled = false
	}
}

func (s *Session) activeMediaIDLocked() string {
	if s.activeIndex < 0 {
		return ""
	}
	return s.tl.Segment(s.activeIndex).MediaID
}
