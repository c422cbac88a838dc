package playback

// watchdogLocked re-arms the loop when the clock runs but no tick is
// scheduled. The single loop token keeps it from ever running two loops.
func (s *Session) watchdogLocked() {
	if s.state != StatePlaying || s.loopHandle != nil {
		return
	}
	if !s.clock.IsRunning() {
		return
	}

	s.observer.LoopRearmed()
	s.log.Warn().Float64("elapsed", s.elapsed).Msg("Synchronization loop stalled, re-arming")
	s.loopHandle = s.sched.NextFrame(s.tickLocked)
}
