package playback

// Observer receives engine events for instrumentation. Methods are called
// while the session lock is held and must return quickly.
type Observer interface {
	PhaseChanged(phase int)
	SegmentChanged(index int)
	DriftCorrected(action Action, drift float64)
	LoopRearmed()
	TickPanicked()
	StallDetected(mediaID string)
	StallRecovered(mediaID string)
}

// NopObserver ignores every event
type NopObserver struct{}

func (NopObserver) PhaseChanged(int)               {}
func (NopObserver) SegmentChanged(int)             {}
func (NopObserver) DriftCorrected(Action, float64) {}
func (NopObserver) LoopRearmed()                   {}
func (NopObserver) TickPanicked()                  {}
func (NopObserver) StallDetected(string)           {}
func (NopObserver) StallRecovered(string)          {}
