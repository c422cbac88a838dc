package timeline

// DefaultPhase is the phase reported before the first breakpoint is reached.
const DefaultPhase = 1

// contiguityTolerance absorbs float rounding when segments are built by
// summing clip durations.
const contiguityTolerance = 1e-6

// Segment is a half-open slot [Start, End) of the master timeline, in seconds,
// mapped to one media resource. A MediaID may back several segments.
type Segment struct {
	MediaID string  `json:"media_id"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Duration returns the length of the segment in seconds
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Contains reports whether t falls inside [Start, End)
func (s Segment) Contains(t float64) bool {
	return t >= s.Start && t < s.End
}

// PhaseBreakpoint marks the elapsed time at which a phase begins.
type PhaseBreakpoint struct {
	Phase int     `json:"phase"`
	Start float64 `json:"start"`
}

// Clip is an ordered entry used to build a contiguous timeline from durations.
type Clip struct {
	MediaID  string  `json:"media_id"`
	Duration float64 `json:"duration"`
}
