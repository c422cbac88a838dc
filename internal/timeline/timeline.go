// Package timeline models a montage as contiguous media segments and phase
// breakpoints over a shared time domain, and answers which segment and which
// phase apply at a given elapsed time.
package timeline

import (
	"fmt"
	"math"
	"sort"

	"github.com/samber/lo"
)

// Timeline is an immutable, validated set of segments and phase breakpoints.
// All lookups are pure and safe for concurrent use.
type Timeline struct {
	segments []Segment
	phases   []PhaseBreakpoint
}

// New validates segments and breakpoints and returns a Timeline.
// Segments must be non-empty, start at zero and be contiguous; breakpoints
// must be sorted ascending by start time.
func New(segments []Segment, phases []PhaseBreakpoint) (*Timeline, error) {
	if len(segments) == 0 {
		return nil, ErrEmptyTimeline
	}

	for i, seg := range segments {
		if seg.MediaID == "" {
			return nil, fmt.Errorf("%w: segment %d has no media id", ErrInvalidSegment, i)
		}
		if seg.Start < 0 || seg.End <= seg.Start {
			return nil, fmt.Errorf("%w: segment %d spans [%g, %g)", ErrInvalidSegment, i, seg.Start, seg.End)
		}

		expectedStart := 0.0
		if i > 0 {
			expectedStart = segments[i-1].End
		}
		if math.Abs(seg.Start-expectedStart) > contiguityTolerance {
			return nil, fmt.Errorf("%w: segment %d starts at %g, expected %g", ErrNonContiguous, i, seg.Start, expectedStart)
		}
	}

	for i, bp := range phases {
		if bp.Start < 0 {
			return nil, fmt.Errorf("%w: breakpoint %d starts at %g", ErrUnsortedBreakpoints, i, bp.Start)
		}
		if i > 0 && bp.Start < phases[i-1].Start {
			return nil, fmt.Errorf("%w: breakpoint %d (%g) precedes breakpoint %d (%g)",
				ErrUnsortedBreakpoints, i, bp.Start, i-1, phases[i-1].Start)
		}
	}

	return &Timeline{
		segments: append([]Segment(nil), segments...),
		phases:   append([]PhaseBreakpoint(nil), phases...),
	}, nil
}

// FromClips lays clips end to end starting at zero and validates the result.
func FromClips(clips []Clip, phases []PhaseBreakpoint) (*Timeline, error) {
	segments := make([]Segment, 0, len(clips))
	var cursor float64
	for _, clip := range clips {
		segments = append(segments, Segment{
			MediaID: clip.MediaID,
			Start:   cursor,
			End:     cursor + clip.Duration,
		})
		cursor += clip.Duration
	}
	return New(segments, phases)
}

// SegmentIndexAt returns the index of the segment containing t.
// A t past the end clamps to the last segment and a negative t clamps to the
// first, so a slightly overrun clock never yields an invalid index.
func (tl *Timeline) SegmentIndexAt(t float64) int {
	last := len(tl.segments) - 1
	if t >= tl.segments[last].End {
		return last
	}
	// First segment whose End is beyond t.
	i := sort.Search(len(tl.segments), func(i int) bool {
		return tl.segments[i].End > t
	})
	if i > last {
		return last
	}
	return i
}

// PhaseAt returns the phase of the last breakpoint starting at or before t,
// or DefaultPhase when t precedes every breakpoint.
func (tl *Timeline) PhaseAt(t float64) int {
	// Number of breakpoints with Start <= t.
	n := sort.Search(len(tl.phases), func(i int) bool {
		return tl.phases[i].Start > t
	})
	if n == 0 {
		return DefaultPhase
	}
	return tl.phases[n-1].Phase
}

// Segment returns the segment at index i. It panics if i is out of range.
func (tl *Timeline) Segment(i int) Segment {
	return tl.segments[i]
}

// Len returns the number of segments
func (tl *Timeline) Len() int {
	return len(tl.segments)
}

// TotalDuration returns the end time of the final segment
func (tl *Timeline) TotalDuration() float64 {
	return tl.segments[len(tl.segments)-1].End
}

// Segments returns a copy of the segments
func (tl *Timeline) Segments() []Segment {
	return append([]Segment(nil), tl.segments...)
}

// Phases returns a copy of the phase breakpoints
func (tl *Timeline) Phases() []PhaseBreakpoint {
	return append([]PhaseBreakpoint(nil), tl.phases...)
}

// MediaIDs returns every distinct media id in order of first use
func (tl *Timeline) MediaIDs() []string {
	return lo.Uniq(lo.Map(tl.segments, func(s Segment, _ int) string {
		return s.MediaID
	}))
}

// ShowOverlay reports whether the overlay should be visible for phase given
// the montage start threshold.
func ShowOverlay(phase, montageStartPhase int) bool {
	return phase >= montageStartPhase
}
