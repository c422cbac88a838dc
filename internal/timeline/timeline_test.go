package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper to build a timeline that must be valid
func mustTimeline(t *testing.T, segments []Segment, phases []PhaseBreakpoint) *Timeline {
	t.Helper()
	tl, err := New(segments, phases)
	require.NoError(t, err)
	return tl
}

func threeClipTimeline(t *testing.T) *Timeline {
	t.Helper()
	return mustTimeline(t, []Segment{
		{MediaID: "intro", Start: 0, End: 4},
		{MediaID: "city", Start: 4, End: 10.5},
		{MediaID: "intro", Start: 10.5, End: 12},
	}, []PhaseBreakpoint{{Phase: 1, Start: 0}, {Phase: 2, Start: 20}, {Phase: 3, Start: 50}})
}

func TestNew_Preconditions(t *testing.T) {
	tests := []struct {
		name     string
		segments []Segment
		phases   []PhaseBreakpoint
		wantErr  error
	}{
		{"empty timeline", nil, nil, ErrEmptyTimeline},
		{"missing media id", []Segment{{Start: 0, End: 1}}, nil, ErrInvalidSegment},
		{"zero length segment", []Segment{{MediaID: "a", Start: 0, End: 0}}, nil, ErrInvalidSegment},
		{"inverted segment", []Segment{{MediaID: "a", Start: 0, End: -1}}, nil, ErrInvalidSegment},
		{"does not start at zero", []Segment{{MediaID: "a", Start: 1, End: 2}}, nil, ErrNonContiguous},
		{"gap between segments", []Segment{{MediaID: "a", Start: 0, End: 2}, {MediaID: "b", Start: 3, End: 4}}, nil, ErrNonContiguous},
		{"overlapping segments", []Segment{{MediaID: "a", Start: 0, End: 2}, {MediaID: "b", Start: 1.5, End: 4}}, nil, ErrNonContiguous},
		{"unsorted breakpoints", []Segment{{MediaID: "a", Start: 0, End: 2}}, []PhaseBreakpoint{{Phase: 2, Start: 5}, {Phase: 3, Start: 1}}, ErrUnsortedBreakpoints},
		{"negative breakpoint", []Segment{{MediaID: "a", Start: 0, End: 2}}, []PhaseBreakpoint{{Phase: 2, Start: -1}}, ErrUnsortedBreakpoints},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl, err := New(tt.segments, tt.phases)
			assert.Nil(t, tl)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNew_CopiesInput(t *testing.T) {
	segments := []Segment{{MediaID: "a", Start: 0, End: 5}}
	tl := mustTimeline(t, segments, nil)

	segments[0].MediaID = "mutated"

	assert.Equal(t, "a", tl.Segment(0).MediaID)
}

func TestSegmentIndexAt_Coverage(t *testing.T) {
	tl := threeClipTimeline(t)

	// Every sampled t inside [0, total) lands in exactly the segment containing it.
	for step := 0; step < 1200; step++ {
		elapsed := float64(step) * 0.01
		idx := tl.SegmentIndexAt(elapsed)

		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, tl.Len())
		seg := tl.Segment(idx)
		require.True(t, seg.Contains(elapsed), "t=%v resolved to segment %d %+v", elapsed, idx, seg)
	}
}

func TestSegmentIndexAt_Boundaries(t *testing.T) {
	tl := threeClipTimeline(t)

	tests := []struct {
		name    string
		elapsed float64
		want    int
	}{
		{"start of timeline", 0, 0},
		{"just before first boundary", 3.999, 0},
		{"exactly on first boundary", 4, 1},
		{"exactly on second boundary", 10.5, 2},
		{"exactly at total duration clamps", 12, 2},
		{"beyond total duration clamps", 12.0001, 2},
		{"far beyond total duration clamps", 1e9, 2},
		{"negative clamps to first", -0.5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tl.SegmentIndexAt(tt.elapsed))
		})
	}
}

func TestPhaseAt(t *testing.T) {
	tl := threeClipTimeline(t)

	tests := []struct {
		elapsed float64
		want    int
	}{
		{0, 1},
		{19.9, 1},
		{20, 2},
		{49.9, 2},
		{50, 3},
		{1000, 3},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tl.PhaseAt(tt.elapsed), "PhaseAt(%v)", tt.elapsed)
	}
}

func TestPhaseAt_BeforeFirstBreakpoint(t *testing.T) {
	tl := mustTimeline(t,
		[]Segment{{MediaID: "a", Start: 0, End: 30}},
		[]PhaseBreakpoint{{Phase: 4, Start: 10}},
	)

	assert.Equal(t, DefaultPhase, tl.PhaseAt(0))
	assert.Equal(t, DefaultPhase, tl.PhaseAt(9.99))
	assert.Equal(t, 4, tl.PhaseAt(10))
}

func TestPhaseAt_NoBreakpoints(t *testing.T) {
	tl := mustTimeline(t, []Segment{{MediaID: "a", Start: 0, End: 30}}, nil)

	assert.Equal(t, DefaultPhase, tl.PhaseAt(15))
}

func TestFromClips(t *testing.T) {
	tl, err := FromClips([]Clip{
		{MediaID: "A", Duration: 8},
		{MediaID: "B", Duration: 6},
		{MediaID: "A", Duration: 2.5},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, tl.Len())
	assert.InDelta(t, 16.5, tl.TotalDuration(), 1e-9)
	assert.Equal(t, Segment{MediaID: "B", Start: 8, End: 14}, tl.Segment(1))
	assert.Equal(t, []string{"A", "B"}, tl.MediaIDs())
}

func TestFromClips_RejectsZeroDuration(t *testing.T) {
	_, err := FromClips([]Clip{{MediaID: "A", Duration: 0}}, nil)

	assert.ErrorIs(t, err, ErrInvalidSegment)
}

func TestShowOverlay(t *testing.T) {
	assert.False(t, ShowOverlay(1, 2))
	assert.True(t, ShowOverlay(2, 2))
	assert.True(t, ShowOverlay(3, 2))
}
