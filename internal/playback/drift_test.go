package playback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/montage/internal/media"
	"github.com/stwalsh4118/montage/internal/scheduler"
	"github.com/stwalsh4118/montage/internal/surface"
	"github.com/stwalsh4118/montage/internal/timeline"
)

func TestClassify_PolicyBoundaries(t *testing.T) {
	tests := []struct {
		name       string
		actual     float64
		expected   float64
		wantAction Action
		wantRate   float64
	}{
		{name: "below nudge threshold", actual: 0.149, expected: 0, wantAction: ActionNone},
		{name: "exactly nudge threshold, ahead", actual: 0.15, expected: 0, wantAction: ActionNudge, wantRate: SlowDownRate},
		{name: "exactly nudge threshold, behind", actual: 0, expected: 0.15, wantAction: ActionNudge, wantRate: CatchUpRate},
		{name: "top of nudge band, ahead", actual: 0.49, expected: 0, wantAction: ActionNudge, wantRate: SlowDownRate},
		{name: "top of nudge band, behind", actual: 0, expected: 0.49, wantAction: ActionNudge, wantRate: CatchUpRate},
		{name: "exactly seek threshold", actual: 0.5, expected: 0, wantAction: ActionSeek},
		{name: "far behind", actual: 2, expected: 7, wantAction: ActionSeek},
		{name: "in sync", actual: 3.25, expected: 3.25, wantAction: ActionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.actual, tt.expected)

			assert.Equal(t, tt.wantAction, c.Action)
			assert.Equal(t, tt.wantRate, c.Rate)
			assert.Equal(t, tt.expected, c.Expected)
		})
	}
}

func TestClassify_Rates(t *testing.T) {
	assert.Equal(t, 1.05, CatchUpRate)
	assert.Equal(t, 0.95, SlowDownRate)
	assert.Equal(t, 200*time.Millisecond, NudgeRevertDelay)
}

func TestExpectedOffset(t *testing.T) {
	seg := timeline.Segment{MediaID: "a", Start: 10, End: 30}

	tests := []struct {
		name          string
		elapsed       float64
		assetDuration float64
		want          float64
	}{
		{name: "within asset", elapsed: 13, assetDuration: 8, want: 3},
		{name: "wraps when looping", elapsed: 21, assetDuration: 8, want: 3},
		{name: "unknown duration uses fallback", elapsed: 23, assetDuration: 0, want: 3},
		{name: "before segment start stays positive", elapsed: 9, assetDuration: 4, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpectedOffset(tt.elapsed, seg, tt.assetDuration, DefaultFallbackAssetDuration)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCorrector_AppliesPolicyToPool(t *testing.T) {
	sched := scheduler.NewManual(0)
	lib := media.NewSimulatedLibrary(sched.Now)
	lib.Register("a", 20)
	pool := surface.NewPool(lib, sched)
	corrector := NewCorrector(pool, 0)
	seg := timeline.Segment{MediaID: "a", Start: 0, End: 20}

	// Missing surfaces are left alone
	c, err := corrector.Correct(seg, 1)
	require.NoError(t, err)
	assert.Equal(t, ActionNone, c.Action)

	require.NoError(t, pool.Activate("a", 0, false))
	el, _ := lib.Element("a")

	// Surface lags by 0.3s: catch up
	c, err = corrector.Correct(seg, 0.3)
	require.NoError(t, err)
	assert.Equal(t, ActionNudge, c.Action)
	assert.Equal(t, CatchUpRate, el.PlaybackRate())

	sched.Advance(NudgeRevertDelay)
	assert.Equal(t, surface.NormalRate, el.PlaybackRate())

	// Surface lags by a second: seek
	el.Seek(0.2)
	c, err = corrector.Correct(seg, 1.2)
	require.NoError(t, err)
	assert.Equal(t, ActionSeek, c.Action)
	assert.InDelta(t, 1.2, el.CurrentTime(), 1e-9)
}
