package playback

import (
	"math"
	"time"

	"github.com/stwalsh4118/montage/internal/surface"
	"github.com/stwalsh4118/montage/internal/timeline"
)

// Drift correction policy. Thresholds are in seconds.
const (
	NudgeThreshold   = 0.15
	SeekThreshold    = 0.5
	CatchUpRate      = 1.05
	SlowDownRate     = 0.95
	NudgeRevertDelay = 200 * time.Millisecond

	// DefaultFallbackAssetDuration stands in for an asset duration that is
	// not known yet
	DefaultFallbackAssetDuration = 10.0
)

// Action is the correction chosen for a measured drift
type Action int

const (
	// ActionNone leaves an imperceptible drift alone
	ActionNone Action = iota
	// ActionNudge temporarily changes the playback rate
	ActionNudge
	// ActionSeek jumps straight to the expected offset
	ActionSeek
)

// String returns the string representation of Action
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionNudge:
		return "nudge"
	case ActionSeek:
		return "seek"
	default:
		return "unknown"
	}
}

// Correction describes what the corrector decided for one surface
type Correction struct {
	Action   Action
	Drift    float64
	Expected float64
	Actual   float64
	Rate     float64 // set for ActionNudge
}

// ExpectedOffset returns where a segment's surface should be given the master
// clock, wrapping by the asset duration. A non-positive asset duration is
// replaced by fallback.
func ExpectedOffset(elapsed float64, seg timeline.Segment, assetDuration, fallback float64) float64 {
	d := assetDuration
	if d <= 0 {
		d = fallback
	}
	offset := math.Mod(elapsed-seg.Start, d)
	if offset < 0 {
		offset += d
	}
	return offset
}

// Classify applies the three-tier policy to a measured position. The first
// matching tier wins.
func Classify(actual, expected float64) Correction {
	c := Correction{
		Drift:    math.Abs(actual - expected),
		Expected: expected,
		Actual:   actual,
	}

	switch {
	case c.Drift < NudgeThreshold:
		c.Action = ActionNone
	case c.Drift < SeekThreshold:
		c.Action = ActionNudge
		if actual < expected {
			c.Rate = CatchUpRate
		} else {
			c.Rate = SlowDownRate
		}
	default:
		c.Action = ActionSeek
	}
	return c
}

// Corrector applies drift corrections to surfaces in a pool
type Corrector struct {
	pool     *surface.Pool
	fallback float64
}

// NewCorrector creates a corrector over pool. A non-positive fallback uses
// DefaultFallbackAssetDuration.
func NewCorrector(pool *surface.Pool, fallback float64) *Corrector {
	if fallback <= 0 {
		fallback = DefaultFallbackAssetDuration
	}
	return &Corrector{pool: pool, fallback: fallback}
}

// Correct measures the surface backing seg against elapsed and applies the
// policy. A segment whose surface does not exist yet is left alone.
func (c *Corrector) Correct(seg timeline.Segment, elapsed float64) (Correction, error) {
	s, ok := c.pool.Lookup(seg.MediaID)
	if !ok {
		return Correction{Action: ActionNone}, nil
	}

	expected := ExpectedOffset(elapsed, seg, s.Duration(), c.fallback)
	correction := Classify(s.Position(), expected)

	switch correction.Action {
	case ActionNudge:
		return correction, c.pool.RequestRateNudge(seg.MediaID, correction.Rate, NudgeRevertDelay)
	case ActionSeek:
		return correction, c.pool.HardSeek(seg.MediaID, expected)
	}
	return correction, nil
}
