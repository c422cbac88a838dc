// Package clock adapts the audio element that acts as the master clock. It is
// the only authoritative source of elapsed playback time.
package clock

import (
	"errors"
	"fmt"

	"github.com/stwalsh4118/montage/internal/media"
)

// Error wraps a failure reported by the master clock's element
type Error struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("master clock %s: %v", e.Op, e.Err)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// errUnknownFailure stands in when an element reports an error without detail
var errUnknownFailure = errors.New("element reported an error")

// Hooks receive clock state changes. Any hook may be nil. Hooks run on the
// element's goroutine and must not call back into the clock synchronously.
type Hooks struct {
	OnStarted func()
	OnPaused  func()
	OnEnded   func()
	OnError   func(err error)
}

// Clock is the master clock adapter
type Clock struct {
	el media.Element
}

// New wraps el as the master clock
func New(el media.Element) *Clock {
	return &Clock{el: el}
}

// Elapsed returns the current position in seconds
func (c *Clock) Elapsed() float64 {
	return c.el.CurrentTime()
}

// IsRunning reports whether playback is active: not paused and not ended
func (c *Clock) IsRunning() bool {
	return !c.el.Paused() && !c.el.Ended()
}

// Duration returns the track duration, or 0 while unknown
func (c *Clock) Duration() float64 {
	return c.el.Duration()
}

// Play starts the clock. Autoplay refusal is returned wrapped so callers can
// match media.ErrAutoplayBlocked. No retry is attempted here.
func (c *Clock) Play() error {
	if err := c.el.Play(); err != nil {
		return &Error{Op: "play", Err: err}
	}
	return nil
}

// Pause stops the clock where it is
func (c *Clock) Pause() {
	c.el.Pause()
}

// Reset pauses the clock and rewinds it to zero
func (c *Clock) Reset() {
	c.el.Pause()
	c.el.Seek(0)
}

// Load requests the track without blocking
func (c *Clock) Load() {
	c.el.Load()
}

// Subscribe maps element events onto hooks and returns a function removing
// the subscription
func (c *Clock) Subscribe(h Hooks) func() {
	return c.el.Subscribe(func(ev media.Event) {
		switch ev.Type {
		case media.EventPlaying:
			if h.OnStarted != nil {
				h.OnStarted()
			}
		case media.EventPause:
			if h.OnPaused != nil {
				h.OnPaused()
			}
		case media.EventEnded:
			if h.OnEnded != nil {
				h.OnEnded()
			}
		case media.EventError:
			if h.OnError != nil {
				cause := ev.Err
				if cause == nil {
					cause = errUnknownFailure
				}
				h.OnError(&Error{Op: "playback", Err: cause})
			}
		}
	})
}

// Close releases the underlying element
func (c *Clock) Close() error {
	return c.el.Close()
}
