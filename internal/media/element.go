// Package media defines the playback element contract the synchronization
// engine drives, the resolvers that turn opaque media ids into elements, and
// a simulated backend. The sound device backend lives in media/audio.
package media

import (
	"errors"
	"fmt"
)

// EventType identifies an element state change
type EventType int

const (
	// EventPlaying fires when playback starts or resumes
	EventPlaying EventType = iota
	// EventPause fires when playback is paused
	EventPause
	// EventEnded fires when a non-looping element reaches its end
	EventEnded
	// EventError fires when the element cannot continue (decode, resource)
	EventError
	// EventStalled fires when data stops arriving
	EventStalled
	// EventWaiting fires when playback halts waiting for data
	EventWaiting
	// EventLoadedMetadata fires once the duration is known
	EventLoadedMetadata
)

// String returns the string representation of EventType
func (e EventType) String() string {
	switch e {
	case EventPlaying:
		return "playing"
	case EventPause:
		return "pause"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	case EventStalled:
		return "stalled"
	case EventWaiting:
		return "waiting"
	case EventLoadedMetadata:
		return "loadedmetadata"
	default:
		return "unknown"
	}
}

// IsStall reports whether the event signals a buffering underrun
func (e EventType) IsStall() bool {
	return e == EventStalled || e == EventWaiting
}

// Event is delivered to element listeners. Err is set for EventError.
type Event struct {
	Type EventType
	Err  error
}

// Listener receives element events. Elements may invoke listeners from any
// goroutine, including from inside their own methods, so listeners must not
// call back into the element synchronously.
type Listener func(Event)

// ReadyState mirrors how much media data an element has buffered
type ReadyState int

const (
	// HaveNothing means no data is available
	HaveNothing ReadyState = iota
	// HaveMetadata means the duration is known but no frames are buffered
	HaveMetadata
	// HaveCurrentData means only the current frame is buffered
	HaveCurrentData
	// HaveFutureData means playback can advance a little
	HaveFutureData
	// HaveEnoughData means playback can continue to the end without stalling
	HaveEnoughData
)

// String returns the string representation of ReadyState
func (r ReadyState) String() string {
	switch r {
	case HaveNothing:
		return "have_nothing"
	case HaveMetadata:
		return "have_metadata"
	case HaveCurrentData:
		return "have_current_data"
	case HaveFutureData:
		return "have_future_data"
	case HaveEnoughData:
		return "have_enough_data"
	default:
		return "unknown"
	}
}

// Element is an independently controllable playback handle for one media
// resource. Times are in seconds. Commands are fire-and-forget; only Play
// reports whether the host accepted the request.
type Element interface {
	// Play starts or resumes playback. ErrAutoplayBlocked means the host
	// refused without a user gesture.
	Play() error
	Pause()
	Seek(seconds float64)
	CurrentTime() float64
	// Duration returns the asset duration, or 0 while unknown.
	Duration() float64
	Paused() bool
	Ended() bool
	SetLoop(loop bool)
	SetPlaybackRate(rate float64)
	PlaybackRate() float64
	// Load requests the asset without blocking.
	Load()
	ReadyState() ReadyState
	// Subscribe registers a listener and returns a function removing it.
	Subscribe(l Listener) (unsubscribe func())
	// Close releases the element's resources.
	Close() error
}

// Resolver turns an opaque media id into a playable element
type Resolver interface {
	Resolve(mediaID string) (Element, error)
}

// ResolverFunc adapts a function to Resolver
type ResolverFunc func(mediaID string) (Element, error)

// Resolve implements Resolver
func (f ResolverFunc) Resolve(mediaID string) (Element, error) {
	return f(mediaID)
}

// Common errors
var (
	// ErrAutoplayBlocked indicates the host refused to start playback without
	// a user gesture
	ErrAutoplayBlocked = errors.New("autoplay blocked: user interaction required")
	// ErrUnknownMedia indicates a resolver has no asset for the id
	ErrUnknownMedia = errors.New("unknown media id")
	// ErrElementClosed indicates a command was issued to a closed element
	ErrElementClosed = errors.New("media element closed")
	// ErrAudioUnavailable indicates this build or host has no audio output
	ErrAudioUnavailable = errors.New("audio output unavailable")
)

// ResolveError wraps a resolver failure with the media id that caused it
type ResolveError struct {
	MediaID string
	Cause   error
}

// Error implements the error interface
func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve media %q: %v", e.MediaID, e.Cause)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *ResolveError) Unwrap() error {
	return e.Cause
}
