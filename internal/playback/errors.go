package playback

import (
	"errors"
	"fmt"

	"github.com/stwalsh4118/montage/internal/clock"
	"github.com/stwalsh4118/montage/internal/media"
	"github.com/stwalsh4118/montage/internal/timeline"
)

// ErrorType represents the type of playback error
type ErrorType int

const (
	// ErrorTypeAutoplayBlocked indicates the host refused to start the clock
	// without a user gesture
	ErrorTypeAutoplayBlocked ErrorType = iota
	// ErrorTypeSurfaceStalled indicates a surface cannot produce frames
	ErrorTypeSurfaceStalled
	// ErrorTypeClock indicates the master clock failed
	ErrorTypeClock
	// ErrorTypePrecondition indicates malformed construction input
	ErrorTypePrecondition
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrorTypeAutoplayBlocked:
		return "autoplay_blocked"
	case ErrorTypeSurfaceStalled:
		return "surface_stalled"
	case ErrorTypeClock:
		return "clock_error"
	case ErrorTypePrecondition:
		return "precondition"
	default:
		return "unknown"
	}
}

// ErrorSeverity represents the severity of a playback error
type ErrorSeverity int

const (
	// SeverityInfo represents expected conditions handled by the caller
	SeverityInfo ErrorSeverity = iota
	// SeverityWarning represents transient issues corrected locally
	SeverityWarning
	// SeverityError represents failures fatal to the session
	SeverityError
)

// String returns the string representation of ErrorSeverity
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Error represents a classified playback error
type Error struct {
	Type        ErrorType
	Severity    ErrorSeverity
	Message     string
	Cause       error
	Recoverable bool
}

// NewError creates a new Error with the given type, message, and cause
func NewError(errorType ErrorType, message string, cause error) *Error {
	severity, recoverable := classifyErrorTypeAttributes(errorType)
	return &Error{
		Type:        errorType,
		Severity:    severity,
		Message:     message,
		Cause:       cause,
		Recoverable: recoverable,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type.String(), e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type.String(), e.Message)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Cause
}

// classifyErrorTypeAttributes returns severity and recoverability for an error type
func classifyErrorTypeAttributes(errorType ErrorType) (ErrorSeverity, bool) {
	switch errorType {
	case ErrorTypeAutoplayBlocked:
		return SeverityInfo, true // Recoverable by an explicit user retry
	case ErrorTypeSurfaceStalled:
		return SeverityWarning, true // Recovered locally, only flagged
	case ErrorTypeClock:
		return SeverityError, false // Fatal to the session
	case ErrorTypePrecondition:
		return SeverityError, false
	default:
		return SeverityError, false
	}
}

// ClassifyError classifies a generic error into an Error
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var playbackErr *Error
	if errors.As(err, &playbackErr) {
		return playbackErr
	}

	if errors.Is(err, media.ErrAutoplayBlocked) {
		return NewError(ErrorTypeAutoplayBlocked, "User interaction required to start playback", err)
	}

	if errors.Is(err, timeline.ErrEmptyTimeline) ||
		errors.Is(err, timeline.ErrInvalidSegment) ||
		errors.Is(err, timeline.ErrNonContiguous) ||
		errors.Is(err, timeline.ErrUnsortedBreakpoints) {
		return NewError(ErrorTypePrecondition, "Invalid timeline", err)
	}

	var clockErr *clock.Error
	if errors.As(err, &clockErr) {
		return NewError(ErrorTypeClock, "Master clock failed", err)
	}

	// Anything else reaching the session came from the clock path
	return NewError(ErrorTypeClock, "Unknown playback error", err)
}

// Common session errors
var (
	// ErrStartInFlight indicates Start was called while a previous Start is
	// still waiting on the master clock
	ErrStartInFlight = errors.New("start already in progress")
	// ErrStartAborted indicates Stop ran while Start was waiting on the clock
	ErrStartAborted = errors.New("start aborted by stop")
	// ErrSessionClosed indicates the session's resources were released
	ErrSessionClosed = errors.New("session closed")
)
