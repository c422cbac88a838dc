package timeline

import "errors"

var (
	// ErrEmptyTimeline is returned when a timeline has no segments
	ErrEmptyTimeline = errors.New("timeline has no segments")

	// ErrInvalidSegment is returned when a segment has no media id, a negative
	// start, or does not end after it starts
	ErrInvalidSegment = errors.New("invalid timeline segment")

	// ErrNonContiguous is returned when segments do not start at zero or leave
	// gaps/overlaps between neighbours
	ErrNonContiguous = errors.New("timeline segments are not contiguous")

	// ErrUnsortedBreakpoints is returned when phase breakpoints are not sorted
	// ascending by start time, or start before zero
	ErrUnsortedBreakpoints = errors.New("phase breakpoints are not sorted")

	// ErrMontageNotFound is returned when a montage definition does not exist
	ErrMontageNotFound = errors.New("montage not found")
)
