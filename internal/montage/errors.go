package montage

import (
	"errors"

	"github.com/samber/lo"

	"github.com/stwalsh4118/montage/internal/timeline"
)

// Custom montage service errors
var (
	// ErrMontageNotFound indicates the requested montage does not exist
	ErrMontageNotFound = timeline.ErrMontageNotFound

	// ErrDuplicateMontageName indicates a montage with the same name already exists
	ErrDuplicateMontageName = errors.New("montage name already exists")

	// ErrInvalidName indicates the montage name is empty
	ErrInvalidName = errors.New("montage name is required")

	// ErrMediaNotFound indicates a referenced media asset does not exist
	ErrMediaNotFound = errors.New("media not found")

	// ErrNotAudio indicates the master clock track is not an audio asset
	ErrNotAudio = errors.New("master clock media must be audio")

	// ErrNotVideo indicates a clip references a non-video asset
	ErrNotVideo = errors.New("montage clips must be video")

	// ErrSessionNotFound indicates the montage has no playback session
	ErrSessionNotFound = errors.New("no playback session for montage")

	// ErrManagerStopped indicates the playback manager has shut down
	ErrManagerStopped = errors.New("playback manager has been stopped")
)

// IsMontageNotFound checks if the error is a montage not found error
func IsMontageNotFound(err error) bool {
	return errors.Is(err, ErrMontageNotFound)
}

// IsDuplicateName checks if the error is a duplicate montage name error
func IsDuplicateName(err error) bool {
	return errors.Is(err, ErrDuplicateMontageName)
}

// IsMediaNotFound checks if the error is a media not found error
func IsMediaNotFound(err error) bool {
	return errors.Is(err, ErrMediaNotFound)
}

var validationErrors = []error{
	ErrInvalidName,
	ErrNotAudio,
	ErrNotVideo,
	timeline.ErrEmptyTimeline,
	timeline.ErrInvalidSegment,
	timeline.ErrNonContiguous,
	timeline.ErrUnsortedBreakpoints,
}

// IsValidationError reports whether err rejects the montage definition itself
func IsValidationError(err error) bool {
	return lo.SomeBy(validationErrors, func(target error) bool {
		return errors.Is(err, target)
	})
}
