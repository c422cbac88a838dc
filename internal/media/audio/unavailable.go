//go:build !((linux && cgo) || windows || darwin)

package audio

import "github.com/stwalsh4118/montage/internal/media"

// Available reports whether this build can play audio. On Linux the native
// sound libraries need cgo.
const Available = false

// NewResolver returns a resolver that always fails with
// media.ErrAudioUnavailable
func NewResolver(lookup func(mediaID string) (string, error)) media.Resolver {
	return media.ResolverFunc(func(mediaID string) (media.Element, error) {
		return nil, &media.ResolveError{MediaID: mediaID, Cause: media.ErrAudioUnavailable}
	})
}
