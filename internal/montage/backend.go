package montage

import (
	"fmt"
	"time"

	"github.com/stwalsh4118/montage/internal/config"
	"github.com/stwalsh4118/montage/internal/logger"
	"github.com/stwalsh4118/montage/internal/media"
	"github.com/stwalsh4118/montage/internal/media/audio"
	"github.com/stwalsh4118/montage/internal/timeline"
)

// Backend turns a montage definition into the elements a session drives
type Backend interface {
	// Name identifies the backend in logs and status output
	Name() string
	// Open returns the master clock element and a resolver for the clips
	Open(def *timeline.Definition) (master media.Element, clips media.Resolver, err error)
}

// SimulatedBackend plays every asset on simulated elements driven by Now
type SimulatedBackend struct {
	Now func() time.Time
	// OnLibrary, when set, sees each library before any element is created
	OnLibrary func(def *timeline.Definition, lib *media.SimulatedLibrary)
}

// Name implements Backend
func (b *SimulatedBackend) Name() string {
	return config.MediaBackendSimulated
}

// Open implements Backend
func (b *SimulatedBackend) Open(def *timeline.Definition) (media.Element, media.Resolver, error) {
	lib := newLibrary(def, b.Now)
	if b.OnLibrary != nil {
		b.OnLibrary(def, lib)
	}

	master, err := lib.Resolve(def.AudioMediaID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open master clock: %w", err)
	}
	return master, lib, nil
}

// SpeakerBackend plays the audio track on the sound device. Clips stay
// simulated since the server has no display.
type SpeakerBackend struct {
	Now func() time.Time
}

// Name implements Backend
func (b *SpeakerBackend) Name() string {
	return config.MediaBackendSpeaker
}

// Open implements Backend
func (b *SpeakerBackend) Open(def *timeline.Definition) (media.Element, media.Resolver, error) {
	resolver := audio.NewResolver(func(mediaID string) (string, error) {
		asset, ok := def.Assets[mediaID]
		if !ok {
			return "", media.ErrUnknownMedia
		}
		return asset.URI, nil
	})

	master, err := resolver.Resolve(def.AudioMediaID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open master clock: %w", err)
	}
	return master, newLibrary(def, b.Now), nil
}

// NewBackend selects the backend named in cfg. The speaker backend falls back
// to simulation when the build has no audio output.
func NewBackend(cfg config.MediaConfig, now func() time.Time) Backend {
	if cfg.Backend == config.MediaBackendSpeaker {
		if audio.Available {
			return &SpeakerBackend{Now: now}
		}
		logger.Log.Warn().
			Str("backend", cfg.Backend).
			Msg("Audio output unavailable in this build, using simulated media")
	}
	return &SimulatedBackend{Now: now}
}

func newLibrary(def *timeline.Definition, now func() time.Time) *media.SimulatedLibrary {
	lib := media.NewSimulatedLibrary(now)
	for id, asset := range def.Assets {
		lib.Register(id, asset.Duration)
	}
	return lib
}
