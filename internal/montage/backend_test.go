package montage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/montage/internal/config"
	"github.com/stwalsh4118/montage/internal/media"
	"github.com/stwalsh4118/montage/internal/media/audio"
	"github.com/stwalsh4118/montage/internal/models"
	"github.com/stwalsh4118/montage/internal/timeline"
)

func testDefinition(t *testing.T) *timeline.Definition {
	track := models.NewMediaAsset("/m/track.mp3", "track", models.MediaKindAudio, 20)
	clip := models.NewMediaAsset("/m/a.mp4", "a", models.MediaKindVideo, 5)

	m := models.NewMontage("def", track.ID, 1)
	m.Audio = track
	c := models.NewMontageClip(m.ID, clip.ID, 0, 5)
	c.Media = clip
	m.Clips = []*models.MontageClip{c}

	def, err := timeline.Build(m)
	require.NoError(t, err)
	return def
}

func TestSimulatedBackend_Open(t *testing.T) {
	def := testDefinition(t)
	var seen *media.SimulatedLibrary
	backend := &SimulatedBackend{
		Now: time.Now,
		OnLibrary: func(_ *timeline.Definition, lib *media.SimulatedLibrary) {
			seen = lib
		},
	}

	master, video, err := backend.Open(def)
	require.NoError(t, err)
	require.NotNil(t, seen)

	master.Load()
	assert.Equal(t, 20.0, master.Duration())
	assert.Same(t, seen, video)

	clipID := def.Timeline.Segment(0).MediaID
	el, err := video.Resolve(clipID)
	require.NoError(t, err)
	el.Load()
	assert.Equal(t, 5.0, el.Duration())

	_, err = video.Resolve("missing")
	assert.ErrorIs(t, err, media.ErrUnknownMedia)
}

func TestSimulatedBackend_MissingAudio(t *testing.T) {
	def := testDefinition(t)
	delete(def.Assets, def.AudioMediaID)

	_, _, err := (&SimulatedBackend{}).Open(def)
	assert.ErrorIs(t, err, media.ErrUnknownMedia)
}

func TestNewBackend(t *testing.T) {
	b := NewBackend(config.MediaConfig{Backend: config.MediaBackendSimulated}, time.Now)
	assert.Equal(t, config.MediaBackendSimulated, b.Name())

	b = NewBackend(config.MediaConfig{Backend: config.MediaBackendSpeaker}, time.Now)
	if audio.Available {
		assert.Equal(t, config.MediaBackendSpeaker, b.Name())
	} else {
		assert.Equal(t, config.MediaBackendSimulated, b.Name())
	}
}
