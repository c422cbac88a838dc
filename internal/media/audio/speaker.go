//go:build (linux && cgo) || windows || darwin

package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"

	"github.com/stwalsh4118/montage/internal/logger"
	"github.com/stwalsh4118/montage/internal/media"
)

// Available reports whether this build can play audio
const Available = true

// speakerSampleRate is the output rate every decoded stream is resampled to
const speakerSampleRate = beep.SampleRate(44100)

var (
	speakerOnce    sync.Once
	speakerInitErr error
)

func initSpeaker() error {
	speakerOnce.Do(func() {
		speakerInitErr = speaker.Init(speakerSampleRate, speakerSampleRate.N(time.Second/10))
	})
	return speakerInitErr
}

// Speaker plays a local audio file through the default sound device. It is
// used as the master clock when the service runs with an audio backend.
type Speaker struct {
	mu sync.Mutex

	path string

	loaded    bool
	loadErr   error
	loading   bool
	queued    bool
	streamer  beep.StreamSeekCloser
	format    beep.Format
	tracker   *endTracker
	resampler *beep.Resampler
	ctrl      *beep.Ctrl
	rate      float64
	loop      bool
	closed    bool

	listeners media.Listeners
}

var _ media.Element = (*Speaker)(nil)

// NewSpeaker creates a paused speaker element for the file at path
func NewSpeaker(path string) *Speaker {
	return &Speaker{path: path, rate: 1.0}
}

// NewResolver resolves media ids to speaker elements using lookup to
// map an id to a local file path
func NewResolver(lookup func(mediaID string) (string, error)) media.Resolver {
	return media.ResolverFunc(func(mediaID string) (media.Element, error) {
		path, err := lookup(mediaID)
		if err != nil {
			return nil, &media.ResolveError{MediaID: mediaID, Cause: err}
		}
		return NewSpeaker(path), nil
	})
}

// Play implements media.Element
func (s *Speaker) Play() error {
	if err := s.ensureLoaded(); err != nil {
		return err
	}
	if err := initSpeaker(); err != nil {
		return fmt.Errorf("%w: %v", media.ErrAudioUnavailable, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return media.ErrElementClosed
	}

	wasPaused := s.pausedLocked()
	if s.queued {
		speaker.Lock()
		s.ctrl.Paused = false
		speaker.Unlock()
	} else {
		// The mixer drops a drained chain, so every queueing gets a fresh one.
		if s.tracker.ended.Load() {
			_ = s.streamer.Seek(0)
		}
		s.buildChainLocked()
		s.ctrl.Paused = false
		s.queued = true
		speaker.Play(s.ctrl)
	}
	s.mu.Unlock()

	if wasPaused {
		s.listeners.Emit(media.Event{Type: media.EventPlaying})
	}
	return nil
}

// Pause implements media.Element
func (s *Speaker) Pause() {
	s.mu.Lock()
	if s.ctrl == nil || s.pausedLocked() {
		s.mu.Unlock()
		return
	}
	speaker.Lock()
	s.ctrl.Paused = true
	speaker.Unlock()
	s.mu.Unlock()

	s.listeners.Emit(media.Event{Type: media.EventPause})
}

// Seek implements media.Element
func (s *Speaker) Seek(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streamer == nil {
		return
	}

	samples := s.format.SampleRate.N(time.Duration(seconds * float64(time.Second)))
	samples = max(0, min(samples, s.streamer.Len()))

	speaker.Lock()
	defer speaker.Unlock()
	if err := s.streamer.Seek(samples); err != nil {
		logger.Log.Warn().Err(err).Str("path", s.path).Msg("Failed to seek audio stream")
		return
	}
	s.tracker.ended.Store(false)
}

// CurrentTime implements media.Element
func (s *Speaker) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streamer == nil {
		return 0
	}

	speaker.Lock()
	pos := s.streamer.Position()
	speaker.Unlock()

	return s.format.SampleRate.D(pos).Seconds()
}

// Duration implements media.Element
func (s *Speaker) Duration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streamer == nil {
		return 0
	}
	return s.format.SampleRate.D(s.streamer.Len()).Seconds()
}

// Paused implements media.Element
func (s *Speaker) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pausedLocked()
}

// Ended implements media.Element
func (s *Speaker) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker != nil && s.tracker.ended.Load()
}

// SetLoop implements media.Element
func (s *Speaker) SetLoop(loop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loop = loop
	if s.tracker != nil {
		s.tracker.loop.Store(loop)
	}
}

// SetPlaybackRate implements media.Element
func (s *Speaker) SetPlaybackRate(rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rate <= 0 {
		return
	}
	s.rate = rate
	if s.resampler == nil {
		return
	}
	speaker.Lock()
	s.resampler.SetRatio(s.baseRatio() * rate)
	speaker.Unlock()
}

// PlaybackRate implements media.Element
func (s *Speaker) PlaybackRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

// Load implements media.Element
func (s *Speaker) Load() {
	s.mu.Lock()
	if s.loaded || s.loading {
		s.mu.Unlock()
		return
	}
	s.loading = true
	s.mu.Unlock()

	go func() {
		if err := s.ensureLoaded(); err != nil {
			s.listeners.Emit(media.Event{Type: media.EventError, Err: err})
		}
	}()
}

// ReadyState implements media.Element
func (s *Speaker) ReadyState() media.ReadyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streamer == nil {
		return media.HaveNothing
	}
	// Local files are fully available once decoded.
	return media.HaveEnoughData
}

// Subscribe implements media.Element
func (s *Speaker) Subscribe(l media.Listener) func() {
	return s.listeners.Add(l)
}

// Close implements media.Element
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.listeners.Clear()

	if s.ctrl != nil {
		speaker.Lock()
		s.ctrl.Paused = true
		s.ctrl.Streamer = nil
		speaker.Unlock()
	}
	if s.streamer != nil {
		return s.streamer.Close()
	}
	return nil
}

// ensureLoaded opens and decodes the file once, emitting EventLoadedMetadata
func (s *Speaker) ensureLoaded() error {
	s.mu.Lock()
	if s.loaded {
		err := s.loadErr
		s.mu.Unlock()
		return err
	}
	if s.closed {
		s.mu.Unlock()
		return media.ErrElementClosed
	}

	streamer, format, err := decodeFile(s.path)
	s.loaded = true
	s.loading = false
	if err != nil {
		s.loadErr = err
		s.mu.Unlock()
		logger.Log.Error().Err(err).Str("path", s.path).Msg("Failed to decode audio file")
		return err
	}

	s.streamer = streamer
	s.format = format
	s.buildChainLocked()
	s.mu.Unlock()

	s.listeners.Emit(media.Event{Type: media.EventLoadedMetadata})
	return nil
}

// buildChainLocked wraps the decoded stream in a fresh paused output chain
func (s *Speaker) buildChainLocked() {
	tracker := &endTracker{source: s.streamer}
	tracker.onEnd = func() { s.handleEnd(tracker) }
	tracker.loop.Store(s.loop)
	s.tracker = tracker
	s.resampler = beep.ResampleRatio(4, s.baseRatio()*s.rate, s.tracker)
	s.ctrl = &beep.Ctrl{Streamer: s.resampler, Paused: true}
}

// handleEnd runs on its own goroutine after the tracker drains the stream
func (s *Speaker) handleEnd(tracker *endTracker) {
	s.mu.Lock()
	if s.tracker != tracker {
		s.mu.Unlock()
		return
	}
	s.queued = false
	if s.ctrl != nil {
		speaker.Lock()
		s.ctrl.Paused = true
		speaker.Unlock()
	}
	s.mu.Unlock()

	s.listeners.Emit(media.Event{Type: media.EventPause}, media.Event{Type: media.EventEnded})
}

func (s *Speaker) pausedLocked() bool {
	if s.ctrl == nil {
		return true
	}
	speaker.Lock()
	defer speaker.Unlock()
	return s.ctrl.Paused
}

func (s *Speaker) baseRatio() float64 {
	return float64(s.format.SampleRate) / float64(speakerSampleRate)
}

// decodeFile picks a decoder by file extension
func decodeFile(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("%w: %v", media.ErrFileNotFound, err)
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".wav":
		streamer, format, err = wav.Decode(f)
	default:
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("%w: unsupported audio format %q", media.ErrInvalidFile, filepath.Ext(path))
	}
	if err != nil {
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("%w: %v", media.ErrInvalidFile, err)
	}
	return streamer, format, nil
}

// endTracker wraps the decoded stream, rewinding it when looping and
// reporting the end otherwise. It runs under the speaker lock and so only
// touches atomics.
type endTracker struct {
	source beep.StreamSeeker
	loop   atomic.Bool
	ended  atomic.Bool
	onEnd  func()
}

func (t *endTracker) Stream(samples [][2]float64) (int, bool) {
	if t.ended.Load() {
		return 0, false
	}

	filled := 0
	for filled < len(samples) {
		n, ok := t.source.Stream(samples[filled:])
		filled += n
		if ok && n > 0 {
			continue
		}
		if t.loop.Load() && t.source.Len() > 0 {
			if err := t.source.Seek(0); err != nil {
				break
			}
			continue
		}
		t.ended.Store(true)
		go t.onEnd()
		break
	}
	return filled, filled > 0
}

func (t *endTracker) Err() error {
	return t.source.Err()
}
