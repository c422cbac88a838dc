package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/stwalsh4118/montage/internal/logger"
)

// Timeout for FFprobe execution
const ffprobeTimeout = 30 * time.Second

// Kind classifies a media asset by its primary stream
type Kind string

const (
	// KindAudio assets can drive the master clock
	KindAudio Kind = "audio"
	// KindVideo assets back montage segments
	KindVideo Kind = "video"
)

// IsValid reports whether the kind is known
func (k Kind) IsValid() bool {
	return k == KindAudio || k == KindVideo
}

// Probe errors
var (
	ErrFFprobeNotFound = errors.New("ffprobe not found in PATH")
	ErrFileNotFound    = errors.New("file not found or not readable")
	ErrInvalidFile     = errors.New("invalid or corrupted media file")
	ErrTimeout         = errors.New("ffprobe execution timed out")
)

// ffprobeResult is the subset of FFprobe's JSON output the service reads
type ffprobeResult struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"` // "video" or "audio"
	Duration  string `json:"duration,omitempty"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

// ProbeResult describes a probed media file
type ProbeResult struct {
	Duration float64 // seconds
	Kind     Kind
	Codec    string
}

// CheckFFprobeInstalled checks if FFprobe is available in PATH
func CheckFFprobeInstalled() error {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return ErrFFprobeNotFound
	}
	return nil
}

// ProbeFile executes FFprobe on the given file and returns its duration and kind
func ProbeFile(ctx context.Context, filePath string) (*ProbeResult, error) {
	if err := CheckFFprobeInstalled(); err != nil {
		return nil, err
	}

	logger.Log.Debug().
		Str("file_path", filePath).
		Msg("Probing media file with FFprobe")

	ctx, cancel := context.WithTimeout(ctx, ffprobeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx,
		"ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)

	output, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			logger.Log.Error().
				Str("file_path", filePath).
				Msg("FFprobe execution timed out")
			return nil, ErrTimeout
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			logger.Log.Error().
				Str("file_path", filePath).
				Str("stderr", string(exitErr.Stderr)).
				Msg("FFprobe execution failed")
			return nil, fmt.Errorf("%w: %s", ErrInvalidFile, exitErr.Stderr)
		}
		return nil, fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}

	var raw ffprobeResult
	if err := json.Unmarshal(output, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	result, err := interpretProbe(&raw)
	if err != nil {
		return nil, err
	}

	logger.Log.Info().
		Str("file_path", filePath).
		Float64("duration", result.Duration).
		Str("kind", string(result.Kind)).
		Str("codec", result.Codec).
		Msg("Probed media file")

	return result, nil
}

// interpretProbe picks the primary stream and the best available duration.
// A video stream makes the asset a video even when it also carries audio.
func interpretProbe(raw *ffprobeResult) (*ProbeResult, error) {
	var primary *ffprobeStream
	for i := range raw.Streams {
		stream := &raw.Streams[i]
		if stream.CodecType == string(KindVideo) {
			primary = stream
			break
		}
		if stream.CodecType == string(KindAudio) && primary == nil {
			primary = stream
		}
	}
	if primary == nil {
		return nil, fmt.Errorf("%w: no audio or video stream", ErrInvalidFile)
	}

	result := &ProbeResult{Kind: Kind(primary.CodecType), Codec: primary.CodecName}

	// Stream duration first, then the container's
	for _, candidate := range []string{primary.Duration, raw.Format.Duration} {
		if candidate == "" {
			continue
		}
		if d, err := strconv.ParseFloat(candidate, 64); err == nil && d > 0 {
			result.Duration = d
			break
		}
	}
	if result.Duration == 0 {
		return nil, fmt.Errorf("%w: could not determine duration", ErrInvalidFile)
	}

	return result, nil
}
