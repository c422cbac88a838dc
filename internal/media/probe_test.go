package media

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestInterpretProbe(t *testing.T) {
	tests := []struct {
		name         string
		result       *ffprobeResult
		wantErr      bool
		wantDuration float64
		wantKind     Kind
		wantCodec    string
	}{
		{
			name: "video with audio track",
			result: &ffprobeResult{
				Streams: []ffprobeStream{
					{CodecType: "audio", CodecName: "aac"},
					{CodecType: "video", CodecName: "h264", Duration: "12.5"},
				},
				Format: ffprobeFormat{Duration: "12.6"},
			},
			wantDuration: 12.5,
			wantKind:     KindVideo,
			wantCodec:    "h264",
		},
		{
			name: "duration from format only",
			result: &ffprobeResult{
				Streams: []ffprobeStream{{CodecType: "video", CodecName: "vp9"}},
				Format:  ffprobeFormat{Duration: "8.25"},
			},
			wantDuration: 8.25,
			wantKind:     KindVideo,
			wantCodec:    "vp9",
		},
		{
			name: "audio only",
			result: &ffprobeResult{
				Streams: []ffprobeStream{{CodecType: "audio", CodecName: "mp3", Duration: "180.5"}},
			},
			wantDuration: 180.5,
			wantKind:     KindAudio,
			wantCodec:    "mp3",
		},
		{
			name: "no duration",
			result: &ffprobeResult{
				Streams: []ffprobeStream{{CodecType: "video", CodecName: "h264"}},
			},
			wantErr: true,
		},
		{
			name: "no playable stream",
			result: &ffprobeResult{
				Streams: []ffprobeStream{{CodecType: "subtitle", CodecName: "srt"}},
				Format:  ffprobeFormat{Duration: "30"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := interpretProbe(tt.result)

			if tt.wantErr {
				if !errors.Is(err, ErrInvalidFile) {
					t.Errorf("interpretProbe() error = %v, want ErrInvalidFile", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("interpretProbe() unexpected error: %v", err)
			}
			if result.Duration != tt.wantDuration {
				t.Errorf("Duration = %v, want %v", result.Duration, tt.wantDuration)
			}
			if result.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", result.Kind, tt.wantKind)
			}
			if result.Codec != tt.wantCodec {
				t.Errorf("Codec = %v, want %v", result.Codec, tt.wantCodec)
			}
		})
	}
}

func TestFFprobeJSONParsing(t *testing.T) {
	sampleJSON := `{
		"streams": [
			{"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080, "duration": "8.000000"},
			{"index": 1, "codec_name": "aac", "codec_type": "audio", "channels": 2}
		],
		"format": {"filename": "clip.mp4", "duration": "8.021000", "size": "7500000"}
	}`

	var raw ffprobeResult
	if err := json.Unmarshal([]byte(sampleJSON), &raw); err != nil {
		t.Fatalf("Failed to parse sample JSON: %v", err)
	}

	result, err := interpretProbe(&raw)
	if err != nil {
		t.Fatalf("interpretProbe failed: %v", err)
	}
	if result.Duration != 8 {
		t.Errorf("Duration = %v, want 8", result.Duration)
	}
	if result.Kind != KindVideo {
		t.Errorf("Kind = %v, want video", result.Kind)
	}
}

func TestProbeFileErrors(t *testing.T) {
	if err := CheckFFprobeInstalled(); err != nil {
		t.Skip("FFprobe not installed, skipping integration tests")
	}

	_, err := ProbeFile(context.Background(), "/nonexistent/file.mp4")
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("ProbeFile() error = %v, want ErrFileNotFound", err)
	}
}

func TestProbeFileTimeout(t *testing.T) {
	if err := CheckFFprobeInstalled(); err != nil {
		t.Skip("FFprobe not installed, skipping integration tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(10 * time.Millisecond)

	_, err := ProbeFile(ctx, "/tmp/nonexistent-file-for-timeout-test.mp3")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("ProbeFile() with expired context error = %v, want ErrTimeout", err)
	}
}

func TestKindIsValid(t *testing.T) {
	if !KindAudio.IsValid() || !KindVideo.IsValid() {
		t.Error("audio and video kinds must be valid")
	}
	if Kind("image").IsValid() {
		t.Error("image kind must be invalid")
	}
}
