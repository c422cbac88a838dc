package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MediaAsset is an audio track or video clip a montage can play
type MediaAsset struct {
	ID        uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	URI       string    `json:"uri" gorm:"type:text;not null;uniqueIndex;column:uri" validate:"required"`
	Title     string    `json:"title" gorm:"type:text;not null;column:title" validate:"required"`
	Kind      string    `json:"kind" gorm:"type:text;not null;column:kind" validate:"oneof=audio video"`
	Duration  float64   `json:"duration" gorm:"type:real;not null;default:0;column:duration"` // seconds, 0 when unknown
	Codec     *string   `json:"codec,omitempty" gorm:"type:text;column:codec"`
	FileSize  *int64    `json:"file_size,omitempty" gorm:"type:integer;column:file_size"`
	CreatedAt time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
}

// NewMediaAsset creates a new MediaAsset with generated UUID and timestamp
func NewMediaAsset(uri, title, kind string, duration float64) *MediaAsset {
	return &MediaAsset{
		ID:        uuid.New(),
		URI:       uri,
		Title:     title,
		Kind:      kind,
		Duration:  duration,
		CreatedAt: time.Now().UTC(),
	}
}

// IsAudio reports whether the asset can drive a montage as master clock
func (m *MediaAsset) IsAudio() bool {
	return m.Kind == MediaKindAudio
}

// DurationString returns duration in HH:MM:SS format
func (m *MediaAsset) DurationString() string {
	total := int64(m.Duration)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
