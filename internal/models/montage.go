package models

import (
	"time"

	"github.com/google/uuid"
)

// Montage is a set of video clips played in lockstep with one audio track
type Montage struct {
	ID                uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	Name              string    `json:"name" gorm:"type:text;not null;uniqueIndex;column:name" validate:"required,min=1,max=255"`
	AudioMediaID      uuid.UUID `json:"audio_media_id" gorm:"type:text;not null;column:audio_media_id" validate:"required"`
	MontageStartPhase int       `json:"montage_start_phase" gorm:"type:integer;not null;default:1;column:montage_start_phase"`
	CreatedAt         time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
	UpdatedAt         time.Time `json:"updated_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:updated_at"`

	Audio  *MediaAsset     `json:"audio,omitempty" gorm:"foreignKey:AudioMediaID"`
	Clips  []*MontageClip  `json:"clips,omitempty" gorm:"foreignKey:MontageID"`
	Phases []*MontagePhase `json:"phases,omitempty" gorm:"foreignKey:MontageID"`
}

// NewMontage creates a new Montage with generated UUID and timestamps
func NewMontage(name string, audioMediaID uuid.UUID, montageStartPhase int) *Montage {
	now := time.Now().UTC()
	return &Montage{
		ID:                uuid.New(),
		Name:              name,
		AudioMediaID:      audioMediaID,
		MontageStartPhase: montageStartPhase,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// MontageClip is one entry of a montage's ordered clip list
type MontageClip struct {
	ID        uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	MontageID uuid.UUID `json:"montage_id" gorm:"type:text;not null;column:montage_id" validate:"required"`
	MediaID   uuid.UUID `json:"media_id" gorm:"type:text;not null;column:media_id" validate:"required"`
	Position  int       `json:"position" gorm:"type:integer;not null;column:position" validate:"gte=0"`
	Duration  float64   `json:"duration" gorm:"type:real;not null;column:duration" validate:"gt=0"` // seconds on the timeline
	CreatedAt time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`

	Media *MediaAsset `json:"media,omitempty" gorm:"foreignKey:MediaID"`
}

// NewMontageClip creates a new MontageClip with generated UUID and timestamp
func NewMontageClip(montageID, mediaID uuid.UUID, position int, duration float64) *MontageClip {
	return &MontageClip{
		ID:        uuid.New(),
		MontageID: montageID,
		MediaID:   mediaID,
		Position:  position,
		Duration:  duration,
		CreatedAt: time.Now().UTC(),
	}
}

// MontagePhase marks the elapsed time at which a phase begins
type MontagePhase struct {
	ID           uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	MontageID    uuid.UUID `json:"montage_id" gorm:"type:text;not null;column:montage_id" validate:"required"`
	Phase        int       `json:"phase" gorm:"type:integer;not null;column:phase"`
	StartSeconds float64   `json:"start_seconds" gorm:"type:real;not null;column:start_seconds" validate:"gte=0"`
	CreatedAt    time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
}

// NewMontagePhase creates a new MontagePhase with generated UUID and timestamp
func NewMontagePhase(montageID uuid.UUID, phase int, startSeconds float64) *MontagePhase {
	return &MontagePhase{
		ID:           uuid.New(),
		MontageID:    montageID,
		Phase:        phase,
		StartSeconds: startSeconds,
		CreatedAt:    time.Now().UTC(),
	}
}
