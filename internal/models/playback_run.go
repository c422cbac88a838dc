package models

import (
	"time"

	"github.com/google/uuid"
)

// PlaybackRun records one play attempt of a montage
type PlaybackRun struct {
	ID        uuid.UUID  `json:"id" gorm:"type:text;primaryKey;column:id"`
	MontageID uuid.UUID  `json:"montage_id" gorm:"type:text;not null;column:montage_id"`
	SessionID string     `json:"session_id" gorm:"type:text;not null;column:session_id"`
	Outcome   RunOutcome `json:"outcome" gorm:"type:text;not null;column:outcome"`
	Elapsed   float64    `json:"elapsed" gorm:"type:real;not null;default:0;column:elapsed"` // seconds of audio played
	Error     *string    `json:"error,omitempty" gorm:"type:text;column:error"`
	StartedAt time.Time  `json:"started_at" gorm:"type:datetime;not null;column:started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" gorm:"type:datetime;column:ended_at"`
}

// NewPlaybackRun creates a run in the playing state
func NewPlaybackRun(montageID uuid.UUID, sessionID string, startedAt time.Time) *PlaybackRun {
	return &PlaybackRun{
		ID:        uuid.New(),
		MontageID: montageID,
		SessionID: sessionID,
		Outcome:   RunOutcomePlaying,
		StartedAt: startedAt.UTC(),
	}
}

// Finish closes the run with its outcome. A run that already ended is left
// untouched and Finish reports false.
func (r *PlaybackRun) Finish(outcome RunOutcome, elapsed float64, cause error, at time.Time) bool {
	if r.Outcome.IsFinal() {
		return false
	}
	ended := at.UTC()
	r.Outcome = outcome
	r.Elapsed = elapsed
	r.EndedAt = &ended
	if cause != nil {
		msg := cause.Error()
		r.Error = &msg
	}
	return true
}

// Duration returns the wall time the run lasted, or zero while it is open
func (r *PlaybackRun) Duration() time.Duration {
	if r.EndedAt == nil {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}
