package models

// Media kind constants
const (
	MediaKindAudio = "audio"
	MediaKindVideo = "video"
)

// RunOutcome describes how a playback run ended
type RunOutcome string

// Playback run outcome constants
const (
	RunOutcomePlaying             RunOutcome = "playing"
	RunOutcomeCompleted           RunOutcome = "completed"
	RunOutcomeStopped             RunOutcome = "stopped"
	RunOutcomeFailed              RunOutcome = "failed"
	RunOutcomeInteractionRequired RunOutcome = "interaction_required"
	RunOutcomeInterrupted         RunOutcome = "interrupted"
)

// String returns the string representation of the outcome
func (o RunOutcome) String() string {
	return string(o)
}

// IsFinal reports whether the run has ended
func (o RunOutcome) IsFinal() bool {
	return o != RunOutcomePlaying
}
