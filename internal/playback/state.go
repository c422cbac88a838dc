package playback

// State is the lifecycle state of a playback session
type State string

// Session state constants
const (
	StateIdle     State = "idle"     // Nothing running, initial state
	StateStarting State = "starting" // Master clock start requested
	StatePlaying  State = "playing"  // Loop and watchdog armed
	StateEnded    State = "ended"    // Clock or timeline reached its end
	StateStopped  State = "stopped"  // Torn down after a clock error
)

// String returns the string representation of the session state
func (s State) String() string {
	return string(s)
}

// IsValid checks if the state is a known valid value
func (s State) IsValid() bool {
	switch s {
	case StateIdle, StateStarting, StatePlaying, StateEnded, StateStopped:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if a transition from current state to newState is valid
func (s State) CanTransitionTo(newState State) bool {
	switch s {
	case StateIdle:
		// From idle, can only start
		return newState == StateStarting
	case StateStarting:
		// Clock started, autoplay refused or stopped mid-start, or clock failed
		return newState == StatePlaying || newState == StateIdle || newState == StateStopped
	case StatePlaying:
		return newState == StateEnded || newState == StateStopped || newState == StateIdle
	case StateEnded, StateStopped:
		// Terminal until reset
		return newState == StateIdle
	default:
		return false
	}
}

// IsTerminal reports whether the session finished and awaits a reset
func (s State) IsTerminal() bool {
	return s == StateEnded || s == StateStopped
}
