// Package playback provides the backend-neutral playback state types.
package playback

// State represents the lifecycle state of one playback session.
type State int

const (
	StateIdle      State = iota // Nothing loaded, or loaded but not yet preparing
	StatePreparing              // Media is being prepared for the first time
	StateBuffering              // Prepared media is waiting for data
	StateSeeking                // A seek is outstanding
	StateReady                  // Prepared and able to play, never started
	StatePlaying                // Media is playing
	StatePaused                 // Media was playing and is paused
	StateCompleted              // Reached the end of the media
	StateStopped                // Stopped by the caller
	StateReleased               // Backend released, terminal
	StateError                  // Playback failed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StateBuffering:
		return "buffering"
	case StateSeeking:
		return "seeking"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	case StateStopped:
		return "stopped"
	case StateReleased:
		return "released"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no transition may leave the state.
func (s State) IsTerminal() bool {
	return s == StateReleased
}

// CanRestart reports whether a restart is allowed from the state.
func (s State) CanRestart() bool {
	return s == StateIdle || s == StateCompleted
}

// RepeatMode defines the repeat behavior of the engine.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatOne
	RepeatAll
)

// String returns the repeat mode name.
func (m RepeatMode) String() string {
	switch m {
	case RepeatOff:
		return "off"
	case RepeatOne:
		return "one"
	case RepeatAll:
		return "all"
	default:
		return "unknown"
	}
}
