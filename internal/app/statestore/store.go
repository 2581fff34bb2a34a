// Package statestore keeps a short history of composite engine states used
// to detect transitions, such as a finished seek, that the engine does not
// report directly.
package statestore

import (
	"github.com/osa030/playmux/internal/infra/engine"
)

const (
	// FlagPlayWhenReady is OR'ed into a composite state when playWhenReady is set.
	FlagPlayWhenReady = 0x10000000

	// StateSeeking is a synthetic engine state pushed when a seek is issued.
	StateSeeking engine.State = 100

	historySize = 4
)

// Composite is an engine state with the playWhenReady flag folded in.
type Composite int

// State returns the engine state without the playWhenReady flag.
func (c Composite) State() engine.State {
	return engine.State(int(c) &^ FlagPlayWhenReady)
}

// PlayWhenReady returns the playWhenReady flag.
func (c Composite) PlayWhenReady() bool {
	return int(c)&FlagPlayWhenReady != 0
}

// GetState folds playWhenReady into state. The same pair always yields the same value.
func GetState(playWhenReady bool, state engine.State) Composite {
	c := Composite(state)
	if playWhenReady {
		c |= FlagPlayWhenReady
	}
	return c
}

// Store holds the last four distinct composite states, most recent last.
type Store struct {
	prev [historySize]Composite
}

// New creates a store filled with idle states.
func New() *Store {
	s := &Store{}
	s.Reset()
	return s
}

// Reset fills the history with idle states.
func (s *Store) Reset() {
	for i := range s.prev {
		s.prev[i] = GetState(false, engine.StateIdle)
	}
}

// MostRecentState returns the top of the history.
func (s *Store) MostRecentState() Composite {
	return s.prev[historySize-1]
}

// LastReportedPlayWhenReady returns the playWhenReady flag of the top of the history.
func (s *Store) LastReportedPlayWhenReady() bool {
	return s.MostRecentState().PlayWhenReady()
}

// SetMostRecentState pushes the composite of the pair unless it equals the top.
// It returns true when the history changed.
func (s *Store) SetMostRecentState(playWhenReady bool, state engine.State) bool {
	c := GetState(playWhenReady, state)
	if s.prev[historySize-1] == c {
		return false
	}

	copy(s.prev[:historySize-1], s.prev[1:])
	s.prev[historySize-1] = c
	return true
}

// MatchesHistory compares the newest len(states) entries with states, oldest
// first. With ignorePlayWhenReady the flag is masked on both sides.
// Patterns longer than the history never match.
func (s *Store) MatchesHistory(states []Composite, ignorePlayWhenReady bool) bool {
	if len(states) > historySize {
		return false
	}

	mask := ^Composite(0)
	if ignorePlayWhenReady {
		mask = ^Composite(FlagPlayWhenReady)
	}

	start := historySize - len(states)
	for i, want := range states {
		if s.prev[start+i]&mask != want&mask {
			return false
		}
	}
	return true
}

// History returns a copy of the history, oldest first.
func (s *Store) History() []Composite {
	out := make([]Composite, historySize)
	copy(out, s.prev[:])
	return out
}

// Seek completion is reported by engines in more than one order, depending
// on version and buffer state. Each of these is a finished seek.
var seekCompletedPatterns = [][]Composite{
	{Composite(StateSeeking), Composite(engine.StateBuffering), Composite(engine.StateReady)},
	{Composite(engine.StateBuffering), Composite(StateSeeking), Composite(engine.StateReady)},
	{Composite(StateSeeking), Composite(engine.StateReady), Composite(engine.StateBuffering), Composite(engine.StateReady)},
}

// SeekCompleted reports whether the history ends in a finished seek.
func (s *Store) SeekCompleted() bool {
	for _, p := range seekCompletedPatterns {
		if s.MatchesHistory(p, true) {
			return true
		}
	}
	return false
}
