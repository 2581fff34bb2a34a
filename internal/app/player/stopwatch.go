package player

import "time"

// StopWatch measures simulated playback time. Elapsed time advances at the
// speed multiplier while running.
type StopWatch struct {
	now func() time.Time

	running     bool
	startedAt   time.Time
	accumulated time.Duration
	speed       float64
}

// NewStopWatch creates a stopped stopwatch. A nil clock uses time.Now.
func NewStopWatch(clock func() time.Time) *StopWatch {
	if clock == nil {
		clock = time.Now
	}
	return &StopWatch{now: clock, speed: 1}
}

// Start resumes counting. It has no effect while running.
func (s *StopWatch) Start() {
	if s.running {
		return
	}
	s.running = true
	s.startedAt = s.now()
}

// Stop pauses counting and keeps the elapsed time.
func (s *StopWatch) Stop() {
	if !s.running {
		return
	}
	s.accumulated += s.sinceStart()
	s.running = false
}

// Reset clears the elapsed time. A running stopwatch keeps running.
func (s *StopWatch) Reset() {
	s.accumulated = 0
	if s.running {
		s.startedAt = s.now()
	}
}

// IsRunning reports whether the stopwatch is counting.
func (s *StopWatch) IsRunning() bool {
	return s.running
}

// SetSpeedMultiplier changes how fast elapsed time advances from now on.
func (s *StopWatch) SetSpeedMultiplier(speed float32) {
	if s.running {
		s.accumulated += s.sinceStart()
		s.startedAt = s.now()
	}
	s.speed = float64(speed)
}

// Elapsed returns the counted time.
func (s *StopWatch) Elapsed() time.Duration {
	if !s.running {
		return s.accumulated
	}
	return s.accumulated + s.sinceStart()
}

// ElapsedMs returns Elapsed in milliseconds.
func (s *StopWatch) ElapsedMs() int64 {
	return s.Elapsed().Milliseconds()
}

func (s *StopWatch) sinceStart() time.Duration {
	return time.Duration(float64(s.now().Sub(s.startedAt)) * s.speed)
}
