package looper

import (
	"sort"
	"sync"
	"time"
)

type delayedTask struct {
	due       time.Duration
	seq       int
	fn        func()
	cancelled bool
}

// Manual is a Handler driven explicitly by the caller, with a virtual clock.
type Manual struct {
	mu      sync.Mutex
	now     time.Duration
	seq     int
	queue   []func()
	delayed []*delayedTask
}

// NewManual creates a manual handler at virtual time zero.
func NewManual() *Manual {
	return &Manual{}
}

// Post implements Handler.
func (m *Manual) Post(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, fn)
}

// PostDelayed implements Handler.
func (m *Manual) PostDelayed(d time.Duration, fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	task := &delayedTask{due: m.now + d, seq: m.seq, fn: fn}
	m.delayed = append(m.delayed, task)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		task.cancelled = true
	}
}

// RunPending runs queued tasks, including those they post, until none are left.
// It returns the number of tasks run.
func (m *Manual) RunPending() int {
	n := 0
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return n
		}
		fn := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		fn()
		n++
	}
}

// Advance moves the virtual clock forward by d, running every delayed task
// that falls due in order, each followed by the work it posted.
func (m *Manual) Advance(d time.Duration) {
	m.RunPending()

	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		task := m.nextDueLocked(target)
		if task == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = task.due
		m.mu.Unlock()

		task.fn()
		m.RunPending()
	}
}

// nextDueLocked removes and returns the earliest live task due at or before target.
func (m *Manual) nextDueLocked(target time.Duration) *delayedTask {
	live := m.delayed[:0]
	for _, t := range m.delayed {
		if !t.cancelled {
			live = append(live, t)
		}
	}
	m.delayed = live

	sort.SliceStable(m.delayed, func(i, j int) bool {
		if m.delayed[i].due == m.delayed[j].due {
			return m.delayed[i].seq < m.delayed[j].seq
		}
		return m.delayed[i].due < m.delayed[j].due
	})

	if len(m.delayed) == 0 || m.delayed[0].due > target {
		return nil
	}
	task := m.delayed[0]
	m.delayed = m.delayed[1:]
	return task
}

// Pending returns the number of queued immediate tasks.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Now returns the virtual time.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}
