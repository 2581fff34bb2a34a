// Package looper provides the single logical main thread that every player
// operation and every engine callback runs on.
package looper

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrClosed is returned by Invoke after the loop was closed.
var ErrClosed = errors.New("looper closed")

// Handler accepts work for the main thread.
type Handler interface {
	// Post queues fn behind the work already queued.
	Post(fn func())
	// PostDelayed queues fn once d has elapsed. The returned func cancels it.
	PostDelayed(d time.Duration, fn func()) (cancel func())
}

// Loop runs posted tasks one at a time on its own goroutine. The queue is
// unbounded so a task may post any number of follow-ups without blocking.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	startOnce sync.Once
}

// New creates a loop. buffer is the initial queue capacity.
func New(buffer int) *Loop {
	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		queue:  make([]func(), 0, max(buffer, 0)),
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start launches the loop goroutine. Calling it again has no effect.
func (l *Loop) Start() {
	l.startOnce.Do(func() {
		go l.run()
	})
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			return
		case <-l.wake:
		}
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			if l.ctx.Err() != nil {
				return
			}
			fn()
		}
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

// Post implements Handler. It never blocks. Tasks posted after Close are dropped.
func (l *Loop) Post(fn func()) {
	if l.ctx.Err() != nil {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// PostDelayed implements Handler.
func (l *Loop) PostDelayed(d time.Duration, fn func()) func() {
	var cancelled atomic.Bool
	timer := time.AfterFunc(d, func() {
		l.Post(func() {
			if !cancelled.Load() {
				fn()
			}
		})
	})
	return func() {
		cancelled.Store(true)
		timer.Stop()
	}
}

// Invoke runs fn on the loop and waits for it to finish.
// It must not be called from the loop goroutine itself.
func (l *Loop) Invoke(fn func()) error {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})

	select {
	case <-finished:
		return nil
	case <-l.ctx.Done():
		return ErrClosed
	}
}

// Close stops the loop. Queued tasks that did not run yet are dropped.
func (l *Loop) Close() {
	l.cancel()
	l.startOnce.Do(func() { close(l.done) })
	<-l.done
}
