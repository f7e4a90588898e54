package scheduler

import (
	"sync"
	"time"
)

// Task is a handle to a scheduled function.
type Task interface {
	// Stop cancels the task. It reports whether the task was still
	// pending; a running callback is not interrupted.
	Stop() bool
}

// Scheduler runs functions after a delay or periodically.
type Scheduler interface {
	Now() time.Time
	After(d time.Duration, fn func()) Task
	Every(d time.Duration, fn func()) Task
}

// New returns a Scheduler backed by runtime timers.
func New() Scheduler {
	return realScheduler{}
}

type realScheduler struct{}

func (realScheduler) Now() time.Time { return time.Now() }

func (realScheduler) After(d time.Duration, fn func()) Task {
	return time.AfterFunc(d, fn)
}

func (realScheduler) Every(d time.Duration, fn func()) Task {
	t := &periodic{stopCh: make(chan struct{})}
	go t.loop(d, fn)
	return t
}

type periodic struct {
	once   sync.Once
	stopCh chan struct{}
}

func (p *periodic) loop(d time.Duration, fn func()) {
	ticker := time.NewTicker(d)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fn()
		case <-p.stopCh:
			return
		}
	}
}

func (p *periodic) Stop() bool {
	stopped := false
	p.once.Do(func() {
		close(p.stopCh)
		stopped = true
	})
	return stopped
}
