package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Manual is a deterministic Scheduler whose clock only moves on Advance.
// Callbacks run synchronously on the goroutine calling Advance, in
// deadline order.
type Manual struct {
	mu    sync.Mutex
	now   time.Time
	seq   uint64
	tasks map[uint64]*manualTask
}

// NewManual creates a manual scheduler starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start, tasks: make(map[uint64]*manualTask)}
}

type manualTask struct {
	m      *Manual
	id     uint64
	at     time.Time
	period time.Duration
	fn     func()
}

func (t *manualTask) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if _, ok := t.m.tasks[t.id]; !ok {
		return false
	}
	delete(t.m.tasks, t.id)
	return true
}

// Now returns the manual clock.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// After schedules fn to run once d from now.
func (m *Manual) After(d time.Duration, fn func()) Task {
	return m.add(d, 0, fn)
}

// Every schedules fn to run every d.
func (m *Manual) Every(d time.Duration, fn func()) Task {
	return m.add(d, d, fn)
}

func (m *Manual) add(d, period time.Duration, fn func()) Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTask{m: m, id: m.seq, at: m.now.Add(d), period: period, fn: fn}
	m.tasks[t.id] = t
	return t
}

// Pending returns the number of scheduled tasks.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Advance moves the clock forward by d, running every task that becomes
// due. Tasks scheduled by callbacks run in the same call if they fall due
// before the new time.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next := m.nextDue(target)
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = next.at
		if next.period > 0 {
			next.at = next.at.Add(next.period)
		} else {
			delete(m.tasks, next.id)
		}
		fn := next.fn
		m.mu.Unlock()

		fn()
	}
}

func (m *Manual) nextDue(target time.Time) *manualTask {
	due := make([]*manualTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		if !t.at.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].id < due[j].id
		}
		return due[i].at.Before(due[j].at)
	})
	return due[0]
}
