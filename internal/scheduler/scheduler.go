// Package scheduler provides the delayed-task primitive used for debounced
// writes. Production code uses the wall clock; tests drive a Manual clock.
package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Task is a pending delayed call.
type Task interface {
	// Stop prevents the call from running. It reports false if the call
	// already ran or was already stopped.
	Stop() bool
}

// Scheduler runs functions after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Task
	Now() time.Time
}

// Real schedules on the wall clock via time.AfterFunc.
type Real struct{}

func (Real) AfterFunc(d time.Duration, f func()) Task { return time.AfterFunc(d, f) }

func (Real) Now() time.Time { return time.Now() }

// Manual is a virtual clock. Calls run synchronously inside Advance, in due
// order, on the goroutine that advances the clock.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	pending []*manualTask
	seq     uint64
}

// NewManual creates a manual clock starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

type manualTask struct {
	m   *Manual
	due time.Time
	seq uint64
	f   func()
	// done is guarded by m.mu.
	done bool
}

func (t *manualTask) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	t.m.remove(t)
	return true
}

func (m *Manual) AfterFunc(d time.Duration, f func()) Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTask{m: m, due: m.now.Add(d), seq: m.seq, f: f}
	m.pending = append(m.pending, t)
	return t
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending returns the number of scheduled calls that have not run.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Advance moves the clock forward by d and runs every call that falls due,
// including calls scheduled by those calls within the window.
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
		next.done = true
		m.remove(next)
		if next.due.After(m.now) {
			m.now = next.due
		}
		m.mu.Unlock()

		next.f()
	}
}

func (m *Manual) nextDue(target time.Time) *manualTask {
	if len(m.pending) == 0 {
		return nil
	}
	sort.SliceStable(m.pending, func(i, j int) bool {
		if m.pending[i].due.Equal(m.pending[j].due) {
			return m.pending[i].seq < m.pending[j].seq
		}
		return m.pending[i].due.Before(m.pending[j].due)
	})
	if first := m.pending[0]; !first.due.After(target) {
		return first
	}
	return nil
}

func (m *Manual) remove(t *manualTask) {
	for i, p := range m.pending {
		if p == t {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return
		}
	}
}
