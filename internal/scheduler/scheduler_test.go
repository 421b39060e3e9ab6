package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

func TestManual_RunsOnlyDueCalls(t *testing.T) {
	m := NewManual(epoch)
	var ran []string

	m.AfterFunc(100*time.Millisecond, func() { ran = append(ran, "short") })
	m.AfterFunc(time.Second, func() { ran = append(ran, "long") })

	m.Advance(99 * time.Millisecond)
	assert.Empty(t, ran)

	m.Advance(time.Millisecond)
	assert.Equal(t, []string{"short"}, ran)
	assert.Equal(t, 1, m.Pending())

	m.Advance(time.Second)
	assert.Equal(t, []string{"short", "long"}, ran)
	assert.Equal(t, epoch.Add(1100*time.Millisecond), m.Now())
}

func TestManual_DueOrderAndTies(t *testing.T) {
	m := NewManual(epoch)
	var ran []int

	m.AfterFunc(20*time.Millisecond, func() { ran = append(ran, 3) })
	m.AfterFunc(10*time.Millisecond, func() { ran = append(ran, 1) })
	m.AfterFunc(10*time.Millisecond, func() { ran = append(ran, 2) })

	m.Advance(time.Minute)
	assert.Equal(t, []int{1, 2, 3}, ran)
}

func TestManual_Stop(t *testing.T) {
	m := NewManual(epoch)
	ran := false

	task := m.AfterFunc(time.Second, func() { ran = true })
	assert.True(t, task.Stop())
	assert.False(t, task.Stop())

	m.Advance(time.Hour)
	assert.False(t, ran)
	assert.Equal(t, 0, m.Pending())
}

func TestManual_StopAfterRun(t *testing.T) {
	m := NewManual(epoch)
	task := m.AfterFunc(time.Millisecond, func() {})
	m.Advance(time.Millisecond)
	assert.False(t, task.Stop())
}

func TestManual_CallsScheduledDuringAdvance(t *testing.T) {
	m := NewManual(epoch)
	var ran []string

	m.AfterFunc(10*time.Millisecond, func() {
		ran = append(ran, "outer")
		m.AfterFunc(10*time.Millisecond, func() { ran = append(ran, "inner") })
	})

	m.Advance(15 * time.Millisecond)
	assert.Equal(t, []string{"outer"}, ran)

	m.Advance(5 * time.Millisecond)
	assert.Equal(t, []string{"outer", "inner"}, ran)
}

func TestReal_AfterFunc(t *testing.T) {
	var fired atomic.Bool
	Real{}.AfterFunc(time.Millisecond, func() { fired.Store(true) })

	assert.Eventually(t, fired.Load, time.Second, time.Millisecond)
}

func TestReal_Stop(t *testing.T) {
	var fired atomic.Bool
	task := Real{}.AfterFunc(time.Hour, func() { fired.Store(true) })
	assert.True(t, task.Stop())
	assert.False(t, fired.Load())
}
