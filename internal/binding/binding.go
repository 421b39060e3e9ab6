// Package binding exposes a stored document to a single consumer as an
// optimistic in-memory value with debounced persistence.
package binding

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bassista/go_scrapbook/internal/logger"
	"github.com/bassista/go_scrapbook/internal/notify"
	"github.com/bassista/go_scrapbook/internal/scheduler"
)

// DefaultDebounce is the quiet period between the last Set and the write.
const DefaultDebounce = 800 * time.Millisecond

type Status string

const (
	StatusLoading Status = "loading"
	StatusIdle    Status = "idle"
	StatusSaving  Status = "saving"
	StatusSaved   Status = "saved"
	StatusError   Status = "error"
)

// Backend is the part of the document store a binding needs.
type Backend interface {
	Load(ctx context.Context, path string) json.RawMessage
	SaveFrom(ctx context.Context, origin, path string, value any) bool
	Subscribe(path string, listener notify.Listener) (unsubscribe func())
}

// State is a consistent snapshot of a binding.
type State[T any] struct {
	Value     T
	Status    Status
	LastSaved time.Time
	Ready     bool
}

type settings struct {
	debounce time.Duration
	sched    scheduler.Scheduler
}

type Option func(*settings)

// WithDebounce sets the quiet period. Non-positive values are ignored.
func WithDebounce(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// WithScheduler replaces the wall-clock scheduler.
func WithScheduler(sched scheduler.Scheduler) Option {
	return func(s *settings) { s.sched = sched }
}

// Binding holds the working copy of one document for one consumer.
type Binding[T any] struct {
	id       string
	path     string
	backend  Backend
	sched    scheduler.Scheduler
	debounce time.Duration
	ctx      context.Context
	ready    chan struct{}

	// saveMu serializes writes so at most one is in flight per binding.
	saveMu sync.Mutex

	mu        sync.Mutex
	value     T
	status    Status
	lastSaved time.Time
	loaded    bool
	touched   bool // value changed locally or externally since Bind
	gen       uint64
	savedGen  uint64 // generation known to be durable
	pending   scheduler.Task
	closed    bool

	unsubscribe func()

	watchMu  sync.Mutex
	watchers map[int]func(State[T])
	nextW    int
}

// Bind creates a binding for path seeded with initial and starts loading the
// stored value in the background. The stored value replaces initial unless
// the consumer changed the value before the load finished.
func Bind[T any](ctx context.Context, backend Backend, path string, initial T, opts ...Option) *Binding[T] {
	cfg := settings{debounce: DefaultDebounce, sched: scheduler.Real{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	b := &Binding[T]{
		id:       uuid.NewString(),
		path:     path,
		backend:  backend,
		sched:    cfg.sched,
		debounce: cfg.debounce,
		ctx:      context.WithoutCancel(ctx),
		ready:    make(chan struct{}),
		value:    initial,
		status:   StatusLoading,
		watchers: make(map[int]func(State[T])),
	}
	b.unsubscribe = backend.Subscribe(path, b.onChange)

	go b.load(ctx)
	return b
}

func (b *Binding[T]) load(ctx context.Context) {
	raw := b.backend.Load(ctx, b.path)

	b.mu.Lock()
	if raw != nil && string(raw) != "null" && !b.touched {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			logger.WithComponent("binding").Warnf("stored %s does not fit the bound type, keeping initial value: %v", b.path, err)
		} else {
			b.value = v
		}
	}
	if b.status == StatusLoading {
		b.status = StatusIdle
	}
	b.loaded = true
	st := b.stateLocked()
	b.mu.Unlock()

	close(b.ready)
	b.emit(st)
}

// ID identifies the binding as a writer; its own saves are never applied back.
func (b *Binding[T]) ID() string { return b.id }

// Path is the document path the binding is attached to.
func (b *Binding[T]) Path() string { return b.path }

// Ready is closed once the initial load has finished.
func (b *Binding[T]) Ready() <-chan struct{} { return b.ready }

// Value returns the current working copy, which may not be saved yet.
func (b *Binding[T]) Value() T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value
}

// Status returns the save status alone; use State to read it together with the value.
func (b *Binding[T]) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// State returns value, status and lastSaved taken under one lock.
func (b *Binding[T]) State() State[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *Binding[T]) stateLocked() State[T] {
	return State[T]{Value: b.value, Status: b.status, LastSaved: b.lastSaved, Ready: b.loaded}
}

// Set replaces the value and schedules a debounced save.
func (b *Binding[T]) Set(v T) {
	b.Update(func(T) T { return v })
}

// Update applies fn to the current value under the binding lock, so
// successive calls never lose each other's changes. fn must not call back
// into the binding and should return a new value rather than mutate prev.
func (b *Binding[T]) Update(fn func(prev T) T) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		logger.WithComponent("binding").Warnf("ignoring update to closed binding for %s", b.path)
		return
	}
	b.value = fn(b.value)
	b.touched = true
	b.gen++
	b.status = StatusSaving
	if b.pending != nil {
		b.pending.Stop()
	}
	gen := b.gen
	b.pending = b.sched.AfterFunc(b.debounce, func() { b.flush(gen) })
	st := b.stateLocked()
	b.mu.Unlock()

	b.emit(st)
}

// flush writes the value scheduled by generation gen, unless a newer Set
// superseded it.
func (b *Binding[T]) flush(gen uint64) {
	b.saveMu.Lock()
	defer b.saveMu.Unlock()

	b.mu.Lock()
	if gen != b.gen || gen == b.savedGen {
		b.mu.Unlock()
		return
	}
	b.pending = nil
	b.mu.Unlock()

	b.write(b.ctx)
}

// SaveNow cancels any pending debounced save and writes the current value
// immediately, reporting whether the write succeeded.
func (b *Binding[T]) SaveNow(ctx context.Context) bool {
	b.saveMu.Lock()
	defer b.saveMu.Unlock()

	b.mu.Lock()
	if b.pending != nil {
		b.pending.Stop()
		b.pending = nil
	}
	b.status = StatusSaving
	st := b.stateLocked()
	b.mu.Unlock()
	b.emit(st)

	return b.write(ctx)
}

// write persists the current value. Callers hold saveMu.
func (b *Binding[T]) write(ctx context.Context) bool {
	b.mu.Lock()
	gen := b.gen
	raw, err := json.Marshal(b.value)
	b.mu.Unlock()

	ok := false
	if err != nil {
		logger.WithComponent("binding").Errorf("cannot serialize %s: %v", b.path, err)
	} else {
		ok = b.backend.SaveFrom(ctx, b.id, b.path, json.RawMessage(raw))
	}

	b.mu.Lock()
	// A Set during the write keeps the binding in saving until its own flush.
	if gen == b.gen {
		if ok {
			b.status = StatusSaved
			b.savedGen = gen
			b.lastSaved = b.sched.Now()
		} else {
			b.status = StatusError
		}
	}
	st := b.stateLocked()
	b.mu.Unlock()

	b.emit(st)
	return ok
}

// onChange applies values written by other writers of the same path.
func (b *Binding[T]) onChange(c notify.Change) {
	if c.Origin == b.id {
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	current, err := json.Marshal(b.value)
	if err == nil && jsonEqual(current, c.Value) {
		b.mu.Unlock()
		return
	}
	var v T
	if err := json.Unmarshal(c.Value, &v); err != nil {
		b.mu.Unlock()
		logger.WithComponent("binding").Warnf("ignoring change to %s that does not fit the bound type: %v", b.path, err)
		return
	}

	// The external value is already durable; a pending local write is dropped.
	if b.pending != nil {
		b.pending.Stop()
		b.pending = nil
	}
	b.gen++
	b.savedGen = b.gen
	b.value = v
	b.touched = true
	b.status = StatusSaved
	b.lastSaved = b.sched.Now()
	st := b.stateLocked()
	b.mu.Unlock()

	logger.WithComponent("binding").Debugf("applied change to %s from %s", b.path, c.Origin)
	b.emit(st)
}

// Watch registers fn to receive a snapshot after every change of value or
// status. It returns a function that removes fn.
func (b *Binding[T]) Watch(fn func(State[T])) (cancel func()) {
	b.watchMu.Lock()
	id := b.nextW
	b.nextW++
	b.watchers[id] = fn
	b.watchMu.Unlock()

	return func() {
		b.watchMu.Lock()
		delete(b.watchers, id)
		b.watchMu.Unlock()
	}
}

func (b *Binding[T]) emit(st State[T]) {
	b.watchMu.Lock()
	fns := make([]func(State[T]), 0, len(b.watchers))
	for _, fn := range b.watchers {
		fns = append(fns, fn)
	}
	b.watchMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

// Close unsubscribes from changes and waits for any write in flight. If the
// current value is not durable yet it is written synchronously. Close reports
// false only if that final write failed.
func (b *Binding[T]) Close(ctx context.Context) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return true
	}
	b.closed = true
	if b.pending != nil {
		b.pending.Stop()
		b.pending = nil
	}
	b.mu.Unlock()

	b.unsubscribe()

	b.saveMu.Lock()
	defer b.saveMu.Unlock()

	b.mu.Lock()
	dirty := b.gen != b.savedGen
	b.mu.Unlock()
	if !dirty {
		return true
	}
	return b.write(ctx)
}

func jsonEqual(a, b []byte) bool {
	var av, bv any
	if err := json.Unmarshal(a, &av); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return false
	}
	return reflect.DeepEqual(av, bv)
}
