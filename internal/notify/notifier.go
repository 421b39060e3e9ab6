// Package notify implements the per-path change subscriber registry.
package notify

import (
	"encoding/json"
	"sync"

	"github.com/bassista/go_scrapbook/internal/logger"
)

// Change is delivered to subscribers of Path after every successful write,
// local or observed from another store sharing the same backend.
type Change struct {
	Path  string
	Value json.RawMessage
	// Origin identifies the writer; bindings use it to ignore echoes of their own saves.
	Origin string
	// External is true when the write was made by another store instance.
	External bool
}

// Listener receives changes for a subscribed path.
type Listener func(Change)

type subscription struct {
	id       uint64
	listener Listener
}

// Notifier is a registry of listeners keyed by path. It does not deduplicate:
// every Notify reaches every listener of the path exactly once, in
// registration order. It is safe for concurrent use.
type Notifier struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	nextID uint64
}

// New creates an empty notifier.
func New() *Notifier {
	return &Notifier{subs: make(map[string][]subscription)}
}

// Subscribe registers listener for path and returns a function that removes it.
// Calling the returned function more than once is harmless.
func (n *Notifier) Subscribe(path string, listener Listener) (unsubscribe func()) {
	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.subs[path] = append(n.subs[path], subscription{id: id, listener: listener})
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { n.remove(path, id) })
	}
}

func (n *Notifier) remove(path string, id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	subs := n.subs[path]
	for i, s := range subs {
		if s.id == id {
			// Copy so an in-flight Notify iterating the old slice is unaffected.
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(n.subs, path)
			} else {
				n.subs[path] = next
			}
			return
		}
	}
}

// Notify delivers change to every listener registered for change.Path.
// Listeners run on the caller's goroutine, outside the registry lock, so a
// listener may subscribe or unsubscribe without deadlocking.
// A panicking listener is logged and does not prevent delivery to the rest.
func (n *Notifier) Notify(change Change) {
	n.mu.RLock()
	subs := n.subs[change.Path]
	n.mu.RUnlock()

	for _, s := range subs {
		n.deliver(s, change)
	}
}

func (n *Notifier) deliver(s subscription, change Change) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.WithComponent("notify").Errorf("listener for %s panicked: %v", change.Path, rec)
		}
	}()
	s.listener(change)
}

// Count returns the number of listeners registered for path.
func (n *Notifier) Count(path string) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs[path])
}
