package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryRepository keeps payloads in process memory. Several stores sharing one
// MemoryRepository observe each other's writes through Watch, which is how
// tests model two windows over the same physical storage.
type MemoryRepository struct {
	items *gocache.Cache

	mu       sync.RWMutex
	watchers map[int]*keyQueue
	nextID   int
}

// NewMemoryRepository creates an empty in-memory backend.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		items:    gocache.New(gocache.NoExpiration, 0),
		watchers: make(map[int]*keyQueue),
	}
}

func (r *MemoryRepository) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, found := r.items.Get(key)
	if !found {
		return nil, ErrNotFound
	}
	data := v.([]byte)
	return append([]byte(nil), data...), nil
}

func (r *MemoryRepository) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateKey(key); err != nil {
		return err
	}
	r.items.Set(key, append([]byte(nil), data...), gocache.NoExpiration)

	r.mu.RLock()
	for _, q := range r.watchers {
		q.push(key)
	}
	r.mu.RUnlock()
	return nil
}

func (r *MemoryRepository) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	for k := range r.items.Items() {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Watch delivers every Put made through this repository, including the
// caller's own writes; consumers filter by origin.
func (r *MemoryRepository) Watch(ctx context.Context, onChange func(key string)) error {
	q := newKeyQueue()

	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.watchers[id] = q
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.watchers, id)
			r.mu.Unlock()
		}()
		q.run(ctx, onChange)
	}()
	return nil
}

func (r *MemoryRepository) Close() error {
	r.items.Flush()
	return nil
}
