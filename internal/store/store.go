package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bassista/go_scrapbook/internal/logger"
	"github.com/bassista/go_scrapbook/internal/notify"
	"github.com/bassista/go_scrapbook/internal/repository"
)

// Logical documents used by the scrapbook.
const (
	PathTimeline     = "timeline_progress"
	PathBooks        = "book_projects"
	PathNotes        = "writing_notes"
	PathBookContent  = "book_content"
	PathMapLocations = "map_locations"
	PathAudioCache   = "audio_cache"
)

// DefaultNamespace prefixes every key written to the backend.
const DefaultNamespace = "jake_summer_"

// OriginRemote marks documents imported from the remote sync endpoint.
const OriginRemote = "remote"

// Envelope is the stored form of a document.
type Envelope struct {
	Value        json.RawMessage `json:"value"`
	LastModified int64           `json:"lastModified"`
	// Store is the id of the store instance that wrote the payload.
	Store string `json:"store,omitempty"`
	// Origin is the writer inside that store (a binding id, the store id, or OriginRemote).
	Origin string `json:"origin,omitempty"`
}

var errCorrupt = errors.New("corrupted document payload")

// Store is the key/value document store. Values are JSON documents addressed
// by logical path; the backend sees them under the namespace prefix.
type Store struct {
	id        string
	namespace string
	repo      repository.Repository
	notifier  *notify.Notifier
	now       func() time.Time

	mu    sync.RWMutex
	hooks []func(path string)
}

type Option func(*Store)

// WithNamespace overrides DefaultNamespace.
func WithNamespace(namespace string) Option {
	return func(s *Store) { s.namespace = namespace }
}

// WithNotifier shares an existing notifier instead of creating one.
func WithNotifier(n *notify.Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithClock replaces time.Now for lastModified stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a store over repo. The repository is owned by the caller.
func New(repo repository.Repository, opts ...Option) *Store {
	s := &Store{
		id:        uuid.NewString(),
		namespace: DefaultNamespace,
		repo:      repo,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = notify.New()
	}
	return s
}

// ID identifies this store instance among the stores sharing a backend.
func (s *Store) ID() string { return s.id }

// Namespace returns the backend key prefix.
func (s *Store) Namespace() string { return s.namespace }

// Notifier exposes the change registry of this store.
func (s *Store) Notifier() *notify.Notifier { return s.notifier }

// Subscribe registers listener for changes to path.
func (s *Store) Subscribe(path string, listener notify.Listener) (unsubscribe func()) {
	return s.notifier.Subscribe(path, listener)
}

// OnSave registers a hook that runs after every successful local save.
// Hooks must not block; the remote sync adapter uses one to request a push.
func (s *Store) OnSave(hook func(path string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// Save serializes value and persists it under path, overwriting any previous
// value. It reports failure instead of returning an error.
func (s *Store) Save(ctx context.Context, path string, value any) bool {
	return s.SaveFrom(ctx, s.id, path, value)
}

// SaveFrom is Save with an explicit origin, which is handed to subscribers so
// a writer can recognize its own changes.
func (s *Store) SaveFrom(ctx context.Context, origin, path string, value any) bool {
	raw, err := json.Marshal(value)
	if err != nil {
		logger.WithComponent("store").Errorf("cannot serialize %s: %v", path, err)
		return false
	}
	if !s.write(ctx, origin, path, raw, s.now().UnixMilli()) {
		return false
	}

	s.notifier.Notify(notify.Change{Path: path, Value: raw, Origin: origin})

	s.mu.RLock()
	hooks := s.hooks
	s.mu.RUnlock()
	for _, hook := range hooks {
		hook(path)
	}
	return true
}

// Import stores a document received from the remote endpoint. Subscribers are
// notified as for an external change; save hooks are not run, so a pull does
// not echo back as a push.
func (s *Store) Import(ctx context.Context, path string, raw json.RawMessage, lastModified int64) bool {
	if !json.Valid(raw) {
		logger.WithComponent("store").Warnf("ignoring invalid remote document %s", path)
		return false
	}
	if lastModified <= 0 {
		lastModified = s.now().UnixMilli()
	}
	if !s.write(ctx, OriginRemote, path, raw, lastModified) {
		return false
	}
	s.notifier.Notify(notify.Change{Path: path, Value: raw, Origin: OriginRemote, External: true})
	return true
}

func (s *Store) write(ctx context.Context, origin, path string, raw json.RawMessage, lastModified int64) bool {
	payload, err := json.Marshal(Envelope{
		Value:        raw,
		LastModified: lastModified,
		Store:        s.id,
		Origin:       origin,
	})
	if err != nil {
		logger.WithComponent("store").Errorf("cannot encode %s: %v", path, err)
		return false
	}
	if err := s.repo.Put(ctx, s.key(path), payload); err != nil {
		logger.WithComponent("store").Errorf("cannot persist %s: %v", path, err)
		return false
	}
	logger.WithComponent("store").Tracef("saved %s (%d bytes)", path, len(raw))
	return true
}

// Load returns the stored value for path, or nil when it was never saved or
// its payload cannot be decoded.
func (s *Store) Load(ctx context.Context, path string) json.RawMessage {
	env, err := s.LoadEnvelope(ctx, path)
	if err != nil {
		return nil
	}
	return env.Value
}

// LoadInto decodes the stored value for path into dst. It reports false on a
// miss, a corrupted payload, or a value that does not fit dst.
func (s *Store) LoadInto(ctx context.Context, path string, dst any) bool {
	raw := s.Load(ctx, path)
	if raw == nil {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		logger.WithComponent("store").Warnf("stored %s does not decode: %v", path, err)
		return false
	}
	return true
}

// LoadEnvelope returns the stored envelope for path.
func (s *Store) LoadEnvelope(ctx context.Context, path string) (Envelope, error) {
	return s.readKey(ctx, s.key(path))
}

func (s *Store) readKey(ctx context.Context, key string) (Envelope, error) {
	data, err := s.repo.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.WithComponent("store").Warnf("cannot read %s: %v", key, err)
		}
		return Envelope{}, err
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil || len(env.Value) == 0 || !json.Valid(env.Value) {
		logger.WithComponent("store").Warnf("treating corrupted %s as missing", key)
		return Envelope{}, errCorrupt
	}
	return env, nil
}

// Keys lists the logical paths currently stored.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.repo.Keys(ctx, s.namespace)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(keys))
	for _, k := range keys {
		paths = append(paths, strings.TrimPrefix(k, s.namespace))
	}
	return paths, nil
}

// Snapshot returns every readable document keyed by path. Corrupted
// documents are skipped.
func (s *Store) Snapshot(ctx context.Context) (map[string]Envelope, error) {
	paths, err := s.Keys(ctx)
	if err != nil {
		return nil, err
	}
	docs := make(map[string]Envelope, len(paths))
	for _, p := range paths {
		env, err := s.LoadEnvelope(ctx, p)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			continue
		}
		docs[p] = env
	}
	return docs, nil
}

// Start relays writes made by other stores sharing the backend to local
// subscribers. Backends without a watch primitive only see local writes.
func (s *Store) Start(ctx context.Context) error {
	w, ok := s.repo.(repository.Watcher)
	if !ok {
		logger.WithComponent("store").Debug("backend cannot be watched, cross-context relay disabled")
		return nil
	}
	return w.Watch(ctx, func(key string) { s.relay(ctx, key) })
}

func (s *Store) relay(ctx context.Context, key string) {
	if !strings.HasPrefix(key, s.namespace) {
		return
	}
	env, err := s.readKey(ctx, key)
	if err != nil || env.Store == s.id {
		return
	}
	path := strings.TrimPrefix(key, s.namespace)
	logger.WithComponent("store").Debugf("observed external change to %s", path)
	s.notifier.Notify(notify.Change{Path: path, Value: env.Value, Origin: env.Origin, External: true})
}

func (s *Store) key(path string) string {
	return s.namespace + path
}
