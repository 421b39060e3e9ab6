package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bassista/go_scrapbook/internal/logger"
)

const fileExt = ".json"

// FileRepository stores one JSON file per key inside a directory.
// Writes are atomic (temp file + rename), so readers in other processes never
// observe a partially written payload.
type FileRepository struct {
	dir      string
	debounce time.Duration
	mu       sync.Mutex
}

// NewFileRepository creates the directory if needed and returns a backend rooted at it.
func NewFileRepository(dir string) (*FileRepository, error) {
	if dir == "" {
		return nil, errors.New("data directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileRepository{dir: dir, debounce: 50 * time.Millisecond}, nil
}

func (r *FileRepository) path(key string) string {
	return filepath.Join(r.dir, key+fileExt)
}

func (r *FileRepository) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(r.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func (r *FileRepository) Put(ctx context.Context, key string, data []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeAtomic(key, data)
}

// writeAtomic writes the payload without acquiring the lock (caller must hold it).
func (r *FileRepository) writeAtomic(key string, data []byte) error {
	target := r.path(key)
	tmpFile, err := os.CreateTemp(r.dir, filepath.Base(target)+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpFile.Name(), target); err != nil {
		return fmt.Errorf("replace data file: %w", err)
	}
	return nil
}

func (r *FileRepository) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("list data dir: %w", err)
	}
	var keys []string
	for _, e := range entries {
		if key, ok := keyFromFilename(e.Name()); ok && !e.IsDir() && strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func keyFromFilename(name string) (string, bool) {
	if filepath.Ext(name) != fileExt {
		return "", false
	}
	key := strings.TrimSuffix(name, fileExt)
	return key, ValidateKey(key) == nil
}

// Watch listens for changes in the data directory and reports changed keys
// after a short quiet period. It watches the directory (not the files) so
// atomic replace sequences (temp+rename) made by other processes are observed.
// Bursts of events for the same key (create+write+chmod) are coalesced.
func (r *FileRepository) Watch(ctx context.Context, onChange func(key string)) error {
	if onChange == nil {
		return errors.New("onChange callback is required")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(r.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch dir: %w", err)
	}

	go func() {
		defer watcher.Close()

		pending := make(map[string]bool)
		var order []string
		debounce := time.NewTimer(time.Hour)
		debounce.Stop()

		for {
			select {
			case <-ctx.Done():
				debounce.Stop()
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				key, ok := keyFromFilename(filepath.Base(event.Name))
				if !ok {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if !pending[key] {
					pending[key] = true
					order = append(order, key)
				}
				debounce.Reset(r.debounce)
			case <-debounce.C:
				for _, key := range order {
					onChange(key)
				}
				clear(pending)
				order = order[:0]
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithComponent("file-repo").Warnf("watcher error: %v", err)
			}
		}
	}()
	return nil
}

func (r *FileRepository) Close() error { return nil }
