package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bassista/go_scrapbook/internal/logger"
)

// SQLiteRepository stores payloads in a single SQLite table. Every write bumps
// a monotonically increasing version, which Watch polls to observe writes made
// by other processes sharing the database file.
type SQLiteRepository struct {
	db           *sql.DB
	pollInterval time.Duration
}

// NewSQLiteRepository opens (or creates) a SQLite-backed repository at path.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// One connection serializes writers inside this process; the version
	// counter relies on it.
	db.SetMaxOpenConns(1)

	// WAL lets watchers in other processes read while this one writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		version    INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS documents_version ON documents(version);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteRepository{db: db, pollInterval: 250 * time.Millisecond}, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, "SELECT value FROM documents WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return value, nil
}

func (r *SQLiteRepository) Put(ctx context.Context, key string, data []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (key, value, version, updated_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(version), 0) + 1 FROM documents), ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			version = excluded.version,
			updated_at = excluded.updated_at`,
		key, data, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT key FROM documents WHERE substr(key, 1, ?) = ? ORDER BY key",
		len(prefix), prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("list prefix %q: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r *SQLiteRepository) currentVersion(ctx context.Context) (int64, error) {
	var v int64
	err := r.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM documents").Scan(&v)
	return v, err
}

// Watch polls the version column and reports keys written since the last poll.
func (r *SQLiteRepository) Watch(ctx context.Context, onChange func(key string)) error {
	since, err := r.currentVersion(ctx)
	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}

	go func() {
		ticker := time.NewTicker(r.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				next, keys, err := r.changedSince(ctx, since)
				if err != nil {
					if ctx.Err() == nil {
						logger.WithComponent("sqlite-repo").Warnf("poll changes: %v", err)
					}
					continue
				}
				since = next
				for _, key := range keys {
					onChange(key)
				}
			}
		}
	}()
	return nil
}

func (r *SQLiteRepository) changedSince(ctx context.Context, since int64) (int64, []string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT key, version FROM documents WHERE version > ? ORDER BY version", since)
	if err != nil {
		return since, nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		var version int64
		if err := rows.Scan(&key, &version); err != nil {
			return since, nil, err
		}
		keys = append(keys, key)
		since = version
	}
	return since, keys, rows.Err()
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
