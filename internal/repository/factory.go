package repository

import (
	"fmt"

	"github.com/bassista/go_scrapbook/internal/config"
)

// NewRepositoryFromConfig creates the backend selected by store.backend.
func NewRepositoryFromConfig(cfg config.StoreConfig) (Repository, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemoryRepository(), nil
	case config.BackendFile, "":
		return NewFileRepository(cfg.Dir)
	case config.BackendSQLite:
		return NewSQLiteRepository(cfg.SQLitePath)
	case config.BackendRedis:
		return NewRedisRepository(cfg.RedisURL, cfg.RedisChannel)
	default:
		return nil, fmt.Errorf("unknown store backend: %s (supported: %s, %s, %s, %s)",
			cfg.Backend, config.BackendMemory, config.BackendFile, config.BackendSQLite, config.BackendRedis)
	}
}
