package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bassista/go_scrapbook/internal/audiocache"
	"github.com/bassista/go_scrapbook/internal/config"
	"github.com/bassista/go_scrapbook/internal/logger"
	"github.com/bassista/go_scrapbook/internal/remotesync"
	"github.com/bassista/go_scrapbook/internal/repository"
	"github.com/bassista/go_scrapbook/internal/speech"
	"github.com/bassista/go_scrapbook/internal/store"
)

// App is the application container (immutable dependencies + lifecycle context).
// It is not a request context; handlers should still use gin's request context.
type App struct {
	Config   *config.Config
	Repo     repository.Repository
	Store    *store.Store
	Sync     *remotesync.Adapter
	Audio    *audiocache.Cache
	Narrator *speech.Narrator

	BaseCtx context.Context
	Cancel  context.CancelFunc

	syncDone <-chan struct{}
}

func New(cfg *config.Config, repo repository.Repository, st *store.Store, gen speech.Generator) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if repo == nil {
		return nil, errors.New("repo is nil")
	}
	if st == nil {
		return nil, errors.New("store is nil")
	}
	if gen == nil {
		return nil, errors.New("speech generator is nil")
	}

	var adapter *remotesync.Adapter
	if cfg.Sync.Enabled {
		adapter = remotesync.New(st, cfg.Sync)
	} else {
		adapter = remotesync.New(st, config.SyncConfig{})
	}
	if adapter.Enabled() {
		st.OnSave(func(string) { adapter.RequestPush() })
	}

	audio := audiocache.New(st)

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		Config:   cfg,
		Repo:     repo,
		Store:    st,
		Sync:     adapter,
		Audio:    audio,
		Narrator: speech.NewNarrator(audio, gen),
		BaseCtx:  ctx,
		Cancel:   cancel,
	}, nil
}

// StartWatchers arms cross-context change relay, hydrates the store from the
// remote endpoint and starts the background push loop.
func (a *App) StartWatchers() error {
	if err := a.Store.Start(a.BaseCtx); err != nil {
		return fmt.Errorf("cannot watch store backend: %w", err)
	}

	if a.Sync.Enabled() {
		pulled := a.Sync.PullAll(a.BaseCtx)
		logger.WithComponent("app").Infof("startup pull imported %d documents", pulled)
		a.syncDone = a.Sync.Start(a.BaseCtx, a.Config.Sync.Interval)
	}
	return nil
}

// Shutdown cancels background work, waits for the final push and closes the
// backend.
func (a *App) Shutdown() {
	if a == nil || a.Cancel == nil {
		return
	}
	a.Cancel()

	if a.syncDone != nil {
		wait := a.Config.Server.ShutDownTimeout
		if wait <= 0 {
			wait = 5 * time.Second
		}
		select {
		case <-a.syncDone:
		case <-time.After(wait):
			logger.WithComponent("app").Warn("sync loop did not stop in time")
		}
	}

	if err := a.Repo.Close(); err != nil {
		logger.WithComponent("app").Warnf("cannot close store backend: %v", err)
	}
}
