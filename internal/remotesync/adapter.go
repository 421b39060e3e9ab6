// Package remotesync mirrors the document store to a remote endpoint on a
// best-effort basis. Failures are logged and never reach the caller.
package remotesync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bassista/go_scrapbook/internal/config"
	"github.com/bassista/go_scrapbook/internal/logger"
	"github.com/bassista/go_scrapbook/internal/store"
)

const maxPayloadBytes = 64 << 20

// Source is the part of the document store the adapter reads and fills.
type Source interface {
	Snapshot(ctx context.Context) (map[string]store.Envelope, error)
	Import(ctx context.Context, path string, raw json.RawMessage, lastModified int64) bool
}

// Adapter pulls and pushes the full document set. Endpoints are tried in
// order; the first that succeeds wins.
type Adapter struct {
	source    Source
	endpoints []string
	client    *http.Client
	timeout   time.Duration
	now       func() time.Time
	trigger   chan struct{}
}

type Option func(*Adapter)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.client = c }
}

// WithClock replaces time.Now for pushedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// New builds an adapter from the sync configuration. Empty URLs are skipped.
func New(source Source, cfg config.SyncConfig, opts ...Option) *Adapter {
	a := &Adapter{
		source:  source,
		client:  http.DefaultClient,
		timeout: cfg.Timeout,
		now:     time.Now,
		trigger: make(chan struct{}, 1),
	}
	for _, u := range []string{cfg.PrimaryURL, cfg.SecondaryURL} {
		if u != "" {
			a.endpoints = append(a.endpoints, u)
		}
	}
	if a.timeout <= 0 {
		a.timeout = 10 * time.Second
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Enabled reports whether any endpoint is configured.
func (a *Adapter) Enabled() bool { return len(a.endpoints) > 0 }

// PullAll fetches the remote document set and overwrites every local
// document present in it. Local documents missing remotely are kept.
// It returns the number of documents imported; zero on any failure.
func (a *Adapter) PullAll(ctx context.Context) int {
	if !a.Enabled() {
		return 0
	}
	for _, endpoint := range a.endpoints {
		payload, err := a.fetch(ctx, endpoint)
		if err != nil {
			logger.WithComponent("sync").Warnf("pull from %s failed: %v", endpoint, err)
			continue
		}
		imported := 0
		for path, doc := range payload.Documents {
			if a.source.Import(ctx, path, doc.Value, doc.LastModified) {
				imported++
			}
		}
		logger.WithComponent("sync").Infof("pulled %d of %d documents from %s", imported, len(payload.Documents), endpoint)
		return imported
	}
	logger.WithComponent("sync").Warn("remote pull unavailable, using local documents")
	return 0
}

// PushAll uploads every local document as one batch. It reports whether an
// endpoint accepted it.
func (a *Adapter) PushAll(ctx context.Context) bool {
	if !a.Enabled() {
		return false
	}
	docs, err := a.source.Snapshot(ctx)
	if err != nil {
		logger.WithComponent("sync").Errorf("push skipped, cannot read local documents: %v", err)
		return false
	}

	payload := Payload{Documents: make(map[string]Document, len(docs)), PushedAt: a.now().UnixMilli()}
	for path, env := range docs {
		payload.Documents[path] = Document{Value: env.Value, LastModified: env.LastModified}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		logger.WithComponent("sync").Errorf("push skipped, cannot encode documents: %v", err)
		return false
	}

	for _, endpoint := range a.endpoints {
		if err := a.send(ctx, endpoint, body); err != nil {
			logger.WithComponent("sync").Warnf("push to %s failed: %v", endpoint, err)
			continue
		}
		logger.WithComponent("sync").Debugf("pushed %d documents to %s", len(payload.Documents), endpoint)
		return true
	}
	return false
}

// RequestPush asks the running loop for a push without blocking. Requests
// made while one is already queued are merged.
func (a *Adapter) RequestPush() {
	select {
	case a.trigger <- struct{}{}:
	default:
	}
}

// Start runs the push loop: on request, every interval, and once more when
// ctx is canceled. The returned channel is closed when the loop has exited.
func (a *Adapter) Start(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if !a.Enabled() {
		logger.WithComponent("sync").Info("remote sync disabled, no endpoints configured")
		close(done)
		return done
	}

	logger.WithComponent("sync").Debugf("starting sync loop with interval: %v", interval)
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logger.WithComponent("sync").Debug("sync loop received context cancellation, performing final push")
				a.PushAll(context.Background())
				logger.WithComponent("sync").Info("sync loop stopped after final push")
				return
			case <-a.trigger:
				a.PushAll(ctx)
			case <-ticker.C:
				logger.WithComponent("sync").Trace("sync loop tick")
				a.PushAll(ctx)
			}
		}
	}()
	return done
}

func (a *Adapter) fetch(ctx context.Context, endpoint string) (Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Payload{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return Payload{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Payload{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return Payload{}, fmt.Errorf("read response: %w", err)
	}
	return DecodePayload(data)
}

func (a *Adapter) send(ctx context.Context, endpoint string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
