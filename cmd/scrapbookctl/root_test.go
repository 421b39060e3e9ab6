package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassista/go_scrapbook/internal/audiocache"
	"github.com/bassista/go_scrapbook/internal/remotesync"
	"github.com/bassista/go_scrapbook/internal/store"
)

// lockedBuffer lets a running command and the test read output concurrently.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// setupEnv points the CLI at a fresh file store and returns the config dir.
func setupEnv(t *testing.T) string {
	t.Helper()
	t.Setenv("SCRAPBOOK_STORE_BACKEND", "file")
	t.Setenv("SCRAPBOOK_STORE_DIR", t.TempDir())
	t.Setenv("SCRAPBOOK_STORE_DEBOUNCE", "10ms")
	t.Setenv("SCRAPBOOK_SYNC_ENABLED", "false")
	return t.TempDir()
}

func runCmd(ctx context.Context, out io.Writer, confDir string, args ...string) error {
	cmd := newRootCmd()
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", confDir}, args...))
	return cmd.ExecuteContext(ctx)
}

func run(t *testing.T, confDir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := runCmd(context.Background(), &out, confDir, args...)
	return out.String(), err
}

func openTestSession(t *testing.T, confDir string) *session {
	t.Helper()
	s, err := openSession(&rootOptions{configDir: confDir})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestPutThenGet(t *testing.T) {
	dir := setupEnv(t)

	out, err := run(t, dir, "put", store.PathBooks, `[{"id":"b1","title":"Summer"}]`)
	require.NoError(t, err)
	assert.Contains(t, out, "saved "+store.PathBooks)

	out, err = run(t, dir, "get", store.PathBooks)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"b1","title":"Summer"}]`, out)

	out, err = run(t, dir, "keys")
	require.NoError(t, err)
	assert.Equal(t, store.PathBooks+"\n", out)
}

func TestGet_Meta(t *testing.T) {
	dir := setupEnv(t)
	_, err := run(t, dir, "put", store.PathNotes, `["first"]`)
	require.NoError(t, err)

	out, err := run(t, dir, "get", "--meta", store.PathNotes)
	require.NoError(t, err)

	var env store.Envelope
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	assert.JSONEq(t, `["first"]`, string(env.Value))
	assert.Positive(t, env.LastModified)
}

func TestGet_Missing(t *testing.T) {
	dir := setupEnv(t)

	_, err := run(t, dir, "get", store.PathTimeline)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestPut_RejectsInvalidInput(t *testing.T) {
	dir := setupEnv(t)

	_, err := run(t, dir, "put", store.PathNotes, `{not json`)
	assert.Error(t, err)

	_, err = run(t, dir, "put", "../escape", `1`)
	assert.Error(t, err)

	_, err = run(t, dir, "put", store.PathNotes)
	assert.Error(t, err, "missing value argument")
}

func TestPullAndPush(t *testing.T) {
	var (
		mu     sync.Mutex
		pushed remotesync.Payload
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"documents":{"writing_notes":{"value":["from remote"],"lastModified":5}}}`)
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			defer mu.Unlock()
			if err := json.Unmarshal(body, &pushed); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			io.WriteString(w, `{"success":true}`)
		}
	}))
	defer srv.Close()

	dir := setupEnv(t)
	t.Setenv("SCRAPBOOK_SYNC_ENABLED", "true")
	t.Setenv("SCRAPBOOK_SYNC_PRIMARY_URL", srv.URL)

	out, err := run(t, dir, "pull")
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1 documents")

	out, err = run(t, dir, "get", store.PathNotes)
	require.NoError(t, err)
	assert.JSONEq(t, `["from remote"]`, out)

	_, err = run(t, dir, "put", store.PathMapLocations, `[]`)
	require.NoError(t, err)

	out, err = run(t, dir, "push")
	require.NoError(t, err)
	assert.Contains(t, out, "pushed")

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, pushed.Documents, store.PathNotes)
	require.Contains(t, pushed.Documents, store.PathMapLocations)
	assert.Equal(t, int64(5), pushed.Documents[store.PathNotes].LastModified)
}

func TestPushFailsWhenRemoteIsDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	dir := setupEnv(t)
	t.Setenv("SCRAPBOOK_SYNC_ENABLED", "true")
	t.Setenv("SCRAPBOOK_SYNC_PRIMARY_URL", srv.URL)

	_, err := run(t, dir, "push")
	assert.Error(t, err)

	// a failed pull leaves the store untouched and is not an error
	out, err := run(t, dir, "pull")
	require.NoError(t, err)
	assert.Contains(t, out, "imported 0 documents")
}

func TestSyncCommandsRequireConfiguration(t *testing.T) {
	dir := setupEnv(t)

	_, err := run(t, dir, "pull")
	assert.ErrorIs(t, err, errSyncDisabled)

	_, err = run(t, dir, "push")
	assert.ErrorIs(t, err, errSyncDisabled)
}

func TestAudioStatsAndClear(t *testing.T) {
	dir := setupEnv(t)

	s := openTestSession(t, dir)
	cache := audiocache.New(s.store)
	ctx := context.Background()
	require.True(t, cache.Put(ctx, "b1", 0, "hello", []byte("ID3a")))
	require.True(t, cache.Put(ctx, "b1", 1, "world", []byte("ID3b")))
	require.True(t, cache.Put(ctx, "b2", 0, "other", []byte("ID3c")))

	out, err := run(t, dir, "audio", "stats", "--json")
	require.NoError(t, err)
	var stats audiocache.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 3, stats.TotalFiles)

	out, err = run(t, dir, "audio", "clear", "b1")
	require.NoError(t, err)
	assert.Contains(t, out, "cleared audio for b1")

	out, err = run(t, dir, "audio", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "files: 1")
	assert.Contains(t, out, audiocache.Key("b2", 0))

	_, err = run(t, dir, "audio", "clear")
	require.NoError(t, err)

	out, err = run(t, dir, "audio", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "files: 0")
}

func TestWatch_PrintsExternalChanges(t *testing.T) {
	dir := setupEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &lockedBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- runCmd(ctx, out, dir, "watch", store.PathTimeline)
	}()

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("[idle] null"))
	}, 5*time.Second, 20*time.Millisecond)

	writer := openTestSession(t, dir)
	require.True(t, writer.store.Save(context.Background(), store.PathTimeline, map[string]bool{"day1": true}))

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte(`[saved] {"day1":true}`))
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
