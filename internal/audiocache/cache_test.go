package audiocache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bassista/go_scrapbook/internal/repository"
	"github.com/bassista/go_scrapbook/internal/store"
)

var fixedNow = time.Date(2024, 8, 2, 10, 30, 0, 0, time.UTC)

func newCache() (*Cache, *store.Store) {
	s := store.New(repository.NewMemoryRepository())
	return New(s, WithClock(func() time.Time { return fixedNow })), s
}

func TestHashText_Normalization(t *testing.T) {
	tests := []struct {
		name  string
		a, b  string
		equal bool
	}{
		{"case", "Jake went to Lisbon", "jake WENT to lisbon", true},
		{"outer whitespace", "  Jake went\n", "Jake went", true},
		{"inner whitespace", "Jake   went\tto\n\nLisbon", "Jake went to Lisbon", true},
		{"different words", "Jake went to Lisbon", "Jake went to Porto", false},
		{"punctuation matters", "Hello, world", "Hello world", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, HashText(tt.a) == HashText(tt.b))
		})
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "book-7_page_3", Key("book-7", 3))
}

func TestCache_PutThenGet(t *testing.T) {
	ctx := context.Background()
	c, _ := newCache()
	audio := []byte{0xff, 0xfb, 0x90, 0x00, 0x01}

	require.True(t, c.Put(ctx, "book-1", 0, "Once upon a time", audio))

	got, ok := c.Get(ctx, "book-1", 0, "Once upon a time")
	require.True(t, ok)
	assert.Equal(t, audio, got.Data)
	assert.Equal(t, fixedNow, got.Timestamp)

	_, ok = c.Get(ctx, "book-1", 0, "  once UPON a   time ")
	assert.True(t, ok, "normalized text still hits")
}

func TestCache_Misses(t *testing.T) {
	ctx := context.Background()
	c, _ := newCache()
	require.True(t, c.Put(ctx, "book-1", 0, "Once upon a time", []byte("mp3")))

	tests := []struct {
		name    string
		subject string
		pos     int
		text    string
	}{
		{"changed text", "book-1", 0, "Once upon a rhyme"},
		{"other position", "book-1", 1, "Once upon a time"},
		{"other subject", "book-2", 0, "Once upon a time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := c.Get(ctx, tt.subject, tt.pos, tt.text)
			assert.False(t, ok)
		})
	}
}

func TestCache_StaleEntryIsKeptUntilOverwritten(t *testing.T) {
	ctx := context.Background()
	c, _ := newCache()
	require.True(t, c.Put(ctx, "book-1", 0, "old text", []byte("old")))

	_, ok := c.Get(ctx, "book-1", 0, "new text")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Stats(ctx).TotalFiles)

	require.True(t, c.Put(ctx, "book-1", 0, "new text", []byte("new")))
	got, ok := c.Get(ctx, "book-1", 0, "new text")
	require.True(t, ok)
	assert.Equal(t, []byte("new"), got.Data)
	assert.Equal(t, 1, c.Stats(ctx).TotalFiles)
}

func TestCache_ClearForSubject(t *testing.T) {
	ctx := context.Background()
	c, _ := newCache()
	require.True(t, c.Put(ctx, "book-1", 0, "a", []byte("1")))
	require.True(t, c.Put(ctx, "book-1", 1, "b", []byte("2")))
	require.True(t, c.Put(ctx, "book-2", 0, "c", []byte("3")))

	require.True(t, c.ClearForSubject(ctx, "book-1"))

	_, ok := c.Get(ctx, "book-1", 0, "a")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "book-2", 0, "c")
	assert.True(t, ok)
	assert.Equal(t, 1, c.Stats(ctx).TotalFiles)
}

func TestCache_ClearAllIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c, _ := newCache()
	require.True(t, c.Put(ctx, "book-1", 0, "a", []byte("1")))

	assert.True(t, c.ClearAll(ctx))
	assert.Equal(t, 0, c.Stats(ctx).TotalFiles)

	assert.True(t, c.ClearAll(ctx))
	assert.Equal(t, 0, c.Stats(ctx).TotalFiles)
}

func TestCache_Stats(t *testing.T) {
	ctx := context.Background()
	c, _ := newCache()
	require.True(t, c.Put(ctx, "book-2", 0, "x", make([]byte, 1024*1024)))
	require.True(t, c.Put(ctx, "book-1", 4, "y", make([]byte, 512*1024)))

	stats := c.Stats(ctx)
	assert.Equal(t, 2, stats.TotalFiles)
	assert.Equal(t, int64(1536*1024), stats.TotalSizeBytes)
	assert.Equal(t, "1.50", stats.TotalSizeMB)
	require.Len(t, stats.Files, 2)
	assert.Equal(t, "book-1_page_4", stats.Files[0].ID)
	assert.Equal(t, "book-2_page_0", stats.Files[1].ID)
}

func TestCache_EmptyStats(t *testing.T) {
	c, _ := newCache()
	stats := c.Stats(context.Background())
	assert.Equal(t, Stats{TotalSizeMB: "0.00", Files: []FileStat{}}, stats)
}

func TestCache_CorruptedDocumentIsAMiss(t *testing.T) {
	ctx := context.Background()
	c, s := newCache()
	require.True(t, s.Save(ctx, store.PathAudioCache, []string{"not", "a", "map"}))

	_, ok := c.Get(ctx, "book-1", 0, "a")
	assert.False(t, ok)

	require.True(t, c.Put(ctx, "book-1", 0, "a", []byte("1")))
	_, ok = c.Get(ctx, "book-1", 0, "a")
	assert.True(t, ok)
}

func TestCache_UndecodableAudioIsAMiss(t *testing.T) {
	ctx := context.Background()
	c, s := newCache()
	require.True(t, s.Save(ctx, store.PathAudioCache, map[string]Entry{
		Key("book-1", 0): {SubjectID: "book-1", TextHash: HashText("a"), AudioData: "%%%"},
	}))

	_, ok := c.Get(ctx, "book-1", 0, "a")
	assert.False(t, ok)
}

func TestCache_ConcurrentPutsKeepEveryEntry(t *testing.T) {
	ctx := context.Background()
	c, _ := newCache()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(pos int) {
			defer wg.Done()
			c.Put(ctx, "book-1", pos, "page", []byte{byte(pos)})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, c.Stats(ctx).TotalFiles)
}

type MockDocuments struct {
	mock.Mock
}

func (m *MockDocuments) LoadInto(ctx context.Context, path string, dst any) bool {
	args := m.Called(ctx, path, dst)
	return args.Bool(0)
}

func (m *MockDocuments) Save(ctx context.Context, path string, value any) bool {
	args := m.Called(ctx, path, value)
	return args.Bool(0)
}

func TestCache_StorageFailures(t *testing.T) {
	ctx := context.Background()
	docs := new(MockDocuments)
	docs.On("LoadInto", ctx, store.PathAudioCache, mock.Anything).Return(false)
	docs.On("Save", ctx, store.PathAudioCache, mock.Anything).Return(false)

	c := New(docs)

	assert.False(t, c.Put(ctx, "book-1", 0, "a", []byte("1")))
	_, ok := c.Get(ctx, "book-1", 0, "a")
	assert.False(t, ok)
	assert.False(t, c.ClearForSubject(ctx, "book-1"))
	assert.False(t, c.ClearAll(ctx))
	assert.Equal(t, 0, c.Stats(ctx).TotalFiles)
	docs.AssertExpectations(t)
}
