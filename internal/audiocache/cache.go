// Package audiocache stores generated narration keyed by subject and
// position, valid only while the narrated text is unchanged.
package audiocache

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bassista/go_scrapbook/internal/logger"
	"github.com/bassista/go_scrapbook/internal/store"
)

// Documents is the part of the document store the cache is built on.
type Documents interface {
	LoadInto(ctx context.Context, path string, dst any) bool
	Save(ctx context.Context, path string, value any) bool
}

// Entry is one cached artifact as stored in the audio_cache document.
type Entry struct {
	SubjectID string    `json:"bookId"`
	Position  int       `json:"pageIndex"`
	TextHash  string    `json:"textHash"`
	Text      string    `json:"text"`
	AudioData string    `json:"audioData"`
	Timestamp time.Time `json:"timestamp"`
	Size      int       `json:"size"`
}

// Artifact is a cache hit.
type Artifact struct {
	Data      []byte
	Timestamp time.Time
}

type FileStat struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"bookId"`
	Position  int       `json:"pageIndex"`
	Timestamp time.Time `json:"timestamp"`
	Size      int       `json:"size"`
}

type Stats struct {
	TotalFiles     int        `json:"totalFiles"`
	TotalSizeBytes int64      `json:"totalSizeBytes"`
	TotalSizeMB    string     `json:"totalSizeMB"`
	Files          []FileStat `json:"files"`
}

// Cache keeps every entry in a single document. Mutations read the whole map,
// change it and write it back; mu serializes them within the process.
type Cache struct {
	docs Documents
	path string
	now  func() time.Time
	mu   sync.Mutex
}

type Option func(*Cache)

// WithClock replaces time.Now for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithPath stores entries under a document other than store.PathAudioCache.
func WithPath(path string) Option {
	return func(c *Cache) { c.path = path }
}

func New(docs Documents, opts ...Option) *Cache {
	c := &Cache{docs: docs, path: store.PathAudioCache, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key is the composite key of an entry.
func Key(subjectID string, position int) string {
	return fmt.Sprintf("%s_page_%d", subjectID, position)
}

// HashText returns the content hash of text after trimming, lowercasing and
// collapsing runs of whitespace.
func HashText(text string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached artifact for (subjectID, position) if it was
// generated from text. Absent, stale and unreadable entries are misses.
func (c *Cache) Get(ctx context.Context, subjectID string, position int, text string) (Artifact, bool) {
	entries := c.load(ctx)
	key := Key(subjectID, position)
	entry, ok := entries[key]
	if !ok {
		logger.WithComponent("audio").Debugf("cache miss for %s", key)
		return Artifact{}, false
	}
	if entry.TextHash != HashText(text) {
		logger.WithComponent("audio").Debugf("text changed for %s, cached audio is stale", key)
		return Artifact{}, false
	}
	data, err := base64.StdEncoding.DecodeString(entry.AudioData)
	if err != nil {
		logger.WithComponent("audio").Warnf("cached audio for %s is not decodable: %v", key, err)
		return Artifact{}, false
	}
	logger.WithComponent("audio").Debugf("cache hit for %s", key)
	return Artifact{Data: data, Timestamp: entry.Timestamp}, true
}

// Put stores data as the artifact for (subjectID, position, text), replacing
// any previous entry for the same key.
func (c *Cache) Put(ctx context.Context, subjectID string, position int, text string, data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.load(ctx)
	key := Key(subjectID, position)
	entries[key] = Entry{
		SubjectID: subjectID,
		Position:  position,
		TextHash:  HashText(text),
		Text:      text,
		AudioData: base64.StdEncoding.EncodeToString(data),
		Timestamp: c.now().UTC(),
		Size:      len(data),
	}
	if !c.docs.Save(ctx, c.path, entries) {
		logger.WithComponent("audio").Errorf("failed to store audio for %s", key)
		return false
	}
	logger.WithComponent("audio").Infof("stored audio for %s (%d bytes)", key, len(data))
	return true
}

// ClearForSubject drops every entry of subjectID.
func (c *Cache) ClearForSubject(ctx context.Context, subjectID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.load(ctx)
	kept := make(map[string]Entry, len(entries))
	for key, entry := range entries {
		if entry.SubjectID != subjectID {
			kept[key] = entry
		}
	}
	if !c.docs.Save(ctx, c.path, kept) {
		return false
	}
	logger.WithComponent("audio").Infof("cleared %d cached files for %s", len(entries)-len(kept), subjectID)
	return true
}

// ClearAll drops every entry.
func (c *Cache) ClearAll(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.docs.Save(ctx, c.path, map[string]Entry{}) {
		return false
	}
	logger.WithComponent("audio").Info("cleared all cached audio")
	return true
}

// Stats summarizes the cache. Files are ordered by key.
func (c *Cache) Stats(ctx context.Context) Stats {
	entries := c.load(ctx)

	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	stats := Stats{Files: make([]FileStat, 0, len(entries))}
	for _, key := range keys {
		entry := entries[key]
		stats.TotalSizeBytes += int64(entry.Size)
		stats.Files = append(stats.Files, FileStat{
			ID:        Key(entry.SubjectID, entry.Position),
			SubjectID: entry.SubjectID,
			Position:  entry.Position,
			Timestamp: entry.Timestamp,
			Size:      entry.Size,
		})
	}
	stats.TotalFiles = len(stats.Files)
	stats.TotalSizeMB = fmt.Sprintf("%.2f", float64(stats.TotalSizeBytes)/(1024*1024))
	return stats
}

func (c *Cache) load(ctx context.Context) map[string]Entry {
	entries := map[string]Entry{}
	if !c.docs.LoadInto(ctx, c.path, &entries) || entries == nil {
		return map[string]Entry{}
	}
	return entries
}
