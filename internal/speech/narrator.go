package speech

import (
	"context"
	"strings"
	"time"

	"github.com/bassista/go_scrapbook/internal/audiocache"
	"github.com/bassista/go_scrapbook/internal/logger"
)

// AudioCache is the part of the audio cache the narrator uses.
type AudioCache interface {
	Get(ctx context.Context, subjectID string, position int, text string) (audiocache.Artifact, bool)
	Put(ctx context.Context, subjectID string, position int, text string, data []byte) bool
}

// Narration is the audio for one page.
type Narration struct {
	Data      []byte
	Cached    bool
	Timestamp time.Time
}

// Narrator serves narration from the cache and generates it on a miss.
type Narrator struct {
	cache     AudioCache
	generator Generator
	now       func() time.Time
}

func NewNarrator(cache AudioCache, generator Generator) *Narrator {
	return &Narrator{cache: cache, generator: generator, now: time.Now}
}

// Narrate returns audio for text at (subjectID, position). A generation
// failure is returned as is and leaves the cache untouched; a failure to
// store fresh audio is only logged.
func (n *Narrator) Narrate(ctx context.Context, subjectID string, position int, text string) (Narration, error) {
	if strings.TrimSpace(text) == "" {
		return Narration{}, ErrEmptyText
	}

	if hit, ok := n.cache.Get(ctx, subjectID, position, text); ok {
		return Narration{Data: hit.Data, Cached: true, Timestamp: hit.Timestamp}, nil
	}

	audio, err := n.generator.Generate(ctx, text)
	if err != nil {
		logger.WithComponent("speech").Warnf("narration of %s failed (%s): %v", audiocache.Key(subjectID, position), Reason(err), err)
		return Narration{}, err
	}

	if !n.cache.Put(ctx, subjectID, position, text, audio) {
		logger.WithComponent("speech").Warnf("narration of %s generated but not cached", audiocache.Key(subjectID, position))
	}
	return Narration{Data: audio, Timestamp: n.now()}, nil
}
