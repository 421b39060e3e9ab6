package speech

import (
	"context"
	"strings"
	"sync"

	"github.com/bassista/go_scrapbook/internal/logger"
)

// MemoryGenerator produces deterministic fake audio without calling out.
// It is used for local development and tests.
type MemoryGenerator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func NewMemoryGenerator() *MemoryGenerator {
	return &MemoryGenerator{}
}

func (m *MemoryGenerator) Generate(ctx context.Context, text string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	logger.WithComponent("memory-speech").Debugf("generating fake audio for %d characters", len(text))
	return append([]byte("ID3"), text...), nil
}

// Calls returns how many generations were attempted.
func (m *MemoryGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// FailWith makes every following generation return err. Pass nil to recover.
func (m *MemoryGenerator) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}
