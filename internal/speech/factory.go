package speech

import (
	"fmt"
	"net/http"

	"github.com/bassista/go_scrapbook/internal/config"
	"github.com/bassista/go_scrapbook/internal/logger"
)

// NewGeneratorFromConfig creates a Generator based on the speech provider.
// If the provider is "memory", it creates a MemoryGenerator.
// If the provider is "elevenlabs" (default), it creates an ElevenLabsGenerator.
func NewGeneratorFromConfig(cfg config.SpeechConfig) (Generator, error) {
	switch cfg.Provider {
	case config.SpeechMemory:
		return NewMemoryGenerator(), nil
	case config.SpeechElevenLabs, "":
		if cfg.APIKey == "" {
			logger.WithComponent("speech").Warn("no speech api key configured, narration requests will be rejected")
		}
		return NewElevenLabsGenerator(cfg, &http.Client{}), nil
	default:
		return nil, fmt.Errorf("unknown speech provider: %s (supported: %s, %s)", cfg.Provider, config.SpeechElevenLabs, config.SpeechMemory)
	}
}
