package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bassista/go_scrapbook/internal/config"
)

// ConfigurationResponse is the client-side view of the configuration.
// Secrets never leave the server.
type ConfigurationResponse struct {
	Namespace      string   `json:"namespace"`
	DebounceMs     int64    `json:"debounceMs"`
	SyncEnabled    bool     `json:"syncEnabled"`
	SyncIntervalMs int64    `json:"syncIntervalMs"`
	SpeechProvider string   `json:"speechProvider"`
	SpeechReady    bool     `json:"speechReady"`
	Documents      []string `json:"documents"`
}

// ConfigurationController handles configuration-related API endpoints.
type ConfigurationController struct {
	config *config.Config
}

// NewConfigurationController creates a new ConfigurationController.
func NewConfigurationController(cfg *config.Config) *ConfigurationController {
	return &ConfigurationController{
		config: cfg,
	}
}

// GetConfiguration returns the settings a scrapbook client binds with.
func (cc *ConfigurationController) GetConfiguration(c *gin.Context) {
	speechReady := cc.config.Speech.Provider == config.SpeechMemory || cc.config.Speech.APIKey != ""
	c.JSON(http.StatusOK, ConfigurationResponse{
		Namespace:      cc.config.Store.Namespace,
		DebounceMs:     cc.config.Store.Debounce.Milliseconds(),
		SyncEnabled:    cc.config.Sync.Enabled,
		SyncIntervalMs: cc.config.Sync.Interval.Milliseconds(),
		SpeechProvider: cc.config.Speech.Provider,
		SpeechReady:    speechReady,
		Documents:      knownDocuments,
	})
}
