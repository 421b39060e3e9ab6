package controller

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bassista/go_scrapbook/internal/config"
)

func TestConfigurationController_GetConfiguration(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name             string
		provider         string
		apiKey           string
		expectedReady    bool
		expectedDebounce int64
	}{
		{"elevenlabs with key", config.SpeechElevenLabs, "secret", true, 800},
		{"elevenlabs without key", config.SpeechElevenLabs, "", false, 800},
		{"memory provider", config.SpeechMemory, "", true, 800},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Store:  config.StoreConfig{Namespace: "jake_summer_", Debounce: 800 * time.Millisecond},
				Sync:   config.SyncConfig{Enabled: true, Interval: time.Minute},
				Speech: config.SpeechConfig{Provider: tt.provider, APIKey: tt.apiKey},
			}
			cc := NewConfigurationController(cfg)

			r := gin.New()
			r.GET("/api/configuration", cc.GetConfiguration)

			req := httptest.NewRequest(http.MethodGet, "/api/configuration", nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", w.Code)
			}
			if strings.Contains(w.Body.String(), "secret") {
				t.Error("api key must not be exposed")
			}

			var resp ConfigurationResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if resp.SpeechReady != tt.expectedReady {
				t.Errorf("expected speechReady %v, got %v", tt.expectedReady, resp.SpeechReady)
			}
			if resp.DebounceMs != tt.expectedDebounce {
				t.Errorf("expected debounce %d, got %d", tt.expectedDebounce, resp.DebounceMs)
			}
			if resp.SyncIntervalMs != 60000 {
				t.Errorf("expected sync interval 60000, got %d", resp.SyncIntervalMs)
			}
			if resp.Namespace != "jake_summer_" || len(resp.Documents) != 5 {
				t.Errorf("unexpected namespace or documents: %+v", resp)
			}
		})
	}
}
