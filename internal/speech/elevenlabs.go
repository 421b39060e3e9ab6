package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/containerd/errdefs"

	"github.com/bassista/go_scrapbook/internal/config"
	"github.com/bassista/go_scrapbook/internal/logger"
)

// maxAudioBytes bounds a single narration response.
var maxAudioBytes int64 = 32 << 20

// ElevenLabsGenerator calls the ElevenLabs text-to-speech API.
type ElevenLabsGenerator struct {
	cfg    config.SpeechConfig
	client *http.Client
}

func NewElevenLabsGenerator(cfg config.SpeechConfig, client *http.Client) *ElevenLabsGenerator {
	if client == nil {
		client = http.DefaultClient
	}
	return &ElevenLabsGenerator{cfg: cfg, client: client}
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id,omitempty"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

func (g *ElevenLabsGenerator) Generate(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if g.cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: speech api key is not configured", errdefs.ErrUnauthenticated)
	}

	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(ttsRequest{
		Text:    text,
		ModelID: g.cfg.ModelID,
		VoiceSettings: voiceSettings{
			Stability:       g.cfg.Stability,
			SimilarityBoost: g.cfg.SimilarityBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", errdefs.ErrInvalidArgument, err)
	}

	endpoint := strings.TrimRight(g.cfg.BaseURL, "/") + "/v1/text-to-speech/" + url.PathEscape(g.cfg.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrInvalidArgument, err)
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", g.cfg.APIKey)

	logger.WithComponent("speech").Debugf("requesting narration of %d characters", len(text))
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, classifyStatus(resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read audio: %v", errdefs.ErrUnavailable, err)
	}
	if int64(len(audio)) > maxAudioBytes {
		return nil, fmt.Errorf("%w: audio response exceeds %d bytes", errdefs.ErrUnavailable, maxAudioBytes)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty audio response", errdefs.ErrUnavailable)
	}
	return audio, nil
}

func classifyStatus(status int, detail string) error {
	var kind error
	switch {
	case status == http.StatusUnauthorized:
		kind = errdefs.ErrUnauthenticated
	case status == http.StatusForbidden:
		kind = errdefs.ErrPermissionDenied
	case status == http.StatusNotFound:
		kind = errdefs.ErrNotFound
	case status == http.StatusTooManyRequests:
		kind = errdefs.ErrResourceExhausted
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		kind = errdefs.ErrInvalidArgument
	case status >= 500:
		kind = errdefs.ErrUnavailable
	default:
		kind = errdefs.ErrUnknown
	}
	if detail == "" {
		return fmt.Errorf("%w: speech api returned %d", kind, status)
	}
	return fmt.Errorf("%w: speech api returned %d: %s", kind, status, detail)
}
