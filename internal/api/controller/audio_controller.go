package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bassista/go_scrapbook/internal/audiocache"
	"github.com/bassista/go_scrapbook/internal/speech"
)

// AudioStore is the cache API needed by audio handlers.
type AudioStore interface {
	Stats(ctx context.Context) audiocache.Stats
	ClearForSubject(ctx context.Context, subjectID string) bool
	ClearAll(ctx context.Context) bool
}

// NarrationService produces narration for a page of text.
type NarrationService interface {
	Narrate(ctx context.Context, subjectID string, position int, text string) (speech.Narration, error)
}

type NarrateRequest struct {
	SubjectID string `json:"subjectId" binding:"required"`
	Position  *int   `json:"position" binding:"required,min=0"`
	Text      string `json:"text" binding:"required"`
}

type AudioController struct {
	cache    AudioStore
	narrator NarrationService
}

func NewAudioController(cache AudioStore, narrator NarrationService) *AudioController {
	return &AudioController{cache: cache, narrator: narrator}
}

// Stats returns the audio cache statistics.
func (ac *AudioController) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, ac.cache.Stats(c.Request.Context()))
}

// ClearAll drops every cached narration.
func (ac *AudioController) ClearAll(c *gin.Context) {
	if !ac.cache.ClearAll(c.Request.Context()) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear audio cache"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "audio cache cleared"})
}

// ClearSubject drops the cached narration of one book.
func (ac *AudioController) ClearSubject(c *gin.Context) {
	subject := c.Param("subject")
	if subject == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing subject id"})
		return
	}
	if !ac.cache.ClearForSubject(c.Request.Context(), subject) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear audio cache"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "audio cache cleared", "subjectId": subject})
}

// Narrate returns audio/mpeg for the requested page. X-Audio-Cache tells
// whether the paid generation was skipped.
func (ac *AudioController) Narrate(c *gin.Context) {
	var req NarrateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	narration, err := ac.narrator.Narrate(c.Request.Context(), req.SubjectID, *req.Position, req.Text)
	if err != nil {
		reason := speech.Reason(err)
		_ = c.Error(err)
		c.JSON(narrationStatus(err, reason), gin.H{"error": "narration failed", "reason": reason})
		return
	}

	cacheHeader := "miss"
	if narration.Cached {
		cacheHeader = "hit"
	}
	c.Header("X-Audio-Cache", cacheHeader)
	if !narration.Timestamp.IsZero() {
		c.Header("Last-Modified", narration.Timestamp.UTC().Format(http.TimeFormat))
	}
	c.Header("Content-Length", strconv.Itoa(len(narration.Data)))
	c.Data(http.StatusOK, "audio/mpeg", narration.Data)
}

func narrationStatus(err error, reason string) int {
	switch reason {
	case speech.ReasonRateLimited:
		return http.StatusTooManyRequests
	case speech.ReasonUnauthorized:
		return http.StatusUnauthorized
	case speech.ReasonNotFound:
		return http.StatusNotFound
	case speech.ReasonInvalid:
		return http.StatusBadRequest
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}
