package controller

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bassista/go_scrapbook/internal/logger"
	"github.com/bassista/go_scrapbook/internal/remotesync"
)

const maxSyncBodyBytes = 64 << 20

// SyncController serves the remote sync wire contract backed by the local
// store, so one instance can act as another's remote.
type SyncController struct {
	store remotesync.Source
}

func NewSyncController(store remotesync.Source) *SyncController {
	return &SyncController{store: store}
}

// GetDocuments returns every document with its lastModified stamp.
func (sc *SyncController) GetDocuments(c *gin.Context) {
	docs, err := sc.store.Snapshot(c.Request.Context())
	if err != nil {
		logger.WithComponent("sync_controller").Errorf("failed to read documents: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read documents"})
		return
	}

	payload := remotesync.Payload{Documents: make(map[string]remotesync.Document, len(docs))}
	for path, env := range docs {
		payload.Documents[path] = remotesync.Document{Value: env.Value, LastModified: env.LastModified}
	}
	c.JSON(http.StatusOK, payload)
}

// SaveDocuments stores every document of the pushed batch. The last push
// wins; no version check is made.
func (sc *SyncController) SaveDocuments(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSyncBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read payload"})
		return
	}
	payload, err := remotesync.DecodePayload(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	saved := 0
	for path, doc := range payload.Documents {
		if sc.store.Import(c.Request.Context(), path, doc.Value, doc.LastModified) {
			saved++
		}
	}
	if saved < len(payload.Documents) {
		logger.WithComponent("sync_controller").Warnf("stored %d of %d pushed documents", saved, len(payload.Documents))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "saved": saved, "error": "some documents could not be saved"})
		return
	}
	logger.WithComponent("sync_controller").Debugf("stored %d pushed documents", saved)
	c.JSON(http.StatusOK, gin.H{"success": true, "saved": saved, "message": "Data saved successfully"})
}
