package controller

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bassista/go_scrapbook/internal/logger"
	"github.com/bassista/go_scrapbook/internal/repository"
	"github.com/bassista/go_scrapbook/internal/store"
)

const maxDocumentBytes = 32 << 20

// DocumentStore is the store API needed by document handlers.
type DocumentStore interface {
	Keys(ctx context.Context) ([]string, error)
	LoadEnvelope(ctx context.Context, path string) (store.Envelope, error)
	Save(ctx context.Context, path string, value any) bool
}

type DocumentResponse struct {
	Path         string          `json:"path"`
	Value        json.RawMessage `json:"value,omitempty"`
	LastModified int64           `json:"lastModified"`
}

type DocumentController struct {
	store DocumentStore
}

func NewDocumentController(s DocumentStore) *DocumentController {
	return &DocumentController{store: s}
}

// ListDocuments returns the stored paths and their lastModified stamps.
func (dc *DocumentController) ListDocuments(c *gin.Context) {
	paths, err := dc.store.Keys(c.Request.Context())
	if err != nil {
		logger.WithComponent("document_controller").Errorf("failed to list documents: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list documents"})
		return
	}

	docs := make([]DocumentResponse, 0, len(paths))
	for _, p := range paths {
		env, err := dc.store.LoadEnvelope(c.Request.Context(), p)
		if err != nil {
			continue
		}
		docs = append(docs, DocumentResponse{Path: p, LastModified: env.LastModified})
	}
	c.JSON(http.StatusOK, docs)
}

// GetDocument returns one document. Missing and unreadable documents are 404.
func (dc *DocumentController) GetDocument(c *gin.Context) {
	path := c.Param("path")
	if err := repository.ValidateKey(path); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document path"})
		return
	}

	env, err := dc.store.LoadEnvelope(c.Request.Context(), path)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request timeout"})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}
	c.JSON(http.StatusOK, DocumentResponse{Path: path, Value: env.Value, LastModified: env.LastModified})
}

// PutDocument replaces a document with the JSON request body.
func (dc *DocumentController) PutDocument(c *gin.Context) {
	path := c.Param("path")
	if err := repository.ValidateKey(path); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document path"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDocumentBytes))
	if err != nil || !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if !dc.store.Save(c.Request.Context(), path, json.RawMessage(body)) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save document"})
		return
	}

	env, err := dc.store.LoadEnvelope(c.Request.Context(), path)
	if err != nil {
		c.JSON(http.StatusOK, DocumentResponse{Path: path, Value: body})
		return
	}
	c.JSON(http.StatusOK, DocumentResponse{Path: path, Value: env.Value, LastModified: env.LastModified})
}
