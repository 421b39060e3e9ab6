package route

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bassista/go_scrapbook/internal/api/controller"
	"github.com/bassista/go_scrapbook/internal/api/middleware"
)

func NewDocumentRouter(timeout time.Duration, group *gin.RouterGroup, store controller.DocumentStore) {
	dc := controller.NewDocumentController(store)
	timeoutMiddleware := middleware.RequestTimeout(timeout)

	group.GET("documents", timeoutMiddleware, dc.ListDocuments)
	group.GET("documents/:path", timeoutMiddleware, dc.GetDocument)
	group.PUT("documents/:path", timeoutMiddleware, dc.PutDocument)
}
