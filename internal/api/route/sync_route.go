package route

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bassista/go_scrapbook/internal/api/controller"
	"github.com/bassista/go_scrapbook/internal/api/middleware"
	"github.com/bassista/go_scrapbook/internal/remotesync"
)

// NewSyncRouter exposes the remote sync wire contract.
func NewSyncRouter(timeout time.Duration, group *gin.RouterGroup, store remotesync.Source) {
	sc := controller.NewSyncController(store)
	timeoutMiddleware := middleware.RequestTimeout(timeout)

	group.GET("sync", timeoutMiddleware, sc.GetDocuments)
	group.POST("sync", timeoutMiddleware, sc.SaveDocuments)
	group.PUT("sync", timeoutMiddleware, sc.SaveDocuments)
}
