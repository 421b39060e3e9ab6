package route

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bassista/go_scrapbook/internal/api/middleware"
	"github.com/bassista/go_scrapbook/internal/app"
)

// SetupRoutes builds the HTTP surface of the scrapbook service.
func SetupRoutes(appCtx *app.App, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.HoneybadgerMiddleware(logger))
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware(appCtx.Config.Server.CORSAllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "UP",
		})
	})

	api := r.Group("/api")
	timeout := appCtx.Config.Server.RequestTimeout

	NewConfigurationRouter(timeout, api, appCtx.Config)
	NewSyncRouter(timeout, api, appCtx.Store)
	NewDocumentRouter(timeout, api, appCtx.Store)
	// Narration waits on the speech API, which has its own deadline.
	NewAudioRouter(timeout+appCtx.Config.Speech.Timeout, api, appCtx.Audio, appCtx.Narrator)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}
