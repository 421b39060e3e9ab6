package route

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bassista/go_scrapbook/internal/api/controller"
	"github.com/bassista/go_scrapbook/internal/api/middleware"
)

func NewAudioRouter(timeout time.Duration, group *gin.RouterGroup, cache controller.AudioStore, narrator controller.NarrationService) {
	ac := controller.NewAudioController(cache, narrator)
	timeoutMiddleware := middleware.RequestTimeout(timeout)

	group.GET("audio/stats", timeoutMiddleware, ac.Stats)
	group.DELETE("audio", timeoutMiddleware, ac.ClearAll)
	group.DELETE("audio/:subject", timeoutMiddleware, ac.ClearSubject)
	group.POST("audio/narrate", timeoutMiddleware, ac.Narrate)
}
