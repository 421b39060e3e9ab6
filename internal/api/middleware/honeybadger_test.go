package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func TestHoneybadgerMiddleware_DisabledWithoutAPIKey(t *testing.T) {
	t.Setenv("HONEYBADGER_API_KEY", "")

	log := logrus.New()
	log.SetOutput(io.Discard)

	r := gin.New()
	r.Use(HoneybadgerMiddleware(log))
	r.GET("/boom", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected handler status to pass through, got %d", w.Code)
	}
}
