package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.GET("/sections", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestCORSAllowsListedOrigin(t *testing.T) {
	r := newRouter([]string{"https://portal.school.test/"})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/sections", nil)
	req.Header.Set("Origin", "https://portal.school.test")
	r.ServeHTTP(w, req)

	assert.Equal(t, "https://portal.school.test", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "X-Request-ID", w.Header().Get("Access-Control-Expose-Headers"))
}

func TestCORSRejectsUnknownOriginAndShortCircuitsPreflight(t *testing.T) {
	r := newRouter([]string{"https://portal.school.test"})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodOptions, "/sections", nil)
	req.Header.Set("Origin", "https://evil.test")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
