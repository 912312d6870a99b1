package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-enrollment-api/pkg/errors"
	"github.com/noah-isme/sma-enrollment-api/pkg/middleware/requestid"
)

func TestErrorEchoesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.Middleware())
	r.GET("/sections/:id", func(c *gin.Context) {
		Error(c, appErrors.Clone(appErrors.ErrCapacityExhausted, "section sec-a has no free seat"))
	})

	req := httptest.NewRequest(http.MethodGet, "/sections/sec-a", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
		Meta map[string]string `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "CAPACITY_EXHAUSTED", body.Error.Code)
	assert.Equal(t, "req-42", body.Meta["requestId"])
}

func TestJSONWithoutRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	JSON(c, http.StatusOK, map[string]int{"seatsAvailable": 3}, nil)

	assert.JSONEq(t, `{"data":{"seatsAvailable":3}}`, w.Body.String())
}
