package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-api/pkg/errors"
)

type validatorStub map[string]*models.JWTClaims

func (v validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := v[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type auditWriterStub struct {
	logs []*models.AuditLog
}

func (a *auditWriterStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type observerStub struct {
	paths []string
}

func (o *observerStub) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	o.paths = append(o.paths, method+" "+path)
}

func newRouter(tokens validatorStub, roles ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/sections/:id", JWT(tokens), RequireRoles(roles...), func(c *gin.Context) {
		c.String(http.StatusOK, Claims(c).UserID)
	})
	return r
}

func TestJWTAndRoles(t *testing.T) {
	tokens := validatorStub{
		"admin":   {UserID: "admin-1", Role: models.RoleAdmin},
		"student": {UserID: "s1", Role: models.RoleStudent},
	}
	router := newRouter(tokens, models.RoleAdmin)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic admin", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"role not allowed", "Bearer student", http.StatusForbidden},
		{"admin", "Bearer admin", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/sections/sec-a", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestAuditRecordsOnlySuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	writer := &auditWriterStub{}
	r := gin.New()
	r.POST("/run/:outcome", func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
		c.Next()
	}, Audit(writer, nil, models.AuditActionAllocationRun, "enrollment"), func(c *gin.Context) {
		if c.Param("outcome") == "fail" {
			c.Status(http.StatusConflict)
			return
		}
		c.Status(http.StatusOK)
	})

	for _, outcome := range []string{"ok", "fail"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/run/"+outcome, nil))
	}
	require.Len(t, writer.logs, 1)
	assert.Equal(t, models.AuditActionAllocationRun, writer.logs[0].Action)
	require.NotNil(t, writer.logs[0].UserID)
	assert.Equal(t, "admin-1", *writer.logs[0].UserID)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &observerStub{}
	r := gin.New()
	r.Use(Metrics(observer))
	r.GET("/sections/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sections/sec-a", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, []string{"GET /sections/:id", "GET unmatched"}, observer.paths)
}
