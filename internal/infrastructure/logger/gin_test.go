package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func withRequestID(id string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("request_id", id)
		c.Next()
	}
}

func TestGinMiddleware(t *testing.T) {
	log, logs := observed()
	e := gin.New()
	e.Use(withRequestID("req-9"), GinMiddleware(log))
	e.GET("/tenants/:tenant_id/ledger/expiring", func(c *gin.Context) {
		FromContext(c.Request.Context()).Info("handler")
		assert.NotNil(t, GetGinLogger(c))
		c.Status(http.StatusOK)
	})
	e.GET("/fail", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })
	e.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	e.GET("/health/live", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/tenants/t1/ledger/expiring?days=5", "/fail", "/bad", "/health/live"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 5)

	assert.Equal(t, "handler", entries[0].Message)
	assert.Equal(t, "req-9", entries[0].ContextMap()["request_id"])

	req := entries[1].ContextMap()
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, "/tenants/:tenant_id/ledger/expiring", req["route"])
	assert.Equal(t, "days=5", req["query"])
	assert.EqualValues(t, http.StatusOK, req["status"])

	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[3].Level)
	assert.Equal(t, zapcore.DebugLevel, entries[4].Level)
}

func TestRecovery(t *testing.T) {
	t.Run("custom response", func(t *testing.T) {
		log, logs := observed()
		e := gin.New()
		e.Use(Recovery(log, func(c *gin.Context) {
			c.JSON(http.StatusInternalServerError, gin.H{"code": "ERR_INTERNAL"})
		}))
		e.GET("/", func(*gin.Context) { panic("boom") })

		w := httptest.NewRecorder()
		e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "ERR_INTERNAL")
		require.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
	})

	t.Run("bare status", func(t *testing.T) {
		log, _ := observed()
		e := gin.New()
		e.Use(Recovery(log, nil))
		e.GET("/", func(*gin.Context) { panic("boom") })

		w := httptest.NewRecorder()
		e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Empty(t, w.Body.String())
	})
}
