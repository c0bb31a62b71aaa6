package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/erp/retailops/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID(t *testing.T) {
	e := gin.New()
	e.Use(RequestID())
	e.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		_, err := uuid.Parse(w.Body.String())
		require.NoError(t, err)
		assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))
	})

	t.Run("propagated and truncated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("a", 300))
		w := httptest.NewRecorder()
		e.ServeHTTP(w, req)

		assert.Len(t, w.Body.String(), MaxRequestIDLength)
	})
}

func TestTimeout(t *testing.T) {
	e := gin.New()
	e.GET("/", Timeout(50*time.Millisecond), func(c *gin.Context) {
		deadline, ok := c.Request.Context().Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestTenantContext(t *testing.T) {
	e := gin.New()
	e.GET("/tenants/:tenant_id", TenantContext(), func(c *gin.Context) {
		c.String(http.StatusOK, logger.TenantID(c.Request.Context()).String())
	})

	tenant := uuid.New()
	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tenants/"+tenant.String(), nil))
	assert.Equal(t, tenant.String(), w.Body.String())

	w = httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tenants/not-a-uuid", nil))
	assert.Equal(t, uuid.Nil.String(), w.Body.String())
}

func TestBodyLimit(t *testing.T) {
	e := gin.New()
	e.Use(RequestID(), BodyLimit(8))
	e.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_REQUEST_TOO_LARGE")
}

func TestSecure(t *testing.T) {
	e := gin.New()
	e.Use(Secure())
	e.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestTracing_SpanAttributes(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(t.Context())
	})

	tenant := uuid.NewString()
	e := gin.New()
	e.Use(RequestID(), Tracing(DefaultTracingConfig()), SpanAttributes())
	e.GET("/tenants/:tenant_id/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	req := httptest.NewRequest(http.MethodGet, "/tenants/"+tenant+"/fail", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	e.ServeHTTP(httptest.NewRecorder(), req)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	attrs := map[attribute.Key]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value.Emit()
	}
	assert.Equal(t, "req-42", attrs["request_id"])
	assert.Equal(t, tenant, attrs["tenant_id"])
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestTracing_Disabled(t *testing.T) {
	e := gin.New()
	e.Use(Tracing(TracingConfig{Enabled: false}), SpanAttributes())
	e.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHTTPMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(t.Context()) })

	mw, err := HTTPMetrics(mp.Meter("test"))
	require.NoError(t, err)
	e := gin.New()
	e.Use(mw)
	e.GET("/tenants/:tenant_id/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for range 3 {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tenants/"+uuid.NewString()+"/ping", nil))
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(t.Context(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "http_server_request_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				route, _ := dp.Attributes.Value("http.route")
				assert.Equal(t, "/tenants/:tenant_id/ping", route.AsString())
				total += dp.Value
			}
		}
	}
	assert.Equal(t, int64(3), total)
}

func TestHTTPMetrics_NilMeter(t *testing.T) {
	mw, err := HTTPMetrics(nil)
	require.NoError(t, err)
	e := gin.New()
	e.Use(mw)
	e.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
