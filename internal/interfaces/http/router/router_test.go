package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/interfaces/http/handler"
	"github.com/erp/retailops/internal/interfaces/http/middleware"
	"github.com/erp/retailops/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v2"))

	group := NewDomainGroup("test", "/test")
	group.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	r.Register(group)
	r.Setup()

	req := httptest.NewRequest(http.MethodGet, "/api/v2/test/ping", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestDomainGroup(t *testing.T) {
	t.Run("name and prefix", func(t *testing.T) {
		g := NewDomainGroup("ledger", "/ledger")
		assert.Equal(t, "ledger", g.Name())
		assert.Equal(t, "/ledger", g.Prefix())
	})

	t.Run("middleware and subgroups", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("parent", "/parent").Use(func(c *gin.Context) {
			c.Header("X-Group", "parent")
			c.Next()
		})
		g.Group("child", "/child").POST("/items", func(c *gin.Context) {
			c.Status(http.StatusCreated)
		})
		g.RegisterRoutes(engine.Group("/api"))

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/parent/child/items", nil))

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "parent", w.Header().Get("X-Group"))
	})
}

type outboxStub struct{}

func (outboxStub) CountByStatus(context.Context) (map[shared.OutboxStatus]int64, error) {
	return map[shared.OutboxStatus]int64{shared.OutboxPending: 2}, nil
}

func (outboxStub) RequeueDead(context.Context) (int64, error) { return 0, nil }

func TestNew_Routes(t *testing.T) {
	l := testutil.NewLedger(t)
	loc, prod := uuid.New(), uuid.New()
	l.Seed(t, l.Key(loc, prod), "4", "1.00")

	engine, err := New(Config{
		Logger:  zap.NewNop(),
		Tracing: middleware.TracingConfig{Enabled: false},
		System:  handler.NewSystemHandler("retailops", "test", map[string]handler.Pinger{}, nil),
		Ledger:  handler.NewLedgerHandler(l.Service, 2, 30),
		Outbox:  handler.NewOutboxHandler(outboxStub{}),
	})
	require.NoError(t, err)

	tenant := l.TenantID.String()
	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/health/live", http.StatusOK},
		{http.MethodGet, "/health/ready", http.StatusOK},
		{http.MethodGet, "/api/v1/system/info", http.StatusOK},
		{http.MethodGet, "/api/v1/outbox/stats", http.StatusOK},
		{http.MethodPost, "/api/v1/outbox/retry-dead", http.StatusOK},
		{http.MethodGet, "/api/v1/tenants/" + tenant + "/ledger/balances/" + loc.String() + "/" + prod.String(), http.StatusOK},
		{http.MethodGet, "/api/v1/tenants/" + tenant + "/ledger/expiring", http.StatusOK},
		{http.MethodPost, "/api/v1/tenants/" + tenant + "/ledger/verify", http.StatusOK},
		{http.MethodGet, "/api/v1/tenants/" + tenant + "/ledger/movements?ref_kind=transfer&ref_id=" + uuid.NewString(), http.StatusOK},
		{http.MethodGet, "/api/v1/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
		})
	}
}

func TestNew_BalanceBody(t *testing.T) {
	l := testutil.NewLedger(t)
	loc, prod := uuid.New(), uuid.New()
	l.Seed(t, l.Key(loc, prod), "4", "1.00")
	engine, err := New(Config{
		Logger: zap.NewNop(),
		System: handler.NewSystemHandler("retailops", "test", nil, nil),
		Ledger: handler.NewLedgerHandler(l.Service, 2, 30),
		Outbox: handler.NewOutboxHandler(outboxStub{}),
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/api/v1/tenants/"+l.TenantID.String()+"/ledger/balances/"+loc.String()+"/"+prod.String(), nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Success bool                    `json:"success"`
		Data    handler.BalanceResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.True(t, body.Data.OnHand.Equal(testutil.Dec("4")))
}
