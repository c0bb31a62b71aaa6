package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/erp/retailops/internal/infrastructure/persistence"
	"github.com/erp/retailops/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedStats struct{}

func (fixedStats) Stats() (persistence.ConnectionStats, error) {
	return persistence.ConnectionStats{MaxOpenConnections: 25, OpenConnections: 3, InUse: 1, Idle: 2}, nil
}

func systemEngine(h *SystemHandler) *gin.Engine {
	e := gin.New()
	e.GET("/live", h.Live)
	e.GET("/ready", h.Ready)
	e.GET("/info", h.Info)
	return e
}

func TestSystemHandler_Info(t *testing.T) {
	h := NewSystemHandler("retailops", "1.2.0", nil, fixedStats{})

	w := serve(systemEngine(h), http.MethodGet, "/info")

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[SystemInfoResponse](t, w)
	assert.Equal(t, "retailops", resp.Data.Name)
	assert.Equal(t, "1.2.0", resp.Data.Version)
	require.NotNil(t, resp.Data.Database)
	assert.Equal(t, 3, resp.Data.Database.OpenConnections)
}

func TestSystemHandler_Live(t *testing.T) {
	w := serve(systemEngine(NewSystemHandler("retailops", "dev", nil, nil)), http.MethodGet, "/live")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSystemHandler_Ready(t *testing.T) {
	healthy := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	t.Run("all healthy", func(t *testing.T) {
		h := NewSystemHandler("retailops", "dev", map[string]Pinger{"database": healthy, "lock": healthy}, nil)

		w := serve(systemEngine(h), http.MethodGet, "/ready")

		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[ReadinessResponse](t, w)
		assert.Equal(t, "ready", resp.Data.Status)
		require.Len(t, resp.Data.Checks, 2)
		assert.Equal(t, "database", resp.Data.Checks[0].Name)
		assert.Equal(t, "lock", resp.Data.Checks[1].Name)
	})

	t.Run("dependency down", func(t *testing.T) {
		h := NewSystemHandler("retailops", "dev", map[string]Pinger{"database": healthy, "lock": down}, nil)

		w := serve(systemEngine(h), http.MethodGet, "/ready")

		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		resp := decode[ReadinessResponse](t, w)
		assert.Equal(t, "not_ready", resp.Data.Status)
		assert.Equal(t, dto.ErrCodeUnavailable, resp.Error.Code)
		assert.Equal(t, "connection refused", resp.Data.Checks[1].Error)
		assert.False(t, resp.Data.Checks[1].Healthy)
	})
}
