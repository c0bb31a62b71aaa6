package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockOutbox struct {
	mock.Mock
}

func (m *mockOutbox) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	args := m.Called(ctx)
	counts, _ := args.Get(0).(map[shared.OutboxStatus]int64)
	return counts, args.Error(1)
}

func (m *mockOutbox) RequeueDead(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func outboxEngine(o OutboxAdmin) *gin.Engine {
	h := NewOutboxHandler(o)
	e := gin.New()
	e.GET("/outbox/stats", h.GetStats)
	e.POST("/outbox/retry-dead", h.RetryDead)
	return e
}

func TestOutboxHandler_GetStats(t *testing.T) {
	o := new(mockOutbox)
	o.On("CountByStatus", mock.Anything).Return(map[shared.OutboxStatus]int64{
		shared.OutboxPending: 4,
		shared.OutboxSent:    10,
		shared.OutboxDead:    1,
	}, nil)

	w := serve(outboxEngine(o), http.MethodGet, "/outbox/stats")

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[OutboxStatsResponse](t, w)
	assert.Equal(t, OutboxStatsResponse{Pending: 4, Sent: 10, Dead: 1, Total: 15}, resp.Data)
	o.AssertExpectations(t)
}

func TestOutboxHandler_GetStatsError(t *testing.T) {
	o := new(mockOutbox)
	o.On("CountByStatus", mock.Anything).Return(nil, assert.AnError)

	w := serve(outboxEngine(o), http.MethodGet, "/outbox/stats")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decode[any](t, w)
	assert.Equal(t, dto.ErrCodeInternal, resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, assert.AnError.Error())
}

func TestOutboxHandler_RetryDead(t *testing.T) {
	o := new(mockOutbox)
	o.On("RequeueDead", mock.Anything).Return(int64(3), nil)

	w := serve(outboxEngine(o), http.MethodPost, "/outbox/retry-dead")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]float64{"requeued": 3}, decode[map[string]float64](t, w).Data)
	o.AssertExpectations(t)
}
