package handler

import (
	"context"

	"github.com/erp/retailops/internal/domain/shared"
	"github.com/gin-gonic/gin"
)

// OutboxAdmin reports and repairs the event outbox.
type OutboxAdmin interface {
	CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error)
	RequeueDead(ctx context.Context) (int64, error)
}

// OutboxHandler handles outbox administration endpoints
type OutboxHandler struct {
	BaseHandler
	outbox OutboxAdmin
}

// NewOutboxHandler creates a new OutboxHandler
func NewOutboxHandler(outbox OutboxAdmin) *OutboxHandler {
	return &OutboxHandler{outbox: outbox}
}

// OutboxStatsResponse represents outbox statistics
type OutboxStatsResponse struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
	Total      int64 `json:"total"`
}

// GetStats returns the number of outbox entries per status.
func (h *OutboxHandler) GetStats(c *gin.Context) {
	counts, err := h.outbox.CountByStatus(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := OutboxStatsResponse{
		Pending:    counts[shared.OutboxPending],
		Processing: counts[shared.OutboxProcessing],
		Sent:       counts[shared.OutboxSent],
		Failed:     counts[shared.OutboxFailed],
		Dead:       counts[shared.OutboxDead],
	}
	for _, n := range counts {
		resp.Total += n
	}
	h.Success(c, resp)
}

// RetryDead requeues every dead-lettered entry.
func (h *OutboxHandler) RetryDead(c *gin.Context) {
	n, err := h.outbox.RequeueDead(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"requeued": n})
}
