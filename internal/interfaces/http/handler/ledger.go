package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/erp/retailops/internal/application/ledger"
	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerReader is the part of the ledger service the ops surface exposes.
type LedgerReader interface {
	Balance(ctx context.Context, key inventory.BalanceKey) (*inventory.StockBalance, error)
	MovementsByReference(ctx context.Context, tenantID uuid.UUID, ref shared.Reference) ([]*inventory.StockMovement, error)
	VerifyTenant(ctx context.Context, tenantID uuid.UUID, parallelism int) ([]*inventory.Discrepancy, error)
	ScanExpiring(ctx context.Context, tenantID uuid.UUID, days int) ([]ledger.ExpiryAlert, error)
}

var _ LedgerReader = (*ledger.Service)(nil)

// LedgerHandler exposes balance reads, movement lookups, expiry scans and
// cache verification.
type LedgerHandler struct {
	BaseHandler
	ledger             LedgerReader
	defaultParallelism int
	defaultExpiryDays  int
}

// NewLedgerHandler creates a LedgerHandler.
func NewLedgerHandler(l LedgerReader, parallelism, expiryDays int) *LedgerHandler {
	return &LedgerHandler{ledger: l, defaultParallelism: parallelism, defaultExpiryDays: expiryDays}
}

// BalanceResponse is the cached balance of one key.
type BalanceResponse struct {
	TenantID       uuid.UUID        `json:"tenant_id"`
	LocationID     uuid.UUID        `json:"location_id"`
	ProductID      uuid.UUID        `json:"product_id"`
	BatchID        *uuid.UUID       `json:"batch_id,omitempty"`
	OnHand         decimal.Decimal  `json:"on_hand"`
	Reserved       decimal.Decimal  `json:"reserved"`
	Available      decimal.Decimal  `json:"available"`
	InTransit      decimal.Decimal  `json:"in_transit"`
	Damaged        decimal.Decimal  `json:"damaged"`
	AverageCost    *decimal.Decimal `json:"average_cost,omitempty"`
	LastSequence   int64            `json:"last_sequence"`
	LastMovementAt *time.Time       `json:"last_movement_at,omitempty"`
}

// MovementResponse is one ledger movement.
type MovementResponse struct {
	ID          uuid.UUID            `json:"id"`
	LocationID  uuid.UUID            `json:"location_id"`
	ProductID   uuid.UUID            `json:"product_id"`
	BatchID     *uuid.UUID           `json:"batch_id,omitempty"`
	Sequence    int64                `json:"sequence"`
	Kind        string               `json:"kind"`
	Reference   string               `json:"reference,omitempty"`
	QuantityIn  decimal.Decimal      `json:"quantity_in"`
	QuantityOut decimal.Decimal      `json:"quantity_out"`
	UnitCost    *decimal.Decimal     `json:"unit_cost,omitempty"`
	Snapshot    inventory.Quantities `json:"snapshot"`
	CreatedBy   uuid.UUID            `json:"created_by"`
	Notes       string               `json:"notes,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

// DiscrepancyResponse describes a cache row that disagrees with replay.
type DiscrepancyResponse struct {
	LocationID          uuid.UUID            `json:"location_id"`
	ProductID           uuid.UUID            `json:"product_id"`
	BatchID             *uuid.UUID           `json:"batch_id,omitempty"`
	Cached              inventory.Quantities `json:"cached"`
	Replayed            inventory.Quantities `json:"replayed"`
	CachedAverageCost   *decimal.Decimal     `json:"cached_average_cost,omitempty"`
	ReplayedAverageCost *decimal.Decimal     `json:"replayed_average_cost,omitempty"`
	CachedSequence      int64                `json:"cached_sequence"`
	ReplayedSequence    int64                `json:"replayed_sequence"`
}

// VerifyResponse summarizes a tenant verification run.
type VerifyResponse struct {
	TenantID      uuid.UUID             `json:"tenant_id"`
	Consistent    bool                  `json:"consistent"`
	Discrepancies []DiscrepancyResponse `json:"discrepancies"`
}

func batchPtr(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func toBalanceResponse(b *inventory.StockBalance) BalanceResponse {
	return BalanceResponse{
		TenantID:       b.Key.TenantID,
		LocationID:     b.Key.LocationID,
		ProductID:      b.Key.ProductID,
		BatchID:        batchPtr(b.Key.BatchID),
		OnHand:         b.OnHand,
		Reserved:       b.Reserved,
		Available:      b.Available(),
		InTransit:      b.InTransit,
		Damaged:        b.Damaged,
		AverageCost:    b.AverageCost,
		LastSequence:   b.LastSequence,
		LastMovementAt: b.LastMovementAt,
	}
}

func toMovementResponse(m *inventory.StockMovement) MovementResponse {
	return MovementResponse{
		ID:          m.ID,
		LocationID:  m.Key.LocationID,
		ProductID:   m.Key.ProductID,
		BatchID:     batchPtr(m.Key.BatchID),
		Sequence:    m.Sequence,
		Kind:        string(m.Kind),
		Reference:   m.Reference.String(),
		QuantityIn:  m.QuantityIn,
		QuantityOut: m.QuantityOut,
		UnitCost:    m.UnitCost,
		Snapshot:    m.Snapshot,
		CreatedBy:   m.CreatedBy,
		Notes:       m.Notes,
		CreatedAt:   m.CreatedAt,
	}
}

func toDiscrepancyResponse(d *inventory.Discrepancy) DiscrepancyResponse {
	return DiscrepancyResponse{
		LocationID:          d.Key.LocationID,
		ProductID:           d.Key.ProductID,
		BatchID:             batchPtr(d.Key.BatchID),
		Cached:              d.Cached,
		Replayed:            d.Replayed,
		CachedAverageCost:   d.CachedAverageCost,
		ReplayedAverageCost: d.ReplayedAverageCost,
		CachedSequence:      d.CachedSequence,
		ReplayedSequence:    d.ReplayedSequence,
	}
}

// GetBalance returns the cached balance of one location and product. The
// optional batch_id query parameter selects a batch.
func (h *LedgerHandler) GetBalance(c *gin.Context) {
	tenantID, ok := h.uuidParam(c, "tenant_id")
	if !ok {
		return
	}
	locationID, ok := h.uuidParam(c, "location_id")
	if !ok {
		return
	}
	productID, ok := h.uuidParam(c, "product_id")
	if !ok {
		return
	}
	var batchID *uuid.UUID
	if raw := c.Query("batch_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "batch_id must be a valid uuid")
			return
		}
		batchID = &id
	}

	b, err := h.ledger.Balance(c.Request.Context(), inventory.NewBalanceKey(tenantID, locationID, productID, batchID))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toBalanceResponse(b))
}

// ListMovements returns the movements posted by one document, selected by
// the ref_kind and ref_id query parameters.
func (h *LedgerHandler) ListMovements(c *gin.Context) {
	tenantID, ok := h.uuidParam(c, "tenant_id")
	if !ok {
		return
	}
	refID, err := uuid.Parse(c.Query("ref_id"))
	if err != nil {
		h.BadRequest(c, "ref_id must be a valid uuid")
		return
	}
	ref, err := shared.NewReference(shared.ReferenceKind(c.Query("ref_kind")), refID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	movements, err := h.ledger.MovementsByReference(c.Request.Context(), tenantID, ref)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]MovementResponse, len(movements))
	for i, m := range movements {
		out[i] = toMovementResponse(m)
	}
	h.Success(c, out)
}

// ListExpiring returns batches expiring within ?days= days, defaulting to
// the configured window.
func (h *LedgerHandler) ListExpiring(c *gin.Context) {
	tenantID, ok := h.uuidParam(c, "tenant_id")
	if !ok {
		return
	}
	days, ok := h.positiveQuery(c, "days", h.defaultExpiryDays)
	if !ok {
		return
	}

	alerts, err := h.ledger.ScanExpiring(c.Request.Context(), tenantID, days)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if alerts == nil {
		alerts = []ledger.ExpiryAlert{}
	}
	h.Success(c, alerts)
}

// Verify replays every balance key of the tenant and reports the cache rows
// that disagree with the ledger.
func (h *LedgerHandler) Verify(c *gin.Context) {
	tenantID, ok := h.uuidParam(c, "tenant_id")
	if !ok {
		return
	}
	parallelism, ok := h.positiveQuery(c, "parallelism", h.defaultParallelism)
	if !ok {
		return
	}

	found, err := h.ledger.VerifyTenant(c.Request.Context(), tenantID, parallelism)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	resp := VerifyResponse{
		TenantID:      tenantID,
		Consistent:    len(found) == 0,
		Discrepancies: make([]DiscrepancyResponse, len(found)),
	}
	for i, d := range found {
		resp.Discrepancies[i] = toDiscrepancyResponse(d)
	}
	h.Success(c, resp)
}

func (h *LedgerHandler) positiveQuery(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		h.BadRequest(c, name+" must be a positive integer")
		return 0, false
	}
	return n, true
}
