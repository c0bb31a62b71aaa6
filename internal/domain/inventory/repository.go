package inventory

import (
	"context"
	"time"

	"github.com/erp/retailops/internal/domain/shared"
	"github.com/google/uuid"
)

// MovementRepository is the append-only ledger store.
type MovementRepository interface {
	// Append persists a movement. Movements are never updated or deleted.
	Append(ctx context.Context, m *StockMovement) error
	// ListByKey returns every movement of a key ordered by sequence.
	ListByKey(ctx context.Context, key BalanceKey) ([]*StockMovement, error)
	// ListByReference returns the movements a workflow document produced.
	ListByReference(ctx context.Context, tenantID uuid.UUID, ref shared.Reference) ([]*StockMovement, error)
}

// BalanceRepository stores the balance cache.
type BalanceRepository interface {
	// GetForUpdate returns the balance under a row lock, or an empty balance
	// when the key has never moved.
	GetForUpdate(ctx context.Context, key BalanceKey) (*StockBalance, error)
	// Get returns the balance, or an empty balance when the key has never moved.
	Get(ctx context.Context, key BalanceKey) (*StockBalance, error)
	// Save inserts or replaces the row for b.Key.
	Save(ctx context.Context, b *StockBalance) error
	ListByLocation(ctx context.Context, tenantID, locationID uuid.UUID) ([]*StockBalance, error)
	// ListByBatch returns the balances of one batch across all locations.
	ListByBatch(ctx context.Context, tenantID, batchID uuid.UUID) ([]*StockBalance, error)
	// ListKeys returns every key that has a balance row or a movement.
	ListKeys(ctx context.Context, tenantID uuid.UUID) ([]BalanceKey, error)
}

// BatchRepository stores production batches.
type BatchRepository interface {
	Save(ctx context.Context, b *Batch) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Batch, error)
	// ListExpiringBefore returns batches whose expiry date is before the cutoff.
	ListExpiringBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) ([]*Batch, error)
}
