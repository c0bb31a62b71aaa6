package inventory

import (
	"strings"
	"time"

	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Batch is a production run of one product.
type Batch struct {
	shared.BaseEntity
	TenantID       uuid.UUID
	ProductID      uuid.UUID
	LocationID     uuid.UUID
	BatchNumber    string
	ProductionDate time.Time
	ExpiryDate     *time.Time
	Quantity       decimal.Decimal
	BulkPrice      decimal.Decimal
	UnitCost       decimal.Decimal
	CreatedBy      uuid.UUID
}

// NewBatchParams holds the inputs of NewBatch.
type NewBatchParams struct {
	TenantID       uuid.UUID
	ProductID      uuid.UUID
	LocationID     uuid.UUID
	BatchNumber    string
	ProductionDate time.Time
	ExpiryDate     *time.Time
	Quantity       decimal.Decimal
	BulkPrice      decimal.Decimal
	UnitCost       *decimal.Decimal
	CreatedBy      uuid.UUID
}

// NewBatch validates and creates a batch. When no unit cost is given it is
// derived as bulk price / quantity.
func NewBatch(p NewBatchParams) (*Batch, error) {
	if p.TenantID == uuid.Nil || p.ProductID == uuid.Nil || p.LocationID == uuid.Nil {
		return nil, shared.InvalidInput("batch requires tenant, product and location")
	}
	number := strings.TrimSpace(p.BatchNumber)
	if number == "" {
		return nil, shared.InvalidInput("batch number is required")
	}
	if !p.Quantity.IsPositive() {
		return nil, shared.InvalidInput("batch quantity must be positive")
	}
	if err := valueobject.ValidateQuantity(p.Quantity); err != nil {
		return nil, shared.InvalidInput("%s", err.Error())
	}
	if err := valueobject.ValidateAmount(p.BulkPrice); err != nil {
		return nil, shared.InvalidInput("bulk price: %s", err.Error())
	}
	if p.ExpiryDate != nil && p.ExpiryDate.Before(p.ProductionDate) {
		return nil, shared.InvalidInput("expiry date precedes production date")
	}

	unitCost := valueobject.UnitCost(p.BulkPrice.Div(p.Quantity))
	if p.UnitCost != nil {
		if p.UnitCost.IsNegative() {
			return nil, shared.InvalidInput("unit cost cannot be negative")
		}
		unitCost = valueobject.UnitCost(*p.UnitCost)
	}

	return &Batch{
		BaseEntity:     shared.NewBaseEntity(),
		TenantID:       p.TenantID,
		ProductID:      p.ProductID,
		LocationID:     p.LocationID,
		BatchNumber:    number,
		ProductionDate: p.ProductionDate,
		ExpiryDate:     p.ExpiryDate,
		Quantity:       p.Quantity,
		BulkPrice:      p.BulkPrice,
		UnitCost:       unitCost,
		CreatedBy:      p.CreatedBy,
	}, nil
}

// IsExpired reports whether the batch has expired at now.
func (b *Batch) IsExpired(now time.Time) bool {
	return b.ExpiryDate != nil && !b.ExpiryDate.After(now)
}

// DaysUntilExpiry returns whole days left, or -1 without an expiry date.
func (b *Batch) DaysUntilExpiry(now time.Time) int {
	if b.ExpiryDate == nil {
		return -1
	}
	return int(b.ExpiryDate.Sub(now).Hours() / 24)
}

// ExpiresWithin reports whether the batch expires within days of now.
func (b *Batch) ExpiresWithin(now time.Time, days int) bool {
	if b.ExpiryDate == nil {
		return false
	}
	return b.ExpiryDate.Before(now.AddDate(0, 0, days))
}
