package cash

import (
	"context"

	"github.com/google/uuid"
)

// CashUpRepository persists cash-up reports.
type CashUpRepository interface {
	Save(ctx context.Context, r *CashUpReport) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*CashUpReport, error)
}

// RemittanceRepository persists remittances.
type RemittanceRepository interface {
	Save(ctx context.Context, r *Remittance) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Remittance, error)
}
