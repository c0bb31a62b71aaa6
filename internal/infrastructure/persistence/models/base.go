package models

import (
	"time"

	"github.com/erp/retailops/internal/domain/shared"
	"github.com/google/uuid"
)

// BaseModel provides common persistence fields for all models.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// FromDomainBaseEntity populates BaseModel from a domain BaseEntity.
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// ToDomain converts BaseModel to a domain BaseEntity.
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// TenantAggregateModel holds the columns every workflow document shares.
// Version backs optimistic concurrency control.
type TenantAggregateModel struct {
	BaseModel
	Version   int       `gorm:"not null;default:1"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index"`
	CreatedBy uuid.UUID `gorm:"type:uuid"`
}

// FromDomainTenantAggregateRoot populates the model from a domain root.
func (m *TenantAggregateModel) FromDomainTenantAggregateRoot(t shared.TenantAggregateRoot) {
	m.FromDomainBaseEntity(t.BaseEntity)
	m.Version = t.Version
	m.TenantID = t.TenantID
	m.CreatedBy = t.CreatedBy
}

// TenantAggregateRoot rebuilds the domain root.
func (m *TenantAggregateModel) TenantAggregateRoot() shared.TenantAggregateRoot {
	return shared.TenantAggregateRoot{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: m.BaseModel.ToDomain(),
			Version:    m.Version,
		},
		TenantID:  m.TenantID,
		CreatedBy: m.CreatedBy,
	}
}

// ReferenceColumns stores a shared.Reference as a kind/id pair.
type ReferenceColumns struct {
	RefKind string     `gorm:"type:varchar(30);index"`
	RefID   *uuid.UUID `gorm:"type:uuid;index"`
}

// NewReferenceColumns converts ref; a zero reference stores NULLs.
func NewReferenceColumns(ref shared.Reference) ReferenceColumns {
	if ref.IsZero() {
		return ReferenceColumns{}
	}
	id := ref.ID
	return ReferenceColumns{RefKind: string(ref.Kind), RefID: &id}
}

// Reference rebuilds the domain reference.
func (c ReferenceColumns) Reference() shared.Reference {
	if c.RefID == nil {
		return shared.Reference{}
	}
	return shared.Reference{Kind: shared.ReferenceKind(c.RefKind), ID: *c.RefID}
}

// Versioned is implemented by every document model.
type Versioned interface {
	VersionKey() (id uuid.UUID, version int)
}

// VersionKey returns the row id and its optimistic-lock version.
func (m *TenantAggregateModel) VersionKey() (uuid.UUID, int) {
	return m.ID, m.Version
}
