package persistence

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const keyFilter = "tenant_id = ? AND location_id = ? AND product_id = ? AND batch_id = ?"

func keyArgs(k inventory.BalanceKey) []any {
	return []any{k.TenantID, k.LocationID, k.ProductID, k.BatchID}
}

type movementRepository struct{ tx *gormTx }

// Append inserts the movement. A second writer racing on the same sequence
// hits the unique (key, sequence) index.
func (r movementRepository) Append(ctx context.Context, m *inventory.StockMovement) error {
	return r.tx.db.WithContext(ctx).Create(models.StockMovementModelFromDomain(m)).Error
}

func (r movementRepository) ListByKey(ctx context.Context, key inventory.BalanceKey) ([]*inventory.StockMovement, error) {
	var rows []models.StockMovementModel
	if err := r.tx.db.WithContext(ctx).
		Where(keyFilter, keyArgs(key)...).
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return movementsToDomain(rows), nil
}

func (r movementRepository) ListByReference(ctx context.Context, tenantID uuid.UUID, ref shared.Reference) ([]*inventory.StockMovement, error) {
	var rows []models.StockMovementModel
	if err := r.tx.db.WithContext(ctx).
		Where("tenant_id = ? AND ref_kind = ? AND ref_id = ?", tenantID, string(ref.Kind), ref.ID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := movementsToDomain(rows)
	slices.SortStableFunc(out, func(a, b *inventory.StockMovement) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if c := a.Key.Compare(b.Key); c != 0 {
			return c
		}
		return cmp.Compare(a.Sequence, b.Sequence)
	})
	return out, nil
}

func movementsToDomain(rows []models.StockMovementModel) []*inventory.StockMovement {
	out := make([]*inventory.StockMovement, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}

type balanceRepository struct{ tx *gormTx }

// GetForUpdate reads the row with SELECT ... FOR UPDATE. A key that never
// moved has no row to lock; its first insert is guarded by the primary key.
func (r balanceRepository) GetForUpdate(ctx context.Context, key inventory.BalanceKey) (*inventory.StockBalance, error) {
	return r.load(ctx, key, true)
}

func (r balanceRepository) Get(ctx context.Context, key inventory.BalanceKey) (*inventory.StockBalance, error) {
	return r.load(ctx, key, false)
}

func (r balanceRepository) load(ctx context.Context, key inventory.BalanceKey, forUpdate bool) (*inventory.StockBalance, error) {
	q := r.tx.db.WithContext(ctx)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var m models.StockBalanceModel
	err := q.Where(keyFilter, keyArgs(key)...).Take(&m).Error

	var (
		b      *inventory.StockBalance
		exists bool
	)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		b = inventory.NewStockBalance(key)
	case err != nil:
		return nil, err
	default:
		b, exists = m.ToDomain(), true
	}
	if _, seen := r.tx.balances[key]; !seen {
		r.tx.balances[key] = balanceRead{sequence: b.LastSequence, exists: exists}
	}
	return b, nil
}

// Save writes the balance only if its stored sequence is still the one this
// unit of work read.
func (r balanceRepository) Save(ctx context.Context, b *inventory.StockBalance) error {
	read, seen := r.tx.balances[b.Key]
	if !seen {
		if _, err := r.Get(ctx, b.Key); err != nil {
			return err
		}
		read = r.tx.balances[b.Key]
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = time.Now()
	}
	m := models.StockBalanceModelFromDomain(b)
	db := r.tx.db.WithContext(ctx)

	if !read.exists {
		if err := db.Create(m).Error; err != nil {
			return err
		}
	} else {
		// The nil batch id is a zero primary key value, so gorm would leave
		// it out of the implicit key condition.
		result := db.Model(m).
			Where(keyFilter, keyArgs(b.Key)...).
			Where("last_sequence = ?", read.sequence).
			Select("*").
			Updates(m)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.NewDomainError(shared.CodeConflict,
				fmt.Sprintf("balance %s moved concurrently", b.Key))
		}
	}
	r.tx.balances[b.Key] = balanceRead{sequence: b.LastSequence, exists: true}
	return nil
}

func (r balanceRepository) list(ctx context.Context, query string, args ...any) ([]*inventory.StockBalance, error) {
	var rows []models.StockBalanceModel
	if err := r.tx.db.WithContext(ctx).
		Where(query, args...).
		Order("location_id, product_id, batch_id").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*inventory.StockBalance, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	slices.SortFunc(out, func(a, b *inventory.StockBalance) int { return a.Key.Compare(b.Key) })
	return out, nil
}

func (r balanceRepository) ListByLocation(ctx context.Context, tenantID, locationID uuid.UUID) ([]*inventory.StockBalance, error) {
	return r.list(ctx, "tenant_id = ? AND location_id = ?", tenantID, locationID)
}

func (r balanceRepository) ListByBatch(ctx context.Context, tenantID, batchID uuid.UUID) ([]*inventory.StockBalance, error) {
	return r.list(ctx, "tenant_id = ? AND batch_id = ?", tenantID, batchID)
}

// ListKeys unions the keys of balance rows with the keys of movements, so a
// key whose cache row was lost still shows up for verification.
func (r balanceRepository) ListKeys(ctx context.Context, tenantID uuid.UUID) ([]inventory.BalanceKey, error) {
	db := r.tx.db.WithContext(ctx)

	var cached []models.KeyColumns
	if err := db.Model(&models.StockBalanceModel{}).
		Where("tenant_id = ?", tenantID).
		Find(&cached).Error; err != nil {
		return nil, err
	}
	var moved []models.KeyColumns
	if err := db.Model(&models.StockMovementModel{}).
		Distinct("tenant_id", "location_id", "product_id", "batch_id").
		Where("tenant_id = ?", tenantID).
		Find(&moved).Error; err != nil {
		return nil, err
	}

	seen := make(map[inventory.BalanceKey]struct{}, len(cached)+len(moved))
	keys := make([]inventory.BalanceKey, 0, len(cached)+len(moved))
	for _, c := range slices.Concat(cached, moved) {
		k := c.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return inventory.SortKeys(keys), nil
}

type batchRepository struct{ tx *gormTx }

func (r batchRepository) Save(ctx context.Context, b *inventory.Batch) error {
	return r.tx.db.WithContext(ctx).Save(models.BatchModelFromDomain(b)).Error
}

func (r batchRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*inventory.Batch, error) {
	var m models.BatchModel
	if err := r.tx.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NotFound("batch", id)
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

func (r batchRepository) ListExpiringBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) ([]*inventory.Batch, error) {
	var rows []models.BatchModel
	if err := r.tx.db.WithContext(ctx).
		Where("tenant_id = ? AND expiry_date IS NOT NULL AND expiry_date < ?", tenantID, cutoff).
		Order("expiry_date ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*inventory.Batch, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}
