package event

import (
	"context"
	"time"

	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOutboxRepository implements shared.OutboxRepository over the
// outbox_events table.
type GormOutboxRepository struct {
	db *gorm.DB
}

// NewGormOutboxRepository creates a new GORM-based outbox repository
func NewGormOutboxRepository(db *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: db}
}

// Save persists one or more outbox entries
func (r *GormOutboxRepository) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]*models.OutboxEntryModel, len(entries))
	for i, e := range entries {
		rows[i] = models.OutboxEntryModelFromDomain(e)
	}
	return r.db.WithContext(ctx).Create(rows).Error
}

// ClaimDue locks due entries with FOR UPDATE SKIP LOCKED and moves them to
// processing in one transaction, so concurrent relays never claim the same
// entry.
func (r *GormOutboxRepository) ClaimDue(ctx context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error) {
	var claimed []*shared.OutboxEntry

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []models.OutboxEntryModel
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? OR (status = ? AND next_attempt_at <= ?)",
				shared.OutboxPending, shared.OutboxFailed, before).
			Order("created_at ASC").
			Limit(limit).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]any, len(rows))
		claimed = make([]*shared.OutboxEntry, 0, len(rows))
		for i := range rows {
			e := rows[i].ToDomain()
			if err := e.Claim(); err != nil {
				return err
			}
			ids[i] = e.ID
			claimed = append(claimed, e)
		}

		return tx.Model(&models.OutboxEntryModel{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"status":     shared.OutboxProcessing,
				"updated_at": time.Now(),
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Update stores the delivery state of an entry.
func (r *GormOutboxRepository) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	entry.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(models.OutboxEntryModelFromDomain(entry)).Error
}

// DeleteSentBefore removes delivered entries sent before the cutoff.
func (r *GormOutboxRepository) DeleteSentBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND sent_at < ?", shared.OutboxSent, before).
		Delete(&models.OutboxEntryModel{})
	return result.RowsAffected, result.Error
}

// RequeueDead moves dead-lettered entries back to pending with a fresh
// attempt budget and returns how many were moved.
func (r *GormOutboxRepository) RequeueDead(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.OutboxEntryModel{}).
		Where("status = ?", shared.OutboxDead).
		Updates(map[string]any{
			"status":          shared.OutboxPending,
			"attempts":        0,
			"last_error":      "",
			"next_attempt_at": nil,
			"updated_at":      time.Now(),
		})
	return result.RowsAffected, result.Error
}

// CountByStatus returns the number of entries in each status.
func (r *GormOutboxRepository) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	var rows []struct {
		Status shared.OutboxStatus
		Count  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.OutboxEntryModel{}).
		Select("status, count(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[shared.OutboxStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// Ensure GormOutboxRepository implements OutboxRepository
var _ shared.OutboxRepository = (*GormOutboxRepository)(nil)
