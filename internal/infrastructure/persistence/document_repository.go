package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/retailops/internal/domain/cash"
	"github.com/erp/retailops/internal/domain/sales"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/domain/transfer"
	"github.com/erp/retailops/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func byPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// findRoot loads one tenant row into dest and records its version.
func (t *gormTx) findRoot(ctx context.Context, dest models.Versioned, resource string, tenantID, id uuid.UUID, preloads ...string) error {
	q := t.db.WithContext(ctx)
	for _, p := range preloads {
		if p == "Messages" {
			q = q.Preload(p, func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") })
			continue
		}
		q = q.Preload(p, byPosition)
	}
	if err := q.Where("tenant_id = ? AND id = ?", tenantID, id).First(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shared.NotFound(resource, id)
		}
		return err
	}
	rowID, version := dest.VersionKey()
	if _, ok := t.versions[rowID]; !ok {
		t.versions[rowID] = version
	}
	return nil
}

// saveRoot inserts a document the unit of work never loaded, otherwise
// updates it only if its stored version still matches the one loaded.
func (t *gormTx) saveRoot(ctx context.Context, resource string, root models.Versioned) error {
	id, version := root.VersionKey()
	db := t.db.WithContext(ctx).Omit(clause.Associations)

	loaded, ok := t.versions[id]
	if !ok {
		if err := db.Create(root).Error; err != nil {
			return err
		}
		t.versions[id] = version
		return nil
	}
	result := db.Model(root).
		Where("id = ? AND version = ?", id, loaded).
		Select("*").
		Updates(root)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeConflict,
			fmt.Sprintf("%s %s was modified by another transaction", resource, id))
	}
	t.versions[id] = version
	return nil
}

// upsert writes child rows keyed by primary key.
func upsert[M any](ctx context.Context, db *gorm.DB, rows []M) error {
	if len(rows) == 0 {
		return nil
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error
}

type transferRepository struct{ tx *gormTx }

func (r transferRepository) Save(ctx context.Context, t *transfer.Transfer) error {
	m := models.TransferModelFromDomain(t)
	if err := r.tx.saveRoot(ctx, "transfer", m); err != nil {
		return err
	}
	return upsert(ctx, r.tx.db, m.Items)
}

func (r transferRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*transfer.Transfer, error) {
	var m models.TransferModel
	if err := r.tx.findRoot(ctx, &m, "transfer", tenantID, id, "Items"); err != nil {
		return nil, err
	}
	return m.ToDomain(), nil
}

func (r transferRepository) ListByShopOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]*transfer.Transfer, error) {
	var rows []models.TransferModel
	if err := r.tx.db.WithContext(ctx).
		Preload("Items", byPosition).
		Where("tenant_id = ? AND shop_order_id = ?", tenantID, orderID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*transfer.Transfer, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

type shopOrderRepository struct{ tx *gormTx }

func (r shopOrderRepository) Save(ctx context.Context, o *transfer.ShopOrder) error {
	m := models.ShopOrderModelFromDomain(o)
	if err := r.tx.saveRoot(ctx, "shop order", m); err != nil {
		return err
	}
	return upsert(ctx, r.tx.db, m.Items)
}

// FindByID reads the ids of synthesized transfers back from transfers.shop_order_id.
func (r shopOrderRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*transfer.ShopOrder, error) {
	var m models.ShopOrderModel
	if err := r.tx.findRoot(ctx, &m, "shop order", tenantID, id, "Items"); err != nil {
		return nil, err
	}
	var transferIDs []uuid.UUID
	if err := r.tx.db.WithContext(ctx).
		Model(&models.TransferModel{}).
		Where("tenant_id = ? AND shop_order_id = ?", tenantID, id).
		Order("created_at ASC").
		Pluck("id", &transferIDs).Error; err != nil {
		return nil, err
	}
	return m.ToDomain(transferIDs), nil
}

type returnRequestRepository struct{ tx *gormTx }

func (r returnRequestRepository) Save(ctx context.Context, rr *transfer.ReturnRequest) error {
	m := models.ReturnRequestModelFromDomain(rr)
	if err := r.tx.saveRoot(ctx, "return request", m); err != nil {
		return err
	}
	return upsert(ctx, r.tx.db, m.Items)
}

func (r returnRequestRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*transfer.ReturnRequest, error) {
	var m models.ReturnRequestModel
	if err := r.tx.findRoot(ctx, &m, "return request", tenantID, id, "Items"); err != nil {
		return nil, err
	}
	return m.ToDomain(), nil
}

type disputeRepository struct{ tx *gormTx }

func (r disputeRepository) Save(ctx context.Context, d *transfer.Dispute) error {
	m := models.DisputeModelFromDomain(d)
	if err := r.tx.saveRoot(ctx, "dispute", m); err != nil {
		return err
	}
	return upsert(ctx, r.tx.db, m.Messages)
}

func (r disputeRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*transfer.Dispute, error) {
	var m models.DisputeModel
	if err := r.tx.findRoot(ctx, &m, "dispute", tenantID, id, "Messages"); err != nil {
		return nil, err
	}
	return m.ToDomain(), nil
}

func (r disputeRepository) ListByReference(ctx context.Context, tenantID uuid.UUID, ref shared.Reference) ([]*transfer.Dispute, error) {
	var rows []models.DisputeModel
	if err := r.tx.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("tenant_id = ? AND ref_kind = ? AND ref_id = ?", tenantID, string(ref.Kind), ref.ID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*transfer.Dispute, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

type saleRepository struct{ tx *gormTx }

func (r saleRepository) Save(ctx context.Context, s *sales.Sale) error {
	m := models.SaleModelFromDomain(s)
	if err := r.tx.saveRoot(ctx, "sale", m); err != nil {
		return err
	}
	if err := upsert(ctx, r.tx.db, m.Items); err != nil {
		return err
	}
	return upsert(ctx, r.tx.db, m.Payments)
}

func (r saleRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*sales.Sale, error) {
	var m models.SaleModel
	if err := r.tx.findRoot(ctx, &m, "sale", tenantID, id, "Items", "Payments"); err != nil {
		return nil, err
	}
	return m.ToDomain(), nil
}

func (r saleRepository) ListByShopBetween(ctx context.Context, tenantID, shopID uuid.UUID, from, to time.Time) ([]*sales.Sale, error) {
	var rows []models.SaleModel
	if err := r.tx.db.WithContext(ctx).
		Preload("Items", byPosition).
		Preload("Payments", byPosition).
		Where("tenant_id = ? AND shop_id = ? AND created_at >= ? AND created_at < ?", tenantID, shopID, from, to).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*sales.Sale, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

type refundRepository struct{ tx *gormTx }

func (r refundRepository) Save(ctx context.Context, rf *sales.Refund) error {
	m := models.RefundModelFromDomain(rf)
	if err := r.tx.saveRoot(ctx, "refund", m); err != nil {
		return err
	}
	return upsert(ctx, r.tx.db, m.Items)
}

func (r refundRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*sales.Refund, error) {
	var m models.RefundModel
	if err := r.tx.findRoot(ctx, &m, "refund", tenantID, id, "Items"); err != nil {
		return nil, err
	}
	return m.ToDomain(), nil
}

func (r refundRepository) ListBySale(ctx context.Context, tenantID, saleID uuid.UUID) ([]*sales.Refund, error) {
	var rows []models.RefundModel
	if err := r.tx.db.WithContext(ctx).
		Preload("Items", byPosition).
		Where("tenant_id = ? AND sale_id = ?", tenantID, saleID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*sales.Refund, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

func (r refundRepository) ListCompletedByShopBetween(ctx context.Context, tenantID, shopID uuid.UUID, from, to time.Time) ([]*sales.Refund, error) {
	var rows []models.RefundModel
	if err := r.tx.db.WithContext(ctx).
		Preload("Items", byPosition).
		Where("tenant_id = ? AND shop_id = ? AND status = ?", tenantID, shopID, string(sales.RefundCompleted)).
		Where("completed_at >= ? AND completed_at < ?", from, to).
		Order("completed_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*sales.Refund, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

type creditAccountRepository struct{ tx *gormTx }

// Save also appends the transactions posted since the account was loaded.
func (r creditAccountRepository) Save(ctx context.Context, a *sales.CreditAccount) error {
	if err := r.tx.saveRoot(ctx, "credit account", models.CreditAccountModelFromDomain(a)); err != nil {
		return err
	}
	pending := a.PendingTransactions()
	if len(pending) == 0 {
		return nil
	}
	rows := make([]*models.CreditTransactionModel, len(pending))
	for i, t := range pending {
		t.AccountID = a.ID
		rows[i] = models.CreditTransactionModelFromDomain(t)
	}
	if err := r.tx.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return err
	}
	a.ClearPendingTransactions()
	return nil
}

func (r creditAccountRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*sales.CreditAccount, error) {
	var m models.CreditAccountModel
	if err := r.tx.findRoot(ctx, &m, "credit account", tenantID, id); err != nil {
		return nil, err
	}
	return m.ToDomain(), nil
}

func (r creditAccountRepository) FindByCustomer(ctx context.Context, tenantID, customerID uuid.UUID) (*sales.CreditAccount, error) {
	var id uuid.UUID
	err := r.tx.db.WithContext(ctx).
		Model(&models.CreditAccountModel{}).
		Select("id").
		Where("tenant_id = ? AND customer_id = ?", tenantID, customerID).
		Take(&id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.NotFound("credit account for customer", customerID)
	}
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, tenantID, id)
}

func (r creditAccountRepository) ListTransactions(ctx context.Context, tenantID, accountID uuid.UUID) ([]sales.CreditTransaction, error) {
	var rows []models.CreditTransactionModel
	if err := r.tx.db.WithContext(ctx).
		Where("tenant_id = ? AND account_id = ?", tenantID, accountID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]sales.CreditTransaction, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

type cashUpRepository struct{ tx *gormTx }

func (r cashUpRepository) Save(ctx context.Context, c *cash.CashUpReport) error {
	return r.tx.saveRoot(ctx, "cash-up report", models.CashUpReportModelFromDomain(c))
}

func (r cashUpRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*cash.CashUpReport, error) {
	var m models.CashUpReportModel
	if err := r.tx.findRoot(ctx, &m, "cash-up report", tenantID, id); err != nil {
		return nil, err
	}
	return m.ToDomain(), nil
}

type remittanceRepository struct{ tx *gormTx }

func (r remittanceRepository) Save(ctx context.Context, rm *cash.Remittance) error {
	return r.tx.saveRoot(ctx, "remittance", models.RemittanceModelFromDomain(rm))
}

func (r remittanceRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*cash.Remittance, error) {
	var m models.RemittanceModel
	if err := r.tx.findRoot(ctx, &m, "remittance", tenantID, id); err != nil {
		return nil, err
	}
	return m.ToDomain(), nil
}
