// Package cash runs the cash reconciliation workflows of a shop: cash-up
// reports for a trading period and the remittances that follow them.
package cash

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/retailops/internal/application/ledger"
	"github.com/erp/retailops/internal/domain/cash"
	"github.com/erp/retailops/internal/domain/sales"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/infrastructure/logger"
	"github.com/erp/retailops/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	workflowCashUp     = "cash_up"
	workflowRemittance = "remittance"
)

// Service handles cash-up and remittance operations.
type Service struct {
	coord   *ledger.Coordinator
	metrics *telemetry.LedgerMetrics
}

// NewService creates a Service running its units of work on coord.
func NewService(coord *ledger.Coordinator) *Service {
	return &Service{coord: coord}
}

// SetMetrics enables workflow transition metrics.
func (s *Service) SetMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

// CreateCashUp opens a draft report whose expected tenders are the shop's
// non-voided sale payments in [start, end), with change given taken off the
// cash and refunds completed in the period paid out of it. Sales charged to
// a credit account bring no money into the till and are left out.
func (s *Service) CreateCashUp(ctx context.Context, actor shared.Actor, req CreateCashUpRequest) (*cash.CashUpReport, error) {
	if err := ledger.Validate(req); err != nil {
		return nil, err
	}
	var created *cash.CashUpReport
	_, err := s.coord.Run(ctx, nil, func(scope *ledger.Scope) error {
		expected, err := expectedTenders(ctx, scope, req.TenantID, req.ShopID, req.PeriodStart, req.PeriodEnd)
		if err != nil {
			return err
		}
		r, err := cash.NewCashUpReport(req.TenantID, req.ShopID, actor.UserID, req.PeriodStart, req.PeriodEnd, expected)
		if err != nil {
			return err
		}
		r.Notes = req.Notes
		if err := scope.CashUps().Save(ctx, r); err != nil {
			return fmt.Errorf("save cash-up: %w", err)
		}
		created = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTransition(ctx, req.TenantID, workflowCashUp, string(created.Status()))
	logger.FromContext(ctx).Info("Cash-up created",
		zap.String("report_number", created.ReportNumber),
		zap.String("shop_id", created.ShopID.String()),
		zap.String("expected_total", created.Expected.Total().StringFixed(2)),
	)
	return created, nil
}

func expectedTenders(ctx context.Context, tx ledger.Tx, tenantID, shopID uuid.UUID, start, end time.Time) (cash.Tenders, error) {
	list, err := tx.Sales().ListByShopBetween(ctx, tenantID, shopID, start, end)
	if err != nil {
		return cash.Tenders{}, fmt.Errorf("list sales: %w", err)
	}
	var t cash.Tenders
	for _, sl := range list {
		if sl.Status() == sales.SaleVoided {
			continue
		}
		t.Cash = t.Cash.Add(sl.NetCash())
		t.Card = t.Card.Add(sl.PaidBy(sales.PaymentCard))
		t.Mobile = t.Mobile.Add(sl.PaidBy(sales.PaymentMobile))
	}

	refunds, err := tx.Refunds().ListCompletedByShopBetween(ctx, tenantID, shopID, start, end)
	if err != nil {
		return cash.Tenders{}, fmt.Errorf("list refunds: %w", err)
	}
	for _, r := range refunds {
		sl, err := tx.Sales().FindByID(ctx, tenantID, r.SaleID)
		if err != nil {
			return cash.Tenders{}, fmt.Errorf("load sale of refund %s: %w", r.RefundNumber, err)
		}
		// a voided sale already contributes nothing
		if sl.Status() == sales.SaleVoided {
			continue
		}
		t.Cash = t.Cash.Sub(r.Amount)
	}
	return t, nil
}

// SubmitCashUp records the counted tenders and computes the variance.
func (s *Service) SubmitCashUp(ctx context.Context, actor shared.Actor, req SubmitCashUpRequest) (*cash.CashUpReport, error) {
	if err := ledger.Validate(req); err != nil {
		return nil, err
	}
	r, err := s.changeCashUp(ctx, req.TenantID, req.ReportID, func(r *cash.CashUpReport) error {
		return r.Submit(actor.UserID, req.Actual, req.VarianceExplanation)
	})
	if err != nil {
		return nil, err
	}
	if !r.Variance.Total().IsZero() {
		logger.FromContext(ctx).Warn("Cash-up variance",
			zap.String("report_number", r.ReportNumber),
			zap.String("cash", r.Variance.Cash.StringFixed(2)),
			zap.String("card", r.Variance.Card.StringFixed(2)),
			zap.String("mobile", r.Variance.Mobile.StringFixed(2)),
		)
	}
	return r, nil
}

// ApproveCashUp signs off a submitted report.
func (s *Service) ApproveCashUp(ctx context.Context, actor shared.Actor, tenantID, reportID uuid.UUID) (*cash.CashUpReport, error) {
	if err := actor.Require(shared.CapCashUpApprove); err != nil {
		return nil, err
	}
	return s.changeCashUp(ctx, tenantID, reportID, func(r *cash.CashUpReport) error {
		return r.Approve(actor.UserID)
	})
}

// CloseCashUp closes a report.
func (s *Service) CloseCashUp(ctx context.Context, actor shared.Actor, tenantID, reportID uuid.UUID) (*cash.CashUpReport, error) {
	if err := actor.Require(shared.CapCashUpApprove); err != nil {
		return nil, err
	}
	return s.changeCashUp(ctx, tenantID, reportID, (*cash.CashUpReport).Close)
}

// GetCashUp returns one report.
func (s *Service) GetCashUp(ctx context.Context, tenantID, reportID uuid.UUID) (*cash.CashUpReport, error) {
	return ledger.Read(ctx, s.coord, cashUpDoc(tenantID, reportID))
}

func (s *Service) changeCashUp(ctx context.Context, tenantID, reportID uuid.UUID, change func(*cash.CashUpReport) error) (*cash.CashUpReport, error) {
	r, _, err := ledger.Update(ctx, s.coord, nil, cashUpDoc(tenantID, reportID), func(_ *ledger.Scope, r *cash.CashUpReport) error {
		return change(r)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTransition(ctx, tenantID, workflowCashUp, string(r.Status()))
	return r, nil
}

func cashUpDoc(tenantID, id uuid.UUID) ledger.Document[*cash.CashUpReport] {
	return ledger.Document[*cash.CashUpReport]{
		Load: func(ctx context.Context, tx ledger.Tx) (*cash.CashUpReport, error) {
			return tx.CashUps().FindByID(ctx, tenantID, id)
		},
		Save: func(ctx context.Context, tx ledger.Tx, r *cash.CashUpReport) error {
			if err := tx.CashUps().Save(ctx, r); err != nil {
				return fmt.Errorf("save cash-up: %w", err)
			}
			return nil
		},
	}
}
