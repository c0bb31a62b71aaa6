package cash

import (
	"context"
	"fmt"

	"github.com/erp/retailops/internal/application/ledger"
	"github.com/erp/retailops/internal/domain/cash"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubmitRemittance records a remittance. When it is linked to a cash-up of
// the same shop and no expected amount is given, the counted cash of that
// report is expected.
func (s *Service) SubmitRemittance(ctx context.Context, actor shared.Actor, req SubmitRemittanceRequest) (*cash.Remittance, error) {
	if err := ledger.Validate(req); err != nil {
		return nil, err
	}
	var created *cash.Remittance
	_, err := s.coord.Run(ctx, nil, func(scope *ledger.Scope) error {
		expected := req.ExpectedAmount
		if req.CashUpReportID != nil {
			report, err := scope.CashUps().FindByID(ctx, req.TenantID, *req.CashUpReportID)
			if err != nil {
				return err
			}
			if report.ShopID != req.ShopID {
				return shared.InvalidInput("cash-up %s belongs to another shop", report.ReportNumber)
			}
			if expected == nil {
				counted := report.Actual.Cash
				expected = &counted
			}
		}
		r, err := cash.NewRemittance(cash.NewRemittanceParams{
			TenantID:         req.TenantID,
			ShopID:           req.ShopID,
			SubmittedBy:      actor.UserID,
			CashUpReportID:   req.CashUpReportID,
			Amount:           req.Amount,
			ExpectedAmount:   expected,
			RemittanceDate:   req.RemittanceDate,
			Method:           req.Method,
			PaymentReference: req.Reference,
			Notes:            req.Notes,
		})
		if err != nil {
			return err
		}
		if err := scope.Remittances().Save(ctx, r); err != nil {
			return fmt.Errorf("save remittance: %w", err)
		}
		scope.Record(r)
		created = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTransition(ctx, req.TenantID, workflowRemittance, string(created.Status()))
	logger.FromContext(ctx).Info("Remittance submitted",
		zap.String("remittance_number", created.RemittanceNumber),
		zap.String("amount", created.Amount.StringFixed(2)),
		zap.String("method", string(created.Method)),
	)
	return created, nil
}

// ApproveRemittance accepts a remittance and fixes its variance.
func (s *Service) ApproveRemittance(ctx context.Context, actor shared.Actor, req ApproveRemittanceRequest) (*cash.Remittance, error) {
	if err := actor.Require(shared.CapRemittanceApprove); err != nil {
		return nil, err
	}
	if err := ledger.Validate(req); err != nil {
		return nil, err
	}
	return s.changeRemittance(ctx, req.TenantID, req.RemittanceID, func(r *cash.Remittance) error {
		return r.Approve(actor.UserID, req.VarianceExplanation)
	})
}

// CloseRemittance marks the money as received by head office.
func (s *Service) CloseRemittance(ctx context.Context, actor shared.Actor, tenantID, remittanceID uuid.UUID) (*cash.Remittance, error) {
	if err := actor.Require(shared.CapRemittanceApprove); err != nil {
		return nil, err
	}
	return s.changeRemittance(ctx, tenantID, remittanceID, func(r *cash.Remittance) error {
		return r.Close(actor.UserID)
	})
}

// GetRemittance returns one remittance.
func (s *Service) GetRemittance(ctx context.Context, tenantID, remittanceID uuid.UUID) (*cash.Remittance, error) {
	return ledger.Read(ctx, s.coord, remittanceDoc(tenantID, remittanceID))
}

func (s *Service) changeRemittance(ctx context.Context, tenantID, id uuid.UUID, change func(*cash.Remittance) error) (*cash.Remittance, error) {
	r, _, err := ledger.Update(ctx, s.coord, nil, remittanceDoc(tenantID, id), func(_ *ledger.Scope, r *cash.Remittance) error {
		return change(r)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTransition(ctx, tenantID, workflowRemittance, string(r.Status()))
	return r, nil
}

func remittanceDoc(tenantID, id uuid.UUID) ledger.Document[*cash.Remittance] {
	return ledger.Document[*cash.Remittance]{
		Load: func(ctx context.Context, tx ledger.Tx) (*cash.Remittance, error) {
			return tx.Remittances().FindByID(ctx, tenantID, id)
		},
		Save: func(ctx context.Context, tx ledger.Tx, r *cash.Remittance) error {
			if err := tx.Remittances().Save(ctx, r); err != nil {
				return fmt.Errorf("save remittance: %w", err)
			}
			return nil
		},
	}
}
