package transfer

import (
	"context"
	"fmt"

	"github.com/erp/retailops/internal/application/ledger"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/domain/transfer"
	"github.com/erp/retailops/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OpenDispute raises a dispute and moves the referenced document to its
// disputed state in the same unit of work. Sales have no disputed state;
// the sale only has to exist.
func (s *Service) OpenDispute(ctx context.Context, actor shared.Actor, req OpenDisputeRequest) (*transfer.Dispute, error) {
	if err := ledger.Validate(req); err != nil {
		return nil, err
	}
	var (
		opened   *transfer.Dispute
		workflow string
		state    string
	)
	_, err := s.coord.Run(ctx, nil, func(scope *ledger.Scope) error {
		d, err := transfer.NewDispute(req.TenantID, actor.UserID, req.Reference, req.Subject, req.Message)
		if err != nil {
			return err
		}
		workflow, state, err = s.markDisputed(ctx, scope, req.TenantID, d.Reference)
		if err != nil {
			return err
		}
		if err := scope.Disputes().Save(ctx, d); err != nil {
			return fmt.Errorf("save dispute: %w", err)
		}
		scope.Record(d)
		opened = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	if state != "" {
		s.metrics.RecordTransition(ctx, req.TenantID, workflow, state)
	}
	logger.FromContext(ctx).Info("Dispute opened",
		zap.String("dispute_number", opened.DisputeNumber),
		zap.String("reference", opened.Reference.String()),
	)
	return opened, nil
}

// markDisputed fires the dispute transition of the referenced document and
// returns its workflow and new state.
func (s *Service) markDisputed(ctx context.Context, scope *ledger.Scope, tenantID uuid.UUID, ref shared.Reference) (string, string, error) {
	switch ref.Kind {
	case shared.RefTransfer:
		t, err := scope.Transfers().FindByID(ctx, tenantID, ref.ID)
		if err != nil {
			return "", "", err
		}
		if err := t.Dispute(); err != nil {
			return "", "", err
		}
		return workflowTransfer, string(t.Status()), scope.Transfers().Save(ctx, t)
	case shared.RefReturnRequest:
		r, err := scope.ReturnRequests().FindByID(ctx, tenantID, ref.ID)
		if err != nil {
			return "", "", err
		}
		if err := r.Dispute(); err != nil {
			return "", "", err
		}
		return workflowReturn, string(r.Status()), scope.ReturnRequests().Save(ctx, r)
	case shared.RefCashUp:
		c, err := scope.CashUps().FindByID(ctx, tenantID, ref.ID)
		if err != nil {
			return "", "", err
		}
		if err := c.Dispute(); err != nil {
			return "", "", err
		}
		return "cash_up", string(c.Status()), scope.CashUps().Save(ctx, c)
	case shared.RefRemittance:
		r, err := scope.Remittances().FindByID(ctx, tenantID, ref.ID)
		if err != nil {
			return "", "", err
		}
		if err := r.Dispute(); err != nil {
			return "", "", err
		}
		return "remittance", string(r.Status()), scope.Remittances().Save(ctx, r)
	case shared.RefSale:
		_, err := scope.Sales().FindByID(ctx, tenantID, ref.ID)
		return "", "", err
	}
	return "", "", shared.InvalidInput("%s documents cannot be disputed", ref.Kind)
}

// AddDisputeMessage appends to an open dispute's thread.
func (s *Service) AddDisputeMessage(ctx context.Context, actor shared.Actor, tenantID, disputeID uuid.UUID, body string) (*transfer.Dispute, error) {
	d, _, err := ledger.Update(ctx, s.coord, nil, disputeDoc(tenantID, disputeID), func(_ *ledger.Scope, d *transfer.Dispute) error {
		return d.AddMessage(actor.UserID, body)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ResolveDispute closes the thread. A disputed transfer is resolved with it;
// other documents keep their disputed state until closed.
func (s *Service) ResolveDispute(ctx context.Context, actor shared.Actor, req ResolveDisputeRequest) (*transfer.Dispute, error) {
	if err := actor.Require(shared.CapDisputeResolve); err != nil {
		return nil, err
	}
	if err := ledger.Validate(req); err != nil {
		return nil, err
	}
	var resolvedTransfer bool
	d, _, err := ledger.Update(ctx, s.coord, nil, disputeDoc(req.TenantID, req.DisputeID), func(scope *ledger.Scope, d *transfer.Dispute) error {
		if err := d.Resolve(actor.UserID, req.Resolution); err != nil {
			return err
		}
		resolvedTransfer = false
		if d.Reference.Kind != shared.RefTransfer {
			return nil
		}
		t, err := scope.Transfers().FindByID(ctx, d.TenantID, d.Reference.ID)
		if err != nil {
			return err
		}
		if t.Status() != transfer.StatusDisputed {
			return nil
		}
		if err := t.Resolve(); err != nil {
			return err
		}
		resolvedTransfer = true
		return scope.Transfers().Save(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	if resolvedTransfer {
		s.metrics.RecordTransition(ctx, req.TenantID, workflowTransfer, string(transfer.StatusResolved))
	}
	s.metrics.RecordTransition(ctx, req.TenantID, workflowDispute, "resolved")
	return d, nil
}

// GetDispute returns one dispute.
func (s *Service) GetDispute(ctx context.Context, tenantID, disputeID uuid.UUID) (*transfer.Dispute, error) {
	return ledger.Read(ctx, s.coord, disputeDoc(tenantID, disputeID))
}

// DisputesFor lists the disputes raised on a document, oldest first.
func (s *Service) DisputesFor(ctx context.Context, tenantID uuid.UUID, ref shared.Reference) ([]*transfer.Dispute, error) {
	var out []*transfer.Dispute
	err := s.coord.Execute(ctx, func(tx ledger.Tx) error {
		ds, err := tx.Disputes().ListByReference(ctx, tenantID, ref)
		out = ds
		return err
	})
	return out, err
}
