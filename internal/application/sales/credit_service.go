package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/retailops/internal/application/ledger"
	"github.com/erp/retailops/internal/domain/sales"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OpenCreditAccount opens the credit account of a customer. A customer has
// at most one account.
func (s *Service) OpenCreditAccount(ctx context.Context, actor shared.Actor, req OpenCreditAccountRequest) (*sales.CreditAccount, error) {
	if err := actor.Require(shared.CapCreditManage); err != nil {
		return nil, err
	}
	if err := ledger.Validate(req); err != nil {
		return nil, err
	}
	var opened *sales.CreditAccount
	_, err := s.coord.Run(ctx, nil, func(scope *ledger.Scope) error {
		_, err := scope.CreditAccounts().FindByCustomer(ctx, req.TenantID, req.CustomerID)
		if err == nil {
			return shared.InvalidInput("customer %s already has a credit account", req.CustomerID)
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		a, err := sales.NewCreditAccount(req.TenantID, req.CustomerID, actor.UserID, req.CreditLimit, req.PaymentTermsDays)
		if err != nil {
			return err
		}
		if err := scope.CreditAccounts().Save(ctx, a); err != nil {
			return fmt.Errorf("save credit account: %w", err)
		}
		opened = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("Credit account opened",
		zap.String("account_id", opened.ID.String()),
		zap.String("customer_id", opened.CustomerID.String()),
		zap.String("credit_limit", opened.CreditLimit.StringFixed(2)),
	)
	return opened, nil
}

// RecordCreditPayment books money received on account.
func (s *Service) RecordCreditPayment(ctx context.Context, actor shared.Actor, req CreditPaymentRequest) (*sales.CreditAccount, error) {
	if err := ledger.Validate(req); err != nil {
		return nil, err
	}
	return s.changeCredit(ctx, req.TenantID, req.AccountID, func(a *sales.CreditAccount) error {
		return a.RecordPayment(req.Amount, actor.UserID, req.Notes, s.ledger.Now())
	})
}

// SuspendCreditAccount stops charges that would exceed the limit.
func (s *Service) SuspendCreditAccount(ctx context.Context, actor shared.Actor, tenantID, accountID uuid.UUID) (*sales.CreditAccount, error) {
	if err := actor.Require(shared.CapCreditManage); err != nil {
		return nil, err
	}
	return s.changeCredit(ctx, tenantID, accountID, (*sales.CreditAccount).Suspend)
}

// MarkCreditDelinquent flags an account with overdue payments.
func (s *Service) MarkCreditDelinquent(ctx context.Context, actor shared.Actor, tenantID, accountID uuid.UUID) (*sales.CreditAccount, error) {
	if err := actor.Require(shared.CapCreditManage); err != nil {
		return nil, err
	}
	return s.changeCredit(ctx, tenantID, accountID, (*sales.CreditAccount).MarkDelinquent)
}

// ActivateCreditAccount returns an account to active.
func (s *Service) ActivateCreditAccount(ctx context.Context, actor shared.Actor, tenantID, accountID uuid.UUID) (*sales.CreditAccount, error) {
	if err := actor.Require(shared.CapCreditManage); err != nil {
		return nil, err
	}
	return s.changeCredit(ctx, tenantID, accountID, (*sales.CreditAccount).Activate)
}

func (s *Service) changeCredit(ctx context.Context, tenantID, accountID uuid.UUID, change func(*sales.CreditAccount) error) (*sales.CreditAccount, error) {
	a, _, err := ledger.Update(ctx, s.coord, nil, creditDoc(tenantID, accountID), func(_ *ledger.Scope, a *sales.CreditAccount) error {
		return change(a)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTransition(ctx, tenantID, workflowCredit, string(a.Status()))
	return a, nil
}

// GetCreditAccount returns one account.
func (s *Service) GetCreditAccount(ctx context.Context, tenantID, accountID uuid.UUID) (*sales.CreditAccount, error) {
	return ledger.Read(ctx, s.coord, creditDoc(tenantID, accountID))
}

// CreditTransactions lists the entries of an account in posting order.
func (s *Service) CreditTransactions(ctx context.Context, tenantID, accountID uuid.UUID) ([]sales.CreditTransaction, error) {
	var out []sales.CreditTransaction
	err := s.coord.Execute(ctx, func(tx ledger.Tx) error {
		if _, err := tx.CreditAccounts().FindByID(ctx, tenantID, accountID); err != nil {
			return err
		}
		txs, err := tx.CreditAccounts().ListTransactions(ctx, tenantID, accountID)
		out = txs
		return err
	})
	return out, err
}

func creditDoc(tenantID, id uuid.UUID) ledger.Document[*sales.CreditAccount] {
	return ledger.Document[*sales.CreditAccount]{
		Load: func(ctx context.Context, tx ledger.Tx) (*sales.CreditAccount, error) {
			return tx.CreditAccounts().FindByID(ctx, tenantID, id)
		},
		Save: func(ctx context.Context, tx ledger.Tx, a *sales.CreditAccount) error {
			if err := tx.CreditAccounts().Save(ctx, a); err != nil {
				return fmt.Errorf("save credit account: %w", err)
			}
			return nil
		},
	}
}
