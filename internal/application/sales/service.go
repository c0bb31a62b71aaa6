// Package sales runs point-of-sale operations: processing and voiding
// sales, the refund workflow and customer credit accounts.
package sales

import (
	"context"
	"fmt"

	"github.com/erp/retailops/internal/application/ledger"
	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/erp/retailops/internal/domain/policy"
	"github.com/erp/retailops/internal/domain/sales"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/domain/shared/valueobject"
	"github.com/erp/retailops/internal/infrastructure/logger"
	"github.com/erp/retailops/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	workflowSale   = "sale"
	workflowRefund = "refund"
	workflowCredit = "credit_account"
)

// Service handles sales, refunds and credit accounts.
type Service struct {
	ledger   *ledger.Service
	coord    *ledger.Coordinator
	policies policy.Source
	matchers []policy.RuleMatcher
	metrics  *telemetry.LedgerMetrics
}

// NewService creates a Service. policies may be nil, in which case tenant
// defaults apply and no margin rule or shop cost is ever found.
func NewService(ledgerSvc *ledger.Service, policies policy.Source) *Service {
	return &Service{
		ledger:   ledgerSvc,
		coord:    ledgerSvc.Coordinator(),
		policies: policies,
		matchers: policy.DefaultMatchers,
	}
}

// SetMetrics enables advisory and transition metrics.
func (s *Service) SetMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

func (s *Service) tenantSettings(ctx context.Context, tenantID uuid.UUID) (policy.TenantSettings, error) {
	if s.policies == nil {
		return policy.DefaultTenantSettings(tenantID), nil
	}
	settings, err := s.policies.TenantSettings(ctx, tenantID)
	if err != nil {
		return policy.TenantSettings{}, fmt.Errorf("load tenant settings: %w", err)
	}
	return settings, nil
}

func (s *Service) costChain(scope *ledger.Scope) policy.CostLookup {
	if s.policies == nil {
		return policy.CostChain{policy.BalanceCost(scope.Balances()), policy.BatchCost(scope.Batches())}
	}
	return policy.DefaultCostChain(scope.Balances(), scope.Batches(), s.policies)
}

func (s *Service) marginRule(ctx context.Context, tenantID, shopID, productID uuid.UUID) (*policy.MarginRule, error) {
	if s.policies == nil {
		return nil, nil
	}
	rules, err := s.policies.MarginRules(ctx, tenantID, shopID, productID)
	if err != nil {
		return nil, fmt.Errorf("load margin rules: %w", err)
	}
	return policy.SelectRule(s.matchers, rules, shopID, productID), nil
}

// ProcessSale records a sale in one unit of work. Each line resolves its
// unit cost, passes the margin check and takes stock out of the shop under
// the negative-stock policy; payments on account are charged to the
// customer's credit account. Warnings come back as advisories.
func (s *Service) ProcessSale(ctx context.Context, actor shared.Actor, req ProcessSaleRequest) (*SaleResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sale", "process")
	defer span.End()

	if err := ledger.Validate(req); err != nil {
		return nil, err
	}
	keys := make([]inventory.BalanceKey, 0, len(req.Items))
	for _, it := range req.Items {
		keys = append(keys, inventory.NewBalanceKey(req.TenantID, req.ShopID, it.ProductID, it.BatchID))
	}
	keys = inventory.SortKeys(keys)

	var sale *sales.Sale
	advisories, err := s.coord.Run(ctx, keys, func(scope *ledger.Scope) error {
		settings, err := s.tenantSettings(ctx, req.TenantID)
		if err != nil {
			return err
		}
		costs := s.costChain(scope)
		items := make([]sales.SaleItemInput, len(req.Items))
		for i, it := range req.Items {
			key := inventory.NewBalanceKey(req.TenantID, req.ShopID, it.ProductID, it.BatchID)
			cost, err := costs.UnitCost(ctx, key)
			if err != nil {
				return fmt.Errorf("resolve unit cost %s: %w", key, err)
			}
			items[i] = sales.SaleItemInput{
				ProductID: it.ProductID,
				BatchID:   it.BatchID,
				Quantity:  it.Quantity,
				UnitPrice: it.UnitPrice,
				Discount:  it.Discount,
				UnitCost:  cost,
			}
		}
		payments := make([]sales.PaymentInput, len(req.Payments))
		for i, p := range req.Payments {
			payments[i] = sales.PaymentInput{Method: p.Method, Amount: p.Amount, ReferenceNumber: p.ReferenceNumber}
		}

		sl, err := sales.NewSale(sales.NewSaleParams{
			TenantID:   req.TenantID,
			ShopID:     req.ShopID,
			CashierID:  actor.UserID,
			CustomerID: req.CustomerID,
			Items:      items,
			Payments:   payments,
			Discount:   req.Discount,
			Tax:        req.Tax,
			Notes:      req.Notes,
			OccurredAt: s.ledger.Now(),
		})
		if err != nil {
			return err
		}

		for _, it := range sl.Items {
			if err := s.checkMargin(ctx, scope, settings, sl, it); err != nil {
				return err
			}
			if _, err := s.ledger.Append(ctx, scope, ledger.AppendRequest{
				Key:                      inventory.NewBalanceKey(sl.TenantID, sl.ShopID, it.ProductID, it.BatchID),
				Kind:                     inventory.KindSale,
				QuantityOut:              it.Quantity,
				UnitCost:                 it.UnitCost,
				Reference:                sl.Reference(),
				ActorID:                  actor.UserID,
				Notes:                    "sale " + sl.SaleNumber,
				ApplyNegativeStockPolicy: true,
			}); err != nil {
				return err
			}
		}

		if err := s.chargeCredit(ctx, scope, actor, sl); err != nil {
			return err
		}

		sl.AddDomainEvent(sales.NewSaleCompletedEvent(sl))
		if err := scope.Sales().Save(ctx, sl); err != nil {
			return fmt.Errorf("save sale: %w", err)
		}
		scope.Record(sl)
		sale = sl
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, "sale_number", sale.SaleNumber)
	s.metrics.RecordTransition(ctx, req.TenantID, workflowSale, string(sale.Status()))
	logger.FromContext(ctx).Info("Sale processed",
		zap.String("sale_number", sale.SaleNumber),
		zap.String("shop_id", sale.ShopID.String()),
		zap.String("total", sale.Total.StringFixed(2)),
		zap.Int("advisories", len(advisories)),
	)
	return &SaleResult{Sale: sale, Advisories: advisories}, nil
}

// checkMargin evaluates one line. A block aborts the sale; a warning is
// kept as an advisory and announced with a MarginViolated event.
func (s *Service) checkMargin(ctx context.Context, scope *ledger.Scope, settings policy.TenantSettings, sl *sales.Sale, it sales.SaleItem) error {
	rule, err := s.marginRule(ctx, sl.TenantID, sl.ShopID, it.ProductID)
	if err != nil {
		return err
	}
	v := policy.EvaluateMargin(settings, rule, policy.MarginInput{
		ShopID:    sl.ShopID,
		ProductID: it.ProductID,
		UnitPrice: it.UnitPrice,
		Cost:      it.UnitCost,
	})
	if v.Outcome == policy.Allow {
		return nil
	}
	s.metrics.RecordAdvisory(ctx, sl.TenantID, v.Policy, string(v.Outcome))
	if err := v.Err(); err != nil {
		return err
	}
	scope.Advise(v)
	scope.Emit(sales.NewMarginViolatedEvent(sl, it.ProductID, v.Data))
	return nil
}

// chargeCredit puts the on-account part of the sale on the customer's
// credit account.
func (s *Service) chargeCredit(ctx context.Context, scope *ledger.Scope, actor shared.Actor, sl *sales.Sale) error {
	amount := sl.CreditCharged()
	if !amount.IsPositive() {
		return nil
	}
	account, err := scope.CreditAccounts().FindByCustomer(ctx, sl.TenantID, *sl.CustomerID)
	if err != nil {
		return err
	}
	v, err := account.Charge(amount, sl.Reference(), actor.UserID, s.ledger.Now())
	if v.IsBlocked() || v.IsWarning() {
		s.metrics.RecordAdvisory(ctx, sl.TenantID, v.Policy, string(v.Outcome))
	}
	if err != nil {
		return err
	}
	scope.Advise(v)
	for i := range sl.Payments {
		if sl.Payments[i].Method == sales.PaymentCreditAccount {
			sl.Payments[i].CreditAccountID = &account.ID
		}
	}
	if err := scope.CreditAccounts().Save(ctx, account); err != nil {
		return fmt.Errorf("save credit account: %w", err)
	}
	scope.Record(account)
	return nil
}

// VoidSale cancels a sale. The unrefunded quantity of every line goes back
// on hand at the cost captured on the sale, and the part of the credit
// charge not already refunded is reversed.
func (s *Service) VoidSale(ctx context.Context, actor shared.Actor, req VoidSaleRequest) (*sales.Sale, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sale", "void")
	defer span.End()

	if err := actor.Require(shared.CapRefundApprove); err != nil {
		return nil, err
	}
	if err := ledger.Validate(req); err != nil {
		return nil, err
	}
	current, err := ledger.Read(ctx, s.coord, saleDoc(req.TenantID, req.SaleID))
	if err != nil {
		return nil, err
	}
	keys := make([]inventory.BalanceKey, 0, len(current.Items))
	for _, it := range current.Items {
		keys = append(keys, inventory.NewBalanceKey(current.TenantID, current.ShopID, it.ProductID, it.BatchID))
	}

	sl, _, err := ledger.Update(ctx, s.coord, inventory.SortKeys(keys), saleDoc(req.TenantID, req.SaleID), func(scope *ledger.Scope, sl *sales.Sale) error {
		return sl.Void(actor.UserID, req.Reason, s.ledger.Now(), func(remaining []sales.SaleItem) error {
			for _, it := range remaining {
				if _, err := s.ledger.Append(ctx, scope, ledger.AppendRequest{
					Key:        inventory.NewBalanceKey(sl.TenantID, sl.ShopID, it.ProductID, it.BatchID),
					Kind:       inventory.KindAdjustment,
					QuantityIn: it.Quantity,
					UnitCost:   it.UnitCost,
					Reference:  sl.Reference(),
					ActorID:    actor.UserID,
					Notes:      "void " + sl.SaleNumber,
				}); err != nil {
					return err
				}
			}
			return s.reverseCredit(ctx, scope, actor, sl)
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.metrics.RecordTransition(ctx, req.TenantID, workflowSale, string(sl.Status()))
	logger.FromContext(ctx).Info("Sale voided",
		zap.String("sale_number", sl.SaleNumber),
		zap.String("reason", req.Reason),
	)
	return sl, nil
}

func (s *Service) reverseCredit(ctx context.Context, scope *ledger.Scope, actor shared.Actor, sl *sales.Sale) error {
	charged := sl.CreditCharged()
	if !charged.IsPositive() {
		return nil
	}
	var accountID *uuid.UUID
	for _, p := range sl.Payments {
		if p.CreditAccountID != nil {
			accountID = p.CreditAccountID
			break
		}
	}
	if accountID == nil {
		return nil
	}
	refunds, err := scope.Refunds().ListBySale(ctx, sl.TenantID, sl.ID)
	if err != nil {
		return fmt.Errorf("list refunds: %w", err)
	}
	refunded := decimal.Zero
	for _, r := range refunds {
		if r.Status() == sales.RefundCompleted {
			refunded = refunded.Add(r.Amount)
		}
	}
	amount := valueobject.Min(charged, sl.Total.Sub(refunded))
	if !amount.IsPositive() {
		return nil
	}
	account, err := scope.CreditAccounts().FindByID(ctx, sl.TenantID, *accountID)
	if err != nil {
		return err
	}
	account.Reverse(amount, sl.Reference(), actor.UserID, "void "+sl.SaleNumber, s.ledger.Now())
	if err := scope.CreditAccounts().Save(ctx, account); err != nil {
		return fmt.Errorf("save credit account: %w", err)
	}
	return nil
}

// GetSale returns one sale.
func (s *Service) GetSale(ctx context.Context, tenantID, saleID uuid.UUID) (*sales.Sale, error) {
	return ledger.Read(ctx, s.coord, saleDoc(tenantID, saleID))
}

func saleDoc(tenantID, id uuid.UUID) ledger.Document[*sales.Sale] {
	return ledger.Document[*sales.Sale]{
		Load: func(ctx context.Context, tx ledger.Tx) (*sales.Sale, error) {
			return tx.Sales().FindByID(ctx, tenantID, id)
		},
		Save: func(ctx context.Context, tx ledger.Tx, sl *sales.Sale) error {
			if err := tx.Sales().Save(ctx, sl); err != nil {
				return fmt.Errorf("save sale: %w", err)
			}
			return nil
		},
	}
}
