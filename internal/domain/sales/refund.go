package sales

import (
	"strings"
	"time"

	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/domain/shared/fsm"
	"github.com/erp/retailops/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RefundStatus is the state of a refund.
type RefundStatus string

const (
	RefundInitiated RefundStatus = "initiated"
	RefundApproved  RefundStatus = "approved"
	RefundRejected  RefundStatus = "rejected"
	RefundCompleted RefundStatus = "completed"
)

var refundMachine = fsm.New("refund",
	fsm.Transition[RefundStatus]{Name: "approve", From: fsm.From(RefundInitiated), To: RefundApproved},
	fsm.Transition[RefundStatus]{Name: "reject", From: fsm.From(RefundInitiated), To: RefundRejected},
	fsm.Transition[RefundStatus]{Name: "complete", From: fsm.From(RefundApproved), To: RefundCompleted},
)

// Classification says what happens to refunded goods.
type Classification string

const (
	ClassGood    Classification = "good"
	ClassDamaged Classification = "damaged"
	ClassExpired Classification = "expired"
)

// IsValid reports whether c is known.
func (c Classification) IsValid() bool {
	return c == ClassGood || c == ClassDamaged || c == ClassExpired
}

// RefundItem is the refunded quantity of one sale line.
type RefundItem struct {
	ID             uuid.UUID
	RefundID       uuid.UUID
	SaleItemID     uuid.UUID
	ProductID      uuid.UUID
	BatchID        *uuid.UUID
	Quantity       decimal.Decimal
	Amount         decimal.Decimal
	Classification Classification
	Notes          string
}

// RefundItemInput describes a refunded line. A nil Amount refunds the
// line's net unit price times the quantity.
type RefundItemInput struct {
	SaleItemID     uuid.UUID
	Quantity       decimal.Decimal
	Amount         *decimal.Decimal
	Classification Classification
	Notes          string
}

// Refund returns money, and usually goods, for part of a sale. Refunds are
// paid out in cash.
type Refund struct {
	shared.TenantAggregateRoot
	RefundNumber string
	SaleID       uuid.UUID
	ShopID       uuid.UUID
	Items        []RefundItem
	Amount       decimal.Decimal
	Reason       string
	State        fsm.Status[RefundStatus]
	ApprovedBy   *uuid.UUID
	ApprovedAt   *time.Time
	RejectedAt   *time.Time
	CompletedBy  *uuid.UUID
	CompletedAt  *time.Time
}

// NewRefund validates the lines against the sale. Refunded quantities per
// line may not exceed what is still refundable.
func NewRefund(sale *Sale, initiatedBy uuid.UUID, reason string, items []RefundItemInput) (*Refund, error) {
	if err := sale.CanRefund(); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, shared.InvalidInput("refund reason is required")
	}
	if len(items) == 0 {
		return nil, shared.InvalidInput("refund must have at least one item")
	}

	r := &Refund{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(sale.TenantID, initiatedBy),
		SaleID:              sale.ID,
		ShopID:              sale.ShopID,
		Reason:              reason,
		State:               fsm.Initial(RefundInitiated),
	}
	r.RefundNumber = shared.NewDocumentNumber(shared.PrefixRefund, r.CreatedAt)

	requested := make(map[uuid.UUID]decimal.Decimal)
	total := decimal.Zero
	for _, in := range items {
		line := sale.Item(in.SaleItemID)
		if line == nil {
			return nil, shared.NotFound("sale item", in.SaleItemID)
		}
		if !in.Quantity.IsPositive() {
			return nil, shared.InvalidInput("refund quantity must be positive")
		}
		if err := valueobject.ValidateQuantity(in.Quantity); err != nil {
			return nil, shared.InvalidInput("%s", err.Error())
		}
		requested[line.ID] = requested[line.ID].Add(in.Quantity)
		if requested[line.ID].GreaterThan(line.Refundable()) {
			return nil, shared.InvalidInput("refund quantity %s exceeds refundable %s for item %s",
				requested[line.ID], line.Refundable(), line.ID)
		}
		class := in.Classification
		if class == "" {
			class = ClassGood
		}
		if !class.IsValid() {
			return nil, shared.InvalidInput("unknown classification %q", in.Classification)
		}
		amount := valueobject.Amount(line.UnitNetPrice().Mul(in.Quantity))
		if in.Amount != nil {
			if err := valueobject.ValidateAmount(*in.Amount); err != nil {
				return nil, shared.InvalidInput("refund amount: %s", err.Error())
			}
			amount = *in.Amount
		}
		r.Items = append(r.Items, RefundItem{
			ID:             uuid.New(),
			RefundID:       r.ID,
			SaleItemID:     line.ID,
			ProductID:      line.ProductID,
			BatchID:        line.BatchID,
			Quantity:       in.Quantity,
			Amount:         amount,
			Classification: class,
			Notes:          in.Notes,
		})
		total = total.Add(amount)
	}
	if !total.IsPositive() {
		return nil, shared.InvalidInput("refund amount must be positive")
	}
	r.Amount = total
	return r, nil
}

// Status returns the current state.
func (r *Refund) Status() RefundStatus {
	return r.State.Get()
}

// Reference returns the ledger reference of the refund.
func (r *Refund) Reference() shared.Reference {
	return shared.Reference{Kind: shared.RefRefund, ID: r.ID}
}

// Approve accepts the refund.
func (r *Refund) Approve(actorID uuid.UUID) error {
	return refundMachine.Fire(&r.State, "approve", func(RefundStatus) error {
		now := time.Now()
		r.ApprovedBy = &actorID
		r.ApprovedAt = &now
		r.MarkChanged()
		return nil
	})
}

// Reject declines the refund.
func (r *Refund) Reject() error {
	return refundMachine.Fire(&r.State, "reject", func(RefundStatus) error {
		now := time.Now()
		r.RejectedAt = &now
		r.MarkChanged()
		return nil
	})
}

// CanComplete returns the error Complete would fail with in the current state.
func (r *Refund) CanComplete() error {
	return refundMachine.Check(r.Status(), "complete")
}

// Complete pays out the refund; effect returns stock and updates the sale.
func (r *Refund) Complete(actorID uuid.UUID, at time.Time, effect func() error) error {
	return refundMachine.Fire(&r.State, "complete", func(RefundStatus) error {
		if err := effect(); err != nil {
			return err
		}
		r.CompletedBy = &actorID
		r.CompletedAt = &at
		r.MarkChanged()
		r.AddDomainEvent(NewRefundCompletedEvent(r))
		return nil
	})
}
