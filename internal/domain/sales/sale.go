package sales

import (
	"time"

	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/domain/shared/fsm"
	"github.com/erp/retailops/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleStatus is the state of a sale. Sales are created completed.
type SaleStatus string

const (
	SaleCompleted         SaleStatus = "completed"
	SaleRefunded          SaleStatus = "refunded"
	SalePartiallyRefunded SaleStatus = "partially_refunded"
	SaleVoided            SaleStatus = "voided"
)

var saleMachine = fsm.New("sale",
	fsm.Transition[SaleStatus]{Name: "refund", From: fsm.From(SaleCompleted, SalePartiallyRefunded), To: SaleRefunded},
	fsm.Transition[SaleStatus]{Name: "partial_refund", From: fsm.From(SaleCompleted, SalePartiallyRefunded), To: SalePartiallyRefunded},
	fsm.Transition[SaleStatus]{Name: "void", From: fsm.Any[SaleStatus](), To: SaleVoided},
)

// PaymentMethod is how a sale was paid.
type PaymentMethod string

const (
	PaymentCash          PaymentMethod = "cash"
	PaymentCard          PaymentMethod = "card"
	PaymentMobile        PaymentMethod = "mobile"
	PaymentCreditAccount PaymentMethod = "credit_account"
)

// IsValid reports whether m is a known method.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentMobile, PaymentCreditAccount:
		return true
	}
	return false
}

// SaleItem is one sold line.
type SaleItem struct {
	ID        uuid.UUID
	SaleID    uuid.UUID
	ProductID uuid.UUID
	BatchID   *uuid.UUID
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	// UnitCost is the cost resolved at sale time; nil when unknown.
	UnitCost         *decimal.Decimal
	Discount         decimal.Decimal
	LineTotal        decimal.Decimal
	QuantityRefunded decimal.Decimal
}

// Refundable is the quantity not yet refunded.
func (i *SaleItem) Refundable() decimal.Decimal {
	return valueobject.NonNegative(i.Quantity.Sub(i.QuantityRefunded))
}

// UnitNetPrice is the line total spread over the quantity.
func (i *SaleItem) UnitNetPrice() decimal.Decimal {
	if i.Quantity.IsZero() {
		return decimal.Zero
	}
	return i.LineTotal.Div(i.Quantity)
}

// Payment is one tender applied to a sale.
type Payment struct {
	ID              uuid.UUID
	SaleID          uuid.UUID
	Method          PaymentMethod
	Amount          decimal.Decimal
	ReferenceNumber string
	CreditAccountID *uuid.UUID
}

// SaleItemInput describes a line when processing a sale.
type SaleItemInput struct {
	ProductID uuid.UUID
	BatchID   *uuid.UUID
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
	UnitCost  *decimal.Decimal
}

// PaymentInput describes a tender when processing a sale.
type PaymentInput struct {
	Method          PaymentMethod
	Amount          decimal.Decimal
	ReferenceNumber string
}

// NewSaleParams holds the inputs of NewSale.
type NewSaleParams struct {
	TenantID   uuid.UUID
	ShopID     uuid.UUID
	CashierID  uuid.UUID
	CustomerID *uuid.UUID
	Items      []SaleItemInput
	Payments   []PaymentInput
	Discount   decimal.Decimal
	Tax        decimal.Decimal
	Notes      string
	OccurredAt time.Time
}

// Sale is a completed point-of-sale transaction.
type Sale struct {
	shared.TenantAggregateRoot
	SaleNumber    string
	ShopID        uuid.UUID
	CashierID     uuid.UUID
	CustomerID    *uuid.UUID
	Items         []SaleItem
	Payments      []Payment
	Subtotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	TaxAmount     decimal.Decimal
	Total         decimal.Decimal
	// ChangeGiven is the cash handed back when the tender exceeded the total.
	ChangeGiven decimal.Decimal
	State       fsm.Status[SaleStatus]
	Notes       string
	VoidedBy    *uuid.UUID
	VoidedAt    *time.Time
	VoidReason  string
}

// NewSale validates the lines and payments and computes totals:
// subtotal is the gross of unit price times quantity, the discount total is
// the sum of line discounts plus the sale discount, and
// total = subtotal - discount + tax. Payments must cover the total; any
// excess is change and can only come out of the cash tendered.
func NewSale(p NewSaleParams) (*Sale, error) {
	if p.ShopID == uuid.Nil {
		return nil, shared.InvalidInput("sale requires a shop")
	}
	if len(p.Items) == 0 {
		return nil, shared.InvalidInput("sale must have at least one item")
	}
	for name, v := range map[string]decimal.Decimal{"discount": p.Discount, "tax": p.Tax} {
		if err := valueobject.ValidateAmount(v); err != nil {
			return nil, shared.InvalidInput("%s: %s", name, err.Error())
		}
	}

	s := &Sale{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(p.TenantID, p.CashierID),
		ShopID:              p.ShopID,
		CashierID:           p.CashierID,
		CustomerID:          p.CustomerID,
		TaxAmount:           p.Tax,
		State:               fsm.Initial(SaleCompleted),
		Notes:               p.Notes,
	}
	if !p.OccurredAt.IsZero() {
		s.CreatedAt = p.OccurredAt
		s.UpdatedAt = p.OccurredAt
	}
	s.SaleNumber = shared.NewDocumentNumber(shared.PrefixSale, s.CreatedAt)

	subtotal, discounts := decimal.Zero, p.Discount
	for _, in := range p.Items {
		if in.ProductID == uuid.Nil || !in.Quantity.IsPositive() {
			return nil, shared.InvalidInput("sale item requires a product and a positive quantity")
		}
		if err := valueobject.ValidateQuantity(in.Quantity); err != nil {
			return nil, shared.InvalidInput("%s", err.Error())
		}
		if err := valueobject.ValidateAmount(in.UnitPrice); err != nil {
			return nil, shared.InvalidInput("unit price: %s", err.Error())
		}
		if err := valueobject.ValidateAmount(in.Discount); err != nil {
			return nil, shared.InvalidInput("line discount: %s", err.Error())
		}
		gross := valueobject.Amount(in.UnitPrice.Mul(in.Quantity))
		if in.Discount.GreaterThan(gross) {
			return nil, shared.InvalidInput("line discount %s exceeds line value %s", in.Discount, gross)
		}
		s.Items = append(s.Items, SaleItem{
			ID:        uuid.New(),
			SaleID:    s.ID,
			ProductID: in.ProductID,
			BatchID:   in.BatchID,
			Quantity:  in.Quantity,
			UnitPrice: in.UnitPrice,
			UnitCost:  in.UnitCost,
			Discount:  in.Discount,
			LineTotal: gross.Sub(in.Discount),
		})
		subtotal = subtotal.Add(gross)
		discounts = discounts.Add(in.Discount)
	}
	s.Subtotal = subtotal
	s.DiscountTotal = discounts
	s.Total = subtotal.Sub(discounts).Add(p.Tax)
	if s.Total.IsNegative() {
		return nil, shared.InvalidInput("sale total cannot be negative")
	}

	paid := decimal.Zero
	for _, in := range p.Payments {
		if !in.Method.IsValid() {
			return nil, shared.InvalidInput("unknown payment method %q", in.Method)
		}
		if !in.Amount.IsPositive() {
			return nil, shared.InvalidInput("payment amount must be positive")
		}
		if err := valueobject.ValidateAmount(in.Amount); err != nil {
			return nil, shared.InvalidInput("payment: %s", err.Error())
		}
		if in.Method == PaymentCreditAccount && p.CustomerID == nil {
			return nil, shared.InvalidInput("credit account payment requires a customer")
		}
		s.Payments = append(s.Payments, Payment{
			ID:              uuid.New(),
			SaleID:          s.ID,
			Method:          in.Method,
			Amount:          in.Amount,
			ReferenceNumber: in.ReferenceNumber,
		})
		paid = paid.Add(in.Amount)
	}
	if paid.LessThan(s.Total) {
		return nil, shared.InvalidInput("payments %s do not cover sale total %s", paid, s.Total)
	}
	s.ChangeGiven = paid.Sub(s.Total)
	if s.ChangeGiven.GreaterThan(s.PaidBy(PaymentCash)) {
		return nil, shared.InvalidInput("overpayment %s exceeds cash tendered %s", s.ChangeGiven, s.PaidBy(PaymentCash))
	}
	return s, nil
}

// Status returns the current state.
func (s *Sale) Status() SaleStatus {
	return s.State.Get()
}

// Reference returns the ledger reference of the sale.
func (s *Sale) Reference() shared.Reference {
	return shared.Reference{Kind: shared.RefSale, ID: s.ID}
}

// CreditCharged is the amount paid on account.
func (s *Sale) CreditCharged() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Payments {
		if p.Method == PaymentCreditAccount {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// PaidBy sums the payments of one method.
func (s *Sale) PaidBy(m PaymentMethod) decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Payments {
		if p.Method == m {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// NetCash is the cash that stays in the till: cash tendered less change.
func (s *Sale) NetCash() decimal.Decimal {
	return s.PaidBy(PaymentCash).Sub(s.ChangeGiven)
}

// Item returns the line with the given id.
func (s *Sale) Item(id uuid.UUID) *SaleItem {
	for i := range s.Items {
		if s.Items[i].ID == id {
			return &s.Items[i]
		}
	}
	return nil
}

// CanRefund returns the error a refund would fail with in the current state.
func (s *Sale) CanRefund() error {
	return saleMachine.Check(s.Status(), "partial_refund")
}

// ApplyRefund adds refunded quantities to the lines. The sale becomes
// refunded once nothing is left to refund, otherwise partially_refunded.
func (s *Sale) ApplyRefund(lines []RefundItem, effect func() error) error {
	refunded := make(map[uuid.UUID]decimal.Decimal, len(s.Items))
	for _, it := range s.Items {
		refunded[it.ID] = it.QuantityRefunded
	}
	for _, l := range lines {
		it := s.Item(l.SaleItemID)
		if it == nil {
			return shared.NotFound("sale item", l.SaleItemID)
		}
		refunded[it.ID] = refunded[it.ID].Add(l.Quantity)
		if refunded[it.ID].GreaterThan(it.Quantity) {
			return shared.InvalidInput("refunded quantity %s exceeds sold quantity %s", refunded[it.ID], it.Quantity)
		}
	}
	full := true
	for _, it := range s.Items {
		if refunded[it.ID].LessThan(it.Quantity) {
			full = false
		}
	}
	name := "partial_refund"
	if full {
		name = "refund"
	}
	return saleMachine.Fire(&s.State, name, func(SaleStatus) error {
		if effect != nil {
			if err := effect(); err != nil {
				return err
			}
		}
		for i := range s.Items {
			s.Items[i].QuantityRefunded = refunded[s.Items[i].ID]
		}
		s.MarkChanged()
		return nil
	})
}

// Void cancels the sale at the given time. restock receives the lines with their unrefunded
// quantity and performs the ledger and credit reversals.
func (s *Sale) Void(actorID uuid.UUID, reason string, at time.Time, restock func(remaining []SaleItem) error) error {
	return saleMachine.Fire(&s.State, "void", func(from SaleStatus) error {
		if from == SaleVoided {
			return &shared.IllegalTransitionError{Entity: "sale", From: string(from), Transition: "void"}
		}
		var remaining []SaleItem
		for _, it := range s.Items {
			if q := it.Refundable(); q.IsPositive() {
				r := it
				r.Quantity = q
				remaining = append(remaining, r)
			}
		}
		if err := restock(remaining); err != nil {
			return err
		}
		s.VoidedBy = &actorID
		s.VoidedAt = &at
		s.VoidReason = reason
		s.MarkChanged()
		s.AddDomainEvent(NewSaleVoidedEvent(s))
		return nil
	})
}
