package transfer

import (
	"time"

	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/domain/shared/fsm"
	"github.com/erp/retailops/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReturnStatus is the state of a return request.
type ReturnStatus string

const (
	ReturnRequested         ReturnStatus = "requested"
	ReturnApproved          ReturnStatus = "approved"
	ReturnPartiallyApproved ReturnStatus = "partially_approved"
	ReturnDisputed          ReturnStatus = "disputed"
	ReturnClosed            ReturnStatus = "closed"
)

var returnMachine = fsm.New("return request",
	fsm.Transition[ReturnStatus]{Name: "approve", From: fsm.From(ReturnRequested), To: ReturnApproved},
	fsm.Transition[ReturnStatus]{Name: "partially_approve", From: fsm.From(ReturnRequested), To: ReturnPartiallyApproved},
	fsm.Transition[ReturnStatus]{Name: TransitionDispute, From: fsm.Any[ReturnStatus](), To: ReturnDisputed},
	fsm.Transition[ReturnStatus]{Name: TransitionClose, From: fsm.Any[ReturnStatus](), To: ReturnClosed},
)

// Condition classifies returned goods.
type Condition string

const (
	ConditionGood    Condition = "good"
	ConditionDamaged Condition = "damaged"
	ConditionExpired Condition = "expired"
)

// IsValid reports whether c is a known condition.
func (c Condition) IsValid() bool {
	return c == ConditionGood || c == ConditionDamaged || c == ConditionExpired
}

// IsSellable reports whether goods in this condition go back on hand.
func (c Condition) IsSellable() bool {
	return c == ConditionGood
}

// ReturnItem is one product sent back from a shop.
type ReturnItem struct {
	ID                uuid.UUID
	ReturnID          uuid.UUID
	ProductID         uuid.UUID
	BatchID           *uuid.UUID
	QuantityRequested decimal.Decimal
	QuantityApproved  decimal.Decimal
	Reason            string
	Condition         Condition
}

// ReturnItemInput describes a line when creating a return request.
type ReturnItemInput struct {
	ProductID uuid.UUID
	BatchID   *uuid.UUID
	Quantity  decimal.Decimal
	Reason    string
	Condition Condition
}

// ReturnRequest sends stock from a shop back to its store.
type ReturnRequest struct {
	shared.TenantAggregateRoot
	ReturnNumber string
	ShopID       uuid.UUID
	StoreID      uuid.UUID
	Items        []ReturnItem
	State        fsm.Status[ReturnStatus]
	Notes        string
	ApprovedBy   *uuid.UUID
	ApprovedAt   *time.Time
}

// NewReturnRequest creates a requested return.
func NewReturnRequest(tenantID, shopID, storeID, createdBy uuid.UUID, items []ReturnItemInput) (*ReturnRequest, error) {
	if shopID == uuid.Nil || storeID == uuid.Nil || shopID == storeID {
		return nil, shared.InvalidInput("return request requires distinct shop and store")
	}
	if len(items) == 0 {
		return nil, shared.InvalidInput("return request must have at least one item")
	}
	r := &ReturnRequest{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID, createdBy),
		ShopID:              shopID,
		StoreID:             storeID,
		State:               fsm.Initial(ReturnRequested),
	}
	r.ReturnNumber = shared.NewDocumentNumber(shared.PrefixReturnRequest, r.CreatedAt)
	for _, in := range items {
		if in.ProductID == uuid.Nil || !in.Quantity.IsPositive() {
			return nil, shared.InvalidInput("return item requires a product and a positive quantity")
		}
		if err := valueobject.ValidateQuantity(in.Quantity); err != nil {
			return nil, shared.InvalidInput("%s", err.Error())
		}
		cond := in.Condition
		if cond == "" {
			cond = ConditionGood
		}
		if !cond.IsValid() {
			return nil, shared.InvalidInput("unknown return condition %q", in.Condition)
		}
		r.Items = append(r.Items, ReturnItem{
			ID:                uuid.New(),
			ReturnID:          r.ID,
			ProductID:         in.ProductID,
			BatchID:           in.BatchID,
			QuantityRequested: in.Quantity,
			Reason:            in.Reason,
			Condition:         cond,
		})
	}
	r.AddDomainEvent(NewReturnRequestedEvent(r))
	return r, nil
}

// Status returns the current state.
func (r *ReturnRequest) Status() ReturnStatus {
	return r.State.Get()
}

// Reference returns the ledger reference of the return.
func (r *ReturnRequest) Reference() shared.Reference {
	return shared.Reference{Kind: shared.RefReturnRequest, ID: r.ID}
}

// ReturnLine is an approved quantity for one item.
type ReturnLine struct {
	Item     ReturnItem
	Quantity decimal.Decimal
}

// PlanApproval resolves approved quantities. Items missing from quantities
// are approved in full.
func (r *ReturnRequest) PlanApproval(quantities map[uuid.UUID]decimal.Decimal) ([]ReturnLine, error) {
	if err := returnMachine.Check(r.Status(), "approve"); err != nil {
		return nil, err
	}
	for id := range quantities {
		if r.item(id) == nil {
			return nil, shared.NotFound("return item", id)
		}
	}
	var lines []ReturnLine
	for _, it := range r.Items {
		q, ok := quantities[it.ID]
		if !ok {
			q = it.QuantityRequested
		}
		if q.IsNegative() || q.GreaterThan(it.QuantityRequested) {
			return nil, shared.InvalidInput("approved quantity %s must be between 0 and requested %s", q, it.QuantityRequested)
		}
		if err := valueobject.ValidateQuantity(q); err != nil {
			return nil, shared.InvalidInput("%s", err.Error())
		}
		lines = append(lines, ReturnLine{Item: it, Quantity: q})
	}
	return lines, nil
}

// Approve records approved quantities; move performs the ledger writes for
// the non-zero lines. A return approved in full ends in approved, otherwise
// partially_approved.
func (r *ReturnRequest) Approve(actorID uuid.UUID, at time.Time, lines []ReturnLine, move func([]ReturnLine) error) error {
	full := true
	var moving []ReturnLine
	for _, l := range lines {
		if l.Quantity.LessThan(l.Item.QuantityRequested) {
			full = false
		}
		if l.Quantity.IsPositive() {
			moving = append(moving, l)
		}
	}
	if len(lines) < len(r.Items) {
		full = false
	}
	name := "partially_approve"
	if full {
		name = "approve"
	}
	return returnMachine.Fire(&r.State, name, func(ReturnStatus) error {
		if len(moving) > 0 {
			if err := move(moving); err != nil {
				return err
			}
		}
		for _, l := range lines {
			r.item(l.Item.ID).QuantityApproved = l.Quantity
		}
		r.ApprovedBy = &actorID
		r.ApprovedAt = &at
		r.MarkChanged()
		return nil
	})
}

// Dispute marks the return as disputed.
func (r *ReturnRequest) Dispute() error {
	return returnMachine.Fire(&r.State, TransitionDispute, func(ReturnStatus) error {
		r.MarkChanged()
		return nil
	})
}

// Close closes the return from any state.
func (r *ReturnRequest) Close() error {
	return returnMachine.Fire(&r.State, TransitionClose, func(ReturnStatus) error {
		r.MarkChanged()
		return nil
	})
}

func (r *ReturnRequest) item(id uuid.UUID) *ReturnItem {
	for i := range r.Items {
		if r.Items[i].ID == id {
			return &r.Items[i]
		}
	}
	return nil
}
