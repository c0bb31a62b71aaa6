package transfer

import (
	"time"

	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/domain/shared/fsm"
	"github.com/erp/retailops/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the state of a shop order.
type OrderStatus string

const (
	OrderDraft              OrderStatus = "draft"
	OrderSubmitted          OrderStatus = "submitted"
	OrderApproved           OrderStatus = "approved"
	OrderPartiallyFulfilled OrderStatus = "partially_fulfilled"
	OrderFulfilled          OrderStatus = "fulfilled"
	OrderClosed             OrderStatus = "closed"
	OrderCancelled          OrderStatus = "cancelled"
)

var orderMachine = fsm.New("shop order",
	fsm.Transition[OrderStatus]{Name: "submit", From: fsm.From(OrderDraft), To: OrderSubmitted},
	fsm.Transition[OrderStatus]{Name: "approve", From: fsm.From(OrderSubmitted), To: OrderApproved},
	fsm.Transition[OrderStatus]{Name: "partially_fulfill", From: fsm.From(OrderApproved, OrderPartiallyFulfilled), To: OrderPartiallyFulfilled},
	fsm.Transition[OrderStatus]{Name: "fulfill", From: fsm.From(OrderApproved, OrderPartiallyFulfilled), To: OrderFulfilled},
	fsm.Transition[OrderStatus]{Name: "cancel", From: fsm.Any[OrderStatus](), To: OrderCancelled},
	fsm.Transition[OrderStatus]{Name: TransitionClose, From: fsm.Any[OrderStatus](), To: OrderClosed},
)

// OrderItem is one requested product of a shop order.
type OrderItem struct {
	ID                uuid.UUID
	OrderID           uuid.UUID
	ProductID         uuid.UUID
	BatchID           *uuid.UUID
	QuantityOrdered   decimal.Decimal
	QuantityFulfilled decimal.Decimal
}

// Outstanding is the quantity not yet fulfilled.
func (i *OrderItem) Outstanding() decimal.Decimal {
	return valueobject.NonNegative(i.QuantityOrdered.Sub(i.QuantityFulfilled))
}

// ShopOrder is a shop's request for stock from a store.
type ShopOrder struct {
	shared.TenantAggregateRoot
	OrderNumber string
	ShopID      uuid.UUID
	StoreID     uuid.UUID
	Items       []OrderItem
	State       fsm.Status[OrderStatus]
	Notes       string
	SubmittedAt *time.Time
	ApprovedBy  *uuid.UUID
	ApprovedAt  *time.Time
	FulfilledAt *time.Time
	// TransferIDs lists the transfers synthesized by fulfillment.
	TransferIDs []uuid.UUID
}

// NewShopOrder creates a draft order.
func NewShopOrder(tenantID, shopID, storeID, createdBy uuid.UUID, items []ItemInput) (*ShopOrder, error) {
	if shopID == uuid.Nil || storeID == uuid.Nil {
		return nil, shared.InvalidInput("shop order requires shop and store")
	}
	if shopID == storeID {
		return nil, shared.InvalidInput("shop and store must differ")
	}
	if len(items) == 0 {
		return nil, shared.InvalidInput("shop order must have at least one item")
	}
	o := &ShopOrder{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID, createdBy),
		ShopID:              shopID,
		StoreID:             storeID,
		State:               fsm.Initial(OrderDraft),
	}
	o.OrderNumber = shared.NewDocumentNumber(shared.PrefixShopOrder, o.CreatedAt)
	for _, in := range items {
		if in.ProductID == uuid.Nil || !in.Quantity.IsPositive() {
			return nil, shared.InvalidInput("shop order item requires a product and a positive quantity")
		}
		if err := valueobject.ValidateQuantity(in.Quantity); err != nil {
			return nil, shared.InvalidInput("%s", err.Error())
		}
		o.Items = append(o.Items, OrderItem{
			ID:              uuid.New(),
			OrderID:         o.ID,
			ProductID:       in.ProductID,
			BatchID:         in.BatchID,
			QuantityOrdered: in.Quantity,
		})
	}
	return o, nil
}

// Status returns the current state.
func (o *ShopOrder) Status() OrderStatus {
	return o.State.Get()
}

// Submit sends the draft to the store.
func (o *ShopOrder) Submit() error {
	return orderMachine.Fire(&o.State, "submit", func(OrderStatus) error {
		now := time.Now()
		o.SubmittedAt = &now
		o.MarkChanged()
		return nil
	})
}

// Approve accepts the order for fulfillment.
func (o *ShopOrder) Approve(actorID uuid.UUID) error {
	return orderMachine.Fire(&o.State, "approve", func(OrderStatus) error {
		now := time.Now()
		o.ApprovedBy = &actorID
		o.ApprovedAt = &now
		o.MarkChanged()
		return nil
	})
}

// FulfillmentLine is the quantity shipped for one order item.
type FulfillmentLine struct {
	ItemID    uuid.UUID
	ProductID uuid.UUID
	BatchID   *uuid.UUID
	Quantity  decimal.Decimal
}

// PlanFulfillment resolves the quantities to ship. Items missing from
// quantities default to their outstanding quantity.
func (o *ShopOrder) PlanFulfillment(quantities map[uuid.UUID]decimal.Decimal) ([]FulfillmentLine, error) {
	if err := orderMachine.Check(o.Status(), "fulfill"); err != nil {
		return nil, err
	}
	for id := range quantities {
		if o.item(id) == nil {
			return nil, shared.NotFound("shop order item", id)
		}
	}
	var lines []FulfillmentLine
	for _, it := range o.Items {
		q, ok := quantities[it.ID]
		if !ok {
			q = it.Outstanding()
		}
		if q.IsNegative() || q.GreaterThan(it.Outstanding()) {
			return nil, shared.InvalidInput("fulfilled quantity %s must be between 0 and outstanding %s", q, it.Outstanding())
		}
		if err := valueobject.ValidateQuantity(q); err != nil {
			return nil, shared.InvalidInput("%s", err.Error())
		}
		if q.IsZero() {
			continue
		}
		lines = append(lines, FulfillmentLine{ItemID: it.ID, ProductID: it.ProductID, BatchID: it.BatchID, Quantity: q})
	}
	if len(lines) == 0 {
		return nil, shared.InvalidInput("nothing to fulfill")
	}
	return lines, nil
}

// Fulfill records shipped quantities. ship builds and sends the transfer
// and returns its id. The order becomes fulfilled when every item is
// complete, otherwise partially_fulfilled.
func (o *ShopOrder) Fulfill(at time.Time, lines []FulfillmentLine, ship func([]FulfillmentLine) (uuid.UUID, error)) error {
	shipped := make(map[uuid.UUID]decimal.Decimal, len(o.Items))
	for _, it := range o.Items {
		shipped[it.ID] = it.QuantityFulfilled
	}
	for _, l := range lines {
		shipped[l.ItemID] = shipped[l.ItemID].Add(l.Quantity)
	}
	full := true
	for _, it := range o.Items {
		if shipped[it.ID].LessThan(it.QuantityOrdered) {
			full = false
		}
	}
	name := "partially_fulfill"
	if full {
		name = "fulfill"
	}
	return orderMachine.Fire(&o.State, name, func(OrderStatus) error {
		transferID, err := ship(lines)
		if err != nil {
			return err
		}
		for i := range o.Items {
			o.Items[i].QuantityFulfilled = shipped[o.Items[i].ID]
		}
		o.TransferIDs = append(o.TransferIDs, transferID)
		if full {
			o.FulfilledAt = &at
		}
		o.MarkChanged()
		return nil
	})
}

// Cancel cancels the order from any state.
func (o *ShopOrder) Cancel() error {
	return orderMachine.Fire(&o.State, "cancel", func(OrderStatus) error {
		o.MarkChanged()
		return nil
	})
}

// Close closes the order from any state.
func (o *ShopOrder) Close() error {
	return orderMachine.Fire(&o.State, TransitionClose, func(OrderStatus) error {
		o.MarkChanged()
		return nil
	})
}

func (o *ShopOrder) item(id uuid.UUID) *OrderItem {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return &o.Items[i]
		}
	}
	return nil
}
