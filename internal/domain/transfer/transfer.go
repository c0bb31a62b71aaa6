package transfer

import (
	"time"

	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/domain/shared/fsm"
	"github.com/erp/retailops/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the state of a transfer.
type Status string

const (
	StatusDraft             Status = "draft"
	StatusSent              Status = "sent"
	StatusReceived          Status = "received"
	StatusPartiallyReceived Status = "partially_received"
	StatusDisputed          Status = "disputed"
	StatusResolved          Status = "resolved"
	StatusClosed            Status = "closed"
)

// Transition names shared by several documents.
const (
	TransitionDispute = "dispute"
	TransitionClose   = "close"
)

var transferMachine = fsm.New("transfer",
	fsm.Transition[Status]{Name: "send", From: fsm.From(StatusDraft), To: StatusSent},
	fsm.Transition[Status]{Name: "receive", From: fsm.From(StatusSent, StatusPartiallyReceived), To: StatusReceived},
	fsm.Transition[Status]{Name: "partially_receive", From: fsm.From(StatusSent, StatusPartiallyReceived), To: StatusPartiallyReceived},
	fsm.Transition[Status]{Name: TransitionDispute, From: fsm.Any[Status](), To: StatusDisputed},
	fsm.Transition[Status]{Name: "resolve", From: fsm.From(StatusDisputed), To: StatusResolved},
	fsm.Transition[Status]{Name: TransitionClose, From: fsm.Any[Status](), To: StatusClosed},
)

// Item is one product line of a transfer.
type Item struct {
	ID               uuid.UUID
	TransferID       uuid.UUID
	ProductID        uuid.UUID
	BatchID          *uuid.UUID
	QuantityOrdered  decimal.Decimal
	QuantityReceived decimal.Decimal
	// UnitCost is captured from the source balance when the transfer is sent.
	UnitCost *decimal.Decimal
}

// Outstanding is the quantity still to be received.
func (i *Item) Outstanding() decimal.Decimal {
	return i.QuantityOrdered.Sub(i.QuantityReceived)
}

// IsFullyReceived reports whether the ordered quantity has arrived.
func (i *Item) IsFullyReceived() bool {
	return i.QuantityReceived.GreaterThanOrEqual(i.QuantityOrdered)
}

// ItemInput describes a line when creating a transfer.
type ItemInput struct {
	ProductID uuid.UUID
	BatchID   *uuid.UUID
	Quantity  decimal.Decimal
}

// Transfer moves stock between two locations. Sending removes stock at the
// source and records it in transit at the destination; receiving moves it
// from in transit to on hand.
type Transfer struct {
	shared.TenantAggregateRoot
	TransferNumber string
	FromLocationID uuid.UUID
	ToLocationID   uuid.UUID
	ShopOrderID    *uuid.UUID
	Items          []Item
	State          fsm.Status[Status]
	Notes          string
	SentBy         *uuid.UUID
	SentAt         *time.Time
	ReceivedBy     *uuid.UUID
	ReceivedAt     *time.Time
	ClosedAt       *time.Time
}

// NewTransfer validates and creates a draft transfer.
func NewTransfer(tenantID, fromID, toID, createdBy uuid.UUID, items []ItemInput) (*Transfer, error) {
	if fromID == uuid.Nil || toID == uuid.Nil {
		return nil, shared.InvalidInput("transfer requires source and destination locations")
	}
	if fromID == toID {
		return nil, shared.InvalidInput("transfer source and destination must differ")
	}
	if len(items) == 0 {
		return nil, shared.InvalidInput("transfer must have at least one item")
	}

	t := &Transfer{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID, createdBy),
		FromLocationID:      fromID,
		ToLocationID:        toID,
		State:               fsm.Initial(StatusDraft),
	}
	t.TransferNumber = shared.NewDocumentNumber(shared.PrefixTransfer, t.CreatedAt)

	for _, in := range items {
		if in.ProductID == uuid.Nil {
			return nil, shared.InvalidInput("transfer item requires a product")
		}
		if !in.Quantity.IsPositive() {
			return nil, shared.InvalidInput("transfer quantity must be positive")
		}
		if err := valueobject.ValidateQuantity(in.Quantity); err != nil {
			return nil, shared.InvalidInput("%s", err.Error())
		}
		t.Items = append(t.Items, Item{
			ID:              uuid.New(),
			TransferID:      t.ID,
			ProductID:       in.ProductID,
			BatchID:         in.BatchID,
			QuantityOrdered: in.Quantity,
		})
	}

	t.AddDomainEvent(NewTransferCreatedEvent(t))
	return t, nil
}

// Status returns the current state.
func (t *Transfer) Status() Status {
	return t.State.Get()
}

// Reference returns the ledger reference of the transfer.
func (t *Transfer) Reference() shared.Reference {
	return shared.Reference{Kind: shared.RefTransfer, ID: t.ID}
}

// Send moves the transfer to sent at the given time. dispatch performs the
// ledger writes and returns the unit cost captured for each item; the state
// only changes if it succeeds.
func (t *Transfer) Send(actorID uuid.UUID, at time.Time, dispatch func(items []Item) (map[uuid.UUID]*decimal.Decimal, error)) error {
	return transferMachine.Fire(&t.State, "send", func(Status) error {
		costs, err := dispatch(t.Items)
		if err != nil {
			return err
		}
		for i := range t.Items {
			t.Items[i].UnitCost = costs[t.Items[i].ID]
		}
		t.SentBy = &actorID
		t.SentAt = &at
		t.MarkChanged()
		t.AddDomainEvent(NewTransferSentEvent(t))
		return nil
	})
}

// Receipt is the quantity accepted for one item in a receive call.
type Receipt struct {
	Item     Item
	Quantity decimal.Decimal
}

// PlanReceipt resolves the quantities of a receive call. Items missing from
// quantities default to their outstanding quantity; a zero quantity skips
// the item.
func (t *Transfer) PlanReceipt(quantities map[uuid.UUID]decimal.Decimal) ([]Receipt, error) {
	if err := transferMachine.Check(t.Status(), "partially_receive"); err != nil {
		return nil, err
	}
	for id := range quantities {
		if t.item(id) == nil {
			return nil, shared.NotFound("transfer item", id)
		}
	}
	var plan []Receipt
	for _, it := range t.Items {
		q, ok := quantities[it.ID]
		if !ok {
			q = it.Outstanding()
		}
		if q.IsNegative() {
			return nil, shared.InvalidInput("received quantity cannot be negative")
		}
		if err := valueobject.ValidateQuantity(q); err != nil {
			return nil, shared.InvalidInput("%s", err.Error())
		}
		if q.GreaterThan(it.Outstanding()) {
			return nil, shared.InvalidInput("received quantity %s exceeds outstanding %s for item %s",
				q, it.Outstanding(), it.ID)
		}
		if q.IsZero() {
			continue
		}
		plan = append(plan, Receipt{Item: it, Quantity: q})
	}
	if len(plan) == 0 {
		return nil, shared.InvalidInput("nothing to receive")
	}
	return plan, nil
}

// Receive applies a receipt plan. receive performs the ledger writes; the
// transfer ends in received when every item is complete, otherwise
// partially_received.
func (t *Transfer) Receive(actorID uuid.UUID, at time.Time, plan []Receipt, receive func([]Receipt) error) error {
	full := true
	for _, it := range t.Items {
		got := it.QuantityReceived
		for _, r := range plan {
			if r.Item.ID == it.ID {
				got = got.Add(r.Quantity)
			}
		}
		if got.LessThan(it.QuantityOrdered) {
			full = false
		}
	}
	name := "partially_receive"
	if full {
		name = "receive"
	}

	return transferMachine.Fire(&t.State, name, func(Status) error {
		if err := receive(plan); err != nil {
			return err
		}
		for _, r := range plan {
			it := t.item(r.Item.ID)
			it.QuantityReceived = it.QuantityReceived.Add(r.Quantity)
		}
		t.ReceivedBy = &actorID
		t.ReceivedAt = &at
		t.MarkChanged()
		t.AddDomainEvent(NewTransferReceivedEvent(t, plan, full))
		return nil
	})
}

// IsFullyReceived reports whether every item has arrived.
func (t *Transfer) IsFullyReceived() bool {
	for i := range t.Items {
		if !t.Items[i].IsFullyReceived() {
			return false
		}
	}
	return true
}

// Dispute marks the transfer as disputed.
func (t *Transfer) Dispute() error {
	return transferMachine.Fire(&t.State, TransitionDispute, func(Status) error {
		t.MarkChanged()
		return nil
	})
}

// Resolve settles a disputed transfer.
func (t *Transfer) Resolve() error {
	return transferMachine.Fire(&t.State, "resolve", func(Status) error {
		t.MarkChanged()
		return nil
	})
}

// Close closes the transfer from any state.
func (t *Transfer) Close() error {
	return transferMachine.Fire(&t.State, TransitionClose, func(Status) error {
		now := time.Now()
		t.ClosedAt = &now
		t.MarkChanged()
		return nil
	})
}

func (t *Transfer) item(id uuid.UUID) *Item {
	for i := range t.Items {
		if t.Items[i].ID == id {
			return &t.Items[i]
		}
	}
	return nil
}
