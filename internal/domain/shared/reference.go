package shared

import (
	"fmt"

	"github.com/google/uuid"
)

// ReferenceKind is the discriminator of a Reference.
type ReferenceKind string

const (
	RefTransfer      ReferenceKind = "transfer"
	RefShopOrder     ReferenceKind = "shop_order"
	RefReturnRequest ReferenceKind = "return_request"
	RefSale          ReferenceKind = "sale"
	RefRefund        ReferenceKind = "refund"
	RefCashUp        ReferenceKind = "cash_up"
	RefRemittance    ReferenceKind = "remittance"
	RefBatch         ReferenceKind = "batch"
)

var referenceKinds = map[ReferenceKind]bool{
	RefTransfer:      true,
	RefShopOrder:     true,
	RefReturnRequest: true,
	RefSale:          true,
	RefRefund:        true,
	RefCashUp:        true,
	RefRemittance:    true,
	RefBatch:         true,
}

// Reference points at one workflow document. It replaces untyped
// (content type, object id) pairs: the kind set is closed.
type Reference struct {
	Kind ReferenceKind `json:"kind"`
	ID   uuid.UUID     `json:"id"`
}

// NewReference validates kind and id.
func NewReference(kind ReferenceKind, id uuid.UUID) (Reference, error) {
	if !referenceKinds[kind] {
		return Reference{}, InvalidInput("unknown reference kind %q", kind)
	}
	if id == uuid.Nil {
		return Reference{}, InvalidInput("reference id is required")
	}
	return Reference{Kind: kind, ID: id}, nil
}

// IsZero reports whether the reference is unset.
func (r Reference) IsZero() bool {
	return r.Kind == "" && r.ID == uuid.Nil
}

func (r Reference) String() string {
	if r.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}
