package shared

import (
	"fmt"

	"github.com/google/uuid"
)

// Capability names an action an actor may be allowed to perform.
type Capability string

const (
	CapRefundApprove     Capability = "refund.approve"
	CapTransferDispatch  Capability = "transfer.dispatch"
	CapTransferReceive   Capability = "transfer.receive"
	CapShopOrderApprove  Capability = "shop_order.approve"
	CapShopOrderFulfill  Capability = "shop_order.fulfill"
	CapReturnApprove     Capability = "return.approve"
	CapCashUpApprove     Capability = "cashup.approve"
	CapRemittanceApprove Capability = "remittance.approve"
	CapDisputeResolve    Capability = "dispute.resolve"
	CapCreditManage      Capability = "credit.manage"
	CapStockAdjust       Capability = "stock.adjust"
)

// Actor identifies who performs an operation and what they may do.
// It is supplied per call; this package does no authentication.
type Actor struct {
	UserID       uuid.UUID
	Capabilities map[Capability]bool
}

// NewActor builds an actor holding the given capabilities.
func NewActor(userID uuid.UUID, caps ...Capability) Actor {
	set := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		set[c] = true
	}
	return Actor{UserID: userID, Capabilities: set}
}

// Can reports whether the actor holds the capability.
func (a Actor) Can(c Capability) bool {
	return a.Capabilities[c]
}

// Require returns ErrForbidden-compatible error when the capability is missing.
func (a Actor) Require(c Capability) error {
	if a.Can(c) {
		return nil
	}
	return NewDomainError(CodeForbidden, fmt.Sprintf("actor %s lacks capability %s", a.UserID, c))
}
