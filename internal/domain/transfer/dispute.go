package transfer

import (
	"strings"
	"time"

	"github.com/erp/retailops/internal/domain/shared"
	"github.com/google/uuid"
)

// DisputeMessage is one entry of a dispute thread.
type DisputeMessage struct {
	ID        uuid.UUID
	DisputeID uuid.UUID
	AuthorID  uuid.UUID
	Body      string
	CreatedAt time.Time
}

// Dispute is a discussion about a workflow document. The referenced
// document is moved to its disputed state when the dispute is opened.
type Dispute struct {
	shared.TenantAggregateRoot
	DisputeNumber string
	Reference     shared.Reference
	Subject       string
	Messages      []DisputeMessage
	Resolved      bool
	Resolution    string
	ResolvedBy    *uuid.UUID
	ResolvedAt    *time.Time
}

// Disputable kinds.
var disputable = map[shared.ReferenceKind]bool{
	shared.RefTransfer:      true,
	shared.RefReturnRequest: true,
	shared.RefSale:          true,
	shared.RefCashUp:        true,
	shared.RefRemittance:    true,
}

// NewDispute opens a dispute with its first message.
func NewDispute(tenantID, raisedBy uuid.UUID, ref shared.Reference, subject, message string) (*Dispute, error) {
	ref, err := shared.NewReference(ref.Kind, ref.ID)
	if err != nil {
		return nil, err
	}
	if !disputable[ref.Kind] {
		return nil, shared.InvalidInput("%s documents cannot be disputed", ref.Kind)
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, shared.InvalidInput("dispute subject is required")
	}
	d := &Dispute{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID, raisedBy),
		Reference:           ref,
		Subject:             subject,
	}
	d.DisputeNumber = shared.NewDocumentNumber(shared.PrefixDispute, d.CreatedAt)
	if strings.TrimSpace(message) != "" {
		if err := d.AddMessage(raisedBy, message); err != nil {
			return nil, err
		}
	}
	d.AddDomainEvent(NewDisputeCreatedEvent(d))
	return d, nil
}

// AddMessage appends to the thread. Resolved disputes are read-only.
func (d *Dispute) AddMessage(authorID uuid.UUID, body string) error {
	if d.Resolved {
		return shared.NewDomainError(shared.CodeIllegalTransition, "dispute is already resolved")
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return shared.InvalidInput("message body is required")
	}
	d.Messages = append(d.Messages, DisputeMessage{
		ID:        uuid.New(),
		DisputeID: d.ID,
		AuthorID:  authorID,
		Body:      body,
		CreatedAt: time.Now(),
	})
	d.Touch()
	return nil
}

// Resolve closes the thread with a resolution note.
func (d *Dispute) Resolve(actorID uuid.UUID, resolution string) error {
	if d.Resolved {
		return shared.NewDomainError(shared.CodeIllegalTransition, "dispute is already resolved")
	}
	now := time.Now()
	d.Resolved = true
	d.Resolution = strings.TrimSpace(resolution)
	d.ResolvedBy = &actorID
	d.ResolvedAt = &now
	d.MarkChanged()
	return nil
}
