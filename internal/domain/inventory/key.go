package inventory

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// BalanceKey identifies one stock balance: a product (optionally a specific
// batch) at a location, within a tenant. A zero BatchID means "no batch".
// BalanceKey is comparable and can be used as a map key.
type BalanceKey struct {
	TenantID   uuid.UUID
	LocationID uuid.UUID
	ProductID  uuid.UUID
	BatchID    uuid.UUID
}

// NewBalanceKey builds a key; batch may be nil.
func NewBalanceKey(tenantID, locationID, productID uuid.UUID, batchID *uuid.UUID) BalanceKey {
	k := BalanceKey{TenantID: tenantID, LocationID: locationID, ProductID: productID}
	if batchID != nil {
		k.BatchID = *batchID
	}
	return k
}

// HasBatch reports whether the key is batch-specific.
func (k BalanceKey) HasBatch() bool {
	return k.BatchID != uuid.Nil
}

// Batch returns the batch id or nil.
func (k BalanceKey) Batch() *uuid.UUID {
	if !k.HasBatch() {
		return nil
	}
	id := k.BatchID
	return &id
}

// Validate checks the mandatory parts of the key.
func (k BalanceKey) Validate() error {
	switch {
	case k.TenantID == uuid.Nil:
		return fmt.Errorf("balance key: tenant is required")
	case k.LocationID == uuid.Nil:
		return fmt.Errorf("balance key: location is required")
	case k.ProductID == uuid.Nil:
		return fmt.Errorf("balance key: product is required")
	}
	return nil
}

func (k BalanceKey) String() string {
	batch := "-"
	if k.HasBatch() {
		batch = k.BatchID.String()
	}
	return fmt.Sprintf("%s/%s/%s/%s", k.TenantID, k.LocationID, k.ProductID, batch)
}

// Compare orders keys by tenant, location, product, batch.
func (k BalanceKey) Compare(o BalanceKey) int {
	if c := bytes.Compare(k.TenantID[:], o.TenantID[:]); c != 0 {
		return c
	}
	if c := bytes.Compare(k.LocationID[:], o.LocationID[:]); c != 0 {
		return c
	}
	if c := bytes.Compare(k.ProductID[:], o.ProductID[:]); c != 0 {
		return c
	}
	return bytes.Compare(k.BatchID[:], o.BatchID[:])
}

// SortKeys returns the distinct keys in total order. Every lock acquisition
// over several keys must follow this order.
func SortKeys(keys []BalanceKey) []BalanceKey {
	out := slices.Clone(keys)
	slices.SortFunc(out, BalanceKey.Compare)
	return slices.Compact(out)
}
