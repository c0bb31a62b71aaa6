package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/google/uuid"
)

type movementRepo struct{ tx *Tx }

func (r movementRepo) Append(_ context.Context, m *inventory.StockMovement) error {
	c := *m
	r.tx.movements[m.Key] = append(r.tx.movements[m.Key], &c)
	return nil
}

func (r movementRepo) ListByKey(_ context.Context, key inventory.BalanceKey) ([]*inventory.StockMovement, error) {
	r.tx.store.mu.RLock()
	committed := r.tx.store.movements[key]
	out := make([]*inventory.StockMovement, 0, len(committed)+len(r.tx.movements[key]))
	out = append(out, committed...)
	r.tx.store.mu.RUnlock()
	out = append(out, r.tx.movements[key]...)
	return copyMovements(out), nil
}

func (r movementRepo) ListByReference(_ context.Context, tenantID uuid.UUID, ref shared.Reference) ([]*inventory.StockMovement, error) {
	var out []*inventory.StockMovement
	match := func(ms []*inventory.StockMovement) {
		for _, m := range ms {
			if m.Key.TenantID == tenantID && m.Reference == ref {
				out = append(out, m)
			}
		}
	}
	r.tx.store.mu.RLock()
	for _, ms := range r.tx.store.movements {
		match(ms)
	}
	r.tx.store.mu.RUnlock()
	for _, ms := range r.tx.movements {
		match(ms)
	}
	slices.SortFunc(out, func(a, b *inventory.StockMovement) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if c := a.Key.Compare(b.Key); c != 0 {
			return c
		}
		return cmp.Compare(a.Sequence, b.Sequence)
	})
	return copyMovements(out), nil
}

func copyMovements(in []*inventory.StockMovement) []*inventory.StockMovement {
	out := make([]*inventory.StockMovement, len(in))
	for i, m := range in {
		c := *m
		out[i] = &c
	}
	return out
}

type balanceRepo struct{ tx *Tx }

// GetForUpdate relies on the coordinator's key lock; commit still rejects
// a balance whose sequence moved since it was read.
func (r balanceRepo) GetForUpdate(ctx context.Context, key inventory.BalanceKey) (*inventory.StockBalance, error) {
	return r.Get(ctx, key)
}

func (r balanceRepo) Get(_ context.Context, key inventory.BalanceKey) (*inventory.StockBalance, error) {
	if b, ok := r.tx.balances[key]; ok {
		return cloneBalance(b), nil
	}
	r.tx.store.mu.RLock()
	b, ok := r.tx.store.balances[key]
	r.tx.store.mu.RUnlock()
	if !ok {
		b = inventory.NewStockBalance(key)
	}
	if _, seen := r.tx.balanceSeq[key]; !seen {
		r.tx.balanceSeq[key] = b.LastSequence
	}
	return cloneBalance(b), nil
}

func (r balanceRepo) Save(ctx context.Context, b *inventory.StockBalance) error {
	if _, seen := r.tx.balanceSeq[b.Key]; !seen {
		if _, err := r.Get(ctx, b.Key); err != nil {
			return err
		}
	}
	r.tx.balances[b.Key] = cloneBalance(b)
	return nil
}

func (r balanceRepo) all() []*inventory.StockBalance {
	r.tx.store.mu.RLock()
	out := make([]*inventory.StockBalance, 0, len(r.tx.store.balances)+len(r.tx.balances))
	for key, b := range r.tx.store.balances {
		if _, staged := r.tx.balances[key]; !staged {
			out = append(out, cloneBalance(b))
		}
	}
	r.tx.store.mu.RUnlock()
	for _, b := range r.tx.balances {
		out = append(out, cloneBalance(b))
	}
	slices.SortFunc(out, func(a, b *inventory.StockBalance) int { return a.Key.Compare(b.Key) })
	return out
}

func (r balanceRepo) ListByLocation(_ context.Context, tenantID, locationID uuid.UUID) ([]*inventory.StockBalance, error) {
	return filter(r.all(), func(b *inventory.StockBalance) bool {
		return b.Key.TenantID == tenantID && b.Key.LocationID == locationID
	}), nil
}

func (r balanceRepo) ListByBatch(_ context.Context, tenantID, batchID uuid.UUID) ([]*inventory.StockBalance, error) {
	return filter(r.all(), func(b *inventory.StockBalance) bool {
		return b.Key.TenantID == tenantID && b.Key.BatchID == batchID
	}), nil
}

func (r balanceRepo) ListKeys(_ context.Context, tenantID uuid.UUID) ([]inventory.BalanceKey, error) {
	var keys []inventory.BalanceKey
	r.tx.store.mu.RLock()
	for key := range r.tx.store.balances {
		keys = append(keys, key)
	}
	for key := range r.tx.store.movements {
		keys = append(keys, key)
	}
	r.tx.store.mu.RUnlock()
	for key := range r.tx.balances {
		keys = append(keys, key)
	}
	keys = filter(keys, func(k inventory.BalanceKey) bool { return k.TenantID == tenantID })
	return inventory.SortKeys(keys), nil
}

type batchRepo struct{ tx *Tx }

func (r batchRepo) Save(_ context.Context, b *inventory.Batch) error {
	r.tx.batches[b.ID] = cloneBatch(b)
	return nil
}

func (r batchRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*inventory.Batch, error) {
	b, ok := r.tx.batches[id]
	if !ok {
		r.tx.store.mu.RLock()
		b, ok = r.tx.store.batches[id]
		r.tx.store.mu.RUnlock()
	}
	if !ok || b.TenantID != tenantID {
		return nil, shared.NotFound("batch", id)
	}
	return cloneBatch(b), nil
}

func (r batchRepo) ListExpiringBefore(_ context.Context, tenantID uuid.UUID, cutoff time.Time) ([]*inventory.Batch, error) {
	seen := make(map[uuid.UUID]bool)
	var out []*inventory.Batch
	keep := func(b *inventory.Batch) {
		if seen[b.ID] || b.TenantID != tenantID || b.ExpiryDate == nil || !b.ExpiryDate.Before(cutoff) {
			return
		}
		seen[b.ID] = true
		out = append(out, cloneBatch(b))
	}
	for _, b := range r.tx.batches {
		keep(b)
	}
	r.tx.store.mu.RLock()
	for _, b := range r.tx.store.batches {
		keep(b)
	}
	r.tx.store.mu.RUnlock()
	slices.SortFunc(out, func(a, b *inventory.Batch) int { return a.ExpiryDate.Compare(*b.ExpiryDate) })
	return out, nil
}
