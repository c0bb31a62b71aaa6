package inventory

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockBalance is the cached aggregate of every movement for one key. It is
// written only through Apply, in the same unit of work as the movement.
type StockBalance struct {
	Key BalanceKey
	Quantities
	AverageCost    *decimal.Decimal
	LastSequence   int64
	LastMovementAt *time.Time
	UpdatedAt      time.Time
}

// NewStockBalance returns an empty balance for key.
func NewStockBalance(key BalanceKey) *StockBalance {
	return &StockBalance{Key: key}
}

// Available is on-hand minus reserved, floored at zero.
func (b *StockBalance) Available() decimal.Decimal {
	return valueobject.NonNegative(b.OnHand.Sub(b.Reserved))
}

// IsEmpty reports whether the balance has never been touched.
func (b *StockBalance) IsEmpty() bool {
	return b.LastSequence == 0
}

// Apply validates a draft against the balance, mutates the balance and
// returns the resulting movement. On error the balance is unchanged.
func (b *StockBalance) Apply(d MovementDraft, now time.Time) (*StockMovement, error) {
	if d.Key != b.Key {
		return nil, fmt.Errorf("movement key %s does not match balance %s", d.Key, b.Key)
	}
	if err := validateDraft(d); err != nil {
		return nil, err
	}

	next := Quantities{
		OnHand:    b.OnHand.Add(d.QuantityIn).Sub(d.QuantityOut),
		Reserved:  b.Reserved.Add(d.ReservedDelta),
		InTransit: b.InTransit.Add(d.InTransitDelta),
		Damaged:   b.Damaged.Add(d.DamagedDelta),
	}
	if next.OnHand.IsNegative() && !d.AllowNegative {
		return nil, b.shortfall("on_hand", b.OnHand, d.QuantityOut.Sub(d.QuantityIn))
	}
	if next.Reserved.IsNegative() {
		return nil, b.shortfall("reserved", b.Reserved, d.ReservedDelta.Neg())
	}
	if next.InTransit.IsNegative() {
		return nil, b.shortfall("in_transit", b.InTransit, d.InTransitDelta.Neg())
	}
	if next.Damaged.IsNegative() {
		return nil, b.shortfall("damaged", b.Damaged, d.DamagedDelta.Neg())
	}

	unitCost := d.UnitCost
	if unitCost != nil {
		c := valueobject.UnitCost(*unitCost)
		unitCost = &c
		if d.QuantityIn.IsPositive() {
			b.AverageCost = WeightedAverage(b.AverageCost, b.OnHand, c, d.QuantityIn)
		}
	} else if b.AverageCost != nil {
		c := *b.AverageCost
		unitCost = &c
	}

	b.Quantities = next
	b.LastSequence++
	at := now
	b.LastMovementAt = &at
	b.UpdatedAt = now

	return &StockMovement{
		ID:             uuid.New(),
		Key:            b.Key,
		Sequence:       b.LastSequence,
		Kind:           d.Kind,
		Reference:      d.Reference,
		QuantityIn:     d.QuantityIn,
		QuantityOut:    d.QuantityOut,
		ReservedDelta:  d.ReservedDelta,
		InTransitDelta: d.InTransitDelta,
		DamagedDelta:   d.DamagedDelta,
		UnitCost:       unitCost,
		Snapshot:       next,
		CreatedBy:      d.ActorID,
		Notes:          d.Notes,
		CreatedAt:      now,
	}, nil
}

func (b *StockBalance) shortfall(bucket string, available, requested decimal.Decimal) error {
	return &shared.InsufficientStockError{
		Key:       b.Key.String(),
		Bucket:    bucket,
		Available: available,
		Requested: requested,
	}
}

func validateDraft(d MovementDraft) error {
	if err := d.Key.Validate(); err != nil {
		return shared.InvalidInput("%s", err.Error())
	}
	if !d.Kind.IsValid() {
		return shared.InvalidInput("unknown movement kind %q", d.Kind)
	}
	for name, q := range map[string]decimal.Decimal{"quantity_in": d.QuantityIn, "quantity_out": d.QuantityOut} {
		if err := valueobject.ValidateQuantity(q); err != nil {
			return shared.InvalidInput("%s: %s", name, err.Error())
		}
	}
	if d.QuantityIn.IsZero() && d.QuantityOut.IsZero() &&
		d.ReservedDelta.IsZero() && d.InTransitDelta.IsZero() && d.DamagedDelta.IsZero() {
		return shared.InvalidInput("movement changes no quantity")
	}
	if d.UnitCost != nil && d.UnitCost.IsNegative() {
		return shared.InvalidInput("unit cost cannot be negative")
	}
	return nil
}

// Replay rebuilds a balance from its movements. Movements are applied in
// sequence order and must form the gap-free sequence 1..n.
func Replay(key BalanceKey, movements []*StockMovement) (*StockBalance, error) {
	ordered := slices.Clone(movements)
	slices.SortFunc(ordered, func(a, b *StockMovement) int {
		return cmp.Compare(a.Sequence, b.Sequence)
	})

	b := NewStockBalance(key)
	for i, m := range ordered {
		if m.Sequence != int64(i+1) {
			return nil, fmt.Errorf("replay %s: expected sequence %d, found %d", key, i+1, m.Sequence)
		}
		if _, err := b.Apply(m.draft(), m.CreatedAt); err != nil {
			return nil, fmt.Errorf("replay %s at sequence %d: %w", key, m.Sequence, err)
		}
	}
	return b, nil
}

// Discrepancy describes how a cached balance differs from its replay.
type Discrepancy struct {
	Key                 BalanceKey
	Cached              Quantities
	Replayed            Quantities
	CachedAverageCost   *decimal.Decimal
	ReplayedAverageCost *decimal.Decimal
	CachedSequence      int64
	ReplayedSequence    int64
}

// Compare returns nil when cached matches replayed.
func Compare(cached, replayed *StockBalance) *Discrepancy {
	if cached.Quantities.Equal(replayed.Quantities) &&
		cached.LastSequence == replayed.LastSequence &&
		costEqual(cached.AverageCost, replayed.AverageCost) {
		return nil
	}
	return &Discrepancy{
		Key:                 cached.Key,
		Cached:              cached.Quantities,
		Replayed:            replayed.Quantities,
		CachedAverageCost:   cached.AverageCost,
		ReplayedAverageCost: replayed.AverageCost,
		CachedSequence:      cached.LastSequence,
		ReplayedSequence:    replayed.LastSequence,
	}
}

func costEqual(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
