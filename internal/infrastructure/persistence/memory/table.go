package memory

import (
	"fmt"
	"slices"

	"github.com/erp/retailops/internal/domain/shared"
	"github.com/google/uuid"
)

// document is a versioned aggregate stored by id.
type document interface {
	GetID() uuid.UUID
	GetVersion() int
}

// table holds the committed rows of one aggregate type.
type table[T document] struct {
	name  string
	rows  map[uuid.UUID]T
	clone func(T) T
}

func newTable[T document](name string, clone func(T) T) *table[T] {
	return &table[T]{name: name, rows: make(map[uuid.UUID]T), clone: clone}
}

// overlay stages one transaction's writes to a table. Rows read through the
// overlay remember their version; commit fails with a conflict if another
// transaction changed them in the meantime.
type overlay[T document] struct {
	table  *table[T]
	staged map[uuid.UUID]T
	order  []uuid.UUID
	seen   map[uuid.UUID]int
}

func newOverlay[T document](t *table[T]) *overlay[T] {
	return &overlay[T]{
		table:  t,
		staged: make(map[uuid.UUID]T),
		seen:   make(map[uuid.UUID]int),
	}
}

// get must be called with the store read lock held.
func (o *overlay[T]) get(id uuid.UUID) (T, bool) {
	if v, ok := o.staged[id]; ok {
		return o.table.clone(v), true
	}
	v, ok := o.table.rows[id]
	if !ok {
		var zero T
		return zero, false
	}
	if _, seen := o.seen[id]; !seen {
		o.seen[id] = v.GetVersion()
	}
	return o.table.clone(v), true
}

func (o *overlay[T]) put(v T) {
	id := v.GetID()
	if _, ok := o.staged[id]; !ok {
		o.order = append(o.order, id)
	}
	o.staged[id] = o.table.clone(v)
}

// all returns committed rows merged with staged ones. Must be called with
// the store read lock held.
func (o *overlay[T]) all() []T {
	out := make([]T, 0, len(o.table.rows)+len(o.staged))
	for id, v := range o.table.rows {
		if _, ok := o.staged[id]; ok {
			continue
		}
		out = append(out, o.table.clone(v))
	}
	for _, id := range o.order {
		out = append(out, o.table.clone(o.staged[id]))
	}
	return out
}

// validate must be called with the store write lock held.
func (o *overlay[T]) validate() error {
	for _, id := range o.order {
		current, exists := o.table.rows[id]
		if !exists {
			continue
		}
		loaded, seen := o.seen[id]
		if !seen || current.GetVersion() != loaded {
			return shared.NewDomainError(shared.CodeConflict,
				fmt.Sprintf("%s %s was modified concurrently", o.table.name, id))
		}
	}
	return nil
}

// apply must be called with the store write lock held.
func (o *overlay[T]) apply() {
	for _, id := range o.order {
		o.table.rows[id] = o.staged[id]
	}
}

func filter[T any](rows []T, keep func(T) bool) []T {
	return slices.DeleteFunc(rows, func(v T) bool { return !keep(v) })
}
