package ledger

import (
	"context"

	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/erp/retailops/internal/domain/policy"
	"github.com/erp/retailops/internal/domain/shared"
)

// Document binds one workflow aggregate to its repository inside a unit of
// work.
type Document[T shared.AggregateRoot] struct {
	Load func(ctx context.Context, tx Tx) (T, error)
	Save func(ctx context.Context, tx Tx, doc T) error
}

// Update loads a document while holding the locks of keys, applies change,
// saves the document and queues its events. The document is reloaded on
// every retry, so change must derive everything from what it is given.
func Update[T shared.AggregateRoot](ctx context.Context, c *Coordinator, keys []inventory.BalanceKey, doc Document[T], change func(scope *Scope, v T) error) (T, policy.Advisories, error) {
	var out T
	advisories, err := c.Run(ctx, keys, func(scope *Scope) error {
		v, err := doc.Load(ctx, scope)
		if err != nil {
			return err
		}
		if err := change(scope, v); err != nil {
			return err
		}
		if err := doc.Save(ctx, scope, v); err != nil {
			return err
		}
		scope.Record(v)
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, nil, err
	}
	return out, advisories, nil
}

// Read loads a document without taking any lock.
func Read[T shared.AggregateRoot](ctx context.Context, c *Coordinator, doc Document[T]) (T, error) {
	var out T
	err := c.Execute(ctx, func(tx Tx) error {
		v, err := doc.Load(ctx, tx)
		out = v
		return err
	})
	return out, err
}
