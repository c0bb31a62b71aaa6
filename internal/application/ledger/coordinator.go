package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/erp/retailops/internal/domain/policy"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/infrastructure/logger"
	"github.com/erp/retailops/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Locker grants exclusive ownership of a named key.
type Locker interface {
	// Acquire obtains the lock, retrying within the locker's own limits. When
	// the key stays busy it returns an error matching shared.ErrConflict.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// CoordinatorConfig bounds how often a unit of work is retried on conflict.
type CoordinatorConfig struct {
	MaxAttempts  int
	RetryBackoff time.Duration
}

// DefaultCoordinatorConfig returns three attempts starting at 25ms backoff.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		MaxAttempts:  3,
		RetryBackoff: 25 * time.Millisecond,
	}
}

// Coordinator runs operations that write the ledger. It locks every balance
// key the operation touches in a fixed total order before opening the unit
// of work, so two operations over overlapping keys cannot deadlock and
// disjoint keys proceed in parallel.
type Coordinator struct {
	uow     UnitOfWork
	locker  Locker
	cfg     CoordinatorConfig
	metrics *telemetry.LedgerMetrics
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(uow UnitOfWork, locker Locker, cfg CoordinatorConfig) *Coordinator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultCoordinatorConfig().RetryBackoff
	}
	return &Coordinator{uow: uow, locker: locker, cfg: cfg}
}

// SetMetrics enables lock and retry metrics.
func (c *Coordinator) SetMetrics(m *telemetry.LedgerMetrics) {
	c.metrics = m
}

// Run locks keys, opens a unit of work and calls fn with a Scope holding
// those keys. A Conflict from any step releases everything and retries the
// whole unit of work up to MaxAttempts times. The context is consulted only
// before an attempt starts.
func (c *Coordinator) Run(ctx context.Context, keys []inventory.BalanceKey, fn func(scope *Scope) error) (policy.Advisories, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger_coordinator", "run")
	defer span.End()

	sorted := inventory.SortKeys(keys)
	for _, k := range sorted {
		if err := k.Validate(); err != nil {
			return nil, shared.InvalidInput("%s", err.Error())
		}
	}
	telemetry.SetAttribute(span, "keys", len(sorted))

	var (
		advisories policy.Advisories
		err        error
	)
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err == nil {
				err = ctxErr
			}
			break
		}
		advisories, err = c.attempt(ctx, sorted, fn)
		if err == nil || !errors.Is(err, shared.ErrConflict) || attempt >= c.cfg.MaxAttempts {
			break
		}
		c.metrics.RecordRetry(ctx)
		logger.FromContext(ctx).Debug("Retrying unit of work after conflict",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		time.Sleep(c.cfg.RetryBackoff << (attempt - 1))
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return advisories, nil
}

// Execute runs fn in a unit of work without taking any key lock. Use it for
// reads and for writes that never touch a balance.
func (c *Coordinator) Execute(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.uow.Execute(ctx, fn)
}

func (c *Coordinator) attempt(ctx context.Context, keys []inventory.BalanceKey, fn func(scope *Scope) error) (policy.Advisories, error) {
	releases := make([]func(), 0, len(keys))
	defer func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}()

	start := time.Now()
	for _, k := range keys {
		release, err := c.locker.Acquire(ctx, LockName(k))
		if err != nil {
			if errors.Is(err, shared.ErrConflict) {
				c.metrics.RecordLockConflict(ctx, k.TenantID)
			}
			return nil, fmt.Errorf("lock %s: %w", k, err)
		}
		releases = append(releases, release)
	}
	if len(keys) > 0 {
		c.metrics.RecordLockWait(ctx, time.Since(start))
	}

	var scope *Scope
	err := c.uow.Execute(ctx, func(tx Tx) error {
		scope = newScope(tx, keys)
		return fn(scope)
	})
	if err != nil {
		return nil, err
	}
	return scope.Advisories(), nil
}

// LockName is the locker key guarding one balance.
func LockName(k inventory.BalanceKey) string {
	return "ledger:" + k.String()
}
