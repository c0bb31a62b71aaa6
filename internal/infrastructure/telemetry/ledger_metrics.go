package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// LedgerMetrics records ledger and workflow activity. A nil *LedgerMetrics
// is valid and records nothing.
type LedgerMetrics struct {
	logger *zap.Logger

	movements     *Counter
	lockConflicts *Counter
	retries       *Counter
	discrepancies *Counter
	advisories    *Counter
	transitions   *Counter
	lockWait      *Histogram

	lowStock  *Gauge
	inTransit *Gauge

	state       LedgerStateProvider
	stopCh      chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once
}

// LedgerStateProvider reads aggregate ledger state for the periodic gauges.
type LedgerStateProvider interface {
	// LowStockCount counts balances below their location's threshold.
	LowStockCount(ctx context.Context, tenantID uuid.UUID) (int64, error)
	// InTransitByLocation sums in-transit quantity per location.
	InTransitByLocation(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]float64, error)
}

// TenantProvider lists the tenants to collect gauges for.
type TenantProvider interface {
	ActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// LedgerMetricsConfig configures NewLedgerMetrics.
type LedgerMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
	State  LedgerStateProvider
}

// ErrMeterNil is returned when no meter is configured.
var ErrMeterNil = &MetricsError{Op: "NewLedgerMetrics", Err: "meter cannot be nil"}

// MetricsError reports a metrics setup failure.
type MetricsError struct {
	Op  string
	Err string
}

// Error implements error
func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

// NewLedgerMetrics registers the ledger instruments on cfg.Meter.
func NewLedgerMetrics(cfg LedgerMetricsConfig) (*LedgerMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &LedgerMetrics{logger: logger, state: cfg.State, stopCh: make(chan struct{})}

	counters := []struct {
		dst              **Counter
		name, desc, unit string
	}{
		{&m.movements, "retail_ledger_movements_total", "Stock movements appended", "{movements}"},
		{&m.lockConflicts, "retail_ledger_lock_conflicts_total", "Balance key locks not obtained", "{locks}"},
		{&m.retries, "retail_ledger_retries_total", "Ledger operations retried after a conflict", "{retries}"},
		{&m.discrepancies, "retail_ledger_discrepancies_total", "Cached balances that differ from their replay", "{balances}"},
		{&m.advisories, "retail_policy_advisories_total", "Policy evaluations that warned or blocked", "{advisories}"},
		{&m.transitions, "retail_workflow_transitions_total", "Workflow state transitions", "{transitions}"},
	}
	var err error
	for _, c := range counters {
		if *c.dst, err = NewCounter(cfg.Meter, c.name, c.desc, c.unit); err != nil {
			return nil, err
		}
	}

	m.lockWait, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "retail_ledger_lock_wait_seconds",
		Description: "Time spent acquiring balance key locks",
		Unit:        "s",
		Boundaries:  LockWaitBuckets,
	})
	if err != nil {
		return nil, err
	}
	if m.lowStock, err = NewGauge(cfg.Meter, "retail_ledger_low_stock_balances", "Balances below the low stock threshold", "{balances}"); err != nil {
		return nil, err
	}
	if m.inTransit, err = NewGauge(cfg.Meter, "retail_ledger_in_transit_quantity", "Quantity in transit per location", "{units}"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordMovement counts one appended movement.
func (m *LedgerMetrics) RecordMovement(ctx context.Context, tenantID uuid.UUID, kind string) {
	if m == nil {
		return
	}
	m.movements.Inc(ctx, AttrTenantID.String(tenantID.String()), AttrMovementKind.String(kind))
}

// RecordLockConflict counts a lock that could not be obtained.
func (m *LedgerMetrics) RecordLockConflict(ctx context.Context, tenantID uuid.UUID) {
	if m == nil {
		return
	}
	m.lockConflicts.Inc(ctx, AttrTenantID.String(tenantID.String()))
}

// RecordLockWait observes how long a lock set took to acquire.
func (m *LedgerMetrics) RecordLockWait(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.RecordDuration(ctx, d)
}

// RecordRetry counts a retried ledger operation.
func (m *LedgerMetrics) RecordRetry(ctx context.Context) {
	if m == nil {
		return
	}
	m.retries.Inc(ctx)
}

// RecordDiscrepancy counts a balance whose cache disagrees with its replay.
func (m *LedgerMetrics) RecordDiscrepancy(ctx context.Context, tenantID uuid.UUID) {
	if m == nil {
		return
	}
	m.discrepancies.Inc(ctx, AttrTenantID.String(tenantID.String()))
}

// RecordAdvisory counts a policy evaluation with a non-allow outcome.
func (m *LedgerMetrics) RecordAdvisory(ctx context.Context, tenantID uuid.UUID, policy, outcome string) {
	if m == nil {
		return
	}
	m.advisories.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrPolicy.String(policy),
		AttrOutcome.String(outcome),
	)
}

// RecordTransition counts a workflow entity moving to state to.
func (m *LedgerMetrics) RecordTransition(ctx context.Context, tenantID uuid.UUID, workflow, to string) {
	if m == nil {
		return
	}
	m.transitions.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrWorkflow.String(workflow),
		AttrOutcome.String(to),
	)
}

// StartPeriodicCollection refreshes the gauges every interval (default five
// minutes) until Stop is called or ctx ends. Only the first call starts a
// collector.
func (m *LedgerMetrics) StartPeriodicCollection(ctx context.Context, tenants TenantProvider, interval time.Duration) {
	if m == nil {
		return
	}
	m.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go m.run(ctx, tenants, interval)
	})
}

func (m *LedgerMetrics) run(ctx context.Context, tenants TenantProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.Collect(ctx, tenants)
	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Collect(ctx, tenants)
		}
	}
}

// Collect refreshes the gauges once for every active tenant.
func (m *LedgerMetrics) Collect(ctx context.Context, tenants TenantProvider) {
	if m == nil || m.state == nil || tenants == nil {
		return
	}
	ids, err := tenants.ActiveTenantIDs(ctx)
	if err != nil {
		m.logger.Error("List tenants for ledger metrics failed", zap.Error(err))
		return
	}
	for _, id := range ids {
		tenant := AttrTenantID.String(id.String())
		if n, err := m.state.LowStockCount(ctx, id); err != nil {
			m.logger.Warn("Low stock count failed", zap.String("tenant_id", id.String()), zap.Error(err))
		} else {
			m.lowStock.Record(ctx, float64(n), tenant)
		}
		byLocation, err := m.state.InTransitByLocation(ctx, id)
		if err != nil {
			m.logger.Warn("In-transit totals failed", zap.String("tenant_id", id.String()), zap.Error(err))
			continue
		}
		for loc, qty := range byLocation {
			m.inTransit.Record(ctx, qty, tenant, AttrLocationID.String(loc.String()))
		}
	}
}

// Stop ends periodic collection. It is safe to call more than once.
func (m *LedgerMetrics) Stop() {
	if m == nil {
		return
	}
	m.stopOnce.Do(func() { close(m.stopCh) })
}
