package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TenantProvider lists the tenants daily jobs run for.
type TenantProvider interface {
	ActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// ParseDailySchedule reads the minute and hour fields of a cron expression
// such as "30 3 * * *". The remaining fields are ignored; an empty
// expression means 02:00.
func ParseDailySchedule(expr string) (hour, minute int, err error) {
	hour, minute = 2, 0
	parts := strings.Fields(expr)
	if len(parts) < 2 {
		return hour, minute, nil
	}
	if parts[0] != "*" {
		if minute, err = strconv.Atoi(parts[0]); err != nil {
			return 2, 0, fmt.Errorf("invalid minute %q", parts[0])
		}
	}
	if parts[1] != "*" {
		if hour, err = strconv.Atoi(parts[1]); err != nil {
			return 2, 0, fmt.Errorf("invalid hour %q", parts[1])
		}
	}
	if minute < 0 || minute > 59 {
		return 2, 0, fmt.Errorf("minute must be 0-59, got %d", minute)
	}
	if hour < 0 || hour > 23 {
		return 2, 0, fmt.Errorf("hour must be 0-23, got %d", hour)
	}
	return hour, minute, nil
}

// TriggerConfig holds configuration for the daily trigger
type TriggerConfig struct {
	Hour          int
	Minute        int
	CheckInterval time.Duration
}

// DailyTrigger submits the daily jobs for every tenant once per day, at
// the first check on or after the configured time.
type DailyTrigger struct {
	config    TriggerConfig
	scheduler *Scheduler
	tenants   TenantProvider
	logger    *zap.Logger
	now       func() time.Time

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string
}

// NewDailyTrigger creates a trigger that enqueues the daily jobs for every tenant
func NewDailyTrigger(config TriggerConfig, scheduler *Scheduler, tenants TenantProvider, logger *zap.Logger) *DailyTrigger {
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DailyTrigger{
		config:    config,
		scheduler: scheduler,
		tenants:   tenants,
		logger:    logger,
		now:       time.Now,
	}
}

// Start begins checking the clock in the background
func (t *DailyTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Daily ledger trigger started",
		zap.Int("hour", t.config.Hour),
		zap.Int("minute", t.config.Minute),
		zap.Duration("check_interval", t.config.CheckInterval),
	)
	return nil
}

// Stop halts the background check
func (t *DailyTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *DailyTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.checkAndTrigger(ctx)
		}
	}
}

// checkAndTrigger returns whether jobs were submitted.
func (t *DailyTrigger) checkAndTrigger(ctx context.Context) bool {
	now := t.now()
	today := now.Format(time.DateOnly)
	due := time.Date(now.Year(), now.Month(), now.Day(), t.config.Hour, t.config.Minute, 0, 0, now.Location())

	t.mu.Lock()
	if t.lastRunDate == today || now.Before(due) {
		t.mu.Unlock()
		return false
	}
	t.lastRunDate = today
	t.mu.Unlock()

	t.RunNow(ctx)
	return true
}

// RunNow submits the daily jobs for every tenant immediately.
func (t *DailyTrigger) RunNow(ctx context.Context) {
	tenantIDs, err := t.tenants.ActiveTenantIDs(ctx)
	if err != nil {
		t.logger.Error("Failed to list tenants for daily ledger jobs", zap.Error(err))
		return
	}
	t.logger.Info("Scheduling daily ledger jobs", zap.Int("tenant_count", len(tenantIDs)))

	for _, tenantID := range tenantIDs {
		if err := t.scheduler.ScheduleDaily(tenantID); err != nil {
			t.logger.Error("Failed to schedule daily ledger jobs",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
		}
	}
}
