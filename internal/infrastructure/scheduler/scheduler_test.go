package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/retailops/internal/application/ledger"
	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/erp/retailops/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type funcExecutor func(ctx context.Context, job *Job) error

func (f funcExecutor) Execute(ctx context.Context, job *Job) error { return f(ctx, job) }

type recordingExecutor struct {
	mu   sync.Mutex
	jobs []*Job
	done chan struct{}
}

func newRecordingExecutor(buffer int) *recordingExecutor {
	return &recordingExecutor{done: make(chan struct{}, buffer)}
}

func (r *recordingExecutor) Execute(_ context.Context, job *Job) error {
	r.mu.Lock()
	r.jobs = append(r.jobs, job)
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func (r *recordingExecutor) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d jobs", i, n)
		}
	}
}

func startScheduler(t *testing.T, cfg Config, exec JobExecutor) *Scheduler {
	t.Helper()
	s := NewScheduler(cfg, exec, zaptest.NewLogger(t))
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s
}

func TestScheduler_RunsSubmittedJobs(t *testing.T) {
	exec := newRecordingExecutor(4)
	s := startScheduler(t, Config{MaxConcurrentJobs: 2}, exec)
	tenant := uuid.New()

	require.NoError(t, s.ScheduleDaily(tenant))
	exec.wait(t, 2)

	exec.mu.Lock()
	defer exec.mu.Unlock()
	types := []JobType{exec.jobs[0].Type, exec.jobs[1].Type}
	assert.ElementsMatch(t, DailyJobTypes(), types)
	for _, j := range exec.jobs {
		assert.Equal(t, tenant, j.TenantID)
	}
}

func TestScheduler_RetriesFailedJob(t *testing.T) {
	var calls atomic.Int32
	done := make(chan *Job, 1)
	exec := funcExecutor(func(_ context.Context, job *Job) error {
		if calls.Add(1) == 1 {
			return errors.New("database unavailable")
		}
		done <- job
		return nil
	})
	s := startScheduler(t, Config{MaxConcurrentJobs: 1, RetryAttempts: 2, RetryDelay: time.Millisecond}, exec)

	require.NoError(t, s.SubmitJob(NewJob(uuid.New(), JobTypeVerify, 2)))

	select {
	case job := <-done:
		assert.Equal(t, 1, job.RetryCount)
		assert.Equal(t, int32(2), calls.Load())
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
}

func TestScheduler_UnknownJobTypeIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	exec := funcExecutor(func(_ context.Context, job *Job) error {
		calls.Add(1)
		return ErrUnknownJobType
	})
	s := startScheduler(t, Config{MaxConcurrentJobs: 1, RetryDelay: time.Millisecond}, exec)

	require.NoError(t, s.SubmitJob(NewJob(uuid.New(), "REBALANCE", 3)))

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestScheduler_SubmitErrors(t *testing.T) {
	t.Run("not running", func(t *testing.T) {
		s := NewScheduler(DefaultConfig(), newRecordingExecutor(1), nil)
		assert.ErrorIs(t, s.SubmitJob(NewJob(uuid.New(), JobTypeVerify, 0)), ErrSchedulerNotRunning)
	})

	t.Run("queue full", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan struct{})
		exec := funcExecutor(func(ctx context.Context, _ *Job) error {
			close(started)
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil
		})
		s := startScheduler(t, Config{MaxConcurrentJobs: 1, QueueSize: 1}, exec)
		defer close(release)

		require.NoError(t, s.SubmitJob(NewJob(uuid.New(), JobTypeVerify, 0)))
		<-started
		require.NoError(t, s.SubmitJob(NewJob(uuid.New(), JobTypeVerify, 0)))
		assert.ErrorIs(t, s.SubmitJob(NewJob(uuid.New(), JobTypeVerify, 0)), ErrJobQueueFull)
	})
}

func TestScheduler_StopCancelsRunningJob(t *testing.T) {
	started := make(chan struct{})
	exec := funcExecutor(func(ctx context.Context, _ *Job) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	s := NewScheduler(Config{MaxConcurrentJobs: 1}, exec, zaptest.NewLogger(t))
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.SubmitJob(NewJob(uuid.New(), JobTypeExpiryScan, 3)))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
	assert.ErrorIs(t, s.SubmitJob(NewJob(uuid.New(), JobTypeVerify, 0)), ErrSchedulerNotRunning)
}

func TestParseDailySchedule(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		hour    int
		minute  int
		wantErr bool
	}{
		{name: "default 2am", expr: "0 2 * * *", hour: 2, minute: 0},
		{name: "3:30am", expr: "30 3 * * *", hour: 3, minute: 30},
		{name: "empty string defaults", expr: "", hour: 2, minute: 0},
		{name: "extra whitespace", expr: "  15   4   *   *   *  ", hour: 4, minute: 15},
		{name: "minute out of range", expr: "75 4 * * *", hour: 2, minute: 0, wantErr: true},
		{name: "hour not a number", expr: "0 x * * *", hour: 2, minute: 0, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hour, minute, err := ParseDailySchedule(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.hour, hour)
			assert.Equal(t, tt.minute, minute)
		})
	}
}

type staticTenants []uuid.UUID

func (s staticTenants) ActiveTenantIDs(context.Context) ([]uuid.UUID, error) { return s, nil }

func TestDailyTrigger_RunsOncePerDayAfterDueTime(t *testing.T) {
	exec := newRecordingExecutor(8)
	s := startScheduler(t, Config{MaxConcurrentJobs: 2}, exec)
	tenants := staticTenants{uuid.New(), uuid.New()}
	trigger := NewDailyTrigger(TriggerConfig{Hour: 2, Minute: 30}, s, tenants, zaptest.NewLogger(t))

	now := time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC)
	trigger.now = func() time.Time { return now }
	ctx := context.Background()

	assert.False(t, trigger.checkAndTrigger(ctx), "before due time")

	now = time.Date(2026, 3, 2, 2, 45, 0, 0, time.UTC)
	assert.True(t, trigger.checkAndTrigger(ctx))
	exec.wait(t, 4)

	now = time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC)
	assert.False(t, trigger.checkAndTrigger(ctx), "already ran today")

	now = time.Date(2026, 3, 3, 2, 30, 0, 0, time.UTC)
	assert.True(t, trigger.checkAndTrigger(ctx), "next day")
	exec.wait(t, 4)
}

func TestDailyTrigger_StartStop(t *testing.T) {
	s := startScheduler(t, DefaultConfig(), newRecordingExecutor(1))
	trigger := NewDailyTrigger(TriggerConfig{CheckInterval: time.Millisecond}, s, staticTenants{}, nil)

	require.NoError(t, trigger.Start(context.Background()))
	require.NoError(t, trigger.Start(context.Background()))
	assert.NoError(t, trigger.Stop(context.Background()))
	assert.NoError(t, trigger.Stop(context.Background()))
}

func TestLedgerExecutor(t *testing.T) {
	l := testutil.NewLedger(t)
	ctx := context.Background()
	expiry := testutil.FixedNow.AddDate(0, 0, 5)
	_, err := l.Service.RecordProduction(ctx, l.Admin(), ledger.ProductionRequest{
		TenantID:    l.TenantID,
		ProductID:   uuid.New(),
		LocationID:  uuid.New(),
		BatchNumber: "B-1",
		ExpiryDate:  &expiry,
		Quantity:    testutil.Dec("4"),
		BulkPrice:   testutil.Dec("8.00"),
	})
	require.NoError(t, err)
	exec := NewLedgerExecutor(l.Service, 0, 2, zaptest.NewLogger(t))

	require.NoError(t, exec.Execute(ctx, NewJob(l.TenantID, JobTypeExpiryScan, 0)))
	require.NoError(t, exec.Execute(ctx, NewJob(l.TenantID, JobTypeVerify, 0)))
	assert.ErrorIs(t, exec.Execute(ctx, NewJob(l.TenantID, "REBALANCE", 0)), ErrUnknownJobType)

	assert.Len(t, l.Publisher.OfType(inventory.EventTypeExpiryAlert), 1)
}
