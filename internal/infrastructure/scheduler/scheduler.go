// Package scheduler runs background ledger jobs (expiry scans and
// consistency checks) on a small worker pool, triggered once a day.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrSchedulerNotRunning = errors.New("scheduler is not running")
	ErrJobQueueFull        = errors.New("job queue is full")
	ErrUnknownJobType      = errors.New("unknown job type")
)

// JobStatus represents the status of a scheduled job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// JobType selects what a job does for its tenant.
type JobType string

const (
	JobTypeExpiryScan JobType = "EXPIRY_SCAN"
	JobTypeVerify     JobType = "VERIFY"
)

// DailyJobTypes are submitted for every tenant by the daily trigger.
func DailyJobTypes() []JobType {
	return []JobType{JobTypeExpiryScan, JobTypeVerify}
}

// Job is one unit of background work for a tenant.
type Job struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Type        JobType
	Status      JobStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
	NextRetryAt *time.Time
}

// NewJob creates a pending job
func NewJob(tenantID uuid.UUID, jobType JobType, maxRetries int) *Job {
	return &Job{
		ID:         uuid.New(),
		TenantID:   tenantID,
		Type:       jobType,
		Status:     JobStatusPending,
		MaxRetries: maxRetries,
	}
}

// Start marks the job as running
func (j *Job) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete marks the job as successful
func (j *Job) Complete() {
	now := time.Now()
	j.Status = JobStatusSuccess
	j.CompletedAt = &now
}

// Fail marks the job as failed with the given message
func (j *Job) Fail(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// ShouldRetry returns true if the job should be retried
func (j *Job) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScheduleRetry schedules the job for retry
func (j *Job) ScheduleRetry(delay time.Duration) {
	j.RetryCount++
	j.Status = JobStatusPending
	next := time.Now().Add(delay)
	j.NextRetryAt = &next
	j.Error = ""
}

// JobExecutor runs a job.
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) error
}

// Config holds scheduler configuration
type Config struct {
	MaxConcurrentJobs int
	JobTimeout        time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
	QueueSize         int
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrentJobs: 2,
		JobTimeout:        30 * time.Minute,
		RetryAttempts:     3,
		RetryDelay:        5 * time.Minute,
		QueueSize:         100,
	}
}

// Scheduler manages the job queue and its workers.
type Scheduler struct {
	config   Config
	executor JobExecutor
	logger   *zap.Logger

	jobs      chan *Job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewScheduler creates a scheduler; zero config values fall back to the defaults
func NewScheduler(config Config, executor JobExecutor, logger *zap.Logger) *Scheduler {
	d := DefaultConfig()
	if config.MaxConcurrentJobs <= 0 {
		config.MaxConcurrentJobs = d.MaxConcurrentJobs
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = d.JobTimeout
	}
	if config.QueueSize <= 0 {
		config.QueueSize = d.QueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		config:   config,
		executor: executor,
		logger:   logger,
		jobs:     make(chan *Job, config.QueueSize),
	}
}

// Start starts the worker pool
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Ledger job scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs and waits for the workers to exit.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Ledger job scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Ledger job scheduler stop timed out")
		return ctx.Err()
	}
}

// SubmitJob queues a job without blocking.
func (s *Scheduler) SubmitJob(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}

	select {
	case s.jobs <- job:
		s.logger.Debug("Job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("job_type", string(job.Type)),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

// ScheduleDaily submits every daily job type for a tenant.
func (s *Scheduler) ScheduleDaily(tenantID uuid.UUID) error {
	for _, t := range DailyJobTypes() {
		if err := s.SubmitJob(NewJob(tenantID, t, s.config.RetryAttempts)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.jobs:
			s.processJob(ctx, job, workerID)
		}
	}
}

func (s *Scheduler) processJob(ctx context.Context, job *Job, workerID int) {
	if job.NextRetryAt != nil {
		wait := time.Until(*job.NextRetryAt)
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}

	job.Start()
	log := s.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
		zap.String("tenant_id", job.TenantID.String()),
	)
	log.Info("Processing job")

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	err := s.executor.Execute(jobCtx, job)
	cancel()
	if err == nil {
		job.Complete()
		log.Info("Job completed successfully")
		return
	}

	job.Fail(err.Error())
	log.Error("Job failed", zap.Error(err))
	if !job.ShouldRetry() || ctx.Err() != nil || errors.Is(err, ErrUnknownJobType) {
		return
	}
	job.ScheduleRetry(s.config.RetryDelay)
	log.Info("Job scheduled for retry",
		zap.Int("retry_count", job.RetryCount),
		zap.Int("max_retries", job.MaxRetries),
	)
	select {
	case s.jobs <- job:
	default:
		log.Warn("Failed to re-queue job for retry")
	}
}
