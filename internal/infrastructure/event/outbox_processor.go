package event

import (
	"context"
	"sync"
	"time"

	"github.com/erp/retailops/internal/domain/shared"
	"go.uber.org/zap"
)

// OutboxProcessorConfig holds configuration for the outbox processor
type OutboxProcessorConfig struct {
	BatchSize        int
	PollInterval     time.Duration
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

// DefaultOutboxProcessorConfig returns default configuration
func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:        100,
		PollInterval:     5 * time.Second,
		CleanupEnabled:   true,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// OutboxProcessor relays committed outbox entries to a publisher. Delivery
// is at least once: an entry is marked sent only after Publish returns.
type OutboxProcessor struct {
	repo       shared.OutboxRepository
	publisher  shared.EventPublisher
	serializer *EventSerializer
	config     OutboxProcessorConfig
	logger     *zap.Logger
	now        func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOutboxProcessor creates a new outbox processor
func NewOutboxProcessor(
	repo shared.OutboxRepository,
	publisher shared.EventPublisher,
	serializer *EventSerializer,
	config OutboxProcessorConfig,
	logger *zap.Logger,
) *OutboxProcessor {
	return &OutboxProcessor{
		repo:       repo,
		publisher:  publisher,
		serializer: serializer,
		config:     config,
		logger:     logger,
		now:        time.Now,
	}
}

// Start launches the relay loop and, when enabled, the cleanup loop.
func (p *OutboxProcessor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.processLoop(ctx)

	if p.config.CleanupEnabled {
		p.wg.Add(1)
		go p.cleanupLoop(ctx)
	}

	p.logger.Info("Outbox processor started",
		zap.Int("batch_size", p.config.BatchSize),
		zap.Duration("poll_interval", p.config.PollInterval),
	)
	return nil
}

// Stop cancels the loops and waits for them, bounded by ctx.
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Outbox processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *OutboxProcessor) processLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch claims one batch of due entries and delivers them. It
// returns the number of entries delivered.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) int {
	entries, err := p.repo.ClaimDue(ctx, p.now(), p.config.BatchSize)
	if err != nil {
		p.logger.Error("Failed to claim outbox entries", zap.Error(err))
		return 0
	}

	sent := 0
	for _, entry := range entries {
		if p.deliver(ctx, entry) {
			sent++
		}
	}
	return sent
}

func (p *OutboxProcessor) deliver(ctx context.Context, entry *shared.OutboxEntry) bool {
	event, err := p.serializer.Deserialize(entry.EventType, entry.Payload)
	if err == nil {
		err = p.publisher.Publish(ctx, event)
	}
	if err != nil {
		p.fail(ctx, entry, err)
		return false
	}

	entry.MarkSent()
	if err := p.repo.Update(ctx, entry); err != nil {
		p.logger.Error("Failed to mark outbox entry as sent",
			zap.String("event_id", entry.EventID.String()),
			zap.Error(err),
		)
		return false
	}
	p.logger.Debug("Outbox entry delivered",
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
	)
	return true
}

func (p *OutboxProcessor) fail(ctx context.Context, entry *shared.OutboxEntry, cause error) {
	p.logger.Error("Failed to deliver outbox entry",
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
		zap.Int("attempt", entry.Attempts+1),
		zap.Error(cause),
	)

	entry.MarkFailed(cause.Error())
	if entry.Status == shared.OutboxDead {
		p.logger.Warn("Outbox entry moved to dead letter",
			zap.String("event_id", entry.EventID.String()),
			zap.String("event_type", entry.EventType),
			zap.String("aggregate_type", entry.AggregateType),
			zap.String("aggregate_id", entry.AggregateID.String()),
			zap.String("tenant_id", entry.TenantID.String()),
			zap.String("last_error", entry.LastError),
		)
	}
	if err := p.repo.Update(ctx, entry); err != nil {
		p.logger.Error("Failed to update outbox entry", zap.Error(err))
	}
}

func (p *OutboxProcessor) cleanupLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Cleanup(ctx)
		}
	}
}

// Cleanup deletes entries delivered longer ago than the retention.
func (p *OutboxProcessor) Cleanup(ctx context.Context) {
	cutoff := p.now().Add(-p.config.CleanupRetention)
	deleted, err := p.repo.DeleteSentBefore(ctx, cutoff)
	if err != nil {
		p.logger.Error("Failed to clean up outbox", zap.Error(err))
		return
	}
	if deleted > 0 {
		p.logger.Info("Cleaned up outbox entries",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
}
