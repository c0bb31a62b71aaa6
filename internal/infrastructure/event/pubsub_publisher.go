package event

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/erp/retailops/internal/domain/shared"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// PubSubConfig selects the topic the relay publishes to.
type PubSubConfig struct {
	ProjectID       string
	Topic           string
	CredentialsJSON string
	CreateTopic     bool
}

// PubSubPublisher publishes events to a Google Cloud Pub/Sub topic. Each
// message carries the event type and tenant as attributes and is ordered by
// aggregate id.
type PubSubPublisher struct {
	client     *pubsub.Client
	topic      *pubsub.Topic
	serializer *EventSerializer
	logger     *zap.Logger
}

// NewPubSubPublisher connects to Pub/Sub. Without CredentialsJSON the
// client uses application default credentials.
func NewPubSubPublisher(ctx context.Context, cfg PubSubConfig, serializer *EventSerializer, logger *zap.Logger) (*PubSubPublisher, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("pubsub project id is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("pubsub topic is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	topic := client.Topic(cfg.Topic)
	if cfg.CreateTopic {
		ok, err := topic.Exists(ctx)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("check topic %q: %w", cfg.Topic, err)
		}
		if !ok {
			if topic, err = client.CreateTopic(ctx, cfg.Topic); err != nil {
				_ = client.Close()
				return nil, fmt.Errorf("create topic %q: %w", cfg.Topic, err)
			}
		}
	}
	topic.EnableMessageOrdering = true

	logger.Info("Pub/Sub publisher ready",
		zap.String("project_id", cfg.ProjectID),
		zap.String("topic", cfg.Topic),
	)
	return &PubSubPublisher{client: client, topic: topic, serializer: serializer, logger: logger}, nil
}

// Publish sends events and waits for the server to acknowledge each one.
func (p *PubSubPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	results := make([]*pubsub.PublishResult, 0, len(events))
	for _, event := range events {
		data, err := p.serializer.Serialize(event)
		if err != nil {
			return err
		}
		results = append(results, p.topic.Publish(ctx, &pubsub.Message{
			Data:        data,
			OrderingKey: event.AggregateID().String(),
			Attributes: map[string]string{
				"event_id":       event.EventID().String(),
				"event_type":     event.EventType(),
				"aggregate_type": event.AggregateType(),
				"tenant_id":      event.TenantID().String(),
			},
		}))
	}

	var errs []error
	for i, res := range results {
		if _, err := res.Get(ctx); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", events[i].EventID(), err))
			p.topic.ResumePublish(events[i].AggregateID().String())
		}
	}
	return errors.Join(errs...)
}

// Close flushes pending messages and closes the client.
func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}

// MultiPublisher publishes to several publishers in order and reports every
// failure.
type MultiPublisher []shared.EventPublisher

// Publish implements shared.EventPublisher
func (m MultiPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, events...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ shared.EventPublisher = (*PubSubPublisher)(nil)
	_ shared.EventPublisher = MultiPublisher(nil)
)
