package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"marketplace-settlement/internal/core/domain"

	"cloud.google.com/go/pubsub/v2"
)

type publisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) publishResult
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

// PubSubSink publishes each event to a Pub/Sub topic. Subscribers dedup on
// the event_id attribute.
type PubSubSink struct {
	client    *pubsub.Client
	publisher publisher
	topic     *pubsub.Publisher
}

// NewPubSubSink opens a Pub/Sub client for projectID and binds the topic.
func NewPubSubSink(ctx context.Context, projectID, topic string) (*PubSubSink, error) {
	if projectID == "" {
		return nil, errors.New("gcp project id is required")
	}
	if topic == "" {
		return nil, errors.New("pubsub topic is required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	p := client.Publisher(topic)
	return &PubSubSink{client: client, publisher: &gcpPublisher{p}, topic: p}, nil
}

func newPubSubSinkWithPublisher(p publisher) *PubSubSink {
	return &PubSubSink{publisher: p}
}

func (s *PubSubSink) Name() string { return "pubsub" }

func (s *PubSubSink) Deliver(ctx context.Context, event domain.NotificationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_id":   event.ID.String(),
			"event_type": string(event.Type),
			"owner_id":   event.OwnerID.String(),
		},
	}
	res := s.publisher.Publish(ctx, msg)
	if res == nil {
		return errors.New("publisher unavailable")
	}
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("publish %s: %w", event.ID, err)
	}
	return nil
}

// Close flushes pending messages and releases the client.
func (s *PubSubSink) Close() error {
	if s.topic != nil {
		s.topic.Stop()
	}
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

type gcpPublisher struct {
	*pubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *pubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return p.Publisher.Publish(ctx, msg)
}
