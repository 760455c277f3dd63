package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// PubSub publishes events as JSON messages so downstream consumers
// (dashboards, alerting) can subscribe.
type PubSub struct {
	topic *pubsub.Topic
}

// NewPubSub builds a notifier for the given project and topic.
func NewPubSub(ctx context.Context, projectID, topicID string) (*PubSub, error) {
	if projectID == "" || topicID == "" {
		return nil, fmt.Errorf("pubsub project and topic are required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &PubSub{topic: client.Topic(topicID)}, nil
}

// Notify publishes the event and waits for the server ack.
func (p *PubSub) Notify(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"kind":   event.Kind,
			"run_id": event.RunID,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Stop flushes pending publishes.
func (p *PubSub) Stop() {
	p.topic.Stop()
}
