// Package pubsub announces archived documents on a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/JakeFAU/drhp-archiver/internal/archiver"
)

// Publisher wraps a Pub/Sub topic.
type Publisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// New connects to projectID and verifies that topicID exists.
func New(ctx context.Context, projectID, topicID string, opts ...option.ClientOption) (*Publisher, error) {
	if projectID == "" {
		return nil, &archiver.ConfigError{Field: "notify.project_id", Err: errors.New("project id is required")}
	}
	if topicID == "" {
		return nil, &archiver.ConfigError{Field: "notify.topic", Err: errors.New("topic is required")}
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("check pubsub topic %q: %w", topicID, err)
	}
	if !exists {
		_ = client.Close()
		return nil, &archiver.ConfigError{
			Field: "notify.topic",
			Err:   fmt.Errorf("topic %q does not exist in project %q", topicID, projectID),
		}
	}
	return &Publisher{client: client, topic: topic}, nil
}

// Notify marshals the event to JSON and waits for the publish to be acknowledged.
func (p *Publisher) Notify(ctx context.Context, event archiver.ArchivedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"run_id":      event.RunID,
			"remote_name": event.RemoteName,
		},
	}
	if _, err := p.topic.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the client.
func (p *Publisher) Close() error {
	p.topic.Stop()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
