package events

import (
	"context"
	"encoding/json"

	dapr "github.com/dapr/go-sdk/client"
)

// DaprClient is the subset of the Dapr client used for publishing.
type DaprClient interface {
	PublishEvent(ctx context.Context, pubsubName, topicName string, data interface{}, opts ...dapr.PublishEventOption) error
}

// DaprPublisher publishes pipeline events to a Dapr pub/sub component.
type DaprPublisher struct {
	client     DaprClient
	pubsubName string
	topic      string
}

// NewDaprPublisher creates a publisher for the given component and topic.
func NewDaprPublisher(client DaprClient, pubsubName, topic string) *DaprPublisher {
	return &DaprPublisher{
		client:     client,
		pubsubName: pubsubName,
		topic:      topic,
	}
}

func (p *DaprPublisher) Publish(ctx context.Context, e PipelineEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.client.PublishEvent(ctx, p.pubsubName, p.topic, data,
		dapr.PublishEventWithContentType("application/json"))
}
