package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// RedirectEventsTopic carries every pipeline event.
const RedirectEventsTopic = "redirect.events"

// EventBus wraps an in-process Watermill pub/sub.
type EventBus struct {
	pubsub    *gochannel.GoChannel
	publisher message.Publisher
	logger    watermill.LoggerAdapter
}

// NewEventBus creates an event bus backed by Go channels.
func NewEventBus(logger watermill.LoggerAdapter) *EventBus {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: 256,
			Persistent:          false,
		},
		logger,
	)

	return &EventBus{
		pubsub:    pubsub,
		publisher: pubsub,
		logger:    logger,
	}
}

// Publisher returns the Watermill publisher.
func (b *EventBus) Publisher() message.Publisher {
	return b.publisher
}

// Subscriber returns the Watermill subscriber.
func (b *EventBus) Subscriber() message.Subscriber {
	return b.pubsub
}

// Publish publishes a pipeline event on RedirectEventsTopic.
func (b *EventBus) Publish(ctx context.Context, e PipelineEvent) error {
	msg, err := EventToMessage(e)
	if err != nil {
		return err
	}
	msg.SetContext(ctx)
	return b.publisher.Publish(RedirectEventsTopic, msg)
}

// Close closes the event bus.
func (b *EventBus) Close() error {
	return b.pubsub.Close()
}

// EventToMessage converts a pipeline event to a Watermill message.
func EventToMessage(e PipelineEvent) (*message.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}

	msg := message.NewMessage(e.EventID, payload)
	msg.Metadata.Set("event_name", e.Name)
	msg.Metadata.Set("click_id", e.ClickID)

	return msg, nil
}

// MessageToEvent decodes a pipeline event from a Watermill message.
func MessageToEvent(msg *message.Message) (*PipelineEvent, error) {
	var e PipelineEvent
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
