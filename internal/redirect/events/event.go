// Package events publishes click lifecycle and security events raised by the
// redirect pipeline.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event names.
const (
	ClickGenesis   = "click.genesis"
	ClickValidated = "click.validated"
	ClickRouted    = "click.routed"
	ClickBlocked   = "click.blocked"
)

// PipelineEvent describes one stage outcome.
type PipelineEvent struct {
	EventID    string    `json:"event_id"`
	Name       string    `json:"event_name"`
	ClickID    string    `json:"click_id,omitempty"`
	LinkID     string    `json:"link_id,omitempty"`
	Stage      string    `json:"stage"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewPipelineEvent creates an event with a time-ordered id.
func NewPipelineEvent(name, clickID, linkID, stage, reason string) PipelineEvent {
	return PipelineEvent{
		EventID:    uuid.Must(uuid.NewV7()).String(),
		Name:       name,
		ClickID:    clickID,
		LinkID:     linkID,
		Stage:      stage,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers pipeline events to a sink.
type Publisher interface {
	Publish(ctx context.Context, e PipelineEvent) error
}

// Compile-time interface checks
var (
	_ Publisher = (*EventBus)(nil)
	_ Publisher = (*DaprPublisher)(nil)
	_ Publisher = NopPublisher{}
)

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, PipelineEvent) error {
	return nil
}
