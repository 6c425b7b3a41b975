package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/ViviZhou160916/medicine-inventory/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishMovementApplied publishes MovementApplied event
func (ep *EventPublisher) PublishMovementApplied(ctx context.Context, event *models.MovementAppliedEvent) error {
	key := fmt.Sprintf("item-%s", event.ItemID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishAlertRaised publishes AlertRaised event
func (ep *EventPublisher) PublishAlertRaised(ctx context.Context, event *models.AlertRaisedEvent) error {
	key := fmt.Sprintf("item-%s", event.ItemID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishAlertResolved publishes AlertResolved event
func (ep *EventPublisher) PublishAlertResolved(ctx context.Context, event *models.AlertResolvedEvent) error {
	key := fmt.Sprintf("item-%s", event.ItemID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishSweepCompleted publishes SweepCompleted event
func (ep *EventPublisher) PublishSweepCompleted(ctx context.Context, event *models.SweepCompletedEvent) error {
	return ep.producer.PublishEvent(ctx, "sweep", event)
}

// EventHandler routes incoming events to registered callbacks
type EventHandler struct {
	onMovementApplied func(context.Context, *models.MovementAppliedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnMovementApplied registers a handler for MovementApplied events
func (eh *EventHandler) OnMovementApplied(handler func(context.Context, *models.MovementAppliedEvent) error) {
	eh.onMovementApplied = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	log.Printf("Handling event: type=%s, id=%s", baseEvent.EventType, baseEvent.EventID)

	switch baseEvent.EventType {
	case models.EventTypeMovementApplied:
		if eh.onMovementApplied != nil {
			var event models.MovementAppliedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal MovementApplied event: %w", err)
			}
			return eh.onMovementApplied(ctx, &event)
		}

	default:
		// Other event types are informational; nothing subscribes to them here.
	}

	return nil
}
