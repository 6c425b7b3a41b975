package worker

import (
	"context"
	"log"

	"github.com/ViviZhou160916/medicine-inventory/internal/broker"
	"github.com/ViviZhou160916/medicine-inventory/internal/service"
)

// AlertResolverWorker consumes movement events and resolves open low-stock
// alerts once a restock brings an item back to its threshold
type AlertResolverWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
}

// NewAlertResolverWorker creates a new alert resolver worker
func NewAlertResolverWorker(consumer *broker.Consumer, engine *service.AlertEngine) *AlertResolverWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnMovementApplied(engine.HandleMovementApplied)

	return &AlertResolverWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start starts the worker
func (w *AlertResolverWorker) Start(ctx context.Context) error {
	log.Println("Starting alert resolver worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *AlertResolverWorker) Stop() error {
	log.Println("Stopping alert resolver worker...")
	return w.consumer.Close()
}
