package service

import (
	"context"
	"time"

	"github.com/ViviZhou160916/medicine-inventory/internal/models"
)

// Repository ports consumed by the services. *store.Store satisfies all of
// them; tests substitute in-memory fakes.

// ItemRepository reads items and applies atomic stock adjustments
type ItemRepository interface {
	GetItemByID(ctx context.Context, id string) (*models.Item, error)
	// ApplyMovement adjusts the item quantity and appends the movement as one
	// atomic unit; returns the quantity after the adjustment.
	ApplyMovement(ctx context.Context, m *models.Movement) (int, error)
	ListLowStock(ctx context.Context) ([]models.Item, error)
	ListExpiring(ctx context.Context, before time.Time) ([]models.Item, error)
}

// ItemCatalog covers item metadata CRUD used by the transport layer
type ItemCatalog interface {
	GetItemByID(ctx context.Context, id string) (*models.Item, error)
	ListItems(ctx context.Context, search, category string, limit, offset int) ([]models.Item, int, error)
	CreateItem(ctx context.Context, item *models.Item) error
	UpdateItem(ctx context.Context, item *models.Item) error
	SoftDeleteItem(ctx context.Context, id string) error
}

// AlertRepository persists alert rows and their lifecycle transitions
type AlertRepository interface {
	// CreateAlertIfAbsent atomically creates a pending alert unless an open
	// one exists for the same (item, condition); returns false when skipped.
	CreateAlertIfAbsent(ctx context.Context, alert *models.Alert) (bool, error)
	GetOpenAlert(ctx context.Context, itemID, condition string) (*models.Alert, error)
	ListOpenAlerts(ctx context.Context) ([]models.Alert, error)
	MarkAlertsNotified(ctx context.Context, ids []string) error
	ResolveAlert(ctx context.Context, itemID, condition string) (bool, error)
	DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// AuditLog records who did what; best-effort, failures never roll anything back
type AuditLog interface {
	RecordOperation(ctx context.Context, operatorID, action, subjectID string, detail map[string]interface{}) error
}

// EventPublisher publishes domain events to the broker
type EventPublisher interface {
	PublishMovementApplied(ctx context.Context, event *models.MovementAppliedEvent) error
	PublishAlertRaised(ctx context.Context, event *models.AlertRaisedEvent) error
	PublishAlertResolved(ctx context.Context, event *models.AlertResolvedEvent) error
	PublishSweepCompleted(ctx context.Context, event *models.SweepCompletedEvent) error
}

// StockMirror keeps the advisory cached quantity in step with the ledger
type StockMirror interface {
	AdjustStock(ctx context.Context, itemID string, delta int) error
}

// StatsRepository aggregates dashboard counters
type StatsRepository interface {
	GetDashboardStats(ctx context.Context, now time.Time) (*models.DashboardStats, error)
}

// StatsCache caches serialized dashboard stats
type StatsCache interface {
	GetCachedStats(ctx context.Context) ([]byte, error)
	SetCachedStats(ctx context.Context, payload []byte, ttl time.Duration) error
}
