package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ViviZhou160916/medicine-inventory/config"
	"github.com/ViviZhou160916/medicine-inventory/internal/models"
	"github.com/ViviZhou160916/medicine-inventory/internal/notify"
	"github.com/ViviZhou160916/medicine-inventory/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AlertEngine scans items for threshold breaches, materializes at most one
// open alert per (item, condition) and hands a formatted summary to the
// notification gateway
type AlertEngine struct {
	items   ItemRepository
	alerts  AlertRepository
	gateway notify.Gateway
	events  EventPublisher
	cfg     config.AlertConfig
	logger  *zap.Logger
}

// NewAlertEngine creates a new alert engine
func NewAlertEngine(items ItemRepository, alerts AlertRepository, gateway notify.Gateway, events EventPublisher, cfg config.AlertConfig) *AlertEngine {
	return &AlertEngine{
		items:   items,
		alerts:  alerts,
		gateway: gateway,
		events:  events,
		cfg:     cfg,
		logger:  util.GetLogger(),
	}
}

// SweepReport summarizes one sweep run
type SweepReport struct {
	LowStockCount       int           `json:"low_stock_count"`
	ExpiringCount       int           `json:"expiring_count"`
	ExpiredCount        int           `json:"expired_count"`
	AlertsCreated       int           `json:"alerts_created"`
	AlertsNotified      int           `json:"alerts_notified"`
	NotificationSent    bool          `json:"notification_sent"`
	NotificationSkipped bool          `json:"notification_skipped"`
	Duration            time.Duration `json:"duration"`
}

type candidate struct {
	item      models.Item
	condition string
}

// Sweep runs one scan-and-alert pass. It is idempotent: re-running with no
// state change creates no new alert rows. Delivery is at-least-once; alerts
// stay PENDING until a summary including them is delivered.
func (e *AlertEngine) Sweep(ctx context.Context, now time.Time) (*SweepReport, error) {
	ctx, span := util.StartSpan(ctx, "AlertEngine.Sweep")
	defer span.End()

	start := time.Now()
	report := &SweepReport{}
	defer func() {
		report.Duration = time.Since(start)
		util.SweepDuration.Observe(report.Duration.Seconds())
	}()

	lowStock, err := e.items.ListLowStock(ctx)
	if err != nil {
		util.SweepRunsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to list low stock items: %w", err)
	}

	warningCutoff := now.AddDate(0, 0, e.cfg.ExpiryWarningDays)
	expiringItems, err := e.items.ListExpiring(ctx, warningCutoff)
	if err != nil {
		util.SweepRunsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to list expiring items: %w", err)
	}

	criticalCutoff := now.AddDate(0, 0, e.cfg.ExpiryCriticalDays)

	var candidates []candidate
	var expiryEntries []notify.ExpiryEntry
	var lowEntries []notify.LowStockEntry

	for _, item := range expiringItems {
		if item.ExpiryDate == nil {
			continue
		}
		expiry := *item.ExpiryDate
		band := notify.BandWarning
		cond := models.ConditionExpiring

		switch {
		case !expiry.After(now):
			band = notify.BandExpired
			cond = models.ConditionExpired
			report.ExpiredCount++
		case !expiry.After(criticalCutoff):
			band = notify.BandCritical
			report.ExpiringCount++
		default:
			report.ExpiringCount++
		}

		if cond == models.ConditionExpired {
			// The item aged out of the expiring band; close the stale alert
			// so only the expired one stays open.
			if _, err := e.alerts.ResolveAlert(ctx, item.ID, models.ConditionExpiring); err != nil {
				e.logger.Error("Failed to resolve stale expiring alert",
					zap.String("item_id", item.ID), zap.Error(err))
			}
		}

		candidates = append(candidates, candidate{item: item, condition: cond})
		expiryEntries = append(expiryEntries, notify.ExpiryEntry{
			Name:       item.Name,
			Quantity:   item.Quantity,
			ExpiryDate: expiry,
			DaysLeft:   daysUntil(now, expiry),
			Band:       band,
		})
	}

	for _, item := range lowStock {
		report.LowStockCount++
		candidates = append(candidates, candidate{item: item, condition: models.ConditionLowStock})
		lowEntries = append(lowEntries, notify.LowStockEntry{
			Name:     item.Name,
			Quantity: item.Quantity,
			MinStock: item.MinStock,
		})
	}

	pendingIDs, err := e.materializeAlerts(ctx, candidates, report)
	if err != nil {
		util.SweepRunsTotal.WithLabelValues("failed").Inc()
		return report, err
	}

	if len(candidates) == 0 {
		e.logger.Info("Sweep found no breaching items")
		e.publishSweepCompleted(ctx, report)
		util.SweepRunsTotal.WithLabelValues("success").Inc()
		return report, nil
	}

	body := notify.BuildSummary(expiryEntries, lowEntries)
	err = e.gateway.Send(ctx, notify.SummaryTitle, body)
	switch {
	case err == nil:
		report.NotificationSent = true
		if err := e.alerts.MarkAlertsNotified(ctx, pendingIDs); err != nil {
			// Alerts stay PENDING and the next sweep resends; duplicate
			// deliveries are acceptable, duplicate rows are not.
			e.logger.Error("Failed to mark alerts notified", zap.Error(err))
		} else {
			report.AlertsNotified = len(pendingIDs)
			util.AlertsNotifiedTotal.Add(float64(len(pendingIDs)))
		}
	case errors.Is(err, notify.ErrNotConfigured):
		report.NotificationSkipped = true
	default:
		e.logger.Warn("Notification delivery failed, alerts stay pending", zap.Error(err))
	}

	e.publishSweepCompleted(ctx, report)
	util.SweepRunsTotal.WithLabelValues("success").Inc()

	e.logger.Info("Sweep completed",
		zap.Int("low_stock", report.LowStockCount),
		zap.Int("expiring", report.ExpiringCount),
		zap.Int("expired", report.ExpiredCount),
		zap.Int("alerts_created", report.AlertsCreated),
		zap.Int("alerts_notified", report.AlertsNotified))
	return report, nil
}

// materializeAlerts creates missing alert rows and returns the IDs of all
// PENDING alerts covered by this sweep's summary
func (e *AlertEngine) materializeAlerts(ctx context.Context, candidates []candidate, report *SweepReport) ([]string, error) {
	var pendingIDs []string

	for _, c := range candidates {
		alert := &models.Alert{
			ID:        uuid.New().String(),
			ItemID:    c.item.ID,
			Condition: c.condition,
		}

		created, err := e.alerts.CreateAlertIfAbsent(ctx, alert)
		if err != nil {
			// Each create is its own atomic unit; aborting here just
			// truncates the run, safe to resume next tick.
			return nil, fmt.Errorf("failed to create alert for item %s: %w", c.item.ID, err)
		}

		if created {
			report.AlertsCreated++
			util.AlertsCreatedTotal.WithLabelValues(c.condition).Inc()
			pendingIDs = append(pendingIDs, alert.ID)
			e.publishAlertRaised(ctx, alert)
			continue
		}

		existing, err := e.alerts.GetOpenAlert(ctx, c.item.ID, c.condition)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to look up open alert for item %s: %w", c.item.ID, err)
		}
		if existing.Status == models.AlertStatusPending {
			pendingIDs = append(pendingIDs, existing.ID)
		}
	}

	return pendingIDs, nil
}

// Cleanup purges resolved alerts older than the retention window
func (e *AlertEngine) Cleanup(ctx context.Context, now time.Time) (int, error) {
	ctx, span := util.StartSpan(ctx, "AlertEngine.Cleanup")
	defer span.End()

	cutoff := now.AddDate(0, 0, -e.cfg.RetentionDays)
	count, err := e.alerts.DeleteResolvedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge resolved alerts: %w", err)
	}

	util.AlertsPurgedTotal.Add(float64(count))
	e.logger.Info("Old resolved alerts purged", zap.Int("count", count))
	return count, nil
}

// HandleMovementApplied resolves an open low-stock alert once an inbound
// movement brings the item back to its reorder threshold. Idempotent under
// redelivered events.
func (e *AlertEngine) HandleMovementApplied(ctx context.Context, event *models.MovementAppliedEvent) error {
	if event.Direction != models.DirectionInbound {
		return nil
	}

	item, err := e.items.GetItemByID(ctx, event.ItemID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load item %s: %w", event.ItemID, err)
	}

	if item.Quantity < item.MinStock {
		return nil
	}

	resolved, err := e.alerts.ResolveAlert(ctx, item.ID, models.ConditionLowStock)
	if err != nil {
		return fmt.Errorf("failed to resolve low stock alert for item %s: %w", item.ID, err)
	}
	if !resolved {
		return nil
	}

	util.AlertsResolvedTotal.Inc()
	e.logger.Info("Low stock alert resolved after restock",
		zap.String("item_id", item.ID),
		zap.Int("quantity", item.Quantity))

	if e.events != nil {
		resolvedEvent := &models.AlertResolvedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeAlertResolved,
				Timestamp: time.Now(),
			},
			ItemID:    item.ID,
			Condition: models.ConditionLowStock,
		}
		if err := e.events.PublishAlertResolved(ctx, resolvedEvent); err != nil {
			e.logger.Error("Failed to publish AlertResolved event", zap.Error(err))
		}
	}
	return nil
}

func (e *AlertEngine) publishAlertRaised(ctx context.Context, alert *models.Alert) {
	if e.events == nil {
		return
	}

	event := &models.AlertRaisedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeAlertRaised,
			Timestamp: time.Now(),
		},
		AlertID:   alert.ID,
		ItemID:    alert.ItemID,
		Condition: alert.Condition,
	}
	if err := e.events.PublishAlertRaised(ctx, event); err != nil {
		e.logger.Error("Failed to publish AlertRaised event", zap.Error(err))
	}
}

func (e *AlertEngine) publishSweepCompleted(ctx context.Context, report *SweepReport) {
	if e.events == nil {
		return
	}

	event := &models.SweepCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSweepCompleted,
			Timestamp: time.Now(),
		},
		LowStockCount:  report.LowStockCount,
		ExpiringCount:  report.ExpiringCount,
		ExpiredCount:   report.ExpiredCount,
		AlertsCreated:  report.AlertsCreated,
		AlertsNotified: report.AlertsNotified,
		NotifySent:     report.NotificationSent,
	}
	if err := e.events.PublishSweepCompleted(ctx, event); err != nil {
		e.logger.Error("Failed to publish SweepCompleted event", zap.Error(err))
	}
}

func daysUntil(now, expiry time.Time) int {
	return int(math.Ceil(expiry.Sub(now).Hours() / 24))
}
