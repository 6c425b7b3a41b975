package models

import "time"

// Event types
const (
	EventTypeMovementApplied = "MOVEMENT_APPLIED"
	EventTypeAlertRaised     = "ALERT_RAISED"
	EventTypeAlertResolved   = "ALERT_RESOLVED"
	EventTypeSweepCompleted  = "SWEEP_COMPLETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// MovementAppliedEvent published after a movement commits
type MovementAppliedEvent struct {
	BaseEvent
	MovementID    string `json:"movement_id"`
	ItemID        string `json:"item_id"`
	Direction     string `json:"direction"`
	Quantity      int    `json:"quantity"`
	QuantityAfter int    `json:"quantity_after"`
	OperatorID    string `json:"operator_id"`
}

// AlertRaisedEvent published when a sweep materializes a new alert
type AlertRaisedEvent struct {
	BaseEvent
	AlertID   string `json:"alert_id"`
	ItemID    string `json:"item_id"`
	Condition string `json:"condition"`
}

// AlertResolvedEvent published when an open alert is resolved
type AlertResolvedEvent struct {
	BaseEvent
	ItemID    string `json:"item_id"`
	Condition string `json:"condition"`
}

// SweepCompletedEvent published at the end of every sweep run
type SweepCompletedEvent struct {
	BaseEvent
	LowStockCount  int  `json:"low_stock_count"`
	ExpiringCount  int  `json:"expiring_count"`
	ExpiredCount   int  `json:"expired_count"`
	AlertsCreated  int  `json:"alerts_created"`
	AlertsNotified int  `json:"alerts_notified"`
	NotifySent     bool `json:"notify_sent"`
}
