package models

import (
	"time"
)

// Item represents a stocked medicine
type Item struct {
	ID           string     `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Barcode      string     `db:"barcode" json:"barcode,omitempty"`
	Category     string     `db:"category" json:"category,omitempty"`
	Manufacturer string     `db:"manufacturer" json:"manufacturer,omitempty"`
	Quantity     int        `db:"quantity" json:"quantity"`
	MinStock     int        `db:"min_stock" json:"min_stock"`
	ExpiryDate   *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	DeletedAt    *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Movement is an immutable record of a quantity change.
// Corrections are made with a compensating movement, never by editing.
type Movement struct {
	ID          string    `db:"id" json:"id"`
	ItemID      string    `db:"item_id" json:"item_id"`
	Direction   string    `db:"direction" json:"direction"`
	Quantity    int       `db:"quantity" json:"quantity"`
	BatchNumber string    `db:"batch_number" json:"batch_number,omitempty"`
	Supplier    string    `db:"supplier" json:"supplier,omitempty"`
	Reason      string    `db:"reason" json:"reason,omitempty"`
	Notes       string    `db:"notes" json:"notes,omitempty"`
	OperatorID  string    `db:"operator_id" json:"operator_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Alert records an observed threshold breach on an item
type Alert struct {
	ID        string    `db:"id" json:"id"`
	ItemID    string    `db:"item_id" json:"item_id"`
	Condition string    `db:"condition" json:"condition"`
	Status    string    `db:"status" json:"status"`
	Notified  bool      `db:"notified" json:"notified"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// OperationLog is a best-effort audit trail entry
type OperationLog struct {
	ID         int64     `db:"id" json:"id"`
	OperatorID string    `db:"operator_id" json:"operator_id"`
	Action     string    `db:"action" json:"action"`
	SubjectID  string    `db:"subject_id" json:"subject_id"`
	Detail     string    `db:"detail" json:"detail,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Movement directions
const (
	DirectionInbound  = "IN"
	DirectionOutbound = "OUT"
)

// Alert conditions
const (
	ConditionLowStock = "LOW_STOCK"
	ConditionExpiring = "EXPIRING"
	ConditionExpired  = "EXPIRED"
)

// Alert statuses. An alert is "open" while PENDING or NOTIFIED; at most one
// open alert may exist per (item, condition).
const (
	AlertStatusPending  = "PENDING"
	AlertStatusNotified = "NOTIFIED"
	AlertStatusResolved = "RESOLVED"
)

// Audit actions
const (
	ActionInbound    = "INBOUND"
	ActionOutbound   = "OUTBOUND"
	ActionCreateItem = "CREATE_ITEM"
	ActionUpdateItem = "UPDATE_ITEM"
	ActionDeleteItem = "DELETE_ITEM"
)

// DashboardStats aggregates inventory health for the dashboard endpoint
type DashboardStats struct {
	TotalItems      int           `db:"total_items" json:"total_items"`
	LowStockCount   int           `db:"low_stock_count" json:"low_stock_count"`
	ExpiredCount    int           `db:"expired_count" json:"expired_count"`
	ExpiringCount   int           `db:"expiring_count" json:"expiring_count"`
	TotalUnits      int           `db:"total_units" json:"total_units"`
	ExpiryBuckets   ExpiryBuckets `db:"-" json:"expiry_buckets"`
	InboundLast7d   int           `db:"-" json:"inbound_last_7d"`
	OutboundLast7d  int           `db:"-" json:"outbound_last_7d"`
	MovementsLast7d int           `db:"-" json:"movements_last_7d"`
	GeneratedAt     time.Time     `db:"-" json:"generated_at"`
}

// ExpiryBuckets counts items by how close they are to expiry
type ExpiryBuckets struct {
	Expired  int `db:"expired" json:"expired"`
	Critical int `db:"critical" json:"critical"`
	Warning  int `db:"warning" json:"warning"`
	Safe     int `db:"safe" json:"safe"`
}
