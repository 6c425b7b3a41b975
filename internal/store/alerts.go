package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ViviZhou160916/medicine-inventory/internal/models"

	"github.com/jmoiron/sqlx"
)

// The alerts table carries a partial unique index on (item_id, condition)
// restricted to open statuses:
//
//	CREATE UNIQUE INDEX alerts_open_uniq ON alerts (item_id, condition)
//	WHERE status IN ('PENDING', 'NOTIFIED');
//
// CreateAlertIfAbsent leans on it so that "check then create" is a single
// atomic statement rather than a read-then-write race.

// CreateAlertIfAbsent inserts a pending alert unless an open one already
// exists for the same (item, condition). Returns false when the alert was
// already there.
func (s *Store) CreateAlertIfAbsent(ctx context.Context, alert *models.Alert) (bool, error) {
	err := s.db.GetContext(ctx, &alert.CreatedAt, `
		INSERT INTO alerts (id, item_id, condition, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
		RETURNING created_at`,
		alert.ID, alert.ItemID, alert.Condition, models.AlertStatusPending)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	alert.Status = models.AlertStatusPending
	return true, nil
}

// GetOpenAlert retrieves the open alert for an (item, condition) pair, if any
func (s *Store) GetOpenAlert(ctx context.Context, itemID, condition string) (*models.Alert, error) {
	var alert models.Alert
	err := s.db.GetContext(ctx, &alert, `
		SELECT * FROM alerts
		WHERE item_id = $1 AND condition = $2 AND status IN ($3, $4)`,
		itemID, condition, models.AlertStatusPending, models.AlertStatusNotified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("open alert for item %s: %w", itemID, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// ListOpenAlerts retrieves all alerts with an open status
func (s *Store) ListOpenAlerts(ctx context.Context) ([]models.Alert, error) {
	var alerts []models.Alert
	err := s.db.SelectContext(ctx, &alerts, `
		SELECT * FROM alerts WHERE status IN ($1, $2) ORDER BY created_at DESC`,
		models.AlertStatusPending, models.AlertStatusNotified)
	return alerts, err
}

// MarkAlertsNotified transitions the given alerts to NOTIFIED
func (s *Store) MarkAlertsNotified(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(
		"UPDATE alerts SET status = ?, notified = TRUE WHERE id IN (?)",
		models.AlertStatusNotified, ids)
	if err != nil {
		return err
	}
	query = s.db.Rebind(query)

	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

// ResolveAlert resolves the open alert for an (item, condition) pair.
// Resolving when no open alert exists is a no-op, so the operation is
// idempotent under redelivered events.
func (s *Store) ResolveAlert(ctx context.Context, itemID, condition string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET status = $1
		WHERE item_id = $2 AND condition = $3 AND status IN ($4, $5)`,
		models.AlertStatusResolved, itemID, condition,
		models.AlertStatusPending, models.AlertStatusNotified)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteResolvedBefore purges resolved alerts created before the cutoff
func (s *Store) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM alerts WHERE status = $1 AND created_at < $2",
		models.AlertStatusResolved, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// RecordOperation appends a best-effort audit trail entry
func (s *Store) RecordOperation(ctx context.Context, operatorID, action, subjectID string, detail map[string]interface{}) error {
	payload, err := json.Marshal(detail)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO operation_logs (operator_id, action, subject_id, detail)
		VALUES ($1, $2, $3, $4)`,
		operatorID, action, subjectID, payload)
	return err
}

// GetDashboardStats aggregates inventory health counters
func (s *Store) GetDashboardStats(ctx context.Context, now time.Time) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{GeneratedAt: now}

	criticalCutoff := now.AddDate(0, 0, 7)
	warningCutoff := now.AddDate(0, 0, 30)

	err := s.db.GetContext(ctx, stats, `
		SELECT
			COUNT(*) AS total_items,
			COUNT(*) FILTER (WHERE quantity < min_stock) AS low_stock_count,
			COUNT(*) FILTER (WHERE expiry_date IS NOT NULL AND expiry_date <= $1) AS expired_count,
			COUNT(*) FILTER (WHERE expiry_date IS NOT NULL AND expiry_date > $1 AND expiry_date <= $2) AS expiring_count,
			COALESCE(SUM(quantity), 0) AS total_units
		FROM items WHERE deleted_at IS NULL`,
		now, warningCutoff)
	if err != nil {
		return nil, err
	}

	err = s.db.GetContext(ctx, &stats.ExpiryBuckets, `
		SELECT
			COUNT(*) FILTER (WHERE expiry_date <= $1) AS expired,
			COUNT(*) FILTER (WHERE expiry_date > $1 AND expiry_date <= $2) AS critical,
			COUNT(*) FILTER (WHERE expiry_date > $2 AND expiry_date <= $3) AS warning,
			COUNT(*) FILTER (WHERE expiry_date > $3) AS safe
		FROM items WHERE deleted_at IS NULL AND expiry_date IS NOT NULL`,
		now, criticalCutoff, warningCutoff)
	if err != nil {
		return nil, err
	}

	sevenDaysAgo := now.AddDate(0, 0, -7)
	err = s.db.QueryRowxContext(ctx, `
		SELECT
			COALESCE(SUM(quantity) FILTER (WHERE direction = $1), 0),
			COALESCE(SUM(quantity) FILTER (WHERE direction = $2), 0),
			COUNT(*)
		FROM movements WHERE created_at >= $3`,
		models.DirectionInbound, models.DirectionOutbound, sevenDaysAgo).
		Scan(&stats.InboundLast7d, &stats.OutboundLast7d, &stats.MovementsLast7d)
	if err != nil {
		return nil, err
	}

	return stats, nil
}
