package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ViviZhou160916/medicine-inventory/internal/models"
)

// ApplyMovement atomically adjusts the item quantity and appends the movement
// record in a single transaction. The quantity check and the update are one
// conditional statement, so concurrent movements on the same item serialize at
// the row level and the quantity can never go negative.
//
// Returns the item quantity after the adjustment. Fails with
// models.ErrNotFound if the item is absent or soft-deleted, with
// models.ErrInsufficientStock if an outbound movement exceeds on-hand stock,
// and with models.ErrConflict on retryable transaction failures.
func (s *Store) ApplyMovement(ctx context.Context, m *models.Movement) (int, error) {
	delta := m.Quantity
	if m.Direction == models.DirectionOutbound {
		delta = -m.Quantity
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, mapDBError(err)
	}
	defer tx.Rollback()

	var quantityAfter int
	err = tx.GetContext(ctx, &quantityAfter, `
		UPDATE items
		SET quantity = quantity + $1, updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL AND quantity + $1 >= 0
		RETURNING quantity`,
		delta, m.ItemID)
	if errors.Is(err, sql.ErrNoRows) {
		// Distinguish a missing item from a failed stock check.
		var exists bool
		if err := tx.GetContext(ctx, &exists,
			"SELECT EXISTS(SELECT 1 FROM items WHERE id = $1 AND deleted_at IS NULL)", m.ItemID); err != nil {
			return 0, mapDBError(err)
		}
		if !exists {
			return 0, fmt.Errorf("item %s: %w", m.ItemID, models.ErrNotFound)
		}
		return 0, fmt.Errorf("item %s: %w", m.ItemID, models.ErrInsufficientStock)
	}
	if err != nil {
		return 0, mapDBError(err)
	}

	err = tx.GetContext(ctx, &m.CreatedAt, `
		INSERT INTO movements (id, item_id, direction, quantity, batch_number, supplier, reason, notes, operator_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		m.ID, m.ItemID, m.Direction, m.Quantity, m.BatchNumber, m.Supplier, m.Reason, m.Notes, m.OperatorID)
	if err != nil {
		return 0, mapDBError(err)
	}

	if err := tx.Commit(); err != nil {
		return 0, mapDBError(err)
	}
	return quantityAfter, nil
}

// ListMovements retrieves movements, newest first, with optional filters
func (s *Store) ListMovements(ctx context.Context, itemID, direction string, limit, offset int) ([]models.Movement, int, error) {
	where := "TRUE"
	args := []interface{}{}

	if itemID != "" {
		args = append(args, itemID)
		where += fmt.Sprintf(" AND item_id = $%d", len(args))
	}
	if direction != "" {
		args = append(args, direction)
		where += fmt.Sprintf(" AND direction = $%d", len(args))
	}

	var total int
	if err := s.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM movements WHERE "+where, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf("SELECT * FROM movements WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		where, len(args)-1, len(args))

	var movements []models.Movement
	if err := s.db.SelectContext(ctx, &movements, query, args...); err != nil {
		return nil, 0, err
	}
	return movements, total, nil
}

// SumMovements returns the net quantity over all movements for an item
func (s *Store) SumMovements(ctx context.Context, itemID string) (int, error) {
	var net int
	err := s.db.GetContext(ctx, &net, `
		SELECT COALESCE(SUM(CASE WHEN direction = $1 THEN quantity ELSE -quantity END), 0)
		FROM movements WHERE item_id = $2`,
		models.DirectionInbound, itemID)
	return net, err
}
