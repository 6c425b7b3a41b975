package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ViviZhou160916/medicine-inventory/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetItemByID retrieves a non-deleted item by ID
func (s *Store) GetItemByID(ctx context.Context, id string) (*models.Item, error) {
	var item models.Item
	err := s.db.GetContext(ctx, &item,
		"SELECT * FROM items WHERE id = $1 AND deleted_at IS NULL", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListItems retrieves non-deleted items with optional search/category filters
func (s *Store) ListItems(ctx context.Context, search, category string, limit, offset int) ([]models.Item, int, error) {
	where := "deleted_at IS NULL"
	args := []interface{}{}

	if search != "" {
		args = append(args, "%"+search+"%")
		where += fmt.Sprintf(" AND (name ILIKE $%d OR barcode ILIKE $%d OR manufacturer ILIKE $%d)",
			len(args), len(args), len(args))
	}
	if category != "" {
		args = append(args, category)
		where += fmt.Sprintf(" AND category = $%d", len(args))
	}

	var total int
	if err := s.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM items WHERE "+where, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf("SELECT * FROM items WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		where, len(args)-1, len(args))

	var items []models.Item
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// CreateItem inserts a new item
func (s *Store) CreateItem(ctx context.Context, item *models.Item) error {
	query := `
		INSERT INTO items (id, name, barcode, category, manufacturer, quantity, min_stock, expiry_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	row := s.db.QueryRowxContext(ctx, query,
		item.ID, item.Name, item.Barcode, item.Category, item.Manufacturer,
		item.Quantity, item.MinStock, item.ExpiryDate)
	return row.Scan(&item.CreatedAt, &item.UpdatedAt)
}

// UpdateItem updates item metadata. Quantity is deliberately excluded; it is
// mutated only through ApplyMovement.
func (s *Store) UpdateItem(ctx context.Context, item *models.Item) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE items
		SET name = $1, barcode = $2, category = $3, manufacturer = $4,
		    min_stock = $5, expiry_date = $6, updated_at = NOW()
		WHERE id = $7 AND deleted_at IS NULL`,
		item.Name, item.Barcode, item.Category, item.Manufacturer,
		item.MinStock, item.ExpiryDate, item.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("item %s: %w", item.ID, models.ErrNotFound)
	}
	return nil
}

// SoftDeleteItem marks an item as deleted
func (s *Store) SoftDeleteItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE items SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("item %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// ListLowStock retrieves non-deleted items whose quantity is below their
// reorder threshold
func (s *Store) ListLowStock(ctx context.Context) ([]models.Item, error) {
	var items []models.Item
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM items WHERE deleted_at IS NULL AND quantity < min_stock ORDER BY quantity ASC")
	return items, err
}

// ListExpiring retrieves non-deleted items with an expiry date at or before
// the given cutoff
func (s *Store) ListExpiring(ctx context.Context, before time.Time) ([]models.Item, error) {
	var items []models.Item
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM items WHERE deleted_at IS NULL AND expiry_date IS NOT NULL AND expiry_date <= $1 ORDER BY expiry_date ASC",
		before)
	return items, err
}

// mapDBError translates retryable Postgres failures into the domain conflict
// error so the ledger can retry them.
func mapDBError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// serialization_failure, deadlock_detected
		if pqErr.Code == "40001" || pqErr.Code == "40P01" {
			return fmt.Errorf("%v: %w", pqErr.Code, models.ErrConflict)
		}
	}
	return err
}
