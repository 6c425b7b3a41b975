package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ViviZhou160916/medicine-inventory/internal/models"
	"github.com/ViviZhou160916/medicine-inventory/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ItemService handles item metadata CRUD. Quantity never changes through
// here; that is the ledger's job.
type ItemService struct {
	catalog ItemCatalog
	audit   AuditLog
	logger  *zap.Logger
}

// NewItemService creates a new item service
func NewItemService(catalog ItemCatalog, audit AuditLog) *ItemService {
	return &ItemService{
		catalog: catalog,
		audit:   audit,
		logger:  util.GetLogger(),
	}
}

// ItemRequest carries item metadata for create/update
type ItemRequest struct {
	Name         string     `json:"name" binding:"required"`
	Barcode      string     `json:"barcode,omitempty"`
	Category     string     `json:"category,omitempty"`
	Manufacturer string     `json:"manufacturer,omitempty"`
	MinStock     int        `json:"min_stock"`
	ExpiryDate   *time.Time `json:"expiry_date,omitempty"`
	OperatorID   string     `json:"operator_id"`
}

// CreateItem creates a new item with zero quantity
func (s *ItemService) CreateItem(ctx context.Context, req *ItemRequest) (*models.Item, error) {
	if req.MinStock < 0 {
		return nil, fmt.Errorf("min stock %d: %w", req.MinStock, models.ErrInvalidQuantity)
	}

	item := &models.Item{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Barcode:      req.Barcode,
		Category:     req.Category,
		Manufacturer: req.Manufacturer,
		MinStock:     req.MinStock,
		ExpiryDate:   req.ExpiryDate,
	}

	if err := s.catalog.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	s.recordAudit(ctx, req.OperatorID, models.ActionCreateItem, item.ID, item.Name)
	s.logger.Info("Item created", zap.String("item_id", item.ID), zap.String("name", item.Name))
	return item, nil
}

// UpdateItem updates item metadata
func (s *ItemService) UpdateItem(ctx context.Context, id string, req *ItemRequest) (*models.Item, error) {
	if req.MinStock < 0 {
		return nil, fmt.Errorf("min stock %d: %w", req.MinStock, models.ErrInvalidQuantity)
	}

	item, err := s.catalog.GetItemByID(ctx, id)
	if err != nil {
		return nil, err
	}

	item.Name = req.Name
	item.Barcode = req.Barcode
	item.Category = req.Category
	item.Manufacturer = req.Manufacturer
	item.MinStock = req.MinStock
	item.ExpiryDate = req.ExpiryDate

	if err := s.catalog.UpdateItem(ctx, item); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, req.OperatorID, models.ActionUpdateItem, item.ID, item.Name)
	return item, nil
}

// DeleteItem soft-deletes an item
func (s *ItemService) DeleteItem(ctx context.Context, id, operatorID string) error {
	if err := s.catalog.SoftDeleteItem(ctx, id); err != nil {
		return err
	}

	s.recordAudit(ctx, operatorID, models.ActionDeleteItem, id, "")
	return nil
}

// GetItem retrieves a single item
func (s *ItemService) GetItem(ctx context.Context, id string) (*models.Item, error) {
	return s.catalog.GetItemByID(ctx, id)
}

// ListItems retrieves items with filters and pagination
func (s *ItemService) ListItems(ctx context.Context, search, category string, limit, offset int) ([]models.Item, int, error) {
	return s.catalog.ListItems(ctx, search, category, limit, offset)
}

func (s *ItemService) recordAudit(ctx context.Context, operatorID, action, itemID, name string) {
	detail := map[string]interface{}{}
	if name != "" {
		detail["name"] = name
	}
	if err := s.audit.RecordOperation(ctx, operatorID, action, itemID, detail); err != nil {
		s.logger.Error("Failed to record audit entry",
			zap.String("item_id", itemID),
			zap.Error(err))
	}
}
