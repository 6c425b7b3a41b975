package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ViviZhou160916/medicine-inventory/internal/models"
	"github.com/ViviZhou160916/medicine-inventory/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxApplyRetries bounds how often a lost update race is retried before the
// failure surfaces as ErrDependencyUnavailable.
const maxApplyRetries = 3

// LedgerService applies inbound/outbound movements so that an item's quantity
// always equals the net of its movement history
type LedgerService struct {
	items  ItemRepository
	audit  AuditLog
	events EventPublisher
	mirror StockMirror
	logger *zap.Logger
}

// NewLedgerService creates a new stock ledger. Events and mirror may be nil;
// both are best-effort side channels.
func NewLedgerService(items ItemRepository, audit AuditLog, events EventPublisher, mirror StockMirror) *LedgerService {
	return &LedgerService{
		items:  items,
		audit:  audit,
		events: events,
		mirror: mirror,
		logger: util.GetLogger(),
	}
}

// ApplyRequest describes one movement to apply
type ApplyRequest struct {
	ItemID      string `json:"item_id"`
	Direction   string `json:"direction"`
	Quantity    int    `json:"quantity"`
	BatchNumber string `json:"batch_number,omitempty"`
	Supplier    string `json:"supplier,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Notes       string `json:"notes,omitempty"`
	OperatorID  string `json:"operator_id"`
}

// Apply validates and applies a movement. The stock check and quantity update
// commit atomically per item; movements on different items proceed
// independently. Audit, stock mirror and event publication happen after the
// commit and never roll it back.
func (s *LedgerService) Apply(ctx context.Context, req *ApplyRequest) (*models.Movement, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.Apply")
	defer span.End()

	start := time.Now()
	defer func() {
		util.MovementApplyLatency.Observe(time.Since(start).Seconds())
	}()

	if req.Quantity <= 0 {
		util.MovementsFailedTotal.WithLabelValues("invalid_quantity").Inc()
		return nil, fmt.Errorf("quantity %d: %w", req.Quantity, models.ErrInvalidQuantity)
	}
	if req.Direction != models.DirectionInbound && req.Direction != models.DirectionOutbound {
		util.MovementsFailedTotal.WithLabelValues("invalid_direction").Inc()
		return nil, fmt.Errorf("direction %q: %w", req.Direction, models.ErrInvalidQuantity)
	}

	movement := &models.Movement{
		ID:          uuid.New().String(),
		ItemID:      req.ItemID,
		Direction:   req.Direction,
		Quantity:    req.Quantity,
		BatchNumber: req.BatchNumber,
		Supplier:    req.Supplier,
		Reason:      req.Reason,
		Notes:       req.Notes,
		OperatorID:  req.OperatorID,
	}

	quantityAfter, err := s.applyWithRetry(ctx, movement)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			util.MovementsFailedTotal.WithLabelValues("not_found").Inc()
		case errors.Is(err, models.ErrInsufficientStock):
			util.MovementsFailedTotal.WithLabelValues("insufficient_stock").Inc()
		case errors.Is(err, models.ErrDependencyUnavailable):
			util.MovementsFailedTotal.WithLabelValues("conflict").Inc()
		default:
			util.MovementsFailedTotal.WithLabelValues("db_error").Inc()
		}
		return nil, err
	}

	util.MovementsAppliedTotal.WithLabelValues(movement.Direction).Inc()
	s.logger.Info("Movement applied",
		zap.String("movement_id", movement.ID),
		zap.String("item_id", movement.ItemID),
		zap.String("direction", movement.Direction),
		zap.Int("quantity", movement.Quantity),
		zap.Int("quantity_after", quantityAfter))

	s.recordAudit(ctx, movement)
	s.adjustMirror(ctx, movement)
	s.publishApplied(ctx, movement, quantityAfter)

	return movement, nil
}

// applyWithRetry retries lost update races a bounded number of times
func (s *LedgerService) applyWithRetry(ctx context.Context, movement *models.Movement) (int, error) {
	var lastErr error
	for attempt := 0; attempt < maxApplyRetries; attempt++ {
		quantityAfter, err := s.items.ApplyMovement(ctx, movement)
		if err == nil {
			return quantityAfter, nil
		}
		if !errors.Is(err, models.ErrConflict) {
			return 0, err
		}

		lastErr = err
		util.MovementApplyRetries.Inc()
		s.logger.Warn("Movement lost update race, retrying",
			zap.String("item_id", movement.ItemID),
			zap.Int("attempt", attempt+1))
	}
	return 0, fmt.Errorf("apply retries exhausted: %v: %w", lastErr, models.ErrDependencyUnavailable)
}

func (s *LedgerService) recordAudit(ctx context.Context, movement *models.Movement) {
	action := models.ActionInbound
	if movement.Direction == models.DirectionOutbound {
		action = models.ActionOutbound
	}

	err := s.audit.RecordOperation(ctx, movement.OperatorID, action, movement.ItemID, map[string]interface{}{
		"movement_id": movement.ID,
		"quantity":    movement.Quantity,
	})
	if err != nil {
		s.logger.Error("Failed to record audit entry",
			zap.String("movement_id", movement.ID),
			zap.Error(err))
	}
}

func (s *LedgerService) adjustMirror(ctx context.Context, movement *models.Movement) {
	if s.mirror == nil {
		return
	}

	delta := movement.Quantity
	if movement.Direction == models.DirectionOutbound {
		delta = -movement.Quantity
	}
	if err := s.mirror.AdjustStock(ctx, movement.ItemID, delta); err != nil {
		s.logger.Warn("Failed to adjust stock mirror",
			zap.String("item_id", movement.ItemID),
			zap.Error(err))
	}
}

func (s *LedgerService) publishApplied(ctx context.Context, movement *models.Movement, quantityAfter int) {
	if s.events == nil {
		return
	}

	event := &models.MovementAppliedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeMovementApplied,
			Timestamp: time.Now(),
		},
		MovementID:    movement.ID,
		ItemID:        movement.ItemID,
		Direction:     movement.Direction,
		Quantity:      movement.Quantity,
		QuantityAfter: quantityAfter,
		OperatorID:    movement.OperatorID,
	}

	if err := s.events.PublishMovementApplied(ctx, event); err != nil {
		s.logger.Error("Failed to publish MovementApplied event", zap.Error(err))
	}
}
