package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ViviZhou160916/medicine-inventory/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedgerForTest(items *fakeItemStore) (*LedgerService, *fakeAuditLog, *fakePublisher) {
	audit := &fakeAuditLog{}
	events := &fakePublisher{}
	return NewLedgerService(items, audit, events, nil), audit, events
}

func TestApplyInbound(t *testing.T) {
	items := newFakeItemStore()
	items.addItem(models.Item{ID: "item-1", Name: "Aspirin", Quantity: 5, MinStock: 10})
	ledger, audit, events := newLedgerForTest(items)

	movement, err := ledger.Apply(context.Background(), &ApplyRequest{
		ItemID:     "item-1",
		Direction:  models.DirectionInbound,
		Quantity:   7,
		OperatorID: "op-1",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, movement.ID)
	assert.Equal(t, 12, items.quantity("item-1"))
	assert.Equal(t, 1, audit.count())
	assert.Equal(t, 1, events.movements)
}

func TestApplyInvalidQuantity(t *testing.T) {
	items := newFakeItemStore()
	items.addItem(models.Item{ID: "item-1", Quantity: 5})
	ledger, _, _ := newLedgerForTest(items)

	for _, quantity := range []int{0, -3} {
		_, err := ledger.Apply(context.Background(), &ApplyRequest{
			ItemID:    "item-1",
			Direction: models.DirectionOutbound,
			Quantity:  quantity,
		})
		assert.ErrorIs(t, err, models.ErrInvalidQuantity)
	}

	assert.Equal(t, 5, items.quantity("item-1"))
	assert.Empty(t, items.movements)
}

func TestApplyUnknownDirection(t *testing.T) {
	items := newFakeItemStore()
	items.addItem(models.Item{ID: "item-1", Quantity: 5})
	ledger, _, _ := newLedgerForTest(items)

	_, err := ledger.Apply(context.Background(), &ApplyRequest{
		ItemID:    "item-1",
		Direction: "SIDEWAYS",
		Quantity:  1,
	})
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)
}

func TestApplyItemNotFound(t *testing.T) {
	items := newFakeItemStore()
	ledger, _, _ := newLedgerForTest(items)

	_, err := ledger.Apply(context.Background(), &ApplyRequest{
		ItemID:    "missing",
		Direction: models.DirectionInbound,
		Quantity:  1,
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestApplySoftDeletedItemNotFound(t *testing.T) {
	items := newFakeItemStore()
	deleted := time.Now()
	items.addItem(models.Item{ID: "item-1", Quantity: 5, DeletedAt: &deleted})
	ledger, _, _ := newLedgerForTest(items)

	_, err := ledger.Apply(context.Background(), &ApplyRequest{
		ItemID:    "item-1",
		Direction: models.DirectionInbound,
		Quantity:  1,
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

// Outbound exceeding on-hand stock fails and leaves no trace.
func TestApplyOutboundInsufficientStock(t *testing.T) {
	items := newFakeItemStore()
	items.addItem(models.Item{ID: "item-1", Quantity: 5})
	ledger, audit, _ := newLedgerForTest(items)

	_, err := ledger.Apply(context.Background(), &ApplyRequest{
		ItemID:    "item-1",
		Direction: models.DirectionOutbound,
		Quantity:  6,
	})

	assert.ErrorIs(t, err, models.ErrInsufficientStock)
	assert.Equal(t, 5, items.quantity("item-1"))
	assert.Empty(t, items.movements)
	assert.Zero(t, audit.count())
}

func TestApplyRetriesConflict(t *testing.T) {
	items := newFakeItemStore()
	items.addItem(models.Item{ID: "item-1", Quantity: 5})
	items.conflicts = 2
	ledger, _, _ := newLedgerForTest(items)

	movement, err := ledger.Apply(context.Background(), &ApplyRequest{
		ItemID:    "item-1",
		Direction: models.DirectionInbound,
		Quantity:  1,
	})

	require.NoError(t, err)
	assert.NotNil(t, movement)
	assert.Equal(t, 6, items.quantity("item-1"))
}

func TestApplyConflictRetriesExhausted(t *testing.T) {
	items := newFakeItemStore()
	items.addItem(models.Item{ID: "item-1", Quantity: 5})
	items.conflicts = 10
	ledger, _, _ := newLedgerForTest(items)

	_, err := ledger.Apply(context.Background(), &ApplyRequest{
		ItemID:    "item-1",
		Direction: models.DirectionInbound,
		Quantity:  1,
	})

	assert.ErrorIs(t, err, models.ErrDependencyUnavailable)
	assert.Equal(t, 5, items.quantity("item-1"))
}

func TestApplyAuditFailureDoesNotAbort(t *testing.T) {
	items := newFakeItemStore()
	items.addItem(models.Item{ID: "item-1", Quantity: 5})
	audit := &fakeAuditLog{err: errors.New("audit store down")}
	ledger := NewLedgerService(items, audit, &fakePublisher{}, nil)

	movement, err := ledger.Apply(context.Background(), &ApplyRequest{
		ItemID:    "item-1",
		Direction: models.DirectionInbound,
		Quantity:  2,
	})

	require.NoError(t, err)
	assert.NotNil(t, movement)
	assert.Equal(t, 7, items.quantity("item-1"))
}

// Two concurrent outbound movements racing for the last units: exactly one
// succeeds and the final quantity reflects a single decrement.
func TestConcurrentOutboundsOnSameItem(t *testing.T) {
	items := newFakeItemStore()
	items.addItem(models.Item{ID: "item-1", Quantity: 5})
	ledger, _, _ := newLedgerForTest(items)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ledger.Apply(context.Background(), &ApplyRequest{
				ItemID:    "item-1",
				Direction: models.DirectionOutbound,
				Quantity:  3,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, models.ErrInsufficientStock)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 2, items.quantity("item-1"))
}

// At most K total outbound quantity succeeds against a stock of size K, and
// the quantity always equals the net of the movement history.
func TestQuantityNeverNegativeUnderLoad(t *testing.T) {
	const initial = 10
	const callers = 25

	items := newFakeItemStore()
	items.addItem(models.Item{ID: "item-1", Quantity: initial})
	ledger, _, _ := newLedgerForTest(items)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = ledger.Apply(context.Background(), &ApplyRequest{
				ItemID:    "item-1",
				Direction: models.DirectionOutbound,
				Quantity:  1,
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, items.quantity("item-1"))
	assert.Equal(t, initial, -items.netMovements("item-1"))
}

// quantity == net of all movements after a mixed workload
func TestQuantityMatchesMovementHistory(t *testing.T) {
	items := newFakeItemStore()
	items.addItem(models.Item{ID: "item-1", Quantity: 0})
	ledger, _, _ := newLedgerForTest(items)

	steps := []struct {
		direction string
		quantity  int
	}{
		{models.DirectionInbound, 10},
		{models.DirectionOutbound, 4},
		{models.DirectionInbound, 3},
		{models.DirectionOutbound, 2},
	}
	for _, step := range steps {
		_, err := ledger.Apply(context.Background(), &ApplyRequest{
			ItemID:    "item-1",
			Direction: step.direction,
			Quantity:  step.quantity,
		})
		require.NoError(t, err)
	}

	assert.Equal(t, 7, items.quantity("item-1"))
	assert.Equal(t, items.quantity("item-1"), items.netMovements("item-1"))
}
