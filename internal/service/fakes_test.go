package service

import (
	"context"
	"sync"
	"time"

	"github.com/ViviZhou160916/medicine-inventory/internal/models"
)

// In-memory fakes standing in for the Postgres store, the notification
// gateway and the event publisher. The item fake mirrors the store's
// semantics: the stock check and adjustment are one atomic step under a lock.

type fakeItemStore struct {
	mu        sync.Mutex
	items     map[string]*models.Item
	movements []models.Movement
	conflicts int
	listErr   error
}

func newFakeItemStore() *fakeItemStore {
	return &fakeItemStore{items: make(map[string]*models.Item)}
}

func (f *fakeItemStore) addItem(item models.Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[item.ID] = &item
}

func (f *fakeItemStore) quantity(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id].Quantity
}

func (f *fakeItemStore) netMovements(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	net := 0
	for _, m := range f.movements {
		if m.ItemID != id {
			continue
		}
		if m.Direction == models.DirectionInbound {
			net += m.Quantity
		} else {
			net -= m.Quantity
		}
	}
	return net
}

func (f *fakeItemStore) GetItemByID(ctx context.Context, id string) (*models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok || item.DeletedAt != nil {
		return nil, models.ErrNotFound
	}
	copied := *item
	return &copied, nil
}

func (f *fakeItemStore) ApplyMovement(ctx context.Context, m *models.Movement) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conflicts > 0 {
		f.conflicts--
		return 0, models.ErrConflict
	}

	item, ok := f.items[m.ItemID]
	if !ok || item.DeletedAt != nil {
		return 0, models.ErrNotFound
	}

	delta := m.Quantity
	if m.Direction == models.DirectionOutbound {
		delta = -m.Quantity
	}
	if item.Quantity+delta < 0 {
		return 0, models.ErrInsufficientStock
	}

	item.Quantity += delta
	m.CreatedAt = time.Now()
	f.movements = append(f.movements, *m)
	return item.Quantity, nil
}

func (f *fakeItemStore) ListLowStock(ctx context.Context) ([]models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Item
	for _, item := range f.items {
		if item.DeletedAt == nil && item.Quantity < item.MinStock {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (f *fakeItemStore) ListExpiring(ctx context.Context, before time.Time) ([]models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Item
	for _, item := range f.items {
		if item.DeletedAt == nil && item.ExpiryDate != nil && !item.ExpiryDate.After(before) {
			out = append(out, *item)
		}
	}
	return out, nil
}

type fakeAlertStore struct {
	mu        sync.Mutex
	alerts    map[string]*models.Alert
	createErr error
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{alerts: make(map[string]*models.Alert)}
}

func (f *fakeAlertStore) addAlert(alert models.Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts[alert.ID] = &alert
}

func (f *fakeAlertStore) openAlerts(itemID, condition string) []models.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Alert
	for _, a := range f.alerts {
		if a.ItemID == itemID && a.Condition == condition && a.Status != models.AlertStatusResolved {
			out = append(out, *a)
		}
	}
	return out
}

func (f *fakeAlertStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

func (f *fakeAlertStore) CreateAlertIfAbsent(ctx context.Context, alert *models.Alert) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return false, f.createErr
	}
	for _, existing := range f.alerts {
		if existing.ItemID == alert.ItemID && existing.Condition == alert.Condition &&
			existing.Status != models.AlertStatusResolved {
			return false, nil
		}
	}
	alert.Status = models.AlertStatusPending
	alert.CreatedAt = time.Now()
	stored := *alert
	f.alerts[alert.ID] = &stored
	return true, nil
}

func (f *fakeAlertStore) GetOpenAlert(ctx context.Context, itemID, condition string) (*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.alerts {
		if a.ItemID == itemID && a.Condition == condition && a.Status != models.AlertStatusResolved {
			copied := *a
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeAlertStore) ListOpenAlerts(ctx context.Context) ([]models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Alert
	for _, a := range f.alerts {
		if a.Status != models.AlertStatusResolved {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAlertStore) MarkAlertsNotified(ctx context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		if a, ok := f.alerts[id]; ok {
			a.Status = models.AlertStatusNotified
			a.Notified = true
		}
	}
	return nil
}

func (f *fakeAlertStore) ResolveAlert(ctx context.Context, itemID, condition string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	resolved := false
	for _, a := range f.alerts {
		if a.ItemID == itemID && a.Condition == condition && a.Status != models.AlertStatusResolved {
			a.Status = models.AlertStatusResolved
			resolved = true
		}
	}
	return resolved, nil
}

func (f *fakeAlertStore) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for id, a := range f.alerts {
		if a.Status == models.AlertStatusResolved && a.CreatedAt.Before(cutoff) {
			delete(f.alerts, id)
			count++
		}
	}
	return count, nil
}

type fakeAuditLog struct {
	mu      sync.Mutex
	entries []string
	err     error
}

func (f *fakeAuditLog) RecordOperation(ctx context.Context, operatorID, action, subjectID string, detail map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, action)
	return nil
}

func (f *fakeAuditLog) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

type fakeGateway struct {
	mu     sync.Mutex
	titles []string
	bodies []string
	err    error
}

func (f *fakeGateway) Send(ctx context.Context, title, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.titles = append(f.titles, title)
	f.bodies = append(f.bodies, body)
	return nil
}

func (f *fakeGateway) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.titles)
}

func (f *fakeGateway) lastBody() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.bodies) == 0 {
		return ""
	}
	return f.bodies[len(f.bodies)-1]
}

type fakePublisher struct {
	mu        sync.Mutex
	movements int
	raised    int
	resolved  int
	sweeps    int
}

func (f *fakePublisher) PublishMovementApplied(ctx context.Context, event *models.MovementAppliedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.movements++
	return nil
}

func (f *fakePublisher) PublishAlertRaised(ctx context.Context, event *models.AlertRaisedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raised++
	return nil
}

func (f *fakePublisher) PublishAlertResolved(ctx context.Context, event *models.AlertResolvedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved++
	return nil
}

func (f *fakePublisher) PublishSweepCompleted(ctx context.Context, event *models.SweepCompletedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	return nil
}
