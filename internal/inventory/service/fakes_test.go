package service_test

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agrostock/agrostock-backend/internal/inventory/repository"
	"github.com/agrostock/agrostock-backend/pkg/errors"
	"github.com/agrostock/agrostock-backend/pkg/logger"
	"github.com/agrostock/agrostock-backend/pkg/tenant"
)

var testLog = logger.New("service-test", "test")

const testTenant = "11111111-1111-1111-1111-111111111111"

func testCtx() context.Context {
	return tenant.WithTenantID(context.Background(), testTenant)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func strPtr(s string) *string { return &s }

func float64Ptr(f float64) *float64 { return &f }

func intPtr(i int) *int { return &i }

func timePtr(t time.Time) *time.Time { return &t }

// fakeTx satisfies the transactor interface without a database
type fakeTx struct{}

func (fakeTx) WithTenantRLS(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeItems is an in-memory item store
type fakeItems struct {
	byID map[string]*repository.Item
}

func newFakeItems(items ...*repository.Item) *fakeItems {
	f := &fakeItems{byID: make(map[string]*repository.Item)}
	for _, item := range items {
		f.byID[item.ID] = item
	}
	return f
}

func (f *fakeItems) Create(ctx context.Context, item *repository.Item) error {
	if item.ID == "" {
		item.ID = fmt.Sprintf("item-%d", len(f.byID)+1)
	}
	f.byID[item.ID] = item
	return nil
}

func (f *fakeItems) GetByID(ctx context.Context, id string) (*repository.Item, error) {
	item, ok := f.byID[id]
	if !ok {
		return nil, errors.UnknownItem(id)
	}
	return item, nil
}

func (f *fakeItems) GetAllActive(ctx context.Context) ([]*repository.Item, error) {
	out := make([]*repository.Item, 0, len(f.byID))
	for _, item := range f.byID {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeItems) List(ctx context.Context, page, perPage int, filter repository.ItemFilter) ([]*repository.Item, int64, error) {
	all, _ := f.GetAllActive(ctx)
	var out []*repository.Item
	for _, item := range all {
		if filter.LowStock && item.Quantity.GreaterThan(item.ReorderLevel) {
			continue
		}
		if filter.ExpiringIn > 0 {
			if item.ExpiryDate == nil || item.ExpiryDate.After(time.Now().AddDate(0, 0, filter.ExpiringIn)) {
				continue
			}
		}
		out = append(out, item)
	}
	if len(out) > perPage {
		out = out[:perPage]
	}
	return out, int64(len(out)), nil
}

func (f *fakeItems) Update(ctx context.Context, item *repository.Item) error {
	if _, ok := f.byID[item.ID]; !ok {
		return errors.UnknownItem(item.ID)
	}
	f.byID[item.ID] = item
	return nil
}

func (f *fakeItems) UpdateQuantity(ctx context.Context, id string, quantity decimal.Decimal, lastRestocked *time.Time) error {
	item, ok := f.byID[id]
	if !ok {
		return errors.UnknownItem(id)
	}
	item.Quantity = quantity
	if lastRestocked != nil {
		item.LastRestocked = lastRestocked
	}
	return nil
}

func (f *fakeItems) SoftDelete(ctx context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return errors.UnknownItem(id)
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeItems) CountByCategory(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, item := range f.byID {
		counts[item.Category]++
	}
	return counts, nil
}

// fakeMovements is an in-memory append-only ledger
type fakeMovements struct {
	ledger []*repository.Movement
	seq    int64
}

func (f *fakeMovements) Append(ctx context.Context, m *repository.Movement) error {
	f.seq++
	m.Seq = f.seq
	m.ID = fmt.Sprintf("mv-%d", f.seq)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	f.ledger = append(f.ledger, m)
	return nil
}

func (f *fakeMovements) GetByReference(ctx context.Context, itemID, reference string) (*repository.Movement, error) {
	for _, m := range f.ledger {
		if m.ItemID == itemID && m.Reference != nil && *m.Reference == reference {
			return m, nil
		}
	}
	return nil, nil
}

func (f *fakeMovements) ListByItem(ctx context.Context, itemID string, filter repository.MovementFilter) ([]*repository.Movement, error) {
	var out []*repository.Movement
	for _, m := range f.ledger {
		if m.ItemID != itemID {
			continue
		}
		if filter.MovementType != "" && m.MovementType != filter.MovementType {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeMovements) List(ctx context.Context, page, perPage int, filter repository.MovementFilter) ([]*repository.Movement, int64, error) {
	out := make([]*repository.Movement, len(f.ledger))
	copy(out, f.ledger)
	return out, int64(len(out)), nil
}

func (f *fakeMovements) LastMovementAt(ctx context.Context, itemID string) (*time.Time, error) {
	var last *time.Time
	for _, m := range f.ledger {
		if m.ItemID == itemID {
			t := m.CreatedAt
			last = &t
		}
	}
	return last, nil
}

func (f *fakeMovements) OutboundSince(ctx context.Context, itemID string, since time.Time) ([]*repository.Movement, error) {
	var out []*repository.Movement
	for _, m := range f.ledger {
		if m.ItemID == itemID && m.Direction < 0 && !m.CreatedAt.Before(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

// fakeAlerts is an in-memory alert store
type fakeAlerts struct {
	alerts []*repository.Alert
	seq    int
}

func (f *fakeAlerts) Create(ctx context.Context, alert *repository.Alert) error {
	f.seq++
	alert.ID = fmt.Sprintf("alert-%d", f.seq)
	if alert.Status == "" {
		alert.Status = repository.AlertStatusActive
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	f.alerts = append(f.alerts, alert)
	return nil
}

func (f *fakeAlerts) GetByID(ctx context.Context, id string) (*repository.Alert, error) {
	for _, a := range f.alerts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, errors.UnknownAlert(id)
}

func (f *fakeAlerts) GetOpenByItemAndType(ctx context.Context, itemID, alertType string) (*repository.Alert, error) {
	for _, a := range f.alerts {
		if a.ItemID == itemID && a.AlertType == alertType && a.Open() {
			return a, nil
		}
	}
	return nil, nil
}

func (f *fakeAlerts) List(ctx context.Context, page, perPage int, filter repository.AlertFilter) ([]*repository.Alert, int64, error) {
	var out []*repository.Alert
	for _, a := range f.alerts {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.AlertType != "" && a.AlertType != filter.AlertType {
			continue
		}
		if filter.ItemID != "" && a.ItemID != filter.ItemID {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return repository.PriorityRank(out[i].Priority) < repository.PriorityRank(out[j].Priority)
	})
	return out, int64(len(out)), nil
}

func (f *fakeAlerts) UpdateCondition(ctx context.Context, alert *repository.Alert) error {
	return nil // alerts are stored by pointer; the scanner mutated it already
}

func (f *fakeAlerts) SetStatus(ctx context.Context, alert *repository.Alert) error {
	return nil
}

func (f *fakeAlerts) ResolveAllForItem(ctx context.Context, itemID, actor string, types ...string) (int64, error) {
	match := func(t string) bool {
		if len(types) == 0 {
			return true
		}
		for _, want := range types {
			if t == want {
				return true
			}
		}
		return false
	}

	var resolved int64
	now := time.Now().UTC()
	for _, a := range f.alerts {
		if a.ItemID == itemID && a.Open() && match(a.AlertType) {
			a.Status = repository.AlertStatusResolved
			a.ResolvedBy = &actor
			a.ResolvedAt = &now
			resolved++
		}
	}
	return resolved, nil
}

func (f *fakeAlerts) ReactivateExpiredSnoozes(ctx context.Context) (int64, error) {
	var count int64
	now := time.Now()
	for _, a := range f.alerts {
		if a.Status == repository.AlertStatusSnoozed && a.SnoozeUntil != nil && !a.SnoozeUntil.After(now) {
			a.Status = repository.AlertStatusActive
			a.SnoozeUntil = nil
			count++
		}
	}
	return count, nil
}

func (f *fakeAlerts) DeleteOldResolved(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	kept := f.alerts[:0]
	for _, a := range f.alerts {
		if a.Status == repository.AlertStatusResolved && a.ResolvedAt != nil && a.ResolvedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, a)
	}
	f.alerts = kept
	return nil
}

func (f *fakeAlerts) CountCreatedToday(ctx context.Context) (int64, error) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	var count int64
	for _, a := range f.alerts {
		if !a.CreatedAt.Before(today) {
			count++
		}
	}
	return count, nil
}

func (f *fakeAlerts) CountByStatus(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, a := range f.alerts {
		counts[a.Status]++
	}
	return counts, nil
}

func (f *fakeAlerts) CountOpenByPriority(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, a := range f.alerts {
		if a.Open() {
			counts[a.Priority]++
		}
	}
	return counts, nil
}

func (f *fakeAlerts) open() []*repository.Alert {
	var out []*repository.Alert
	for _, a := range f.alerts {
		if a.Open() {
			out = append(out, a)
		}
	}
	return out
}

// fakeSettings serves one tenant's alert settings
type fakeSettings struct {
	settings *repository.AlertSettings
	upserts  int
}

func (f *fakeSettings) Get(ctx context.Context) (*repository.AlertSettings, error) {
	if f.settings == nil {
		return repository.DefaultAlertSettings(testTenant), nil
	}
	return f.settings, nil
}

func (f *fakeSettings) Upsert(ctx context.Context, settings *repository.AlertSettings) error {
	f.settings = settings
	f.upserts++
	return nil
}

// fakeReadings serves the latest storage reading per item
type fakeReadings struct {
	latest map[string]*repository.StorageReading
	stored []*repository.StorageReading
}

func (f *fakeReadings) LatestByItem(ctx context.Context, itemID string) (*repository.StorageReading, error) {
	return f.latest[itemID], nil
}

func (f *fakeReadings) Record(ctx context.Context, reading *repository.StorageReading) error {
	if f.latest == nil {
		f.latest = make(map[string]*repository.StorageReading)
	}
	f.latest[reading.ItemID] = reading
	f.stored = append(f.stored, reading)
	return nil
}

// publishedEvent is one fake publisher call
type publishedEvent struct {
	kind  string
	actor string
	alert *repository.Alert
}

// fakePublisher records every publish call; it satisfies all the service
// publisher interfaces
type fakePublisher struct {
	events []publishedEvent
}

func (f *fakePublisher) PublishMovementRecorded(ctx context.Context, m *repository.Movement) {
	f.events = append(f.events, publishedEvent{kind: "movement.recorded"})
}

func (f *fakePublisher) PublishItemReconciled(ctx context.Context, itemID, previous, replayed string) {
	f.events = append(f.events, publishedEvent{kind: "item.reconciled"})
}

func (f *fakePublisher) PublishAlertEvent(ctx context.Context, eventType string, alert *repository.Alert, actor string) {
	f.events = append(f.events, publishedEvent{kind: eventType, actor: actor, alert: alert})
}

func (f *fakePublisher) PublishSettingsChanged(ctx context.Context) {
	f.events = append(f.events, publishedEvent{kind: "settings.changed"})
}

func (f *fakePublisher) PublishTransferCompleted(ctx context.Context, t *repository.Transfer) {
	f.events = append(f.events, publishedEvent{kind: "transfer.completed"})
}

func (f *fakePublisher) kinds() []string {
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.kind
	}
	return out
}

// fakeTrigger records scan trigger requests
type fakeTrigger struct {
	tenants []string
}

func (f *fakeTrigger) TriggerTenant(tenantID string) {
	f.tenants = append(f.tenants, tenantID)
}

// observerCall records one movement observer notification
type observerCall struct {
	itemID       string
	movementType string
}

type fakeObserver struct {
	calls []observerCall
}

func (f *fakeObserver) OnMovementApplied(ctx context.Context, item *repository.Item, m *repository.Movement) {
	f.calls = append(f.calls, observerCall{itemID: item.ID, movementType: m.MovementType})
}
