package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrostock/agrostock-backend/internal/inventory/repository"
	"github.com/agrostock/agrostock-backend/internal/inventory/service"
	"github.com/agrostock/agrostock-backend/pkg/config"
)

// fakeTenantDirectory serves a fixed tenant list
type fakeTenantDirectory struct {
	ids []string
}

func (f *fakeTenantDirectory) ActiveTenantIDs(ctx context.Context) ([]string, error) {
	return f.ids, nil
}

// countingItems counts scans through GetAllActive
type countingItems struct {
	*fakeItems
	scans int
}

func (c *countingItems) GetAllActive(ctx context.Context) ([]*repository.Item, error) {
	c.scans++
	return c.fakeItems.GetAllActive(ctx)
}

type schedulerFixture struct {
	scheduler *service.AlertScheduler
	items     *countingItems
	alerts    *fakeAlerts
	settings  *fakeSettings
}

func newSchedulerFixture(t *testing.T, settings *fakeSettings) *schedulerFixture {
	items := &countingItems{fakeItems: newFakeItems(scanItem("item-1", "Seed Trays", "50", "10"))}
	alerts := &fakeAlerts{}
	scanner := service.NewAlertScanner(items, alerts, settings, nil, service.NewQuarantine(), &fakePublisher{}, testLog)

	cfg := config.ScannerConfig{Tick: time.Minute, CycleTimeout: time.Minute}
	directory := &fakeTenantDirectory{ids: []string{testTenant}}

	return &schedulerFixture{
		scheduler: service.NewAlertScheduler(scanner, directory, settings, alerts, cfg, testLog),
		items:     items,
		alerts:    alerts,
		settings:  settings,
	}
}

func TestRunCycle_SkipsTenantInsideCheckInterval(t *testing.T) {
	settings := repository.DefaultAlertSettings(testTenant)
	settings.AlertCheckIntervalSeconds = 3600
	fx := newSchedulerFixture(t, &fakeSettings{settings: settings})

	fx.scheduler.RunCycle(context.Background())
	require.Equal(t, 1, fx.items.scans)

	// The tenant's interval has not elapsed, so the next cycle skips it
	fx.scheduler.RunCycle(context.Background())
	assert.Equal(t, 1, fx.items.scans)
}

func TestRunCycle_PrunesOldResolvedAlerts(t *testing.T) {
	fx := newSchedulerFixture(t, &fakeSettings{})

	longAgo := time.Now().AddDate(0, -6, 0)
	actor := "manager-1"
	fx.alerts.alerts = append(fx.alerts.alerts, &repository.Alert{
		ID:         "alert-old",
		AlertType:  repository.AlertLowStock,
		ItemID:     "item-gone",
		Status:     repository.AlertStatusResolved,
		ResolvedBy: &actor,
		ResolvedAt: &longAgo,
		CreatedAt:  longAgo,
	})

	fx.scheduler.RunCycle(context.Background())

	for _, a := range fx.alerts.alerts {
		assert.NotEqual(t, "alert-old", a.ID, "resolved alert past retention should be pruned")
	}
}
