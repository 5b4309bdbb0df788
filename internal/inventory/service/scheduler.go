package service

import (
	"context"
	"sync"
	"time"

	"github.com/agrostock/agrostock-backend/pkg/config"
	"github.com/agrostock/agrostock-backend/pkg/database"
	"github.com/agrostock/agrostock-backend/pkg/logger"
	"github.com/agrostock/agrostock-backend/pkg/tenant"
)

// tenantDirectory lists the tenants eligible for scanning
type tenantDirectory interface {
	ActiveTenantIDs(ctx context.Context) ([]string, error)
}

// alertPruner deletes resolved alerts past the retention window
type alertPruner interface {
	DeleteOldResolved(ctx context.Context, olderThan time.Duration) error
}

// TenantDirectory reads active tenant IDs from public.tenants, which
// carries no RLS
type TenantDirectory struct {
	db *database.DB
}

// NewTenantDirectory creates a tenant directory backed by the registry table
func NewTenantDirectory(db *database.DB) *TenantDirectory {
	return &TenantDirectory{db: db}
}

// ActiveTenantIDs returns the IDs of all active tenants
func (d *TenantDirectory) ActiveTenantIDs(ctx context.Context) ([]string, error) {
	var tenantIDs []string
	query := `SELECT id FROM public.tenants WHERE is_active = TRUE`
	if err := d.db.DB.SelectContext(ctx, &tenantIDs, query); err != nil {
		return nil, err
	}
	return tenantIDs, nil
}

// AlertScheduler runs alert scans periodically across all tenants. The tick
// is the process-wide pace; each tenant is scanned only when its own
// alert_check_interval_seconds has elapsed since its last scan. Besides the
// tick it accepts per-tenant triggers so a settings update is reflected
// without waiting for the next interval. Each cycle is bounded by a hard
// timeout, and each scan is followed by a retention sweep over resolved
// alerts.
type AlertScheduler struct {
	scanner  *AlertScanner
	tenants  tenantDirectory
	settings settingsStore
	alerts   alertPruner
	cfg      config.ScannerConfig
	trigger  chan string
	logger   *logger.Logger
	cancel   context.CancelFunc

	mu       sync.Mutex
	lastScan map[string]time.Time
}

// NewAlertScheduler creates a new alert scheduler
func NewAlertScheduler(scanner *AlertScanner, tenants tenantDirectory, settings settingsStore, alerts alertPruner, cfg config.ScannerConfig, log *logger.Logger) *AlertScheduler {
	if cfg.ResolvedRetention <= 0 {
		cfg.ResolvedRetention = 90 * 24 * time.Hour
	}
	return &AlertScheduler{
		scanner:  scanner,
		tenants:  tenants,
		settings: settings,
		alerts:   alerts,
		cfg:      cfg,
		trigger:  make(chan string, 16),
		lastScan: make(map[string]time.Time),
		logger:   log,
	}
}

// Start starts the scheduler in a background goroutine. An initial scan
// cycle runs immediately.
func (s *AlertScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		s.logger.Info().Dur("tick", s.cfg.Tick).Msg("alert scheduler started")

		s.RunCycle(ctx)

		ticker := time.NewTicker(s.cfg.Tick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("alert scheduler stopped")
				return
			case <-ticker.C:
				s.RunCycle(ctx)
			case tenantID := <-s.trigger:
				s.scanTenant(ctx, tenantID)
			}
		}
	}()
}

// Stop stops the scheduler goroutine
func (s *AlertScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// TriggerTenant requests an out-of-band scan for one tenant, typically
// after its alert settings changed. The scan runs regardless of the
// tenant's check interval. Never blocks; a full trigger queue means a scan
// is already imminent.
func (s *AlertScheduler) TriggerTenant(tenantID string) {
	select {
	case s.trigger <- tenantID:
	default:
		s.logger.Warn().Str("tenant_id", tenantID).Msg("scan trigger queue full, dropping request")
	}
}

// RunCycle scans every active tenant whose check interval has elapsed,
// within the cycle timeout
func (s *AlertScheduler) RunCycle(ctx context.Context) {
	start := time.Now()

	cycleCtx, cancel := context.WithTimeout(ctx, s.cfg.CycleTimeout)
	defer cancel()

	tenantIDs, err := s.tenants.ActiveTenantIDs(cycleCtx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to query active tenants")
		return
	}

	var scanned int
	for _, tenantID := range tenantIDs {
		if cycleCtx.Err() != nil {
			s.logger.Warn().
				Dur("timeout", s.cfg.CycleTimeout).
				Msg("scan cycle hit its timeout, remaining tenants deferred to next tick")
			return
		}
		if !s.due(cycleCtx, tenantID) {
			continue
		}
		s.scanTenant(cycleCtx, tenantID)
		scanned++
	}

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Int("tenant_count", len(tenantIDs)).
		Int("scanned", scanned).
		Msg("alert scan cycle completed")
}

// due reports whether the tenant's alert_check_interval_seconds has elapsed
// since its last scan. A tenant never scanned is always due; a tenant whose
// settings cannot be read falls back to the scheduler tick.
func (s *AlertScheduler) due(ctx context.Context, tenantID string) bool {
	s.mu.Lock()
	last, ok := s.lastScan[tenantID]
	s.mu.Unlock()
	if !ok {
		return true
	}

	interval := s.cfg.Tick
	settings, err := s.settings.Get(tenant.WithTenantID(ctx, tenantID))
	if err != nil {
		s.logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("failed to load alert settings, using scheduler tick")
	} else {
		interval = time.Duration(settings.AlertCheckIntervalSeconds) * time.Second
	}

	return time.Since(last) >= interval
}

func (s *AlertScheduler) scanTenant(ctx context.Context, tenantID string) {
	s.mu.Lock()
	s.lastScan[tenantID] = time.Now()
	s.mu.Unlock()

	tenantCtx := tenant.WithTenantID(ctx, tenantID)
	if err := s.scanner.Scan(tenantCtx); err != nil {
		s.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("alert scan failed for tenant")
		return
	}

	if err := s.alerts.DeleteOldResolved(tenantCtx, s.cfg.ResolvedRetention); err != nil {
		s.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("failed to prune resolved alerts")
	}
}
