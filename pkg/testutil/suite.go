package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/agrostock/agrostock-backend/pkg/database"
	"github.com/agrostock/agrostock-backend/pkg/logger"
	"github.com/agrostock/agrostock-backend/pkg/tenant"
)

var (
	// Shared test container across all integration tests in a binary
	globalContainer *PostgresContainer
	globalDB        *sqlx.DB
	containerOnce   sync.Once
	containerErr    error
)

// IntegrationSuite provides a base for integration tests against a real
// PostgreSQL instance.
//
// Usage:
//
//	var suite *testutil.IntegrationSuite
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//	    suite, _ = testutil.NewIntegrationSuite(ctx)
//	    defer testutil.TerminateContainer(ctx)
//	    os.Exit(m.Run())
//	}
type IntegrationSuite struct {
	Container *PostgresContainer
	RawDB     *sqlx.DB
	DB        *database.DB
	Tenants   *TenantManager
	Logger    *logger.Logger
}

// NewIntegrationSuite starts (or reuses) the shared container, creates the
// public tenants registry, and returns a suite wired to it.
func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	container, db, err := getOrCreateContainer(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.New("test", "test")
	wrappedDB, err := database.NewWithDSN(container.DSN, "public", log)
	if err != nil {
		return nil, err
	}

	if err := container.CreatePublicSchema(ctx, db); err != nil {
		return nil, err
	}

	return &IntegrationSuite{
		Container: container,
		RawDB:     db,
		DB:        wrappedDB,
		Tenants:   NewTenantManager(db),
		Logger:    log,
	}, nil
}

func getOrCreateContainer(ctx context.Context) (*PostgresContainer, *sqlx.DB, error) {
	containerOnce.Do(func() {
		globalContainer, containerErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
		if containerErr != nil {
			return
		}
		globalDB, containerErr = globalContainer.Connect(ctx)
	})

	return globalContainer, globalDB, containerErr
}

// TerminateContainer stops the shared container. Call from TestMain after
// m.Run().
func TerminateContainer(ctx context.Context) {
	if globalContainer != nil {
		_ = globalContainer.Terminate(ctx)
	}
}

// SetupInventoryTenant creates an isolated tenant schema with the inventory
// tables and registers cleanup on the test.
func (s *IntegrationSuite) SetupInventoryTenant(t *testing.T, ctx context.Context, name string) *TestTenant {
	t.Helper()

	tn, err := s.Tenants.CreateTenantWithMigrations(ctx, name, InventoryMigrations())
	if err != nil {
		t.Fatalf("failed to create tenant: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Tenants.DropTenant(ctx, tn); err != nil {
			t.Logf("warning: failed to drop tenant %s: %v", tn.SchemaName, err)
		}
	})

	return tn
}

// TenantContext returns a context scoped to the given test tenant
func (s *IntegrationSuite) TenantContext(tn *TestTenant) context.Context {
	return tenant.WithTenantContext(context.Background(), tn.ID, tn.Slug, tn.SchemaName)
}

// TenantDB returns a database handle whose search_path targets the tenant's
// schema, closed when the test ends. Repositories built on it resolve tables
// inside that schema the same way a deployed service instance does.
func (s *IntegrationSuite) TenantDB(t *testing.T, tn *TestTenant) *database.DB {
	t.Helper()

	db, err := database.NewWithDSN(s.Container.DSN, tn.SchemaName+", public", s.Logger)
	if err != nil {
		t.Fatalf("failed to connect tenant database: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// TestTenant represents a tenant created for testing
type TestTenant struct {
	ID         string
	Name       string
	Slug       string
	SchemaName string
}

// TenantManager manages test tenant schemas
type TenantManager struct {
	db *sqlx.DB
	mu sync.Mutex
}

// NewTenantManager creates a new tenant manager for tests
func NewTenantManager(db *sqlx.DB) *TenantManager {
	return &TenantManager{db: db}
}

// CreateTenant creates a new isolated tenant schema and registers it in
// public.tenants
func (tm *TenantManager) CreateTenant(ctx context.Context, name string) (*TestTenant, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	id := uuid.New().String()
	slug := strings.ToLower(strings.ReplaceAll(name, " ", "-"))
	schemaName := "tenant_" + strings.ReplaceAll(slug, "-", "_")

	if _, err := tm.db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName)); err != nil {
		return nil, fmt.Errorf("failed to create tenant schema: %w", err)
	}

	_, err := tm.db.ExecContext(ctx, `
		INSERT INTO public.tenants (id, name, slug, schema_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (slug) DO NOTHING
	`, id, name, slug, schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to register tenant: %w", err)
	}

	return &TestTenant{ID: id, Name: name, Slug: slug, SchemaName: schemaName}, nil
}

// CreateTenantWithMigrations creates a tenant and applies the given DDL
// statements inside its schema
func (tm *TenantManager) CreateTenantWithMigrations(ctx context.Context, name string, migrations []string) (*TestTenant, error) {
	t, err := tm.CreateTenant(ctx, name)
	if err != nil {
		return nil, err
	}

	for _, migration := range migrations {
		if _, err := tm.db.ExecContext(ctx, fmt.Sprintf("SET search_path TO %s, public", t.SchemaName)); err != nil {
			return nil, fmt.Errorf("failed to set search_path: %w", err)
		}
		if _, err := tm.db.ExecContext(ctx, migration); err != nil {
			return nil, fmt.Errorf("failed to apply migration: %w", err)
		}
	}

	if _, err := tm.db.ExecContext(ctx, "SET search_path TO public"); err != nil {
		return nil, fmt.Errorf("failed to reset search_path: %w", err)
	}

	return t, nil
}

// DropTenant removes a tenant schema and its registry row
func (tm *TenantManager) DropTenant(ctx context.Context, t *TestTenant) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if _, err := tm.db.ExecContext(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", t.SchemaName)); err != nil {
		return fmt.Errorf("failed to drop tenant schema: %w", err)
	}

	_, err := tm.db.ExecContext(ctx, "DELETE FROM public.tenants WHERE id = $1", t.ID)
	return err
}

// InventoryMigrations returns the tenant-schema DDL the inventory service
// expects. Kept in lockstep with the repository column lists.
func InventoryMigrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS warehouses (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL,
			name VARCHAR(255) NOT NULL,
			name_ar VARCHAR(255),
			address TEXT,
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		)`,

		`CREATE TABLE IF NOT EXISTS storage_locations (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL,
			warehouse_id UUID NOT NULL REFERENCES warehouses(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			zone VARCHAR(100),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS items (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL,
			name VARCHAR(255) NOT NULL,
			name_ar VARCHAR(255),
			description TEXT,
			category VARCHAR(50) NOT NULL,
			quantity NUMERIC(14,3) NOT NULL DEFAULT 0,
			unit VARCHAR(50) NOT NULL,
			reorder_level NUMERIC(14,3) NOT NULL DEFAULT 0,
			reorder_point NUMERIC(14,3),
			max_stock NUMERIC(14,3),
			unit_cost NUMERIC(14,4) NOT NULL DEFAULT 0,
			selling_price NUMERIC(14,4),
			batch_number VARCHAR(100),
			expiry_date TIMESTAMPTZ,
			min_temperature DOUBLE PRECISION,
			max_temperature DOUBLE PRECISION,
			min_humidity DOUBLE PRECISION,
			max_humidity DOUBLE PRECISION,
			supplier VARCHAR(255),
			lead_time_days INT,
			order_cost NUMERIC(14,4),
			holding_cost_per_unit NUMERIC(14,4),
			location_id UUID,
			notes TEXT,
			notes_ar TEXT,
			last_restocked TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		)`,

		`CREATE TABLE IF NOT EXISTS stock_movements (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL,
			item_id UUID NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			movement_type VARCHAR(50) NOT NULL,
			direction SMALLINT NOT NULL,
			quantity NUMERIC(14,3) NOT NULL,
			unit_cost NUMERIC(14,4),
			quantity_after NUMERIC(14,3) NOT NULL,
			reference VARCHAR(255),
			reference_type VARCHAR(100),
			reason TEXT,
			warehouse_id UUID,
			performed_by VARCHAR(255) NOT NULL,
			seq BIGSERIAL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS inventory_alerts (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL,
			alert_type VARCHAR(50) NOT NULL,
			item_id UUID NOT NULL,
			item_name VARCHAR(255) NOT NULL,
			priority VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			title VARCHAR(255) NOT NULL,
			message TEXT NOT NULL,
			recommended_action TEXT,
			current_value NUMERIC(14,3),
			threshold_value NUMERIC(14,3),
			expiry_date TIMESTAMPTZ,
			snooze_until TIMESTAMPTZ,
			acknowledged_by VARCHAR(255),
			acknowledged_at TIMESTAMPTZ,
			resolved_by VARCHAR(255),
			resolved_at TIMESTAMPTZ,
			resolution_notes TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS alert_settings (
			tenant_id UUID PRIMARY KEY,
			expiry_warning_days INT NOT NULL,
			expiry_critical_days INT NOT NULL,
			default_reorder_level NUMERIC(14,3) NOT NULL,
			low_stock_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			expiry_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			overstock_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			reorder_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			storage_condition_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			alert_check_interval_seconds INT NOT NULL,
			max_alerts_per_day INT NOT NULL,
			auto_resolve_on_restock BOOLEAN NOT NULL DEFAULT TRUE,
			auto_resolve_expired BOOLEAN NOT NULL DEFAULT TRUE,
			slow_moving_days INT NOT NULL,
			dead_stock_days INT NOT NULL,
			updated_by VARCHAR(255),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS storage_readings (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL,
			item_id UUID NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			temperature DOUBLE PRECISION,
			humidity DOUBLE PRECISION,
			recorded_by VARCHAR(255) NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS stock_transfers (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL,
			item_id UUID NOT NULL REFERENCES items(id),
			from_warehouse_id UUID NOT NULL,
			to_warehouse_id UUID NOT NULL,
			quantity NUMERIC(14,3) NOT NULL,
			status VARCHAR(20) NOT NULL,
			notes TEXT,
			requested_by VARCHAR(255) NOT NULL,
			approved_by VARCHAR(255),
			approved_at TIMESTAMPTZ,
			completed_by VARCHAR(255),
			completed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
}
