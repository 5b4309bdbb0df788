package testutil

import (
	"context"

	"github.com/agrostock/agrostock-backend/pkg/tenant"
)

// Test tenant identifiers shared across suites
const (
	TestTenantID     = "11111111-1111-1111-1111-111111111111"
	TestTenantSlug   = "green-valley-farms"
	TestTenantSchema = "public"
)

// TenantContext returns a context carrying the default test tenant
func TenantContext() context.Context {
	return tenant.WithTenantContext(context.Background(), TestTenantID, TestTenantSlug, TestTenantSchema)
}

// TenantContextFor returns a context carrying a specific tenant ID
func TenantContextFor(tenantID string) context.Context {
	return tenant.WithTenantID(context.Background(), tenantID)
}
