package httputil_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrostock/agrostock-backend/pkg/httputil"
	"github.com/agrostock/agrostock-backend/pkg/tenant"
)

func TestTenantMiddleware(t *testing.T) {
	var gotTenantID string
	handler := httputil.TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := tenant.TenantID(r.Context())
		require.NoError(t, err)
		gotTenantID = id
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("missing headers rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/items", nil))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("non-uuid tenant id rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
		req.Header.Set("X-Tenant-ID", "tenant_x'; DROP TABLE items; --")
		req.Header.Set("X-Tenant-Schema", "tenant_x")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("valid tenant context passes through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
		req.Header.Set("X-Tenant-ID", "6b1e6f6a-58d6-4f3c-9f3a-2f8f6f0a1c2d")
		req.Header.Set("X-Tenant-Slug", "green-valley-farms")
		req.Header.Set("X-Tenant-Schema", "tenant_green_valley_farms")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "6b1e6f6a-58d6-4f3c-9f3a-2f8f6f0a1c2d", gotTenantID)
	})

	t.Run("health endpoint exempt", func(t *testing.T) {
		rec := httptest.NewRecorder()
		httputil.TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
