package handler

import (
	"net/http"

	"github.com/agrostock/agrostock-backend/internal/inventory/repository"
	"github.com/agrostock/agrostock-backend/internal/inventory/service"
	"github.com/agrostock/agrostock-backend/pkg/httputil"
	"github.com/agrostock/agrostock-backend/pkg/logger"
)

// SettingsHandler handles alert settings endpoints
type SettingsHandler struct {
	service *service.SettingsService
	logger  *logger.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(svc *service.SettingsService, log *logger.Logger) *SettingsHandler {
	return &SettingsHandler{
		service: svc,
		logger:  log,
	}
}

// Get returns the tenant's alert settings, with defaults when never saved
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Get(r.Context())
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, settings)
}

// Update validates and saves the tenant's alert settings
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var settings repository.AlertSettings
	if err := httputil.DecodeJSON(r, &settings); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	updated, err := h.service.Update(r.Context(), &settings, httputil.GetActorID(r.Context()))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, updated)
}
