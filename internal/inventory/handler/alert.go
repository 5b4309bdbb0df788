package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agrostock/agrostock-backend/internal/inventory/repository"
	"github.com/agrostock/agrostock-backend/internal/inventory/service"
	"github.com/agrostock/agrostock-backend/pkg/errors"
	"github.com/agrostock/agrostock-backend/pkg/httputil"
	"github.com/agrostock/agrostock-backend/pkg/logger"
)

// AlertHandler handles alert lifecycle endpoints
type AlertHandler struct {
	service *service.AlertService
	logger  *logger.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(svc *service.AlertService, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		service: svc,
		logger:  log,
	}
}

// List lists alerts, most pressing first
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := pagination(r)

	filter := repository.AlertFilter{
		Status:    r.URL.Query().Get("status"),
		AlertType: r.URL.Query().Get("alert_type"),
		Priority:  r.URL.Query().Get("priority"),
		ItemID:    r.URL.Query().Get("item_id"),
	}

	alerts, total, err := h.service.List(r.Context(), page, perPage, filter)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, alerts, meta(page, perPage, total))
}

// Get gets an alert by ID
func (h *AlertHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	alert, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alert)
}

// Acknowledge marks an active alert as seen
func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	alert, err := h.service.Acknowledge(r.Context(), id, httputil.GetActorID(r.Context()))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alert)
}

// snoozeRequest carries the snooze deadline
type snoozeRequest struct {
	Until time.Time `json:"until"`
}

// Snooze silences an active alert until the given time
func (h *AlertHandler) Snooze(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req snoozeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if req.Until.IsZero() {
		httputil.ErrorLocalized(w, r, errors.BadRequest("until is required"))
		return
	}

	alert, err := h.service.Snooze(r.Context(), id, req.Until, httputil.GetActorID(r.Context()))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alert)
}

// resolveRequest carries optional operator notes
type resolveRequest struct {
	Notes string `json:"notes"`
}

// Resolve closes an alert
func (h *AlertHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req resolveRequest
	if r.ContentLength > 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.ErrorLocalized(w, r, err)
			return
		}
	}

	alert, err := h.service.Resolve(r.Context(), id, httputil.GetActorID(r.Context()), req.Notes)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alert)
}
