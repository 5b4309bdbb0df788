package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agrostock/agrostock-backend/internal/inventory/repository"
	"github.com/agrostock/agrostock-backend/internal/inventory/service"
	"github.com/agrostock/agrostock-backend/pkg/httputil"
	"github.com/agrostock/agrostock-backend/pkg/logger"
)

// MovementHandler handles movement ledger endpoints
type MovementHandler struct {
	service *service.MovementService
	logger  *logger.Logger
}

// NewMovementHandler creates a new movement handler
func NewMovementHandler(svc *service.MovementService, log *logger.Logger) *MovementHandler {
	return &MovementHandler{
		service: svc,
		logger:  log,
	}
}

// Create records a stock movement
func (h *MovementHandler) Create(w http.ResponseWriter, r *http.Request) {
	var spec service.MovementSpec
	if err := httputil.DecodeJSON(r, &spec); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	if spec.PerformedBy == "" {
		spec.PerformedBy = httputil.GetActorID(r.Context())
	}
	if err := httputil.Validate(spec); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	movement, err := h.service.Apply(r.Context(), spec)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, movement)
}

// List lists recent movements across items
func (h *MovementHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := pagination(r)

	filter := repository.MovementFilter{
		ItemID:       r.URL.Query().Get("item_id"),
		MovementType: r.URL.Query().Get("movement_type"),
	}

	movements, total, err := h.service.List(r.Context(), page, perPage, filter)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, movements, meta(page, perPage, total))
}

// ListByItem returns an item's ledger, oldest first
func (h *MovementHandler) ListByItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	filter := repository.MovementFilter{
		MovementType: r.URL.Query().Get("movement_type"),
	}

	movements, err := h.service.ListByItem(r.Context(), itemID, filter)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, movements)
}

// Reconcile replays an item's ledger and rewrites the cached quantity when
// they diverge
func (h *MovementHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	result, err := h.service.Reconcile(r.Context(), itemID)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}
