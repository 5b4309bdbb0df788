package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agrostock/agrostock-backend/internal/inventory/repository"
	"github.com/agrostock/agrostock-backend/internal/inventory/service"
	"github.com/agrostock/agrostock-backend/pkg/errors"
	"github.com/agrostock/agrostock-backend/pkg/httputil"
	"github.com/agrostock/agrostock-backend/pkg/logger"
)

func errorRequired(field string) error {
	return errors.Validation(map[string]string{field: "this field is required"})
}

// WarehouseHandler handles warehouse, location and transfer endpoints
type WarehouseHandler struct {
	warehouses *repository.WarehouseRepository
	transfers  *service.TransferService
	logger     *logger.Logger
}

// NewWarehouseHandler creates a new warehouse handler
func NewWarehouseHandler(warehouses *repository.WarehouseRepository, transfers *service.TransferService, log *logger.Logger) *WarehouseHandler {
	return &WarehouseHandler{
		warehouses: warehouses,
		transfers:  transfers,
		logger:     log,
	}
}

// ListWarehouses lists the tenant's warehouses
func (h *WarehouseHandler) ListWarehouses(w http.ResponseWriter, r *http.Request) {
	warehouses, err := h.warehouses.ListWarehouses(r.Context())
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, warehouses)
}

// CreateWarehouse creates a warehouse
func (h *WarehouseHandler) CreateWarehouse(w http.ResponseWriter, r *http.Request) {
	var warehouse repository.Warehouse
	if err := httputil.DecodeJSON(r, &warehouse); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if warehouse.Name == "" {
		httputil.ErrorLocalized(w, r, errorRequired("name"))
		return
	}

	if err := h.warehouses.CreateWarehouse(r.Context(), &warehouse); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, warehouse)
}

// GetWarehouse gets a warehouse by ID
func (h *WarehouseHandler) GetWarehouse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	warehouse, err := h.warehouses.GetWarehouse(r.Context(), id)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, warehouse)
}

// ListLocations lists storage locations inside a warehouse
func (h *WarehouseHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	warehouseID := chi.URLParam(r, "id")

	locations, err := h.warehouses.ListLocations(r.Context(), warehouseID)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, locations)
}

// CreateLocation creates a storage location inside a warehouse
func (h *WarehouseHandler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	warehouseID := chi.URLParam(r, "id")

	var location repository.StorageLocation
	if err := httputil.DecodeJSON(r, &location); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if location.Name == "" {
		httputil.ErrorLocalized(w, r, errorRequired("name"))
		return
	}

	location.WarehouseID = warehouseID
	if err := h.warehouses.CreateLocation(r.Context(), &location); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, location)
}

// CreateTransfer requests a stock transfer between warehouses
func (h *WarehouseHandler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var transfer repository.Transfer
	if err := httputil.DecodeJSON(r, &transfer); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	if transfer.RequestedBy == "" {
		transfer.RequestedBy = httputil.GetActorID(r.Context())
	}

	created, err := h.transfers.Create(r.Context(), &transfer)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, created)
}

// ListTransfers lists transfers, optionally by status
func (h *WarehouseHandler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	page, perPage := pagination(r)
	status := r.URL.Query().Get("status")

	transfers, total, err := h.transfers.List(r.Context(), status, page, perPage)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, transfers, meta(page, perPage, total))
}

// GetTransfer gets a transfer by ID
func (h *WarehouseHandler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	transfer, err := h.transfers.Get(r.Context(), id)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, transfer)
}

// ApproveTransfer approves a pending transfer
func (h *WarehouseHandler) ApproveTransfer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	transfer, err := h.transfers.Approve(r.Context(), id, httputil.GetActorID(r.Context()))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, transfer)
}

// DispatchTransfer marks an approved transfer in transit
func (h *WarehouseHandler) DispatchTransfer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	transfer, err := h.transfers.Dispatch(r.Context(), id)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, transfer)
}

// CompleteTransfer finishes a transfer and records the paired movement
func (h *WarehouseHandler) CompleteTransfer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	transfer, err := h.transfers.Complete(r.Context(), id, httputil.GetActorID(r.Context()))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, transfer)
}

// CancelTransfer cancels a transfer that has not completed
func (h *WarehouseHandler) CancelTransfer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	transfer, err := h.transfers.Cancel(r.Context(), id)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, transfer)
}
