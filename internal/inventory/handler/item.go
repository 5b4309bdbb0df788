package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/agrostock/agrostock-backend/internal/inventory/repository"
	"github.com/agrostock/agrostock-backend/internal/inventory/service"
	"github.com/agrostock/agrostock-backend/pkg/httputil"
	"github.com/agrostock/agrostock-backend/pkg/logger"
)

// ItemHandler handles item registry endpoints
type ItemHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(svc *service.InventoryService, log *logger.Logger) *ItemHandler {
	return &ItemHandler{
		service: svc,
		logger:  log,
	}
}

// createItemRequest wraps the item payload with its opening quantity
type createItemRequest struct {
	repository.Item
	InitialQuantity decimal.Decimal `json:"initial_quantity"`
}

// List lists inventory items
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := pagination(r)

	expiringIn, _ := strconv.Atoi(r.URL.Query().Get("expiring_in"))
	filter := repository.ItemFilter{
		Category:   r.URL.Query().Get("category"),
		Search:     r.URL.Query().Get("search"),
		LowStock:   r.URL.Query().Get("low_stock") == "true",
		ExpiringIn: expiringIn,
	}

	items, total, err := h.service.ListItems(r.Context(), page, perPage, filter)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, items, meta(page, perPage, total))
}

// Get gets an item by ID
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// Create creates a new item
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	item, err := h.service.CreateItem(r.Context(), &req.Item, req.InitialQuantity, httputil.GetActorID(r.Context()))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, item)
}

// Update updates an item's catalog attributes
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var item repository.Item
	if err := httputil.DecodeJSON(r, &item); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	item.ID = id
	updated, err := h.service.UpdateItem(r.Context(), &item)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, updated)
}

// Delete soft deletes an item and resolves its open alerts
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteItem(r.Context(), id, httputil.GetActorID(r.Context())); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.NoContent(w)
}

// recordReadingRequest carries one storage condition observation
type recordReadingRequest struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
}

// RecordReading stores a temperature/humidity observation for an item
func (h *ItemHandler) RecordReading(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req recordReadingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	reading, err := h.service.RecordReading(r.Context(), id, req.Temperature, req.Humidity, httputil.GetActorID(r.Context()))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, reading)
}

// pagination reads page/per_page query params with the usual bounds
func pagination(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	return page, perPage
}

func meta(page, perPage int, total int64) *httputil.Meta {
	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}
	return &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}
}
