package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/agrostock/agrostock-backend/internal/inventory/analytics"
	"github.com/agrostock/agrostock-backend/internal/inventory/service"
	"github.com/agrostock/agrostock-backend/pkg/httputil"
	"github.com/agrostock/agrostock-backend/pkg/logger"
)

// AnalyticsHandler handles forecast, valuation, classification and reorder
// endpoints
type AnalyticsHandler struct {
	service *service.AnalyticsService
	logger  *logger.Logger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(svc *service.AnalyticsService, log *logger.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: svc,
		logger:  log,
	}
}

// Forecast predicts an item's daily demand
func (h *AnalyticsHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	horizon, _ := strconv.Atoi(r.URL.Query().Get("horizon_days"))
	if horizon == 0 {
		horizon = 30
	}

	method := r.URL.Query().Get("method")
	if method == "" {
		method = analytics.MethodMovingAverage
	}

	window, _ := strconv.Atoi(r.URL.Query().Get("window"))
	alpha, _ := strconv.ParseFloat(r.URL.Query().Get("alpha"), 64)
	periodDays, _ := strconv.Atoi(r.URL.Query().Get("period_days"))
	params := analytics.ForecastParams{Window: window, Alpha: alpha, PeriodDays: periodDays}

	series, err := h.service.Forecast(r.Context(), itemID, horizon, method, params)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, series)
}

// Valuation values one item by ledger replay
func (h *AnalyticsHandler) Valuation(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	method := valuationMethod(r)

	valuation, err := h.service.Valuation(r.Context(), itemID, method)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, valuation)
}

// TenantValuation values the whole inventory
func (h *AnalyticsHandler) TenantValuation(w http.ResponseWriter, r *http.Request) {
	method := valuationMethod(r)

	valuation, err := h.service.TenantValuation(r.Context(), method)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, valuation)
}

// ABC classifies items by annualized consumption value
func (h *AnalyticsHandler) ABC(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ABC(r.Context())
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, entries)
}

// Turnover computes an item's turnover ratio over a trailing period
func (h *AnalyticsHandler) Turnover(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	periodDays, _ := strconv.Atoi(r.URL.Query().Get("period_days"))
	if periodDays == 0 {
		periodDays = 365
	}

	result, err := h.service.Turnover(r.Context(), itemID, periodDays)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// StockAges lists slow-moving and dead items
func (h *AnalyticsHandler) StockAges(w http.ResponseWriter, r *http.Request) {
	ages, err := h.service.StockAges(r.Context())
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, ages)
}

// Reorder recommends a reorder point and order quantity for an item
func (h *AnalyticsHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	serviceLevel, _ := strconv.ParseFloat(r.URL.Query().Get("service_level"), 64)

	recommendation, err := h.service.Reorder(r.Context(), itemID, serviceLevel)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, recommendation)
}

// Dashboard returns the tenant overview snapshot
func (h *AnalyticsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	topN, _ := strconv.Atoi(r.URL.Query().Get("top"))

	dashboard, err := h.service.Dashboard(r.Context(), topN)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, dashboard)
}

func valuationMethod(r *http.Request) string {
	method := r.URL.Query().Get("method")
	if method == "" {
		return analytics.ValuationWeightedAverage
	}
	return method
}
