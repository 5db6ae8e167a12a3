package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/Luffyzera/onde-comprar/internal/domain"
	"github.com/Luffyzera/onde-comprar/internal/service"
	"github.com/go-chi/chi/v5"
)

// MerchantCatalogAPI is the merchant dashboard's slice of the catalog service.
type MerchantCatalogAPI interface {
	ListStoreProducts(ctx context.Context, storeID string) ([]*domain.Product, error)
	CreateProduct(ctx context.Context, storeID string, in service.ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, storeID, id string, in service.ProductInput) (*domain.Product, error)
	DeactivateProduct(ctx context.Context, storeID, id string) error
	ImportCSV(ctx context.Context, storeID string, r io.Reader) (int, error)
	UpdateDeliverySettings(ctx context.Context, storeID string, settings service.DeliverySettings) (*domain.Store, error)
}

// MerchantOrderAPI is the merchant dashboard's slice of the checkout service.
type MerchantOrderAPI interface {
	ListStoreOrders(ctx context.Context, storeID string) ([]*domain.Order, error)
	UpdateStatus(ctx context.Context, storeID, orderID string, next domain.OrderStatus) (*domain.Order, error)
}

type MerchantHandler struct {
	catalog MerchantCatalogAPI
	orders  MerchantOrderAPI
	timeout time.Duration
}

func NewMerchantHandler(catalog MerchantCatalogAPI, orders MerchantOrderAPI, timeout time.Duration) *MerchantHandler {
	return &MerchantHandler{
		catalog: catalog,
		orders:  orders,
		timeout: timeout,
	}
}

type UpdateOrderStatusRequestDTO struct {
	Status string `json:"status"`
}

type ImportResultDTO struct {
	Imported int `json:"imported"`
}

func (h *MerchantHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	storeID := getStoreIDFromContext(r.Context())
	if storeID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing merchant authentication")
		return
	}

	products, err := h.catalog.ListStoreProducts(ctx, storeID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, products)
}

func (h *MerchantHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	storeID := getStoreIDFromContext(r.Context())
	if storeID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing merchant authentication")
		return
	}

	var in service.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	product, err := h.catalog.CreateProduct(ctx, storeID, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, product)
}

func (h *MerchantHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	storeID := getStoreIDFromContext(r.Context())
	if storeID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing merchant authentication")
		return
	}

	var in service.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	product, err := h.catalog.UpdateProduct(ctx, storeID, chi.URLParam(r, "product_id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, product)
}

func (h *MerchantHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	storeID := getStoreIDFromContext(r.Context())
	if storeID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing merchant authentication")
		return
	}

	if err := h.catalog.DeactivateProduct(ctx, storeID, chi.URLParam(r, "product_id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *MerchantHandler) ImportProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	storeID := getStoreIDFromContext(r.Context())
	if storeID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing merchant authentication")
		return
	}

	count, err := h.catalog.ImportCSV(ctx, storeID, r.Body)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, ImportResultDTO{Imported: count})
}

func (h *MerchantHandler) UpdateDeliverySettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	storeID := getStoreIDFromContext(r.Context())
	if storeID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing merchant authentication")
		return
	}

	var settings service.DeliverySettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	store, err := h.catalog.UpdateDeliverySettings(ctx, storeID, settings)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, store)
}

func (h *MerchantHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	storeID := getStoreIDFromContext(r.Context())
	if storeID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing merchant authentication")
		return
	}

	orders, err := h.orders.ListStoreOrders(ctx, storeID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}

	respondJSON(w, http.StatusOK, orders)
}

func (h *MerchantHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	storeID := getStoreIDFromContext(r.Context())
	if storeID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing merchant authentication")
		return
	}

	var req UpdateOrderStatusRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Status == "" {
		respondError(w, http.StatusBadRequest, "invalid_status", "status is required")
		return
	}

	order, err := h.orders.UpdateStatus(ctx, storeID, chi.URLParam(r, "order_id"), domain.OrderStatus(req.Status))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}
