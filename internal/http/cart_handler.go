package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Luffyzera/onde-comprar/internal/domain"
	"github.com/go-chi/chi/v5"
)

// CartAPI is the slice of the cart service the handler needs.
type CartAPI interface {
	Get(ctx context.Context, customerID string) (*domain.Cart, error)
	AddItem(ctx context.Context, customerID, productID string, quantity int, mode domain.FulfillmentMode) (*domain.Cart, domain.AdditionCheck, error)
	SetQuantity(ctx context.Context, customerID, productID string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, customerID, productID string) (*domain.Cart, error)
	SetFulfillmentMode(ctx context.Context, customerID string, mode domain.FulfillmentMode) (*domain.Cart, bool, error)
	Clear(ctx context.Context, customerID string) error
}

type CartHandler struct {
	carts   CartAPI
	timeout time.Duration
}

func NewCartHandler(carts CartAPI, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID       string `json:"product_id"`
	Quantity        int    `json:"quantity"`
	FulfillmentMode string `json:"fulfillment_mode"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type SetFulfillmentModeRequestDTO struct {
	FulfillmentMode string `json:"fulfillment_mode"`
}

// CartResponseDTO wraps the cart with its computed totals and, on add, an
// advisory warning (cart_will_be_replaced).
type CartResponseDTO struct {
	Cart          *domain.Cart  `json:"cart"`
	SubtotalCents int64         `json:"subtotal_cents"`
	TotalCents    int64         `json:"total_cents"`
	TotalQuantity int           `json:"total_quantity"`
	Warning       domain.Reason `json:"warning,omitempty"`
}

func cartResponse(cart *domain.Cart, warning domain.Reason) CartResponseDTO {
	return CartResponseDTO{
		Cart:          cart,
		SubtotalCents: cart.SubtotalCents(),
		TotalCents:    cart.TotalCents(),
		TotalQuantity: cart.TotalQuantity(),
		Warning:       warning,
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	customerID := getCustomerIDFromContext(r.Context())
	if customerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	cart, err := h.carts.Get(ctx, customerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(cart, ""))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	customerID := getCustomerIDFromContext(r.Context())
	if customerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}
	mode := domain.FulfillmentMode(req.FulfillmentMode)
	if req.FulfillmentMode == "" {
		mode = domain.ModePickup
	} else if !mode.Valid() {
		respondError(w, http.StatusBadRequest, "invalid_fulfillment_mode", "fulfillment_mode must be delivery or pickup")
		return
	}

	cart, check, err := h.carts.AddItem(ctx, customerID, req.ProductID, req.Quantity, mode)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !check.Allowed {
		respondError(w, http.StatusConflict, string(check.Reason), "cannot add product to cart")
		return
	}

	respondJSON(w, http.StatusCreated, cartResponse(cart, check.Reason))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	customerID := getCustomerIDFromContext(r.Context())
	if customerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	// Zero removes the line.
	if req.Quantity < 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 0 and 99")
		return
	}

	cart, err := h.carts.SetQuantity(ctx, customerID, productID, req.Quantity)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(cart, ""))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	customerID := getCustomerIDFromContext(r.Context())
	if customerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	cart, err := h.carts.RemoveItem(ctx, customerID, productID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(cart, ""))
}

func (h *CartHandler) SetFulfillmentMode(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	customerID := getCustomerIDFromContext(r.Context())
	if customerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req SetFulfillmentModeRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	mode := domain.FulfillmentMode(req.FulfillmentMode)
	if !mode.Valid() {
		respondError(w, http.StatusBadRequest, "invalid_fulfillment_mode", "fulfillment_mode must be delivery or pickup")
		return
	}

	cart, applied, err := h.carts.SetFulfillmentMode(ctx, customerID, mode)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !applied {
		respondError(w, http.StatusConflict, string(domain.ReasonUnsupportedFulfillmentMode), "the store does not offer this fulfillment mode")
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(cart, ""))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	customerID := getCustomerIDFromContext(r.Context())
	if customerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	if err := h.carts.Clear(ctx, customerID); err != nil {
		handleServiceError(w, err)
		return
	}

	empty := domain.NewCart(customerID)
	respondJSON(w, http.StatusOK, cartResponse(&empty, ""))
}
