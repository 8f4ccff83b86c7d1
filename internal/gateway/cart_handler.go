package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/storefront"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type CartHandler struct {
	app     *storefront.App
	timeout time.Duration
}

func NewCartHandler(app *storefront.App, timeout time.Duration) *CartHandler {
	return &CartHandler{
		app:     app,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID domain.ProductID `json:"productId"`
}

// UpdateQuantityRequestDTO accepts the quantity as a JSON number or string,
// the way a form field would send it.
type UpdateQuantityRequestDTO struct {
	Quantity json.RawMessage `json:"quantity"`
}

type CartResponseDTO struct {
	Items          []domain.LineItem `json:"items"`
	Total          decimal.Decimal   `json:"total"`
	FormattedTotal string            `json:"formattedTotal"`
	Units          int               `json:"units"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.view())
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productId is required")
		return
	}

	if err := h.app.AddToCart(ctx, req.ProductID); err != nil {
		log.Printf("add to cart failed request_id=%s: %v", getRequestID(r.Context()), err)
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, h.view())
}

// UpdateQuantity ignores quantities that do not parse as a whole number and
// removes the line for zero or less.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	id := domain.ProductID(chi.URLParam(r, "id"))
	if err := h.app.Cart.SetQuantityText(r.Context(), id, quantityText(req.Quantity)); err != nil {
		h.storageFailed(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.view())
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id := domain.ProductID(chi.URLParam(r, "id"))
	if err := h.app.Cart.Remove(r.Context(), id); err != nil {
		h.storageFailed(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.view())
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Cart.Clear(r.Context()); err != nil {
		h.storageFailed(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.view())
}

func (h *CartHandler) storageFailed(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf("cart persist failed request_id=%s: %v", getRequestID(r.Context()), err)
	respondError(w, http.StatusInternalServerError, "storage_error", "cart could not be saved")
}

func (h *CartHandler) view() CartResponseDTO {
	items := h.app.Cart.LineItems()
	if items == nil {
		items = []domain.LineItem{}
	}
	total := domain.Total(items)
	units := 0
	for _, item := range items {
		units += item.Quantity
	}
	return CartResponseDTO{
		Items:          items,
		Total:          total,
		FormattedTotal: h.app.FormatPrice(total),
		Units:          units,
	}
}

func quantityText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		s, err := strconv.Unquote(string(raw))
		if err != nil {
			return ""
		}
		return s
	}
	return string(raw)
}
