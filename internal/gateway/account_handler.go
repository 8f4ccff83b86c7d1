package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/storefront"
)

// AccountHandler serves the views behind the route guard.
type AccountHandler struct {
	app     *storefront.App
	timeout time.Duration
}

func NewAccountHandler(app *storefront.App, timeout time.Duration) *AccountHandler {
	return &AccountHandler{
		app:     app,
		timeout: timeout,
	}
}

type SummaryResponseDTO struct {
	User           *domain.Identity  `json:"user"`
	Items          []domain.LineItem `json:"items"`
	Total          string            `json:"total"`
	FormattedTotal string            `json:"formattedTotal"`
	Units          int               `json:"units"`
}

func (h *AccountHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	profile, err := h.app.API.GetProfile(ctx)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req domain.Profile
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	profile, err := h.app.API.UpdateProfile(ctx, req)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func (h *AccountHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sum := h.app.Checkout.Summary()
	items := sum.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	respondJSON(w, http.StatusOK, SummaryResponseDTO{
		User:           sum.User,
		Items:          items,
		Total:          sum.Total.StringFixed(2),
		FormattedTotal: h.app.FormatPrice(sum.Total),
		Units:          sum.Units,
	})
}

// PlaceOrder: POST /checkout
func (h *AccountHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.app.Checkout.PlaceOrder(ctx)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}
