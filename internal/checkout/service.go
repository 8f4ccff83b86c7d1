// Package checkout turns the cart into an order for the logged in user.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotAuthenticated = errors.New("checkout requires a logged in user")
	ErrEmptyCart        = errors.New("cart is empty")
)

type OrderCreator interface {
	CreateOrder(ctx context.Context, req domain.OrderRequest, idempotencyKey string) (*domain.Order, error)
}

// Summary is what the review screen shows before the order is placed.
type Summary struct {
	User  *domain.Identity  `json:"user"`
	Items []domain.LineItem `json:"items"`
	Total decimal.Decimal   `json:"total"`
	Units int               `json:"units"`
}

type Service struct {
	cart    *cart.Store
	session *session.Store
	orders  OrderCreator
}

func NewService(cartStore *cart.Store, sessionStore *session.Store, orders OrderCreator) *Service {
	return &Service{
		cart:    cartStore,
		session: sessionStore,
		orders:  orders,
	}
}

func (s *Service) Summary() Summary {
	items := s.cart.LineItems()
	units := 0
	for _, item := range items {
		units += item.Quantity
	}
	return Summary{
		User:  s.session.CurrentUser(),
		Items: items,
		Total: domain.Total(items),
		Units: units,
	}
}

// PlaceOrder submits the current cart and clears it once the order exists.
// Any failure leaves the cart as it was.
func (s *Service) PlaceOrder(ctx context.Context) (*domain.Order, error) {
	if s.session.CurrentUser() == nil {
		return nil, ErrNotAuthenticated
	}
	items := s.cart.LineItems()
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	order, err := s.orders.CreateOrder(ctx, domain.NewOrderRequest(items), uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := s.cart.Clear(ctx); err != nil {
		log.Printf("cart clear after order %s error: %v \n", order.ID, err)
	}
	return order, nil
}
