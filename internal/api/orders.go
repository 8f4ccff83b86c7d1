package api

import (
	"context"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
)

// CreateOrder posts an order. An empty idempotencyKey gets a fresh one.
func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest, idempotencyKey string) (*domain.Order, error) {
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}
	header := http.Header{}
	header.Set("Idempotency-Key", idempotencyKey)

	var order domain.Order
	if err := c.send(ctx, http.MethodPost, "/orders", header, req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}
