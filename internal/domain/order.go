package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderItem struct {
	ProductID ProductID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

type OrderRequest struct {
	Items []OrderItem `json:"items"`
}

type Order struct {
	ID        string          `json:"id"`
	Status    string          `json:"status,omitempty"`
	Total     decimal.Decimal `json:"total"`
	Items     []OrderItem     `json:"items,omitempty"`
	CreatedAt time.Time       `json:"createdAt,omitempty"`
}

// NewOrderRequest maps cart line items to the order creation payload.
func NewOrderRequest(items []LineItem) OrderRequest {
	req := OrderRequest{Items: make([]OrderItem, len(items))}
	for i, item := range items {
		req.Items[i] = OrderItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return req
}
