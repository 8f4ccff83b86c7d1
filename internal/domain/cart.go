package domain

import "github.com/shopspring/decimal"

// LineItem is one product/quantity pair in the cart. Name, UnitPrice and
// ImageURL are copied from the product when it is first added.
type LineItem struct {
	ProductID ProductID       `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	ImageURL  string          `json:"imageUrl,omitempty"`
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// NewLineItem snapshots a product into a line item with quantity 1.
func NewLineItem(p Product) LineItem {
	return LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Quantity:  1,
		ImageURL:  p.ImageURL,
	}
}

// Total sums UnitPrice*Quantity over items.
func Total(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}
