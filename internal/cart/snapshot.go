package cart

import (
	"encoding/json"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// The stored form is the JSON array of line items.

func encodeSnapshot(items []domain.LineItem) (string, error) {
	if items == nil {
		items = []domain.LineItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshal cart failed: %w", err)
	}
	return string(b), nil
}

// decodeSnapshot rejects snapshots that break the cart invariants instead of
// loading them partially.
func decodeSnapshot(raw string) ([]domain.LineItem, error) {
	var items []domain.LineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}

	seen := make(map[domain.ProductID]struct{}, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, fmt.Errorf("line %s has quantity %d", item.ProductID, item.Quantity)
		}
		if item.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("line %s has negative price", item.ProductID)
		}
		if _, dup := seen[item.ProductID]; dup {
			return nil, fmt.Errorf("duplicate line %s", item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
	}
	return items, nil
}
