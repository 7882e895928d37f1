package repositories

import (
	"fmt"

	"harvestlink/internal/models"
	"harvestlink/pkg/jsonstore"
)

// JSONCartRepository keeps every customer's cart lines in one JSON file (carts.json).
type JSONCartRepository struct {
	items *jsonstore.Collection[models.CartItem]
}

// NewJSONCartRepository opens the cart file at path; "" keeps carts in memory.
func NewJSONCartRepository(path string) (*JSONCartRepository, error) {
	c, err := jsonstore.Open[models.CartItem](path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cart store: %w", err)
	}
	return &JSONCartRepository{items: c}, nil
}

// GetByCustomerID returns the customer's cart lines in the order they were added.
func (r *JSONCartRepository) GetByCustomerID(customerID string) ([]models.CartItem, error) {
	return r.items.Filter(func(i models.CartItem) bool { return i.CustomerID == customerID })
}

// Upsert inserts item or replaces the customer's existing line for the product.
func (r *JSONCartRepository) Upsert(item *models.CartItem) error {
	return r.items.Mutate(func(items []models.CartItem) ([]models.CartItem, error) {
		for i := range items {
			if items[i].CustomerID == item.CustomerID && items[i].ProductID == item.ProductID {
				items[i] = *item
				return items, nil
			}
		}
		return append(items, *item), nil
	})
}

// Remove deletes one line from the customer's cart.
func (r *JSONCartRepository) Remove(customerID, productID string) error {
	return r.items.Mutate(func(items []models.CartItem) ([]models.CartItem, error) {
		for i := range items {
			if items[i].CustomerID == customerID && items[i].ProductID == productID {
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("cart item %s %w", productID, ErrNotFound)
	})
}

// RemoveMany deletes the listed products from the customer's cart; absent ones are ignored.
func (r *JSONCartRepository) RemoveMany(customerID string, productIDs []string) error {
	drop := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		drop[id] = struct{}{}
	}
	return r.items.Mutate(func(items []models.CartItem) ([]models.CartItem, error) {
		kept := items[:0]
		for _, it := range items {
			if _, ok := drop[it.ProductID]; ok && it.CustomerID == customerID {
				continue
			}
			kept = append(kept, it)
		}
		return kept, nil
	})
}

// Clear empties the customer's cart.
func (r *JSONCartRepository) Clear(customerID string) error {
	return r.items.Mutate(func(items []models.CartItem) ([]models.CartItem, error) {
		kept := items[:0]
		for _, it := range items {
			if it.CustomerID != customerID {
				kept = append(kept, it)
			}
		}
		return kept, nil
	})
}
