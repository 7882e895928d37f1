package repositories

import "harvestlink/internal/models"

// CartRepository stores each customer's cart lines, keyed by product.
type CartRepository interface {
	GetByCustomerID(customerID string) ([]models.CartItem, error)
	// Upsert inserts the line or replaces the existing line for the same product.
	Upsert(item *models.CartItem) error
	Remove(customerID, productID string) error
	RemoveMany(customerID string, productIDs []string) error
	Clear(customerID string) error
}
