package repositories

import (
	"fmt"

	"harvestlink/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMCartRepository is a GORM implementation of CartRepository.
type GORMCartRepository struct {
	db *gorm.DB
}

// NewGORMCartRepository creates a new instance of GORMCartRepository.
func NewGORMCartRepository(db *gorm.DB) *GORMCartRepository {
	return &GORMCartRepository{db: db}
}

// GetByCustomerID returns the customer's cart lines in the order they were added.
func (r *GORMCartRepository) GetByCustomerID(customerID string) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.Where("customer_id = ?", customerID).Order("added_at asc, product_id asc").Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get cart for customer %s: %w", customerID, err)
	}
	return items, nil
}

// Upsert inserts item or overwrites the existing (customer, product) line.
func (r *GORMCartRepository) Upsert(item *models.CartItem) error {
	if err := r.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(item).Error; err != nil {
		return fmt.Errorf("failed to save cart item %s: %w", item.ProductID, err)
	}
	return nil
}

// Remove deletes one line from the customer's cart.
func (r *GORMCartRepository) Remove(customerID, productID string) error {
	res := r.db.Delete(&models.CartItem{}, "customer_id = ? AND product_id = ?", customerID, productID)
	if res.Error != nil {
		return fmt.Errorf("failed to remove cart item %s: %w", productID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("cart item %s %w", productID, ErrNotFound)
	}
	return nil
}

// RemoveMany deletes the listed products from the customer's cart.
func (r *GORMCartRepository) RemoveMany(customerID string, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}
	err := r.db.Delete(&models.CartItem{}, "customer_id = ? AND product_id IN ?", customerID, productIDs).Error
	if err != nil {
		return fmt.Errorf("failed to remove cart items: %w", err)
	}
	return nil
}

// Clear empties the customer's cart.
func (r *GORMCartRepository) Clear(customerID string) error {
	if err := r.db.Delete(&models.CartItem{}, "customer_id = ?", customerID).Error; err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
