package repositories

import (
	"harvestlink/internal/models"
)

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	GetAll() ([]models.Product, error)
	GetByID(id string) (*models.Product, error)
	GetByFarmerID(farmerID string) ([]models.Product, error)
	Create(product *models.Product) error
	Update(product *models.Product) error
	// DecrementStock removes quantity units from stock, failing with
	// ErrInsufficientStock rather than going negative.
	DecrementStock(id string, quantity int) error
	// IncrementStock returns quantity units to stock.
	IncrementStock(id string, quantity int) error
	Delete(id string) error
}
