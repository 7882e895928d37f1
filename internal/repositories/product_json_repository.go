package repositories

import (
	"fmt"
	"time"

	"harvestlink/internal/models"
	"harvestlink/pkg/jsonstore"

	"github.com/google/uuid"
)

// JSONProductRepository keeps products in a JSON file (products.json).
type JSONProductRepository struct {
	products *jsonstore.Collection[models.Product]
}

// NewJSONProductRepository opens the product file at path; "" keeps products in memory.
func NewJSONProductRepository(path string) (*JSONProductRepository, error) {
	c, err := jsonstore.Open[models.Product](path)
	if err != nil {
		return nil, fmt.Errorf("failed to open product store: %w", err)
	}
	return &JSONProductRepository{products: c}, nil
}

// GetAll returns all products.
func (r *JSONProductRepository) GetAll() ([]models.Product, error) {
	return r.products.Snapshot()
}

// GetByID returns a product by its ID.
func (r *JSONProductRepository) GetByID(id string) (*models.Product, error) {
	product, ok, err := r.products.Find(func(p models.Product) bool { return p.ID == id })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("product with ID %s %w", id, ErrNotFound)
	}
	return &product, nil
}

// GetByFarmerID returns the farmer's products.
func (r *JSONProductRepository) GetByFarmerID(farmerID string) ([]models.Product, error) {
	return r.products.Filter(func(p models.Product) bool { return p.FarmerID == farmerID })
}

// Create adds a new product.
func (r *JSONProductRepository) Create(product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now
	return r.products.Mutate(func(items []models.Product) ([]models.Product, error) {
		for _, p := range items {
			if p.ID == product.ID {
				return nil, fmt.Errorf("product with ID %s %w", product.ID, ErrDuplicate)
			}
		}
		return append(items, *product), nil
	})
}

// Update replaces an existing product, keeping its creation time.
func (r *JSONProductRepository) Update(product *models.Product) error {
	return r.products.Mutate(func(items []models.Product) ([]models.Product, error) {
		for i := range items {
			if items[i].ID == product.ID {
				product.CreatedAt = items[i].CreatedAt
				product.UpdatedAt = time.Now()
				items[i] = *product
				return items, nil
			}
		}
		return nil, fmt.Errorf("product with ID %s %w", product.ID, ErrNotFound)
	})
}

// DecrementStock lowers the product's stock by quantity.
func (r *JSONProductRepository) DecrementStock(id string, quantity int) error {
	return r.products.Mutate(func(items []models.Product) ([]models.Product, error) {
		for i := range items {
			if items[i].ID != id {
				continue
			}
			if items[i].Quantity < quantity {
				return nil, fmt.Errorf("product %s: %w", id, ErrInsufficientStock)
			}
			items[i].Quantity -= quantity
			items[i].UpdatedAt = time.Now()
			return items, nil
		}
		return nil, fmt.Errorf("product with ID %s %w", id, ErrNotFound)
	})
}

// IncrementStock raises the product's stock by quantity.
func (r *JSONProductRepository) IncrementStock(id string, quantity int) error {
	return r.products.Mutate(func(items []models.Product) ([]models.Product, error) {
		for i := range items {
			if items[i].ID == id {
				items[i].Quantity += quantity
				items[i].UpdatedAt = time.Now()
				return items, nil
			}
		}
		return nil, fmt.Errorf("product with ID %s %w", id, ErrNotFound)
	})
}

// Delete removes a product by its ID.
func (r *JSONProductRepository) Delete(id string) error {
	return r.products.Mutate(func(items []models.Product) ([]models.Product, error) {
		for i := range items {
			if items[i].ID == id {
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("product with ID %s %w", id, ErrNotFound)
	})
}
