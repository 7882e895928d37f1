package services

import (
	"fmt"

	"harvestlink/internal/models"
	"harvestlink/internal/repositories"
)

// ProductService handles business logic related to products.
type ProductService struct {
	repo repositories.ProductRepository
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository) *ProductService {
	return &ProductService{
		repo: repo,
	}
}

// GetAllProducts retrieves all products.
func (s *ProductService) GetAllProducts() ([]models.Product, error) {
	return s.repo.GetAll()
}

// GetProductsByFarmer retrieves one farmer's products.
func (s *ProductService) GetProductsByFarmer(farmerID string) ([]models.Product, error) {
	return s.repo.GetByFarmerID(farmerID)
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(id string) (*models.Product, error) {
	return s.repo.GetByID(id)
}

// CreateProduct lists a new product for the calling farmer.
func (s *ProductService) CreateProduct(actor Actor, product *models.Product) error {
	if !actor.IsFarmer() {
		return fmt.Errorf("only farmers can list products: %w", ErrForbidden)
	}
	product.FarmerID = actor.UserID
	return s.repo.Create(product)
}

// UpdateProduct replaces a product owned by the calling farmer.
func (s *ProductService) UpdateProduct(actor Actor, product *models.Product) error {
	existing, err := s.ownedProduct(actor, product.ID)
	if err != nil {
		return err
	}
	product.FarmerID = existing.FarmerID
	return s.repo.Update(product)
}

// DeleteProduct deletes a product owned by the calling farmer.
func (s *ProductService) DeleteProduct(actor Actor, id string) error {
	if _, err := s.ownedProduct(actor, id); err != nil {
		return err
	}
	return s.repo.Delete(id)
}

func (s *ProductService) ownedProduct(actor Actor, id string) (*models.Product, error) {
	if !actor.IsFarmer() {
		return nil, fmt.Errorf("only farmers can manage products: %w", ErrForbidden)
	}
	existing, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if existing.FarmerID != actor.UserID {
		return nil, fmt.Errorf("product %s belongs to another farmer: %w", id, ErrForbidden)
	}
	return existing, nil
}
