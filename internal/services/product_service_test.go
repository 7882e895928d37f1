package services_test

import (
	"fmt"
	"testing"

	"harvestlink/internal/models"
	"harvestlink/internal/repositories"
	"harvestlink/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockProductRepository is a mock implementation of repositories.ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetAll() ([]models.Product, error) {
	args := m.Called()
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockProductRepository) GetByID(id string) (*models.Product, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductRepository) GetByFarmerID(farmerID string) ([]models.Product, error) {
	args := m.Called(farmerID)
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockProductRepository) Create(product *models.Product) error {
	args := m.Called(product)
	return args.Error(0)
}

func (m *MockProductRepository) Update(product *models.Product) error {
	args := m.Called(product)
	return args.Error(0)
}

func (m *MockProductRepository) DecrementStock(id string, quantity int) error {
	args := m.Called(id, quantity)
	return args.Error(0)
}

func (m *MockProductRepository) IncrementStock(id string, quantity int) error {
	args := m.Called(id, quantity)
	return args.Error(0)
}

func (m *MockProductRepository) Delete(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

var (
	farmerActor   = services.Actor{UserID: "farmer-1", Username: "greenacres", Role: models.RoleFarmer}
	otherFarmer   = services.Actor{UserID: "farmer-2", Username: "dairyhill", Role: models.RoleFarmer}
	customerActor = services.Actor{UserID: "customer-1", Username: "carol", Role: models.RoleCustomer}
)

func TestProductService_GetAllProducts(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	expectedProducts := []models.Product{
		{ID: "1", FarmerID: "farmer-1", Name: "Tomato", Price: 5.0, Quantity: 100},
		{ID: "2", FarmerID: "farmer-2", Name: "Milk", Price: 3.0, Quantity: 50},
	}

	mockRepo.On("GetAll").Return(expectedProducts, nil).Once()

	products, err := service.GetAllProducts()

	assert.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, expectedProducts, products)
	mockRepo.AssertExpectations(t)
}

func TestProductService_GetProductsByFarmer(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	expected := []models.Product{{ID: "1", FarmerID: "farmer-1", Name: "Tomato"}}
	mockRepo.On("GetByFarmerID", "farmer-1").Return(expected, nil).Once()

	products, err := service.GetProductsByFarmer("farmer-1")
	assert.NoError(t, err)
	assert.Equal(t, expected, products)
	mockRepo.AssertExpectations(t)
}

func TestProductService_GetProductByID(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	expectedProduct := &models.Product{ID: "1", Name: "Tomato", Price: 5.0, Quantity: 100}

	// Test successful retrieval
	mockRepo.On("GetByID", "1").Return(expectedProduct, nil).Once()
	product, err := service.GetProductByID("1")
	assert.NoError(t, err)
	assert.Equal(t, expectedProduct, product)
	mockRepo.AssertExpectations(t)

	// Test product not found
	mockRepo.On("GetByID", "99").Return(nil, fmt.Errorf("product with ID 99 %w", repositories.ErrNotFound)).Once()
	product, err = service.GetProductByID("99")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.Nil(t, product)
	mockRepo.AssertExpectations(t)
}

func TestProductService_CreateProduct(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	newProduct := &models.Product{Name: "Basil", Price: 1.5, Quantity: 20, FarmerID: "spoofed"}

	// Test successful creation; the owner always comes from the caller
	mockRepo.On("Create", newProduct).Return(nil).Once()
	err := service.CreateProduct(farmerActor, newProduct)
	assert.NoError(t, err)
	assert.Equal(t, "farmer-1", newProduct.FarmerID)
	mockRepo.AssertExpectations(t)

	// Test creation failure (e.g., database error)
	mockRepo.On("Create", newProduct).Return(fmt.Errorf("database error")).Once()
	err = service.CreateProduct(farmerActor, newProduct)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database error")
	mockRepo.AssertExpectations(t)

	// Customers cannot list products
	err = service.CreateProduct(customerActor, &models.Product{Name: "Nope"})
	assert.ErrorIs(t, err, services.ErrForbidden)
	mockRepo.AssertNotCalled(t, "Create", &models.Product{Name: "Nope"})
}

func TestProductService_UpdateProduct(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	stored := &models.Product{ID: "1", FarmerID: "farmer-1", Name: "Tomato", Price: 5.0, Quantity: 100}
	updatedProduct := &models.Product{ID: "1", Name: "Tomato (heirloom)", Price: 6.0, Quantity: 95}

	// Test successful update
	mockRepo.On("GetByID", "1").Return(stored, nil).Once()
	mockRepo.On("Update", updatedProduct).Return(nil).Once()
	err := service.UpdateProduct(farmerActor, updatedProduct)
	assert.NoError(t, err)
	assert.Equal(t, "farmer-1", updatedProduct.FarmerID)
	mockRepo.AssertExpectations(t)

	// Another farmer's product
	mockRepo.On("GetByID", "1").Return(stored, nil).Once()
	err = service.UpdateProduct(otherFarmer, &models.Product{ID: "1", Name: "Mine now"})
	assert.ErrorIs(t, err, services.ErrForbidden)
	mockRepo.AssertExpectations(t)

	// Test update failure (product not found in repo)
	mockRepo.On("GetByID", "99").Return(nil, fmt.Errorf("product with ID 99 %w", repositories.ErrNotFound)).Once()
	err = service.UpdateProduct(farmerActor, &models.Product{ID: "99", Name: "NonExistent", Price: 1.0, Quantity: 1})
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	mockRepo.AssertExpectations(t)
}

func TestProductService_DeleteProduct(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	stored := &models.Product{ID: "1", FarmerID: "farmer-1", Name: "Tomato"}

	// Test successful deletion
	mockRepo.On("GetByID", "1").Return(stored, nil).Once()
	mockRepo.On("Delete", "1").Return(nil).Once()
	err := service.DeleteProduct(farmerActor, "1")
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)

	// Test deletion by a customer
	err = service.DeleteProduct(customerActor, "1")
	assert.ErrorIs(t, err, services.ErrForbidden)

	// Test deletion failure (product not found)
	mockRepo.On("GetByID", "99").Return(nil, fmt.Errorf("product with ID 99 %w", repositories.ErrNotFound)).Once()
	err = service.DeleteProduct(farmerActor, "99")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	mockRepo.AssertExpectations(t)
}
