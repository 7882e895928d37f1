package repositories

import (
	"fmt"
	"strconv"
	"time"

	"harvestlink/internal/models"
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	GetAll() ([]models.Order, error)
	GetByID(id string) (*models.Order, error)
	GetByCustomerID(customerID string) ([]models.Order, error)
	GetByFarmerID(farmerID string) ([]models.Order, error)
	Create(order *models.Order) error
	// Update applies fn to the stored order as one read-modify-write.
	// An error from fn aborts the update and is returned unchanged.
	Update(id string, fn func(order *models.Order) error) (*models.Order, error)
	UpdateStatus(id string, status models.OrderStatus) (*models.Order, error)
	AddRating(id string, rating int, review string) (*models.Order, error)
	VerifyDeliveryPin(id string, pin string) (bool, error)
	Delete(id string) error
}

// nextOrderID returns "order_<epoch-ms>", advancing the millisecond while the
// candidate is already taken.
func nextOrderID(now time.Time, taken func(id string) (bool, error)) (string, error) {
	ms := now.UnixMilli()
	for i := 0; i < 1000; i++ {
		id := "order_" + strconv.FormatInt(ms+int64(i), 10)
		exists, err := taken(id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}
	return "", fmt.Errorf("could not allocate order ID near %d: %w", ms, ErrConflict)
}

func orderNotFound(id string) error {
	return fmt.Errorf("order with ID %s %w", id, ErrNotFound)
}
