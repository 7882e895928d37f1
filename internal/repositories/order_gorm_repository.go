package repositories

import (
	"errors"
	"fmt"
	"time"

	"harvestlink/internal/models"

	"gorm.io/gorm"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
// Updates use an optimistic check on Order.Version.
type GORMOrderRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db:  db,
		now: time.Now,
	}
}

// GetAll retrieves all orders from the database.
func (r *GORMOrderRepository) GetAll() ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.Order("order_date asc, id asc").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to get all orders: %w", err)
	}
	return orders, nil
}

// GetByID retrieves a single order by its ID from the database.
func (r *GORMOrderRepository) GetByID(id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, orderNotFound(id)
		}
		return nil, fmt.Errorf("failed to get order by ID %s: %w", id, err)
	}
	return &order, nil
}

// GetByCustomerID retrieves the customer's orders, oldest first.
func (r *GORMOrderRepository) GetByCustomerID(customerID string) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Where("customer_id = ?", customerID).Order("order_date asc, id asc").Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get orders for customer %s: %w", customerID, err)
	}
	return orders, nil
}

// GetByFarmerID retrieves the farmer's orders, oldest first.
func (r *GORMOrderRepository) GetByFarmerID(farmerID string) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Where("farmer_id = ?", farmerID).Order("order_date asc, id asc").Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get orders for farmer %s: %w", farmerID, err)
	}
	return orders, nil
}

// Create creates a new order in the database.
func (r *GORMOrderRepository) Create(order *models.Order) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		now := r.now()
		if order.ID == "" {
			id, err := nextOrderID(now, func(id string) (bool, error) {
				var n int64
				if err := tx.Model(&models.Order{}).Where("id = ?", id).Count(&n).Error; err != nil {
					return false, fmt.Errorf("failed to check order ID %s: %w", id, err)
				}
				return n > 0, nil
			})
			if err != nil {
				return err
			}
			order.ID = id
		}
		if order.OrderDate.IsZero() {
			order.OrderDate = now
		}
		order.UpdatedAt = now
		order.Version = 1
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		return nil
	})
}

// Update loads the order, applies fn and writes the mutable columns back only
// if nobody else bumped the version in between. A lost race returns
// ErrConflict and leaves the stored order untouched.
func (r *GORMOrderRepository) Update(id string, fn func(order *models.Order) error) (*models.Order, error) {
	var order models.Order
	if err := r.db.First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, orderNotFound(id)
		}
		return nil, fmt.Errorf("failed to load order %s: %w", id, err)
	}

	prev := order.Version
	if err := fn(&order); err != nil {
		return nil, err
	}
	order.ID = id
	order.Version = prev + 1
	order.UpdatedAt = r.now()

	res := r.db.Model(&models.Order{}).
		Where("id = ? AND version = ?", id, prev).
		Updates(map[string]interface{}{
			"status":              string(order.Status),
			"delivery_address":    order.DeliveryAddress,
			"pickup_instructions": order.PickupInstructions,
			"delivery_date":       order.DeliveryDate,
			"notes":               order.Notes,
			"rating":              order.Rating,
			"review":              order.Review,
			"rated_at":            order.RatedAt,
			"updated_at":          order.UpdatedAt,
			"version":             order.Version,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("order with ID %s %w", id, ErrConflict)
	}
	return &order, nil
}

// UpdateStatus writes status without checking the lifecycle.
func (r *GORMOrderRepository) UpdateStatus(id string, status models.OrderStatus) (*models.Order, error) {
	return r.Update(id, func(o *models.Order) error {
		o.Status = status
		return nil
	})
}

// AddRating writes rating and review, replacing any earlier ones.
func (r *GORMOrderRepository) AddRating(id string, rating int, review string) (*models.Order, error) {
	return r.Update(id, func(o *models.Order) error {
		ratedAt := r.now()
		o.Rating = &rating
		o.Review = review
		o.RatedAt = &ratedAt
		return nil
	})
}

// VerifyDeliveryPin reports whether pin matches the order's delivery PIN.
func (r *GORMOrderRepository) VerifyDeliveryPin(id string, pin string) (bool, error) {
	order, err := r.GetByID(id)
	if err != nil {
		return false, err
	}
	return order.PinMatches(pin), nil
}

// Delete deletes an order by its ID from the database.
func (r *GORMOrderRepository) Delete(id string) error {
	res := r.db.Delete(&models.Order{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return orderNotFound(id)
	}
	return nil
}
