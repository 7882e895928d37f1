package repositories

import (
	"fmt"
	"time"

	"harvestlink/internal/models"
	"harvestlink/pkg/jsonstore"
)

// JSONOrderRepository keeps orders in a JSON file (orders.json).
type JSONOrderRepository struct {
	orders *jsonstore.Collection[models.Order]
	now    func() time.Time
}

// NewJSONOrderRepository opens the order file at path; "" keeps orders in memory.
func NewJSONOrderRepository(path string) (*JSONOrderRepository, error) {
	c, err := jsonstore.Open[models.Order](path)
	if err != nil {
		return nil, fmt.Errorf("failed to open order store: %w", err)
	}
	return &JSONOrderRepository{orders: c, now: time.Now}, nil
}

// GetAll returns all orders.
func (r *JSONOrderRepository) GetAll() ([]models.Order, error) {
	return r.orders.Snapshot()
}

// GetByID returns an order by its ID.
func (r *JSONOrderRepository) GetByID(id string) (*models.Order, error) {
	order, ok, err := r.orders.Find(func(o models.Order) bool { return o.ID == id })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, orderNotFound(id)
	}
	return &order, nil
}

// GetByCustomerID returns the customer's orders in insertion order.
func (r *JSONOrderRepository) GetByCustomerID(customerID string) ([]models.Order, error) {
	return r.orders.Filter(func(o models.Order) bool { return o.CustomerID == customerID })
}

// GetByFarmerID returns the farmer's orders in insertion order.
func (r *JSONOrderRepository) GetByFarmerID(farmerID string) ([]models.Order, error) {
	return r.orders.Filter(func(o models.Order) bool { return o.FarmerID == farmerID })
}

// Create adds a new order, assigning its ID and order date.
func (r *JSONOrderRepository) Create(order *models.Order) error {
	return r.orders.Mutate(func(items []models.Order) ([]models.Order, error) {
		now := r.now()
		taken := func(id string) (bool, error) {
			for _, o := range items {
				if o.ID == id {
					return true, nil
				}
			}
			return false, nil
		}

		if order.ID == "" {
			id, err := nextOrderID(now, taken)
			if err != nil {
				return nil, err
			}
			order.ID = id
		} else if exists, _ := taken(order.ID); exists {
			return nil, fmt.Errorf("order with ID %s %w", order.ID, ErrDuplicate)
		}

		if order.OrderDate.IsZero() {
			order.OrderDate = now
		}
		order.UpdatedAt = now
		order.Version = 1
		return append(items, order.Clone()), nil
	})
}

// Update applies fn to the stored order and persists the result.
func (r *JSONOrderRepository) Update(id string, fn func(order *models.Order) error) (*models.Order, error) {
	var updated models.Order
	err := r.orders.Mutate(func(items []models.Order) ([]models.Order, error) {
		for i := range items {
			if items[i].ID != id {
				continue
			}
			order := items[i]
			if err := fn(&order); err != nil {
				return nil, err
			}
			order.ID = id
			order.Version = items[i].Version + 1
			order.UpdatedAt = r.now()
			items[i] = order
			updated = order.Clone()
			return items, nil
		}
		return nil, orderNotFound(id)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// UpdateStatus writes status without checking the lifecycle.
func (r *JSONOrderRepository) UpdateStatus(id string, status models.OrderStatus) (*models.Order, error) {
	return r.Update(id, func(o *models.Order) error {
		o.Status = status
		return nil
	})
}

// AddRating writes rating and review, replacing any earlier ones.
func (r *JSONOrderRepository) AddRating(id string, rating int, review string) (*models.Order, error) {
	return r.Update(id, func(o *models.Order) error {
		ratedAt := r.now()
		o.Rating = &rating
		o.Review = review
		o.RatedAt = &ratedAt
		return nil
	})
}

// VerifyDeliveryPin reports whether pin matches the order's delivery PIN.
func (r *JSONOrderRepository) VerifyDeliveryPin(id string, pin string) (bool, error) {
	order, err := r.GetByID(id)
	if err != nil {
		return false, err
	}
	return order.PinMatches(pin), nil
}

// Delete removes an order by its ID.
func (r *JSONOrderRepository) Delete(id string) error {
	return r.orders.Mutate(func(items []models.Order) ([]models.Order, error) {
		for i := range items {
			if items[i].ID == id {
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return nil, orderNotFound(id)
	})
}
