package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"harvestlink/internal/events"
	"harvestlink/internal/metrics"
	"harvestlink/internal/models"
	"harvestlink/internal/ratelimit"
	"harvestlink/internal/repositories"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// OrderOptions tunes the order lifecycle.
type OrderOptions struct {
	// StrictTransitions enforces the forward-only status graph. When false any
	// known status may be written from any other.
	StrictTransitions bool
	PinHashCost       int
	// PinLimiter throttles PIN attempts per order; nil disables throttling.
	PinLimiter *ratelimit.KeyedLimiter
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orderRepo   repositories.OrderRepository
	productRepo repositories.ProductRepository
	userRepo    repositories.UserRepository
	emitter     *events.Emitter
	metrics     *metrics.Metrics
	opts        OrderOptions
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	orderRepo repositories.OrderRepository,
	productRepo repositories.ProductRepository,
	userRepo repositories.UserRepository,
	emitter *events.Emitter,
	m *metrics.Metrics,
	opts OrderOptions,
) *OrderService {
	if opts.PinHashCost == 0 {
		opts.PinHashCost = bcrypt.DefaultCost
	}
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		emitter:     emitter,
		metrics:     m,
		opts:        opts,
	}
}

// CreateOrderItem is one requested product line.
type CreateOrderItem struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	FarmerID           string            `json:"farmerId" validate:"required"`
	Items              []CreateOrderItem `json:"items" validate:"required,min=1,dive"`
	DeliveryAddress    string            `json:"deliveryAddress" validate:"max=500"`
	PickupInstructions string            `json:"pickupInstructions" validate:"max=500"`
	DeliveryDate       *time.Time        `json:"deliveryDate"`
	Notes              string            `json:"notes" validate:"max=1000"`
}

// CreatedOrder is a new order plus its delivery PIN, which is shown only once.
type CreatedOrder struct {
	models.Order
	DeliveryPin string `json:"deliveryPin"`
}

// CreateOrder places an order with one farmer on behalf of a customer.
// Product details are snapshotted and stock is taken immediately.
func (s *OrderService) CreateOrder(actor Actor, req CreateOrderRequest) (*CreatedOrder, error) {
	if !actor.IsCustomer() {
		return nil, fmt.Errorf("only customers can place orders: %w", ErrForbidden)
	}

	req.DeliveryAddress = strings.TrimSpace(req.DeliveryAddress)
	req.PickupInstructions = strings.TrimSpace(req.PickupInstructions)
	if (req.DeliveryAddress == "") == (req.PickupInstructions == "") {
		return nil, fmt.Errorf("exactly one of deliveryAddress or pickupInstructions is required: %w", ErrInvalidInput)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("an order needs at least one item: %w", ErrInvalidInput)
	}

	farmer, err := s.userRepo.GetByID(req.FarmerID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("farmer %s not found: %w", req.FarmerID, ErrInvalidInput)
		}
		return nil, err
	}
	if farmer.Role != models.RoleFarmer {
		return nil, fmt.Errorf("user %s is not a farmer: %w", req.FarmerID, ErrInvalidInput)
	}

	customer, err := s.userRepo.GetByID(actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load customer %s: %w", actor.UserID, err)
	}

	// Repeated product IDs collapse into one line.
	quantities := make(map[string]int)
	var productOrder []string
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("quantity for product %s must be positive: %w", item.ProductID, ErrInvalidInput)
		}
		if _, seen := quantities[item.ProductID]; !seen {
			productOrder = append(productOrder, item.ProductID)
		}
		quantities[item.ProductID] += item.Quantity
	}

	items := make([]models.OrderItem, 0, len(productOrder))
	for _, id := range productOrder {
		product, err := s.productRepo.GetByID(id)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, fmt.Errorf("product %s not found: %w", id, ErrInvalidInput)
			}
			return nil, err
		}
		if product.FarmerID != req.FarmerID {
			return nil, fmt.Errorf("product %s is not sold by farmer %s: %w", id, req.FarmerID, ErrInvalidInput)
		}
		if product.Quantity < quantities[id] {
			return nil, fmt.Errorf("insufficient stock for product %s (requested: %d, available: %d): %w",
				product.Name, quantities[id], product.Quantity, ErrInvalidInput)
		}
		items = append(items, models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Category:    product.Category,
			Unit:        product.Unit,
			Price:       product.Price,
			Quantity:    quantities[id],
		})
	}

	pin, pinHash, err := hashPin(s.opts.PinHashCost)
	if err != nil {
		return nil, err
	}

	if err := s.takeStock(items); err != nil {
		return nil, err
	}

	order := &models.Order{
		FarmerID:           req.FarmerID,
		CustomerID:         customer.ID,
		CustomerName:       customer.DisplayName(),
		CustomerEmail:      customer.Email,
		CustomerPhone:      customer.Phone,
		Items:              items,
		TotalAmount:        models.CalculateTotal(items),
		Status:             models.StatusPending,
		DeliveryAddress:    req.DeliveryAddress,
		PickupInstructions: req.PickupInstructions,
		DeliveryDate:       req.DeliveryDate,
		Notes:              strings.TrimSpace(req.Notes),
		DeliveryPinHash:    pinHash,
	}
	if err := s.orderRepo.Create(order); err != nil {
		s.returnStock(items, len(items))
		return nil, fmt.Errorf("failed to create order in repository: %w", err)
	}

	log.Info().
		Str("order_id", order.ID).
		Str("farmer_id", order.FarmerID).
		Str("customer_id", order.CustomerID).
		Float64("total", order.TotalAmount).
		Msg("order created")
	s.metrics.OrderCreated()
	s.emitter.Emit(events.NewOrderEvent(events.OrderCreated, order))

	return &CreatedOrder{Order: order.Public(), DeliveryPin: pin}, nil
}

// takeStock decrements stock line by line, returning what it took if a later
// line fails.
func (s *OrderService) takeStock(items []models.OrderItem) error {
	for i, item := range items {
		if err := s.productRepo.DecrementStock(item.ProductID, item.Quantity); err != nil {
			s.returnStock(items, i)
			if errors.Is(err, repositories.ErrInsufficientStock) || errors.Is(err, repositories.ErrNotFound) {
				return fmt.Errorf("product %s: %w", item.ProductName, errors.Join(ErrInvalidInput, err))
			}
			return fmt.Errorf("failed to reserve stock: %w", err)
		}
	}
	return nil
}

// returnStock gives back the stock taken for items[:n].
func (s *OrderService) returnStock(items []models.OrderItem, n int) {
	for _, item := range items[:n] {
		if err := s.productRepo.IncrementStock(item.ProductID, item.Quantity); err != nil {
			log.Error().Err(err).Str("product_id", item.ProductID).Int("quantity", item.Quantity).
				Msg("failed to return stock")
		}
	}
}

// ListForActor returns the caller's own orders: placed ones for customers,
// received ones for farmers.
func (s *OrderService) ListForActor(actor Actor) ([]models.Order, error) {
	var (
		orders []models.Order
		err    error
	)
	switch actor.Role {
	case models.RoleCustomer:
		orders, err = s.orderRepo.GetByCustomerID(actor.UserID)
	case models.RoleFarmer:
		orders, err = s.orderRepo.GetByFarmerID(actor.UserID)
	default:
		return nil, fmt.Errorf("unknown role %q: %w", actor.Role, ErrForbidden)
	}
	if err != nil {
		return nil, err
	}
	public := make([]models.Order, len(orders))
	for i := range orders {
		public[i] = orders[i].Public()
	}
	return public, nil
}

// GetForActor returns an order the caller is a party to.
func (s *OrderService) GetForActor(actor Actor, id string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !order.IsParty(actor.UserID) {
		return nil, fmt.Errorf("order %s: %w", id, ErrForbidden)
	}
	public := order.Public()
	return &public, nil
}

// UpdateStatus moves an order owned by the calling farmer to status.
func (s *OrderService) UpdateStatus(actor Actor, id string, status models.OrderStatus) (*models.Order, error) {
	if !actor.IsFarmer() {
		return nil, fmt.Errorf("only farmers can update order status: %w", ErrForbidden)
	}
	if !status.Valid() {
		return nil, fmt.Errorf("invalid order status: %q: %w", status, ErrInvalidInput)
	}

	var previous models.OrderStatus
	updated, err := s.orderRepo.Update(id, func(o *models.Order) error {
		if o.FarmerID != actor.UserID {
			return fmt.Errorf("order %s belongs to another farmer: %w", id, ErrForbidden)
		}
		if err := s.checkTransition(o.Status, status); err != nil {
			return err
		}
		previous = o.Status
		o.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.statusChanged(updated, previous)
	public := updated.Public()
	return &public, nil
}

func (s *OrderService) checkTransition(from, to models.OrderStatus) error {
	if s.opts.StrictTransitions && !from.CanTransitionTo(to) {
		return fmt.Errorf("cannot move order from %s to %s: %w", from, to, ErrInvalidTransition)
	}
	return nil
}

func (s *OrderService) statusChanged(order *models.Order, previous models.OrderStatus) {
	log.Info().
		Str("order_id", order.ID).
		Str("from", string(previous)).
		Str("to", string(order.Status)).
		Msg("order status changed")
	s.metrics.StatusChanged(string(order.Status))
	event := events.NewOrderEvent(events.OrderStatusChanged, order)
	event.PreviousStatus = previous
	s.emitter.Emit(event)
}

// allowPinAttempt spends one attempt from the order's PIN budget.
func (s *OrderService) allowPinAttempt(id string) error {
	if s.opts.PinLimiter != nil && !s.opts.PinLimiter.Allow(id) {
		s.metrics.PinVerified(metrics.PinThrottled)
		log.Warn().Str("order_id", id).Msg("delivery PIN attempts throttled")
		return fmt.Errorf("order %s: %w", id, ErrTooManyAttempts)
	}
	return nil
}

// VerifyDeliveryPin checks pin against the order's delivery PIN. Either party
// may check.
func (s *OrderService) VerifyDeliveryPin(actor Actor, id, pin string) (bool, error) {
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return false, err
	}
	if !order.IsParty(actor.UserID) {
		return false, fmt.Errorf("order %s: %w", id, ErrForbidden)
	}
	if err := s.allowPinAttempt(id); err != nil {
		return false, err
	}

	valid, err := s.orderRepo.VerifyDeliveryPin(id, pin)
	if err != nil {
		return false, err
	}
	if valid {
		s.metrics.PinVerified(metrics.PinValid)
	} else {
		s.metrics.PinVerified(metrics.PinInvalid)
	}
	return valid, nil
}

// ConfirmDelivery checks the PIN and marks the order delivered in one update.
func (s *OrderService) ConfirmDelivery(actor Actor, id, pin string) (*models.Order, error) {
	if !actor.IsFarmer() {
		return nil, fmt.Errorf("only farmers can confirm delivery: %w", ErrForbidden)
	}
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if order.FarmerID != actor.UserID {
		return nil, fmt.Errorf("order %s belongs to another farmer: %w", id, ErrForbidden)
	}
	if err := s.allowPinAttempt(id); err != nil {
		return nil, err
	}

	var previous models.OrderStatus
	updated, err := s.orderRepo.Update(id, func(o *models.Order) error {
		if o.FarmerID != actor.UserID {
			return fmt.Errorf("order %s belongs to another farmer: %w", id, ErrForbidden)
		}
		if !o.PinMatches(pin) {
			return fmt.Errorf("order %s: %w", id, ErrInvalidPin)
		}
		if err := s.checkTransition(o.Status, models.StatusDelivered); err != nil {
			return err
		}
		previous = o.Status
		o.Status = models.StatusDelivered
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidPin) {
			s.metrics.PinVerified(metrics.PinInvalid)
		}
		return nil, err
	}

	s.metrics.PinVerified(metrics.PinValid)
	s.statusChanged(updated, previous)
	public := updated.Public()
	return &public, nil
}

// Rate attaches a 1-5 rating and review to a delivered order. A later call
// replaces the earlier rating.
func (s *OrderService) Rate(actor Actor, id string, rating int, review string) (*models.Order, error) {
	if !actor.IsCustomer() {
		return nil, fmt.Errorf("only customers can rate orders: %w", ErrForbidden)
	}
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("rating must be between 1 and 5, got %d: %w", rating, ErrInvalidInput)
	}

	updated, err := s.orderRepo.Update(id, func(o *models.Order) error {
		if o.CustomerID != actor.UserID {
			return fmt.Errorf("order %s belongs to another customer: %w", id, ErrForbidden)
		}
		if o.Status != models.StatusDelivered {
			return fmt.Errorf("order %s is %s, only delivered orders can be rated: %w", id, o.Status, ErrInvalidInput)
		}
		ratedAt := time.Now()
		o.Rating = &rating
		o.Review = strings.TrimSpace(review)
		o.RatedAt = &ratedAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("order_id", id).Int("rating", rating).Msg("order rated")
	s.metrics.OrderRated()
	s.emitter.Emit(events.NewOrderEvent(events.OrderRated, updated))
	public := updated.Public()
	return &public, nil
}

// Delete removes a customer's own order while it is still pending or
// already cancelled. A pending order gives its stock back; a cancelled one
// does not, matching cancellation.
func (s *OrderService) Delete(actor Actor, id string) error {
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return err
	}
	if !actor.IsCustomer() || order.CustomerID != actor.UserID {
		return fmt.Errorf("order %s: %w", id, ErrForbidden)
	}
	if order.Status != models.StatusPending && order.Status != models.StatusCancelled {
		return fmt.Errorf("order %s is %s and can no longer be deleted: %w", id, order.Status, ErrInvalidTransition)
	}
	if err := s.orderRepo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete order %s: %w", id, err)
	}
	if order.Status == models.StatusPending {
		s.returnStock(order.Items, len(order.Items))
	}
	log.Info().Str("order_id", id).Str("status", string(order.Status)).Msg("order deleted")
	return nil
}
