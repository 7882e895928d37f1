package services

import (
	"errors"
	"fmt"
	"time"

	"harvestlink/internal/cart"
	"harvestlink/internal/models"
	"harvestlink/internal/repositories"

	"github.com/rs/zerolog/log"
)

// CartService manages customers' carts and per-farmer checkout.
type CartService struct {
	cartRepo    repositories.CartRepository
	productRepo repositories.ProductRepository
	userRepo    repositories.UserRepository
	orders      *OrderService
	now         func() time.Time
}

// NewCartService creates a new CartService. Checkout goes through orders.
func NewCartService(cartRepo repositories.CartRepository, productRepo repositories.ProductRepository, userRepo repositories.UserRepository, orders *OrderService) *CartService {
	return &CartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		orders:      orders,
		now:         time.Now,
	}
}

// CartView is a cart as rendered to its owner.
type CartView struct {
	Items   []models.CartItem   `json:"items"`
	Vendors []models.VendorCart `json:"vendors"`
	Total   float64             `json:"total"`
}

// CheckoutRequest picks the farmer whose part of the cart becomes an order.
type CheckoutRequest struct {
	FarmerID           string     `json:"farmerId" validate:"required"`
	DeliveryAddress    string     `json:"deliveryAddress" validate:"max=500"`
	PickupInstructions string     `json:"pickupInstructions" validate:"max=500"`
	DeliveryDate       *time.Time `json:"deliveryDate"`
	Notes              string     `json:"notes" validate:"max=1000"`
}

// GetCart returns the caller's cart grouped by farmer.
func (s *CartService) GetCart(actor Actor) (*CartView, error) {
	if !actor.IsCustomer() {
		return nil, fmt.Errorf("only customers have carts: %w", ErrForbidden)
	}
	items, err := s.cartRepo.GetByCustomerID(actor.UserID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.CartItem{}
	}
	return &CartView{
		Items:   items,
		Vendors: cart.GroupByVendor(items),
		Total:   cart.Total(items),
	}, nil
}

// AddItem puts quantity units of a product in the cart, adding to any units
// already there.
func (s *CartService) AddItem(actor Actor, productID string, quantity int) (*CartView, error) {
	if !actor.IsCustomer() {
		return nil, fmt.Errorf("only customers have carts: %w", ErrForbidden)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", ErrInvalidInput)
	}

	existing, err := s.findLine(actor.UserID, productID)
	if err != nil {
		return nil, err
	}
	addedAt := s.now()
	if existing != nil {
		quantity += existing.Quantity
		addedAt = existing.AddedAt
	}
	if err := s.putLine(actor.UserID, productID, quantity, addedAt); err != nil {
		return nil, err
	}
	return s.GetCart(actor)
}

// SetQuantity sets a cart line's quantity; zero or less removes the line.
func (s *CartService) SetQuantity(actor Actor, productID string, quantity int) (*CartView, error) {
	if !actor.IsCustomer() {
		return nil, fmt.Errorf("only customers have carts: %w", ErrForbidden)
	}
	if quantity <= 0 {
		return s.RemoveItem(actor, productID)
	}

	existing, err := s.findLine(actor.UserID, productID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("cart item %s %w", productID, repositories.ErrNotFound)
	}
	if err := s.putLine(actor.UserID, productID, quantity, existing.AddedAt); err != nil {
		return nil, err
	}
	return s.GetCart(actor)
}

// RemoveItem drops one product from the cart.
func (s *CartService) RemoveItem(actor Actor, productID string) (*CartView, error) {
	if !actor.IsCustomer() {
		return nil, fmt.Errorf("only customers have carts: %w", ErrForbidden)
	}
	if err := s.cartRepo.Remove(actor.UserID, productID); err != nil {
		return nil, err
	}
	return s.GetCart(actor)
}

// Clear empties the cart.
func (s *CartService) Clear(actor Actor) error {
	if !actor.IsCustomer() {
		return fmt.Errorf("only customers have carts: %w", ErrForbidden)
	}
	return s.cartRepo.Clear(actor.UserID)
}

// Checkout turns the part of the cart sold by req.FarmerID into one order and
// removes exactly those lines. Items from other farmers stay in the cart.
func (s *CartService) Checkout(actor Actor, req CheckoutRequest) (*CreatedOrder, error) {
	if !actor.IsCustomer() {
		return nil, fmt.Errorf("only customers can check out: %w", ErrForbidden)
	}
	items, err := s.cartRepo.GetByCustomerID(actor.UserID)
	if err != nil {
		return nil, err
	}
	group, ok := cart.VendorGroup(items, req.FarmerID)
	if !ok || len(group.Items) == 0 {
		return nil, fmt.Errorf("cart has no items from farmer %s: %w", req.FarmerID, ErrInvalidInput)
	}

	orderItems := make([]CreateOrderItem, len(group.Items))
	productIDs := make([]string, len(group.Items))
	for i, item := range group.Items {
		orderItems[i] = CreateOrderItem{ProductID: item.ProductID, Quantity: item.Quantity}
		productIDs[i] = item.ProductID
	}

	created, err := s.orders.CreateOrder(actor, CreateOrderRequest{
		FarmerID:           req.FarmerID,
		Items:              orderItems,
		DeliveryAddress:    req.DeliveryAddress,
		PickupInstructions: req.PickupInstructions,
		DeliveryDate:       req.DeliveryDate,
		Notes:              req.Notes,
	})
	if err != nil {
		return nil, err
	}

	// The order stands even if the cart cannot be trimmed.
	if err := s.cartRepo.RemoveMany(actor.UserID, productIDs); err != nil {
		log.Error().Err(err).Str("order_id", created.ID).Str("customer_id", actor.UserID).
			Msg("order created but checked-out items could not be removed from cart")
	}
	return created, nil
}

func (s *CartService) findLine(customerID, productID string) (*models.CartItem, error) {
	items, err := s.cartRepo.GetByCustomerID(customerID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ProductID == productID {
			return &items[i], nil
		}
	}
	return nil, nil
}

// putLine stores a line with a fresh snapshot of the product and its farmer.
func (s *CartService) putLine(customerID, productID string, quantity int, addedAt time.Time) error {
	product, err := s.productRepo.GetByID(productID)
	if err != nil {
		return err
	}
	if quantity > product.Quantity {
		return fmt.Errorf("only %d %s of %s in stock: %w", product.Quantity, product.Unit, product.Name, ErrInvalidInput)
	}

	line := &models.CartItem{
		CustomerID:  customerID,
		ProductID:   product.ID,
		ProductName: product.Name,
		Category:    product.Category,
		Unit:        product.Unit,
		Price:       product.Price,
		Quantity:    quantity,
		FarmerID:    product.FarmerID,
		AddedAt:     addedAt,
	}
	farmer, err := s.userRepo.GetByID(product.FarmerID)
	switch {
	case err == nil:
		line.FarmerName = farmer.DisplayName()
		line.FarmerLocation = farmer.Location
	case !errors.Is(err, repositories.ErrNotFound):
		return err
	}
	return s.cartRepo.Upsert(line)
}
