package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// OrderItem represents a single line within an order.
// Product fields are snapshotted when the order is placed and never refreshed.
type OrderItem struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Category    string  `json:"category"`
	Unit        string  `json:"unit"`
	Price       float64 `json:"price"` // Price at the time of order
	Quantity    int     `json:"quantity"`
}

// Order is a customer's purchase from a single farmer.
type Order struct {
	ID         string `json:"id" gorm:"primaryKey;type:varchar(64)"`
	FarmerID   string `json:"farmerId" gorm:"index;type:varchar(36)"`
	CustomerID string `json:"customerId" gorm:"index;type:varchar(36)"`

	// Captured at creation, not kept in sync with later profile edits.
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	CustomerPhone string `json:"customerPhone"`

	Items       []OrderItem `json:"items" gorm:"type:text;serializer:json"`
	TotalAmount float64     `json:"totalAmount"`
	Status      OrderStatus `json:"status" gorm:"type:varchar(32)"`
	OrderDate   time.Time   `json:"orderDate"`

	DeliveryAddress    string     `json:"deliveryAddress,omitempty"`
	PickupInstructions string     `json:"pickupInstructions,omitempty"`
	DeliveryDate       *time.Time `json:"deliveryDate,omitempty"`
	Notes              string     `json:"notes,omitempty"`

	// bcrypt hash of the delivery PIN; stripped by Public.
	DeliveryPinHash string `json:"deliveryPinHash,omitempty"`

	Rating  *int       `json:"rating,omitempty"`
	Review  string     `json:"review,omitempty"`
	RatedAt *time.Time `json:"ratedAt,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
	Version   int       `json:"version"`
}

// CalculateTotal returns the sum of price * quantity over items.
func CalculateTotal(items []OrderItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

// PinMatches reports whether pin is the order's delivery PIN.
// The comparison is exact: no trimming, case-sensitive.
func (o *Order) PinMatches(pin string) bool {
	if o.DeliveryPinHash == "" || pin == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(o.DeliveryPinHash), []byte(pin)) == nil
}

// IsParty reports whether userID is the order's customer or farmer.
func (o *Order) IsParty(userID string) bool {
	return userID != "" && (o.CustomerID == userID || o.FarmerID == userID)
}

// Public returns a copy safe to render to API clients.
func (o Order) Public() Order {
	o.DeliveryPinHash = ""
	return o
}

// Clone returns a deep copy of the order.
func (o Order) Clone() Order {
	if o.Items != nil {
		o.Items = append([]OrderItem(nil), o.Items...)
	}
	if o.DeliveryDate != nil {
		d := *o.DeliveryDate
		o.DeliveryDate = &d
	}
	if o.Rating != nil {
		r := *o.Rating
		o.Rating = &r
	}
	if o.RatedAt != nil {
		t := *o.RatedAt
		o.RatedAt = &t
	}
	return o
}
