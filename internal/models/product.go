package models

import "time"

// Product is something a farmer offers for sale.
type Product struct {
	ID          string  `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	FarmerID    string  `json:"farmerId" gorm:"index;type:varchar(36)"`
	Name        string  `json:"name" validate:"required,min=2,max=100"`
	Description string  `json:"description" validate:"omitempty,max=500"`
	Category    string  `json:"category" validate:"required,max=50"`
	Unit        string  `json:"unit" validate:"required,max=20"` // e.g. "kg", "dozen"
	Price       float64 `json:"price" validate:"required,gt=0"`
	Quantity    int     `json:"quantity" validate:"gte=0"` // units in stock

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
