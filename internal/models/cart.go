package models

import "time"

// CartItem is one product line in a customer's cart, tagged with its seller.
type CartItem struct {
	CustomerID  string  `json:"customerId" gorm:"primaryKey;type:varchar(36)"`
	ProductID   string  `json:"productId" gorm:"primaryKey;type:varchar(36)"`
	ProductName string  `json:"productName"`
	Category    string  `json:"category"`
	Unit        string  `json:"unit"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`

	FarmerID       string `json:"farmerId" gorm:"index;type:varchar(36)"`
	FarmerName     string `json:"farmerName"`
	FarmerLocation string `json:"farmerLocation"`

	AddedAt time.Time `json:"addedAt"`
}

// VendorCart is the part of a cart sold by one farmer. It is derived on every
// read and never stored.
type VendorCart struct {
	FarmerID       string     `json:"farmerId"`
	FarmerName     string     `json:"farmerName"`
	FarmerLocation string     `json:"farmerLocation"`
	Items          []CartItem `json:"items"`
	Subtotal       float64    `json:"subtotal"`
	ItemCount      int        `json:"itemCount"`
}
