// Package cart partitions a customer's cart by selling farmer.
package cart

import "harvestlink/internal/models"

// GroupByVendor splits items into one VendorCart per farmer. Groups appear in
// the order their farmer is first seen in items, and items keep their
// relative order inside a group.
func GroupByVendor(items []models.CartItem) []models.VendorCart {
	groups := make([]models.VendorCart, 0)
	index := make(map[string]int)

	for _, item := range items {
		i, ok := index[item.FarmerID]
		if !ok {
			i = len(groups)
			index[item.FarmerID] = i
			groups = append(groups, models.VendorCart{
				FarmerID:       item.FarmerID,
				FarmerName:     item.FarmerName,
				FarmerLocation: item.FarmerLocation,
			})
		}
		g := &groups[i]
		g.Items = append(g.Items, item)
		g.Subtotal += item.Price * float64(item.Quantity)
		g.ItemCount += item.Quantity
	}
	return groups
}

// Total is the price of everything in the cart.
func Total(items []models.CartItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

// VendorGroup returns the group sold by farmerID, if the cart has one.
func VendorGroup(items []models.CartItem, farmerID string) (models.VendorCart, bool) {
	for _, g := range GroupByVendor(items) {
		if g.FarmerID == farmerID {
			return g, true
		}
	}
	return models.VendorCart{}, false
}
