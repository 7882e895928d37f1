package services

import "harvestlink/internal/models"

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID   string
	Username string
	Role     models.Role
}

func (a Actor) IsFarmer() bool   { return a.Role == models.RoleFarmer }
func (a Actor) IsCustomer() bool { return a.Role == models.RoleCustomer }
