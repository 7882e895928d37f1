package repositories

import (
	"fmt"
	"strings"
	"time"

	"harvestlink/internal/models"
	"harvestlink/pkg/jsonstore"

	"github.com/google/uuid"
)

// JSONUserRepository keeps users in a JSON file (users.json).
type JSONUserRepository struct {
	users *jsonstore.Collection[models.User]
}

// NewJSONUserRepository opens the user file at path; "" keeps users in memory.
func NewJSONUserRepository(path string) (*JSONUserRepository, error) {
	c, err := jsonstore.Open[models.User](path)
	if err != nil {
		return nil, fmt.Errorf("failed to open user store: %w", err)
	}
	return &JSONUserRepository{users: c}, nil
}

// Create adds a user, rejecting a taken username or email.
func (r *JSONUserRepository) Create(user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	return r.users.Mutate(func(items []models.User) ([]models.User, error) {
		for _, u := range items {
			if u.Username == user.Username || strings.EqualFold(u.Email, user.Email) {
				return nil, fmt.Errorf("user %s %w", user.Username, ErrDuplicate)
			}
		}
		return append(items, *user), nil
	})
}

// GetByUsername returns the user with the given username.
func (r *JSONUserRepository) GetByUsername(username string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.Username == username }, "username", username)
}

// GetByEmail returns the user with the given email, ignoring case.
func (r *JSONUserRepository) GetByEmail(email string) (*models.User, error) {
	return r.find(func(u models.User) bool { return strings.EqualFold(u.Email, email) }, "email", email)
}

// GetByID returns the user with the given ID.
func (r *JSONUserRepository) GetByID(id string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.ID == id }, "ID", id)
}

func (r *JSONUserRepository) find(pred func(models.User) bool, field, value string) (*models.User, error) {
	user, ok, err := r.users.Find(pred)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("user with %s %s %w", field, value, ErrNotFound)
	}
	return &user, nil
}
