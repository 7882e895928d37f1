package middleware

import (
	"strings"

	"harvestlink/internal/models"
	"harvestlink/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Locals keys set by AuthRequired.
const (
	LocalUserID   = "user_id"
	LocalUsername = "username"
	LocalRole     = "role"
)

// AuthRequired is a Fiber middleware to check for a valid JWT token.
func AuthRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header is required",
			})
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header format must be 'Bearer <token>'",
			})
		}

		claims, err := authService.ValidateToken(parts[1])
		if err == nil {
			var actor services.Actor
			if actor, err = services.ActorFromClaims(claims); err == nil {
				c.Locals(LocalUserID, actor.UserID)
				c.Locals(LocalUsername, actor.Username)
				c.Locals(LocalRole, actor.Role)
				return c.Next()
			}
		}

		log.Debug().Err(err).Str("path", c.Path()).Msg("JWT validation failed")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Invalid or expired token",
			"error":   err.Error(),
		})
	}
}

// RoleRequired rejects callers whose role is not one of roles. It must run
// after AuthRequired.
func RoleRequired(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := ActorFromContext(c)
		for _, r := range roles {
			if actor.Role == r {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": "Your role cannot perform this action",
			"error":   services.ErrForbidden.Error(),
		})
	}
}

// ActorFromContext returns the caller stored by AuthRequired, or the zero
// Actor on unauthenticated routes.
func ActorFromContext(c *fiber.Ctx) services.Actor {
	userID, _ := c.Locals(LocalUserID).(string)
	username, _ := c.Locals(LocalUsername).(string)
	role, _ := c.Locals(LocalRole).(models.Role)
	return services.Actor{UserID: userID, Username: username, Role: role}
}
