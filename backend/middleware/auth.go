package middleware

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"lms/backend/identity"
	"lms/backend/utils"
)

const localUser = "authUser"

// AuthMiddleware admits a request only if the identity provider accepts its
// bearer token. Nothing is cached; every request is checked again.
func AuthMiddleware(provider identity.Provider, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := utils.ExtractBearerToken(c)
		if err != nil {
			return utils.Unauthorized(c, "Missing Authorization header")
		}

		// Structurally broken or expired tokens never reach the provider.
		if _, err := utils.PeekSubject(token, time.Now()); err != nil {
			return utils.Unauthorized(c, "Invalid or expired token")
		}

		user, err := provider.GetUser(c.UserContext(), token)
		if err != nil {
			var apiErr *identity.APIError
			if errors.As(err, &apiErr) {
				return utils.Unauthorized(c, "Invalid or expired token")
			}
			logger.Error("auth check failed", zap.String("path", c.Path()), zap.Error(err))
			return utils.InternalServerError(c, "Auth check failed")
		}
		if user == nil || user.ID == uuid.Nil {
			return utils.Unauthorized(c, "Invalid or expired token")
		}

		c.Locals(localUser, user)
		return c.Next()
	}
}

// CurrentUser returns the user admitted by AuthMiddleware, or nil.
func CurrentUser(c *fiber.Ctx) *identity.User {
	user, _ := c.Locals(localUser).(*identity.User)
	return user
}
