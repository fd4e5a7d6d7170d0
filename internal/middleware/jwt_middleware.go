package middleware

import (
	"strings"

	"myshop/internal/authz"
	"myshop/internal/services"
	pkgerrors "myshop/pkg/errors"
	"myshop/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

const identityKey = "identity"

// Authenticate attaches the caller's identity when a Bearer token is present.
// Requests without an Authorization header pass through anonymously; the
// authorization policy decides what they may do. A malformed or invalid token is
// rejected with 401.
func Authenticate(authService *services.AuthService, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Next()
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "Authorization header format must be 'Bearer <token>'")
		}

		identity, err := authService.Identify(c.UserContext(), strings.TrimSpace(parts[1]))
		if err != nil {
			logger.FromContext(c.UserContext(), log).Debug().Err(err).Msg("token rejected")
			return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "Invalid or expired token")
		}

		c.Locals(identityKey, identity)
		return c.Next()
	}
}

// IdentityFrom returns the identity attached by Authenticate, or nil for anonymous callers.
func IdentityFrom(c *fiber.Ctx) *authz.Identity {
	identity, _ := c.Locals(identityKey).(*authz.Identity)
	return identity
}
