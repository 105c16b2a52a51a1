package auth

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/learnhub/internal/logging"
	"github.com/Skotchmaster/learnhub/internal/tokens"
)

// Allowed reports whether role is in the allowed set.
func Allowed(role tokens.Role, allowed []tokens.Role) bool {
	return slices.Contains(allowed, role)
}

// RequireRoles must run after AccessGuard. Without an identity on the request
// context it answers 401, with a role outside allowed it answers 403.
func RequireRoles(allowed ...tokens.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			id, ok := IdentityFrom(ctx)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}
			if !Allowed(id.Role, allowed) {
				logging.FromContext(ctx).Warn("access_denied",
					"status", http.StatusForbidden, "reason", "role_not_allowed",
					"user_id", id.UserID, "role", id.Role.String())
				return echo.NewHTTPError(http.StatusForbidden, "you don't have enough rights")
			}
			return next(c)
		}
	}
}
