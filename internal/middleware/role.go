package middleware

import (
	"net/http" // 403 on a role mismatch

	"github.com/labstack/echo/v4" // Echo middleware types
)

// RequireRole lets the request through only when the role claim stored by
// JWTAuth is one of roles.  It must be mounted after JWTAuth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	// Build the lookup set once at registration time.
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A missing or non-string claim reads as "" and is rejected.
			role, _ := c.Get(ContextRole).(string)
			if !allowed[role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": "role not allowed"})
			}
			return next(c) // role accepted
		}
	}
}
