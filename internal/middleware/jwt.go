package middleware // reusable HTTP middleware for the reservation API

import (
	"net/http" // status codes for auth failures
	"strings"  // bearer prefix handling

	"github.com/labstack/echo/v4" // Echo middleware and context types

	"github.com/iliyamo/venue-reservation/internal/utils" // token verification
)

// JWTAuth validates the bearer access token and stores its subject and role
// in the context under ContextUserID and ContextRole.  Handlers behind it can
// rely on UserID(c) being non-empty.
func JWTAuth(secret string) echo.MiddlewareFunc {
	// Echo calls the outer function once when the middleware is registered.
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		// The inner handler runs for every request.
		return func(c echo.Context) error {
			// The header must read "Bearer <token>".
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "missing bearer token"})
			}
			// Signature, algorithm, expiry and subject are checked here.
			claims, err := utils.ParseAccessToken(secret, strings.TrimSpace(raw))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid token"})
			}
			// Expose the identity to downstream middleware and handlers.
			c.Set(ContextUserID, claims.Subject)
			c.Set(ContextRole, claims.Role)
			return next(c) // continue the chain
		}
	}
}
