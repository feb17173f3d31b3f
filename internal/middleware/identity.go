package middleware

import "github.com/labstack/echo/v4" // request context accessors

// Context keys set by JWTAuth.
const (
	ContextUserID = "user_id" // token subject
	ContextRole   = "role"    // role claim, may be empty
)

// UserID returns the authenticated user id, or "" when the request carries
// no identity.
func UserID(c echo.Context) string {
	v, _ := c.Get(ContextUserID).(string) // unset reads as ""
	return v
}

// clientKey identifies the caller for rate limiting and caching.
// Anonymous callers share the "guest" identity.
func clientKey(c echo.Context) string {
	if id := UserID(c); id != "" {
		return id
	}
	return "guest" // shared bucket for unauthenticated traffic
}
