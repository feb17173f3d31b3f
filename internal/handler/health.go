package handler

import (
	"context"  // bounded dependency check
	"net/http" // status codes
	"time"

	"github.com/labstack/echo/v4" // Echo handler types
)

// Health reports liveness.  When check is non-nil it must succeed within
// two seconds, otherwise the endpoint answers 503 so load balancers stop
// routing to an instance that lost its database.
func Health(check func(context.Context) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		// The memory store has no dependency to check.
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				// The error itself is not exposed to callers.
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
			}
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	}
}
