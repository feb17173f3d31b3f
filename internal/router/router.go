// Package router registers HTTP routes and their middleware.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-reservation/internal/handler"
	"github.com/iliyamo/venue-reservation/internal/middleware"
)

// RegisterRoutes registers the unauthenticated routes.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc) {
	e.GET("/healthz", health)
}

// ReservationRoutes carries the middleware the /reservas group needs.
type ReservationRoutes struct {
	JWTSecret string
	// WriteLimiter throttles create, update and cancel.
	WriteLimiter echo.MiddlewareFunc
	// StatsCache caches the statistics endpoint.
	StatsCache echo.MiddlewareFunc
	// VenueRoles, when non-empty, restricts the venue-wide views to these
	// roles.
	VenueRoles []string
}

// RegisterReservations registers every /reservas route behind JWTAuth.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, rt ReservationRoutes) {
	limit := orPass(rt.WriteLimiter)
	cache := orPass(rt.StatsCache)

	g := e.Group("/reservas", middleware.JWTAuth(rt.JWTSecret))
	g.POST("", h.Create, limit)
	g.POST("/grupal", h.CreateGroup, limit)
	g.GET("/usuario", h.ListMine)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update, limit)
	g.DELETE("/:id", h.Cancel, limit)

	venue := g.Group("/lugar/:lugar_id")
	if len(rt.VenueRoles) > 0 {
		venue.Use(middleware.RequireRole(rt.VenueRoles...))
	}
	venue.GET("", h.ListByVenue)
	venue.GET("/disponibilidad", h.Availability)
	venue.GET("/estadisticas", h.Stats, cache)
	venue.GET("/proximas", h.Upcoming)
}

func orPass(m echo.MiddlewareFunc) echo.MiddlewareFunc {
	if m != nil {
		return m
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
}
