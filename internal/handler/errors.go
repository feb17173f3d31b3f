package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/venue-reservation/internal/service"
)

// errorBody is the JSON shape of every failure response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Campo   string `json:"campo,omitempty"`
	Detalle any    `json:"detalle,omitempty"`
}

// respondError maps a service error to its HTTP status.  Unexpected errors
// are logged and hidden behind a generic 500.
func (h *ReservationHandler) respondError(c echo.Context, err error) error {
	var (
		capErr *service.CapacityError
		valErr *service.ValidationError
	)
	switch {
	case errors.As(err, &capErr):
		return c.JSON(http.StatusBadRequest, errorBody{
			Error:   "capacity_exceeded",
			Message: "the venue does not have enough capacity on that date",
			Detalle: capErr.Result,
		})
	case errors.As(err, &valErr):
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid_input", Message: valErr.Error(), Campo: valErr.Field})
	case errors.Is(err, service.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid_input", Message: "invalid input"})
	case errors.Is(err, service.ErrVenueNotFound):
		return c.JSON(http.StatusNotFound, errorBody{Error: "venue_not_found", Message: "venue not found"})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorBody{Error: "not_found", Message: "reservation not found"})
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, errorBody{Error: "forbidden", Message: "only the owner can access this reservation"})
	case errors.Is(err, service.ErrAlreadyCancelled):
		return c.JSON(http.StatusBadRequest, errorBody{Error: "already_cancelled", Message: "reservation is already cancelled"})
	case errors.Is(err, service.ErrAlreadyCompleted):
		return c.JSON(http.StatusBadRequest, errorBody{Error: "already_completed", Message: "reservation is already completed"})
	case errors.Is(err, service.ErrVenueClosed):
		return c.JSON(http.StatusBadRequest, errorBody{Error: "venue_closed", Message: "venue is closed on that date"})
	case errors.Is(err, context.DeadlineExceeded):
		h.log.Warn("request timed out", zap.String("path", c.Path()), zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, errorBody{Error: "timeout", Message: "request timed out"})
	}
	h.log.Error("request failed",
		zap.String("method", c.Request().Method),
		zap.String("path", c.Path()),
		zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		zap.Error(err))
	return c.JSON(http.StatusInternalServerError, errorBody{Error: "internal_error", Message: "internal server error"})
}
