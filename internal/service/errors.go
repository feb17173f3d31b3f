package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/venue-reservation/internal/model"
)

// Business-rule outcomes.  Handlers classify them with errors.Is and map
// each one to an HTTP status; anything else is an internal failure.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrVenueNotFound    = errors.New("venue not found")
	ErrVenueClosed      = errors.New("venue closed on requested date")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrNotFound         = errors.New("reservation not found")
	ErrForbidden        = errors.New("forbidden")
	ErrAlreadyCancelled = errors.New("reservation already cancelled")
	ErrAlreadyCompleted = errors.New("reservation already completed")
)

// CapacityError is returned when a booking does not fit in its bucket.  It
// carries the availability result so callers can show what is left.
type CapacityError struct {
	Result model.AvailabilityResult
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity exceeded: %d requested, %d of %d remaining on %s",
		e.Result.PartySizeRequested, e.Result.CapacityRemaining, e.Result.CapacityTotal, e.Result.Date)
}

func (e *CapacityError) Unwrap() error { return ErrCapacityExceeded }

// ValidationError describes one malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
