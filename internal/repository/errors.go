// Package repository defines the persistence boundary of the booking core
// and its MySQL implementation.  Sentinel errors below are shared by every
// Store implementation so the service layer can classify failures without
// knowing which backend produced them.
package repository

import "errors"

// ErrVenueNotFound is returned when a venue lookup matches no row.
var ErrVenueNotFound = errors.New("venue not found")

// ErrReservationNotFound is returned when a reservation lookup matches no
// row.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrUserNotFound is returned when no display record exists for a user.
var ErrUserNotFound = errors.New("user not found")

// ErrDuplicateInvitee is returned when a user is already on a reservation's
// invitee ledger.
var ErrDuplicateInvitee = errors.New("invitee already recorded")
