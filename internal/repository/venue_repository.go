// Package repository contains data access logic separated from HTTP handlers.
// This file reads the venue registry: capacity, active flag and the
// schedule exceptions (closed dates) a venue has recorded.  Venues are
// written by the venue-management service; the booking core never mutates
// them.
package repository

import (
	"context"      // context allows passing deadlines and cancellation signals to DB operations
	"database/sql" // sql provides generic database operations and drivers
	"errors"
	"fmt"

	"github.com/iliyamo/venue-reservation/internal/model"
)

// VenueRepo encapsulates all queries against venues and venue_closures.
type VenueRepo struct{}

// NewVenueRepo constructs a VenueRepo.
func NewVenueRepo() *VenueRepo { return &VenueRepo{} }

// GetByID fetches a venue by its ID regardless of the active flag.  It
// returns ErrVenueNotFound if no row is found.  Callers decide how an
// inactive venue is treated.
func (r *VenueRepo) GetByID(ctx context.Context, q querier, id string) (*model.Venue, error) {
	const sel = `SELECT id, name, capacity, is_active FROM venues WHERE id = ?`
	var v model.Venue
	if err := q.QueryRowContext(ctx, sel, id).Scan(&v.ID, &v.Name, &v.Capacity, &v.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVenueNotFound
		}
		return nil, fmt.Errorf("load venue %s: %w", id, err)
	}
	return &v, nil
}

// IsClosed reports whether the venue recorded a closure for the given
// calendar date.
func (r *VenueRepo) IsClosed(ctx context.Context, q querier, venueID, date string) (bool, error) {
	const sel = `SELECT COUNT(*) FROM venue_closures WHERE venue_id = ? AND closed_on = ?`
	var n int
	if err := q.QueryRowContext(ctx, sel, venueID, date).Scan(&n); err != nil {
		return false, fmt.Errorf("load closures for venue %s: %w", venueID, err)
	}
	return n > 0, nil
}
