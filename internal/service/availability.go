package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/repository"
)

// AvailabilityEngine answers "does partySize still fit in this venue on this
// date".  Usage is always recomputed from the store; there is no cached
// counter to keep in sync.
type AvailabilityEngine struct {
	store repository.Store
	loc   *time.Location
}

// NewAvailabilityEngine returns an engine that buckets reservations by the
// calendar date they fall on in loc.  A nil loc means UTC.
func NewAvailabilityEngine(store repository.Store, loc *time.Location) *AvailabilityEngine {
	if loc == nil {
		loc = time.UTC
	}
	return &AvailabilityEngine{store: store, loc: loc}
}

// Location is the time zone used to derive buckets.
func (e *AvailabilityEngine) Location() *time.Location { return e.loc }

// Bucket returns the capacity bucket date of t.
func (e *AvailabilityEngine) Bucket(t time.Time) string {
	return t.In(e.loc).Format(model.DateLayout)
}

// DayStart returns midnight in the engine's zone of the bucket t falls in.
func (e *AvailabilityEngine) DayStart(t time.Time) time.Time {
	in := t.In(e.loc)
	return time.Date(in.Year(), in.Month(), in.Day(), 0, 0, 0, 0, e.loc)
}

// Check is the read-only availability query.  It reserves nothing; a
// positive answer may be stale by the time the caller books.
func (e *AvailabilityEngine) Check(ctx context.Context, venueID, date string, partySize int, excludeID string) (model.AvailabilityResult, error) {
	if err := validateCheck(venueID, date, partySize); err != nil {
		return model.AvailabilityResult{}, err
	}
	venue, err := bookableVenue(ctx, e.store, venueID)
	if err != nil {
		return model.AvailabilityResult{}, err
	}
	return measure(ctx, e.store, venue, date, partySize, excludeID)
}

// checkLocked runs the same computation inside tx after taking the bucket
// lock, so the answer holds until tx ends.
func (e *AvailabilityEngine) checkLocked(ctx context.Context, tx repository.Tx, venueID, date string, partySize int, excludeID string) (model.AvailabilityResult, error) {
	venue, err := bookableVenue(ctx, tx, venueID)
	if err != nil {
		return model.AvailabilityResult{}, err
	}
	if err := tx.LockBucket(ctx, venueID, date); err != nil {
		return model.AvailabilityResult{}, fmt.Errorf("lock bucket %s/%s: %w", venueID, date, err)
	}
	return measure(ctx, tx, venue, date, partySize, excludeID)
}

func validateCheck(venueID, date string, partySize int) error {
	if venueID == "" {
		return invalid("lugar_id", "is required")
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return invalid("fecha", "must be a YYYY-MM-DD date")
	}
	if partySize < 1 {
		return invalid("personas", "must be at least 1")
	}
	return nil
}

// bookableVenue loads a venue and treats an inactive one as missing.
func bookableVenue(ctx context.Context, r repository.CapacityReader, venueID string) (*model.Venue, error) {
	venue, err := r.GetVenue(ctx, venueID)
	if err != nil {
		if errors.Is(err, repository.ErrVenueNotFound) {
			return nil, ErrVenueNotFound
		}
		return nil, fmt.Errorf("get venue %s: %w", venueID, err)
	}
	if !venue.Active {
		return nil, ErrVenueNotFound
	}
	return venue, nil
}

func measure(ctx context.Context, r repository.CapacityReader, venue *model.Venue, date string, partySize int, excludeID string) (model.AvailabilityResult, error) {
	closed, err := r.IsClosed(ctx, venue.ID, date)
	if err != nil {
		return model.AvailabilityResult{}, fmt.Errorf("closure lookup: %w", err)
	}
	used, err := r.SumConfirmed(ctx, venue.ID, date, excludeID)
	if err != nil {
		return model.AvailabilityResult{}, fmt.Errorf("sum confirmed: %w", err)
	}
	remaining := venue.Capacity - used
	if remaining < 0 {
		remaining = 0
	}
	return model.AvailabilityResult{
		Available:          !closed && remaining >= partySize,
		VenueID:            venue.ID,
		Date:               date,
		CapacityTotal:      venue.Capacity,
		CurrentUsage:       used,
		CapacityRemaining:  remaining,
		PartySizeRequested: partySize,
		Closed:             closed,
	}, nil
}

// admit turns a negative result into the matching business error.
func admit(res model.AvailabilityResult) error {
	switch {
	case res.Closed:
		return fmt.Errorf("%w: %s", ErrVenueClosed, res.Date)
	case !res.Available:
		return &CapacityError{Result: res}
	}
	return nil
}
