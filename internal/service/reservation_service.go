// Package service holds the booking core: the availability engine and the
// reservation lifecycle manager built on top of it.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/queue"
	"github.com/iliyamo/venue-reservation/internal/repository"
)

// Upcoming window bounds, in hours.
const (
	DefaultUpcomingHours = 24
	MaxUpcomingHours     = 168
)

// Stats periods accepted by VenueStats.
const (
	PeriodDay   = "dia"
	PeriodWeek  = "semana"
	PeriodMonth = "mes"
)

// EventPublisher receives lifecycle events after they commit.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

// CreateInput is a single booking request.
type CreateInput struct {
	OwnerUserID string
	VenueID     string
	DateTime    time.Time
	PartySize   int
	Notes       *string
}

// InviteeInput names one guest of a group reservation.
type InviteeInput struct {
	UserID    string
	Confirmed bool
}

// GroupInput is a booking request with an invitee list.  Invitees do not add
// to PartySize.
type GroupInput struct {
	CreateInput
	Invitees []InviteeInput
}

// InviteeFailure reports an invitee that could not be put on the ledger.
type InviteeFailure struct {
	UserID string `json:"usuario_id"`
	Reason string `json:"motivo"`
}

// GroupResult distinguishes "booking confirmed, N of M invitees recorded"
// from an outright failure, which is returned as an error instead.
type GroupResult struct {
	Reservation       *model.Reservation
	InviteesRequested int
	InviteesRecorded  int
	Failures          []InviteeFailure
}

// Changes is a partial update.  Nil fields are left untouched.
type Changes struct {
	DateTime  *time.Time
	PartySize *int
	Notes     *string
}

func (c Changes) empty() bool {
	return c.DateTime == nil && c.PartySize == nil && c.Notes == nil
}

// ReservationService owns every write to reservation rows.
type ReservationService struct {
	store  repository.Store
	engine *AvailabilityEngine
	events EventPublisher
	log    *zap.Logger
	now    func() time.Time
	newID  func() string
}

// Option customizes a ReservationService.
type Option func(*ReservationService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *ReservationService) { s.now = now }
}

// WithIDGenerator replaces uuid.NewString.
func WithIDGenerator(gen func() string) Option {
	return func(s *ReservationService) { s.newID = gen }
}

// WithPublisher sets where lifecycle events go.
func WithPublisher(p EventPublisher) Option {
	return func(s *ReservationService) { s.events = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *ReservationService) { s.log = l }
}

// NewReservationService wires the lifecycle manager.
func NewReservationService(store repository.Store, engine *AvailabilityEngine, opts ...Option) *ReservationService {
	s := &ReservationService{
		store:  store,
		engine: engine,
		events: queue.NopPublisher{},
		log:    zap.NewNop(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine exposes the availability engine for read-only checks.
func (s *ReservationService) Engine() *AvailabilityEngine { return s.engine }

// CreateReservation books in.PartySize seats.  The capacity check and the
// insert run in one transaction holding the bucket lock.
func (s *ReservationService) CreateReservation(ctx context.Context, in CreateInput) (*model.Reservation, error) {
	res, err := s.create(ctx, in)
	if err != nil {
		return nil, err
	}
	s.enrich(ctx, res)
	s.publish(ctx, queue.EventCreated, res, "")
	return res, nil
}

// CreateGroupReservation books like CreateReservation and then records the
// invitees.  Invitee writes happen after the booking committed; a failed
// write is reported in the result and never undoes the booking.
func (s *ReservationService) CreateGroupReservation(ctx context.Context, in GroupInput) (*GroupResult, error) {
	res, err := s.create(ctx, in.CreateInput)
	if err != nil {
		return nil, err
	}
	out := &GroupResult{Reservation: res, InviteesRequested: len(in.Invitees)}

	// The booking is already durable, so a caller hanging up must not cut the
	// ledger short.
	ictx := context.WithoutCancel(ctx)
	seen := make(map[string]bool, len(in.Invitees))
	for _, inv := range in.Invitees {
		userID := strings.TrimSpace(inv.UserID)
		reason := ""
		switch {
		case userID == "":
			reason = "empty user id"
		case userID == res.OwnerUserID:
			reason = "owner cannot be invited"
		case seen[userID]:
			reason = "duplicate invitee"
		}
		if reason == "" {
			seen[userID] = true
			row := &model.GroupInvitee{
				ID:            s.newID(),
				ReservationID: res.ID,
				UserID:        userID,
				Confirmed:     inv.Confirmed,
				CreatedAt:     s.now().UTC(),
			}
			err := s.store.InsertInvitee(ictx, row)
			switch {
			case err == nil:
				res.Invitees = append(res.Invitees, *row)
				out.InviteesRecorded++
				continue
			case errors.Is(err, repository.ErrDuplicateInvitee):
				reason = "duplicate invitee"
			default:
				reason = "could not be recorded"
			}
			s.log.Warn("invitee not recorded",
				zap.String("reservation_id", res.ID),
				zap.String("invitee", userID),
				zap.Error(err))
		}
		out.Failures = append(out.Failures, InviteeFailure{UserID: userID, Reason: reason})
	}
	if len(out.Failures) > 0 {
		s.log.Warn("group reservation ledger incomplete",
			zap.String("reservation_id", res.ID),
			zap.Int("requested", out.InviteesRequested),
			zap.Int("recorded", out.InviteesRecorded))
	}

	s.enrich(ctx, res)
	s.publish(ctx, queue.EventCreated, res, "")
	return out, nil
}

func (s *ReservationService) create(ctx context.Context, in CreateInput) (*model.Reservation, error) {
	now := s.now().UTC()
	if err := validateCreate(in, now); err != nil {
		return nil, err
	}
	res := &model.Reservation{
		ID:          s.newID(),
		VenueID:     in.VenueID,
		OwnerUserID: in.OwnerUserID,
		DateTime:    in.DateTime.UTC(),
		Date:        s.engine.Bucket(in.DateTime),
		PartySize:   in.PartySize,
		Status:      model.StatusConfirmed,
		Notes:       in.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		result, err := s.engine.checkLocked(ctx, tx, res.VenueID, res.Date, res.PartySize, "")
		if err != nil {
			return err
		}
		if err := admit(result); err != nil {
			return err
		}
		return tx.InsertReservation(ctx, res)
	})
	if err != nil {
		return nil, fmt.Errorf("create reservation: %w", err)
	}
	return res, nil
}

func validateCreate(in CreateInput, now time.Time) error {
	switch {
	case in.OwnerUserID == "":
		return invalid("usuario_id", "is required")
	case in.VenueID == "":
		return invalid("lugar_id", "is required")
	case in.DateTime.IsZero():
		return invalid("fecha_hora", "is required")
	case in.DateTime.Before(now):
		return invalid("fecha_hora", "must not be in the past")
	case in.PartySize < 1:
		return invalid("personas", "must be at least 1")
	}
	return nil
}

// UpdateReservation applies ch on behalf of requesterID.  Availability is
// re-checked, excluding the reservation's own seats, only when the date/time
// or the party size actually changes.
func (s *ReservationService) UpdateReservation(ctx context.Context, requesterID, id string, ch Changes) (*model.Reservation, error) {
	now := s.now().UTC()
	switch {
	case ch.empty():
		return nil, invalid("cambios", "at least one of fecha_hora, personas, notas is required")
	case ch.PartySize != nil && *ch.PartySize < 1:
		return nil, invalid("personas", "must be at least 1")
	case ch.DateTime != nil && ch.DateTime.Before(now):
		return nil, invalid("fecha_hora", "must not be in the past")
	}

	var updated *model.Reservation
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		cur, err := s.ownedForUpdate(ctx, tx, requesterID, id)
		if err != nil {
			return err
		}
		next := cur.Clone()
		if ch.DateTime != nil {
			next.DateTime = ch.DateTime.UTC()
			next.Date = s.engine.Bucket(next.DateTime)
		}
		if ch.PartySize != nil {
			next.PartySize = *ch.PartySize
		}
		if ch.Notes != nil {
			next.Notes = ch.Notes
		}
		if !next.DateTime.Equal(cur.DateTime) || next.PartySize != cur.PartySize {
			result, err := s.engine.checkLocked(ctx, tx, next.VenueID, next.Date, next.PartySize, cur.ID)
			if err != nil {
				return err
			}
			if err := admit(result); err != nil {
				return err
			}
		}
		next.UpdatedAt = now
		if err := tx.UpdateReservation(ctx, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update reservation %s: %w", id, err)
	}
	s.enrich(ctx, updated)
	s.publish(ctx, queue.EventUpdated, updated, "")
	return updated, nil
}

// CancelReservation moves a confirmed reservation to cancelled, which frees
// its seats for the bucket immediately.
func (s *ReservationService) CancelReservation(ctx context.Context, requesterID, id string, reason *string) (*model.Reservation, error) {
	now := s.now().UTC()
	var cancelled *model.Reservation
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		cur, err := s.ownedForUpdate(ctx, tx, requesterID, id)
		if err != nil {
			return err
		}
		next := cur.Clone()
		next.Status = model.StatusCancelled
		next.CancellationReason = reason
		next.UpdatedAt = now
		if err := tx.UpdateReservation(ctx, next); err != nil {
			return err
		}
		cancelled = next
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cancel reservation %s: %w", id, err)
	}
	s.enrich(ctx, cancelled)
	why := ""
	if reason != nil {
		why = *reason
	}
	s.publish(ctx, queue.EventCancelled, cancelled, why)
	return cancelled, nil
}

// ownedForUpdate locks a reservation row and checks it can still change.
func (s *ReservationService) ownedForUpdate(ctx context.Context, tx repository.Tx, requesterID, id string) (*model.Reservation, error) {
	cur, err := tx.GetReservationForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if cur.OwnerUserID != requesterID {
		return nil, ErrForbidden
	}
	switch cur.Status {
	case model.StatusCancelled:
		return nil, ErrAlreadyCancelled
	case model.StatusCompleted:
		return nil, ErrAlreadyCompleted
	}
	return cur, nil
}

// GetReservation returns one reservation with its invitee ledger.  Only the
// owner may read it.
func (s *ReservationService) GetReservation(ctx context.Context, requesterID, id string) (*model.Reservation, error) {
	res, err := s.store.GetReservation(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get reservation %s: %w", id, err)
	}
	if res.OwnerUserID != requesterID {
		return nil, ErrForbidden
	}
	invitees, err := s.store.ListInvitees(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list invitees of %s: %w", id, err)
	}
	if len(invitees) > 0 {
		res.Invitees = invitees
	}
	s.enrich(ctx, res)
	return res, nil
}

// ListByOwner returns the owner's history, newest first.
func (s *ReservationService) ListByOwner(ctx context.Context, ownerID, status string) ([]*model.Reservation, error) {
	if err := validateStatus(status); err != nil {
		return nil, err
	}
	list, err := s.store.ListByOwner(ctx, ownerID, repository.ListFilter{Status: status})
	if err != nil {
		return nil, fmt.Errorf("list reservations of %s: %w", ownerID, err)
	}
	s.enrichAll(ctx, list)
	return list, nil
}

// ListByVenue returns a venue's reservations in chronological order,
// optionally limited to one bucket date and one status.
func (s *ReservationService) ListByVenue(ctx context.Context, venueID, date, status string) ([]*model.Reservation, error) {
	if date != "" {
		if _, err := time.Parse(model.DateLayout, date); err != nil {
			return nil, invalid("fecha", "must be a YYYY-MM-DD date")
		}
	}
	if err := validateStatus(status); err != nil {
		return nil, err
	}
	if err := s.venueExists(ctx, venueID); err != nil {
		return nil, err
	}
	list, err := s.store.ListByVenue(ctx, venueID, repository.ListFilter{Date: date, Status: status})
	if err != nil {
		return nil, fmt.Errorf("list reservations at %s: %w", venueID, err)
	}
	s.enrichAll(ctx, list)
	return list, nil
}

// Upcoming returns confirmed reservations starting within the next hours.
// Zero hours means DefaultUpcomingHours.
func (s *ReservationService) Upcoming(ctx context.Context, venueID string, hours int) ([]*model.Reservation, error) {
	if hours == 0 {
		hours = DefaultUpcomingHours
	}
	if hours < 0 || hours > MaxUpcomingHours {
		return nil, invalid("horas", fmt.Sprintf("must be between 1 and %d", MaxUpcomingHours))
	}
	if err := s.venueExists(ctx, venueID); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	list, err := s.store.ListByVenue(ctx, venueID, repository.ListFilter{
		Status: model.StatusConfirmed,
		From:   now,
		To:     now.Add(time.Duration(hours) * time.Hour),
	})
	if err != nil {
		return nil, fmt.Errorf("upcoming reservations at %s: %w", venueID, err)
	}
	s.enrichAll(ctx, list)
	return list, nil
}

// VenueStats aggregates the reservations of a venue over the period ending
// now.  Guests are counted for reservations that were not cancelled.
func (s *ReservationService) VenueStats(ctx context.Context, venueID, period string) (*model.VenueStats, error) {
	now := s.now().UTC()
	var from time.Time
	switch period {
	case PeriodDay:
		from = now.AddDate(0, 0, -1)
	case PeriodWeek:
		from = now.AddDate(0, 0, -7)
	case "", PeriodMonth:
		period = PeriodMonth
		from = now.AddDate(0, -1, 0)
	default:
		return nil, invalid("periodo", "must be one of dia, semana, mes")
	}
	if err := s.venueExists(ctx, venueID); err != nil {
		return nil, err
	}
	list, err := s.store.ListByVenue(ctx, venueID, repository.ListFilter{From: from, To: now})
	if err != nil {
		return nil, fmt.Errorf("stats for %s: %w", venueID, err)
	}

	stats := &model.VenueStats{
		VenueID: venueID,
		Period:  period,
		From:    from,
		To:      now,
		Total:   len(list),
		ByStatus: map[string]int{
			model.StatusConfirmed: 0,
			model.StatusCancelled: 0,
			model.StatusCompleted: 0,
		},
	}
	perDate := make(map[string]int)
	for _, r := range list {
		stats.ByStatus[r.Status]++
		if r.Status == model.StatusCancelled {
			continue
		}
		stats.ConfirmedGuests += r.PartySize
		perDate[r.Date] += r.PartySize
	}
	for date, guests := range perDate {
		if guests > stats.BusiestGuests || (guests == stats.BusiestGuests && date < stats.BusiestDate) {
			stats.BusiestDate, stats.BusiestGuests = date, guests
		}
	}
	return stats, nil
}

// CompleteElapsed marks confirmed reservations as completed once their whole
// bucket day is over, i.e. they fall on a date earlier than the bucket of
// before.  Reservations later on before's own date keep holding seats so the
// day's pool is never resold.
func (s *ReservationService) CompleteElapsed(ctx context.Context, before time.Time) (int64, error) {
	cutoff := s.engine.DayStart(before)
	n, err := s.store.CompleteBefore(ctx, cutoff, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("complete elapsed reservations: %w", err)
	}
	return n, nil
}

func (s *ReservationService) venueExists(ctx context.Context, venueID string) error {
	if _, err := s.store.GetVenue(ctx, venueID); err != nil {
		if errors.Is(err, repository.ErrVenueNotFound) {
			return ErrVenueNotFound
		}
		return fmt.Errorf("get venue %s: %w", venueID, err)
	}
	return nil
}

func validateStatus(status string) error {
	switch status {
	case "", model.StatusConfirmed, model.StatusCancelled, model.StatusCompleted:
		return nil
	}
	return invalid("estado", "must be one of confirmada, cancelada, completada")
}

// enrich fills display fields.  Lookup failures leave them empty.
func (s *ReservationService) enrich(ctx context.Context, r *model.Reservation) {
	s.enrichAll(ctx, []*model.Reservation{r})
}

func (s *ReservationService) enrichAll(ctx context.Context, list []*model.Reservation) {
	venues := make(map[string]string)
	users := make(map[string]string)
	for _, r := range list {
		name, ok := venues[r.VenueID]
		if !ok {
			if v, err := s.store.GetVenue(ctx, r.VenueID); err == nil {
				name = v.Name
			} else {
				s.log.Debug("venue name unavailable", zap.String("venue_id", r.VenueID), zap.Error(err))
			}
			venues[r.VenueID] = name
		}
		r.VenueName = name

		owner, ok := users[r.OwnerUserID]
		if !ok {
			if n, err := s.store.UserName(ctx, r.OwnerUserID); err == nil {
				owner = n
			} else {
				s.log.Debug("owner name unavailable", zap.String("user_id", r.OwnerUserID), zap.Error(err))
			}
			users[r.OwnerUserID] = owner
		}
		r.OwnerName = owner
	}
}

// publish emits an event after commit.  Broker failures are logged and do
// not affect the already committed change.
func (s *ReservationService) publish(ctx context.Context, typ string, r *model.Reservation, reason string) {
	ev := queue.ReservationEvent{
		Type:          typ,
		ReservationID: r.ID,
		VenueID:       r.VenueID,
		VenueName:     r.VenueName,
		UserID:        r.OwnerUserID,
		DateTime:      r.DateTime,
		Date:          r.Date,
		PartySize:     r.PartySize,
		Status:        r.Status,
		Invitees:      len(r.Invitees),
		Reason:        reason,
		OccurredAt:    s.now().UTC(),
	}
	if err := s.events.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.log.Warn("publish reservation event",
			zap.String("type", typ),
			zap.String("reservation_id", r.ID),
			zap.Error(err))
	}
}
