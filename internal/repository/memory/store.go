// Package memory is an in-process implementation of repository.Store.  It
// backs STORE_DRIVER=memory for local runs and the service tests.  A single
// mutex is held for the whole of RunInTx, which makes every transaction
// serializable; writes go to a private copy that replaces the live data only
// when the transaction function succeeds.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/repository"
)

// Store keeps venues, reservations and invitee ledgers in maps.
type Store struct {
	mu           sync.Mutex
	venues       map[string]model.Venue
	closures     map[string]bool // venueID + "|" + date
	users        map[string]string
	reservations map[string]*model.Reservation
	invitees     map[string][]model.GroupInvitee
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		venues:       make(map[string]model.Venue),
		closures:     make(map[string]bool),
		users:        make(map[string]string),
		reservations: make(map[string]*model.Reservation),
		invitees:     make(map[string][]model.GroupInvitee),
	}
}

// Seed is the JSON document accepted by LoadSeedFile.
type Seed struct {
	Venues   []model.Venue `json:"venues"`
	Users    []model.User  `json:"users"`
	Closures []struct {
		VenueID string `json:"lugar_id"`
		Date    string `json:"fecha"`
	} `json:"closures"`
}

// LoadSeedFile populates the registry from a JSON seed file.
func (s *Store) LoadSeedFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}
	for _, v := range seed.Venues {
		s.AddVenue(v)
	}
	for _, u := range seed.Users {
		s.AddUser(u.ID, u.Name)
	}
	for _, c := range seed.Closures {
		s.AddClosure(c.VenueID, c.Date)
	}
	return nil
}

// AddVenue inserts or replaces a venue.
func (s *Store) AddVenue(v model.Venue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.venues[v.ID] = v
}

// AddClosure records a schedule exception closing venueID on date.
func (s *Store) AddClosure(venueID, date string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closures[venueID+"|"+date] = true
}

// AddUser records a display name.
func (s *Store) AddUser(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = name
}

// RunInTx runs fn with exclusive access to a copy of the reservations.
func (s *Store) RunInTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := make(map[string]*model.Reservation, len(s.reservations))
	for id, r := range s.reservations {
		work[id] = r
	}
	tx := &memTx{store: s, reservations: work}
	if err := fn(tx); err != nil {
		return err
	}
	// A caller that gave up while fn ran must not see the booking applied.
	if err := ctx.Err(); err != nil {
		return err
	}
	s.reservations = work
	return nil
}

func (s *Store) GetVenue(_ context.Context, id string) (*model.Venue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.venue(id)
}

func (s *Store) IsClosed(_ context.Context, venueID, date string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closures[venueID+"|"+date], nil
}

func (s *Store) SumConfirmed(_ context.Context, venueID, date, excludeID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sumConfirmed(s.reservations, venueID, date, excludeID), nil
}

func (s *Store) GetReservation(_ context.Context, id string) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	return r.Clone(), nil
}

// ListByOwner returns the owner's reservations, newest date_time first.
func (s *Store) ListByOwner(_ context.Context, ownerID string, f repository.ListFilter) ([]*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filter(func(r *model.Reservation) bool { return r.OwnerUserID == ownerID }, f)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DateTime.Equal(out[j].DateTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].DateTime.After(out[j].DateTime)
	})
	return out, nil
}

// ListByVenue returns the venue's reservations in chronological order.
func (s *Store) ListByVenue(_ context.Context, venueID string, f repository.ListFilter) ([]*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filter(func(r *model.Reservation) bool { return r.VenueID == venueID }, f)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DateTime.Equal(out[j].DateTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].DateTime.Before(out[j].DateTime)
	})
	return out, nil
}

func (s *Store) CompleteBefore(_ context.Context, before, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, r := range s.reservations {
		if r.Status == model.StatusConfirmed && r.DateTime.Before(before) {
			cp := r.Clone()
			cp.Status = model.StatusCompleted
			cp.UpdatedAt = now
			s.reservations[id] = cp
			n++
		}
	}
	return n, nil
}

func (s *Store) InsertInvitee(_ context.Context, inv *model.GroupInvitee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reservations[inv.ReservationID]; !ok {
		return repository.ErrReservationNotFound
	}
	for _, existing := range s.invitees[inv.ReservationID] {
		if existing.UserID == inv.UserID {
			return repository.ErrDuplicateInvitee
		}
	}
	s.invitees[inv.ReservationID] = append(s.invitees[inv.ReservationID], *inv)
	return nil
}

func (s *Store) ListInvitees(_ context.Context, reservationID string) ([]model.GroupInvitee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.GroupInvitee{}, s.invitees[reservationID]...), nil
}

func (s *Store) UserName(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.users[userID]
	if !ok {
		return "", repository.ErrUserNotFound
	}
	return name, nil
}

// venue must be called with mu held.
func (s *Store) venue(id string) (*model.Venue, error) {
	v, ok := s.venues[id]
	if !ok {
		return nil, repository.ErrVenueNotFound
	}
	return &v, nil
}

// filter must be called with mu held.
func (s *Store) filter(match func(*model.Reservation) bool, f repository.ListFilter) []*model.Reservation {
	out := make([]*model.Reservation, 0)
	for _, r := range s.reservations {
		if !match(r) {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.Date != "" && r.Date != f.Date {
			continue
		}
		if !f.From.IsZero() && r.DateTime.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && r.DateTime.After(f.To) {
			continue
		}
		out = append(out, r.Clone())
	}
	return out
}

func sumConfirmed(rs map[string]*model.Reservation, venueID, date, excludeID string) int {
	total := 0
	for id, r := range rs {
		if id == excludeID || r.VenueID != venueID || r.Date != date || !r.CountsTowardCapacity() {
			continue
		}
		total += r.PartySize
	}
	return total
}

// memTx is only used while Store.mu is held by RunInTx.
type memTx struct {
	store        *Store
	reservations map[string]*model.Reservation
}

func (t *memTx) GetVenue(_ context.Context, id string) (*model.Venue, error) {
	return t.store.venue(id)
}

func (t *memTx) IsClosed(_ context.Context, venueID, date string) (bool, error) {
	return t.store.closures[venueID+"|"+date], nil
}

func (t *memTx) SumConfirmed(_ context.Context, venueID, date, excludeID string) (int, error) {
	return sumConfirmed(t.reservations, venueID, date, excludeID), nil
}

// LockBucket is a no-op: RunInTx already excludes every other transaction.
func (t *memTx) LockBucket(context.Context, string, string) error { return nil }

func (t *memTx) GetReservationForUpdate(_ context.Context, id string) (*model.Reservation, error) {
	r, ok := t.reservations[id]
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	return r.Clone(), nil
}

func (t *memTx) InsertReservation(_ context.Context, r *model.Reservation) error {
	if _, ok := t.reservations[r.ID]; ok {
		return fmt.Errorf("reservation %s already exists", r.ID)
	}
	cp := r.Clone()
	cp.Invitees = nil
	t.reservations[r.ID] = cp
	return nil
}

func (t *memTx) UpdateReservation(_ context.Context, r *model.Reservation) error {
	if _, ok := t.reservations[r.ID]; !ok {
		return repository.ErrReservationNotFound
	}
	cp := r.Clone()
	cp.Invitees = nil
	t.reservations[r.ID] = cp
	return nil
}

var _ repository.Store = (*Store)(nil)
