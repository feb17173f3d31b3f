package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/venue-reservation/internal/model"
)

// CapacityReader is the read surface the availability engine needs.  It is
// implemented both by Store (outside a transaction) and by Tx (inside the
// atomic check-and-commit unit).
type CapacityReader interface {
	// GetVenue returns ErrVenueNotFound when the venue does not exist.
	GetVenue(ctx context.Context, id string) (*model.Venue, error)
	// IsClosed reports whether a schedule exception closes the venue on date.
	IsClosed(ctx context.Context, venueID, date string) (bool, error)
	// SumConfirmed sums party sizes of confirmed reservations in the
	// (venueID, date) bucket, ignoring excludeID when it is non-empty.
	SumConfirmed(ctx context.Context, venueID, date, excludeID string) (int, error)
}

// Tx is one atomic unit of work against the reservation store.  Nothing
// written through a Tx is visible to other callers until RunInTx returns nil.
type Tx interface {
	CapacityReader
	// LockBucket serializes every transaction touching the same
	// (venueID, date) bucket until the current transaction ends.
	LockBucket(ctx context.Context, venueID, date string) error
	// GetReservationForUpdate loads and row-locks a reservation.  It returns
	// ErrReservationNotFound when the id is unknown.
	GetReservationForUpdate(ctx context.Context, id string) (*model.Reservation, error)
	InsertReservation(ctx context.Context, r *model.Reservation) error
	UpdateReservation(ctx context.Context, r *model.Reservation) error
}

// Store is everything the lifecycle manager needs from persistence.
type Store interface {
	CapacityReader
	RunInTx(ctx context.Context, fn func(tx Tx) error) error

	GetReservation(ctx context.Context, id string) (*model.Reservation, error)
	ListByOwner(ctx context.Context, ownerID string, f ListFilter) ([]*model.Reservation, error)
	ListByVenue(ctx context.Context, venueID string, f ListFilter) ([]*model.Reservation, error)
	CompleteBefore(ctx context.Context, before, now time.Time) (int64, error)

	InsertInvitee(ctx context.Context, inv *model.GroupInvitee) error
	ListInvitees(ctx context.Context, reservationID string) ([]model.GroupInvitee, error)

	// UserName returns the display name of a user, or ErrUserNotFound.
	UserName(ctx context.Context, userID string) (string, error)
}

// ListFilter narrows a listing.  Zero values mean "no constraint".
type ListFilter struct {
	Status string    // reservations.status
	Date   string    // reservations.bucket_date (YYYY-MM-DD)
	From   time.Time // reservations.date_time >= From
	To     time.Time // reservations.date_time <= To
}

// querier is satisfied by both *sql.DB and *sql.Tx so the same query code
// serves reads outside and inside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// MySQL error numbers that mean "the transaction lost a lock race and can be
// replayed from scratch".
const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// SQLStore is the MySQL implementation of Store.
type SQLStore struct {
	db          *sql.DB
	venues      *VenueRepo
	reservation *ReservationRepo
	invitees    *InviteeRepo
	users       *UserRepo

	maxAttempts int
	backoff     time.Duration
}

// NewSQLStore wires the MySQL repositories behind the Store interface.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:          db,
		venues:      NewVenueRepo(),
		reservation: NewReservationRepo(),
		invitees:    NewInviteeRepo(),
		users:       NewUserRepo(),
		maxAttempts: 3,
		backoff:     25 * time.Millisecond,
	}
}

// DB exposes the underlying handle, used by the health check.
func (s *SQLStore) DB() *sql.DB { return s.db }

// RunInTx executes fn inside a READ COMMITTED transaction.  READ COMMITTED
// makes every read after LockBucket observe the rows committed by whoever
// held the bucket before us; REPEATABLE READ would pin the snapshot taken by
// the first read of the transaction.  Deadlocks and lock wait timeouts are
// replayed with exponential backoff; any other error rolls back and is
// returned untouched.
func (s *SQLStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	wait := s.backoff
	for attempt := 1; ; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil || !isRetryable(err) || attempt >= s.maxAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
}

func (s *SQLStore) runOnce(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&sqlTx{tx: tx, store: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

func isRetryable(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlErrDeadlock || me.Number == mysqlErrLockWaitTimeout
	}
	return false
}

func (s *SQLStore) GetVenue(ctx context.Context, id string) (*model.Venue, error) {
	return s.venues.GetByID(ctx, s.db, id)
}

func (s *SQLStore) IsClosed(ctx context.Context, venueID, date string) (bool, error) {
	return s.venues.IsClosed(ctx, s.db, venueID, date)
}

func (s *SQLStore) SumConfirmed(ctx context.Context, venueID, date, excludeID string) (int, error) {
	return s.reservation.SumConfirmed(ctx, s.db, venueID, date, excludeID)
}

func (s *SQLStore) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	return s.reservation.GetByID(ctx, s.db, id, false)
}

func (s *SQLStore) ListByOwner(ctx context.Context, ownerID string, f ListFilter) ([]*model.Reservation, error) {
	return s.reservation.ListByOwner(ctx, s.db, ownerID, f)
}

func (s *SQLStore) ListByVenue(ctx context.Context, venueID string, f ListFilter) ([]*model.Reservation, error) {
	return s.reservation.ListByVenue(ctx, s.db, venueID, f)
}

func (s *SQLStore) CompleteBefore(ctx context.Context, before, now time.Time) (int64, error) {
	return s.reservation.CompleteBefore(ctx, s.db, before, now)
}

func (s *SQLStore) InsertInvitee(ctx context.Context, inv *model.GroupInvitee) error {
	return s.invitees.Insert(ctx, s.db, inv)
}

func (s *SQLStore) ListInvitees(ctx context.Context, reservationID string) ([]model.GroupInvitee, error) {
	return s.invitees.ListByReservation(ctx, s.db, reservationID)
}

func (s *SQLStore) UserName(ctx context.Context, userID string) (string, error) {
	return s.users.NameByID(ctx, s.db, userID)
}

// sqlTx adapts *sql.Tx to the Tx interface.
type sqlTx struct {
	tx    *sql.Tx
	store *SQLStore
}

func (t *sqlTx) GetVenue(ctx context.Context, id string) (*model.Venue, error) {
	return t.store.venues.GetByID(ctx, t.tx, id)
}

func (t *sqlTx) IsClosed(ctx context.Context, venueID, date string) (bool, error) {
	return t.store.venues.IsClosed(ctx, t.tx, venueID, date)
}

func (t *sqlTx) SumConfirmed(ctx context.Context, venueID, date, excludeID string) (int, error) {
	return t.store.reservation.SumConfirmed(ctx, t.tx, venueID, date, excludeID)
}

func (t *sqlTx) LockBucket(ctx context.Context, venueID, date string) error {
	return t.store.reservation.LockBucket(ctx, t.tx, venueID, date)
}

func (t *sqlTx) GetReservationForUpdate(ctx context.Context, id string) (*model.Reservation, error) {
	return t.store.reservation.GetByID(ctx, t.tx, id, true)
}

func (t *sqlTx) InsertReservation(ctx context.Context, r *model.Reservation) error {
	return t.store.reservation.Insert(ctx, t.tx, r)
}

func (t *sqlTx) UpdateReservation(ctx context.Context, r *model.Reservation) error {
	return t.store.reservation.Update(ctx, t.tx, r)
}

var _ Store = (*SQLStore)(nil)
