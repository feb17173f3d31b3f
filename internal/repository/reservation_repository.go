package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/venue-reservation/internal/model"
)

// ReservationRepo holds the SQL for the reservations and capacity_buckets
// tables.  Every method takes the querier to run against so callers decide
// whether the statement joins an open transaction.  All timestamps are
// stored in UTC.
type ReservationRepo struct{}

// NewReservationRepo returns a new ReservationRepo.
func NewReservationRepo() *ReservationRepo { return &ReservationRepo{} }

const reservationColumns = `id, venue_id, user_id, date_time, bucket_date, party_size, status,
       notes, cancellation_reason, created_at, updated_at`

// LockBucket makes sure the (venue, date) marker row exists and takes an
// exclusive row lock on it.  The lock lives until the surrounding
// transaction commits or rolls back, so concurrent bookers of the same
// bucket queue behind each other while other buckets proceed in parallel.
func (r *ReservationRepo) LockBucket(ctx context.Context, q querier, venueID, date string) error {
	const ins = `INSERT INTO capacity_buckets (venue_id, bucket_date) VALUES (?, ?)
	             ON DUPLICATE KEY UPDATE venue_id = venue_id`
	if _, err := q.ExecContext(ctx, ins, venueID, date); err != nil {
		return err
	}
	const sel = `SELECT venue_id FROM capacity_buckets WHERE venue_id = ? AND bucket_date = ? FOR UPDATE`
	var locked string
	return q.QueryRowContext(ctx, sel, venueID, date).Scan(&locked)
}

// SumConfirmed returns the seats consumed in a bucket.  An empty excludeID
// excludes nothing because ids are never empty.
func (r *ReservationRepo) SumConfirmed(ctx context.Context, q querier, venueID, date, excludeID string) (int, error) {
	const sel = `SELECT COALESCE(SUM(party_size), 0) FROM reservations
	             WHERE venue_id = ? AND bucket_date = ? AND status = ? AND id <> ?`
	var total int64
	if err := q.QueryRowContext(ctx, sel, venueID, date, model.StatusConfirmed, excludeID).Scan(&total); err != nil {
		return 0, err
	}
	return int(total), nil
}

// Insert writes a new reservation row.  The caller supplies the id and
// timestamps.
func (r *ReservationRepo) Insert(ctx context.Context, q querier, res *model.Reservation) error {
	const ins = `INSERT INTO reservations
	             (id, venue_id, user_id, date_time, bucket_date, party_size, status, notes, cancellation_reason, created_at, updated_at)
	             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := q.ExecContext(ctx, ins,
		res.ID, res.VenueID, res.OwnerUserID, res.DateTime.UTC(), res.Date, res.PartySize, res.Status,
		nullString(res.Notes), nullString(res.CancellationReason), res.CreatedAt.UTC(), res.UpdatedAt.UTC(),
	)
	return err
}

// Update persists the mutable fields of a reservation.  It returns
// ErrReservationNotFound when no row matched the id.
func (r *ReservationRepo) Update(ctx context.Context, q querier, res *model.Reservation) error {
	const upd = `UPDATE reservations
	             SET date_time = ?, bucket_date = ?, party_size = ?, status = ?, notes = ?, cancellation_reason = ?, updated_at = ?
	             WHERE id = ?`
	result, err := q.ExecContext(ctx, upd,
		res.DateTime.UTC(), res.Date, res.PartySize, res.Status,
		nullString(res.Notes), nullString(res.CancellationReason), res.UpdatedAt.UTC(), res.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrReservationNotFound
	}
	return nil
}

// GetByID loads one reservation.  With forUpdate the row stays locked until
// the transaction ends; it must then be called with a *sql.Tx querier.
func (r *ReservationRepo) GetByID(ctx context.Context, q querier, id string, forUpdate bool) (*model.Reservation, error) {
	sel := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	if forUpdate {
		sel += ` FOR UPDATE`
	}
	res, err := scanReservation(q.QueryRowContext(ctx, sel, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return res, nil
}

// ListByOwner returns a user's reservations, newest date_time first.
func (r *ReservationRepo) ListByOwner(ctx context.Context, q querier, ownerID string, f ListFilter) ([]*model.Reservation, error) {
	where, args := f.clauses("user_id = ?", ownerID)
	sel := `SELECT ` + reservationColumns + ` FROM reservations WHERE ` + where + ` ORDER BY date_time DESC, id`
	return queryReservations(ctx, q, sel, args...)
}

// ListByVenue returns a venue's reservations in chronological order.
func (r *ReservationRepo) ListByVenue(ctx context.Context, q querier, venueID string, f ListFilter) ([]*model.Reservation, error) {
	where, args := f.clauses("venue_id = ?", venueID)
	sel := `SELECT ` + reservationColumns + ` FROM reservations WHERE ` + where + ` ORDER BY date_time ASC, id`
	return queryReservations(ctx, q, sel, args...)
}

// CompleteBefore flips every confirmed reservation whose date_time is
// earlier than before to completed and reports how many rows changed.
func (r *ReservationRepo) CompleteBefore(ctx context.Context, q querier, before, now time.Time) (int64, error) {
	const upd = `UPDATE reservations SET status = ?, updated_at = ? WHERE status = ? AND date_time < ?`
	result, err := q.ExecContext(ctx, upd, model.StatusCompleted, now.UTC(), model.StatusConfirmed, before.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// clauses renders the filter as a WHERE fragment appended to the leading
// condition.
func (f ListFilter) clauses(lead string, leadArg any) (string, []any) {
	conds := []string{lead}
	args := []any{leadArg}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if f.Date != "" {
		conds = append(conds, "bucket_date = ?")
		args = append(args, f.Date)
	}
	if !f.From.IsZero() {
		conds = append(conds, "date_time >= ?")
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		conds = append(conds, "date_time <= ?")
		args = append(args, f.To.UTC())
	}
	return strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var (
		res    model.Reservation
		bucket time.Time
		notes  sql.NullString
		reason sql.NullString
	)
	if err := row.Scan(
		&res.ID, &res.VenueID, &res.OwnerUserID, &res.DateTime, &bucket, &res.PartySize, &res.Status,
		&notes, &reason, &res.CreatedAt, &res.UpdatedAt,
	); err != nil {
		return nil, err
	}
	res.Date = bucket.Format(model.DateLayout)
	res.DateTime = res.DateTime.UTC()
	if notes.Valid {
		n := notes.String
		res.Notes = &n
	}
	if reason.Valid {
		m := reason.String
		res.CancellationReason = &m
	}
	return &res, nil
}

func queryReservations(ctx context.Context, q querier, sel string, args ...any) ([]*model.Reservation, error) {
	rows, err := q.QueryContext(ctx, sel, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
