package repository

import (
	"context"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/venue-reservation/internal/model"
)

const mysqlErrDuplicateEntry = 1062

// InviteeRepo reads and writes reservation_invitees, the confirmation
// ledger of a group reservation.  Rows never influence capacity.
type InviteeRepo struct{}

// NewInviteeRepo returns a new InviteeRepo.
func NewInviteeRepo() *InviteeRepo { return &InviteeRepo{} }

// Insert adds one ledger row.  A second row for the same (reservation,
// user) pair violates the unique key and is reported as
// ErrDuplicateInvitee.
func (r *InviteeRepo) Insert(ctx context.Context, q querier, inv *model.GroupInvitee) error {
	const ins = `INSERT INTO reservation_invitees (id, reservation_id, user_id, confirmed, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := q.ExecContext(ctx, ins, inv.ID, inv.ReservationID, inv.UserID, inv.Confirmed, inv.CreatedAt.UTC())
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlErrDuplicateEntry {
		return ErrDuplicateInvitee
	}
	return err
}

// ListByReservation returns the ledger of a reservation in insertion order.
func (r *InviteeRepo) ListByReservation(ctx context.Context, q querier, reservationID string) ([]model.GroupInvitee, error) {
	const sel = `SELECT id, reservation_id, user_id, confirmed, created_at
	             FROM reservation_invitees WHERE reservation_id = ? ORDER BY created_at, id`
	rows, err := q.QueryContext(ctx, sel, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.GroupInvitee, 0)
	for rows.Next() {
		var inv model.GroupInvitee
		if err := rows.Scan(&inv.ID, &inv.ReservationID, &inv.UserID, &inv.Confirmed, &inv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
