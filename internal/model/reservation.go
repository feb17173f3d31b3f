package model

import "time"

// Reservation statuses as stored in reservations.status and exposed on the
// wire.  Only StatusConfirmed consumes venue capacity.
const (
	StatusConfirmed = "confirmada"
	StatusCancelled = "cancelada"
	StatusCompleted = "completada"
)

// DateLayout is the layout of a capacity bucket date (reservations.bucket_date).
const DateLayout = "2006-01-02"

// Reservation records a user's booking of PartySize seats at a venue.
//
// Fields:
//
//	ID                 – opaque identifier generated at creation (UUID).
//	VenueID            – venue being booked.
//	OwnerUserID        – user who made the reservation; the only party allowed
//	                     to modify or cancel it.
//	DateTime           – when the reservation takes place (UTC).
//	Date               – capacity bucket: calendar date of DateTime in the
//	                     venue time zone, formatted with DateLayout.
//	PartySize          – guests counted against capacity.
//	Status             – confirmada, cancelada or completada.
//	Notes              – optional free text.
//	CancellationReason – set only when the reservation is cancelled.
//
// VenueName, OwnerName and Invitees are display data joined in by the
// lifecycle manager; they are never written by the store.
type Reservation struct {
	ID                 string         `json:"id"`
	VenueID            string         `json:"lugar_id"`
	OwnerUserID        string         `json:"usuario_id"`
	DateTime           time.Time      `json:"fecha_hora"`
	Date               string         `json:"fecha"`
	PartySize          int            `json:"personas"`
	Status             string         `json:"estado"`
	Notes              *string        `json:"notas,omitempty"`
	CancellationReason *string        `json:"motivo_cancelacion,omitempty"`
	CreatedAt          time.Time      `json:"creado_en"`
	UpdatedAt          time.Time      `json:"actualizado_en"`
	VenueName          string         `json:"lugar_nombre,omitempty"`
	OwnerName          string         `json:"usuario_nombre,omitempty"`
	Invitees           []GroupInvitee `json:"invitados,omitempty"`
}

// CountsTowardCapacity reports whether the reservation consumes seats in
// its bucket.
func (r *Reservation) CountsTowardCapacity() bool { return r.Status == StatusConfirmed }

// Clone returns a deep copy.  Stores hand out clones so callers can never
// mutate persisted state in place.
func (r *Reservation) Clone() *Reservation {
	cp := *r
	if r.Notes != nil {
		n := *r.Notes
		cp.Notes = &n
	}
	if r.CancellationReason != nil {
		m := *r.CancellationReason
		cp.CancellationReason = &m
	}
	if r.Invitees != nil {
		cp.Invitees = append([]GroupInvitee(nil), r.Invitees...)
	}
	return &cp
}

// GroupInvitee is a tracking row attached to a group reservation.  It does
// not consume capacity; the principal PartySize already covers every guest.
type GroupInvitee struct {
	ID            string    `json:"id"`
	ReservationID string    `json:"reserva_id"`
	UserID        string    `json:"usuario_id"`
	Confirmed     bool      `json:"confirmado"`
	CreatedAt     time.Time `json:"creado_en"`
}

// VenueStats aggregates reservations of one venue over a time window.
type VenueStats struct {
	VenueID         string         `json:"lugar_id"`
	Period          string         `json:"periodo"`
	From            time.Time      `json:"desde"`
	To              time.Time      `json:"hasta"`
	Total           int            `json:"total"`
	ByStatus        map[string]int `json:"por_estado"`
	ConfirmedGuests int            `json:"personas_confirmadas"`
	BusiestDate     string         `json:"fecha_mas_ocupada,omitempty"`
	BusiestGuests   int            `json:"personas_fecha_mas_ocupada"`
}
