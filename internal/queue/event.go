// Package queue defines message payloads exchanged over the message broker.
package queue

import "time"

// Event types published on the reservation events queue.
const (
	EventCreated   = "reservation.created"   // single and group bookings
	EventUpdated   = "reservation.updated"   // any accepted change
	EventCancelled = "reservation.cancelled" // seats released
)

// ReservationEvent is published after a lifecycle transition commits.  It
// carries enough information for downstream consumers to log, audit or
// trigger analytics without querying the primary database.
type ReservationEvent struct {
	Type          string    `json:"type"`
	ReservationID string    `json:"reservation_id"`
	VenueID       string    `json:"venue_id"`
	VenueName     string    `json:"venue_name,omitempty"`
	UserID        string    `json:"user_id"`
	DateTime      time.Time `json:"date_time"`
	Date          string    `json:"date"`
	PartySize     int       `json:"party_size"`
	Status        string    `json:"status"`
	Invitees      int       `json:"invitees,omitempty"` // group bookings only
	Reason        string    `json:"reason,omitempty"`   // cancellation reason
	OccurredAt    time.Time `json:"occurred_at"`
}
