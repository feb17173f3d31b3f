package model

// Venue is the booking core's read-only view of a bookable place.
//
// Fields:
//
//	ID       – opaque identifier (venues.id).
//	Name     – display name (venues.name).
//	Capacity – maximum guests per calendar date (venues.capacity).
//	Active   – inactive venues reject every new booking (venues.is_active).
type Venue struct {
	ID       string `json:"id"`
	Name     string `json:"nombre"`
	Capacity int    `json:"capacidad"`
	Active   bool   `json:"activo"`
}

// AvailabilityResult is the outcome of a capacity check for one bucket.  It
// is returned verbatim to clients, including inside CapacityExceeded error
// bodies, so they can explain the rejection.
type AvailabilityResult struct {
	Available          bool   `json:"disponible"`
	VenueID            string `json:"lugar_id"`
	Date               string `json:"fecha"`
	CapacityTotal      int    `json:"capacidad_total"`
	CurrentUsage       int    `json:"ocupacion_actual"`
	CapacityRemaining  int    `json:"capacidad_restante"`
	PartySizeRequested int    `json:"personas_solicitadas"`
	Closed             bool   `json:"cerrado,omitempty"`
}
