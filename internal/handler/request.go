package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/venue-reservation/internal/service"
)

type createRequest struct {
	VenueID   string  `json:"lugar_id" validate:"required"`
	DateTime  string  `json:"fecha_hora" validate:"required"`
	PartySize int     `json:"personas" validate:"required,min=1"`
	Notes     *string `json:"notas" validate:"omitempty,max=500"`
}

type groupRequest struct {
	VenueID   string           `json:"lugar_id" validate:"required"`
	DateTime  string           `json:"fecha_hora" validate:"required"`
	PartySize int              `json:"personas" validate:"required,min=1"`
	Notes     *string          `json:"notas" validate:"omitempty,max=500"`
	Invitees  []inviteeRequest `json:"invitados" validate:"required,min=1,max=50,dive"`
}

// inviteeRequest accepts either a bare user id string or an object with
// usuario_id and confirmado.
type inviteeRequest struct {
	UserID    string `json:"usuario_id" validate:"required"`
	Confirmed bool   `json:"confirmado"`
}

func (r *inviteeRequest) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &r.UserID)
	}
	if len(b) > 0 && (b[0] >= '0' && b[0] <= '9') {
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		r.UserID = n.String()
		return nil
	}
	var obj struct {
		UserID    json.RawMessage `json:"usuario_id"`
		Confirmed bool            `json:"confirmado"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	r.Confirmed = obj.Confirmed
	if len(obj.UserID) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(obj.UserID, &s); err == nil {
		r.UserID = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(obj.UserID, &n); err != nil {
		return errors.New("usuario_id must be a string or a number")
	}
	r.UserID = n.String()
	return nil
}

type updateRequest struct {
	DateTime  *string `json:"fecha_hora"`
	PartySize *int    `json:"personas" validate:"omitempty,min=1"`
	Notes     *string `json:"notas" validate:"omitempty,max=500"`
}

type cancelRequest struct {
	Reason *string `json:"motivo" validate:"omitempty,max=500"`
}

// Local layouts accepted besides RFC 3339; they are read in the venue zone.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func parseDateTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &service.ValidationError{Field: "fecha_hora", Message: "must be an RFC 3339 date-time"}
}

// positiveInt parses an optional query parameter.  Empty yields 0.
func positiveInt(field, raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, &service.ValidationError{Field: field, Message: "must be a positive integer"}
	}
	return n, nil
}
