// Package handler translates HTTP requests into calls on the reservation
// service and its results into JSON responses.
package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/venue-reservation/internal/middleware"
	"github.com/iliyamo/venue-reservation/internal/service"
)

// ReservationHandler serves the /reservas routes.  Every route sits behind
// JWTAuth, so the requester id is always available in the context.
type ReservationHandler struct {
	svc *service.ReservationService
	log *zap.Logger
}

// NewReservationHandler panics when svc is nil.
func NewReservationHandler(svc *service.ReservationService, log *zap.Logger) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReservationHandler{svc: svc, log: log}
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: "missing user identity"})
}

// bind decodes the JSON body into dst and validates it.  Only the body is
// read; path and query parameters are parsed by each handler.
func bind(c echo.Context, dst any) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, dst); err != nil {
		return &service.ValidationError{Field: "body", Message: "malformed JSON body"}
	}
	return c.Validate(dst)
}

// Create handles POST /reservas.
func (h *ReservationHandler) Create(c echo.Context) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	var req createRequest
	if err := bind(c, &req); err != nil {
		return h.respondError(c, err)
	}
	when, err := parseDateTime(req.DateTime, h.svc.Engine().Location())
	if err != nil {
		return h.respondError(c, err)
	}
	res, err := h.svc.CreateReservation(c.Request().Context(), service.CreateInput{
		OwnerUserID: userID,
		VenueID:     strings.TrimSpace(req.VenueID),
		DateTime:    when,
		PartySize:   req.PartySize,
		Notes:       req.Notes,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": res})
}

// CreateGroup handles POST /reservas/grupal.
func (h *ReservationHandler) CreateGroup(c echo.Context) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	var req groupRequest
	if err := bind(c, &req); err != nil {
		return h.respondError(c, err)
	}
	when, err := parseDateTime(req.DateTime, h.svc.Engine().Location())
	if err != nil {
		return h.respondError(c, err)
	}
	invitees := make([]service.InviteeInput, 0, len(req.Invitees))
	for _, inv := range req.Invitees {
		invitees = append(invitees, service.InviteeInput{UserID: inv.UserID, Confirmed: inv.Confirmed})
	}
	out, err := h.svc.CreateGroupReservation(c.Request().Context(), service.GroupInput{
		CreateInput: service.CreateInput{
			OwnerUserID: userID,
			VenueID:     strings.TrimSpace(req.VenueID),
			DateTime:    when,
			PartySize:   req.PartySize,
			Notes:       req.Notes,
		},
		Invitees: invitees,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	failures := out.Failures
	if failures == nil {
		failures = []service.InviteeFailure{}
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"item":                  out.Reservation,
		"invitados_solicitados": out.InviteesRequested,
		"invitados_registrados": out.InviteesRecorded,
		"invitados_fallidos":    failures,
	})
}

// ListMine handles GET /reservas/usuario?estado=.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	list, err := h.svc.ListByOwner(c.Request().Context(), userID, c.QueryParam("estado"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// Get handles GET /reservas/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	res, err := h.svc.GetReservation(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// Update handles PUT /reservas/:id.
func (h *ReservationHandler) Update(c echo.Context) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	var req updateRequest
	if err := bind(c, &req); err != nil {
		return h.respondError(c, err)
	}
	ch := service.Changes{PartySize: req.PartySize, Notes: req.Notes}
	if req.DateTime != nil {
		when, err := parseDateTime(*req.DateTime, h.svc.Engine().Location())
		if err != nil {
			return h.respondError(c, err)
		}
		ch.DateTime = &when
	}
	res, err := h.svc.UpdateReservation(c.Request().Context(), userID, c.Param("id"), ch)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// Cancel handles DELETE /reservas/:id.  The body is optional.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	var req cancelRequest
	if err := bind(c, &req); err != nil {
		return h.respondError(c, err)
	}
	if req.Reason != nil && strings.TrimSpace(*req.Reason) == "" {
		req.Reason = nil
	}
	res, err := h.svc.CancelReservation(c.Request().Context(), userID, c.Param("id"), req.Reason)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// ListByVenue handles GET /reservas/lugar/:lugar_id?fecha=&estado=.
func (h *ReservationHandler) ListByVenue(c echo.Context) error {
	list, err := h.svc.ListByVenue(c.Request().Context(), c.Param("lugar_id"), c.QueryParam("fecha"), c.QueryParam("estado"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// Availability handles GET /reservas/lugar/:lugar_id/disponibilidad.  A
// plain fecha may stand in for fecha_hora.  The result is returned as is,
// including when the venue is full.
func (h *ReservationHandler) Availability(c echo.Context) error {
	engine := h.svc.Engine()
	date := strings.TrimSpace(c.QueryParam("fecha"))
	if raw := c.QueryParam("fecha_hora"); raw != "" {
		when, err := parseDateTime(raw, engine.Location())
		if err != nil {
			return h.respondError(c, err)
		}
		date = engine.Bucket(when)
	}
	if date == "" {
		return h.respondError(c, &service.ValidationError{Field: "fecha_hora", Message: "is required"})
	}
	if c.QueryParam("personas") == "" {
		return h.respondError(c, &service.ValidationError{Field: "personas", Message: "is required"})
	}
	party, err := positiveInt("personas", c.QueryParam("personas"))
	if err != nil {
		return h.respondError(c, err)
	}
	result, err := engine.Check(c.Request().Context(), c.Param("lugar_id"), date, party, "")
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Stats handles GET /reservas/lugar/:lugar_id/estadisticas?periodo=.
func (h *ReservationHandler) Stats(c echo.Context) error {
	stats, err := h.svc.VenueStats(c.Request().Context(), c.Param("lugar_id"), c.QueryParam("periodo"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": stats})
}

// Upcoming handles GET /reservas/lugar/:lugar_id/proximas?horas=.
func (h *ReservationHandler) Upcoming(c echo.Context) error {
	hours, err := positiveInt("horas", c.QueryParam("horas"))
	if err != nil {
		return h.respondError(c, err)
	}
	list, err := h.svc.Upcoming(c.Request().Context(), c.Param("lugar_id"), hours)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}
