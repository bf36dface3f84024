package handlers

import (
	"net/http"

	"kartcis-core/models"
	"kartcis-core/services"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type AdminHandler struct {
	app          *pocketbase.PocketBase
	tickets      *services.TicketService
	reservations *services.ReservationService
}

func NewAdminHandler(app *pocketbase.PocketBase, tickets *services.TicketService, reservations *services.ReservationService) *AdminHandler {
	return &AdminHandler{
		app:          app,
		tickets:      tickets,
		reservations: reservations,
	}
}

func requireSuperuser(e *core.RequestEvent) error {
	if e.Auth == nil || !e.Auth.IsSuperuser() {
		return apis.NewForbiddenError("Superuser access required", nil)
	}
	return nil
}

// SeedStock - Initialize reservation counters from a catalog snapshot
func (h *AdminHandler) SeedStock(e *core.RequestEvent) error {
	if err := requireSuperuser(e); err != nil {
		return err
	}

	var req struct {
		Event models.Event `json:"event"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	available := make(map[string]int, len(req.Event.TicketTypes))
	for _, ticketType := range req.Event.TicketTypes {
		available[ticketType.ID] = ticketType.Available
	}

	if err := h.reservations.SeedStock(e.Request.Context(), req.Event.ID, available); err != nil {
		return apis.NewApiError(http.StatusServiceUnavailable, "Failed to seed stock", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"event_id":     req.Event.ID,
		"ticket_types": len(available),
	})
}

// CancelEventTickets - Flag issued tickets after an event cancellation
func (h *AdminHandler) CancelEventTickets(e *core.RequestEvent) error {
	if err := requireSuperuser(e); err != nil {
		return err
	}

	eventID := e.Request.PathValue("eventId")

	var req struct {
		Reason string `json:"reason"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	flagged, err := h.tickets.CancelForEvent(e.Request.Context(), eventID, req.Reason)
	if err != nil {
		return apis.NewApiError(http.StatusServiceUnavailable, "Failed to flag tickets", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"event_id": eventID,
		"flagged":  flagged,
	})
}
